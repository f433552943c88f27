package generation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/apiclient"
	"github.com/fyrsmithlabs/docrag/internal/conversation"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-3-flash-preview"
)

// GeminiPart is one piece of a message.
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiContent is one message of a structured multi-turn request.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiConfig carries the generation options of a request.
type GeminiConfig struct {
	SystemInstruction string   `json:"systemInstruction,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	ResponseMimeType  string   `json:"responseMimeType,omitempty"`
	ResponseSchema    any      `json:"responseSchema,omitempty"`
}

// GeminiRequest is the body of a generateContent call.
type GeminiRequest struct {
	Model    string          `json:"model"`
	Contents []GeminiContent `json:"contents"`
	Config   *GeminiConfig   `json:"config,omitempty"`
}

type geminiResponse struct {
	Text       string `json:"text"`
	Candidates []struct {
		Content GeminiContent `json:"content"`
	} `json:"candidates"`
}

// text returns the answer, preferring the first candidate.
func (r geminiResponse) text() string {
	if len(r.Candidates) > 0 {
		parts := r.Candidates[0].Content.Parts
		texts := make([]string, len(parts))
		for i, p := range parts {
			texts[i] = p.Text
		}
		if s := strings.Join(texts, ""); s != "" {
			return s
		}
	}
	return r.Text
}

// Gemini talks to a Gemini generateContent endpoint.
type Gemini struct {
	model  string
	apiKey string
	client *apiclient.Client
}

// NewGemini creates a Gemini provider.
func NewGemini(cfg ProviderConfig) (*Gemini, error) {
	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("x-goog-api-key", cfg.APIKey)
	}
	client, err := newClient(cfg, defaultGeminiBaseURL, header)
	if err != nil {
		return nil, err
	}
	return &Gemini{
		model:  modelOr(cfg.Model, defaultGeminiModel),
		apiKey: cfg.APIKey,
		client: client,
	}, nil
}

// Name implements Provider.
func (g *Gemini) Name() string { return ProviderGemini }

// Model returns the model requests are sent to.
func (g *Gemini) Model() string { return g.model }

// Complete implements Provider. Turns keep their user and model roles.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	contents := make([]GeminiContent, 0, len(req.History))
	for _, t := range req.History {
		contents = append(contents, GeminiContent{
			Role:  string(t.Role),
			Parts: []GeminiPart{{Text: t.Content}},
		})
	}
	temp := req.Temperature
	return g.Generate(ctx, contents, &GeminiConfig{
		SystemInstruction: req.System,
		Temperature:       &temp,
	})
}

// Generate sends a generateContent request and returns the answer text.
func (g *Gemini) Generate(ctx context.Context, contents []GeminiContent, config *GeminiConfig) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("%w: gemini", ErrMissingCredential)
	}
	body := GeminiRequest{Model: g.model, Contents: contents, Config: config}
	path := "/v1beta/models/" + url.PathEscape(strings.TrimPrefix(g.model, "models/")) + ":generateContent"

	var resp geminiResponse
	if err := g.client.PostJSON(ctx, path, body, &resp); err != nil {
		return "", err
	}
	return resp.text(), nil
}

// UserContent wraps text as a single user message.
func UserContent(text string) []GeminiContent {
	return []GeminiContent{{Role: string(conversation.RoleUser), Parts: []GeminiPart{{Text: text}}}}
}
