package generation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fyrsmithlabs/docrag/internal/apiclient"
	"github.com/fyrsmithlabs/docrag/internal/conversation"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com"
	defaultOpenAIModel       = "gpt-4o"
	defaultOpenRouterBaseURL = "https://openrouter.ai"
	defaultOpenRouterModel   = "meta-llama/llama-3-8b-instruct:free"
	defaultAppTitle          = "docrag"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Chat talks to a chat-completions endpoint. OpenAI and OpenRouter share it
// and differ in base URL, path, default model and headers.
type Chat struct {
	name   string
	model  string
	path   string
	apiKey string
	client *apiclient.Client
}

// NewOpenAI creates the OpenAI provider.
func NewOpenAI(cfg ProviderConfig) (*Chat, error) {
	return newChat(ProviderOpenAI, cfg, defaultOpenAIBaseURL, "/v1/chat/completions", defaultOpenAIModel, nil)
}

// NewOpenRouter creates the OpenRouter provider.
func NewOpenRouter(cfg ProviderConfig) (*Chat, error) {
	extra := http.Header{}
	if cfg.AppURL != "" {
		extra.Set("HTTP-Referer", cfg.AppURL)
	}
	extra.Set("X-Title", modelOr(cfg.AppTitle, defaultAppTitle))
	return newChat(ProviderOpenRouter, cfg, defaultOpenRouterBaseURL, "/api/v1/chat/completions", defaultOpenRouterModel, extra)
}

func newChat(name string, cfg ProviderConfig, baseURL, path, model string, extra http.Header) (*Chat, error) {
	header := http.Header{}
	for k, v := range extra {
		header[k] = v
	}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	client, err := newClient(cfg, baseURL, header)
	if err != nil {
		return nil, err
	}
	return &Chat{
		name:   name,
		model:  modelOr(cfg.Model, model),
		path:   path,
		apiKey: cfg.APIKey,
		client: client,
	}, nil
}

// Name implements Provider.
func (c *Chat) Name() string { return c.name }

// chatRole maps conversation roles onto chat-completions roles.
func chatRole(r conversation.Role) string {
	if r == conversation.RoleModel {
		return "assistant"
	}
	return string(r)
}

// Complete implements Provider.
func (c *Chat) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingCredential, c.name)
	}

	messages := make([]chatMessage, 0, len(req.History)+1)
	messages = append(messages, chatMessage{Role: "system", Content: req.System})
	for _, t := range req.History {
		messages = append(messages, chatMessage{Role: chatRole(t.Role), Content: t.Content})
	}

	var resp chatResponse
	err := c.client.PostJSON(ctx, c.path, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
