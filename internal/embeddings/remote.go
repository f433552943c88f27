package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/fyrsmithlabs/docrag/internal/apiclient"
)

// Default remote endpoints and models.
const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "text-embedding-3-small"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "text-embedding-004"
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "nomic-embed-text"
)

// remote holds what every REST provider shares. The dimension starts from
// the model table and follows the vectors actually returned.
type remote struct {
	name      string
	model     string
	apiKey    string
	client    *apiclient.Client
	dimension atomic.Int64
}

func newRemote(name string, cfg ProviderConfig, baseURL, model string, header http.Header) (*remote, error) {
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		model = cfg.Model
	}
	client, err := apiclient.New(apiclient.Config{
		BaseURL:    baseURL,
		Header:     header,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	r := &remote{name: name, model: model, apiKey: cfg.APIKey, client: client}
	r.dimension.Store(int64(knownDimensions[model]))
	return r, nil
}

func (r *remote) check(ctx context.Context, text string, needsKey bool) error {
	if text == "" {
		return ErrEmptyInput
	}
	if needsKey && r.apiKey == "" {
		return fmt.Errorf("%s: %w", r.name, ErrMissingCredential)
	}
	return ctx.Err()
}

func (r *remote) accept(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: %s returned no vector", ErrEmbeddingFailed, r.name)
	}
	r.dimension.Store(int64(len(v)))
	return v, nil
}

// Name implements Provider.
func (r *remote) Name() string { return r.name }

// Dimension implements Provider.
func (r *remote) Dimension() int { return int(r.dimension.Load()) }

// Close is a no-op for HTTP providers.
func (r *remote) Close() error { return nil }

// OpenAIProvider calls an OpenAI-compatible /v1/embeddings endpoint.
type OpenAIProvider struct {
	*remote
}

type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewOpenAIProvider creates the OpenAI provider. A missing key is reported
// by Embed.
func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	r, err := newRemote(ProviderOpenAI, cfg, defaultOpenAIBaseURL, defaultOpenAIModel, header)
	if err != nil {
		return nil, err
	}
	return &OpenAIProvider{remote: r}, nil
}

// Embed implements Embedder.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.check(ctx, text, true); err != nil {
		return nil, err
	}
	var resp openAIEmbedResponse
	if err := p.client.PostJSON(ctx, "/v1/embeddings", openAIEmbedRequest{Model: p.model, Input: text}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) == 0 {
		return p.accept(nil)
	}
	return p.accept(resp.Data[0].Embedding)
}

// GeminiProvider calls the Gemini embedContent endpoint.
type GeminiProvider struct {
	*remote
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model    string          `json:"model"`
	Contents []geminiContent `json:"contents"`
}

type geminiEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// NewGeminiProvider creates the Gemini provider. A missing key is reported
// by Embed.
func NewGeminiProvider(cfg ProviderConfig) (*GeminiProvider, error) {
	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("x-goog-api-key", cfg.APIKey)
	}
	r, err := newRemote(ProviderGemini, cfg, defaultGeminiBaseURL, defaultGeminiModel, header)
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{remote: r}, nil
}

// Embed implements Embedder.
func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.check(ctx, text, true); err != nil {
		return nil, err
	}
	req := geminiEmbedRequest{
		Model:    p.model,
		Contents: []geminiContent{{Parts: []geminiPart{{Text: text}}}},
	}
	path := "/v1beta/models/" + url.PathEscape(strings.TrimPrefix(p.model, "models/")) + ":embedContent"

	var resp geminiEmbedResponse
	if err := p.client.PostJSON(ctx, path, req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Embeddings) == 0 {
		return p.accept(nil)
	}
	return p.accept(resp.Embeddings[0].Values)
}

// OllamaProvider calls a local Ollama server. No credential is needed.
type OllamaProvider struct {
	*remote
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaProvider creates the Ollama provider.
func NewOllamaProvider(cfg ProviderConfig) (*OllamaProvider, error) {
	r, err := newRemote(ProviderOllama, cfg, defaultOllamaBaseURL, defaultOllamaModel, nil)
	if err != nil {
		return nil, err
	}
	return &OllamaProvider{remote: r}, nil
}

// Embed implements Embedder.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.check(ctx, text, false); err != nil {
		return nil, err
	}
	var resp ollamaEmbedResponse
	if err := p.client.PostJSON(ctx, "/api/embeddings", ollamaEmbedRequest{Model: p.model, Prompt: text}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return p.accept(resp.Embedding)
}

var (
	_ Provider = (*OpenAIProvider)(nil)
	_ Provider = (*GeminiProvider)(nil)
	_ Provider = (*OllamaProvider)(nil)
	_ Provider = (*LazyProvider)(nil)
	_ Provider = (*FastEmbedProvider)(nil)
)
