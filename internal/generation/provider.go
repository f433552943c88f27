package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/apiclient"
	"github.com/fyrsmithlabs/docrag/internal/conversation"
	"github.com/fyrsmithlabs/docrag/internal/document"
)

var (
	// ErrMissingCredential indicates the provider has no API key.
	ErrMissingCredential = errors.New("missing API credential")

	// ErrUnsupportedProvider indicates an unknown provider tag.
	ErrUnsupportedProvider = errors.New("provider not supported")

	// ErrEmptyResponse indicates the provider answered without text.
	ErrEmptyResponse = errors.New("empty response")
)

// Provider tags.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// Request is one generation call.
type Request struct {
	System      string
	History     []conversation.Turn
	Temperature float64
}

// Provider completes a request.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Name returns the provider tag.
	Name() string
}

// ProviderConfig configures a generation provider.
type ProviderConfig struct {
	// Provider is one of gemini, openai, openrouter or ollama.
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	// MaxRetries overrides the retry count. Negative disables retries.
	MaxRetries int
	// AppURL and AppTitle identify the application to OpenRouter.
	AppURL   string
	AppTitle string
}

// ConfigFromSelection maps a provider selection onto a ProviderConfig.
func ConfigFromSelection(sel document.ProviderSelection) ProviderConfig {
	cfg := ProviderConfig{Provider: sel.Generation, Model: sel.Model}
	switch sel.Generation {
	case ProviderGemini:
		cfg.APIKey, cfg.BaseURL = sel.GeminiKey, sel.GeminiURL
	case ProviderOpenAI:
		cfg.APIKey, cfg.BaseURL = sel.OpenAIKey, sel.OpenAIURL
	case ProviderOpenRouter:
		cfg.APIKey, cfg.BaseURL = sel.OpenRouterKey, sel.OpenRouterURL
	case ProviderOllama:
		cfg.BaseURL = sel.OllamaURL
	}
	return cfg
}

// NewProvider creates the configured provider. Missing credentials are
// reported by Complete, not here.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case ProviderGemini:
		return NewGemini(cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderOpenRouter:
		return NewOpenRouter(cfg)
	case ProviderOllama:
		return NewOllama(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

func newClient(cfg ProviderConfig, baseURL string, header http.Header) (*apiclient.Client, error) {
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	return apiclient.New(apiclient.Config{
		BaseURL:    baseURL,
		Header:     header,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	})
}

func modelOr(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}
