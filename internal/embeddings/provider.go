package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/document"
)

var (
	// ErrEmptyInput indicates empty input text.
	ErrEmptyInput = errors.New("empty input text")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrMissingCredential indicates the provider has no API key.
	ErrMissingCredential = errors.New("missing API credential")

	// ErrProviderClosed is returned after Close.
	ErrProviderClosed = errors.New("provider closed")
)

// Provider tags.
const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Embedder produces one vector per text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with identity and lifecycle.
type Provider interface {
	Embedder
	// Name returns the provider tag.
	Name() string
	// Dimension returns the vector length, or 0 when not yet known.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is one of local, openai, gemini or ollama. Defaults to local.
	Provider string
	// Model is the embedding model name. Each provider has a default.
	Model string
	// APIKey authenticates remote providers that need one.
	APIKey string
	// BaseURL overrides the provider endpoint.
	BaseURL string
	// CacheDir is the model cache directory of the local provider.
	CacheDir string
	// Timeout bounds a single remote request.
	Timeout time.Duration
	// MaxRetries overrides the remote retry count. Negative disables retries.
	MaxRetries int
	// Logger receives metric registration warnings.
	Logger *zap.Logger
}

// ConfigFromSelection maps a provider selection onto a ProviderConfig.
func ConfigFromSelection(sel document.ProviderSelection) ProviderConfig {
	cfg := ProviderConfig{
		Provider: sel.Embedding,
		Model:    sel.EmbeddingModel,
		CacheDir: sel.CacheDir,
	}
	switch sel.Embedding {
	case ProviderOpenAI:
		cfg.APIKey, cfg.BaseURL = sel.OpenAIKey, sel.OpenAIURL
	case ProviderGemini:
		cfg.APIKey, cfg.BaseURL = sel.GeminiKey, sel.GeminiURL
	case ProviderOllama:
		cfg.BaseURL = sel.OllamaURL
	}
	return cfg
}

// NewProvider creates an instrumented provider. The local provider is
// returned behind a LazyProvider so the model loads on first use.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := NewMetrics(logger)

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case ProviderLocal, "":
		fcfg := FastEmbedConfig{Model: cfg.Model, CacheDir: cfg.CacheDir}
		p = NewLazyProvider(ProviderLocal, fastEmbedDimension(cfg.Model), localFactory(fcfg, EnsureONNXRuntime, logger))
	case ProviderOpenAI:
		p, err = NewOpenAIProvider(cfg)
	case ProviderGemini:
		p, err = NewGeminiProvider(cfg)
	case ProviderOllama:
		p, err = NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(p, modelOrDefault(cfg), metrics), nil
}

// runtimeSetupTimeout bounds locating or downloading the ONNX runtime on
// first use.
const runtimeSetupTimeout = 5 * time.Minute

// localFactory points fastembed at the ONNX runtime before loading the
// model. ensure is EnsureONNXRuntime outside tests.
func localFactory(cfg FastEmbedConfig, ensure func(context.Context) (string, error), logger *zap.Logger) Factory {
	return func() (Provider, error) {
		if fastEmbedAvailable {
			ctx, cancel := context.WithTimeout(context.Background(), runtimeSetupTimeout)
			defer cancel()
			lib, err := ensure(ctx)
			if err != nil {
				return nil, err
			}
			logger.Debug("ONNX runtime located", zap.String("path", lib))
		}
		fe, err := NewFastEmbedProvider(cfg)
		if err != nil {
			return nil, err
		}
		return fe, nil
	}
}

func modelOrDefault(cfg ProviderConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		return defaultOpenAIModel
	case ProviderGemini:
		return defaultGeminiModel
	case ProviderOllama:
		return defaultOllamaModel
	default:
		return defaultFastEmbedModel
	}
}
