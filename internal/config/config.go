// Package config provides configuration loading for docrag.
//
// Configuration is read from an optional YAML file and overridden by
// environment variables. Every section has working defaults so an empty
// configuration runs fully locally.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/docrag/internal/document"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete docrag configuration.
type Config struct {
	Server      ServerConfig             `koanf:"server"`
	Retrieval   document.RetrievalConfig `koanf:"retrieval"`
	Embedding   EmbeddingConfig          `koanf:"embedding"`
	Generation  GenerationConfig         `koanf:"generation"`
	Providers   ProvidersConfig          `koanf:"providers"`
	Store       StoreConfig              `koanf:"store"`
	VectorStore VectorStoreConfig        `koanf:"vectorstore"`
	Ingest      IngestConfig             `koanf:"ingest"`
	Watch       WatchConfig              `koanf:"watch"`
	NATS        NATSConfig               `koanf:"nats"`
	Logging     LoggingConfig            `koanf:"logging"`
	Telemetry   TelemetryConfig          `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// MaxUploadBytes bounds the body of a document upload.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string        `koanf:"provider"` // local, openai, gemini, ollama
	Model    string        `koanf:"model"`
	CacheDir string        `koanf:"cache_dir"`
	Timeout  time.Duration `koanf:"timeout"`
}

// GenerationConfig selects the generation provider and persona.
type GenerationConfig struct {
	Provider     string        `koanf:"provider"` // gemini, openai, openrouter, ollama
	Model        string        `koanf:"model"`
	Persona      string        `koanf:"persona"`
	PersonasFile string        `koanf:"personas_file"`
	Identity     string        `koanf:"identity"`
	Timeout      time.Duration `koanf:"timeout"`
	// AppURL is sent to OpenRouter as the referer.
	AppURL string `koanf:"app_url"`
}

// ProvidersConfig holds credentials and endpoints of the remote providers.
type ProvidersConfig struct {
	GeminiKey     Secret `koanf:"gemini_key"`
	OpenAIKey     Secret `koanf:"openai_key"`
	OpenRouterKey Secret `koanf:"openrouter_key"`
	OllamaURL     string `koanf:"ollama_url"`
	OpenAIURL     string `koanf:"openai_url"`
	GeminiURL     string `koanf:"gemini_url"`
	OpenRouterURL string `koanf:"openrouter_url"`
}

// StoreConfig selects the persisted store.
type StoreConfig struct {
	Driver string `koanf:"driver"` // sqlite, memory
	Path   string `koanf:"path"`
}

// VectorStoreConfig selects the similarity index.
type VectorStoreConfig struct {
	Provider        string `koanf:"provider"` // exhaustive, chromem, qdrant
	ChromemPath     string `koanf:"chromem_path"`
	ChromemCompress bool   `koanf:"chromem_compress"`
	QdrantHost      string `koanf:"qdrant_host"`
	QdrantPort      int    `koanf:"qdrant_port"`
	QdrantAPIKey    Secret `koanf:"qdrant_api_key"`
	QdrantTLS       bool   `koanf:"qdrant_tls"`
}

// IngestConfig tunes document ingestion.
type IngestConfig struct {
	EventBuffer     int  `koanf:"event_buffer"`
	PageConcurrency int  `koanf:"page_concurrency"`
	RedactSecrets   bool `koanf:"redact_secrets"`
	// AllowlistFile is a gitleaks style TOML allowlist.
	AllowlistFile string `koanf:"allowlist_file"`
}

// WatchConfig tunes directory watching.
type WatchConfig struct {
	// Dir is watched by the daemon when set.
	Dir         string   `koanf:"dir"`
	Debounce    Duration `koanf:"debounce"`
	Extensions  []string `koanf:"extensions"`
	InitialScan bool     `koanf:"initial_scan"`
}

// NATSConfig enables ingestion event publishing. Empty URL disables it.
type NATSConfig struct {
	URL string `koanf:"url"`
}

// LoggingConfig holds the logging level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, console
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"` // grpc, http/protobuf
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{
		Retrieval: document.DefaultRetrievalConfig(),
		Ingest:    IngestConfig{RedactSecrets: true},
		Telemetry: TelemetryConfig{Insecure: true},
	}
	applyDefaults(cfg)
	return cfg
}

// Selection maps the provider sections onto a provider selection.
func (c *Config) Selection() document.ProviderSelection {
	return document.ProviderSelection{
		Embedding:      c.Embedding.Provider,
		EmbeddingModel: c.Embedding.Model,
		Generation:     c.Generation.Provider,
		Model:          c.Generation.Model,
		GeminiKey:      c.Providers.GeminiKey.Value(),
		OpenAIKey:      c.Providers.OpenAIKey.Value(),
		OpenRouterKey:  c.Providers.OpenRouterKey.Value(),
		OllamaURL:      c.Providers.OllamaURL,
		OpenAIURL:      c.Providers.OpenAIURL,
		GeminiURL:      c.Providers.GeminiURL,
		OpenRouterURL:  c.Providers.OpenRouterURL,
		CacheDir:       c.Embedding.CacheDir,
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - A provider, driver or backend name is unknown
//   - Retrieval tunables are out of range
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port: %d (must be 1-65535)", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	}

	checks := []struct {
		field string
		value string
		allow []string
	}{
		{"embedding.provider", c.Embedding.Provider, []string{"local", "openai", "gemini", "ollama"}},
		{"generation.provider", c.Generation.Provider, []string{"gemini", "openai", "openrouter", "ollama"}},
		{"store.driver", c.Store.Driver, []string{"sqlite", "memory"}},
		{"vectorstore.provider", c.VectorStore.Provider, []string{"exhaustive", "chromem", "qdrant"}},
		{"logging.format", c.Logging.Format, []string{"json", "console"}},
		{"telemetry.protocol", c.Telemetry.Protocol, []string{"grpc", "http/protobuf"}},
	}
	for _, chk := range checks {
		if !oneOf(chk.value, chk.allow) {
			return fmt.Errorf("%w: %s must be one of %s, got %q",
				ErrInvalidConfig, chk.field, strings.Join(chk.allow, ", "), chk.value)
		}
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil && c.Logging.Level != "trace" {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalidConfig, err)
	}

	r := c.Retrieval
	if r.SimilarityThreshold < 0 || r.SimilarityThreshold >= 1 {
		return fmt.Errorf("%w: retrieval.similarity_threshold must be in [0, 1), got %v", ErrInvalidConfig, r.SimilarityThreshold)
	}
	if r.TopK < 1 {
		return fmt.Errorf("%w: retrieval.top_k must be positive, got %d", ErrInvalidConfig, r.TopK)
	}
	if r.TargetChunkSize < 1 || r.MaxChunksPerDocument < 1 {
		return fmt.Errorf("%w: retrieval chunk limits must be positive", ErrInvalidConfig)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("%w: telemetry.sample_rate must be between 0 and 1, got %v", ErrInvalidConfig, c.Telemetry.SampleRate)
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
