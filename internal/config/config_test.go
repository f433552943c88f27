package config

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 0.35, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 1, cfg.Retrieval.OverlapPieces)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, "gemini", cfg.Generation.Provider)
	assert.Equal(t, "analyst", cfg.Generation.Persona)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "exhaustive", cfg.VectorStore.Provider)
	assert.True(t, cfg.Ingest.RedactSecrets)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce.Duration())
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Empty(t, cfg.NATS.URL)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: "shutdown timeout",
		},
		{
			name:    "unknown embedding provider",
			mutate:  func(c *Config) { c.Embedding.Provider = "cohere" },
			wantErr: "embedding.provider",
		},
		{
			name:    "unknown generation provider",
			mutate:  func(c *Config) { c.Generation.Provider = "anthropic" },
			wantErr: "generation.provider",
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "store.driver",
		},
		{
			name:    "unknown vectorstore",
			mutate:  func(c *Config) { c.VectorStore.Provider = "pinecone" },
			wantErr: "vectorstore.provider",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging.level",
		},
		{
			name:    "threshold of one",
			mutate:  func(c *Config) { c.Retrieval.SimilarityThreshold = 1 },
			wantErr: "similarity_threshold",
		},
		{
			name:    "negative top k",
			mutate:  func(c *Config) { c.Retrieval.TopK = -1 },
			wantErr: "top_k",
		},
		{
			name:    "sample rate above one",
			mutate:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: "sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Selection(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.Model = "text-embedding-3-small"
	cfg.Generation.Provider = "openrouter"
	cfg.Providers.OpenAIKey = Secret("sk-openai")
	cfg.Providers.OpenRouterKey = Secret("sk-or")
	cfg.Providers.OllamaURL = "http://ollama:11434"

	sel := cfg.Selection()

	assert.Equal(t, "openai", sel.Embedding)
	assert.Equal(t, "text-embedding-3-small", sel.EmbeddingModel)
	assert.Equal(t, "openrouter", sel.Generation)
	assert.Equal(t, "sk-openai", sel.OpenAIKey)
	assert.Equal(t, "sk-or", sel.OpenRouterKey)
	assert.Equal(t, "http://ollama:11434", sel.OllamaURL)
}

func TestConfig_SecretsNeverSerialize(t *testing.T) {
	cfg := Default()
	cfg.Providers.GeminiKey = Secret("AIza-super-secret")

	data, err := json.Marshal(cfg.Providers)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "AIza-super-secret")
	assert.Contains(t, string(data), "[REDACTED]")
}

func TestServerConfig_Addr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8080", ServerConfig{Host: "0.0.0.0", Port: 8080}.Addr())
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SERVER_HTTP_PORT":        "server.http_port",
		"RETRIEVAL_TOP_K":         "retrieval.top_k",
		"VECTORSTORE_QDRANT_HOST": "vectorstore.qdrant_host",
		"HOME":                    "home",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}
