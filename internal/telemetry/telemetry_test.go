package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fyrsmithlabs/docrag/internal/config"
)

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "127.0.0.1:4318",
		Protocol:    ProtocolHTTP,
		Insecure:    true,
		ServiceName: "docrag-test",
		SampleRate:  0.25,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "127.0.0.1:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "docrag-test", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, 0.25, cfg.SampleRate)
	require.NoError(t, cfg.Validate())

	def := FromConfig(config.TelemetryConfig{}, "")
	assert.False(t, def.Enabled)
	assert.Equal(t, "localhost:4317", def.Endpoint)
	assert.Equal(t, 1.0, def.SampleRate)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"disabled is always valid", func(c *Config) { c.Enabled = false; c.Endpoint = "" }, ""},
		{"local insecure", func(c *Config) {}, ""},
		{"ipv6 loopback", func(c *Config) { c.Endpoint = "[::1]:4317" }, ""},
		{"remote with tls", func(c *Config) { c.Endpoint = "otel.example.com:4317"; c.Insecure = false }, ""},
		{"remote insecure", func(c *Config) { c.Endpoint = "otel.example.com:4317" }, "not allowed"},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint is required"},
		{"bad protocol", func(c *Config) { c.Protocol = "udp" }, "protocol"},
		{"bad sample rate", func(c *Config) { c.SampleRate = 2 }, "sample rate"},
		{"zero interval", func(c *Config) { c.MetricInterval = 0 }, "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Enabled = true
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.False(t, tel.IsEnabled())
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_Enabled(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	for _, protocol := range []string{ProtocolGRPC, ProtocolHTTP} {
		t.Run(protocol, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Enabled = true
			cfg.Protocol = protocol
			cfg.Endpoint = "localhost:1"

			tel, err := New(context.Background(), cfg)
			require.NoError(t, err, "exporters connect lazily")
			assert.True(t, tel.IsEnabled())
			assert.NotNil(t, tel.LoggerProvider())

			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			_ = tel.Shutdown(ctx) // nothing listens on the endpoint
		})
	}
}

func TestNew_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.SampleRate = -1
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "collector:4318", hostPort("https://collector:4318"))
	assert.Equal(t, "collector:4317", hostPort("collector:4317"))
}

func TestTestTelemetry(t *testing.T) {
	tt := NewTestTelemetry(t)

	_, span := otel.Tracer("test").Start(context.Background(), "Retriever.Retrieve")
	span.SetAttributes(attribute.Int("dimension", 384))
	span.End()

	counter, err := otel.Meter("test").Int64Counter("docrag.test.count")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NotNil(t, tt.Span("Retriever.Retrieve"))
	v, ok := tt.Attribute("Retriever.Retrieve", "dimension")
	require.True(t, ok)
	assert.Equal(t, int64(384), v.AsInt64())
	assert.Len(t, tt.Spans(), 1)

	m, ok := tt.Metric(t, "docrag.test.count")
	require.True(t, ok)
	assert.Equal(t, "docrag.test.count", m.Name)
}
