package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const embeddingsInstrumentationName = "github.com/fyrsmithlabs/docrag/internal/embeddings"

var tracer = otel.Tracer(embeddingsInstrumentationName)

// Metrics holds all embedding-related metrics.
type Metrics struct {
	meter      metric.Meter
	logger     *zap.Logger
	duration   metric.Float64Histogram
	inputChars metric.Int64Histogram
	errors     metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for embeddings.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(embeddingsInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"docrag.embedding.duration_seconds",
		metric.WithDescription("Duration of a single embedding call in seconds, labeled by provider and model"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.inputChars, err = m.meter.Int64Histogram(
		"docrag.embedding.input_chars",
		metric.WithDescription("Length of embedded texts in bytes"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(16, 64, 256, 512, 1024, 2048, 4096),
	)
	if err != nil {
		m.logger.Warn("failed to create input size histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"docrag.embedding.errors_total",
		metric.WithDescription("Embedding calls that produced no vector, labeled by provider and model"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordEmbedding records one embedding call.
func (m *Metrics) RecordEmbedding(ctx context.Context, provider, model string, duration time.Duration, inputLen int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
	)
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.inputChars != nil {
		m.inputChars.Record(ctx, int64(inputLen), attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

// instrumented traces and measures every Embed call of a provider.
type instrumented struct {
	Provider
	model   string
	metrics *Metrics
}

// Instrument wraps p with tracing and metrics.
func Instrument(p Provider, model string, m *Metrics) Provider {
	return &instrumented{Provider: p, model: model, metrics: m}
}

func (i *instrumented) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "Embedder.Embed")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", i.Name()),
		attribute.String("model", i.model),
	)

	start := time.Now()
	v, err := i.Provider.Embed(ctx, text)
	i.metrics.RecordEmbedding(ctx, i.Name(), i.model, time.Since(start), len(text), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("dimension", len(v)))
	return v, nil
}

// Initialized reports whether a lazily created provider exists yet. Eager
// providers always are.
func (i *instrumented) Initialized() bool {
	if l, ok := i.Provider.(interface{ Initialized() bool }); ok {
		return l.Initialized()
	}
	return true
}
