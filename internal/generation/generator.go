package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/conversation"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/docrag/internal/generation"

var tracer = otel.Tracer(instrumentationName)

const (
	// ErrorMarker prefixes answers that describe a failure.
	ErrorMarker = "System Error: "

	// NoResponse is returned when the provider answered with no text.
	NoResponse = "No response."
)

// Config configures a Generator.
type Config struct {
	Provider ProviderConfig
	// Identity opens every system prompt. Defaults to DefaultIdentity.
	Identity string
	// HistoryWindow is the number of recent non-system turns sent.
	HistoryWindow int
	// Personas defaults to DefaultPersonas.
	Personas *Personas
}

// Generator builds grounded prompts and dispatches them to a provider.
type Generator struct {
	provider Provider
	// setupErr is reported by every Respond when no provider could be built.
	setupErr error
	identity string
	window   int
	personas *Personas
	logger   *zap.Logger

	duration metric.Float64Histogram
	failures metric.Int64Counter
}

// New creates a generator. An unusable provider does not fail construction;
// each answer reports the problem instead.
func New(cfg Config, logger *zap.Logger) *Generator {
	provider, err := NewProvider(cfg.Provider)
	return newGenerator(provider, err, cfg, logger)
}

// NewWithProvider creates a generator around an existing provider.
func NewWithProvider(p Provider, cfg Config, logger *zap.Logger) *Generator {
	return newGenerator(p, nil, cfg, logger)
}

func newGenerator(p Provider, setupErr error, cfg Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Identity == "" {
		cfg.Identity = DefaultIdentity
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = document.DefaultHistoryWindow
	}
	if cfg.Personas == nil {
		cfg.Personas = DefaultPersonas()
	}
	if setupErr != nil {
		logger.Warn("generation provider unavailable",
			zap.String("provider", cfg.Provider.Provider),
			zap.Error(setupErr),
		)
	}

	g := &Generator{
		provider: p,
		setupErr: setupErr,
		identity: cfg.Identity,
		window:   cfg.HistoryWindow,
		personas: cfg.Personas,
		logger:   logger,
	}

	meter := otel.Meter(instrumentationName)
	var err error
	g.duration, err = meter.Float64Histogram(
		"docrag.generation.duration_seconds",
		metric.WithDescription("Duration of generation calls in seconds, labeled by provider and persona"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}
	g.failures, err = meter.Int64Counter(
		"docrag.generation.failures_total",
		metric.WithDescription("Generation calls answered with an error message"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		logger.Warn("failed to create failures counter", zap.Error(err))
	}
	return g
}

// Personas returns the persona set in use.
func (g *Generator) Personas() *Personas { return g.personas }

// Respond answers the latest turn of history using chunks as context. It
// never fails: errors become an answer starting with ErrorMarker.
func (g *Generator) Respond(ctx context.Context, history []conversation.Turn, chunks []document.Chunk, persona string) string {
	p := g.personas.Lookup(persona)

	ctx, span := tracer.Start(ctx, "Generator.Respond")
	defer span.End()
	span.SetAttributes(
		attribute.String("persona", p.Name),
		attribute.Int("chunks", len(chunks)),
	)

	if g.setupErr != nil {
		g.recordFailure(ctx, span, g.setupErr)
		return ErrorMarker + g.setupErr.Error()
	}

	req := Request{
		System:      SystemPrompt(g.identity, p, chunks),
		History:     conversation.Window(history, g.window),
		Temperature: p.Temperature,
	}
	span.SetAttributes(attribute.String("provider", g.provider.Name()))

	start := time.Now()
	answer, err := g.provider.Complete(ctx, req)
	if g.duration != nil {
		g.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("provider", g.provider.Name()),
			attribute.String("persona", p.Name),
		))
	}
	if err != nil {
		logging.For(ctx, g.logger).Warn("generation failed",
			zap.String("provider", g.provider.Name()),
			zap.Error(err),
		)
		g.recordFailure(ctx, span, err)
		return ErrorMarker + errorMessage(err)
	}

	if strings.TrimSpace(answer) == "" {
		span.AddEvent("empty answer")
		return NoResponse
	}
	return answer
}

func (g *Generator) recordFailure(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if g.failures != nil {
		g.failures.Add(ctx, 1)
	}
}

// errorMessage turns err into the text shown to the user.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	default:
		return err.Error()
	}
}
