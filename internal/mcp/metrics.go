package mcp

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/docrag/internal/apiclient"
	"github.com/fyrsmithlabs/docrag/internal/app"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/generation"
	"github.com/fyrsmithlabs/docrag/internal/ingest"
	"github.com/fyrsmithlabs/docrag/internal/sanitize"
)

const meterName = "github.com/fyrsmithlabs/docrag/internal/mcp"

var toolKey = attribute.Key("mcp.tool")

// toolMetrics counts tool calls, their latency and failures by reason.
type toolMetrics struct {
	calls    metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
	running  metric.Int64UpDownCounter
}

func newToolMetrics(meter metric.Meter) (*toolMetrics, error) {
	var m toolMetrics
	var errs [4]error
	m.calls, errs[0] = meter.Int64Counter("docrag.mcp.tool.calls",
		metric.WithDescription("MCP tool calls"),
		metric.WithUnit("{call}"))
	m.failures, errs[1] = meter.Int64Counter("docrag.mcp.tool.failures",
		metric.WithDescription("Failed MCP tool calls by reason"),
		metric.WithUnit("{call}"))
	m.latency, errs[2] = meter.Float64Histogram("docrag.mcp.tool.latency",
		metric.WithDescription("MCP tool call latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.25, 1, 2.5, 5, 15, 30, 60, 120))
	m.running, errs[3] = meter.Int64UpDownCounter("docrag.mcp.tool.running",
		metric.WithDescription("MCP tool calls in progress"),
		metric.WithUnit("{call}"))
	return &m, errors.Join(errs[:]...)
}

// start records the beginning of a call to tool; the returned function
// records its end.
func (m *toolMetrics) start(ctx context.Context, tool string) func(error) {
	name := metric.WithAttributes(toolKey.String(tool))
	began := time.Now()
	if m.running != nil {
		m.running.Add(ctx, 1, name)
	}
	return func(err error) {
		if m.running != nil {
			m.running.Add(ctx, -1, name)
		}
		if m.calls != nil {
			m.calls.Add(ctx, 1, name)
		}
		if m.latency != nil {
			m.latency.Record(ctx, time.Since(began).Seconds(), name)
		}
		if err != nil && m.failures != nil {
			m.failures.Add(ctx, 1, metric.WithAttributes(
				toolKey.String(tool),
				attribute.String("reason", failureReason(err)),
			))
		}
	}
}

// failureReason maps err onto a low-cardinality label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, app.ErrNotFound):
		return "not_found"
	case errors.Is(err, app.ErrEmptyInput),
		errors.Is(err, embeddings.ErrEmptyInput),
		errors.Is(err, ingest.ErrEmptyDocument):
		return "invalid_input"
	case errors.Is(err, sanitize.ErrPathTraversal),
		errors.Is(err, sanitize.ErrEmptyPath),
		errors.Is(err, sanitize.ErrNotRegular),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission):
		return "path"
	case errors.Is(err, generation.ErrMissingCredential),
		errors.Is(err, embeddings.ErrMissingCredential):
		return "credentials"
	}

	switch code := apiclient.StatusCode(err); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "credentials"
	case code == http.StatusTooManyRequests:
		return "rate_limited"
	case code >= 400:
		return "provider"
	}
	if errors.Is(err, generation.ErrEmptyResponse) || errors.Is(err, embeddings.ErrEmbeddingFailed) {
		return "provider"
	}
	return "internal"
}
