package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/docrag/internal/apiclient"
	"github.com/fyrsmithlabs/docrag/internal/app"
	"github.com/fyrsmithlabs/docrag/internal/generation"
	"github.com/fyrsmithlabs/docrag/internal/sanitize"
)

func TestToolMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := newToolMetrics(mp.Meter(meterName))
	require.NoError(t, err)

	ctx := context.Background()
	m.start(ctx, "search")(nil)
	m.start(ctx, "search")(nil)
	m.start(ctx, "get_document")(fmt.Errorf("loading: %w", app.ErrNotFound))
	pending := m.start(ctx, "chat")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	byName := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			byName[md.Name] = md
		}
	}

	calls := sumByTool(t, byName["docrag.mcp.tool.calls"])
	assert.Equal(t, map[string]int64{"search": 2, "get_document": 1}, calls)

	running := sumByTool(t, byName["docrag.mcp.tool.running"])
	assert.Equal(t, int64(1), running["chat"], "chat has not finished")
	assert.Zero(t, running["search"])

	failures, ok := byName["docrag.mcp.tool.failures"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, failures.DataPoints, 1)
	reason, _ := failures.DataPoints[0].Attributes.Value("reason")
	assert.Equal(t, "not_found", reason.AsString())

	latency, ok := byName["docrag.mcp.tool.latency"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var n uint64
	for _, dp := range latency.DataPoints {
		n += dp.Count
	}
	assert.Equal(t, uint64(3), n)

	pending(nil)
}

func sumByTool(t *testing.T, md metricdata.Metrics) map[string]int64 {
	t.Helper()
	sum, ok := md.Data.(metricdata.Sum[int64])
	require.True(t, ok, md.Name)
	out := map[string]int64{}
	for _, dp := range sum.DataPoints {
		tool, _ := dp.Attributes.Value(attribute.Key("mcp.tool"))
		out[tool.AsString()] += dp.Value
	}
	return out
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.Canceled, "canceled"},
		{fmt.Errorf("chat: %w", context.DeadlineExceeded), "timeout"},
		{fmt.Errorf("document d1: %w", app.ErrNotFound), "not_found"},
		{app.ErrEmptyInput, "invalid_input"},
		{sanitize.ErrPathTraversal, "path"},
		{&os.PathError{Op: "open", Path: "/x.pdf", Err: os.ErrNotExist}, "path"},
		{generation.ErrMissingCredential, "credentials"},
		{fmt.Errorf("gemini: %w", &apiclient.StatusError{Code: 403}), "credentials"},
		{&apiclient.StatusError{Code: 429, Message: "quota"}, "rate_limited"},
		{&apiclient.StatusError{Code: 503}, "provider"},
		{generation.ErrEmptyResponse, "provider"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, failureReason(tt.err))
		})
	}
}
