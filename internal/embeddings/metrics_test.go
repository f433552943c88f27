package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func newTestMetrics(t *testing.T) (*Metrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := &Metrics{
		meter:  mp.Meter(embeddingsInstrumentationName),
		logger: zap.NewNop(),
	}
	m.init()
	return m, reader
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetrics_RecordEmbedding(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEmbedding(ctx, "openai", "text-embedding-3-small", 100*time.Millisecond, 42, nil)
	m.RecordEmbedding(ctx, "openai", "text-embedding-3-small", 50*time.Millisecond, 10, errors.New("boom"))

	got := collect(t, reader)

	hist, ok := got["docrag.embedding.duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)

	sizes, ok := got["docrag.embedding.input_chars"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	assert.Equal(t, int64(52), sizes.DataPoints[0].Sum)

	errs, ok := got["docrag.embedding.errors_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errs.DataPoints, 1)
	assert.Equal(t, int64(1), errs.DataPoints[0].Value)
}

func TestInstrument_PassesThrough(t *testing.T) {
	m, reader := newTestMetrics(t)
	p := Instrument(&stubProvider{vec: []float32{1, 2}}, "stub-model", m)

	v, err := p.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)
	assert.Equal(t, "stub", p.Name())
	assert.Equal(t, 2, p.Dimension())

	got := collect(t, reader)
	assert.Contains(t, got, "docrag.embedding.duration_seconds")
	assert.NotContains(t, got, "docrag.embedding.errors_total")
}

func TestInstrument_ReportsLazyInitialization(t *testing.T) {
	m, _ := newTestMetrics(t)
	lazy := NewLazyProvider("stub", 2, func() (Provider, error) {
		return &stubProvider{vec: []float32{1, 2}}, nil
	})
	p := Instrument(lazy, "stub-model", m)
	init, ok := p.(interface{ Initialized() bool })
	require.True(t, ok)

	assert.False(t, init.Initialized())
	_, err := p.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, init.Initialized())

	eager, ok := Instrument(&stubProvider{}, "stub-model", m).(interface{ Initialized() bool })
	require.True(t, ok)
	assert.True(t, eager.Initialized())
}
