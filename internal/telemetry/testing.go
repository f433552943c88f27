package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records spans and metrics in memory. NewTestTelemetry
// installs it as the otel globals and restores the previous providers when
// the test ends, so tests using it must not run in parallel.
type TestTelemetry struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

// NewTestTelemetry installs in-memory tracer and meter providers.
func NewTestTelemetry(tb testing.TB) *TestTelemetry {
	tb.Helper()
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()

	tt := &TestTelemetry{
		spans:  tracetest.NewSpanRecorder(),
		reader: sdkmetric.NewManualReader(),
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(tt.spans))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(tt.reader))
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	tb.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})
	return tt
}

// Spans returns the ended spans.
func (tt *TestTelemetry) Spans() []sdktrace.ReadOnlySpan {
	return tt.spans.Ended()
}

// Span returns the first ended span called name, or nil.
func (tt *TestTelemetry) Span(name string) sdktrace.ReadOnlySpan {
	for _, s := range tt.spans.Ended() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// Attribute returns the value of key on the span called name.
func (tt *TestTelemetry) Attribute(name string, key attribute.Key) (attribute.Value, bool) {
	s := tt.Span(name)
	if s == nil {
		return attribute.Value{}, false
	}
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

// Metric collects the current metrics and returns the one called name.
func (tt *TestTelemetry) Metric(tb testing.TB, name string) (metricdata.Metrics, bool) {
	tb.Helper()
	var rm metricdata.ResourceMetrics
	if err := tt.reader.Collect(context.Background(), &rm); err != nil {
		tb.Fatalf("collecting metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}
