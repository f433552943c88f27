package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestAPIMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := newAPIMetrics(mp.Meter(meterName))
	require.NoError(t, err)

	e := echo.New()
	e.Use(m.middleware)
	e.GET("/api/v1/documents/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound, "document not found")
		}
		return c.String(http.StatusOK, "doc")
	})
	e.POST("/api/v1/documents", func(c echo.Context) error {
		return c.NoContent(http.StatusAccepted)
	})

	for _, r := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/documents/a1", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/documents/b2", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/documents/missing", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader("%PDF-1.7 body")),
		httptest.NewRequest(http.MethodGet, "/nowhere/42", nil),
	} {
		e.ServeHTTP(httptest.NewRecorder(), r)
	}

	got := collect(t, reader)

	requests, ok := got["docrag.http.requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[string]int64{}
	var total int64
	for _, dp := range requests.DataPoints {
		route, _ := dp.Attributes.Value(attribute.Key("http.route"))
		status, _ := dp.Attributes.Value(attribute.Key("http.response.status_code"))
		total += dp.Value
		if strings.HasPrefix(route.AsString(), "/api/") {
			counts[route.AsString()+" "+status.Emit()] += dp.Value
		}
		assert.NotContains(t, route.AsString(), "42", "raw paths never reach the route label")
	}
	assert.Equal(t, int64(5), total)
	assert.Equal(t, map[string]int64{
		"/api/v1/documents/:id 200": 2,
		"/api/v1/documents/:id 404": 1,
		"/api/v1/documents 202":     1,
	}, counts)

	duration, ok := got["docrag.http.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var recorded uint64
	for _, dp := range duration.DataPoints {
		recorded += dp.Count
	}
	assert.Equal(t, uint64(5), recorded)

	size, ok := got["docrag.http.request_size"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, size.DataPoints, 1, "only the upload carries a body")
	assert.Equal(t, int64(len("%PDF-1.7 body")), size.DataPoints[0].Sum)

	inFlight, ok := got["docrag.http.in_flight"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range inFlight.DataPoints {
		assert.Zero(t, dp.Value, "every request finished")
	}
}
