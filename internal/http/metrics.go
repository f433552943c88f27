package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const meterName = "github.com/fyrsmithlabs/docrag/internal/http"

// unmatchedRoute labels requests no route matched, keeping raw paths out
// of the metric attributes.
const unmatchedRoute = "unmatched"

// apiMetrics instruments every API request.
type apiMetrics struct {
	requests    metric.Int64Counter
	duration    metric.Float64Histogram
	inFlight    metric.Int64UpDownCounter
	requestSize metric.Int64Histogram
}

// newAPIMetrics creates the instruments on meter. The returned metrics are
// usable even with an error; failed instruments record nothing.
func newAPIMetrics(meter metric.Meter) (*apiMetrics, error) {
	var m apiMetrics
	var errs [4]error
	m.requests, errs[0] = meter.Int64Counter("docrag.http.requests",
		metric.WithDescription("API requests by method, route and status"),
		metric.WithUnit("{request}"))
	m.duration, errs[1] = meter.Float64Histogram("docrag.http.duration",
		metric.WithDescription("API request latency; chat and upload dominate the upper buckets"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 15, 30, 60))
	m.inFlight, errs[2] = meter.Int64UpDownCounter("docrag.http.in_flight",
		metric.WithDescription("API requests being served"),
		metric.WithUnit("{request}"))
	m.requestSize, errs[3] = meter.Int64Histogram("docrag.http.request_size",
		metric.WithDescription("Declared request body size, mostly document uploads"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(1<<10, 16<<10, 256<<10, 1<<20, 8<<20, 32<<20))
	return &m, errors.Join(errs[:]...)
}

func routeLabel(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return unmatchedRoute
}

// middleware records one request. Error returns are resolved to their
// status before recording so failed requests are not counted as 200.
func (m *apiMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()
		method := semconv.HTTPRequestMethodKey.String(req.Method)

		if m.inFlight != nil {
			m.inFlight.Add(ctx, 1, metric.WithAttributes(method))
			defer m.inFlight.Add(ctx, -1, metric.WithAttributes(method))
		}

		start := time.Now()
		err := next(c)
		elapsed := time.Since(start).Seconds()

		status := c.Response().Status
		if err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			} else if !c.Response().Committed {
				status = http.StatusInternalServerError
			}
		}
		attrs := metric.WithAttributes(
			method,
			semconv.HTTPRoute(routeLabel(c)),
			semconv.HTTPResponseStatusCode(status),
		)
		if m.requests != nil {
			m.requests.Add(ctx, 1, attrs)
		}
		if m.duration != nil {
			m.duration.Record(ctx, elapsed, attrs)
		}
		if m.requestSize != nil && req.ContentLength > 0 {
			m.requestSize.Record(ctx, req.ContentLength,
				metric.WithAttributes(semconv.HTTPRoute(routeLabel(c))))
		}
		return err
	}
}
