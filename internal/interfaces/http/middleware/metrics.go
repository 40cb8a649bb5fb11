package middleware

import (
	"errors"
	"time"

	"github.com/editdesk/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// bodySizeBuckets run from 100B to 1GB, uploads fill the top
var bodySizeBuckets = []float64{1e2, 1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9}

type httpInstruments struct {
	requests  *telemetry.Counter
	latency   *telemetry.Histogram
	reqBytes  *telemetry.Histogram
	respBytes *telemetry.Histogram
	inflight  metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	var errs []error
	collect := func(err error) { errs = append(errs, err) }

	in := &httpInstruments{}
	var err error
	in.requests, err = telemetry.NewCounter(meter, "http_server_request_total", "HTTP requests served", "{request}")
	collect(err)
	in.latency, err = telemetry.NewHistogram(meter, "http_server_request_duration_seconds", "HTTP request latency", "s", telemetry.HTTPDurationBuckets)
	collect(err)
	in.reqBytes, err = telemetry.NewHistogram(meter, "http_server_request_size_bytes", "HTTP request body size", "By", bodySizeBuckets)
	collect(err)
	in.respBytes, err = telemetry.NewHistogram(meter, "http_server_response_size_bytes", "HTTP response body size", "By", bodySizeBuckets)
	collect(err)
	in.inflight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("HTTP requests in flight"), metric.WithUnit("{request}"))
	collect(err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return in, nil
}

// HTTPMetrics counts and times requests per route pattern and tracks body
// sizes and requests in flight. With a nil meter, or when the instruments
// cannot be created, requests pass through unmeasured.
func HTTPMetrics(meter metric.Meter, logger *zap.Logger) gin.HandlerFunc {
	passthrough := func(c *gin.Context) { c.Next() }
	if meter == nil {
		return passthrough
	}
	in, err := newHTTPInstruments(meter)
	if err != nil {
		if logger != nil {
			logger.Warn("http metrics disabled", zap.Error(err))
		}
		return passthrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		in.inflight.Add(ctx, 1)
		defer in.inflight.Add(ctx, -1)
		c.Next()

		route := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(routePattern(c)),
		}
		in.requests.Inc(ctx, append(route, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))...)
		in.latency.RecordDuration(ctx, time.Since(start), route...)
		if n := c.Request.ContentLength; n > 0 {
			in.reqBytes.Record(ctx, float64(n), route...)
		}
		if n := c.Writer.Size(); n > 0 {
			in.respBytes.Record(ctx, float64(n), route...)
		}
	}
}

// routePattern labels by the matched route so ids never become label values
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}
