package middleware

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vetpms/backend/internal/infrastructure/telemetry"
)

// Metric names recorded by HTTPMetrics
const (
	MetricRequests       = "http.server.requests"
	MetricDuration       = "http.server.duration"
	MetricResponseSize   = "http.server.response.size"
	MetricActiveRequests = "http.server.active_requests"
)

// unmatchedRoute labels requests no route matched, so raw paths never become
// label values.
const unmatchedRoute = "unmatched"

var responseSizeBuckets = []float64{128, 512, 1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10}

type httpInstruments struct {
	requests *telemetry.Counter
	duration *telemetry.Histogram
	size     *telemetry.Histogram
	active   metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	var (
		in   httpInstruments
		errs [4]error
	)
	in.requests, errs[0] = telemetry.NewCounter(meter, MetricRequests, "HTTP requests served", "{request}")
	in.duration, errs[1] = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        MetricDuration,
		Description: "Time to serve an HTTP request",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	in.size, errs[2] = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        MetricResponseSize,
		Description: "Size of HTTP response bodies",
		Unit:        "By",
		Boundaries:  responseSizeBuckets,
	})
	in.active, errs[3] = meter.Int64UpDownCounter(MetricActiveRequests,
		metric.WithDescription("HTTP requests in flight"),
		metric.WithUnit("{request}"))
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &in, nil
}

// HTTPMetrics counts requests and records their latency and response size,
// labelled by method and route pattern. A nil meter disables it. Instrument
// registration errors go to the otel error handler and also disable it.
func HTTPMetrics(meter metric.Meter) gin.HandlerFunc {
	if meter == nil {
		return passThrough
	}
	in, err := newHTTPInstruments(meter)
	if err != nil {
		otel.Handle(err)
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		in.active.Add(ctx, 1)
		defer in.active.Add(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		attrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}
		in.duration.RecordDuration(ctx, time.Since(start), attrs...)
		if size := c.Writer.Size(); size > 0 {
			in.size.Record(ctx, float64(size), attrs...)
		}
		in.requests.Inc(ctx, append(attrs, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))...)
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}
