package telemetry

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/smartcampus"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// API metrics
	RequestsTotal     metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	UnauthorizedTotal metric.Int64Counter

	// Session metrics
	AuthOperationsTotal  metric.Int64Counter
	DemoFallbacksTotal   metric.Int64Counter
	OfflineRestoresTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.RequestsTotal, _ = meter.Int64Counter(
		"smartcampus.api.requests.total",
		metric.WithDescription("Total number of API requests"),
		metric.WithUnit("{request}"),
	)

	m.RequestDuration, _ = meter.Float64Histogram(
		"smartcampus.api.request.duration",
		metric.WithDescription("Duration of API requests"),
		metric.WithUnit("ms"),
	)

	m.UnauthorizedTotal, _ = meter.Int64Counter(
		"smartcampus.api.unauthorized.total",
		metric.WithDescription("Total number of 401 responses that ended a session"),
		metric.WithUnit("{response}"),
	)

	m.AuthOperationsTotal, _ = meter.Int64Counter(
		"smartcampus.auth.operations.total",
		metric.WithDescription("Total number of session operations by outcome"),
		metric.WithUnit("{operation}"),
	)

	m.DemoFallbacksTotal, _ = meter.Int64Counter(
		"smartcampus.auth.demo_fallbacks.total",
		metric.WithDescription("Total number of logins served by the demo directory"),
		metric.WithUnit("{login}"),
	)

	m.OfflineRestoresTotal, _ = meter.Int64Counter(
		"smartcampus.auth.offline_restores.total",
		metric.WithDescription("Total number of sessions restored from the cached user record"),
		metric.WithUnit("{session}"),
	)

	return m
}

// RecordRequest records an API call. A status of 0 means the request never got a response.
func RecordRequest(ctx context.Context, method string, status int, d time.Duration) {
	m := GetMetrics()
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", strconv.Itoa(status)),
	)

	if m.RequestsTotal != nil {
		m.RequestsTotal.Add(ctx, 1, attrs)
	}
	if m.RequestDuration != nil {
		m.RequestDuration.Record(ctx, float64(d.Microseconds())/1000, attrs)
	}
}

// RecordUnauthorized counts a session ended by a 401.
func RecordUnauthorized(ctx context.Context) {
	if c := GetMetrics().UnauthorizedTotal; c != nil {
		c.Add(ctx, 1)
	}
}

// RecordAuth counts a session operation, e.g. ("login", "success").
func RecordAuth(ctx context.Context, operation, outcome string) {
	if c := GetMetrics().AuthOperationsTotal; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		))
	}
}

// RecordDemoFallback counts a login served by the demo directory.
func RecordDemoFallback(ctx context.Context) {
	if c := GetMetrics().DemoFallbacksTotal; c != nil {
		c.Add(ctx, 1)
	}
}

// RecordOfflineRestore counts a session restored without server confirmation.
func RecordOfflineRestore(ctx context.Context) {
	if c := GetMetrics().OfflineRestoresTotal; c != nil {
		c.Add(ctx, 1)
	}
}
