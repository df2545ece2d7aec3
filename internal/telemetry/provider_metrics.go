package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/airquery/airquery/internal/telemetry"

// ProviderMetrics holds the instruments for outbound upstream calls.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

// NewProviderMetrics registers the upstream call instruments on the global
// meter provider. Call it after Init.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of upstream requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of upstream requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// RecordRequest records one upstream request.
func (m *ProviderMetrics) RecordRequest(provider, method string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("http.request.method", method),
		attribute.String("outcome", outcome),
	)

	// Recorded after the request context may already be cancelled
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
	m.requestTotal.Add(ctx, 1, attrs)
}

// LookupMetrics holds the instruments for whole pipeline runs.
type LookupMetrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

// NewLookupMetrics registers the pipeline run instruments.
func NewLookupMetrics() (*LookupMetrics, error) {
	meter := otel.Meter(meterName)

	duration, err := meter.Float64Histogram(
		"airquality.lookup.duration",
		metric.WithDescription("Duration of air quality pipeline runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	total, err := meter.Int64Counter(
		"airquality.lookup.total",
		metric.WithDescription("Air quality pipeline runs by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &LookupMetrics{duration: duration, total: total}, nil
}

// RecordLookup records one pipeline run. outcome is "ok", "not_found" or
// "transport".
func (m *LookupMetrics) RecordLookup(pipeline, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("airquality.pipeline", pipeline),
		attribute.String("outcome", outcome),
	)

	ctx := context.Background()
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	m.total.Add(ctx, 1, attrs)
}
