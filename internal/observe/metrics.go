// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing helpers, and HTTP middleware that ties them
// together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/hitromudr/tg-translator"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TranslateDuration tracks end-to-end message translation latency.
	TranslateDuration metric.Float64Histogram

	// TranscribeDuration tracks voice-note transcription latency.
	TranscribeDuration metric.Float64Histogram

	// SynthesizeDuration tracks text-to-speech synthesis latency.
	SynthesizeDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("tier", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// FallbackServed counts requests served by a non-primary tier. Use with
	// attributes: attribute.String("kind", ...), attribute.String("tier", ...)
	FallbackServed metric.Int64Counter

	// MessagesProcessed counts handled chat messages. Use with attribute:
	//   attribute.String("mode", ...)
	MessagesProcessed metric.Int64Counter

	// CacheTakes counts pending-result claims. Use with attribute:
	//   attribute.String("status", "hit"|"miss")
	CacheTakes metric.Int64Counter

	// ActiveJobs tracks the number of in-flight update handlers.
	ActiveJobs metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// provider round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranslateDuration, err = m.Float64Histogram("tgtranslator.translate.duration",
		metric.WithDescription("Latency of message translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("tgtranslator.transcribe.duration",
		metric.WithDescription("Latency of voice-note transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesizeDuration, err = m.Float64Histogram("tgtranslator.synthesize.duration",
		metric.WithDescription("Latency of speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("tgtranslator.provider.requests",
		metric.WithDescription("Total provider requests by kind, tier, and status."),
	); err != nil {
		return nil, err
	}
	if met.FallbackServed, err = m.Int64Counter("tgtranslator.provider.fallback_served",
		metric.WithDescription("Requests served by a non-primary provider tier."),
	); err != nil {
		return nil, err
	}
	if met.MessagesProcessed, err = m.Int64Counter("tgtranslator.messages.processed",
		metric.WithDescription("Handled chat messages by mode."),
	); err != nil {
		return nil, err
	}
	if met.CacheTakes, err = m.Int64Counter("tgtranslator.cache.takes",
		metric.WithDescription("Pending-result claims by status."),
	); err != nil {
		return nil, err
	}

	if met.ActiveJobs, err = m.Int64UpDownCounter("tgtranslator.active_jobs",
		metric.WithDescription("Number of in-flight update handlers."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("tgtranslator.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordProviderRequest records one provider request with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, kind, tier, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("tier", tier),
			attribute.String("status", status),
		),
	)
}

// RecordFallback records a request served by a non-primary tier.
func (m *Metrics) RecordFallback(ctx context.Context, kind, tier string) {
	m.FallbackServed.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("tier", tier),
		),
	)
}

// RecordMessage records one processed chat message.
func (m *Metrics) RecordMessage(ctx context.Context, mode string) {
	m.MessagesProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("mode", mode)),
	)
}

// RecordCacheTake records a pending-result claim outcome.
func (m *Metrics) RecordCacheTake(ctx context.Context, hit bool) {
	status := "miss"
	if hit {
		status = "hit"
	}
	m.CacheTakes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
