// Package observability provides the toolkit's instrumentation backends:
// metrics behind MetricsProvider (Prometheus or in-memory), distributed
// tracing behind TracerProvider (OTLP export or in-memory), and dependency
// health checks that aggregate into a JSON report.
//
// Components take the provider interfaces, never a concrete backend, so a
// deployment can export to a Prometheus scrape endpoint and a Jaeger or
// Tempo collector while tests swap in the in-memory providers and assert
// on what was recorded.
//
// Example usage:
//
//	metrics := observability.NewPrometheusProvider()
//	tracer, err := observability.NewOTLPTracerProvider("filigree", "localhost:4317")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.StartSpan(ctx, "ingest-filing")
//	metrics.Counter(ctx, "filings_ingested_total", 1, map[string]string{"form": "10-K"})
//	span.End(nil)
//
//	http.Handle("/metrics", metrics.Handler())
package observability

import (
	"context"
	"time"
)

// MetricsProvider records counters, gauges and histograms.
//
// Implementations must be safe for concurrent use. A metric's label key
// set is fixed by its first recording; later calls for the same name must
// carry the same keys.
type MetricsProvider interface {
	// Counter adds value to a cumulative counter.
	Counter(ctx context.Context, name string, value int64, labels map[string]string)

	// Gauge sets a gauge to the given value.
	Gauge(ctx context.Context, name string, value float64, labels map[string]string)

	// Histogram records one observation.
	Histogram(ctx context.Context, name string, value float64, labels map[string]string)

	// RecordDuration records a duration, in seconds, as a histogram
	// observation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, labels map[string]string)
}

// TracerProvider starts trace spans.
//
// The returned context carries the span, so child operations started from
// it nest under the parent trace.
type TracerProvider interface {
	// StartSpan starts a span. Always End the returned span exactly once.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)

	// Shutdown flushes pending spans and releases exporter resources.
	Shutdown(ctx context.Context) error
}

// Span is one traced operation.
type Span interface {
	// End completes the span. A non-nil err records the error and marks
	// the span failed.
	End(err error)

	// SetAttribute attaches a key-value attribute.
	SetAttribute(key string, value any)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs map[string]any)

	// SetStatus sets the span status explicitly.
	SetStatus(code SpanStatus, description string)

	// SpanContext returns the span's trace and span identifiers, for log
	// correlation.
	SpanContext() SpanContext
}

// SpanContext identifies a span within its trace.
type SpanContext struct {
	TraceID string
	SpanID  string
}

// SpanStatus is the outcome recorded on a span.
type SpanStatus int

// Span statuses.
const (
	SpanStatusUnset SpanStatus = iota
	SpanStatusOK
	SpanStatusError
)

// SpanKind describes a span's relationship to its trace neighbors.
type SpanKind int

// Span kinds, mirroring the OpenTelemetry kinds.
const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
	SpanKindProducer
	SpanKindConsumer
)

// SpanOption configures span creation.
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind       SpanKind
	attributes map[string]any
}

// WithSpanKind sets the span kind. The default is SpanKindInternal.
func WithSpanKind(kind SpanKind) SpanOption {
	return func(cfg *spanConfig) {
		cfg.kind = kind
	}
}

// WithAttributes sets attributes present from the moment the span starts.
func WithAttributes(attrs map[string]any) SpanOption {
	return func(cfg *spanConfig) {
		cfg.attributes = attrs
	}
}

func newSpanConfig(opts []SpanOption) *spanConfig {
	cfg := &spanConfig{
		kind:       SpanKindInternal,
		attributes: make(map[string]any),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
