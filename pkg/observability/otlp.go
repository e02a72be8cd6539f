package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// OTLPTracerProvider implements TracerProvider by exporting spans over the
// OpenTelemetry protocol. Any OTLP-compatible collector works as the
// backend: Jaeger, Grafana Tempo, a vendor agent, or the reference
// collector.
type OTLPTracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

var _ TracerProvider = (*OTLPTracerProvider)(nil)

// OTLPConfig holds OTLP exporter settings. Most deployments only set
// ServiceName and Endpoint.
type OTLPConfig struct {
	// ServiceName identifies this process in traces. Required.
	ServiceName string
	// ServiceVersion is attached to every exported span. Optional.
	ServiceVersion string
	// Endpoint is the collector address. Optional. 4317 is the
	// conventional gRPC port, 4318 the HTTP one.
	Endpoint string
	// UseHTTP exports over HTTP instead of gRPC. Optional.
	UseHTTP bool
	// Insecure disables TLS on the export connection. Optional. Defaults
	// to true, which suits local collectors; production endpoints should
	// unset it and use proper certificates.
	Insecure bool
	// Headers are sent with every export request, for collector
	// authentication. Optional.
	Headers map[string]string
	// SampleRate is the fraction of traces recorded, 0 through 1.
	// Optional. Defaults to 1, recording everything.
	SampleRate float64
	// BatchTimeout is how long spans buffer before export. Optional.
	// Defaults to 5s.
	BatchTimeout time.Duration
}

// DefaultOTLPConfig returns the default configuration for a service name
// and collector endpoint.
func DefaultOTLPConfig(serviceName, endpoint string) OTLPConfig {
	return OTLPConfig{
		ServiceName:  serviceName,
		Endpoint:     endpoint,
		Insecure:     true,
		SampleRate:   1.0,
		BatchTimeout: 5 * time.Second,
	}
}

// OTLPOption configures the OTLP tracer provider.
type OTLPOption func(*OTLPConfig)

// WithServiceVersion sets the version attached to exported spans.
func WithServiceVersion(version string) OTLPOption {
	return func(cfg *OTLPConfig) {
		cfg.ServiceVersion = version
	}
}

// WithHTTPExporter exports over HTTP instead of gRPC.
func WithHTTPExporter() OTLPOption {
	return func(cfg *OTLPConfig) {
		cfg.UseHTTP = true
	}
}

// WithSecure enables TLS on the export connection.
func WithSecure() OTLPOption {
	return func(cfg *OTLPConfig) {
		cfg.Insecure = false
	}
}

// WithExportHeaders sets headers sent with every export request.
func WithExportHeaders(headers map[string]string) OTLPOption {
	return func(cfg *OTLPConfig) {
		cfg.Headers = headers
	}
}

// WithSampleRate sets the fraction of traces recorded.
func WithSampleRate(rate float64) OTLPOption {
	return func(cfg *OTLPConfig) {
		cfg.SampleRate = rate
	}
}

// NewOTLPTracerProvider connects to an OTLP collector and returns a tracer
// provider exporting to it. The provider is also installed as the global
// OpenTelemetry tracer provider with W3C trace-context propagation, so
// instrumented libraries lower in the stack join the same traces.
//
// Call Shutdown before exit to flush buffered spans.
func NewOTLPTracerProvider(serviceName, endpoint string, opts ...OTLPOption) (*OTLPTracerProvider, error) {
	cfg := DefaultOTLPConfig(serviceName, endpoint)
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &OTLPTracerProvider{
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
	}, nil
}

// StartSpan starts an exported span.
func (p *OTLPTracerProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	cfg := newSpanConfig(opts)

	var kind trace.SpanKind
	switch cfg.kind {
	case SpanKindServer:
		kind = trace.SpanKindServer
	case SpanKindClient:
		kind = trace.SpanKindClient
	case SpanKindProducer:
		kind = trace.SpanKindProducer
	case SpanKindConsumer:
		kind = trace.SpanKindConsumer
	default:
		kind = trace.SpanKindInternal
	}

	ctx, otelSpan := p.tracer.Start(ctx, name, trace.WithSpanKind(kind))
	for k, v := range cfg.attributes {
		otelSpan.SetAttributes(anyToAttribute(k, v))
	}

	return ctx, &otlpSpan{span: otelSpan}
}

// Shutdown flushes pending spans and shuts the exporter down.
func (p *OTLPTracerProvider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

type otlpSpan struct {
	span trace.Span
}

func (s *otlpSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

func (s *otlpSpan) SetAttribute(key string, value any) {
	s.span.SetAttributes(anyToAttribute(key, value))
}

func (s *otlpSpan) AddEvent(name string, attrs map[string]any) {
	otelAttrs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		otelAttrs = append(otelAttrs, anyToAttribute(k, v))
	}
	s.span.AddEvent(name, trace.WithAttributes(otelAttrs...))
}

func (s *otlpSpan) SetStatus(code SpanStatus, description string) {
	switch code {
	case SpanStatusOK:
		s.span.SetStatus(codes.Ok, description)
	case SpanStatusError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetStatus(codes.Unset, description)
	}
}

func (s *otlpSpan) SpanContext() SpanContext {
	sc := s.span.SpanContext()
	return SpanContext{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

func anyToAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case []int:
		return attribute.IntSlice(key, v)
	case []float64:
		return attribute.Float64Slice(key, v)
	default:
		return attribute.String(key, "")
	}
}

func newExporter(ctx context.Context, cfg OTLPConfig) (*otlptrace.Exporter, error) {
	if cfg.UseHTTP {
		options := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			options = append(options, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			options = append(options, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, options...)
	}

	options := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		options = append(options, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		options = append(options, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, options...)
}
