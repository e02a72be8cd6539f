package observability

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NoopMetricsProvider discards every metric. It is the default wired into
// components when no provider is configured.
type NoopMetricsProvider struct{}

var _ MetricsProvider = (*NoopMetricsProvider)(nil)

func (NoopMetricsProvider) Counter(context.Context, string, int64, map[string]string) {}

func (NoopMetricsProvider) Gauge(context.Context, string, float64, map[string]string) {}

func (NoopMetricsProvider) Histogram(context.Context, string, float64, map[string]string) {}

func (NoopMetricsProvider) RecordDuration(context.Context, string, time.Duration, map[string]string) {
}

// NoopTracerProvider discards every span.
type NoopTracerProvider struct{}

var _ TracerProvider = (*NoopTracerProvider)(nil)

// StartSpan returns a span that records nothing.
func (NoopTracerProvider) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

// Shutdown does nothing.
func (NoopTracerProvider) Shutdown(context.Context) error { return nil }

type noopSpan struct{}

func (noopSpan) End(error) {}

func (noopSpan) SetAttribute(string, any) {}

func (noopSpan) AddEvent(string, map[string]any) {}

func (noopSpan) SetStatus(SpanStatus, string) {}

func (noopSpan) SpanContext() SpanContext { return SpanContext{} }

// InMemoryMetricsProvider stores metrics in memory so tests can assert on
// what a component recorded.
type InMemoryMetricsProvider struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

var _ MetricsProvider = (*InMemoryMetricsProvider)(nil)

// NewInMemoryMetricsProvider creates an empty in-memory provider.
func NewInMemoryMetricsProvider() *InMemoryMetricsProvider {
	return &InMemoryMetricsProvider{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

// Counter adds value to a counter.
func (p *InMemoryMetricsProvider) Counter(_ context.Context, name string, value int64, labels map[string]string) {
	key := metricKey(name, labels)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[key] += value
}

// Gauge sets a gauge to value.
func (p *InMemoryMetricsProvider) Gauge(_ context.Context, name string, value float64, labels map[string]string) {
	key := metricKey(name, labels)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gauges[key] = value
}

// Histogram records one observation.
func (p *InMemoryMetricsProvider) Histogram(_ context.Context, name string, value float64, labels map[string]string) {
	key := metricKey(name, labels)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.histograms[key] = append(p.histograms[key], value)
}

// RecordDuration records duration.Seconds() as a histogram observation.
func (p *InMemoryMetricsProvider) RecordDuration(ctx context.Context, name string, duration time.Duration, labels map[string]string) {
	p.Histogram(ctx, name, duration.Seconds(), labels)
}

// GetCounter returns the counter's current value.
func (p *InMemoryMetricsProvider) GetCounter(name string, labels map[string]string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counters[metricKey(name, labels)]
}

// GetGauge returns the gauge's current value.
func (p *InMemoryMetricsProvider) GetGauge(name string, labels map[string]string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gauges[metricKey(name, labels)]
}

// GetHistogram returns every recorded observation, oldest first.
func (p *InMemoryMetricsProvider) GetHistogram(name string, labels map[string]string) []float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	values := p.histograms[metricKey(name, labels)]
	out := make([]float64, len(values))
	copy(out, values)
	return out
}

// Reset clears all recorded metrics.
func (p *InMemoryMetricsProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters = make(map[string]int64)
	p.gauges = make(map[string]float64)
	p.histograms = make(map[string][]float64)
}

// metricKey flattens a name and label set into one deterministic key.
// Label order must not matter, so keys are sorted.
func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(labels[k])
	}
	return b.String()
}

// InMemoryTracerProvider records completed spans in memory so tests can
// assert on span names, attributes and outcomes.
type InMemoryTracerProvider struct {
	mu    sync.RWMutex
	spans []*RecordedSpan
}

var _ TracerProvider = (*InMemoryTracerProvider)(nil)

// RecordedSpan is a completed span captured by the in-memory tracer.
type RecordedSpan struct {
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	Attributes map[string]any
	Events     []RecordedEvent
	Status     SpanStatus
	StatusDesc string
	Err        error
	TraceID    string
	SpanID     string
}

// RecordedEvent is one event captured within a recorded span.
type RecordedEvent struct {
	Name       string
	Attributes map[string]any
	Time       time.Time
}

// NewInMemoryTracerProvider creates an empty in-memory tracer.
func NewInMemoryTracerProvider() *InMemoryTracerProvider {
	return &InMemoryTracerProvider{}
}

// StartSpan starts a span that is recorded when ended.
func (p *InMemoryTracerProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	cfg := newSpanConfig(opts)

	span := &RecordedSpan{
		Name:       name,
		StartTime:  time.Now(),
		Attributes: make(map[string]any, len(cfg.attributes)),
		TraceID:    uuid.NewString(),
		SpanID:     uuid.NewString(),
	}
	for k, v := range cfg.attributes {
		span.Attributes[k] = v
	}

	return ctx, &inMemorySpan{provider: p, span: span}
}

// Shutdown does nothing.
func (p *InMemoryTracerProvider) Shutdown(context.Context) error { return nil }

// Spans returns every recorded span in completion order.
func (p *InMemoryTracerProvider) Spans() []*RecordedSpan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*RecordedSpan, len(p.spans))
	copy(out, p.spans)
	return out
}

// SpansByName returns recorded spans with the given name.
func (p *InMemoryTracerProvider) SpansByName(name string) []*RecordedSpan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*RecordedSpan
	for _, span := range p.spans {
		if span.Name == name {
			out = append(out, span)
		}
	}
	return out
}

// Reset clears all recorded spans.
func (p *InMemoryTracerProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spans = nil
}

func (p *InMemoryTracerProvider) record(span *RecordedSpan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spans = append(p.spans, span)
}

type inMemorySpan struct {
	provider *InMemoryTracerProvider
	span     *RecordedSpan
}

func (s *inMemorySpan) End(err error) {
	s.span.EndTime = time.Now()
	s.span.Err = err
	s.provider.record(s.span)
}

func (s *inMemorySpan) SetAttribute(key string, value any) {
	s.span.Attributes[key] = value
}

func (s *inMemorySpan) AddEvent(name string, attrs map[string]any) {
	s.span.Events = append(s.span.Events, RecordedEvent{
		Name:       name,
		Attributes: attrs,
		Time:       time.Now(),
	})
}

func (s *inMemorySpan) SetStatus(code SpanStatus, description string) {
	s.span.Status = code
	s.span.StatusDesc = description
}

func (s *inMemorySpan) SpanContext() SpanContext {
	return SpanContext{TraceID: s.span.TraceID, SpanID: s.span.SpanID}
}
