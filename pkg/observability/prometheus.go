package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusProvider implements MetricsProvider on the Prometheus client
// library. Metrics are created lazily on first recording and registered on
// the provider's registry; expose them with Handler.
type PrometheusProvider struct {
	mu         sync.RWMutex
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec

	buckets []float64
}

var _ MetricsProvider = (*PrometheusProvider)(nil)

// PrometheusOption configures the Prometheus provider.
type PrometheusOption func(*PrometheusProvider)

// WithBuckets sets the histogram buckets. The defaults span 1ms to 10s,
// which fits query and ingestion latencies recorded in seconds.
func WithBuckets(buckets []float64) PrometheusOption {
	return func(p *PrometheusProvider) {
		p.buckets = buckets
	}
}

// WithRegistry uses an existing Prometheus registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) PrometheusOption {
	return func(p *PrometheusProvider) {
		p.registry = registry
	}
}

// NewPrometheusProvider creates a Prometheus metrics provider. A fresh
// registry is created unless WithRegistry overrides it, and the Go runtime
// and process collectors are registered on it.
func NewPrometheusProvider(opts ...PrometheusOption) *PrometheusProvider {
	p := &PrometheusProvider{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		buckets: []float64{
			0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	p.registry.MustRegister(collectors.NewGoCollector())
	p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return p
}

// Counter adds value to a counter.
func (p *PrometheusProvider) Counter(_ context.Context, name string, value int64, labels map[string]string) {
	p.counter(name, labels).With(labels).Add(float64(value))
}

// Gauge sets a gauge to value.
func (p *PrometheusProvider) Gauge(_ context.Context, name string, value float64, labels map[string]string) {
	p.gauge(name, labels).With(labels).Set(value)
}

// Histogram records one observation.
func (p *PrometheusProvider) Histogram(_ context.Context, name string, value float64, labels map[string]string) {
	p.histogram(name, labels).With(labels).Observe(value)
}

// RecordDuration records duration.Seconds() as a histogram observation.
func (p *PrometheusProvider) RecordDuration(_ context.Context, name string, duration time.Duration, labels map[string]string) {
	p.histogram(name, labels).With(labels).Observe(duration.Seconds())
}

// Handler returns the HTTP handler Prometheus scrapes.
func (p *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry, for registering collectors the
// provider does not manage (GaugeFuncs reading component stats, say).
func (p *PrometheusProvider) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusProvider) counter(name string, labels map[string]string) *prometheus.CounterVec {
	p.mu.RLock()
	c, ok := p.counters[name]
	p.mu.RUnlock()
	if ok {
		return c
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok = p.counters[name]; ok {
		return c
	}

	c = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: "Counter " + name,
	}, labelNames(labels))
	p.registry.MustRegister(c)
	p.counters[name] = c
	return c
}

func (p *PrometheusProvider) gauge(name string, labels map[string]string) *prometheus.GaugeVec {
	p.mu.RLock()
	g, ok := p.gauges[name]
	p.mu.RUnlock()
	if ok {
		return g
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok = p.gauges[name]; ok {
		return g
	}

	g = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: "Gauge " + name,
	}, labelNames(labels))
	p.registry.MustRegister(g)
	p.gauges[name] = g
	return g
}

func (p *PrometheusProvider) histogram(name string, labels map[string]string) *prometheus.HistogramVec {
	p.mu.RLock()
	h, ok := p.histograms[name]
	p.mu.RUnlock()
	if ok {
		return h
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok = p.histograms[name]; ok {
		return h
	}

	h = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    "Histogram " + name,
		Buckets: p.buckets,
	}, labelNames(labels))
	p.registry.MustRegister(h)
	p.histograms[name] = h
	return h
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	return names
}
