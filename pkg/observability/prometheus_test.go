package observability

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusProviderCounter(t *testing.T) {
	ctx := context.Background()
	p := NewPrometheusProvider()

	labels := map[string]string{"intent": "general"}
	p.Counter(ctx, "rag_queries_total", 1, labels)
	p.Counter(ctx, "rag_queries_total", 2, labels)

	got := testutil.ToFloat64(p.counter("rag_queries_total", labels).With(labels))
	if got != 3 {
		t.Errorf("counter value = %v, want 3", got)
	}
}

func TestPrometheusProviderGaugeSets(t *testing.T) {
	ctx := context.Background()
	p := NewPrometheusProvider()

	p.Gauge(ctx, "response_cache_entries", 5, nil)
	p.Gauge(ctx, "response_cache_entries", 2, nil)

	got := testutil.ToFloat64(p.gauge("response_cache_entries", nil).With(nil))
	if got != 2 {
		t.Errorf("gauge value = %v, want 2 (set semantics)", got)
	}
}

func TestPrometheusProviderHistogramViaHandler(t *testing.T) {
	ctx := context.Background()
	p := NewPrometheusProvider()

	p.Histogram(ctx, "rag_query_duration_seconds", 0.05, nil)
	p.RecordDuration(ctx, "rag_query_duration_seconds", 200*time.Millisecond, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	p.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "rag_query_duration_seconds_bucket") {
		t.Error("scrape output missing histogram buckets")
	}
	if !strings.Contains(body, "rag_query_duration_seconds_count 2") {
		t.Errorf("scrape output missing observation count:\n%s", body)
	}
	// The runtime collectors registered at construction show up too.
	if !strings.Contains(body, "go_goroutines") {
		t.Error("scrape output missing Go runtime metrics")
	}
}

func TestPrometheusProviderReusesMetrics(t *testing.T) {
	p := NewPrometheusProvider()
	labels := map[string]string{"collection": "sec_filings"}

	first := p.counter("search_total", labels)
	second := p.counter("search_total", labels)
	if first != second {
		t.Error("same metric name produced two collectors")
	}
}
