package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryMetricsProvider(t *testing.T) {
	ctx := context.Background()
	p := NewInMemoryMetricsProvider()

	t.Run("counter accumulates", func(t *testing.T) {
		p.Counter(ctx, "queries_total", 1, nil)
		p.Counter(ctx, "queries_total", 2, nil)
		if got := p.GetCounter("queries_total", nil); got != 3 {
			t.Errorf("GetCounter = %d, want 3", got)
		}
	})

	t.Run("gauge sets rather than adds", func(t *testing.T) {
		p.Gauge(ctx, "cache_entries", 5, nil)
		p.Gauge(ctx, "cache_entries", 2, nil)
		if got := p.GetGauge("cache_entries", nil); got != 2 {
			t.Errorf("GetGauge = %v, want 2", got)
		}
	})

	t.Run("histogram keeps every observation", func(t *testing.T) {
		p.Histogram(ctx, "latency", 0.25, nil)
		p.RecordDuration(ctx, "latency", 1500*time.Millisecond, nil)

		got := p.GetHistogram("latency", nil)
		if len(got) != 2 {
			t.Fatalf("GetHistogram returned %d values, want 2", len(got))
		}
		if got[0] != 0.25 || got[1] != 1.5 {
			t.Errorf("GetHistogram = %v, want [0.25 1.5]", got)
		}
	})

	t.Run("label order does not matter", func(t *testing.T) {
		p.Counter(ctx, "hits", 1, map[string]string{"a": "1", "b": "2"})
		p.Counter(ctx, "hits", 1, map[string]string{"b": "2", "a": "1"})
		if got := p.GetCounter("hits", map[string]string{"a": "1", "b": "2"}); got != 2 {
			t.Errorf("GetCounter = %d, want 2", got)
		}
	})

	t.Run("reset clears everything", func(t *testing.T) {
		p.Reset()
		if got := p.GetCounter("queries_total", nil); got != 0 {
			t.Errorf("GetCounter after Reset = %d, want 0", got)
		}
		if got := p.GetHistogram("latency", nil); len(got) != 0 {
			t.Errorf("GetHistogram after Reset returned %d values, want 0", len(got))
		}
	})
}

func TestInMemoryTracerProvider(t *testing.T) {
	ctx := context.Background()
	p := NewInMemoryTracerProvider()

	_, span := p.StartSpan(ctx, "query", WithAttributes(map[string]any{"query_id": "q-1"}))
	span.SetAttribute("intent", "company_analysis")
	span.AddEvent("cache-miss", nil)
	span.SetStatus(SpanStatusOK, "done")

	// Nothing is recorded until the span ends.
	if got := len(p.Spans()); got != 0 {
		t.Fatalf("Spans before End returned %d spans, want 0", got)
	}
	span.End(nil)

	spans := p.Spans()
	if len(spans) != 1 {
		t.Fatalf("Spans returned %d spans, want 1", len(spans))
	}
	got := spans[0]
	if got.Name != "query" {
		t.Errorf("span name = %q, want %q", got.Name, "query")
	}
	if got.Attributes["query_id"] != "q-1" || got.Attributes["intent"] != "company_analysis" {
		t.Errorf("span attributes = %v", got.Attributes)
	}
	if len(got.Events) != 1 || got.Events[0].Name != "cache-miss" {
		t.Errorf("span events = %v", got.Events)
	}
	if got.Status != SpanStatusOK {
		t.Errorf("span status = %v, want SpanStatusOK", got.Status)
	}
	if got.TraceID == "" || got.SpanID == "" {
		t.Error("span ids not populated")
	}

	_, failed := p.StartSpan(ctx, "query")
	failed.End(errors.New("backend down"))

	byName := p.SpansByName("query")
	if len(byName) != 2 {
		t.Fatalf("SpansByName returned %d spans, want 2", len(byName))
	}
	if byName[1].Err == nil || byName[1].Err.Error() != "backend down" {
		t.Errorf("failed span error = %v, want backend down", byName[1].Err)
	}

	p.Reset()
	if got := len(p.Spans()); got != 0 {
		t.Errorf("Spans after Reset returned %d spans, want 0", got)
	}
}

func TestNoopProviders(t *testing.T) {
	ctx := context.Background()

	var m NoopMetricsProvider
	m.Counter(ctx, "x", 1, nil)
	m.Gauge(ctx, "x", 1, nil)
	m.Histogram(ctx, "x", 1, nil)
	m.RecordDuration(ctx, "x", time.Second, nil)

	var tr NoopTracerProvider
	spanCtx, span := tr.StartSpan(ctx, "x")
	if spanCtx != ctx {
		t.Error("noop StartSpan should return the context unchanged")
	}
	span.SetAttribute("k", "v")
	span.End(errors.New("ignored"))
	if err := tr.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown returned %v", err)
	}
}
