package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/filigree-ai/go-filigree/pkg/embed"
	"github.com/filigree-ai/go-filigree/pkg/filigree"
	"github.com/filigree-ai/go-filigree/pkg/llm"
	"github.com/filigree-ai/go-filigree/pkg/observability"
	"github.com/filigree-ai/go-filigree/pkg/vectorstore"
)

func newTestManager(t *testing.T) *vectorstore.Manager {
	t.Helper()
	ix, err := vectorstore.NewIndex(nil)
	if err != nil {
		t.Fatalf("NewIndex() error: %v", err)
	}
	m, err := vectorstore.NewManager(ix, nil)
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	return m
}

func newTestOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Store == nil {
		cfg.Store = newTestManager(t)
	}
	if cfg.Embedder == nil {
		cfg.Embedder = embed.NewMockClient(4)
	}
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return o
}

// unitEmbedder embeds every text to the same unit vector so seeded
// documents get predictable similarities against it.
func unitEmbedder() *embed.MockClient {
	return embed.NewMockClient(4).WithEmbedFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 0, 0, 0}
		}
		return out, nil
	})
}

// seedCompanyData stores three Apple documents whose cosine similarities
// against the unit embedder come out 1.0, 0.6 and 0.0.
func seedCompanyData(t *testing.T, m *vectorstore.Manager) {
	t.Helper()
	ctx := context.Background()

	if err := m.AddSECFiling(ctx, "filing-apple",
		"Apple Inc annual report discussing supply chain concentration.",
		map[string]any{"company_name": "Apple Inc", "filing_date": "2024-02-01", "section": "Item 1A"},
		[]float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("AddSECFiling() error: %v", err)
	}
	err := m.Index().AddDocuments(ctx, filigree.CollectionMarketEvents, []vectorstore.Document{{
		ID:        "event-apple",
		Content:   "Unusual options volume reported ahead of earnings.",
		Metadata:  map[string]any{"company_name": "Apple Inc"},
		Embedding: []float32{0.6, 0.8, 0, 0},
	}})
	if err != nil {
		t.Fatalf("AddDocuments(market_events) error: %v", err)
	}
	err = m.Index().AddDocuments(ctx, filigree.CollectionInsiderReports, []vectorstore.Document{{
		ID:        "insider-apple",
		Content:   "Officer sale of 10,000 shares reported on Form 4.",
		Metadata:  map[string]any{"company_name": "Apple Inc"},
		Embedding: []float32{0, 1, 0, 0},
	}})
	if err != nil {
		t.Fatalf("AddDocuments(insider_reports) error: %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() accepted a nil store")
	}
	if _, err := New(Config{Store: newTestManager(t)}); err == nil {
		t.Error("New() accepted a nil embedder")
	}
}

func TestQueryGeneratedAnswer(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	seedCompanyData(t, m)

	gen := llm.NewMockClient("Apple Inc faces supply chain concentration risk.")
	o := newTestOrchestrator(t, Config{Store: m, Embedder: unitEmbedder(), Generator: gen})

	resp := o.Query(ctx, "Tell me about the company profile for Apple Inc", QueryOptions{})

	if resp.Answer != "Apple Inc faces supply chain concentration risk." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if resp.Intent != IntentCompanyAnalysis {
		t.Errorf("Intent = %q, want %q", resp.Intent, IntentCompanyAnalysis)
	}
	if resp.ID == "" {
		t.Error("response should carry an id")
	}
	if resp.Meta.Fallback || resp.Meta.FromCache || resp.Meta.Error != "" {
		t.Errorf("Meta = %+v, want clean generated response", resp.Meta)
	}
	if resp.Confidence <= 0 || resp.Confidence > 1 {
		t.Errorf("Confidence = %v, want in (0, 1]", resp.Confidence)
	}

	if len(resp.Sources) != 3 {
		t.Fatalf("len(Sources) = %d, want 3", len(resp.Sources))
	}
	wantOrder := []string{"filing-apple", "event-apple", "insider-apple"}
	for i, want := range wantOrder {
		if resp.Sources[i].ChunkID != want {
			t.Errorf("Sources[%d].ChunkID = %q, want %q", i, resp.Sources[i].ChunkID, want)
		}
		if resp.Sources[i].Rank != i+1 {
			t.Errorf("Sources[%d].Rank = %d, want %d", i, resp.Sources[i].Rank, i+1)
		}
	}
	if s := resp.Sources[0].Similarity; s < 0.99 {
		t.Errorf("Sources[0].Similarity = %v, want ~1.0", s)
	}

	prompt := gen.LastPrompt()
	for _, want := range []string{
		"expert financial data assistant",
		"For company analysis:",
		"Context Information:",
		"SEC Filings:",
		"• Apple Inc appears in SEC Filings, Market Events, Insider Trading Data",
		"User Query: Tell me about the company profile for Apple Inc",
		"Note: Response based on 3 sources, 1 highly relevant.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestQueryCacheHit(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	seedCompanyData(t, m)

	embedder := unitEmbedder()
	gen := llm.NewMockClient("Generated answer.")
	o := newTestOrchestrator(t, Config{Store: m, Embedder: embedder, Generator: gen})

	const q = "Tell me about the company profile for Apple Inc"
	first := o.Query(ctx, q, QueryOptions{})
	second := o.Query(ctx, q, QueryOptions{})

	if first.Meta.FromCache {
		t.Error("first response should not come from the cache")
	}
	if !second.Meta.FromCache {
		t.Error("second response should come from the cache")
	}
	if second.Answer != first.Answer {
		t.Errorf("cached answer = %q, want %q", second.Answer, first.Answer)
	}
	if second.ID == first.ID {
		t.Error("cached response should carry a fresh id")
	}
	if gen.Calls() != 1 {
		t.Errorf("generator calls = %d, want 1", gen.Calls())
	}
	if embedder.Calls() != 1 {
		t.Errorf("embedder calls = %d, want 1", embedder.Calls())
	}

	third := o.Query(ctx, q, QueryOptions{BypassCache: true})
	if third.Meta.FromCache {
		t.Error("BypassCache response should not come from the cache")
	}
	if gen.Calls() != 2 {
		t.Errorf("generator calls = %d, want 2 after bypass", gen.Calls())
	}

	stats := o.Stats()
	if stats.TotalQueries != 3 {
		t.Errorf("TotalQueries = %d, want 3", stats.TotalQueries)
	}
	if stats.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", stats.CacheHits)
	}
	if stats.SuccessfulQueries != 2 {
		t.Errorf("SuccessfulQueries = %d, want 2", stats.SuccessfulQueries)
	}
	if want := 1.0 / 3.0; stats.CacheHitRate != want {
		t.Errorf("CacheHitRate = %v, want %v", stats.CacheHitRate, want)
	}
	if stats.SuccessRate != 1 {
		t.Errorf("SuccessRate = %v, want 1", stats.SuccessRate)
	}
	if stats.AvgResponseTime <= 0 {
		t.Errorf("AvgResponseTime = %v, want > 0", stats.AvgResponseTime)
	}
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	seedCompanyData(t, m)

	gen := llm.NewMockClient("Generated answer.")
	o := newTestOrchestrator(t, Config{Store: m, Embedder: unitEmbedder(), Generator: gen})

	const q = "Tell me about the company profile for Apple Inc"
	o.Query(ctx, q, QueryOptions{})

	filtered := o.Query(ctx, q, QueryOptions{Filters: map[string]any{"section": "Item 1A"}})
	if filtered.Meta.FromCache {
		t.Error("filters change the cache key, response should be fresh")
	}
	if len(filtered.Sources) != 1 {
		t.Fatalf("len(Sources) = %d, want 1 after filtering", len(filtered.Sources))
	}
	if filtered.Sources[0].ChunkID != "filing-apple" {
		t.Errorf("filtered source = %q, want filing-apple", filtered.Sources[0].ChunkID)
	}
}

func TestQueryFallbackOnGeneratorError(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	seedCompanyData(t, m)

	o := newTestOrchestrator(t, Config{
		Store:     m,
		Embedder:  unitEmbedder(),
		Generator: llm.NewMockClientWithError("model unavailable"),
	})

	resp := o.Query(ctx, "Tell me about the company profile for Apple Inc", QueryOptions{})

	if !resp.Meta.Fallback {
		t.Error("Meta.Fallback should be set after a generation failure")
	}
	if resp.Meta.Error != "" {
		t.Errorf("Meta.Error = %q, fallback is not a failure", resp.Meta.Error)
	}
	if !strings.HasPrefix(resp.Answer, "Based on available SEC filings and regulatory data:") {
		t.Errorf("fallback answer missing intro:\n%s", resp.Answer)
	}
	if !strings.Contains(resp.Answer, "without language model synthesis") {
		t.Errorf("fallback answer missing note:\n%s", resp.Answer)
	}
	if resp.Confidence <= 0 {
		t.Errorf("Confidence = %v, want > 0", resp.Confidence)
	}

	if stats := o.Stats(); stats.SuccessfulQueries != 1 {
		t.Errorf("SuccessfulQueries = %d, fallback answers count as success", stats.SuccessfulQueries)
	}
}

func TestQueryWithoutGenerator(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	seedCompanyData(t, m)

	o := newTestOrchestrator(t, Config{Store: m, Embedder: unitEmbedder()})

	resp := o.Query(ctx, "Tell me about the company profile for Apple Inc", QueryOptions{})
	if !resp.Meta.Fallback {
		t.Error("Meta.Fallback should be set without a generator")
	}
	if !strings.Contains(resp.Answer, "assembled directly from 3 retrieved sources") {
		t.Errorf("Answer = %q", resp.Answer)
	}
}

func TestQueryEmpty(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t, Config{})

	resp := o.Query(ctx, "   ", QueryOptions{})

	if !strings.HasPrefix(resp.Answer, "I encountered an error processing your query:") {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if resp.Meta.Error == "" {
		t.Error("Meta.Error should be set")
	}
	if resp.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", resp.Confidence)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("len(Sources) = %d, want 0", len(resp.Sources))
	}

	stats := o.Stats()
	if stats.TotalQueries != 1 || stats.SuccessfulQueries != 0 {
		t.Errorf("stats = %+v, want one failed query", stats)
	}
	if stats.SuccessRate != 0 {
		t.Errorf("SuccessRate = %v, want 0", stats.SuccessRate)
	}
}

func TestQueryEmbedFailure(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t, Config{Embedder: embed.NewMockClientWithError("provider down")})

	resp := o.Query(ctx, "what are the market trends", QueryOptions{})

	if !strings.HasPrefix(resp.Answer, "I encountered an error processing your query:") {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if !strings.Contains(resp.Meta.Error, "provider down") {
		t.Errorf("Meta.Error = %q, want the provider error", resp.Meta.Error)
	}
	if resp.Intent != IntentMarketTrends {
		t.Errorf("Intent = %q, classification happens before retrieval", resp.Intent)
	}
}

func TestQueryNoResults(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	o := newTestOrchestrator(t, Config{Store: m, Embedder: unitEmbedder()})

	const q = "Tell me about the company profile for Apple Inc"
	resp := o.Query(ctx, q, QueryOptions{})

	if resp.Answer != "No relevant information was found for this query." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if resp.Confidence != 0 || resp.Meta.ResultCount != 0 {
		t.Errorf("resp = %+v, want empty result metadata", resp)
	}

	// Empty responses are not cached: once documents arrive, the same
	// query must produce a real answer.
	seedCompanyData(t, m)
	again := o.Query(ctx, q, QueryOptions{})
	if again.Meta.FromCache {
		t.Error("empty response should not have been cached")
	}
	if again.Answer == "No relevant information was found for this query." {
		t.Error("query should see newly indexed documents")
	}
}

func TestQueryInstrumentation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	seedCompanyData(t, m)

	metrics := observability.NewInMemoryMetricsProvider()
	tracer := observability.NewInMemoryTracerProvider()
	o := newTestOrchestrator(t, Config{
		Store:    m,
		Embedder: unitEmbedder(),
		Metrics:  metrics,
		Tracer:   tracer,
	})

	const q = "Tell me about the company profile for Apple Inc"
	o.Query(ctx, q, QueryOptions{})
	o.Query(ctx, q, QueryOptions{})

	if got := metrics.GetCounter(metricQueries, nil); got != 2 {
		t.Errorf("%s = %d, want 2", metricQueries, got)
	}
	if got := metrics.GetCounter(metricCacheHits, nil); got != 1 {
		t.Errorf("%s = %d, want 1", metricCacheHits, got)
	}
	durations := metrics.GetHistogram(metricDuration, map[string]string{"intent": string(IntentCompanyAnalysis)})
	if len(durations) != 1 {
		t.Errorf("duration observations = %d, want 1 (cache hits are not timed)", len(durations))
	}

	spans := tracer.SpansByName("rag.query")
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].Err != nil {
		t.Errorf("first span error = %v", spans[0].Err)
	}
	if got := spans[0].Attributes["intent"]; got != string(IntentCompanyAnalysis) {
		t.Errorf("intent attribute = %v", got)
	}
	if got := spans[0].Attributes["sources"]; got != 3 {
		t.Errorf("sources attribute = %v, want 3", got)
	}
	if got := spans[1].Attributes["cache_hit"]; got != true {
		t.Errorf("cache_hit attribute = %v, want true", got)
	}
}

func TestIndexDocuments(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	o := newTestOrchestrator(t, Config{Store: m, Embedder: unitEmbedder()})

	filing := strings.Repeat("The company reported strong revenue growth and stable margins across segments. ", 60)
	swap := strings.Repeat("Weekly interest rate swap volumes rose with notional amounts led by the dollar. ", 60)

	report, err := o.IndexDocuments(ctx, []Document{
		{ID: "10k-acme", Content: filing, Type: filigree.DocTypeSEC10K, Metadata: map[string]any{"company_name": "ACME Corp"}},
		{Content: swap, Type: filigree.DocTypeCFTCSwap},
		{ID: "bad-type", Content: "text", Type: filigree.DocumentType("bogus")},
		{ID: "empty-doc", Content: "   ", Type: filigree.DocTypeSEC10K},
	})
	if err != nil {
		t.Fatalf("IndexDocuments() error: %v", err)
	}

	if report.DocumentsProcessed != 2 {
		t.Errorf("DocumentsProcessed = %d, want 2", report.DocumentsProcessed)
	}
	if report.ChunksIndexed < 2 {
		t.Errorf("ChunksIndexed = %d, want at least 2", report.ChunksIndexed)
	}
	if len(report.Errors) != 2 {
		t.Errorf("Errors = %v, want the bad-type and empty-doc failures", report.Errors)
	}

	secStats, err := m.Index().CollectionStats(filigree.CollectionSECFilings)
	if err != nil {
		t.Fatalf("CollectionStats() error: %v", err)
	}
	if secStats.Count == 0 {
		t.Error("sec_filings should hold the 10-K chunks")
	}
	cftcStats, err := m.Index().CollectionStats(filigree.CollectionCFTCSummaries)
	if err != nil {
		t.Fatalf("CollectionStats() error: %v", err)
	}
	if cftcStats.Count == 0 {
		t.Error("cftc_summaries should hold the swap chunks")
	}

	// Stored ids are scoped by document so chunk ids cannot collide
	// across documents of the same type.
	hits, err := m.Index().QueryDocuments(ctx, filigree.CollectionSECFilings, vectorstore.Query{
		Embedding: []float32{1, 0, 0, 0},
		K:         1,
	})
	if err != nil {
		t.Fatalf("QueryDocuments() error: %v", err)
	}
	if len(hits) != 1 || !strings.HasPrefix(hits[0].ID, "10k-acme/") {
		t.Errorf("stored id = %q, want 10k-acme/ prefix", hits[0].ID)
	}
	if hits[0].Metadata["document_type"] != string(filigree.DocTypeSEC10K) {
		t.Errorf("document_type = %v", hits[0].Metadata["document_type"])
	}
	if hits[0].Metadata["company_name"] != "ACME Corp" {
		t.Errorf("company_name = %v, caller metadata should reach the chunks", hits[0].Metadata["company_name"])
	}
}

func TestIndexDocumentsContextCancelled(t *testing.T) {
	o := newTestOrchestrator(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := o.IndexDocuments(ctx, []Document{
		{ID: "doc-1", Content: "text", Type: filigree.DocTypeSEC10K},
	})
	if err == nil {
		t.Fatal("IndexDocuments() should surface the cancelled context")
	}
	if report.DocumentsProcessed != 0 {
		t.Errorf("DocumentsProcessed = %d, want 0", report.DocumentsProcessed)
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	seedCompanyData(t, m)

	cached, err := embed.NewCachedClient(ctx, unitEmbedder(), nil)
	if err != nil {
		t.Fatalf("NewCachedClient() error: %v", err)
	}
	o := newTestOrchestrator(t, Config{Store: m, Embedder: cached})

	o.Query(ctx, "Tell me about the company profile for Apple Inc", QueryOptions{})

	st := o.Status()
	if st.Status != "operational" {
		t.Errorf("Status = %q", st.Status)
	}
	if st.Queries.TotalQueries != 1 {
		t.Errorf("TotalQueries = %d, want 1", st.Queries.TotalQueries)
	}
	if st.VectorStore.TotalDocuments < 3 {
		t.Errorf("TotalDocuments = %d, want the seeded documents", st.VectorStore.TotalDocuments)
	}
	if st.EmbedCache == nil {
		t.Fatal("EmbedCache should be reported for a caching embedder")
	}
	if st.EmbedCache.Misses == 0 {
		t.Error("the query embedding should have missed the fresh cache")
	}
	if st.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}

	plain := newTestOrchestrator(t, Config{})
	if plain.Status().EmbedCache != nil {
		t.Error("EmbedCache should be nil for a non-caching embedder")
	}
}

func TestClearCache(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	seedCompanyData(t, m)

	gen := llm.NewMockClient("Generated answer.")
	o := newTestOrchestrator(t, Config{Store: m, Embedder: unitEmbedder(), Generator: gen})

	const q = "Tell me about the company profile for Apple Inc"
	o.Query(ctx, q, QueryOptions{})
	o.ClearCache()

	resp := o.Query(ctx, q, QueryOptions{})
	if resp.Meta.FromCache {
		t.Error("cache should be empty after ClearCache")
	}
	if gen.Calls() != 2 {
		t.Errorf("generator calls = %d, want 2", gen.Calls())
	}
}
