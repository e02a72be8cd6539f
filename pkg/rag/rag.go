// Package rag answers natural-language questions over the regulatory
// document collections.
//
// An Orchestrator classifies each query into an intent, searches the
// collections mapped to that intent concurrently, assembles the ranked
// snippets into a source-grouped context and hands it to a generation
// model. Every failure past validation degrades instead of erroring:
// generation failures fall back to an extractive answer built straight
// from the retrieved snippets, and Query never returns an error value.
//
// Example:
//
//	orch, err := rag.New(rag.Config{Store: store, Embedder: embedder, Generator: model})
//	if err != nil {
//		log.Fatal(err)
//	}
//	resp := orch.Query(ctx, "What are the risk factors for CIK 320193?", rag.QueryOptions{})
//	fmt.Println(resp.Answer)
package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/filigree-ai/go-filigree/pkg/chunk"
	"github.com/filigree-ai/go-filigree/pkg/embed"
	"github.com/filigree-ai/go-filigree/pkg/llm"
	"github.com/filigree-ai/go-filigree/pkg/logger"
	"github.com/filigree-ai/go-filigree/pkg/observability"
	"github.com/filigree-ai/go-filigree/pkg/vectorstore"
)

// Defaults applied by New when Config leaves them zero.
const (
	DefaultCacheSize  = 1000
	DefaultMaxResults = 10
)

// Metric names reported through the configured MetricsProvider.
const (
	metricQueries       = "filigree_rag_queries_total"
	metricCacheHits     = "filigree_rag_cache_hits_total"
	metricFailures      = "filigree_rag_query_failures_total"
	metricDuration      = "filigree_rag_query_duration_seconds"
	metricDocsIndexed   = "filigree_rag_documents_indexed_total"
	metricChunksIndexed = "filigree_rag_chunks_indexed_total"
)

const msgNoResults = "No relevant information was found for this query."

// Config wires an Orchestrator's dependencies. Store and Embedder are
// required. A nil Generator disables model synthesis and every answer is
// extractive. CacheSize below zero disables response caching.
type Config struct {
	Store     *vectorstore.Manager
	Embedder  embed.Client
	Generator llm.Client

	// Chunker splits documents during ingestion. Defaults to a chunk
	// engine with default limits.
	Chunker *chunk.Engine

	// CacheSize bounds the response cache. 0 means DefaultCacheSize.
	CacheSize int

	// MaxResults caps ranked results per query. 0 means DefaultMaxResults.
	MaxResults int

	Logger  *logger.Logger
	Metrics observability.MetricsProvider
	Tracer  observability.TracerProvider
}

// Orchestrator routes queries across the regulatory collections and
// assembles answers from what comes back. Safe for concurrent use.
type Orchestrator struct {
	store      *vectorstore.Manager
	embedder   embed.Client
	generator  llm.Client
	chunker    *chunk.Engine
	cache      *responseCache
	maxResults int

	log     *logger.Logger
	metrics observability.MetricsProvider
	tracer  observability.TracerProvider

	statsMu    sync.Mutex
	total      int64
	hits       int64
	successful int64
	avgLatency time.Duration
}

// New builds an Orchestrator from cfg.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("vector store manager is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedding client is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetricsProvider{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NoopTracerProvider{}
	}

	chunker := cfg.Chunker
	if chunker == nil {
		var err error
		chunker, err = chunk.New(nil)
		if err != nil {
			return nil, fmt.Errorf("default chunk engine: %w", err)
		}
	}

	cacheSize := cfg.CacheSize
	if cacheSize == 0 {
		cacheSize = DefaultCacheSize
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	return &Orchestrator{
		store:      cfg.Store,
		embedder:   cfg.Embedder,
		generator:  cfg.Generator,
		chunker:    chunker,
		cache:      newResponseCache(cacheSize),
		maxResults: maxResults,
		log:        log,
		metrics:    metrics,
		tracer:     tracer,
	}, nil
}

// QueryOptions tune a single Query call. The zero value searches with
// defaults: cross-dataset collections included, caching on, no filters.
type QueryOptions struct {
	// Filters restrict hits to documents whose metadata matches every
	// key. They are part of the cache key.
	Filters map[string]any

	// MaxResults overrides the orchestrator's result cap for this query.
	MaxResults int

	// DisableCrossDataset restricts the search to the intent's own
	// collections.
	DisableCrossDataset bool

	// BypassCache skips both cache lookup and cache write.
	BypassCache bool
}

// SearchResult is one ranked chunk backing an answer.
type SearchResult struct {
	ChunkID    string         `json:"chunk_id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Similarity float64        `json:"similarity"`
	Collection string         `json:"collection"`
	Rank       int            `json:"rank"`
}

// Response is the assembled answer for one query.
type Response struct {
	ID         string         `json:"id"`
	Answer     string         `json:"answer"`
	Sources    []SearchResult `json:"sources"`
	Intent     Intent         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Duration   time.Duration  `json:"duration"`
	Meta       ResponseMeta   `json:"meta"`
}

// ResponseMeta carries provenance for a Response.
type ResponseMeta struct {
	ResultCount   int       `json:"result_count"`
	ContextLength int       `json:"context_length"`
	Timestamp     time.Time `json:"timestamp"`
	FromCache     bool      `json:"from_cache,omitempty"`
	Fallback      bool      `json:"fallback,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Query answers one natural-language question. It never returns an
// error: validation and embedding failures produce a response whose
// Meta.Error is set, and generation failures fall back to an extractive
// answer assembled from the retrieved snippets.
func (o *Orchestrator) Query(ctx context.Context, text string, opts QueryOptions) *Response {
	start := time.Now()
	id := uuid.NewString()

	ctx, span := o.tracer.StartSpan(ctx, "rag.query",
		observability.WithAttributes(map[string]any{"query_id": id}))

	o.metrics.Counter(ctx, metricQueries, 1, nil)
	o.log.Info(ctx, "query received",
		logger.Attr("query_id", id),
		logger.Attr("query_length", len(text)))

	key := cacheKey(text, opts.Filters)
	if !opts.BypassCache {
		if cached, ok := o.cache.get(key); ok {
			o.recordHit()
			o.metrics.Counter(ctx, metricCacheHits, 1, nil)
			cached.ID = id
			cached.Duration = time.Since(start)
			cached.Meta.FromCache = true
			span.SetAttribute("cache_hit", true)
			span.End(nil)
			o.log.Info(ctx, "query answered from cache", logger.Attr("query_id", id))
			return cached
		}
	}

	intent := classifyIntent(text)
	span.SetAttribute("intent", string(intent))
	o.log.Debug(ctx, "query classified",
		logger.Attr("query_id", id),
		logger.Attr("intent", string(intent)))

	resp, err := o.process(ctx, id, text, intent, opts)
	duration := time.Since(start)

	o.recordQuery(duration, err == nil)
	o.metrics.RecordDuration(ctx, metricDuration, duration,
		map[string]string{"intent": string(intent)})

	if err != nil {
		o.metrics.Counter(ctx, metricFailures, 1, nil)
		o.log.Error(ctx, "query failed",
			logger.Attr("query_id", id),
			logger.Attr("error", err.Error()))
		span.End(err)
		return &Response{
			ID:       id,
			Answer:   fmt.Sprintf("I encountered an error processing your query: %v", err),
			Sources:  []SearchResult{},
			Intent:   intent,
			Duration: duration,
			Meta: ResponseMeta{
				Timestamp: time.Now().UTC(),
				Error:     err.Error(),
			},
		}
	}

	resp.ID = id
	resp.Duration = duration
	if !opts.BypassCache && resp.Meta.ResultCount > 0 {
		o.cache.put(key, resp)
	}

	span.SetAttribute("sources", len(resp.Sources))
	span.End(nil)
	o.log.Info(ctx, "query answered",
		logger.Attr("query_id", id),
		logger.Attr("intent", string(intent)),
		logger.Attr("sources", len(resp.Sources)),
		logger.Attr("fallback", resp.Meta.Fallback),
		logger.Attr("duration_ms", duration.Milliseconds()))
	return resp
}

// process runs the retrieval and generation stages. An error here means
// the query could not be answered at all; fallback answers are not
// errors.
func (o *Orchestrator) process(ctx context.Context, id, text string, intent Intent, opts QueryOptions) (*Response, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("query is empty")
	}

	k := opts.MaxResults
	if k <= 0 {
		k = o.maxResults
	}
	collections := o.targetCollections(intent, !opts.DisableCrossDataset)

	results, err := o.searchCollections(ctx, text, collections, opts.Filters, k)
	if err != nil {
		return nil, err
	}
	o.log.Debug(ctx, "collections searched",
		logger.Attr("query_id", id),
		logger.Attr("collections", len(collections)),
		logger.Attr("results", len(results)))

	if len(results) == 0 {
		return &Response{
			Answer:  msgNoResults,
			Sources: []SearchResult{},
			Intent:  intent,
			Meta:    ResponseMeta{Timestamp: time.Now().UTC()},
		}, nil
	}

	contextText := buildContext(results, intent)
	answer, usedFallback := o.generate(ctx, id, text, contextText, intent, results)

	return &Response{
		Answer:     answer,
		Sources:    results,
		Intent:     intent,
		Confidence: confidenceScore(results, len(contextText)),
		Meta: ResponseMeta{
			ResultCount:   len(results),
			ContextLength: len(contextText),
			Timestamp:     time.Now().UTC(),
			Fallback:      usedFallback,
		},
	}, nil
}

// generate produces the answer text, reporting whether the extractive
// fallback was used.
func (o *Orchestrator) generate(ctx context.Context, id, query, contextText string, intent Intent, results []SearchResult) (string, bool) {
	if o.generator == nil {
		return fallbackAnswer(intent, results), true
	}

	prompt, err := buildPrompt(query, contextText, intent, results)
	if err != nil {
		o.log.Warn(ctx, "prompt assembly failed",
			logger.Attr("query_id", id),
			logger.Attr("error", err.Error()))
		return fallbackAnswer(intent, results), true
	}

	answer, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		o.log.Warn(ctx, "generation failed, using extractive fallback",
			logger.Attr("query_id", id),
			logger.Attr("model", o.generator.Model()),
			logger.Attr("error", err.Error()))
		return fallbackAnswer(intent, results), true
	}
	if strings.TrimSpace(answer) == "" {
		o.log.Warn(ctx, "generator returned an empty answer",
			logger.Attr("query_id", id),
			logger.Attr("model", o.generator.Model()))
		return fallbackAnswer(intent, results), true
	}
	return answer, false
}

// ClearCache drops every cached response.
func (o *Orchestrator) ClearCache() {
	o.cache.clear()
}

// Stats is a snapshot of query counters. Rates are fractions in [0,1]:
// CacheHitRate over all queries, SuccessRate over processed (non-cached)
// queries.
type Stats struct {
	TotalQueries      int64         `json:"total_queries"`
	CacheHits         int64         `json:"cache_hits"`
	SuccessfulQueries int64         `json:"successful_queries"`
	AvgResponseTime   time.Duration `json:"avg_response_time"`
	CacheHitRate      float64       `json:"cache_hit_rate"`
	SuccessRate       float64       `json:"success_rate"`
}

// Stats returns a snapshot of the orchestrator's query counters.
func (o *Orchestrator) Stats() Stats {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()

	s := Stats{
		TotalQueries:      o.total,
		CacheHits:         o.hits,
		SuccessfulQueries: o.successful,
		AvgResponseTime:   o.avgLatency,
	}
	if o.total > 0 {
		s.CacheHitRate = float64(o.hits) / float64(o.total)
	}
	if processed := o.total - o.hits; processed > 0 {
		s.SuccessRate = float64(o.successful) / float64(processed)
	}
	return s
}

// StatusReport aggregates component state for operational visibility.
type StatusReport struct {
	Status      string                  `json:"status"`
	VectorStore vectorstore.SystemStats `json:"vector_store"`
	EmbedCache  *embed.CacheStats       `json:"embed_cache,omitempty"`
	Queries     Stats                   `json:"queries"`
	Timestamp   time.Time               `json:"timestamp"`
}

// Status reports collection statistics, embedding cache state when the
// embedder exposes it, and query counters.
func (o *Orchestrator) Status() StatusReport {
	report := StatusReport{
		Status:      "operational",
		VectorStore: o.store.SystemStats(),
		Queries:     o.Stats(),
		Timestamp:   time.Now().UTC(),
	}
	if c, ok := o.embedder.(interface{ Stats() embed.CacheStats }); ok {
		stats := c.Stats()
		report.EmbedCache = &stats
	}
	return report
}

func (o *Orchestrator) recordHit() {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	o.total++
	o.hits++
}

// recordQuery folds one processed query into the counters using an
// incremental mean, so the average never needs the full history.
func (o *Orchestrator) recordQuery(d time.Duration, success bool) {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()

	o.total++
	processed := o.total - o.hits
	o.avgLatency += (d - o.avgLatency) / time.Duration(processed)
	if success {
		o.successful++
	}
}
