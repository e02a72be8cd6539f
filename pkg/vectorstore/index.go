package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"regexp"
	"sort"
	"sync"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
	"github.com/filigree-ai/go-filigree/pkg/kv"
	"github.com/filigree-ai/go-filigree/pkg/logger"
)

// mirrorKeyPrefix namespaces metadata mirror entries in the KV store. The
// full key is mirrorKeyPrefix + collection + "/" + id.
const mirrorKeyPrefix = "vecmeta/"

// defaultQueryK is the result count used when a query does not set one.
const defaultQueryK = 10

// Collection names become snapshot file names and remote-store identifiers.
var collectionNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// IndexConfig holds Index settings.
type IndexConfig struct {
	// Embedder turns document content and query text into vectors.
	// Optional; operations that would need it fail without one.
	Embedder Embedder
	// Store mirrors collection metadata keyed by collection/id. Optional.
	Store kv.Store
	// SnapshotDir, when set, is loaded at construction and written on
	// Close. Optional; Save and Load also take explicit directories.
	SnapshotDir string
	// Logger receives index diagnostics. Defaults to the nop logger.
	Logger *logger.Logger
}

// Index manages named vector collections in memory.
//
// Document-mode collections hold text with metadata and upsert by id.
// Vector-mode collections are flat append-only indexes: there is no update
// path, so re-adding an external id produces a second internal entry.
// Collection names share one namespace across both modes.
//
// All methods are safe for concurrent use; queries run under a shared read
// lock so searches across collections proceed in parallel.
type Index struct {
	mu   sync.RWMutex
	docs map[string]*docCollection
	vecs map[string]*vecCollection

	embedder    Embedder
	store       kv.Store
	snapshotDir string
	log         *logger.Logger
}

var _ DocumentStore = (*Index)(nil)

type docCollection struct {
	metric    filigree.Metric
	dimension int // 0 until the first insert fixes it
	entries   map[string]*storedDoc
}

type storedDoc struct {
	id       string
	content  string
	metadata map[string]any
	vector   []float32 // normalized when the metric is cosine
}

type vecCollection struct {
	metric    filigree.Metric
	dimension int
	vectors   [][]float32 // normalized when the metric is cosine
	ids       []string    // internal index -> external id
	metadata  map[string]map[string]any
}

// NewIndex creates an Index. When cfg.SnapshotDir is set, snapshots found
// there are loaded before the index is returned.
func NewIndex(cfg *IndexConfig) (*Index, error) {
	if cfg == nil {
		cfg = &IndexConfig{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	ix := &Index{
		docs:        make(map[string]*docCollection),
		vecs:        make(map[string]*vecCollection),
		embedder:    cfg.Embedder,
		store:       cfg.Store,
		snapshotDir: cfg.SnapshotDir,
		log:         log,
	}
	if ix.snapshotDir != "" {
		if err := ix.Load(ix.snapshotDir); err != nil {
			return nil, fmt.Errorf("load snapshots: %w", err)
		}
	}
	return ix, nil
}

// CreateCollection creates a document-mode collection. An empty metric
// defaults to cosine.
func (ix *Index) CreateCollection(name string, metric filigree.Metric) error {
	metric, err := normalizeMetric(metric)
	if err != nil {
		return err
	}
	if !collectionNameRe.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.existsLocked(name) {
		return fmt.Errorf("%w: %s", filigree.ErrCollectionExists, name)
	}
	ix.docs[name] = &docCollection{
		metric:  metric,
		entries: make(map[string]*storedDoc),
	}
	return nil
}

// CreateVectorCollection creates a flat vector-mode collection with a fixed
// dimension. An empty metric defaults to cosine.
func (ix *Index) CreateVectorCollection(name string, dimension int, metric filigree.Metric) error {
	metric, err := normalizeMetric(metric)
	if err != nil {
		return err
	}
	if !collectionNameRe.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	if dimension <= 0 {
		return fmt.Errorf("vector collection %s: dimension must be positive, got %d", name, dimension)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.existsLocked(name) {
		return fmt.Errorf("%w: %s", filigree.ErrCollectionExists, name)
	}
	ix.vecs[name] = &vecCollection{
		metric:    metric,
		dimension: dimension,
		metadata:  make(map[string]map[string]any),
	}
	return nil
}

// AddDocuments upserts documents into a document-mode collection.
//
// Input: ctx, collection name, documents (ids required)
// Output: error
// Behavior: documents without a pre-computed embedding are embedded
// through the configured embedder first. The whole batch is validated
// before anything is written, so a dimension mismatch leaves the
// collection untouched. Metadata is mirrored into the KV store after the
// write; mirror failures are logged, not returned
func (ix *Index) AddDocuments(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document %d has no id", i)
		}
	}

	ix.mu.RLock()
	_, exists := ix.docs[collection]
	ix.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", filigree.ErrCollectionNotFound, collection)
	}

	// Embed outside the lock; provider calls can be slow.
	vectors := make([][]float32, len(docs))
	var missing []int
	var texts []string
	for i, doc := range docs {
		if len(doc.Embedding) > 0 {
			vectors[i] = doc.Embedding
			continue
		}
		missing = append(missing, i)
		texts = append(texts, doc.Content)
	}
	if len(missing) > 0 {
		if ix.embedder == nil {
			return fmt.Errorf("collection %s: no embedder configured for documents without embeddings", collection)
		}
		embedded, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed %d documents: %w", len(texts), err)
		}
		if len(embedded) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d documents", len(embedded), len(texts))
		}
		for j, i := range missing {
			vectors[i] = embedded[j]
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	// Fetched after reacquiring: a snapshot load may have swapped the
	// collection while the embedder ran.
	c, ok := ix.docs[collection]
	if !ok {
		return fmt.Errorf("%w: %s", filigree.ErrCollectionNotFound, collection)
	}

	dimension := c.dimension
	for i, vec := range vectors {
		if dimension == 0 {
			dimension = len(vec)
			continue
		}
		if len(vec) != dimension {
			return fmt.Errorf("%w: collection %s expects %d, document %s has %d",
				filigree.ErrDimensionMismatch, collection, dimension, docs[i].ID, len(vec))
		}
	}
	c.dimension = dimension

	for i, doc := range docs {
		vec := vectors[i]
		if c.metric == filigree.MetricCosine {
			vec = l2Normalize(vec)
		} else {
			vec = append([]float32(nil), vec...)
		}
		c.entries[doc.ID] = &storedDoc{
			id:       doc.ID,
			content:  doc.Content,
			metadata: maps.Clone(doc.Metadata),
			vector:   vec,
		}
	}

	ix.mirrorMetadata(ctx, collection, docs)
	ix.log.Debug(ctx, "documents added",
		logger.Attr("collection", collection),
		logger.Attr("count", len(docs)))
	return nil
}

// QueryDocuments returns the closest documents in a collection, ranked by
// ascending distance.
//
// Input: ctx, collection name, query (embedding, or text to embed)
// Output: up to q.K hits, closest first
// Behavior: filter keys must all equal the stored metadata for a document
// to be scored. Querying an unknown collection returns
// ErrCollectionNotFound; a query with neither text nor embedding is an
// error
func (ix *Index) QueryDocuments(ctx context.Context, collection string, q Query) ([]DocumentHit, error) {
	k := q.K
	if k <= 0 {
		k = defaultQueryK
	}

	embedding := q.Embedding
	if len(embedding) == 0 {
		if q.Text == "" {
			return nil, fmt.Errorf("collection %s: query needs text or an embedding", collection)
		}
		if ix.embedder == nil {
			return nil, fmt.Errorf("collection %s: no embedder configured for text queries", collection)
		}
		vecs, err := ix.embedder.Embed(ctx, []string{q.Text})
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		if len(vecs) != 1 {
			return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vecs))
		}
		embedding = vecs[0]
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	c, ok := ix.docs[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", filigree.ErrCollectionNotFound, collection)
	}
	if c.dimension != 0 && len(embedding) != c.dimension {
		return nil, fmt.Errorf("%w: collection %s expects %d, query has %d",
			filigree.ErrDimensionMismatch, collection, c.dimension, len(embedding))
	}
	if c.metric == filigree.MetricCosine {
		embedding = l2Normalize(embedding)
	}

	hits := make([]DocumentHit, 0, len(c.entries))
	for _, doc := range c.entries {
		if !metadataMatches(doc.metadata, q.Filter) {
			continue
		}
		hits = append(hits, DocumentHit{
			ID:       doc.id,
			Content:  doc.content,
			Metadata: maps.Clone(doc.metadata),
			Distance: docDistance(c.metric, embedding, doc.vector),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// AddVectors appends vectors to a vector-mode collection. There is no
// update path: re-adding an external id produces a second internal entry
// that queries can return independently.
func (ix *Index) AddVectors(ctx context.Context, collection string, vectors [][]float32, ids []string, metadatas []map[string]any) error {
	if len(vectors) == 0 {
		return nil
	}
	if len(vectors) != len(ids) {
		return fmt.Errorf("collection %s: %d vectors for %d ids", collection, len(vectors), len(ids))
	}
	if metadatas != nil && len(metadatas) != len(ids) {
		return fmt.Errorf("collection %s: %d metadatas for %d ids", collection, len(metadatas), len(ids))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	vc, ok := ix.vecs[collection]
	if !ok {
		return fmt.Errorf("%w: %s", filigree.ErrCollectionNotFound, collection)
	}
	for i, vec := range vectors {
		if len(vec) != vc.dimension {
			return fmt.Errorf("%w: collection %s expects %d, vector %d has %d",
				filigree.ErrDimensionMismatch, collection, vc.dimension, i, len(vec))
		}
	}

	for i, vec := range vectors {
		if vc.metric == filigree.MetricCosine {
			vec = l2Normalize(vec)
		} else {
			vec = append([]float32(nil), vec...)
		}
		vc.vectors = append(vc.vectors, vec)
		vc.ids = append(vc.ids, ids[i])
		if metadatas != nil {
			vc.metadata[ids[i]] = maps.Clone(metadatas[i])
		}
	}

	if metadatas != nil {
		docs := make([]Document, len(ids))
		for i, id := range ids {
			docs[i] = Document{ID: id, Metadata: metadatas[i]}
		}
		ix.mirrorMetadata(ctx, collection, docs)
	}
	ix.log.Debug(ctx, "vectors added",
		logger.Attr("collection", collection),
		logger.Attr("count", len(vectors)))
	return nil
}

// QueryVectors returns the nearest neighbours for each query vector.
//
// Input: ctx, collection name, query vectors, neighbour count k
// Output: per query, parallel slices of distances, internal indices and
// external ids, at most min(k, collection size) long
// Behavior: for cosine collections the reported distances are inner
// products of normalized vectors (higher is closer, sorted descending,
// the flat inner-product index convention). For l2 the distances are
// squared, for l1 absolute, both ascending
func (ix *Index) QueryVectors(_ context.Context, collection string, queries [][]float32, k int) ([][]float32, [][]int, [][]string, error) {
	if k <= 0 {
		k = defaultQueryK
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	vc, ok := ix.vecs[collection]
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: %s", filigree.ErrCollectionNotFound, collection)
	}

	distances := make([][]float32, len(queries))
	indices := make([][]int, len(queries))
	externalIDs := make([][]string, len(queries))

	for qi, query := range queries {
		if len(query) != vc.dimension {
			return nil, nil, nil, fmt.Errorf("%w: collection %s expects %d, query %d has %d",
				filigree.ErrDimensionMismatch, collection, vc.dimension, qi, len(query))
		}
		if vc.metric == filigree.MetricCosine {
			query = l2Normalize(query)
		}

		type scored struct {
			idx   int
			score float64
		}
		results := make([]scored, len(vc.vectors))
		for i, vec := range vc.vectors {
			var score float64
			switch vc.metric {
			case filigree.MetricCosine:
				score = dotProduct(query, vec)
			case filigree.MetricL2:
				score = squaredL2(query, vec)
			default:
				score = l1Distance(query, vec)
			}
			results[i] = scored{idx: i, score: score}
		}
		sort.Slice(results, func(i, j int) bool {
			if vc.metric == filigree.MetricCosine {
				return results[i].score > results[j].score
			}
			return results[i].score < results[j].score
		})
		if len(results) > k {
			results = results[:k]
		}

		distances[qi] = make([]float32, len(results))
		indices[qi] = make([]int, len(results))
		externalIDs[qi] = make([]string, len(results))
		for i, r := range results {
			distances[qi][i] = float32(r.score)
			indices[qi][i] = r.idx
			externalIDs[qi][i] = vc.ids[r.idx]
		}
	}
	return distances, indices, externalIDs, nil
}

// Metadata returns the mirrored metadata for ids, in input order. Unknown
// ids yield empty maps. The KV mirror is authoritative when configured;
// otherwise metadata comes from memory.
func (ix *Index) Metadata(ctx context.Context, collection string, ids []string) ([]map[string]any, error) {
	ix.mu.RLock()
	exists := ix.existsLocked(collection)
	ix.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", filigree.ErrCollectionNotFound, collection)
	}

	out := make([]map[string]any, len(ids))
	for i, id := range ids {
		out[i] = map[string]any{}
		if ix.store != nil {
			data, err := ix.store.Get(ctx, mirrorKey(collection, id))
			if err != nil {
				return nil, fmt.Errorf("metadata lookup %s/%s: %w", collection, id, err)
			}
			if data == nil {
				continue
			}
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				ix.log.Warn(ctx, "skipping corrupt metadata mirror entry",
					logger.Attr("collection", collection),
					logger.Attr("id", id),
					logger.Attr("error", err.Error()))
				continue
			}
			out[i] = m
			continue
		}

		ix.mu.RLock()
		if c, ok := ix.docs[collection]; ok {
			if doc, ok := c.entries[id]; ok && doc.metadata != nil {
				out[i] = maps.Clone(doc.metadata)
			}
		} else if vc, ok := ix.vecs[collection]; ok {
			if m, ok := vc.metadata[id]; ok && m != nil {
				out[i] = maps.Clone(m)
			}
		}
		ix.mu.RUnlock()
	}
	return out, nil
}

// CollectionStats describes one collection.
type CollectionStats struct {
	Name      string          `json:"name"`
	Kind      CollectionKind  `json:"kind"`
	Count     int             `json:"count"`
	Dimension int             `json:"dimension,omitempty"`
	Metric    filigree.Metric `json:"metric"`
}

// CollectionStats returns statistics for one collection.
func (ix *Index) CollectionStats(name string) (CollectionStats, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if c, ok := ix.docs[name]; ok {
		return CollectionStats{
			Name:      name,
			Kind:      KindDocument,
			Count:     len(c.entries),
			Dimension: c.dimension,
			Metric:    c.metric,
		}, nil
	}
	if vc, ok := ix.vecs[name]; ok {
		return CollectionStats{
			Name:      name,
			Kind:      KindVector,
			Count:     len(vc.ids),
			Dimension: vc.dimension,
			Metric:    vc.metric,
		}, nil
	}
	return CollectionStats{}, fmt.Errorf("%w: %s", filigree.ErrCollectionNotFound, name)
}

// ListCollections returns all collection names, sorted.
func (ix *Index) ListCollections() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	names := make([]string, 0, len(ix.docs)+len(ix.vecs))
	for name := range ix.docs {
		names = append(names, name)
	}
	for name := range ix.vecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasCollection reports whether a collection exists in either mode.
func (ix *Index) HasCollection(name string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.existsLocked(name)
}

// Close writes snapshots to the configured SnapshotDir, if any.
func (ix *Index) Close() error {
	if ix.snapshotDir == "" {
		return nil
	}
	return ix.Save(ix.snapshotDir)
}

func (ix *Index) existsLocked(name string) bool {
	if _, ok := ix.docs[name]; ok {
		return true
	}
	_, ok := ix.vecs[name]
	return ok
}

// mirrorMetadata writes metadata entries to the KV store. Failures are
// logged and swallowed so a mirror outage cannot fail ingestion.
func (ix *Index) mirrorMetadata(ctx context.Context, collection string, docs []Document) {
	if ix.store == nil {
		return
	}
	for _, doc := range docs {
		if doc.Metadata == nil {
			continue
		}
		data, err := json.Marshal(doc.Metadata)
		if err != nil {
			ix.log.Warn(ctx, "failed to encode metadata mirror entry",
				logger.Attr("collection", collection),
				logger.Attr("id", doc.ID),
				logger.Attr("error", err.Error()))
			continue
		}
		if err := ix.store.Set(ctx, mirrorKey(collection, doc.ID), data, 0); err != nil {
			ix.log.Warn(ctx, "failed to write metadata mirror entry",
				logger.Attr("collection", collection),
				logger.Attr("id", doc.ID),
				logger.Attr("error", err.Error()))
		}
	}
}

func mirrorKey(collection, id string) string {
	return mirrorKeyPrefix + collection + "/" + id
}

func normalizeMetric(metric filigree.Metric) (filigree.Metric, error) {
	if metric == "" {
		return filigree.MetricCosine, nil
	}
	if !metric.Valid() {
		return "", fmt.Errorf("unknown distance metric %q", metric)
	}
	return metric, nil
}

// metadataMatches reports whether every filter key equals the stored
// metadata value.
func metadataMatches(metadata, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok || !valueEqual(got, want) {
			return false
		}
	}
	return true
}

// valueEqual compares metadata values, treating all numeric types as
// float64 so JSON round-tripped metadata still matches native ints.
func valueEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// docDistance computes the document-mode distance for a metric. Cosine
// operates on pre-normalized vectors, so the distance is 1 minus their
// inner product.
func docDistance(metric filigree.Metric, a, b []float32) float64 {
	switch metric {
	case filigree.MetricL2:
		return squaredL2(a, b)
	case filigree.MetricL1:
		return l1Distance(a, b)
	default:
		return 1 - dotProduct(a, b)
	}
}

// l2Normalize returns a unit-length copy. Zero vectors are copied
// unchanged to avoid dividing by zero.
func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func l1Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(float64(a[i]) - float64(b[i]))
	}
	return sum
}
