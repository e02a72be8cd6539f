package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/filigree-ai/go-filigree/pkg/kv"
	"github.com/filigree-ai/go-filigree/pkg/logger"
	"github.com/filigree-ai/go-filigree/pkg/tokenizer"
)

// cacheKeyPrefix namespaces persisted embeddings in the KV store. The full
// key is cacheKeyPrefix + model + "/" + hash.
const cacheKeyPrefix = "embed/"

// CacheConfig holds CachedClient settings.
type CacheConfig struct {
	// Store persists cache entries across restarts. Nil keeps the cache
	// memory-only.
	Store kv.Store
	// Capacity bounds the in-memory cache; the oldest entry is evicted
	// first. Eviction does not touch the store, whose entries age out via
	// TTL instead. Defaults to 10000.
	Capacity int
	// TTL applies to persisted entries. Zero keeps them forever. Defaults
	// to 24h.
	TTL time.Duration
	// SaveEvery coalesces store writes: pending entries are flushed once
	// this many have accumulated, and on Close. Defaults to 100.
	SaveEvery int
	// BatchSize caps how many texts go to the provider per call. Defaults
	// to 32.
	BatchSize int
	// MaxTokens is the per-text token budget before embedding. Defaults to
	// 512.
	MaxTokens int
	// Tokenizer slices texts for truncation. Defaults to a fresh segment
	// tokenizer.
	Tokenizer tokenizer.Tokenizer
	// Logger receives cache diagnostics. Defaults to the nop logger.
	Logger *logger.Logger
}

// CacheStats is a point-in-time snapshot of cache behavior.
type CacheStats struct {
	Model   string
	Entries int
	Hits    int64
	Misses  int64
}

// CachedClient wraps a provider with normalization, truncation and a
// write-through embedding cache keyed by the exact text sent to the
// provider. It implements Client, so callers embed through it directly.
//
// All cache mutation is serialized behind one mutex; provider calls happen
// outside it, so concurrent Embed calls only contend on bookkeeping.
type CachedClient struct {
	client Client
	tok    tokenizer.Tokenizer
	store  kv.Store
	log    *logger.Logger

	capacity  int
	ttl       time.Duration
	saveEvery int
	batchSize int
	maxTokens int

	mu      sync.Mutex
	entries *orderedmap.OrderedMap[string, []float32]
	pending map[string][]float32
	hits    int64
	misses  int64
}

var _ Client = (*CachedClient)(nil)

// NewCachedClient wraps client with a cache.
//
// Input: ctx for loading persisted entries, the provider to wrap, optional
// config (nil for defaults)
// Output: *CachedClient, error
// Behavior: when cfg.Store is set, previously persisted embeddings for this
// provider's model are loaded up front; entries that fail to decode are
// skipped with a warning, but a store that cannot list or read at all fails
// construction
//
// Example:
//
//	provider, _ := ollama.New("nomic-embed-text")
//	client, err := embed.NewCachedClient(ctx, provider, &embed.CacheConfig{Store: store})
func NewCachedClient(ctx context.Context, client Client, cfg *CacheConfig) (*CachedClient, error) {
	if client == nil {
		return nil, fmt.Errorf("embedding client is required")
	}
	if cfg == nil {
		cfg = &CacheConfig{}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	tok := cfg.Tokenizer
	if tok == nil {
		tok = tokenizer.NewSegment()
	}

	cc := &CachedClient{
		client:    client,
		tok:       tok,
		store:     cfg.Store,
		log:       log,
		capacity:  cfg.Capacity,
		ttl:       cfg.TTL,
		saveEvery: cfg.SaveEvery,
		batchSize: cfg.BatchSize,
		maxTokens: cfg.MaxTokens,
		entries:   orderedmap.New[string, []float32](),
		pending:   make(map[string][]float32),
	}
	if cc.capacity <= 0 {
		cc.capacity = 10000
	}
	if cc.ttl == 0 {
		cc.ttl = 24 * time.Hour
	}
	if cc.saveEvery <= 0 {
		cc.saveEvery = 100
	}
	if cc.batchSize <= 0 {
		cc.batchSize = 32
	}
	if cc.maxTokens <= 0 {
		cc.maxTokens = 512
	}

	if cc.store != nil {
		if err := cc.loadPersisted(ctx); err != nil {
			return nil, fmt.Errorf("load embedding cache: %w", err)
		}
	}
	return cc, nil
}

// loadPersisted fills the in-memory cache from the store.
func (cc *CachedClient) loadPersisted(ctx context.Context) error {
	prefix := cc.storePrefix()
	keys, err := cc.store.Keys(ctx, prefix)
	if err != nil {
		return err
	}

	loaded, skipped := 0, 0
	for _, key := range keys {
		data, err := cc.store.Get(ctx, key)
		if err != nil {
			return err
		}
		if data == nil {
			continue
		}
		vec, err := decodeVector(data)
		if err != nil {
			skipped++
			cc.log.Warn(ctx, "skipping corrupt cached embedding",
				logger.Attr("key", key),
				logger.Attr("error", err.Error()))
			continue
		}
		cc.entries.Set(key[len(prefix):], vec)
		loaded++
		if cc.entries.Len() > cc.capacity {
			if oldest := cc.entries.Oldest(); oldest != nil {
				cc.entries.Delete(oldest.Key)
			}
		}
	}
	if loaded > 0 || skipped > 0 {
		cc.log.Info(ctx, "embedding cache loaded",
			logger.Attr("model", cc.client.Model()),
			logger.Attr("entries", loaded),
			logger.Attr("skipped", skipped))
	}
	return nil
}

// Embed returns one vector per text, serving repeats from the cache.
//
// Input: ctx, texts to embed
// Output: vectors in input order, one per text
// Behavior: each text is normalized and truncated to the token budget, then
// looked up by its post-processing hash. Misses go to the provider in
// batches; a provider failure substitutes zero vectors for that batch and
// is only visible in the logs. Zero fallbacks are never cached, so a
// transient outage cannot poison the persisted cache
func (cc *CachedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	processed := make([]string, len(texts))
	hashes := make([]string, len(texts))
	for i, text := range texts {
		processed[i] = truncateText(cc.tok, normalizeText(text), cc.maxTokens)
		hashes[i] = hashText(processed[i])
	}

	result := make([][]float32, len(texts))
	var missTexts []string
	var missIndices []int

	cc.mu.Lock()
	for i, h := range hashes {
		if vec, ok := cc.entries.Get(h); ok {
			result[i] = slices.Clone(vec)
			cc.hits++
			continue
		}
		cc.misses++
		missTexts = append(missTexts, processed[i])
		missIndices = append(missIndices, i)
	}
	cc.mu.Unlock()

	if len(missTexts) == 0 {
		return result, nil
	}
	cc.log.Debug(ctx, "embedding uncached texts",
		logger.Attr("model", cc.client.Model()),
		logger.Attr("count", len(missTexts)),
		logger.Attr("cached", len(texts)-len(missTexts)))

	for start := 0; start < len(missTexts); start += cc.batchSize {
		end := min(start+cc.batchSize, len(missTexts))
		batch := missTexts[start:end]

		vectors, err := cc.client.Embed(ctx, batch)
		if err != nil || len(vectors) != len(batch) {
			if err == nil {
				err = fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(batch))
			}
			cc.log.Error(ctx, "embedding batch failed, substituting zero vectors",
				logger.Attr("model", cc.client.Model()),
				logger.Attr("batch_size", len(batch)),
				logger.Attr("error", err.Error()))
			dim := cc.client.Dimension()
			for i := range batch {
				result[missIndices[start+i]] = make([]float32, dim)
			}
			continue
		}

		cc.mu.Lock()
		for i, vec := range vectors {
			idx := missIndices[start+i]
			result[idx] = vec
			cc.insertLocked(ctx, hashes[idx], slices.Clone(vec))
		}
		cc.mu.Unlock()
	}

	return result, nil
}

// insertLocked records a new entry and schedules it for persistence.
// Callers hold cc.mu.
func (cc *CachedClient) insertLocked(ctx context.Context, hash string, vec []float32) {
	if _, exists := cc.entries.Get(hash); exists {
		return
	}
	cc.entries.Set(hash, vec)
	if cc.store != nil {
		cc.pending[hash] = vec
	}

	for cc.entries.Len() > cc.capacity {
		oldest := cc.entries.Oldest()
		if oldest == nil {
			break
		}
		cc.entries.Delete(oldest.Key)
		delete(cc.pending, oldest.Key)
	}

	if len(cc.pending) >= cc.saveEvery {
		cc.flushLocked(ctx)
	}
}

// flushLocked writes pending entries to the store. Entries that fail stay
// pending for the next flush. Callers hold cc.mu.
func (cc *CachedClient) flushLocked(ctx context.Context) {
	if cc.store == nil || len(cc.pending) == 0 {
		return
	}

	prefix := cc.storePrefix()
	written := 0
	for hash, vec := range cc.pending {
		if err := cc.store.Set(ctx, prefix+hash, encodeVector(vec), cc.ttl); err != nil {
			cc.log.Warn(ctx, "failed to persist embedding",
				logger.Attr("key", prefix+hash),
				logger.Attr("error", err.Error()))
			continue
		}
		delete(cc.pending, hash)
		written++
	}
	if written > 0 {
		cc.log.Debug(ctx, "embedding cache flushed",
			logger.Attr("model", cc.client.Model()),
			logger.Attr("written", written))
	}
}

// Flush persists all pending entries now.
func (cc *CachedClient) Flush(ctx context.Context) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.flushLocked(ctx)
	if len(cc.pending) > 0 {
		return fmt.Errorf("%d embedding cache entries still unflushed", len(cc.pending))
	}
	return nil
}

// Close flushes pending entries. The underlying store is owned by the
// caller and stays open.
func (cc *CachedClient) Close() error {
	return cc.Flush(context.Background())
}

// Dimension reports the wrapped provider's vector width.
func (cc *CachedClient) Dimension() int { return cc.client.Dimension() }

// Model reports the wrapped provider's model name.
func (cc *CachedClient) Model() string { return cc.client.Model() }

// Stats returns a snapshot of cache counters.
func (cc *CachedClient) Stats() CacheStats {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return CacheStats{
		Model:   cc.client.Model(),
		Entries: cc.entries.Len(),
		Hits:    cc.hits,
		Misses:  cc.misses,
	}
}

func (cc *CachedClient) storePrefix() string {
	return cacheKeyPrefix + cc.client.Model() + "/"
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// encodeVector packs a vector as little-endian float32 bits.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding payload of %d bytes is not a float32 vector", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
