package chunk

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
	"github.com/filigree-ai/go-filigree/pkg/kv"
	"github.com/filigree-ai/go-filigree/pkg/logger"
)

// indexKeyPrefix namespaces persisted index records in the KV store.
const indexKeyPrefix = "chunkindex/"

// IndexedDocument summarizes one processed document held in the index.
type IndexedDocument struct {
	ChunkCount  int       `json:"chunk_count"`
	TotalTokens int       `json:"total_tokens"`
	ProcessedAt time.Time `json:"processed_at"`
	Errors      []string  `json:"errors,omitempty"`
}

// IndexedChunk is the searchable projection of a single chunk.
type IndexedChunk struct {
	ChunkID         string         `json:"chunk_id"`
	DocumentID      string         `json:"document_id"`
	ChunkType       string         `json:"chunk_type"`
	TokenCount      int            `json:"token_count"`
	ImportanceScore float64        `json:"importance_score"`
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// SearchHit is one scored match from Indexer.Search.
type SearchHit struct {
	ChunkID         string
	DocumentID      string
	ChunkType       string
	Score           float64
	ImportanceScore float64
}

// indexRecord is the persisted form of one document's index entries.
type indexRecord struct {
	Document IndexedDocument `json:"document"`
	Chunks   []IndexedChunk  `json:"chunks"`
}

// Indexer keeps a searchable registry of processed chunks keyed by
// document. With a KV store attached, every document is persisted as a
// JSON record and can be recovered with Load after a restart.
type Indexer struct {
	mu     sync.RWMutex
	docs   map[string]IndexedDocument
	chunks map[string][]IndexedChunk

	store kv.Store
	log   *logger.Logger
}

// NewIndexer creates an index. The store may be nil for a purely
// in-memory registry.
func NewIndexer(store kv.Store, log *logger.Logger) *Indexer {
	if log == nil {
		log = logger.Nop()
	}
	return &Indexer{
		docs:   make(map[string]IndexedDocument),
		chunks: make(map[string][]IndexedChunk),
		store:  store,
		log:    log,
	}
}

// Add registers a processing result under documentID, replacing any
// previous entry for the same document.
//
// Input: ctx context.Context, documentID string, result *filigree.ProcessingResult
// Output: error
// Behavior: projects each chunk into its searchable form, records the
// document summary, and persists the record when a KV store is attached
//
// Example:
//
//	result, _ := engine.Process(ctx, text, filigree.DocTypeSEC10K, meta)
//	err := indexer.Add(ctx, "sec_0000320193_10K", result)
func (ix *Indexer) Add(ctx context.Context, documentID string, result *filigree.ProcessingResult) error {
	if documentID == "" {
		return fmt.Errorf("document id is required")
	}
	if result == nil {
		return fmt.Errorf("nil processing result")
	}

	doc := IndexedDocument{
		ChunkCount:  len(result.Chunks),
		TotalTokens: result.Stats.TotalTokens,
		ProcessedAt: result.Stats.ProcessedAt,
		Errors:      result.Errors,
	}
	entries := make([]IndexedChunk, 0, len(result.Chunks))
	for _, c := range result.Chunks {
		entries = append(entries, IndexedChunk{
			ChunkID:         c.ID,
			DocumentID:      documentID,
			ChunkType:       c.ChunkType,
			TokenCount:      c.TokenCount,
			ImportanceScore: c.ImportanceScore,
			Content:         c.Content,
			Metadata:        c.Metadata,
		})
	}

	ix.mu.Lock()
	ix.docs[documentID] = doc
	ix.chunks[documentID] = entries
	ix.mu.Unlock()

	if ix.store == nil {
		return nil
	}
	data, err := json.Marshal(indexRecord{Document: doc, Chunks: entries})
	if err != nil {
		return fmt.Errorf("encode index record: %w", err)
	}
	if err := ix.store.Set(ctx, indexKeyPrefix+documentID, data, 0); err != nil {
		return fmt.Errorf("persist index record: %w", err)
	}
	ix.log.Debug(ctx, "document indexed",
		logger.Attr("document_id", documentID),
		logger.Attr("chunks", len(entries)))
	return nil
}

// Remove drops a document and its chunks from the index.
func (ix *Indexer) Remove(ctx context.Context, documentID string) error {
	ix.mu.Lock()
	delete(ix.docs, documentID)
	delete(ix.chunks, documentID)
	ix.mu.Unlock()

	if ix.store == nil {
		return nil
	}
	if err := ix.store.Delete(ctx, indexKeyPrefix+documentID); err != nil {
		return fmt.Errorf("remove index record: %w", err)
	}
	return nil
}

// Load rebuilds the in-memory registry from the KV store. Records that
// fail to decode are skipped and logged.
func (ix *Indexer) Load(ctx context.Context) error {
	if ix.store == nil {
		return nil
	}
	keys, err := ix.store.Keys(ctx, indexKeyPrefix)
	if err != nil {
		return fmt.Errorf("list index records: %w", err)
	}

	loaded := 0
	for _, key := range keys {
		data, err := ix.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("load index record %s: %w", key, err)
		}
		if data == nil {
			continue
		}
		var rec indexRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			ix.log.Warn(ctx, "skipping unreadable index record",
				logger.Attr("key", key),
				logger.Attr("error", err.Error()))
			continue
		}
		documentID := strings.TrimPrefix(key, indexKeyPrefix)
		ix.mu.Lock()
		ix.docs[documentID] = rec.Document
		ix.chunks[documentID] = rec.Chunks
		ix.mu.Unlock()
		loaded++
	}
	ix.log.Debug(ctx, "chunk index loaded", logger.Attr("documents", loaded))
	return nil
}

// Documents returns the indexed document IDs in sorted order.
func (ix *Indexer) Documents() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids := make([]string, 0, len(ix.docs))
	for id := range ix.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Document returns the summary for one document ID.
func (ix *Indexer) Document(documentID string) (IndexedDocument, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	doc, ok := ix.docs[documentID]
	return doc, ok
}

// Search scores indexed chunks by query term overlap.
//
// Input: query string, chunkTypes []string, minImportance float64, limit int
// Output: []SearchHit ordered by score, then importance, then chunk ID
// Behavior: a chunk matches when its importance is at least
// minImportance, its type is in chunkTypes (empty means any), and at
// least one query term occurs in its content or metadata; score is the
// fraction of query terms found. limit <= 0 returns every match
func (ix *Indexer) Search(query string, chunkTypes []string, minImportance float64, limit int) []SearchHit {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}
	typeSet := make(map[string]struct{}, len(chunkTypes))
	for _, t := range chunkTypes {
		typeSet[t] = struct{}{}
	}

	ix.mu.RLock()
	var hits []SearchHit
	for _, entries := range ix.chunks {
		for _, entry := range entries {
			if entry.ImportanceScore < minImportance {
				continue
			}
			if len(typeSet) > 0 {
				if _, ok := typeSet[entry.ChunkType]; !ok {
					continue
				}
			}
			haystack := strings.ToLower(entry.Content + " " + fmt.Sprintf("%v", entry.Metadata))
			matched := 0
			for _, term := range terms {
				if strings.Contains(haystack, term) {
					matched++
				}
			}
			if matched == 0 {
				continue
			}
			hits = append(hits, SearchHit{
				ChunkID:         entry.ChunkID,
				DocumentID:      entry.DocumentID,
				ChunkType:       entry.ChunkType,
				Score:           float64(matched) / float64(len(terms)),
				ImportanceScore: entry.ImportanceScore,
			})
		}
	}
	ix.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].ImportanceScore != hits[j].ImportanceScore {
			return hits[i].ImportanceScore > hits[j].ImportanceScore
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Stats reports document and chunk counts.
func (ix *Indexer) Stats() (documents, chunks int) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, entries := range ix.chunks {
		chunks += len(entries)
	}
	return len(ix.docs), chunks
}
