package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/filigree-ai/go-filigree/pkg/logger"
	"github.com/filigree-ai/go-filigree/pkg/vectorstore"
)

// searchCollections embeds the query once and fans the search out across
// the target collections. A failing collection is logged and skipped so
// one bad source never sinks the whole query. Survivors are merged,
// ranked by similarity and truncated to k.
func (o *Orchestrator) searchCollections(ctx context.Context, query string, collections []string, filters map[string]any, k int) ([]SearchResult, error) {
	embeddings, err := o.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embed query: provider returned no vectors")
	}
	queryVec := embeddings[0]

	index := o.store.Index()

	var (
		mu     sync.Mutex
		merged []SearchResult
		wg     sync.WaitGroup
	)
	for _, collection := range collections {
		wg.Add(1)
		go func(collection string) {
			defer wg.Done()

			stats, err := index.CollectionStats(collection)
			if err != nil {
				o.log.Warn(ctx, "collection stats unavailable",
					logger.Attr("collection", collection),
					logger.Attr("error", err.Error()))
				return
			}

			hits, err := index.QueryDocuments(ctx, collection, vectorstore.Query{
				Embedding: queryVec,
				K:         k,
				Filter:    filters,
			})
			if err != nil {
				o.log.Warn(ctx, "collection search failed",
					logger.Attr("collection", collection),
					logger.Attr("error", err.Error()))
				return
			}

			results := make([]SearchResult, len(hits))
			for i, hit := range hits {
				results[i] = SearchResult{
					ChunkID:    hit.ID,
					Content:    hit.Content,
					Metadata:   hit.Metadata,
					Similarity: stats.Metric.Similarity(hit.Distance),
					Collection: collection,
				}
			}

			mu.Lock()
			merged = append(merged, results...)
			mu.Unlock()
		}(collection)
	}
	wg.Wait()

	// Stable sort keeps each collection's own ranking for tied scores;
	// the collection name breaks ties across goroutine arrival order.
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Similarity != merged[j].Similarity {
			return merged[i].Similarity > merged[j].Similarity
		}
		return merged[i].Collection < merged[j].Collection
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}
	return merged, nil
}
