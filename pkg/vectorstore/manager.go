package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
	"github.com/filigree-ai/go-filigree/pkg/logger"
)

// standardVectorCollections lists the flat numeric collections and their
// dimensions: swap term structures at 768, market indicator series at 512,
// company profile fingerprints at 1024.
var standardVectorCollections = []struct {
	name      string
	dimension int
}{
	{filigree.CollectionCFTCNumerical, 768},
	{filigree.CollectionMarketIndicators, 512},
	{filigree.CollectionCompanyProfiles, 1024},
}

// DocumentCollections returns the standard document-mode collection names.
func DocumentCollections() []string {
	return []string{
		filigree.CollectionSECFilings,
		filigree.CollectionCFTCSummaries,
		filigree.CollectionInsiderReports,
		filigree.CollectionFormDFilings,
		filigree.CollectionFundReports,
		filigree.CollectionMarketEvents,
		filigree.CollectionRiskAssessments,
	}
}

// DefaultSearchCollections returns the document collections searched when
// a caller does not name any.
func DefaultSearchCollections() []string {
	return []string{
		filigree.CollectionSECFilings,
		filigree.CollectionCFTCSummaries,
		filigree.CollectionInsiderReports,
		filigree.CollectionFormDFilings,
	}
}

// Manager provisions the standard regulatory collections on an Index and
// provides the high-level ingestion and search operations built on them.
type Manager struct {
	index *Index
	log   *logger.Logger
}

// NewManager wraps an Index, creating every standard collection that does
// not already exist. All standard collections use the cosine metric.
func NewManager(index *Index, log *logger.Logger) (*Manager, error) {
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	for _, name := range DocumentCollections() {
		err := index.CreateCollection(name, filigree.MetricCosine)
		if err != nil && !errors.Is(err, filigree.ErrCollectionExists) {
			return nil, fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	for _, vc := range standardVectorCollections {
		err := index.CreateVectorCollection(vc.name, vc.dimension, filigree.MetricCosine)
		if err != nil && !errors.Is(err, filigree.ErrCollectionExists) {
			return nil, fmt.Errorf("create vector collection %s: %w", vc.name, err)
		}
	}
	return &Manager{index: index, log: log}, nil
}

// Index exposes the underlying index for operations the manager does not
// wrap.
func (m *Manager) Index() *Index { return m.index }

// AddSECFiling stores one SEC filing chunk in the sec_filings collection.
func (m *Manager) AddSECFiling(ctx context.Context, id, content string, metadata map[string]any, embedding []float32) error {
	return m.index.AddDocuments(ctx, filigree.CollectionSECFilings, []Document{{
		ID:        id,
		Content:   content,
		Metadata:  metadata,
		Embedding: embedding,
	}})
}

// AddCFTCSummary stores one swap summary in the cftc_summaries collection.
func (m *Manager) AddCFTCSummary(ctx context.Context, id, content string, metadata map[string]any, embedding []float32) error {
	return m.index.AddDocuments(ctx, filigree.CollectionCFTCSummaries, []Document{{
		ID:        id,
		Content:   content,
		Metadata:  metadata,
		Embedding: embedding,
	}})
}

// SemanticSearch queries several document collections with one query and
// returns the hits grouped by collection.
//
// Input: ctx, query text, collections (nil for the default search set),
// per-collection result count k, optional metadata filter
// Output: map of collection name to ranked hits
// Behavior: the query is embedded once and the vector fanned out to every
// collection. Unknown collection names are skipped, and a collection whose
// query fails is logged and skipped, so one bad source never empties the
// whole search
func (m *Manager) SemanticSearch(ctx context.Context, query string, collections []string, k int, filter map[string]any) (map[string][]DocumentHit, error) {
	if query == "" {
		return nil, fmt.Errorf("query text is required")
	}
	if m.index.embedder == nil {
		return nil, fmt.Errorf("no embedder configured for semantic search")
	}
	if len(collections) == 0 {
		collections = DefaultSearchCollections()
	}

	vecs, err := m.index.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vecs))
	}

	results := make(map[string][]DocumentHit, len(collections))
	for _, name := range collections {
		hits, err := m.index.QueryDocuments(ctx, name, Query{
			Embedding: vecs[0],
			K:         k,
			Filter:    filter,
		})
		if err != nil {
			if errors.Is(err, filigree.ErrCollectionNotFound) {
				continue
			}
			m.log.Warn(ctx, "collection search failed",
				logger.Attr("collection", name),
				logger.Attr("error", err.Error()))
			continue
		}
		results[name] = hits
	}
	return results, nil
}

// SystemStats aggregates counts across every collection.
type SystemStats struct {
	Collections    map[string]CollectionStats `json:"collections"`
	TotalDocuments int                        `json:"total_documents"`
	TotalVectors   int                        `json:"total_vectors"`
}

// SystemStats returns per-collection statistics plus document and vector
// totals.
func (m *Manager) SystemStats() SystemStats {
	stats := SystemStats{Collections: make(map[string]CollectionStats)}
	for _, name := range m.index.ListCollections() {
		cs, err := m.index.CollectionStats(name)
		if err != nil {
			continue
		}
		stats.Collections[name] = cs
		switch cs.Kind {
		case KindDocument:
			stats.TotalDocuments += cs.Count
		case KindVector:
			stats.TotalVectors += cs.Count
		}
	}
	return stats
}

// Close closes the underlying index, writing snapshots when configured.
func (m *Manager) Close() error {
	return m.index.Close()
}
