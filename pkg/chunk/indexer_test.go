package chunk

import (
	"context"
	"testing"
	"time"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
	"github.com/filigree-ai/go-filigree/pkg/kv"
)

func testProcessingResult() *filigree.ProcessingResult {
	return &filigree.ProcessingResult{
		Chunks: []filigree.DocumentChunk{
			{
				ID:              "sec_risk_factors_0",
				Content:         "Credit risk exposure rose across all counterparties.",
				ChunkType:       "sec_risk_factors",
				TokenCount:      7,
				ImportanceScore: 0.9,
				Metadata:        map[string]any{MetaFinancialConcepts: []string{"risk_indicators"}},
			},
			{
				ID:              "sec_business_0",
				Content:         "Revenue grew strongly in the services segment.",
				ChunkType:       "sec_business",
				TokenCount:      7,
				ImportanceScore: 0.5,
				Metadata:        map[string]any{MetaFinancialConcepts: []string{"financial_metrics"}},
			},
			{
				ID:              "sec_legal_proceedings_0",
				Content:         "Boilerplate legal text about routine matters.",
				ChunkType:       "sec_legal_proceedings",
				TokenCount:      6,
				ImportanceScore: 0.2,
				Metadata:        map[string]any{},
			},
		},
		Stats: filigree.ProcessingStats{
			DocumentType: filigree.DocTypeSEC10K,
			TotalChunks:  3,
			TotalTokens:  20,
			ProcessedAt:  time.Now().UTC(),
		},
	}
}

func TestIndexerAddValidation(t *testing.T) {
	ix := NewIndexer(nil, nil)
	ctx := context.Background()

	if err := ix.Add(ctx, "", testProcessingResult()); err == nil {
		t.Error("Add() with empty document id should fail")
	}
	if err := ix.Add(ctx, "doc", nil); err == nil {
		t.Error("Add() with nil result should fail")
	}
}

func TestIndexerSearch(t *testing.T) {
	ix := NewIndexer(nil, nil)
	ctx := context.Background()

	if err := ix.Add(ctx, "sec_10k_2025", testProcessingResult()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	t.Run("single term", func(t *testing.T) {
		hits := ix.Search("credit", nil, 0, 0)
		if len(hits) != 1 || hits[0].ChunkID != "sec_risk_factors_0" {
			t.Fatalf("Search() = %+v, want the risk chunk", hits)
		}
		if hits[0].Score != 1 {
			t.Errorf("hit score = %v, want 1", hits[0].Score)
		}
		if hits[0].DocumentID != "sec_10k_2025" {
			t.Errorf("hit document = %q", hits[0].DocumentID)
		}
	})

	t.Run("partial overlap ties break on importance", func(t *testing.T) {
		hits := ix.Search("revenue credit", nil, 0, 0)
		if len(hits) != 2 {
			t.Fatalf("Search() returned %d hits, want 2", len(hits))
		}
		// Both match one of two terms; the higher-importance chunk leads.
		if hits[0].ChunkID != "sec_risk_factors_0" || hits[1].ChunkID != "sec_business_0" {
			t.Errorf("hit order = %q, %q", hits[0].ChunkID, hits[1].ChunkID)
		}
		if hits[0].Score != 0.5 || hits[1].Score != 0.5 {
			t.Errorf("hit scores = %v, %v, want 0.5 each", hits[0].Score, hits[1].Score)
		}
	})

	t.Run("metadata text matches", func(t *testing.T) {
		hits := ix.Search("risk_indicators", nil, 0, 0)
		if len(hits) != 1 || hits[0].ChunkID != "sec_risk_factors_0" {
			t.Fatalf("Search() over metadata = %+v, want the risk chunk", hits)
		}
	})

	t.Run("chunk type filter", func(t *testing.T) {
		hits := ix.Search("credit", []string{"sec_business"}, 0, 0)
		if len(hits) != 0 {
			t.Errorf("Search() with mismatching type filter = %+v, want none", hits)
		}
	})

	t.Run("min importance is monotonic", func(t *testing.T) {
		loose := ix.Search("text", nil, 0.1, 0)
		strict := ix.Search("text", nil, 0.5, 0)
		if len(loose) != 1 || loose[0].ChunkID != "sec_legal_proceedings_0" {
			t.Fatalf("Search() at 0.1 = %+v, want the legal chunk", loose)
		}
		if len(strict) != 0 {
			t.Errorf("Search() at 0.5 = %+v, want none", strict)
		}
	})

	t.Run("limit truncates", func(t *testing.T) {
		hits := ix.Search("revenue credit", nil, 0, 1)
		if len(hits) != 1 || hits[0].ChunkID != "sec_risk_factors_0" {
			t.Errorf("Search() with limit = %+v, want only the top hit", hits)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		if hits := ix.Search("   ", nil, 0, 0); hits != nil {
			t.Errorf("Search() with empty query = %+v, want nil", hits)
		}
	})
}

func TestIndexerPersistence(t *testing.T) {
	store := kv.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	first := NewIndexer(store, nil)
	if err := first.Add(ctx, "sec_10k_2025", testProcessingResult()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// A fresh indexer over the same store recovers everything.
	second := NewIndexer(store, nil)
	if err := second.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	docs := second.Documents()
	if len(docs) != 1 || docs[0] != "sec_10k_2025" {
		t.Fatalf("Documents() after Load = %v", docs)
	}
	doc, ok := second.Document("sec_10k_2025")
	if !ok || doc.ChunkCount != 3 || doc.TotalTokens != 20 {
		t.Errorf("Document() = %+v, ok %v", doc, ok)
	}
	if hits := second.Search("credit", nil, 0, 0); len(hits) != 1 {
		t.Errorf("Search() after Load returned %d hits, want 1", len(hits))
	}

	if err := second.Remove(ctx, "sec_10k_2025"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if docsLeft, chunksLeft := second.Stats(); docsLeft != 0 || chunksLeft != 0 {
		t.Errorf("Stats() after Remove = %d docs, %d chunks", docsLeft, chunksLeft)
	}
	keys, err := store.Keys(ctx, indexKeyPrefix)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("store still holds %v after Remove", keys)
	}
}

func TestIndexerReplacesDocument(t *testing.T) {
	ix := NewIndexer(nil, nil)
	ctx := context.Background()

	if err := ix.Add(ctx, "doc", testProcessingResult()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	smaller := &filigree.ProcessingResult{
		Chunks: testProcessingResult().Chunks[:1],
		Stats:  filigree.ProcessingStats{TotalChunks: 1, TotalTokens: 7},
	}
	if err := ix.Add(ctx, "doc", smaller); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	docs, chunks := ix.Stats()
	if docs != 1 || chunks != 1 {
		t.Errorf("Stats() = %d docs, %d chunks, want 1 and 1", docs, chunks)
	}
}
