package vectorstore

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ix := newTestIndex(t, nil)
	if err := ix.CreateCollection("filings", filigree.MetricCosine); err != nil {
		t.Fatalf("CreateCollection() error: %v", err)
	}
	docs := []Document{
		{
			ID:      "a",
			Content: "annual report",
			// Nested values exercise the gob registrations.
			Metadata:  map[string]any{"company": "ACME", "tags": []any{"10-K", "risk"}, "detail": map[string]any{"year": 2024}},
			Embedding: []float32{1, 0},
		},
		{ID: "b", Content: "swap summary", Embedding: []float32{0, 1}},
	}
	if err := ix.AddDocuments(ctx, "filings", docs); err != nil {
		t.Fatalf("AddDocuments() error: %v", err)
	}
	if err := ix.CreateVectorCollection("profiles", 2, filigree.MetricL2); err != nil {
		t.Fatalf("CreateVectorCollection() error: %v", err)
	}
	if err := ix.AddVectors(ctx, "profiles", [][]float32{{0, 2}}, []string{"p-1"}, []map[string]any{{"ticker": "ACME"}}); err != nil {
		t.Fatalf("AddVectors() error: %v", err)
	}

	if err := ix.Save(dir); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	for _, name := range []string{"filings.gob", "profiles.gob"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("snapshot file %s missing: %v", name, err)
		}
	}

	restored := newTestIndex(t, &IndexConfig{SnapshotDir: dir})

	stats, err := restored.CollectionStats("filings")
	if err != nil {
		t.Fatalf("CollectionStats() after load error: %v", err)
	}
	if stats.Count != 2 || stats.Kind != KindDocument || stats.Metric != filigree.MetricCosine {
		t.Errorf("restored stats = %+v", stats)
	}

	hits, err := restored.QueryDocuments(ctx, "filings", Query{Embedding: []float32{1, 0}, K: 1})
	if err != nil {
		t.Fatalf("QueryDocuments() after load error: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" || hits[0].Content != "annual report" {
		t.Fatalf("restored hit = %+v", hits)
	}
	detail, ok := hits[0].Metadata["detail"].(map[string]any)
	if !ok || detail["year"] != 2024 {
		t.Errorf("nested metadata did not round-trip: %v", hits[0].Metadata)
	}

	distances, _, extIDs, err := restored.QueryVectors(ctx, "profiles", [][]float32{{0, 0}}, 1)
	if err != nil {
		t.Fatalf("QueryVectors() after load error: %v", err)
	}
	if extIDs[0][0] != "p-1" || math.Abs(float64(distances[0][0])-4) > 1e-6 {
		t.Errorf("restored vector query = ids %v distances %v, want p-1 at squared distance 4", extIDs[0], distances[0])
	}
	meta, err := restored.Metadata(ctx, "profiles", []string{"p-1"})
	if err != nil {
		t.Fatalf("Metadata() after load error: %v", err)
	}
	if meta[0]["ticker"] != "ACME" {
		t.Errorf("restored vector metadata = %v", meta[0])
	}
}

func TestLoadSkipsCorruptSnapshots(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ix := newTestIndex(t, nil)
	if err := ix.CreateCollection("filings", filigree.MetricCosine); err != nil {
		t.Fatalf("CreateCollection() error: %v", err)
	}
	if err := ix.AddDocuments(ctx, "filings", []Document{{ID: "a", Embedding: []float32{1, 0}}}); err != nil {
		t.Fatalf("AddDocuments() error: %v", err)
	}
	if err := ix.Save(dir); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "mangled.gob"), []byte("not a snapshot"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	restored := newTestIndex(t, &IndexConfig{SnapshotDir: dir})
	if !restored.HasCollection("filings") {
		t.Error("valid snapshot not loaded alongside corrupt one")
	}
	if restored.HasCollection("mangled") {
		t.Error("corrupt snapshot produced a collection")
	}
}

func TestLoadMissingDirIsEmpty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never_written")
	ix := newTestIndex(t, &IndexConfig{SnapshotDir: dir})
	if got := ix.ListCollections(); len(got) != 0 {
		t.Errorf("ListCollections() = %v, want empty", got)
	}
}

func TestCloseWritesSnapshots(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ix := newTestIndex(t, &IndexConfig{SnapshotDir: dir})
	if err := ix.CreateCollection("filings", filigree.MetricCosine); err != nil {
		t.Fatalf("CreateCollection() error: %v", err)
	}
	if err := ix.AddDocuments(ctx, "filings", []Document{{ID: "a", Content: "kept", Embedding: []float32{1, 0}}}); err != nil {
		t.Fatalf("AddDocuments() error: %v", err)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened := newTestIndex(t, &IndexConfig{SnapshotDir: dir})
	hits, err := reopened.QueryDocuments(ctx, "filings", Query{Embedding: []float32{1, 0}, K: 1})
	if err != nil {
		t.Fatalf("QueryDocuments() after reopen error: %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "kept" {
		t.Errorf("reopened hits = %+v, want the persisted document", hits)
	}
}
