package vectorstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
	"github.com/filigree-ai/go-filigree/pkg/logger"
)

func init() {
	// Metadata values travel inside interface fields; nested maps and
	// mixed slices need explicit registration for gob.
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

const snapshotExt = ".gob"

// collectionSnapshot is the on-disk form of one collection. Kind selects
// which fields are populated.
type collectionSnapshot struct {
	Name      string
	Kind      CollectionKind
	Metric    filigree.Metric
	Dimension int

	Docs []snapshotDoc // document mode

	Vectors  [][]float32 // vector mode
	IDs      []string
	Metadata map[string]map[string]any
}

type snapshotDoc struct {
	ID       string
	Content  string
	Metadata map[string]any
	Vector   []float32
}

// Save writes one gob file per collection into dir, creating it if needed.
// Existing snapshot files for the same collections are overwritten.
func (ix *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	ix.mu.RLock()
	snapshots := make([]collectionSnapshot, 0, len(ix.docs)+len(ix.vecs))
	for name, c := range ix.docs {
		snap := collectionSnapshot{
			Name:      name,
			Kind:      KindDocument,
			Metric:    c.metric,
			Dimension: c.dimension,
			Docs:      make([]snapshotDoc, 0, len(c.entries)),
		}
		for _, doc := range c.entries {
			snap.Docs = append(snap.Docs, snapshotDoc{
				ID:       doc.id,
				Content:  doc.content,
				Metadata: doc.metadata,
				Vector:   doc.vector,
			})
		}
		snapshots = append(snapshots, snap)
	}
	for name, vc := range ix.vecs {
		snapshots = append(snapshots, collectionSnapshot{
			Name:      name,
			Kind:      KindVector,
			Metric:    vc.metric,
			Dimension: vc.dimension,
			Vectors:   vc.vectors,
			IDs:       vc.ids,
			Metadata:  vc.metadata,
		})
	}
	ix.mu.RUnlock()

	for _, snap := range snapshots {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
			return fmt.Errorf("encode snapshot %s: %w", snap.Name, err)
		}
		path := filepath.Join(dir, snap.Name+snapshotExt)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write snapshot %s: %w", snap.Name, err)
		}
	}

	ix.log.Info(context.Background(), "snapshots saved",
		logger.Attr("dir", dir),
		logger.Attr("collections", len(snapshots)))
	return nil
}

// Load reads every snapshot file in dir and installs the collections,
// replacing same-named ones. A missing directory is not an error; files
// that fail to decode are skipped with a warning so one corrupt snapshot
// cannot take the whole index down.
func (ix *Index) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read snapshot dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExt) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			ix.log.Warn(context.Background(), "skipping unreadable snapshot",
				logger.Attr("path", path),
				logger.Attr("error", err.Error()))
			continue
		}
		var snap collectionSnapshot
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
			ix.log.Warn(context.Background(), "skipping corrupt snapshot",
				logger.Attr("path", path),
				logger.Attr("error", err.Error()))
			continue
		}
		if snap.Name == "" || !snap.Metric.Valid() {
			ix.log.Warn(context.Background(), "skipping malformed snapshot",
				logger.Attr("path", path))
			continue
		}
		ix.install(snap)
		loaded++
	}

	if loaded > 0 {
		ix.log.Info(context.Background(), "snapshots loaded",
			logger.Attr("dir", dir),
			logger.Attr("collections", loaded))
	}
	return nil
}

// install replaces any same-named collection with the snapshot contents.
func (ix *Index) install(snap collectionSnapshot) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	delete(ix.docs, snap.Name)
	delete(ix.vecs, snap.Name)

	switch snap.Kind {
	case KindVector:
		metadata := snap.Metadata
		if metadata == nil {
			metadata = make(map[string]map[string]any)
		}
		ix.vecs[snap.Name] = &vecCollection{
			metric:    snap.Metric,
			dimension: snap.Dimension,
			vectors:   snap.Vectors,
			ids:       snap.IDs,
			metadata:  metadata,
		}
	default:
		c := &docCollection{
			metric:    snap.Metric,
			dimension: snap.Dimension,
			entries:   make(map[string]*storedDoc, len(snap.Docs)),
		}
		for _, doc := range snap.Docs {
			c.entries[doc.ID] = &storedDoc{
				id:       doc.ID,
				content:  doc.Content,
				metadata: doc.Metadata,
				vector:   doc.Vector,
			}
		}
		ix.docs[snap.Name] = c
	}
}
