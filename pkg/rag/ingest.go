package rag

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/filigree-ai/go-filigree/pkg/chunk"
	"github.com/filigree-ai/go-filigree/pkg/filigree"
	"github.com/filigree-ai/go-filigree/pkg/logger"
	"github.com/filigree-ai/go-filigree/pkg/observability"
	"github.com/filigree-ai/go-filigree/pkg/vectorstore"
)

// Document is one source document handed to IndexDocuments.
type Document struct {
	// ID names the document and prefixes its chunk ids. Blank gets a
	// generated UUID.
	ID       string
	Content  string
	Type     filigree.DocumentType
	Metadata map[string]any
}

// IndexReport summarizes one ingestion batch. Errors holds both fatal
// per-document failures and non-fatal chunking notes, each prefixed with
// the document id.
type IndexReport struct {
	DocumentsProcessed int      `json:"documents_processed"`
	ChunksIndexed      int      `json:"chunks_indexed"`
	Errors             []string `json:"errors,omitempty"`
}

// IndexDocuments chunks, embeds and stores docs in the collections their
// types route to. A failing document is recorded in the report and the
// batch continues. The error return is non-nil only when ctx ends before
// the batch does; the report then covers the portion that finished.
func (o *Orchestrator) IndexDocuments(ctx context.Context, docs []Document) (*IndexReport, error) {
	ctx, span := o.tracer.StartSpan(ctx, "rag.index",
		observability.WithAttributes(map[string]any{"documents": len(docs)}))

	report := &IndexReport{}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			span.End(err)
			return report, err
		}

		docID := doc.ID
		if docID == "" {
			docID = uuid.NewString()
		}

		added, warnings, err := o.indexDocument(ctx, docID, doc)
		for _, w := range warnings {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", docID, w))
		}
		if err != nil {
			o.log.Warn(ctx, "document indexing failed",
				logger.Attr("document_id", docID),
				logger.Attr("error", err.Error()))
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", docID, err))
			continue
		}
		report.DocumentsProcessed++
		report.ChunksIndexed += added
	}

	o.metrics.Counter(ctx, metricDocsIndexed, int64(report.DocumentsProcessed), nil)
	o.metrics.Counter(ctx, metricChunksIndexed, int64(report.ChunksIndexed), nil)
	span.SetAttribute("chunks", report.ChunksIndexed)
	span.End(nil)

	o.log.Info(ctx, "documents indexed",
		logger.Attr("documents", report.DocumentsProcessed),
		logger.Attr("chunks", report.ChunksIndexed),
		logger.Attr("errors", len(report.Errors)))
	return report, nil
}

// indexDocument chunks one document, embeds the chunks and upserts them
// into the collection the document type routes to. The returned strings
// are non-fatal chunking notes.
func (o *Orchestrator) indexDocument(ctx context.Context, docID string, doc Document) (int, []string, error) {
	metadata := make(map[string]any, len(doc.Metadata)+2)
	maps.Copy(metadata, doc.Metadata)
	metadata[chunk.MetaDocumentID] = docID
	metadata["document_type"] = string(doc.Type)

	result, err := o.chunker.Process(ctx, doc.Content, doc.Type, metadata)
	if err != nil {
		return 0, nil, fmt.Errorf("chunk: %w", err)
	}
	if len(result.Chunks) == 0 {
		return 0, result.Errors, nil
	}

	texts := make([]string, len(result.Chunks))
	for i, c := range result.Chunks {
		texts[i] = c.Content
	}
	embeddings, err := o.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, result.Errors, fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(result.Chunks) {
		return 0, result.Errors, fmt.Errorf("embed chunks: got %d embeddings for %d chunks", len(embeddings), len(result.Chunks))
	}

	collection := doc.Type.Collection()
	stored := make([]vectorstore.Document, len(result.Chunks))
	for i, c := range result.Chunks {
		md := c.Metadata
		if md == nil {
			md = map[string]any{}
		}
		md["chunk_type"] = c.ChunkType
		md["importance_score"] = c.ImportanceScore
		stored[i] = vectorstore.Document{
			// Chunk ids repeat across documents of the same type, so
			// the stored id is scoped by the document.
			ID:        docID + "/" + c.ID,
			Content:   c.Content,
			Metadata:  md,
			Embedding: embeddings[i],
		}
	}

	if err := o.store.Index().AddDocuments(ctx, collection, stored); err != nil {
		return 0, result.Errors, fmt.Errorf("add to %s: %w", collection, err)
	}
	return len(stored), result.Errors, nil
}
