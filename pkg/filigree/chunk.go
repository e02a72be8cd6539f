package filigree

import "time"

// DocumentChunk is one retrieval unit produced by the chunking engine.
//
// ID is deterministic for a given document and configuration, so
// re-ingesting the same filing overwrites rather than duplicates.
// CharStart and CharEnd are offsets into the cleaned document text, not the
// raw input. Metadata holds the enrichment signals computed at chunk time
// (counts, financial concepts, readability) plus any caller-supplied fields;
// values are restricted to strings, numbers, bools and string slices so the
// chunk survives snapshot encoding unchanged.
type DocumentChunk struct {
	ID              string
	Content         string
	ChunkType       string
	SourceDocument  string
	Metadata        map[string]any
	TokenCount      int
	CharStart       int
	CharEnd         int
	ImportanceScore float64
}

// ProcessingStats summarizes one document's chunking run.
type ProcessingStats struct {
	DocumentType      DocumentType
	OriginalLength    int
	CleanedLength     int
	TotalChunks       int
	TotalTokens       int
	SectionsProcessed int
	AvgChunkTokens    float64
	MinChunkTokens    int
	MaxChunkTokens    int
	ProcessingTime    time.Duration
	ProcessedAt       time.Time
}

// ProcessingResult carries the chunks of one document together with run
// statistics. Errors holds non-fatal problems encountered along the way;
// a result with errors may still contain usable chunks.
type ProcessingResult struct {
	Chunks []DocumentChunk
	Stats  ProcessingStats
	Errors []string
}
