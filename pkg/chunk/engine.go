// Package chunk turns regulatory filings into retrieval-sized chunks.
//
// The engine cleans raw filing text, extracts document structure where the
// format has any (SEC item anchors, form sections), applies the chunking
// strategy the capability table assigns to the document type, and enriches
// every chunk with content signals (financial concepts, risk terms,
// readability) plus an importance score used at query time.
package chunk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
	"github.com/filigree-ai/go-filigree/pkg/logger"
	"github.com/filigree-ai/go-filigree/pkg/tokenizer"
)

// Metadata keys the engine writes on every chunk, alongside whatever the
// caller supplied.
const (
	MetaTokenCount        = "token_count"
	MetaCharacterCount    = "character_count"
	MetaFinancialConcepts = "financial_concepts"
	MetaContainsNumbers   = "contains_numbers"
	MetaContainsCurrency  = "contains_currency"
	MetaRiskIndicators    = "risk_indicators"
	MetaReadability       = "readability_score"
	MetaCreatedAt         = "created_at"

	// MetaDocumentID is read from caller metadata to set SourceDocument.
	MetaDocumentID = "document_id"
)

// Config holds the engine's chunking parameters. All sizes are in tokens.
type Config struct {
	// MaxChunkTokens is the chunk size ceiling. Defaults to 512.
	MaxChunkTokens int
	// ChunkOverlap is the sliding-window overlap. Defaults to 50.
	ChunkOverlap int
	// MinChunkTokens is the emission floor; accumulated text below it at a
	// flush boundary is dropped. Defaults to 100.
	MinChunkTokens int
	// Tokenizer counts and slices tokens. Defaults to a fresh segment
	// tokenizer.
	Tokenizer tokenizer.Tokenizer
	// Logger receives processing diagnostics. Defaults to the nop logger.
	Logger *logger.Logger
}

// DefaultConfig returns the default chunking parameters.
func DefaultConfig() *Config {
	return &Config{
		MaxChunkTokens: 512,
		ChunkOverlap:   50,
		MinChunkTokens: 100,
	}
}

// Engine chunks documents. Safe for concurrent use.
type Engine struct {
	maxChunk int
	overlap  int
	minChunk int
	tok      tokenizer.Tokenizer
	log      *logger.Logger
}

// New creates an Engine from cfg. A nil cfg uses DefaultConfig. An overlap
// that reaches MaxChunkTokens would stall the sliding window, so it is
// clamped to a quarter of the chunk size with a warning rather than
// rejected.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	maxChunk := cfg.MaxChunkTokens
	if maxChunk <= 0 {
		maxChunk = 512
	}
	minChunk := cfg.MinChunkTokens
	if minChunk <= 0 {
		minChunk = 100
	}
	if minChunk > maxChunk {
		return nil, fmt.Errorf("min chunk size %d exceeds max chunk size %d", minChunk, maxChunk)
	}

	overlap := cfg.ChunkOverlap
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= maxChunk {
		clamped := maxChunk / 4
		log.Warn(context.Background(), "chunk overlap reaches chunk size, clamping",
			logger.Attr("overlap", overlap),
			logger.Attr("max_chunk_tokens", maxChunk),
			logger.Attr("clamped_to", clamped))
		overlap = clamped
	}

	tok := cfg.Tokenizer
	if tok == nil {
		tok = tokenizer.NewSegment()
	}

	return &Engine{
		maxChunk: maxChunk,
		overlap:  overlap,
		minChunk: minChunk,
		tok:      tok,
		log:      log,
	}, nil
}

// Process chunks one document.
//
// Input: raw document text, its type, and caller metadata copied onto every
// chunk (metadata["document_id"] becomes each chunk's SourceDocument)
// Output: ProcessingResult with chunks, run statistics and any per-section
// errors
// Behavior: unknown document types and documents that clean down to nothing
// fail up front with ErrUnsupportedDocumentType / ErrEmptyDocument. After
// that, failures are confined to their section: the error is logged and
// recorded in Result.Errors while the remaining sections still produce
// chunks.
func (e *Engine) Process(ctx context.Context, text string, docType filigree.DocumentType, metadata map[string]any) (*filigree.ProcessingResult, error) {
	start := time.Now()

	caps, ok := docType.Capabilities()
	if !ok {
		return nil, filigree.WrapErrorf(filigree.ErrUnsupportedDocumentType, "processing document type %q", docType)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	cleaned := cleanDocumentText(text)
	if cleaned == "" {
		return nil, filigree.WrapError(filigree.ErrEmptyDocument, "document empty after cleaning")
	}

	var sections []section
	if caps.SECSections {
		sections = e.extractSECSections(cleaned)
	} else {
		sections = []section{{name: "main", text: cleaned}}
	}

	var chunks []filigree.DocumentChunk
	var errs []string
	for _, sec := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		secChunks, err := e.chunkSection(sec, docType, caps, metadata)
		if err != nil {
			msg := fmt.Sprintf("failed to process section %s: %v", sec.name, err)
			e.log.Error(ctx, "section processing failed",
				logger.Attr("section", sec.name),
				logger.Attr("error", err.Error()))
			errs = append(errs, msg)
			continue
		}
		chunks = append(chunks, secChunks...)
	}

	applyImportanceScores(chunks)

	result := &filigree.ProcessingResult{
		Chunks: chunks,
		Stats:  buildStats(docType, text, cleaned, sections, chunks, time.Since(start)),
		Errors: errs,
	}

	e.log.Debug(ctx, "document processed",
		logger.Attr("document_type", string(docType)),
		logger.Attr("chunks", len(chunks)),
		logger.Attr("sections", len(sections)),
		logger.Attr("duration", result.Stats.ProcessingTime.String()))

	return result, nil
}

// chunkSection applies the capability-table strategy to one section.
func (e *Engine) chunkSection(sec section, docType filigree.DocumentType, caps filigree.Capabilities, metadata map[string]any) ([]filigree.DocumentChunk, error) {
	switch caps.Strategy {
	case filigree.StrategyParagraph:
		return e.paragraphChunks(sec.text, sec.name, metadata), nil
	case filigree.StrategyLines:
		return e.lineChunks(sec.text, metadata), nil
	case filigree.StrategyWindow:
		if caps.FormSections {
			return e.formChunks(sec.text, docType, metadata), nil
		}
		prefix := "generic_" + sec.name
		return e.windowChunks(sec.text, prefix, prefix, metadata), nil
	default:
		return nil, fmt.Errorf("no strategy for document type %q", docType)
	}
}

func buildStats(docType filigree.DocumentType, original, cleaned string, sections []section, chunks []filigree.DocumentChunk, elapsed time.Duration) filigree.ProcessingStats {
	stats := filigree.ProcessingStats{
		DocumentType:      docType,
		OriginalLength:    len(original),
		CleanedLength:     len(cleaned),
		TotalChunks:       len(chunks),
		SectionsProcessed: len(sections),
		ProcessingTime:    elapsed,
		ProcessedAt:       time.Now().UTC(),
	}
	if len(chunks) == 0 {
		return stats
	}

	minTokens, maxTokens, total := chunks[0].TokenCount, chunks[0].TokenCount, 0
	for _, c := range chunks {
		total += c.TokenCount
		if c.TokenCount < minTokens {
			minTokens = c.TokenCount
		}
		if c.TokenCount > maxTokens {
			maxTokens = c.TokenCount
		}
	}
	stats.TotalTokens = total
	stats.AvgChunkTokens = float64(total) / float64(len(chunks))
	stats.MinChunkTokens = minTokens
	stats.MaxChunkTokens = maxTokens
	return stats
}

// newChunk builds one enriched chunk.
func (e *Engine) newChunk(text, id, chunkType string, base map[string]any, charStart, charEnd int) filigree.DocumentChunk {
	tokenCount := e.tok.Count(text)

	md := make(map[string]any, len(base)+8)
	for k, v := range base {
		md[k] = v
	}
	md[MetaTokenCount] = tokenCount
	md[MetaCharacterCount] = len(text)
	md[MetaFinancialConcepts] = extractFinancialConcepts(text)
	md[MetaContainsNumbers] = containsNumbers(text)
	md[MetaContainsCurrency] = containsCurrency(text)
	md[MetaRiskIndicators] = countRiskIndicators(text)
	md[MetaReadability] = readabilityScore(text)
	md[MetaCreatedAt] = time.Now().UTC().Format(time.RFC3339)

	source := "unknown"
	if v, ok := base[MetaDocumentID].(string); ok && v != "" {
		source = v
	}

	return filigree.DocumentChunk{
		ID:             id,
		Content:        text,
		ChunkType:      chunkType,
		SourceDocument: source,
		Metadata:       md,
		TokenCount:     tokenCount,
		CharStart:      charStart,
		CharEnd:        charEnd,
	}
}

// applyImportanceScores runs the importance post-pass over a document's
// chunks. Scores weigh the chunk's structural role first (risk sections
// ahead of business and financial ones), then the density of financial
// concepts and risk terms, then cheap content signals, and clamp to [0,1].
func applyImportanceScores(chunks []filigree.DocumentChunk) {
	for i := range chunks {
		score := 0.0

		chunkType := strings.ToLower(chunks[i].ChunkType)
		switch {
		case strings.Contains(chunkType, "risk"):
			score += 0.3
		case strings.Contains(chunkType, "business"):
			score += 0.2
		case strings.Contains(chunkType, "financial"):
			score += 0.25
		}

		if concepts, ok := chunks[i].Metadata[MetaFinancialConcepts].([]string); ok {
			score += min(0.3, float64(len(concepts))*0.1)
		}
		if riskCount, ok := chunks[i].Metadata[MetaRiskIndicators].(int); ok {
			score += min(0.2, float64(riskCount)*0.05)
		}
		if v, _ := chunks[i].Metadata[MetaContainsCurrency].(bool); v {
			score += 0.1
		}
		if v, _ := chunks[i].Metadata[MetaContainsNumbers].(bool); v {
			score += 0.05
		}

		chunks[i].ImportanceScore = min(1.0, score)
	}
}
