package chunk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
)

var paragraphBreakRe = regexp.MustCompile(`\n\s*\n`)

// paragraphChunks accumulates paragraphs into chunks for prose filings.
//
// A paragraph joins the current chunk while the running token count stays
// within the ceiling. On overflow the chunk is flushed only if it reached
// the emission floor; otherwise its text is dropped. Either way the
// character cursor advances past it, so offsets always refer to the
// cleaned section text. The same floor applies to the final chunk.
func (e *Engine) paragraphChunks(text, sectionName string, base map[string]any) []filigree.DocumentChunk {
	paragraphs := e.splitIntoParagraphs(text)

	var chunks []filigree.DocumentChunk
	var parts []string
	accumLen := 0 // includes the "\n\n" joiners and trailing break
	tokens := 0
	chunkIndex := 0
	startPos := 0

	flush := func() {
		if len(parts) == 0 || tokens < e.minChunk {
			return
		}
		content := strings.Join(parts, "\n\n")
		chunks = append(chunks, e.newChunk(
			content,
			fmt.Sprintf("sec_%s_%d", sectionName, chunkIndex),
			"sec_"+sectionName,
			base,
			startPos,
			startPos+accumLen,
		))
		chunkIndex++
	}

	for _, para := range paragraphs {
		paraTokens := e.tok.Count(para)
		if tokens+paraTokens <= e.maxChunk {
			parts = append(parts, para)
			accumLen += len(para) + 2
			tokens += paraTokens
			continue
		}

		flush()
		startPos += accumLen
		parts = []string{para}
		accumLen = len(para) + 2
		tokens = paraTokens
	}
	flush()

	return chunks
}

// lineChunks accumulates lines for row-oriented swap data. Character
// offsets are not meaningful across records, so chunks report 0 and their
// own length.
func (e *Engine) lineChunks(text string, base map[string]any) []filigree.DocumentChunk {
	lines := strings.Split(strings.TrimSpace(text), "\n")

	var chunks []filigree.DocumentChunk
	var current []string
	tokens := 0
	chunkIndex := 0

	flush := func() {
		if len(current) == 0 || tokens < e.minChunk {
			return
		}
		content := strings.Join(current, "\n")
		chunks = append(chunks, e.newChunk(
			content,
			fmt.Sprintf("cftc_swap_%d", chunkIndex),
			"cftc_swap_data",
			base,
			0,
			len(content),
		))
		chunkIndex++
	}

	for _, line := range lines {
		lineTokens := e.tok.Count(line)
		if tokens+lineTokens <= e.maxChunk {
			current = append(current, line)
			tokens += lineTokens
			continue
		}
		flush()
		current = []string{line}
		tokens = lineTokens
	}
	flush()

	return chunks
}

// formChunks splits a structured form into sections, then windows each
// section. The chunk counter threads through the id prefix across
// sections, so ids stay unique even when section names repeat.
func (e *Engine) formChunks(text string, docType filigree.DocumentType, base map[string]any) []filigree.DocumentChunk {
	sections := e.splitFormSections(text, docType)
	typeTag := strings.ToLower(string(docType))

	var chunks []filigree.DocumentChunk
	running := 0
	for _, sec := range sections {
		prefix := fmt.Sprintf("%s_%s_%d", typeTag, sec.name, running)
		chunkType := typeTag + "_" + sec.name
		secChunks := e.windowChunks(sec.text, prefix, chunkType, base)
		chunks = append(chunks, secChunks...)
		running += len(secChunks)
	}
	return chunks
}

// windowChunks slides a fixed-size token window over text. Text within the
// ceiling becomes a single chunk with character offsets; longer text is
// sliced by token ids, with each window starting OverlapSize tokens before
// the previous one ended and offsets reported in token indices. The loop
// stops once the remaining tail could not reach the emission floor.
func (e *Engine) windowChunks(text, idPrefix, chunkType string, base map[string]any) []filigree.DocumentChunk {
	tokens := e.tok.Encode(text)

	if len(tokens) <= e.maxChunk {
		return []filigree.DocumentChunk{
			e.newChunk(text, idPrefix+"_0", chunkType, base, 0, len(text)),
		}
	}

	var chunks []filigree.DocumentChunk
	chunkIndex := 0
	start := 0
	for start < len(tokens) {
		end := min(start+e.maxChunk, len(tokens))
		content := e.tok.Decode(tokens[start:end])
		chunks = append(chunks, e.newChunk(
			content,
			fmt.Sprintf("%s_%d", idPrefix, chunkIndex),
			chunkType,
			base,
			start,
			end,
		))
		chunkIndex++

		start = end - e.overlap
		if start >= len(tokens)-e.minChunk {
			break
		}
	}
	return chunks
}

// splitIntoParagraphs cuts text at blank lines, then breaks any paragraph
// over the chunk ceiling into sentence runs that each fit.
func (e *Engine) splitIntoParagraphs(text string) []string {
	paragraphs := paragraphBreakRe.Split(text, -1)

	var result []string
	for _, para := range paragraphs {
		if e.tok.Count(para) <= e.maxChunk {
			if p := strings.TrimSpace(para); p != "" {
				result = append(result, p)
			}
			continue
		}

		var current string
		for _, sentence := range splitSentences(para) {
			candidate := sentence
			if current != "" {
				candidate = current + " " + sentence
			}
			if e.tok.Count(candidate) <= e.maxChunk {
				current = candidate
				continue
			}
			if current != "" {
				result = append(result, strings.TrimSpace(current))
			}
			current = sentence
		}
		if p := strings.TrimSpace(current); p != "" {
			result = append(result, p)
		}
	}
	return result
}

var sentenceEndRe = regexp.MustCompile(`[.!?]\s+`)

// splitSentences cuts after sentence-ending punctuation followed by
// whitespace. The punctuation stays with its sentence; the whitespace run
// is consumed.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		sentences = append(sentences, text[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}
