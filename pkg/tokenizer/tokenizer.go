// Package tokenizer provides the token-id round-trip capability shared by
// document chunking and embedding-input truncation. Token counts drive
// every chunk-size decision, and sliding-window chunking slices token ids
// and decodes them back, so Encode/Decode must reconstruct the exact text.
package tokenizer

import (
	"strings"
	"sync"
	"unicode"
)

// Tokenizer converts text to token ids and back. Decode(Encode(s)) must
// return s for any trimmed input, and Count must equal len(Encode(s)).
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string
	Count(text string) int
}

// Segment tokenizes on whitespace boundaries: each token is one
// non-whitespace run together with the whitespace that precedes it, so
// concatenating decoded tokens reproduces the input exactly. Ids come from
// an incremental vocabulary private to the instance; they are process-local
// and never persisted.
//
// Counts therefore match word counts, which keeps chunk-size limits
// meaningful for prose.
type Segment struct {
	mu     sync.Mutex
	ids    map[string]int
	tokens []string
}

// NewSegment creates an empty-vocabulary tokenizer.
func NewSegment() *Segment {
	return &Segment{ids: make(map[string]int)}
}

var _ Tokenizer = (*Segment)(nil)

// Encode splits text into segments and returns their vocabulary ids,
// registering unseen segments as it goes.
func (s *Segment) Encode(text string) []int {
	segments := splitSegments(text)
	if len(segments) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, len(segments))
	for i, seg := range segments {
		id, ok := s.ids[seg]
		if !ok {
			id = len(s.tokens)
			s.ids[seg] = id
			s.tokens = append(s.tokens, seg)
		}
		ids[i] = id
	}
	return ids
}

// Decode concatenates the segments for the given ids. Unknown ids are
// skipped.
func (s *Segment) Decode(ids []int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	for _, id := range ids {
		if id >= 0 && id < len(s.tokens) {
			b.WriteString(s.tokens[id])
		}
	}
	return b.String()
}

// Count returns the number of tokens in text without touching the
// vocabulary, so it is cheap on the chunking hot path.
func (s *Segment) Count(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}

// splitSegments cuts text into word segments, each carrying its leading
// whitespace. Trailing whitespace after the last word is dropped.
func splitSegments(text string) []string {
	var segments []string
	segStart := -1
	inWord := false

	for i, r := range text {
		space := unicode.IsSpace(r)
		switch {
		case !space && !inWord:
			// A word begins; its segment keeps any pending whitespace run.
			if segStart < 0 {
				segStart = i
			}
			inWord = true
		case space && inWord:
			segments = append(segments, text[segStart:i])
			segStart = i
			inWord = false
		}
		if segStart < 0 {
			segStart = i
		}
	}
	if inWord && segStart >= 0 {
		segments = append(segments, text[segStart:])
	}
	return segments
}
