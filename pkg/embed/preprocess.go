package embed

import (
	"regexp"
	"strings"

	"github.com/filigree-ai/go-filigree/pkg/tokenizer"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	dollarGapRe  = regexp.MustCompile(`\$\s*(\d)`)
	percentGapRe = regexp.MustCompile(`(\d)\s*%`)
	htmlEntityRe = regexp.MustCompile(`&[a-zA-Z]+;`)
	punctRunRe   = regexp.MustCompile(`[.,!?;]{2,}`)
)

// normalizeText prepares filing text for embedding: whitespace collapses to
// single spaces, currency and percent figures lose their inner gap
// ("$ 12" to "$12", "12 %" to "12%"), HTML entities blank out, and runs of
// sentence punctuation shrink to one period.
func normalizeText(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = dollarGapRe.ReplaceAllString(text, "$$${1}")
	text = percentGapRe.ReplaceAllString(text, "${1}%")
	text = htmlEntityRe.ReplaceAllString(text, " ")
	text = punctRunRe.ReplaceAllString(text, ".")
	return strings.TrimSpace(text)
}

// truncateText cuts text to at most maxTokens tokens by slicing token ids,
// never mid-word.
func truncateText(tok tokenizer.Tokenizer, text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	ids := tok.Encode(text)
	if len(ids) <= maxTokens {
		return text
	}
	return tok.Decode(ids[:maxTokens])
}
