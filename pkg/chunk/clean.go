package chunk

import (
	"regexp"
	"strings"
)

var (
	markupTagRe   = regexp.MustCompile(`<[^>]+>`)
	horizontalRe  = regexp.MustCompile(`[^\S\n]+`)
	blankRunRe    = regexp.MustCompile(`\n\s*\n`)
	pageHeaderRe  = regexp.MustCompile(`(?i)page\s+\d+\s+of\s+\d+`)
	pageNumberRe  = regexp.MustCompile(`(?m)^[ \t]*\d+[ \t]*$`)
	ellipsisRunRe = regexp.MustCompile(`[.]{3,}`)
	dashRunRe     = regexp.MustCompile(`[-]{3,}`)
)

var encodingFixer = strings.NewReplacer(
	" ", " ", // non-breaking space
	"’", "'", // right single quotation mark
	"“", `"`, // left double quotation mark
	"”", `"`, // right double quotation mark
)

// cleanDocumentText normalizes raw filing text before chunking: markup
// tags go, horizontal whitespace collapses to single spaces, blank-line
// runs collapse to one paragraph break, page headers and bare page-number
// lines are dropped, curly punctuation is straightened, and long
// punctuation runs shrink. Newlines survive so the paragraph and line
// strategies still see document structure.
func cleanDocumentText(text string) string {
	if strings.Contains(text, "<") && strings.Contains(text, ">") {
		text = markupTagRe.ReplaceAllString(text, "")
	}

	// Straighten punctuation first; the non-breaking space must become a
	// plain space before the whitespace collapse, which is ASCII-only.
	text = encodingFixer.Replace(text)

	text = horizontalRe.ReplaceAllString(text, " ")
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	text = pageHeaderRe.ReplaceAllString(text, "")
	text = pageNumberRe.ReplaceAllString(text, "")

	text = ellipsisRunRe.ReplaceAllString(text, "...")
	text = dashRunRe.ReplaceAllString(text, "---")

	return strings.TrimSpace(text)
}

var (
	digitRe    = regexp.MustCompile(`\d`)
	currencyRe = regexp.MustCompile(`(?i)\$|USD|currency|dollar`)
)

func containsNumbers(text string) bool {
	return digitRe.MatchString(text)
}

func containsCurrency(text string) bool {
	return currencyRe.MatchString(text)
}
