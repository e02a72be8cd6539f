package entity

import (
	"regexp"
	"strings"

	"github.com/hbollon/go-edlib"
)

// Corporate suffixes stripped before comparing names, so "Acme Corp" and
// "Acme Corporation" normalize to the same string.
var (
	suffixRe = regexp.MustCompile(`\b(inc|corp|corporation|ltd|limited|llc|lp|llp)\b`)
	punctRe  = regexp.MustCompile(`[^\w\s]`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// normalizeName lowercases a company name, strips corporate suffixes and
// punctuation, and collapses whitespace.
func normalizeName(name string) string {
	s := strings.ToLower(name)
	s = suffixRe.ReplaceAllString(s, "")
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// nameSimilarity scores two company names in [0, 1]. Names that are equal
// after normalization score 1.0 outright; otherwise the normalized forms
// are compared with an LCS edit-distance ratio.
func nameSimilarity(a, b string) (float64, error) {
	na, nb := normalizeName(a), normalizeName(b)
	if na == nb {
		return 1.0, nil
	}
	sim, err := edlib.StringsSimilarity(na, nb, edlib.Lcs)
	if err != nil {
		return 0, err
	}
	return float64(sim), nil
}

// rawSimilarity compares two strings lowercased but otherwise as-is. Lookup
// uses this for fuzzy name matching, where the query is a bare string with
// no suffix conventions to strip.
func rawSimilarity(a, b string) (float64, error) {
	sim, err := edlib.StringsSimilarity(strings.ToLower(a), strings.ToLower(b), edlib.Lcs)
	if err != nil {
		return 0, err
	}
	return float64(sim), nil
}
