package rag

import (
	"fmt"
	"slices"
	"strings"
)

// Context assembly limits and similarity thresholds.
const (
	snippetsPerSource = 3
	previewRunes      = 300
	maxCrossRefs      = 5
	highSimilarity    = 0.7
	highlyRelevant    = 0.8
)

// buildContext assembles retrieved snippets into the context block handed
// to the language model, grouped by source collection under an
// intent-specific framing line.
func buildContext(results []SearchResult, intent Intent) string {
	if len(results) == 0 {
		return "No relevant information found."
	}

	order, grouped := groupByCollection(results)

	parts := []string{contextIntro(intent)}
	for _, collection := range order {
		parts = append(parts, sourceContext(collection, grouped[collection]))
	}

	if len(order) > 1 {
		if refs := crossReferences(order, grouped); len(refs) > 0 {
			parts = append(parts, "Cross-dataset correlations:\n"+strings.Join(refs, "\n"))
		}
	}

	if n := countAbove(results, highlyRelevant); n > 0 {
		parts = append(parts, fmt.Sprintf("Note: %d highly relevant sources identified.", n))
	}

	return strings.Join(parts, "\n\n")
}

func groupByCollection(results []SearchResult) ([]string, map[string][]SearchResult) {
	grouped := make(map[string][]SearchResult)
	var order []string
	for _, r := range results {
		if _, seen := grouped[r.Collection]; !seen {
			order = append(order, r.Collection)
		}
		grouped[r.Collection] = append(grouped[r.Collection], r)
	}
	return order, grouped
}

func sourceContext(collection string, results []SearchResult) string {
	items := make([]string, 0, snippetsPerSource)
	for _, r := range results[:min(len(results), snippetsPerSource)] {
		items = append(items, "• "+snippet(r))
	}
	return displayName(collection) + ":\n" + strings.Join(items, "\n\n")
}

// snippet renders one retrieved chunk as a content preview annotated with
// whatever provenance metadata the chunk carries.
func snippet(r SearchResult) string {
	var b strings.Builder
	b.WriteString(truncate(r.Content, previewRunes))
	if v, ok := metaString(r.Metadata, "filing_date"); ok {
		fmt.Fprintf(&b, " (Filed: %s)", v)
	}
	if v, ok := metaString(r.Metadata, "company_name"); ok {
		fmt.Fprintf(&b, " - %s", v)
	}
	if v, ok := metaString(r.Metadata, "section"); ok {
		fmt.Fprintf(&b, " [%s]", v)
	}
	return b.String()
}

// truncate trims s to at most limit runes, marking elided content.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func metaString(md map[string]any, key string) (string, bool) {
	v, ok := md[key]
	if !ok || v == nil {
		return "", false
	}
	s := fmt.Sprintf("%v", v)
	if s == "" {
		return "", false
	}
	return s, true
}

// crossReferences surfaces companies and filing dates that appear in more
// than one source collection, in first-seen order.
func crossReferences(order []string, grouped map[string][]SearchResult) []string {
	type mention struct {
		key         string
		collections []string
	}
	var companies, dates []*mention
	companyIdx := make(map[string]*mention)
	dateIdx := make(map[string]*mention)

	add := func(idx map[string]*mention, list *[]*mention, key, collection string) {
		m, ok := idx[key]
		if !ok {
			m = &mention{key: key}
			idx[key] = m
			*list = append(*list, m)
		}
		if !slices.Contains(m.collections, collection) {
			m.collections = append(m.collections, collection)
		}
	}

	for _, collection := range order {
		for _, r := range grouped[collection] {
			if company, ok := metaString(r.Metadata, "company_name"); ok {
				add(companyIdx, &companies, company, collection)
			}
			if date, ok := metaString(r.Metadata, "filing_date"); ok {
				add(dateIdx, &dates, date, collection)
			}
		}
	}

	var refs []string
	for _, m := range companies {
		if len(m.collections) > 1 {
			refs = append(refs, fmt.Sprintf("• %s appears in %s", m.key, displayNames(m.collections)))
		}
	}
	for _, m := range dates {
		if len(m.collections) > 1 {
			refs = append(refs, fmt.Sprintf("• Multiple filings on %s: %s", m.key, displayNames(m.collections)))
		}
	}
	if len(refs) > maxCrossRefs {
		refs = refs[:maxCrossRefs]
	}
	return refs
}

func displayNames(collections []string) string {
	names := make([]string, len(collections))
	for i, c := range collections {
		names[i] = displayName(c)
	}
	return strings.Join(names, ", ")
}

// confidenceScore blends average similarity, the share of high-similarity
// hits, context length and source diversity into a 0..1 confidence.
func confidenceScore(results []SearchResult, contextLen int) float64 {
	if len(results) == 0 {
		return 0
	}

	var total float64
	high := 0
	collections := make(map[string]struct{})
	for _, r := range results {
		total += r.Similarity
		if r.Similarity > highSimilarity {
			high++
		}
		collections[r.Collection] = struct{}{}
	}

	avg := total / float64(len(results))
	quality := float64(high) / float64(len(results))
	contextScore := min(1, float64(contextLen)/1000)
	diversity := min(1, float64(len(collections))/3)

	return min(1, avg*0.5+quality*0.3+contextScore*0.1+diversity*0.1)
}

func countAbove(results []SearchResult, threshold float64) int {
	n := 0
	for _, r := range results {
		if r.Similarity > threshold {
			n++
		}
	}
	return n
}
