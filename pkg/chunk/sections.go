package chunk

import (
	"regexp"
	"sort"
	"strings"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
)

// section is one contiguous region of a document processed under a single
// name. Order matters: sections are chunked in document order.
type section struct {
	name string
	text string
}

// secSectionPatterns anchors the sections of the 10-K/10-Q/8-K family.
// Several anchors per section cover the common heading spellings; matches
// anywhere in the document mark a section start.
var secSectionPatterns = map[string][]*regexp.Regexp{
	"business": {
		regexp.MustCompile(`(?i)item\s+1\.\s*business`),
		regexp.MustCompile(`(?i)part\s+i.*item\s+1\s*business`),
		regexp.MustCompile(`(?i)description\s+of\s+business`),
	},
	"risk_factors": {
		regexp.MustCompile(`(?i)item\s+1a\.\s*risk\s+factors`),
		regexp.MustCompile(`(?i)part\s+i.*item\s+1a\s*risk\s+factors`),
		regexp.MustCompile(`(?i)risk\s+factors`),
	},
	"properties": {
		regexp.MustCompile(`(?i)item\s+2\.\s*properties`),
		regexp.MustCompile(`(?i)part\s+i.*item\s+2\s*properties`),
	},
	"legal_proceedings": {
		regexp.MustCompile(`(?i)item\s+3\.\s*legal\s+proceedings`),
		regexp.MustCompile(`(?i)part\s+i.*item\s+3\s*legal\s+proceedings`),
	},
	"controls": {
		regexp.MustCompile(`(?i)item\s+9a\.\s*controls\s+and\s+procedures`),
		regexp.MustCompile(`(?i)controls\s+and\s+procedures`),
	},
	"financial_statements": {
		regexp.MustCompile(`(?i)item\s+8\.\s*financial\s+statements`),
		regexp.MustCompile(`(?i)consolidated\s+financial\s+statements`),
		regexp.MustCompile(`(?i)financial\s+statements\s+and\s+supplementary\s+data`),
	},
	"management_discussion": {
		regexp.MustCompile(`(?i)item\s+7\.\s*management's\s+discussion`),
		regexp.MustCompile(`(?i)md&a`),
		regexp.MustCompile(`(?i)management\s+discussion\s+and\s+analysis`),
	},
}

type sectionBoundary struct {
	start int
	name  string
}

// extractSECSections splits an SEC filing at its item anchors. Every
// anchor match opens a section running to the next anchor (or the end);
// sections shorter than the minimum chunk size are dropped. When no anchor
// matches at all, the whole document becomes one "main" section, so a
// non-empty document always yields at least one section.
func (e *Engine) extractSECSections(text string) []section {
	var boundaries []sectionBoundary
	for name, patterns := range secSectionPatterns {
		for _, re := range patterns {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				boundaries = append(boundaries, sectionBoundary{start: loc[0], name: name})
			}
		}
	}

	sort.Slice(boundaries, func(i, j int) bool {
		if boundaries[i].start != boundaries[j].start {
			return boundaries[i].start < boundaries[j].start
		}
		return boundaries[i].name < boundaries[j].name
	})

	// A section name can be anchored more than once (a table of contents
	// entry and the body heading, say). The last span long enough to keep
	// wins, at the position where the name first appeared.
	var sections []section
	seen := make(map[string]int)
	for i, b := range boundaries {
		end := len(text)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].start
		}
		sectionText := strings.TrimSpace(text[b.start:end])
		if len(sectionText) <= e.minChunk {
			continue
		}
		if idx, ok := seen[b.name]; ok {
			sections[idx].text = sectionText
			continue
		}
		seen[b.name] = len(sections)
		sections = append(sections, section{name: b.name, text: sectionText})
	}

	if len(sections) == 0 {
		sections = []section{{name: "main", text: text}}
	}
	return sections
}

// formSectionPatterns holds per-form heading anchors. Only the first match
// of each pattern counts.
var form13FPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"summary", regexp.MustCompile(`(?i)summary\s+page`)},
	{"holdings", regexp.MustCompile(`(?i)(holdings|securities|positions)`)},
	{"other_info", regexp.MustCompile(`(?i)other\s+information`)},
}

var formDPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"issuer", regexp.MustCompile(`(?i)issuer\s+information`)},
	{"offering", regexp.MustCompile(`(?i)offering\s+information`)},
	{"investors", regexp.MustCompile(`(?i)investor\s+information`)},
}

// splitFormSections splits a structured form at its heading anchors.
// Forms without a pattern table, and forms where no heading matches, come
// back as a single "main" section. When headings do match, sections
// shorter than the minimum chunk size are dropped, which can legitimately
// leave nothing.
func (e *Engine) splitFormSections(text string, docType filigree.DocumentType) []section {
	var patterns []struct {
		name string
		re   *regexp.Regexp
	}
	switch docType {
	case filigree.DocTypeForm13F:
		patterns = form13FPatterns
	case filigree.DocTypeFormD:
		patterns = formDPatterns
	default:
		return []section{{name: "main", text: text}}
	}

	var boundaries []sectionBoundary
	for _, p := range patterns {
		if loc := p.re.FindStringIndex(text); loc != nil {
			boundaries = append(boundaries, sectionBoundary{start: loc[0], name: p.name})
		}
	}
	if len(boundaries) == 0 {
		return []section{{name: "main", text: text}}
	}

	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i].start < boundaries[j].start })

	var sections []section
	for i, b := range boundaries {
		end := len(text)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].start
		}
		sectionText := strings.TrimSpace(text[b.start:end])
		if len(sectionText) > e.minChunk {
			sections = append(sections, section{name: b.name, text: sectionText})
		}
	}
	return sections
}
