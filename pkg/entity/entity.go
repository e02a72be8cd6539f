// Package entity resolves financial entities across data sources. An
// entity is registered once under an opaque id with its identifier bundle
// (LEI, CIK, CUSIP, ISIN, ticker, name, aliases); the resolver then
// answers two kinds of questions: which registered entities match a given
// one (pairwise confidence scoring over shared identifiers), and which
// entity a bare identifier string refers to (detection plus an
// exact/fuzzy/partial lookup cascade).
//
// Match edges and alias rows persist through a Store implementation;
// gormstore provides SQLite and PostgreSQL backends and neo4jgraph
// optionally projects relationships into a graph database.
package entity

import (
	"strings"
	"time"
)

// Identifiers is the identifier bundle registered for one entity. Every
// field is optional; matching only considers fields present on both sides.
type Identifiers struct {
	LEI     string   `json:"lei,omitempty"`
	CIK     string   `json:"cik,omitempty"`
	CUSIP   string   `json:"cusip,omitempty"`
	ISIN    string   `json:"isin,omitempty"`
	Ticker  string   `json:"ticker,omitempty"`
	Name    string   `json:"name,omitempty"`
	Aliases []string `json:"aliases,omitempty"`

	// Related holds known parent/subsidiary/counterparty references.
	// They do not participate in match scoring.
	Related []Reference `json:"related,omitempty"`
}

// normalized returns a copy with trimmed, de-duplicated aliases. Order of
// first appearance is kept so repeated registration writes identical rows.
func (ids Identifiers) normalized() Identifiers {
	if len(ids.Aliases) == 0 {
		return ids
	}
	seen := make(map[string]struct{}, len(ids.Aliases))
	aliases := make([]string, 0, len(ids.Aliases))
	for _, alias := range ids.Aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		if _, ok := seen[alias]; ok {
			continue
		}
		seen[alias] = struct{}{}
		aliases = append(aliases, alias)
	}
	ids.Aliases = aliases
	return ids
}

// Reference points at a related entity.
type Reference struct {
	EntityID     string  `json:"entity_id"`
	Name         string  `json:"name,omitempty"`
	Relationship string  `json:"relationship"`
	Confidence   float64 `json:"confidence"`
}

// MatchType bands a match confidence.
type MatchType string

// Match type bands.
const (
	MatchExact   MatchType = "exact"
	MatchFuzzy   MatchType = "fuzzy"
	MatchPartial MatchType = "partial"
)

// matchTypeFor derives the band from a confidence score.
func matchTypeFor(confidence float64) MatchType {
	switch {
	case confidence >= 0.95:
		return MatchExact
	case confidence >= 0.8:
		return MatchFuzzy
	default:
		return MatchPartial
	}
}

// Match is one scored candidate from FindMatches.
//
// Confidence is the mean of the per-field scores of the fields that
// matched at all; fields that missed their threshold contribute nothing
// rather than zero. Fields lists the contributing field names, with
// "alias" repeated once per contributing alias pair.
type Match struct {
	EntityID   string    `json:"entity_id"`
	Confidence float64   `json:"confidence"`
	Type       MatchType `json:"match_type"`
	Fields     []string  `json:"matched_fields"`
}

// EntityType is a coarse classification derived from the entity name.
type EntityType string

// Entity classifications.
const (
	TypeCorporation EntityType = "corporation"
	TypeFund        EntityType = "fund"
	TypeBank        EntityType = "bank"
	TypeInsurance   EntityType = "insurance"
	TypeUnknown     EntityType = "unknown"
)

// classifyEntity guesses the entity type from name keywords.
func classifyEntity(name string) EntityType {
	if name == "" {
		return TypeUnknown
	}
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, "fund", "trust", "etf"):
		return TypeFund
	case containsAny(lower, "bank", "financial"):
		return TypeBank
	case strings.Contains(lower, "insurance"):
		return TypeInsurance
	default:
		return TypeCorporation
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Profile is the result of resolving a bare identifier to a registered
// entity.
type Profile struct {
	EntityID    string      `json:"entity_id"`
	Name        string      `json:"name"`
	Type        EntityType  `json:"entity_type"`
	Identifiers Identifiers `json:"identifiers"`
	Confidence  float64     `json:"confidence"`
	Match       MatchType   `json:"match_type"`
	ResolvedAt  time.Time   `json:"resolved_at"`
}
