package entity

import (
	"regexp"
	"strings"
)

// IdentifierKind names the kind of a bare identifier string.
type IdentifierKind string

// Identifier kinds, in no particular order. KindAuto asks the resolver to
// detect the kind itself.
const (
	KindAuto   IdentifierKind = "auto"
	KindCIK    IdentifierKind = "cik"
	KindCUSIP  IdentifierKind = "cusip"
	KindISIN   IdentifierKind = "isin"
	KindLEI    IdentifierKind = "lei"
	KindTicker IdentifierKind = "ticker"
	KindName   IdentifierKind = "name"
)

// Anchored shape patterns per identifier kind. They overlap (an 8-digit
// string is a valid CUSIP and a valid CIK), so detection order decides.
var (
	cikRe    = regexp.MustCompile(`^(\d{4,10})$`)
	cusipRe  = regexp.MustCompile(`^([A-Z0-9]{8,9})$`)
	isinRe   = regexp.MustCompile(`^([A-Z]{2}[A-Z0-9]{10})$`)
	leiRe    = regexp.MustCompile(`^([A-Z0-9]{20})$`)
	tickerRe = regexp.MustCompile(`^([A-Z]{1,5})$`)
)

// DetectIdentifierKind classifies a bare identifier by shape, most
// specific pattern first: ISIN, LEI, CUSIP, CIK, ticker, then name as the
// catch-all. Matching is done on the trimmed, uppercased input, so a
// lowercase ticker still detects as a ticker.
func DetectIdentifierKind(identifier string) IdentifierKind {
	s := strings.ToUpper(strings.TrimSpace(identifier))
	switch {
	case isinRe.MatchString(s):
		return KindISIN
	case leiRe.MatchString(s):
		return KindLEI
	case cusipRe.MatchString(s):
		return KindCUSIP
	case cikRe.MatchString(s):
		return KindCIK
	case tickerRe.MatchString(s):
		return KindTicker
	default:
		return KindName
	}
}

// CleanIdentifier normalizes an identifier for comparison: CIKs are
// zero-padded to 10 digits, security identifiers and tickers uppercased,
// names whitespace-collapsed.
func CleanIdentifier(identifier string, kind IdentifierKind) string {
	s := strings.TrimSpace(identifier)
	switch kind {
	case KindCIK:
		return padCIK(s)
	case KindCUSIP, KindISIN, KindLEI, KindTicker:
		return strings.ToUpper(s)
	default:
		return strings.Join(strings.Fields(s), " ")
	}
}

// padCIK left-pads a CIK with zeros to the canonical 10 digits.
func padCIK(cik string) string {
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}
