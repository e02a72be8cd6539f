// Package filigree defines the shared vocabulary of the toolkit: regulatory
// document types and their processing capabilities, chunk and result types,
// distance metrics, and the sentinel errors returned across package
// boundaries.
//
// Higher-level packages (chunk, embed, vectorstore, entity, rag) depend on
// this package and never on each other's internals.
package filigree

import "fmt"

// DocumentType identifies a regulatory filing category. The string values
// are wire tags carried in chunk metadata and persisted snapshots, so they
// are stable across releases.
type DocumentType string

// Supported document types.
const (
	DocTypeSEC10K   DocumentType = "10-K"
	DocTypeSEC10Q   DocumentType = "10-Q"
	DocTypeSEC8K    DocumentType = "8-K"
	DocTypeInsider  DocumentType = "INSIDER"
	DocTypeForm13F  DocumentType = "13F"
	DocTypeFormD    DocumentType = "FORM_D"
	DocTypeNMFP     DocumentType = "N-MFP"
	DocTypeNCEN     DocumentType = "N-CEN"
	DocTypeNPORT    DocumentType = "N-PORT"
	DocTypeCFTCSwap DocumentType = "CFTC_SWAP"
	DocTypeExchange DocumentType = "EXCHANGE"
	DocTypeGeneral  DocumentType = "GENERAL"
)

// ChunkStrategy selects how a document's text is split into chunks.
type ChunkStrategy string

// Chunking strategies. Paragraph accumulation preserves prose coherence,
// line accumulation suits row-oriented swap data, and the sliding window
// handles forms and anything without exploitable structure.
const (
	StrategyParagraph ChunkStrategy = "paragraph"
	StrategyLines     ChunkStrategy = "lines"
	StrategyWindow    ChunkStrategy = "window"
)

// Capabilities describes how one document type is processed: which chunking
// strategy applies, whether SEC item-anchor section extraction or
// form-specific section splitting runs first, and which vector collection
// its chunks are routed to.
//
// Dispatch always goes through this table so that adding a document type is
// a single-row change and unknown types fail loudly with
// ErrUnsupportedDocumentType instead of silently falling through string
// comparisons.
type Capabilities struct {
	Strategy     ChunkStrategy
	SECSections  bool
	FormSections bool
	Collection   string
}

var documentCapabilities = map[DocumentType]Capabilities{
	DocTypeSEC10K:   {Strategy: StrategyParagraph, SECSections: true, Collection: CollectionSECFilings},
	DocTypeSEC10Q:   {Strategy: StrategyParagraph, SECSections: true, Collection: CollectionSECFilings},
	DocTypeSEC8K:    {Strategy: StrategyParagraph, SECSections: true, Collection: CollectionSECFilings},
	DocTypeInsider:  {Strategy: StrategyWindow, Collection: CollectionInsiderReports},
	DocTypeForm13F:  {Strategy: StrategyWindow, FormSections: true, Collection: CollectionFormDFilings},
	DocTypeFormD:    {Strategy: StrategyWindow, FormSections: true, Collection: CollectionFormDFilings},
	DocTypeNMFP:     {Strategy: StrategyWindow, Collection: CollectionFundReports},
	DocTypeNCEN:     {Strategy: StrategyWindow, Collection: CollectionFundReports},
	DocTypeNPORT:    {Strategy: StrategyWindow, Collection: CollectionFundReports},
	DocTypeCFTCSwap: {Strategy: StrategyLines, Collection: CollectionCFTCSummaries},
	DocTypeExchange: {Strategy: StrategyWindow, Collection: CollectionMarketEvents},
	DocTypeGeneral:  {Strategy: StrategyWindow, Collection: CollectionSECFilings},
}

// Capabilities returns the processing capabilities for the document type.
// The second return is false for unknown types.
func (t DocumentType) Capabilities() (Capabilities, bool) {
	caps, ok := documentCapabilities[t]
	return caps, ok
}

// Valid reports whether the document type is a known type.
func (t DocumentType) Valid() bool {
	_, ok := documentCapabilities[t]
	return ok
}

// Collection returns the vector collection chunks of this type are routed
// to. Unknown types route to the SEC filings collection.
func (t DocumentType) Collection() string {
	if caps, ok := documentCapabilities[t]; ok {
		return caps.Collection
	}
	return CollectionSECFilings
}

// ParseDocumentType converts a wire tag back into a DocumentType.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDocumentType, s)
	}
	return t, nil
}

// DocumentTypes returns all known document types. The order is not
// specified.
func DocumentTypes() []DocumentType {
	types := make([]DocumentType, 0, len(documentCapabilities))
	for t := range documentCapabilities {
		types = append(types, t)
	}
	return types
}

// Document-mode collection names. One collection per regulatory data
// source; chunks are routed here by the capability table.
const (
	CollectionSECFilings      = "sec_filings"
	CollectionCFTCSummaries   = "cftc_summaries"
	CollectionInsiderReports  = "insider_reports"
	CollectionFormDFilings    = "form_d_filings"
	CollectionFundReports     = "fund_reports"
	CollectionMarketEvents    = "market_events"
	CollectionRiskAssessments = "risk_assessments"
)

// Vector-mode collection names for pure numeric nearest-neighbour data.
const (
	CollectionCFTCNumerical    = "cftc_numerical"
	CollectionMarketIndicators = "market_indicators"
	CollectionCompanyProfiles  = "company_profiles"
)
