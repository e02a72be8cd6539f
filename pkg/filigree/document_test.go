package filigree

import (
	"errors"
	"testing"
)

func TestParseDocumentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    DocumentType
		wantErr bool
	}{
		{name: "annual report", input: "10-K", want: DocTypeSEC10K},
		{name: "quarterly report", input: "10-Q", want: DocTypeSEC10Q},
		{name: "current report", input: "8-K", want: DocTypeSEC8K},
		{name: "insider transactions", input: "INSIDER", want: DocTypeInsider},
		{name: "institutional holdings", input: "13F", want: DocTypeForm13F},
		{name: "exempt offering", input: "FORM_D", want: DocTypeFormD},
		{name: "money market fund", input: "N-MFP", want: DocTypeNMFP},
		{name: "fund census", input: "N-CEN", want: DocTypeNCEN},
		{name: "fund portfolio", input: "N-PORT", want: DocTypeNPORT},
		{name: "swap data", input: "CFTC_SWAP", want: DocTypeCFTCSwap},
		{name: "exchange data", input: "EXCHANGE", want: DocTypeExchange},
		{name: "general document", input: "GENERAL", want: DocTypeGeneral},
		{name: "unknown tag", input: "S-1", wantErr: true},
		{name: "empty tag", input: "", wantErr: true},
		{name: "wrong case", input: "10-k", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDocumentType(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDocumentType(%q) expected error, got %q", tt.input, got)
				}
				if !errors.Is(err, ErrUnsupportedDocumentType) {
					t.Errorf("error = %v, want ErrUnsupportedDocumentType", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDocumentType(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDocumentType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDocumentTypeCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		docType      DocumentType
		strategy     ChunkStrategy
		secSections  bool
		formSections bool
		collection   string
	}{
		{
			name:        "annual reports use sectioned paragraphs",
			docType:     DocTypeSEC10K,
			strategy:    StrategyParagraph,
			secSections: true,
			collection:  CollectionSECFilings,
		},
		{
			name:        "quarterly reports use sectioned paragraphs",
			docType:     DocTypeSEC10Q,
			strategy:    StrategyParagraph,
			secSections: true,
			collection:  CollectionSECFilings,
		},
		{
			name:       "swap data chunks by lines",
			docType:    DocTypeCFTCSwap,
			strategy:   StrategyLines,
			collection: CollectionCFTCSummaries,
		},
		{
			name:         "exempt offerings use form sections over a window",
			docType:      DocTypeFormD,
			strategy:     StrategyWindow,
			formSections: true,
			collection:   CollectionFormDFilings,
		},
		{
			name:       "fund portfolios use a plain window",
			docType:    DocTypeNPORT,
			strategy:   StrategyWindow,
			collection: CollectionFundReports,
		},
		{
			name:       "exchange data routes to market events",
			docType:    DocTypeExchange,
			strategy:   StrategyWindow,
			collection: CollectionMarketEvents,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			caps, ok := tt.docType.Capabilities()
			if !ok {
				t.Fatalf("Capabilities(%q) reported unknown type", tt.docType)
			}
			if caps.Strategy != tt.strategy {
				t.Errorf("strategy = %q, want %q", caps.Strategy, tt.strategy)
			}
			if caps.SECSections != tt.secSections {
				t.Errorf("SECSections = %v, want %v", caps.SECSections, tt.secSections)
			}
			if caps.FormSections != tt.formSections {
				t.Errorf("FormSections = %v, want %v", caps.FormSections, tt.formSections)
			}
			if caps.Collection != tt.collection {
				t.Errorf("collection = %q, want %q", caps.Collection, tt.collection)
			}
		})
	}
}

func TestDocumentTypeCollectionFallback(t *testing.T) {
	t.Parallel()

	if got := DocumentType("S-1").Collection(); got != CollectionSECFilings {
		t.Errorf("unknown type collection = %q, want %q", got, CollectionSECFilings)
	}
	if got := DocTypeInsider.Collection(); got != CollectionInsiderReports {
		t.Errorf("insider collection = %q, want %q", got, CollectionInsiderReports)
	}
}

func TestDocumentTypes(t *testing.T) {
	t.Parallel()

	types := DocumentTypes()
	if len(types) != 12 {
		t.Fatalf("DocumentTypes() returned %d types, want 12", len(types))
	}
	for _, dt := range types {
		if !dt.Valid() {
			t.Errorf("DocumentTypes() returned invalid type %q", dt)
		}
	}
}
