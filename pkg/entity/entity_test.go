package entity

import (
	"reflect"
	"testing"
)

func TestClassifyEntity(t *testing.T) {
	tests := []struct {
		name   string
		entity string
		want   EntityType
	}{
		{"fund keyword", "Granite Growth Fund", TypeFund},
		{"trust keyword", "Liberty Income Trust", TypeFund},
		{"etf keyword", "Broad Market ETF", TypeFund},
		{"bank keyword", "First Meridian Bank", TypeBank},
		{"financial keyword", "Cascade Financial Group", TypeBank},
		{"insurance keyword", "Atlas Insurance Holdings", TypeInsurance},
		{"default corporation", "Apple Inc", TypeCorporation},
		{"empty name", "", TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyEntity(tt.entity); got != tt.want {
				t.Errorf("classifyEntity(%q) = %q, want %q", tt.entity, got, tt.want)
			}
		})
	}
}

func TestMatchTypeFor(t *testing.T) {
	tests := []struct {
		confidence float64
		want       MatchType
	}{
		{1.0, MatchExact},
		{0.95, MatchExact},
		{0.9, MatchFuzzy},
		{0.8, MatchFuzzy},
		{0.79, MatchPartial},
		{0.4, MatchPartial},
	}
	for _, tt := range tests {
		if got := matchTypeFor(tt.confidence); got != tt.want {
			t.Errorf("matchTypeFor(%g) = %q, want %q", tt.confidence, got, tt.want)
		}
	}
}

func TestNormalizedAliases(t *testing.T) {
	ids := Identifiers{
		Name: "Northwind Trading",
		Aliases: []string{
			"  Northwind  ",
			"NWT Group",
			"Northwind",
			"",
			"NWT Group",
		},
	}
	got := ids.normalized()
	want := []string{"Northwind", "NWT Group"}
	if !reflect.DeepEqual(got.Aliases, want) {
		t.Errorf("normalized aliases = %v, want %v", got.Aliases, want)
	}
	// The receiver's slice is untouched.
	if len(ids.Aliases) != 5 {
		t.Errorf("original aliases mutated: %v", ids.Aliases)
	}
}
