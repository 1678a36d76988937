package polymarket

import (
	"errors"
	"testing"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

func TestNormalizeMarkets(t *testing.T) {
	t.Parallel()

	raw := []APIMarket{{
		ID:            "512345",
		Question:      "  Will the Fed cut rates in March?  ",
		OutcomePrices: `["0.62","0.385"]`,
		Volume:        flexFloat{Value: 1250.5, Set: true},
		Liquidity:     flexFloat{Value: 300, Set: true},
		EndDate:       "2026-03-31T12:00:00Z",
		Category:      "Economics",
	}}

	got, err := NormalizeMarkets(raw)
	if err != nil {
		t.Fatalf("NormalizeMarkets: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	m := got[0]
	if m.ID != "polymarket:512345" || m.ExternalID != "512345" || m.Source != domain.VenuePolymarket {
		t.Errorf("identity = %q/%q/%q", m.ID, m.ExternalID, m.Source)
	}
	if m.Question != "Will the Fed cut rates in March?" {
		t.Errorf("Question = %q", m.Question)
	}
	if m.YesPrice != 62 || m.NoPrice != 39 {
		t.Errorf("prices = %d/%d, want 62/39", m.YesPrice, m.NoPrice)
	}
	if m.Liquidity == nil || *m.Liquidity != 300 {
		t.Errorf("Liquidity = %v", m.Liquidity)
	}
	if m.EndTime == nil || m.EndTime.Year() != 2026 {
		t.Errorf("EndTime = %v", m.EndTime)
	}
	if m.Status != domain.MarketStatusActive {
		t.Errorf("Status = %q", m.Status)
	}
}

func TestNormalizeMarketsRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		m    APIMarket
	}{
		{"empty_id", APIMarket{Question: "q", OutcomePrices: `["0.5","0.5"]`}},
		{"empty_question", APIMarket{ID: "1", Question: "  ", OutcomePrices: `["0.5","0.5"]`}},
		{"not_json", APIMarket{ID: "1", Question: "q", OutcomePrices: `0.5,0.5`}},
		{"three_outcomes", APIMarket{ID: "1", Question: "q", OutcomePrices: `["0.3","0.3","0.4"]`}},
		{"non_numeric", APIMarket{ID: "1", Question: "q", OutcomePrices: `["abc","0.5"]`}},
		{"above_one", APIMarket{ID: "1", Question: "q", OutcomePrices: `["1.2","0.5"]`}},
		{"negative", APIMarket{ID: "1", Question: "q", OutcomePrices: `["0.5","-0.1"]`}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NormalizeMarkets([]APIMarket{tt.m})
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestFlexFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    float64
		wantSet bool
	}{
		{`12.5`, 12.5, true},
		{`"99.25"`, 99.25, true},
		{`""`, 0, false},
		{`null`, 0, false},
	}
	for _, tt := range tests {
		var f flexFloat
		if err := f.UnmarshalJSON([]byte(tt.in)); err != nil {
			t.Fatalf("UnmarshalJSON(%s): %v", tt.in, err)
		}
		if f.Value != tt.want || f.Set != tt.wantSet {
			t.Errorf("UnmarshalJSON(%s) = %+v, want %v/%v", tt.in, f, tt.want, tt.wantSet)
		}
	}
}
