package kalshi

import (
	"errors"
	"math"
	"testing"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

func TestNormalizeMarkets(t *testing.T) {
	t.Parallel()

	liq := int64(123450)
	tests := []struct {
		name    string
		in      KalshiMarket
		wantYes int
		wantNo  int
	}{
		{
			name:    "asks_used_as_is",
			in:      KalshiMarket{Ticker: "FED-26MAR", Title: "Fed cut in March?", YesAsk: 35, NoAsk: 67},
			wantYes: 35,
			wantNo:  67,
		},
		{
			name:    "last_price_fallback",
			in:      KalshiMarket{Ticker: "T", Title: "Q", LastPrice: 42},
			wantYes: 42,
			wantNo:  58,
		},
		{
			name:    "fractional_cents_rounded",
			in:      KalshiMarket{Ticker: "T", Title: "Q", YesAsk: 12.6, NoAsk: 88.2},
			wantYes: 13,
			wantNo:  88,
		},
		{
			name:    "with_liquidity",
			in:      KalshiMarket{Ticker: "T", Title: "Q", YesAsk: 50, NoAsk: 50, Liquidity: &liq},
			wantYes: 50,
			wantNo:  50,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeMarkets([]KalshiMarket{tt.in})
			if err != nil {
				t.Fatalf("NormalizeMarkets: %v", err)
			}
			m := got[0]
			if m.YesPrice != tt.wantYes || m.NoPrice != tt.wantNo {
				t.Errorf("prices = %d/%d, want %d/%d", m.YesPrice, m.NoPrice, tt.wantYes, tt.wantNo)
			}
			if m.Source != domain.VenueKalshi || m.ID != "kalshi:"+tt.in.Ticker {
				t.Errorf("identity = %q/%q", m.Source, m.ID)
			}
			if tt.in.Liquidity != nil && (m.Liquidity == nil || *m.Liquidity != 1234.5) {
				t.Errorf("Liquidity = %v, want 1234.5", m.Liquidity)
			}
		})
	}
}

func TestNormalizeMarketsRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   KalshiMarket
	}{
		{"empty_ticker", KalshiMarket{Title: "Q", YesAsk: 10, NoAsk: 90}},
		{"empty_title", KalshiMarket{Ticker: "T", YesAsk: 10, NoAsk: 90}},
		{"yes_above_100", KalshiMarket{Ticker: "T", Title: "Q", YesAsk: 140, NoAsk: 10}},
		{"no_above_100", KalshiMarket{Ticker: "T", Title: "Q", YesAsk: 10, NoAsk: 101}},
		{"nan", KalshiMarket{Ticker: "T", Title: "Q", YesAsk: math.NaN(), NoAsk: 10}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NormalizeMarkets([]KalshiMarket{tt.in}); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestMapStatus(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]domain.MarketStatus{
		"open":      domain.MarketStatusActive,
		"active":    domain.MarketStatusActive,
		"closed":    domain.MarketStatusClosed,
		"finalized": domain.MarketStatusSettled,
	} {
		if got := mapStatus(in); got != want {
			t.Errorf("mapStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
