package kalshi

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// NormalizeMarkets folds Kalshi listings into UnifiedMarket. Kalshi already
// quotes in cents, so the ask is used as-is. When no ask is posted the yes
// side falls back to the last trade and the no side to its complement.
func NormalizeMarkets(raw []KalshiMarket) ([]domain.UnifiedMarket, error) {
	out := make([]domain.UnifiedMarket, 0, len(raw))
	for i := range raw {
		m, err := normalizeMarket(&raw[i])
		if err != nil {
			return nil, fmt.Errorf("kalshi: normalize market %d (%q): %w", i, raw[i].Ticker, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func normalizeMarket(k *KalshiMarket) (domain.UnifiedMarket, error) {
	if strings.TrimSpace(k.Ticker) == "" {
		return domain.UnifiedMarket{}, fmt.Errorf("%w: empty ticker", domain.ErrValidation)
	}
	question := strings.TrimSpace(k.Title)
	if question == "" {
		return domain.UnifiedMarket{}, fmt.Errorf("%w: empty title", domain.ErrValidation)
	}

	yesCents := k.YesAsk
	if yesCents <= 0 {
		yesCents = k.LastPrice
	}
	yes, err := toPercent("yes", yesCents)
	if err != nil {
		return domain.UnifiedMarket{}, err
	}

	noCents := k.NoAsk
	if noCents <= 0 {
		noCents = float64(100 - yes)
	}
	no, err := toPercent("no", noCents)
	if err != nil {
		return domain.UnifiedMarket{}, err
	}

	m := domain.UnifiedMarket{
		ID:         domain.MarketID(domain.VenueKalshi, k.Ticker),
		ExternalID: k.Ticker,
		Source:     domain.VenueKalshi,
		Question:   question,
		YesPrice:   yes,
		NoPrice:    no,
		Volume:     float64(k.Volume),
		Category:   k.Category,
		Status:     mapStatus(k.Status),
	}
	if k.Liquidity != nil {
		liq := float64(*k.Liquidity) / 100
		m.Liquidity = &liq
	}
	if k.CloseTime != "" {
		if t, err := time.Parse(time.RFC3339, k.CloseTime); err == nil {
			t = t.UTC()
			m.EndTime = &t
		}
	}
	return m, nil
}

func toPercent(side string, cents float64) (int, error) {
	if math.IsNaN(cents) || math.IsInf(cents, 0) || cents < 0 || cents > 100 {
		return 0, fmt.Errorf("%w: %s price %v outside [0,100]", domain.ErrValidation, side, cents)
	}
	return int(math.Round(cents)), nil
}

func mapStatus(s string) domain.MarketStatus {
	switch strings.ToLower(s) {
	case "closed":
		return domain.MarketStatusClosed
	case "settled", "finalized", "determined":
		return domain.MarketStatusSettled
	default:
		return domain.MarketStatusActive
	}
}
