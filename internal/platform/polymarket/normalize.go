package polymarket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

var (
	decZero    = decimal.Zero
	decOne     = decimal.NewFromInt(1)
	decHundred = decimal.NewFromInt(100)
)

// NormalizeMarkets folds Gamma listings into UnifiedMarket. Outcome prices are
// decimal probabilities and become integer percentages. Any malformed listing
// fails the whole batch with domain.ErrValidation.
func NormalizeMarkets(raw []APIMarket) ([]domain.UnifiedMarket, error) {
	out := make([]domain.UnifiedMarket, 0, len(raw))
	for i := range raw {
		m, err := normalizeMarket(&raw[i])
		if err != nil {
			return nil, fmt.Errorf("polymarket: normalize market %d (%q): %w", i, raw[i].ID, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func normalizeMarket(a *APIMarket) (domain.UnifiedMarket, error) {
	if strings.TrimSpace(a.ID) == "" {
		return domain.UnifiedMarket{}, fmt.Errorf("%w: empty id", domain.ErrValidation)
	}
	question := strings.TrimSpace(a.Question)
	if question == "" {
		return domain.UnifiedMarket{}, fmt.Errorf("%w: empty question", domain.ErrValidation)
	}

	yes, no, err := parseOutcomePrices(a.OutcomePrices)
	if err != nil {
		return domain.UnifiedMarket{}, err
	}

	m := domain.UnifiedMarket{
		ID:         domain.MarketID(domain.VenuePolymarket, a.ID),
		ExternalID: a.ID,
		Source:     domain.VenuePolymarket,
		Question:   question,
		YesPrice:   yes,
		NoPrice:    no,
		Volume:     a.Volume.Value,
		Category:   a.Category,
		Status:     domain.MarketStatusActive,
	}
	if a.Closed {
		m.Status = domain.MarketStatusClosed
	}
	if a.Liquidity.Set {
		liq := a.Liquidity.Value
		m.Liquidity = &liq
	}
	if a.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, a.EndDate); err == nil {
			t = t.UTC()
			m.EndTime = &t
		}
	}
	return m, nil
}

// parseOutcomePrices decodes the JSON-encoded ["yes","no"] pair into percents.
func parseOutcomePrices(encoded string) (yes, no int, err error) {
	var prices []string
	if err := json.Unmarshal([]byte(encoded), &prices); err != nil {
		return 0, 0, fmt.Errorf("%w: outcomePrices %q: %v", domain.ErrValidation, encoded, err)
	}
	if len(prices) != 2 {
		return 0, 0, fmt.Errorf("%w: outcomePrices must have 2 entries, got %d", domain.ErrValidation, len(prices))
	}
	if yes, err = toPercent(prices[0]); err != nil {
		return 0, 0, err
	}
	if no, err = toPercent(prices[1]); err != nil {
		return 0, 0, err
	}
	return yes, no, nil
}

func toPercent(s string) (int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: price %q is not numeric", domain.ErrValidation, s)
	}
	if d.LessThan(decZero) || d.GreaterThan(decOne) {
		return 0, fmt.Errorf("%w: price %s outside [0,1]", domain.ErrValidation, d)
	}
	return int(d.Mul(decHundred).Round(0).IntPart()), nil
}
