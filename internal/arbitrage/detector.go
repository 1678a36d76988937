// Package arbitrage evaluates cross-venue buy/buy strategies on matched pairs
// and picks a conflict-free subset of them.
package arbitrage

import (
	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// ViableCostPct is the exclusive upper bound on the combined cost of both legs,
// in percentage points. The 2 point gap covers fees and slippage.
const ViableCostPct = 98

// Detect evaluates both strategies for a pair of listings. Strategy 1 (YES on
// A, NO on B) is taken whenever it is viable, even if strategy 2 would pay
// more. Costs are compared in whole percentage points so a cost of exactly
// 0.98 is never viable.
func Detect(a, b domain.UnifiedMarket) (bool, *domain.ArbitrageStrategy) {
	if cost := a.YesPrice + b.NoPrice; cost < ViableCostPct {
		return true, strategy(domain.StrategyYesANoB, a.Source, b.Source, cost)
	}
	if cost := b.YesPrice + a.NoPrice; cost < ViableCostPct {
		return true, strategy(domain.StrategyYesBNoA, b.Source, a.Source, cost)
	}
	return false, nil
}

func strategy(kind domain.StrategyKind, yesOn, noOn domain.Venue, costPct int) *domain.ArbitrageStrategy {
	return &domain.ArbitrageStrategy{
		Kind:            kind,
		BuyYesOn:        yesOn,
		BuyNoOn:         noOn,
		Cost:            float64(costPct) / 100,
		PotentialProfit: float64(100 - costPct),
	}
}

// Annotate fills the arbitrage fields of every pair in place and returns the
// number of pairs with a viable strategy.
func Annotate(pairs []domain.MatchedMarketPair) int {
	n := 0
	for i := range pairs {
		pairs[i].HasArbitrage, pairs[i].ArbitrageStrategy = Detect(pairs[i].MarketA, pairs[i].MarketB)
		if pairs[i].HasArbitrage {
			n++
		}
	}
	return n
}
