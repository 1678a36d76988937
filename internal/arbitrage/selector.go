package arbitrage

import (
	"sort"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// SelectGreedy picks a set of arbitrage pairs in which no venue listing is
// used twice. Pairs are taken in descending profit order (ties by id) and a
// pair is skipped when either of its listings is already taken.
//
// This is a greedy approximation. A weighted bipartite matching could find a
// higher total profit in some inputs.
func SelectGreedy(pairs []domain.MatchedMarketPair) []domain.MatchedMarketPair {
	candidates := make([]domain.MatchedMarketPair, 0, len(pairs))
	for _, p := range pairs {
		if p.HasArbitrage && p.ArbitrageStrategy != nil {
			candidates = append(candidates, p)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := candidates[i].PotentialProfit(), candidates[j].PotentialProfit()
		if pi != pj {
			return pi > pj
		}
		return candidates[i].ID < candidates[j].ID
	})

	usedA := make(map[string]struct{}, len(candidates))
	usedB := make(map[string]struct{}, len(candidates))
	selected := make([]domain.MatchedMarketPair, 0, len(candidates))
	for _, p := range candidates {
		if _, taken := usedA[p.MarketA.ID]; taken {
			continue
		}
		if _, taken := usedB[p.MarketB.ID]; taken {
			continue
		}
		usedA[p.MarketA.ID] = struct{}{}
		usedB[p.MarketB.ID] = struct{}{}
		selected = append(selected, p)
	}
	return selected
}
