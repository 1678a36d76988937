package domain

// NormalizationRule rewrites every whole-word, case-insensitive occurrence of
// Term to Replacement before keyword extraction.
type NormalizationRule struct {
	Term        string `json:"term"`
	Replacement string `json:"replacement"`
}

// MatchConfig is the corpus-derived matching model. Rules apply in order.
type MatchConfig struct {
	Normalizations []NormalizationRule `json:"normalizations"`
	KeyTerms       []string            `json:"keyTerms"`
}

// StrategyKind names which pair of legs an arbitrage buys.
type StrategyKind string

const (
	// StrategyYesANoB buys YES on venue A and NO on venue B.
	StrategyYesANoB StrategyKind = "yes_a_no_b"
	// StrategyYesBNoA buys YES on venue B and NO on venue A.
	StrategyYesBNoA StrategyKind = "yes_b_no_a"
)

// ArbitrageStrategy is the viable buy/buy combination chosen for a pair.
type ArbitrageStrategy struct {
	Kind            StrategyKind `json:"kind"`
	BuyYesOn        Venue        `json:"buyYesOn"`
	BuyNoOn         Venue        `json:"buyNoOn"`
	Cost            float64      `json:"cost"`
	PotentialProfit float64      `json:"potentialProfit"`
}

// MatchedMarketPair is one cross-venue pair that passed the similarity gate.
type MatchedMarketPair struct {
	ID                string             `json:"id"`
	MarketA           UnifiedMarket      `json:"marketA"`
	MarketB           UnifiedMarket      `json:"marketB"`
	Similarity        float64            `json:"similarity"`
	PriceDifference   float64            `json:"priceDifference"`
	HasArbitrage      bool               `json:"hasArbitrage"`
	ArbitrageStrategy *ArbitrageStrategy `json:"arbitrageStrategy,omitempty"`
}

// PotentialProfit returns the strategy profit, or 0 when there is none.
func (p MatchedMarketPair) PotentialProfit() float64 {
	if p.ArbitrageStrategy == nil {
		return 0
	}
	return p.ArbitrageStrategy.PotentialProfit
}
