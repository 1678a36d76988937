package domain

import "time"

// OpportunityTTL is how long a detected opportunity stays active.
const OpportunityTTL = 15 * time.Minute

// OpportunityStatus is the lifecycle state of a persisted opportunity.
type OpportunityStatus string

const (
	OpportunityActive   OpportunityStatus = "active"
	OpportunityExpired  OpportunityStatus = "expired"
	OpportunityExecuted OpportunityStatus = "executed"
)

// OpportunityLeg is the snapshot of one venue listing inside an opportunity.
type OpportunityLeg struct {
	Source   Venue  `json:"source"`
	ID       string `json:"id"`
	Question string `json:"question"`
	YesPrice int    `json:"yesPrice"`
	NoPrice  int    `json:"noPrice"`
}

// ArbitrageOpportunity is the persisted record of a selected pair. Spread and
// PotentialProfit carry the same value.
type ArbitrageOpportunity struct {
	ID              string            `json:"id"`
	Market1         OpportunityLeg    `json:"market1"`
	Market2         OpportunityLeg    `json:"market2"`
	Strategy        StrategyKind      `json:"strategy"`
	Spread          float64           `json:"spread"`
	PotentialProfit float64           `json:"potentialProfit"`
	Confidence      float64           `json:"confidence"`
	Status          OpportunityStatus `json:"status"`
	DetectedAt      time.Time         `json:"detectedAt"`
	ExpiresAt       time.Time         `json:"expiresAt"`
}

// NewOpportunity builds the persisted form of an arbitrage pair.
func NewOpportunity(p MatchedMarketPair, detectedAt time.Time) ArbitrageOpportunity {
	profit := p.PotentialProfit()
	var kind StrategyKind
	if p.ArbitrageStrategy != nil {
		kind = p.ArbitrageStrategy.Kind
	}
	return ArbitrageOpportunity{
		ID:              p.ID,
		Market1:         legOf(p.MarketA),
		Market2:         legOf(p.MarketB),
		Strategy:        kind,
		Spread:          profit,
		PotentialProfit: profit,
		Confidence:      p.Similarity,
		Status:          OpportunityActive,
		DetectedAt:      detectedAt,
		ExpiresAt:       detectedAt.Add(OpportunityTTL),
	}
}

func legOf(m UnifiedMarket) OpportunityLeg {
	return OpportunityLeg{
		Source:   m.Source,
		ID:       m.ExternalID,
		Question: m.Question,
		YesPrice: m.YesPrice,
		NoPrice:  m.NoPrice,
	}
}
