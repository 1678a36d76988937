package matching

import (
	"math"

	"github.com/google/uuid"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// DefaultMinSimilarity is the score a pair needs to be kept.
const DefaultMinSimilarity = 0.4

var pairNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://mirrorarb/pair"))

// PairID is a stable id for the (a, b) listing pair.
func PairID(a, b domain.UnifiedMarket) string {
	key := domain.MarketID(a.Source, a.ExternalID) + "|" + domain.MarketID(b.Source, b.ExternalID)
	return uuid.NewSHA1(pairNamespace, []byte(key)).String()
}

// MatchPairs compares every listing in venueA against every listing in venueB
// and keeps pairs scoring at least minSimilarity. Output order follows the
// input, venue A major. Arbitrage fields are left zero.
func (m *Matcher) MatchPairs(venueA, venueB []domain.UnifiedMarket, minSimilarity float64) []domain.MatchedMarketPair {
	if len(venueA) == 0 || len(venueB) == 0 {
		return nil
	}

	setsB := make([]keywordSet, len(venueB))
	for j := range venueB {
		setsB[j] = m.keywords(venueB[j].Question)
	}

	var pairs []domain.MatchedMarketPair
	for i := range venueA {
		setA := m.keywords(venueA[i].Question)
		for j := range venueB {
			score := m.score(setA, setsB[j])
			if score < minSimilarity {
				continue
			}
			pairs = append(pairs, domain.MatchedMarketPair{
				ID:              PairID(venueA[i], venueB[j]),
				MarketA:         venueA[i],
				MarketB:         venueB[j],
				Similarity:      score,
				PriceDifference: math.Abs(float64(venueA[i].YesPrice - venueB[j].YesPrice)),
			})
		}
	}
	return pairs
}
