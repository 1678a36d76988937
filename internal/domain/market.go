package domain

import "time"

// Venue identifies one of the two external prediction-market platforms.
type Venue string

const (
	// VenuePolymarket is venue A.
	VenuePolymarket Venue = "polymarket"
	// VenueKalshi is venue B.
	VenueKalshi Venue = "kalshi"
)

// Valid reports whether v is a known venue.
func (v Venue) Valid() bool {
	return v == VenuePolymarket || v == VenueKalshi
}

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive  MarketStatus = "active"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// UnifiedMarket is a venue listing folded into the canonical shape. Prices are
// integer percentages in [0,100]; YesPrice and NoPrice need not sum to 100.
type UnifiedMarket struct {
	ID         string       `json:"id"`
	ExternalID string       `json:"externalId"`
	Source     Venue        `json:"source"`
	Question   string       `json:"question"`
	YesPrice   int          `json:"yesPrice"`
	NoPrice    int          `json:"noPrice"`
	Volume     float64      `json:"volume"`
	Liquidity  *float64     `json:"liquidity,omitempty"`
	EndTime    *time.Time   `json:"endTime,omitempty"`
	Category   string       `json:"category,omitempty"`
	Status     MarketStatus `json:"status"`
}

// MarketID builds the canonical id for a venue listing.
func MarketID(v Venue, externalID string) string {
	return string(v) + ":" + externalID
}
