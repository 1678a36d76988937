package domain

import "context"

// VenueAdapter fetches active listings from one venue, already normalized.
type VenueAdapter interface {
	Venue() Venue
	FetchActive(ctx context.Context, limit, offset int) ([]UnifiedMarket, error)
}
