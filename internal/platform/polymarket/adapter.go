package polymarket

import (
	"context"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// Adapter exposes the Gamma client as a domain.VenueAdapter.
type Adapter struct {
	client *GammaClient
}

// NewAdapter wraps client.
func NewAdapter(client *GammaClient) *Adapter {
	return &Adapter{client: client}
}

var _ domain.VenueAdapter = (*Adapter)(nil)

func (a *Adapter) Venue() domain.Venue { return domain.VenuePolymarket }

// FetchActive fetches one page of active listings and normalizes it.
func (a *Adapter) FetchActive(ctx context.Context, limit, offset int) ([]domain.UnifiedMarket, error) {
	raw, err := a.client.GetActiveMarkets(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return NormalizeMarkets(raw)
}
