package kalshi

import (
	"context"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

const (
	maxPageSize = 1000
	maxPages    = 10
)

// Adapter exposes the Kalshi client as a domain.VenueAdapter.
type Adapter struct {
	client *Client
}

// NewAdapter wraps client.
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

var _ domain.VenueAdapter = (*Adapter)(nil)

func (a *Adapter) Venue() domain.Venue { return domain.VenueKalshi }

// FetchActive returns open markets [offset, offset+limit). Kalshi paginates by
// cursor, so the offset is emulated by walking pages from the start.
func (a *Adapter) FetchActive(ctx context.Context, limit, offset int) ([]domain.UnifiedMarket, error) {
	if limit <= 0 {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}
	want := offset + limit

	var (
		raw    []KalshiMarket
		cursor string
	)
	for page := 0; page < maxPages && len(raw) < want; page++ {
		size := want - len(raw)
		if size > maxPageSize {
			size = maxPageSize
		}
		res, err := a.client.GetMarkets(ctx, MarketsQuery{Limit: size, Cursor: cursor, Status: "open"})
		if err != nil {
			return nil, err
		}
		raw = append(raw, res.Markets...)
		if res.Cursor == "" || len(res.Markets) == 0 {
			break
		}
		cursor = res.Cursor
	}

	if offset >= len(raw) {
		return []domain.UnifiedMarket{}, nil
	}
	end := want
	if end > len(raw) {
		end = len(raw)
	}
	return NormalizeMarkets(raw[offset:end])
}
