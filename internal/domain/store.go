package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists normalized venue listings.
type MarketStore interface {
	UpsertBatch(ctx context.Context, markets []UnifiedMarket) error
	ListActive(ctx context.Context, opts ListOpts) ([]UnifiedMarket, error)
}

// OpportunityFilter narrows an active-opportunity listing.
type OpportunityFilter struct {
	MinSpread float64
	Limit     int
}

// OpportunityStore persists detected arbitrage opportunities.
type OpportunityStore interface {
	UpsertBatch(ctx context.Context, opps []ArbitrageOpportunity) error
	ListActive(ctx context.Context, f OpportunityFilter) ([]ArbitrageOpportunity, error)
	// ExpireSuperseded marks every active opportunity whose id is not in keep
	// as expired and returns the number of rows changed.
	ExpireSuperseded(ctx context.Context, keep []string) (int64, error)
	// ExpireStale marks active opportunities whose expires_at is before now.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	MarkExecuted(ctx context.Context, id string) error
	ListExpiredBefore(ctx context.Context, before time.Time) ([]ArbitrageOpportunity, error)
	// DeleteByIDs removes archived rows. Only non-active rows are deleted.
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// ResolutionStore keeps the durable record of settlement calls.
type ResolutionStore interface {
	Record(ctx context.Context, res Resolution) error
	Get(ctx context.Context, mirrorKey string) (Resolution, error)
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}
