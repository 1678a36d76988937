package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
	"github.com/alanyoungcy/mirrorarb/internal/metrics"
)

// Listings is one fetch of both venues. A venue whose fetch failed has no
// listings and a non-nil error.
type Listings struct {
	VenueA []domain.UnifiedMarket
	VenueB []domain.UnifiedMarket
	ErrA   error
	ErrB   error
}

// Complete reports whether both venues answered.
func (l Listings) Complete() bool {
	return l.ErrA == nil && l.ErrB == nil
}

// MarketService fetches active listings from both venues and keeps the
// stored corpus in sync.
type MarketService struct {
	venueA  domain.VenueAdapter
	venueB  domain.VenueAdapter
	markets domain.MarketStore
	limit   int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewMarketService creates a MarketService. limit caps the listings taken
// from each venue per fetch.
func NewMarketService(
	venueA, venueB domain.VenueAdapter,
	markets domain.MarketStore,
	limit int,
	m *metrics.Metrics,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		venueA:  venueA,
		venueB:  venueB,
		markets: markets,
		limit:   limit,
		metrics: m,
		logger:  logger,
	}
}

// Fetch queries both venues concurrently. One failing venue is logged,
// counted and treated as empty; only a failure of both is returned.
func (s *MarketService) Fetch(ctx context.Context) (Listings, error) {
	var (
		out Listings
		g   errgroup.Group
	)
	// Plain Group, not WithContext: one side failing must not cancel the other.
	g.Go(func() error {
		out.VenueA, out.ErrA = s.venueA.FetchActive(ctx, s.limit, 0)
		return nil
	})
	g.Go(func() error {
		out.VenueB, out.ErrB = s.venueB.FetchActive(ctx, s.limit, 0)
		return nil
	})
	_ = g.Wait()

	for _, side := range []struct {
		venue domain.Venue
		err   error
		list  *[]domain.UnifiedMarket
	}{
		{s.venueA.Venue(), out.ErrA, &out.VenueA},
		{s.venueB.Venue(), out.ErrB, &out.VenueB},
	} {
		if side.err == nil {
			continue
		}
		*side.list = nil
		s.metrics.VenueFetchFailures.WithLabelValues(string(side.venue)).Inc()
		s.logger.WarnContext(ctx, "market_service: venue fetch failed, treating as empty",
			slog.String("venue", string(side.venue)),
			slog.String("error", side.err.Error()),
		)
	}

	if out.ErrA != nil && out.ErrB != nil {
		return out, fmt.Errorf("market_service: both venues failed: %w: %w", domain.ErrUpstreamUnavailable, errors.Join(out.ErrA, out.ErrB))
	}
	return out, nil
}

// Sync upserts the fetched listings into the corpus. Store failures are
// logged and returned; callers treat them as non-fatal.
func (s *MarketService) Sync(ctx context.Context, l Listings) error {
	all := make([]domain.UnifiedMarket, 0, len(l.VenueA)+len(l.VenueB))
	all = append(all, l.VenueA...)
	all = append(all, l.VenueB...)
	if len(all) == 0 {
		return nil
	}
	if err := s.markets.UpsertBatch(ctx, all); err != nil {
		s.logger.WarnContext(ctx, "market_service: corpus sync failed",
			slog.Int("count", len(all)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("market_service: upsert batch: %w", err)
	}
	s.logger.DebugContext(ctx, "market_service: synced markets", slog.Int("count", len(all)))
	return nil
}
