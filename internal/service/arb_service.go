package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/alanyoungcy/mirrorarb/internal/arbitrage"
	"github.com/alanyoungcy/mirrorarb/internal/cache"
	"github.com/alanyoungcy/mirrorarb/internal/domain"
	"github.com/alanyoungcy/mirrorarb/internal/matching"
	"github.com/alanyoungcy/mirrorarb/internal/metrics"
	"github.com/alanyoungcy/mirrorarb/internal/notify"
)

// MatchConfigSource yields the current matching model.
type MatchConfigSource interface {
	Get(ctx context.Context) (domain.MatchConfig, error)
}

// ArbitrageConfig holds the tunables of the detection pipeline.
type ArbitrageConfig struct {
	MinSimilarity   float64
	ScanCacheTTL    time.Duration
	DefaultLimit    int
	MaxLimit        int
	NotifyMinSpread float64
}

// OpportunityQuery is the input of Opportunities.
type OpportunityQuery struct {
	MinSpread float64
	Limit     int
	Fresh     bool
}

// OpportunityList is the output of Opportunities. Degraded means the scan
// failed and the list came from stored active rows.
type OpportunityList struct {
	Opportunities []domain.ArbitrageOpportunity `json:"opportunities"`
	Count         int                           `json:"count"`
	GeneratedAt   time.Time                     `json:"generatedAt"`
	Degraded      bool                          `json:"degraded,omitempty"`
}

// MatchQuery is the input of Matches.
type MatchQuery struct {
	MinSimilarity float64
	OnlyArbitrage bool
	Limit         int
}

// MatchStats summarizes every pair above the similarity threshold.
type MatchStats struct {
	TotalMatched           int     `json:"totalMatched"`
	ArbitrageOpportunities int     `json:"arbitrageOpportunities"`
	AvgSimilarity          float64 `json:"avgSimilarity"`
	AvgPriceDifference     float64 `json:"avgPriceDifference"`
}

// MatchList is the output of Matches.
type MatchList struct {
	Matches []domain.MatchedMarketPair `json:"matches"`
	Stats   MatchStats                 `json:"stats"`
}

// DetectionResult is the outcome of one full detection run.
type DetectionResult struct {
	Pairs    []domain.MatchedMarketPair
	Selected []domain.ArbitrageOpportunity
	Complete bool
	Expired  int64
}

// ArbitrageService runs the detection pipeline: fetch, match, detect, select,
// persist. Runs share no mutable state except the cache.
type ArbitrageService struct {
	markets  *MarketService
	configs  MatchConfigSource
	opps     domain.OpportunityStore
	cache    domain.TTLCache
	bus      domain.SignalBus
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	cfg      ArbitrageConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewArbitrageService creates an ArbitrageService. bus and notifier may be nil.
func NewArbitrageService(
	markets *MarketService,
	configs MatchConfigSource,
	opps domain.OpportunityStore,
	c domain.TTLCache,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	cfg ArbitrageConfig,
	logger *slog.Logger,
) *ArbitrageService {
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = matching.DefaultMinSimilarity
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	return &ArbitrageService{
		markets:  markets,
		configs:  configs,
		opps:     opps,
		cache:    c,
		bus:      bus,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run performs one full detection pass and persists the selected
// opportunities. Rows not re-detected are expired only when both venues
// answered, so a venue outage does not wipe its live opportunities.
func (s *ArbitrageService) Run(ctx context.Context) (DetectionResult, error) {
	start := s.now()
	listings, err := s.markets.Fetch(ctx)
	if err != nil {
		s.metrics.Scans.WithLabelValues("failed").Inc()
		return DetectionResult{}, fmt.Errorf("arb_service: fetch: %w", err)
	}
	_ = s.markets.Sync(ctx, listings) // logged

	pairs := s.match(ctx, listings, s.cfg.MinSimilarity)
	selected := arbitrage.SelectGreedy(pairs)

	detectedAt := s.now().UTC()
	opps := make([]domain.ArbitrageOpportunity, len(selected))
	ids := make([]string, len(selected))
	for i, p := range selected {
		opps[i] = domain.NewOpportunity(p, detectedAt)
		ids[i] = opps[i].ID
	}

	if err := s.opps.UpsertBatch(ctx, opps); err != nil {
		s.metrics.Scans.WithLabelValues("failed").Inc()
		return DetectionResult{}, fmt.Errorf("arb_service: persist opportunities: %w", err)
	}

	res := DetectionResult{Pairs: pairs, Selected: opps, Complete: listings.Complete()}
	if res.Complete {
		n, err := s.opps.ExpireSuperseded(ctx, ids)
		if err != nil {
			s.logger.WarnContext(ctx, "arb_service: expire superseded failed", slog.String("error", err.Error()))
		} else {
			res.Expired = n
			s.metrics.ExpiredOpportunities.WithLabelValues("superseded").Add(float64(n))
		}
	}

	for _, o := range opps {
		s.announce(ctx, o)
	}

	outcome := "ok"
	if !res.Complete {
		outcome = "partial"
	}
	s.metrics.Scans.WithLabelValues(outcome).Inc()
	s.metrics.ScanDuration.Observe(s.now().Sub(start).Seconds())
	s.metrics.MatchedPairs.Set(float64(len(pairs)))
	s.metrics.SelectedOpportunities.Set(float64(len(opps)))

	s.logger.InfoContext(ctx, "arb_service: detection run complete",
		slog.Int("venue_a", len(listings.VenueA)),
		slog.Int("venue_b", len(listings.VenueB)),
		slog.Int("matched", len(pairs)),
		slog.Int("selected", len(opps)),
		slog.Int64("expired", res.Expired),
		slog.Bool("complete", res.Complete),
	)
	return res, nil
}

// match scores every cross-venue pair and annotates arbitrage. When the
// stored corpus is unavailable the fetched listings stand in for it.
func (s *ArbitrageService) match(ctx context.Context, l Listings, minSimilarity float64) []domain.MatchedMarketPair {
	cfg, err := s.configs.Get(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "arb_service: match config unavailable, using fetched corpus",
			slog.String("error", err.Error()),
		)
		questions := make([]string, 0, len(l.VenueA)+len(l.VenueB))
		for _, m := range l.VenueA {
			questions = append(questions, m.Question)
		}
		for _, m := range l.VenueB {
			questions = append(questions, m.Question)
		}
		cfg = matching.BuildMatchConfig(questions)
	}

	pairs := matching.NewMatcher(cfg).MatchPairs(l.VenueA, l.VenueB, minSimilarity)
	arbitrage.Annotate(pairs)
	return pairs
}

// announce publishes o and notifies operators once per opportunity lifetime.
func (s *ArbitrageService) announce(ctx context.Context, o domain.ArbitrageOpportunity) {
	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{"event": notify.EventArbDetected, "opportunity": o})
		if err := s.bus.Publish(ctx, domain.ChannelArb, evt); err != nil {
			s.logger.WarnContext(ctx, "arb_service: publish event failed",
				slog.String("opp_id", o.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if o.Spread < s.cfg.NotifyMinSpread || !s.notifier.Enabled(notify.EventArbDetected) {
		return
	}
	key := "notify:arb:" + o.ID
	if _, err := s.cache.Get(ctx, key); err == nil {
		return
	}
	if err := s.cache.Set(ctx, key, []byte("1"), domain.OpportunityTTL); err != nil {
		s.logger.WarnContext(ctx, "arb_service: notify dedup set failed", slog.String("error", err.Error()))
	}
	title, msg := notify.FormatOpportunity(o)
	_ = s.notifier.Notify(ctx, notify.EventArbDetected, title, msg) // logged
}

// Opportunities returns selected opportunities with spread >= MinSpread, most
// profitable first. The list is cached per parameter set; Fresh forces a
// rescan and replaces the cached copy.
func (s *ArbitrageService) Opportunities(ctx context.Context, q OpportunityQuery) (OpportunityList, error) {
	limit, err := s.clampLimit(q.Limit)
	if err != nil {
		return OpportunityList{}, err
	}
	if math.IsNaN(q.MinSpread) || q.MinSpread < 0 || q.MinSpread > 100 {
		return OpportunityList{}, fmt.Errorf("%w: minSpread must be within [0,100]", domain.ErrValidation)
	}

	key := "arbitrage:opportunities:v1:" + strconv.FormatFloat(q.MinSpread, 'f', -1, 64) + ":" + strconv.Itoa(limit)
	compute := func(ctx context.Context) (OpportunityList, error) {
		res, err := s.Run(ctx)
		if err != nil {
			return OpportunityList{}, err
		}
		return OpportunityList{
			Opportunities: filterOpportunities(res.Selected, q.MinSpread, limit),
			GeneratedAt:   s.now().UTC(),
		}, nil
	}

	var out OpportunityList
	if q.Fresh {
		out, err = compute(ctx)
		if err == nil {
			if cerr := cache.SetJSON(ctx, s.cache, key, s.cfg.ScanCacheTTL, out); cerr != nil {
				s.logger.WarnContext(ctx, "arb_service: cache refresh failed", slog.String("error", cerr.Error()))
			}
		}
	} else {
		out, err = cache.GetOrSetJSON(ctx, s.cache, key, s.cfg.ScanCacheTTL, compute)
	}
	if err != nil {
		return s.storedOpportunities(ctx, q.MinSpread, limit, err)
	}
	out.Count = len(out.Opportunities)
	return out, nil
}

// storedOpportunities serves active rows when a scan could not run.
func (s *ArbitrageService) storedOpportunities(ctx context.Context, minSpread float64, limit int, scanErr error) (OpportunityList, error) {
	stored, err := s.opps.ListActive(ctx, domain.OpportunityFilter{MinSpread: minSpread, Limit: limit})
	if err != nil {
		return OpportunityList{}, fmt.Errorf("arb_service: scan failed: %w; store unavailable: %w", scanErr, err)
	}
	s.logger.WarnContext(ctx, "arb_service: scan failed, serving stored opportunities",
		slog.String("error", scanErr.Error()),
		slog.Int("count", len(stored)),
	)
	if stored == nil {
		stored = []domain.ArbitrageOpportunity{}
	}
	return OpportunityList{
		Opportunities: stored,
		Count:         len(stored),
		GeneratedAt:   s.now().UTC(),
		Degraded:      true,
	}, nil
}

func filterOpportunities(opps []domain.ArbitrageOpportunity, minSpread float64, limit int) []domain.ArbitrageOpportunity {
	out := make([]domain.ArbitrageOpportunity, 0, len(opps))
	for _, o := range opps {
		if o.Spread >= minSpread {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PotentialProfit != out[j].PotentialProfit {
			return out[i].PotentialProfit > out[j].PotentialProfit
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Matches returns matched pairs, most similar first, with stats over every
// pair above MinSimilarity. Pair lists are cached per similarity threshold.
func (s *ArbitrageService) Matches(ctx context.Context, q MatchQuery) (MatchList, error) {
	limit, err := s.clampLimit(q.Limit)
	if err != nil {
		return MatchList{}, err
	}
	if math.IsNaN(q.MinSimilarity) || q.MinSimilarity < 0 || q.MinSimilarity > 1 {
		return MatchList{}, fmt.Errorf("%w: minSimilarity must be within [0,1]", domain.ErrValidation)
	}

	key := "arbitrage:matches:v1:" + strconv.FormatFloat(q.MinSimilarity, 'f', -1, 64)
	pairs, err := cache.GetOrSetJSON(ctx, s.cache, key, s.cfg.ScanCacheTTL,
		func(ctx context.Context) ([]domain.MatchedMarketPair, error) {
			listings, err := s.markets.Fetch(ctx)
			if err != nil {
				return nil, err
			}
			_ = s.markets.Sync(ctx, listings) // logged
			return s.match(ctx, listings, q.MinSimilarity), nil
		})
	if err != nil {
		return MatchList{}, fmt.Errorf("arb_service: matches: %w", err)
	}

	out := MatchList{Stats: matchStats(pairs), Matches: make([]domain.MatchedMarketPair, 0, len(pairs))}
	for _, p := range pairs {
		if q.OnlyArbitrage && !p.HasArbitrage {
			continue
		}
		out.Matches = append(out.Matches, p)
	}
	sort.SliceStable(out.Matches, func(i, j int) bool {
		if out.Matches[i].Similarity != out.Matches[j].Similarity {
			return out.Matches[i].Similarity > out.Matches[j].Similarity
		}
		return out.Matches[i].ID < out.Matches[j].ID
	})
	if len(out.Matches) > limit {
		out.Matches = out.Matches[:limit]
	}
	return out, nil
}

func matchStats(pairs []domain.MatchedMarketPair) MatchStats {
	st := MatchStats{TotalMatched: len(pairs)}
	if len(pairs) == 0 {
		return st
	}
	var sim, diff float64
	for _, p := range pairs {
		sim += p.Similarity
		diff += p.PriceDifference
		if p.HasArbitrage {
			st.ArbitrageOpportunities++
		}
	}
	st.AvgSimilarity = round2(sim / float64(len(pairs)))
	st.AvgPriceDifference = round2(diff / float64(len(pairs)))
	return st
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// clampLimit applies the default for 0 and caps at MaxLimit. Negative limits
// are rejected.
func (s *ArbitrageService) clampLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, fmt.Errorf("%w: limit must be positive", domain.ErrValidation)
	case limit == 0:
		return s.cfg.DefaultLimit, nil
	case limit > s.cfg.MaxLimit:
		return s.cfg.MaxLimit, nil
	}
	return limit, nil
}

// ExpireStale marks active opportunities past their expiry as expired.
func (s *ArbitrageService) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.opps.ExpireStale(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("arb_service: expire stale: %w", err)
	}
	s.metrics.ExpiredOpportunities.WithLabelValues("stale").Add(float64(n))
	if n > 0 {
		s.logger.InfoContext(ctx, "arb_service: expired stale opportunities", slog.Int64("count", n))
	}
	return n, nil
}

// MarkExecuted flags an opportunity as acted upon.
func (s *ArbitrageService) MarkExecuted(ctx context.Context, id string) error {
	if err := s.opps.MarkExecuted(ctx, id); err != nil {
		return fmt.Errorf("arb_service: mark executed %q: %w", id, err)
	}
	s.logger.InfoContext(ctx, "arb_service: opportunity marked executed", slog.String("opp_id", id))
	return nil
}
