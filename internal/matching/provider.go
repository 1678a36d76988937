package matching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/mirrorarb/internal/cache"
	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

const configCacheKey = "matching:config:v1"

// ConfigProvider serves the corpus-derived MatchConfig, rebuilding it from
// stored listings when the cached copy has expired.
type ConfigProvider struct {
	markets     domain.MarketStore
	cache       domain.TTLCache
	ttl         time.Duration
	corpusLimit int
	logger      *slog.Logger
}

// NewConfigProvider creates a ConfigProvider.
func NewConfigProvider(markets domain.MarketStore, c domain.TTLCache, ttl time.Duration, corpusLimit int, logger *slog.Logger) *ConfigProvider {
	return &ConfigProvider{
		markets:     markets,
		cache:       c,
		ttl:         ttl,
		corpusLimit: corpusLimit,
		logger:      logger.With(slog.String("component", "match_config")),
	}
}

// Get returns the current MatchConfig. A store failure on a cache miss is
// returned to the caller.
func (p *ConfigProvider) Get(ctx context.Context) (domain.MatchConfig, error) {
	return cache.GetOrSetJSON(ctx, p.cache, configCacheKey, p.ttl, p.build)
}

func (p *ConfigProvider) build(ctx context.Context) (domain.MatchConfig, error) {
	start := time.Now()
	markets, err := p.markets.ListActive(ctx, domain.ListOpts{Limit: p.corpusLimit})
	if err != nil {
		return domain.MatchConfig{}, fmt.Errorf("matching: load corpus: %w", err)
	}

	questions := make([]string, len(markets))
	for i := range markets {
		questions[i] = markets[i].Question
	}
	cfg := BuildMatchConfig(questions)

	p.logger.InfoContext(ctx, "match config rebuilt",
		slog.Int("corpus", len(questions)),
		slog.Int("rules", len(cfg.Normalizations)),
		slog.Int("key_terms", len(cfg.KeyTerms)),
		slog.Duration("took", time.Since(start)),
	)
	return cfg, nil
}
