// Package platform holds the venue clients and the guard every venue call
// passes through.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// GuardConfig bounds the request rate and failure tolerance for one venue.
type GuardConfig struct {
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   int
	BreakerCooldown   time.Duration
	Timeout           time.Duration
}

// GuardedAdapter paces calls to a venue with a token bucket and stops calling
// it for a cooldown after consecutive failures.
type GuardedAdapter struct {
	inner   domain.VenueAdapter
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]domain.UnifiedMarket]
	timeout time.Duration
	logger  *slog.Logger
}

var _ domain.VenueAdapter = (*GuardedAdapter)(nil)

// NewGuardedAdapter wraps inner with the limits in cfg.
func NewGuardedAdapter(inner domain.VenueAdapter, cfg GuardConfig, logger *slog.Logger) *GuardedAdapter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	failures := cfg.BreakerFailures
	if failures < 1 {
		failures = 1
	}
	name := string(inner.Venue())
	log := logger.With(slog.String("component", "venue_guard"), slog.String("venue", name))

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(failures)
		},
		// A listing the normalizer rejects still means the venue answered.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrValidation) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &GuardedAdapter{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		breaker: gobreaker.NewCircuitBreaker[[]domain.UnifiedMarket](settings),
		timeout: cfg.Timeout,
		logger:  log,
	}
}

func (g *GuardedAdapter) Venue() domain.Venue { return g.inner.Venue() }

// FetchActive waits for a rate token, then calls the wrapped adapter through
// the breaker. An open breaker surfaces as domain.ErrUpstreamUnavailable.
func (g *GuardedAdapter) FetchActive(ctx context.Context, limit, offset int) ([]domain.UnifiedMarket, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate wait: %w", g.inner.Venue(), err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	markets, err := g.breaker.Execute(func() ([]domain.UnifiedMarket, error) {
		return g.inner.FetchActive(ctx, limit, offset)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w: %v", g.inner.Venue(), domain.ErrUpstreamUnavailable, err)
	}
	return markets, err
}

// State reports the breaker state, for health output.
func (g *GuardedAdapter) State() string {
	return g.breaker.State().String()
}
