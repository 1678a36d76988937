package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/mirrorarb/internal/config"
	"github.com/alanyoungcy/mirrorarb/internal/domain"
	"github.com/alanyoungcy/mirrorarb/internal/matching"
	"github.com/alanyoungcy/mirrorarb/internal/scheduler"
	"github.com/alanyoungcy/mirrorarb/internal/server"
	"github.com/alanyoungcy/mirrorarb/internal/server/handler"
	"github.com/alanyoungcy/mirrorarb/internal/server/ws"
	"github.com/alanyoungcy/mirrorarb/internal/service"
)

// services are the long-lived service objects shared by every mode.
type services struct {
	markets    *service.MarketService
	arb        *service.ArbitrageService
	settlement *service.SettlementService // nil when settlement is disabled
}

func (a *App) buildServices(deps *Dependencies) services {
	cfg := a.cfg
	markets := service.NewMarketService(
		deps.VenueA, deps.VenueB, deps.Markets,
		cfg.Matching.ListingsPerVen, deps.Metrics,
		a.logger.With(slog.String("component", "market_service")),
	)
	configs := matching.NewConfigProvider(
		deps.Markets, deps.Cache,
		cfg.Matching.ConfigTTL.Duration, cfg.Matching.CorpusLimit,
		a.logger.With(slog.String("component", "match_config")),
	)
	arb := service.NewArbitrageService(
		markets, configs, deps.Opportunities, deps.Cache, deps.Bus,
		deps.Notifier, deps.Metrics,
		service.ArbitrageConfig{
			MinSimilarity:   cfg.Matching.MinSimilarity,
			ScanCacheTTL:    cfg.Arbitrage.ScanCacheTTL.Duration,
			DefaultLimit:    cfg.Arbitrage.DefaultLimit,
			MaxLimit:        cfg.Arbitrage.MaxLimit,
			NotifyMinSpread: cfg.Arbitrage.NotifyMinSpread,
		},
		a.logger.With(slog.String("component", "arb_service")),
	)

	svc := services{markets: markets, arb: arb}
	if deps.Resolver != nil {
		svc.settlement = service.NewSettlementService(
			deps.Resolver, deps.Ledger, deps.Resolutions, deps.Locks,
			deps.Opportunities, deps.Audit, deps.Bus, deps.Notifier, deps.Metrics,
			cfg.Settlement.LockTTL.Duration,
			a.logger.With(slog.String("component", "settlement_service")),
		)
	}
	return svc
}

// ServerMode serves the HTTP API and websocket feed and runs the scheduled
// rescan, expiry sweep and archive jobs until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering server mode")

	svc := a.buildServices(deps)
	g, ctx := errgroup.WithContext(ctx)

	sched := scheduler.New(ctx, a.logger)
	if err := a.scheduleJobs(sched, svc, deps); err != nil {
		return err
	}
	sched.Start()
	g.Go(func() error {
		<-ctx.Done()
		sched.Stop()
		return nil
	})

	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{Mode: a.cfg.Mode, StartedAt: time.Now().UTC()})
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// A nil *SettlementService must reach the handler as a nil interface.
	var settleSvc handler.SettlementService
	if svc.settlement != nil {
		settleSvc = svc.settlement
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		WriteTimeout:    a.cfg.Settlement.ResolveBudget() + config.ResolveMargin,
	}, server.Handlers{
		Health:     handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Arb:        handler.NewArbHandler(svc.arb, a.logger),
		Settlement: handler.NewSettlementHandler(settleSvc, a.logger),
	}, server.Deps{
		Hub:     hub,
		Limiter: deps.Limiter,
		Metrics: deps.Metrics,
	}, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

func (a *App) scheduleJobs(sched *scheduler.Scheduler, svc services, deps *Dependencies) error {
	sc := a.cfg.Schedule

	if err := sched.Add("rescan", sc.Rescan, func(ctx context.Context) error {
		_, err := svc.arb.Run(ctx)
		return err
	}); err != nil {
		return err
	}

	if err := sched.Add("expiry_sweep", sc.ExpirySweep, func(ctx context.Context) error {
		_, err := svc.arb.ExpireStale(ctx)
		return err
	}); err != nil {
		return err
	}

	if deps.Archiver == nil {
		if sc.Archive != "" {
			a.logger.Info("archive job skipped: s3 disabled")
		}
		return nil
	}
	retention := time.Duration(sc.ArchiveRetentionDays) * 24 * time.Hour
	return sched.Add("archive", sc.Archive, func(ctx context.Context) error {
		_, err := deps.Archiver.ArchiveOpportunities(ctx, time.Now().UTC().Add(-retention))
		return err
	})
}

// ScanMode runs one detection pass, logs a summary and returns.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering scan mode")

	svc := a.buildServices(deps)
	res, err := svc.arb.Run(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	a.logger.InfoContext(ctx, "scan complete",
		slog.Int("pairs", len(res.Pairs)),
		slog.Int("opportunities", len(res.Selected)),
		slog.Bool("complete", res.Complete),
		slog.Int64("expired", res.Expired),
	)
	for _, o := range res.Selected {
		a.logger.InfoContext(ctx, "opportunity",
			slog.String("id", o.ID),
			slog.String("strategy", string(o.Strategy)),
			slog.Float64("profit", o.PotentialProfit),
			slog.String("market_a", o.Market1.Question),
			slog.String("market_b", o.Market2.Question),
		)
	}
	return nil
}

// SettleMode resolves the single mirror market given on the command line.
func (a *App) SettleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering settle mode")

	if a.settleReq.MirrorKey == "" {
		return fmt.Errorf("settle: %w: mirror key is required", domain.ErrValidation)
	}
	svc := a.buildServices(deps)
	if svc.settlement == nil {
		return errors.New("settle: settlement is not configured")
	}

	res, err := svc.settlement.Resolve(ctx, a.settleReq)
	if err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	a.logger.InfoContext(ctx, "settlement complete",
		slog.String("mirror_key", res.MirrorKey),
		slog.String("tx_hash", res.TxHash),
		slog.Uint64("block_number", res.BlockNumber),
		slog.Int("attempts", res.Attempts),
	)
	return nil
}
