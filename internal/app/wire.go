package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/mirrorarb/internal/blob/s3"
	"github.com/alanyoungcy/mirrorarb/internal/cache/redis"
	"github.com/alanyoungcy/mirrorarb/internal/config"
	"github.com/alanyoungcy/mirrorarb/internal/crypto"
	"github.com/alanyoungcy/mirrorarb/internal/domain"
	"github.com/alanyoungcy/mirrorarb/internal/metrics"
	"github.com/alanyoungcy/mirrorarb/internal/notify"
	"github.com/alanyoungcy/mirrorarb/internal/platform"
	"github.com/alanyoungcy/mirrorarb/internal/platform/kalshi"
	"github.com/alanyoungcy/mirrorarb/internal/platform/polymarket"
	"github.com/alanyoungcy/mirrorarb/internal/server/handler"
	"github.com/alanyoungcy/mirrorarb/internal/settlement"
	"github.com/alanyoungcy/mirrorarb/internal/store/postgres"
)

// Dependencies bundles every concrete dependency the modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Markets       domain.MarketStore
	Opportunities domain.OpportunityStore
	Resolutions   domain.ResolutionStore
	Audit         domain.AuditStore

	// Caches
	Cache   domain.TTLCache
	Ledger  domain.ResolvedLedger
	Locks   domain.LockManager
	Limiter domain.RateLimiter
	Bus     domain.SignalBus

	// Venues, already wrapped in their guards.
	VenueA domain.VenueAdapter
	VenueB domain.VenueAdapter

	// Resolver is nil when settlement is disabled.
	Resolver *settlement.Executor

	// Archiver is nil when S3 is disabled.
	Archiver domain.Archiver

	Notifier *notify.Notifier
	Metrics  *metrics.Metrics

	// HealthChecks probe the external dependencies for GET /api/health.
	HealthChecks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		Metrics:      metrics.New(),
		HealthChecks: map[string]handler.Check{},
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: postgres: %w", err))
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			return fail(fmt.Errorf("wire: postgres migrations: %w", err))
		}
	}

	pool := pgClient.Pool()
	deps.Markets = postgres.NewMarketStore(pool)
	opps := postgres.NewOpportunityStore(pool)
	deps.Opportunities = opps
	deps.Resolutions = postgres.NewResolutionStore(pool)
	deps.Audit = postgres.NewAuditStore(pool)
	deps.HealthChecks["postgres"] = pgClient.Ping

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    cfg.Redis.PoolSize,
		MaxRetries:  cfg.Redis.MaxRetries,
		TLSEnabled:  cfg.Redis.TLSEnabled,
		DialTimeout: 5 * time.Second,
		KeyPrefix:   cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: redis: %w", err))
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Cache = redis.NewTTLCache(redisClient)
	deps.Ledger = redis.NewResolvedLedger(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.Limiter = redis.NewRateLimiter(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)
	deps.HealthChecks["redis"] = redisClient.Ping

	// --- Venues ---
	venueA, venueB, err := wireVenues(cfg, logger)
	if err != nil {
		return fail(err)
	}
	deps.VenueA, deps.VenueB = venueA, venueB

	// --- S3 archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			opps,
			deps.Audit,
			deps.Metrics,
			logger,
		)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Settlement ---
	if cfg.Settlement.Enabled || cfg.Mode == "settle" {
		exec, clients, err := wireSettlement(cfg, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, clients.Reset)
		deps.Resolver = exec
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

func wireVenues(cfg *config.Config, logger *slog.Logger) (domain.VenueAdapter, domain.VenueAdapter, error) {
	pmCfg := cfg.Polymarket.Guard
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost, pmCfg.Timeout.Duration)
	venueA := platform.NewGuardedAdapter(polymarket.NewAdapter(gamma), guardConfig(pmCfg), logger)

	ksCfg := cfg.Kalshi.Guard
	kc := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey, ksCfg.Timeout.Duration)
	if cfg.Kalshi.RsaPrivateKeyPath != "" {
		pemBytes, err := os.ReadFile(cfg.Kalshi.RsaPrivateKeyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: kalshi rsa key: %w", err)
		}
		if err := kc.SetRSAPrivateKey(pemBytes); err != nil {
			return nil, nil, fmt.Errorf("wire: kalshi rsa key: %w", err)
		}
	}
	venueB := platform.NewGuardedAdapter(kalshi.NewAdapter(kc), guardConfig(ksCfg), logger)

	return venueA, venueB, nil
}

func guardConfig(c config.VenueGuardConfig) platform.GuardConfig {
	return platform.GuardConfig{
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
		BreakerFailures:   c.BreakerFailures,
		BreakerCooldown:   c.BreakerCooldown.Duration,
		Timeout:           c.Timeout.Duration,
	}
}

func wireSettlement(cfg *config.Config, logger *slog.Logger) (*settlement.Executor, *settlement.Clients, error) {
	sc := cfg.Settlement
	pk, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    sc.OraclePrivateKey,
		EncryptedKeyPath: sc.EncryptedKeyPath,
		KeyPassword:      sc.KeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: oracle key: %w", err)
	}
	signer := crypto.NewOracleSigner(pk, sc.ChainID)

	contract, err := settlement.NewContract(common.HexToAddress(sc.ContractAddress))
	if err != nil {
		return nil, nil, fmt.Errorf("wire: mirror contract: %w", err)
	}

	clients := settlement.NewClients(sc.PrimaryRPC, sc.FallbackRPC, settlement.DialEth)
	exec := settlement.NewExecutor(clients, contract, signer, settlement.Config{
		RequestTimeout: sc.RequestTimeout.Duration,
		ReceiptTimeout: sc.ReceiptTimeout.Duration,
		PollInterval:   sc.PollInterval.Duration,
		GasLimitBuffer: sc.GasLimitBuffer,
	}, logger)

	logger.Info("settlement enabled",
		slog.String("oracle", signer.Address().Hex()),
		slog.String("contract", sc.ContractAddress),
		slog.Int64("chain_id", sc.ChainID),
	)
	return exec, clients, nil
}
