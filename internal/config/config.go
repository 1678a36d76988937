// Package config defines the top-level configuration for the mirror arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MIRRORARB_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Matching   MatchingConfig   `toml:"matching"`
	Arbitrage  ArbitrageConfig  `toml:"arbitrage"`
	Settlement SettlementConfig `toml:"settlement"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Schedule   ScheduleConfig   `toml:"schedule"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// VenueGuardConfig bounds how hard a venue API is hit.
type VenueGuardConfig struct {
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	BreakerFailures   int      `toml:"breaker_failures"`
	BreakerCooldown   duration `toml:"breaker_cooldown"`
	Timeout           duration `toml:"timeout"`
}

// PolymarketConfig holds Polymarket Gamma API parameters.
type PolymarketConfig struct {
	GammaHost string           `toml:"gamma_host"`
	Guard     VenueGuardConfig `toml:"guard"`
}

// KalshiConfig holds Kalshi exchange API credentials.
type KalshiConfig struct {
	ApiKey            string           `toml:"api_key"`
	RsaPrivateKeyPath string           `toml:"rsa_private_key_path"`
	BaseURL           string           `toml:"base_url"`
	Guard             VenueGuardConfig `toml:"guard"`
}

// MatchingConfig holds similarity model parameters.
type MatchingConfig struct {
	MinSimilarity  float64  `toml:"min_similarity"`
	ConfigTTL      duration `toml:"config_ttl"`
	CorpusLimit    int      `toml:"corpus_limit"`
	ListingsPerVen int      `toml:"listings_per_venue"`
}

// ArbitrageConfig holds detection and query parameters.
type ArbitrageConfig struct {
	ScanCacheTTL    duration `toml:"scan_cache_ttl"`
	DefaultLimit    int      `toml:"default_limit"`
	MaxLimit        int      `toml:"max_limit"`
	NotifyMinSpread float64  `toml:"notify_min_spread"`
}

// SettlementConfig holds the mirror contract and oracle parameters.
type SettlementConfig struct {
	Enabled          bool     `toml:"enabled"`
	ChainID          int64    `toml:"chain_id"`
	ContractAddress  string   `toml:"contract_address"`
	PrimaryRPC       string   `toml:"primary_rpc"`
	FallbackRPC      string   `toml:"fallback_rpc"`
	RequestTimeout   duration `toml:"request_timeout"`
	ReceiptTimeout   duration `toml:"receipt_timeout"`
	PollInterval     duration `toml:"poll_interval"`
	GasLimitBuffer   float64  `toml:"gas_limit_buffer"`
	OraclePrivateKey string   `toml:"oracle_private_key"`
	EncryptedKeyPath string   `toml:"encrypted_key_path"`
	KeyPassword      string   `toml:"key_password"`
	LockTTL          duration `toml:"lock_ttl"`
}

// ResolveBudget is the longest a single resolve can run: the authorize, read
// and submit calls plus a receipt wait on each RPC endpoint.
func (s SettlementConfig) ResolveBudget() time.Duration {
	return 3*s.RequestTimeout.Duration + 2*s.ReceiptTimeout.Duration
}

// ResolveMargin is the headroom kept between ResolveBudget and both the
// settlement lock TTL and the HTTP write timeout.
const ResolveMargin = 30 * time.Second

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ScheduleConfig holds cron specs for the background jobs. An empty spec
// disables the job.
type ScheduleConfig struct {
	Rescan               string `toml:"rescan"`
	ExpirySweep          string `toml:"expiry_sweep"`
	Archive              string `toml:"archive"`
	ArchiveRetentionDays int    `toml:"archive_retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			Guard: VenueGuardConfig{
				RequestsPerSecond: 5,
				Burst:             2,
				BreakerFailures:   5,
				BreakerCooldown:   duration{30 * time.Second},
				Timeout:           duration{15 * time.Second},
			},
		},
		Kalshi: KalshiConfig{
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
			Guard: VenueGuardConfig{
				RequestsPerSecond: 5,
				Burst:             2,
				BreakerFailures:   5,
				BreakerCooldown:   duration{30 * time.Second},
				Timeout:           duration{15 * time.Second},
			},
		},
		Matching: MatchingConfig{
			MinSimilarity:  0.4,
			ConfigTTL:      duration{10 * time.Minute},
			CorpusLimit:    2000,
			ListingsPerVen: 100,
		},
		Arbitrage: ArbitrageConfig{
			ScanCacheTTL:    duration{2 * time.Minute},
			DefaultLimit:    20,
			MaxLimit:        100,
			NotifyMinSpread: 5,
		},
		Settlement: SettlementConfig{
			Enabled:        false,
			ChainID:        545,
			RequestTimeout: duration{30 * time.Second},
			ReceiptTimeout: duration{60 * time.Second},
			PollInterval:   duration{2 * time.Second},
			GasLimitBuffer: 1.2,
			LockTTL:        duration{5 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "mirrorarb:",
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "mirrorarb-archive",
			ForcePathStyle: true,
		},
		Schedule: ScheduleConfig{
			Rescan:               "@every 2m",
			ExpirySweep:          "@every 1m",
			Archive:              "0 0 3 * * *",
			ArchiveRetentionDays: 30,
		},
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"arb_detected", "settlement_succeeded", "settlement_failed"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"scan":   true,
	"settle": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, scan, settle)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Venues
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if c.Kalshi.RsaPrivateKeyPath != "" && c.Kalshi.ApiKey == "" {
		errs = append(errs, "kalshi: api_key is required when rsa_private_key_path is set")
	}
	errs = append(errs, c.Polymarket.Guard.validate("polymarket")...)
	errs = append(errs, c.Kalshi.Guard.validate("kalshi")...)

	// Matching
	if c.Matching.MinSimilarity < 0 || c.Matching.MinSimilarity > 1 {
		errs = append(errs, fmt.Sprintf("matching: min_similarity must be within [0,1], got %v", c.Matching.MinSimilarity))
	}
	if c.Matching.ConfigTTL.Duration <= 0 {
		errs = append(errs, "matching: config_ttl must be > 0")
	}
	if c.Matching.CorpusLimit < 1 {
		errs = append(errs, "matching: corpus_limit must be >= 1")
	}
	if c.Matching.ListingsPerVen < 1 {
		errs = append(errs, "matching: listings_per_venue must be >= 1")
	}

	// Arbitrage
	if c.Arbitrage.ScanCacheTTL.Duration <= 0 {
		errs = append(errs, "arbitrage: scan_cache_ttl must be > 0")
	}
	if c.Arbitrage.MaxLimit < 1 || c.Arbitrage.MaxLimit > 100 {
		errs = append(errs, fmt.Sprintf("arbitrage: max_limit must be 1-100, got %d", c.Arbitrage.MaxLimit))
	}
	if c.Arbitrage.DefaultLimit < 1 || c.Arbitrage.DefaultLimit > c.Arbitrage.MaxLimit {
		errs = append(errs, "arbitrage: default_limit must be between 1 and max_limit")
	}

	// Settlement
	if c.Settlement.Enabled || mode == "settle" {
		if c.Settlement.ChainID <= 0 {
			errs = append(errs, "settlement: chain_id must be positive")
		}
		if !common.IsHexAddress(c.Settlement.ContractAddress) {
			errs = append(errs, fmt.Sprintf("settlement: contract_address %q is not a hex address", c.Settlement.ContractAddress))
		}
		if c.Settlement.PrimaryRPC == "" {
			errs = append(errs, "settlement: primary_rpc must not be empty")
		}
		if c.Settlement.FallbackRPC == "" {
			errs = append(errs, "settlement: fallback_rpc must not be empty")
		}
		if c.Settlement.OraclePrivateKey == "" && c.Settlement.EncryptedKeyPath == "" {
			errs = append(errs, "settlement: either oracle_private_key or encrypted_key_path must be set")
		}
		if c.Settlement.EncryptedKeyPath != "" && c.Settlement.KeyPassword == "" {
			errs = append(errs, "settlement: key_password is required when encrypted_key_path is set")
		}
		if c.Settlement.RequestTimeout.Duration <= 0 {
			errs = append(errs, "settlement: request_timeout must be > 0")
		}
		if c.Settlement.ReceiptTimeout.Duration <= 0 {
			errs = append(errs, "settlement: receipt_timeout must be > 0")
		}
		if minTTL := c.Settlement.ResolveBudget() + ResolveMargin; c.Settlement.LockTTL.Duration < minTTL {
			errs = append(errs, fmt.Sprintf(
				"settlement: lock_ttl %s must be at least %s (3*request_timeout + 2*receipt_timeout + %s)",
				c.Settlement.LockTTL.Duration, minTTL, ResolveMargin))
		}
		if c.Settlement.GasLimitBuffer < 1 {
			errs = append(errs, "settlement: gas_limit_buffer must be >= 1")
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Schedule
	if c.Schedule.Archive != "" && c.Schedule.ArchiveRetentionDays < 1 {
		errs = append(errs, "schedule: archive_retention_days must be >= 1 when archive is scheduled")
	}

	// Server
	if mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateLimitWindow.Duration <= 0 {
			errs = append(errs, "server: rate_limit_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (g VenueGuardConfig) validate(venue string) []string {
	var errs []string
	if g.RequestsPerSecond <= 0 {
		errs = append(errs, venue+": guard.requests_per_second must be > 0")
	}
	if g.Burst < 1 {
		errs = append(errs, venue+": guard.burst must be >= 1")
	}
	if g.BreakerFailures < 1 {
		errs = append(errs, venue+": guard.breaker_failures must be >= 1")
	}
	if g.Timeout.Duration <= 0 {
		errs = append(errs, venue+": guard.timeout must be > 0")
	}
	return errs
}
