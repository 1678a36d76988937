package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MIRRORARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MIRRORARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Venues ──
	setStr(&cfg.Polymarket.GammaHost, "MIRRORARB_POLYMARKET_GAMMA_HOST")
	setFloat64(&cfg.Polymarket.Guard.RequestsPerSecond, "MIRRORARB_POLYMARKET_RPS")
	setStr(&cfg.Kalshi.ApiKey, "MIRRORARB_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "MIRRORARB_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.BaseURL, "MIRRORARB_KALSHI_BASE_URL")
	setFloat64(&cfg.Kalshi.Guard.RequestsPerSecond, "MIRRORARB_KALSHI_RPS")

	// ── Matching ──
	setFloat64(&cfg.Matching.MinSimilarity, "MIRRORARB_MATCHING_MIN_SIMILARITY")
	setDuration(&cfg.Matching.ConfigTTL, "MIRRORARB_MATCHING_CONFIG_TTL")
	setInt(&cfg.Matching.CorpusLimit, "MIRRORARB_MATCHING_CORPUS_LIMIT")
	setInt(&cfg.Matching.ListingsPerVen, "MIRRORARB_MATCHING_LISTINGS_PER_VENUE")

	// ── Arbitrage ──
	setDuration(&cfg.Arbitrage.ScanCacheTTL, "MIRRORARB_ARBITRAGE_SCAN_CACHE_TTL")
	setInt(&cfg.Arbitrage.DefaultLimit, "MIRRORARB_ARBITRAGE_DEFAULT_LIMIT")
	setInt(&cfg.Arbitrage.MaxLimit, "MIRRORARB_ARBITRAGE_MAX_LIMIT")
	setFloat64(&cfg.Arbitrage.NotifyMinSpread, "MIRRORARB_ARBITRAGE_NOTIFY_MIN_SPREAD")

	// ── Settlement ──
	setBool(&cfg.Settlement.Enabled, "MIRRORARB_SETTLEMENT_ENABLED")
	setInt64(&cfg.Settlement.ChainID, "MIRRORARB_SETTLEMENT_CHAIN_ID")
	setStr(&cfg.Settlement.ContractAddress, "MIRRORARB_SETTLEMENT_CONTRACT_ADDRESS")
	setStr(&cfg.Settlement.PrimaryRPC, "MIRRORARB_SETTLEMENT_PRIMARY_RPC")
	setStr(&cfg.Settlement.FallbackRPC, "MIRRORARB_SETTLEMENT_FALLBACK_RPC")
	setDuration(&cfg.Settlement.RequestTimeout, "MIRRORARB_SETTLEMENT_REQUEST_TIMEOUT")
	setDuration(&cfg.Settlement.ReceiptTimeout, "MIRRORARB_SETTLEMENT_RECEIPT_TIMEOUT")
	setDuration(&cfg.Settlement.LockTTL, "MIRRORARB_SETTLEMENT_LOCK_TTL")
	setStr(&cfg.Settlement.OraclePrivateKey, "MIRRORARB_SETTLEMENT_ORACLE_PRIVATE_KEY")
	setStr(&cfg.Settlement.EncryptedKeyPath, "MIRRORARB_SETTLEMENT_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Settlement.KeyPassword, "MIRRORARB_SETTLEMENT_KEY_PASSWORD")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "MIRRORARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "MIRRORARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MIRRORARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MIRRORARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MIRRORARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MIRRORARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MIRRORARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MIRRORARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MIRRORARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MIRRORARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MIRRORARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MIRRORARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MIRRORARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MIRRORARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MIRRORARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MIRRORARB_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "MIRRORARB_REDIS_KEY_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MIRRORARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MIRRORARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MIRRORARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "MIRRORARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MIRRORARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MIRRORARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MIRRORARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MIRRORARB_S3_FORCE_PATH_STYLE")

	// ── Schedule ──
	setStr(&cfg.Schedule.Rescan, "MIRRORARB_SCHEDULE_RESCAN")
	setStr(&cfg.Schedule.ExpirySweep, "MIRRORARB_SCHEDULE_EXPIRY_SWEEP")
	setStr(&cfg.Schedule.Archive, "MIRRORARB_SCHEDULE_ARCHIVE")
	setInt(&cfg.Schedule.ArchiveRetentionDays, "MIRRORARB_SCHEDULE_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setInt(&cfg.Server.Port, "MIRRORARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MIRRORARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MIRRORARB_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "MIRRORARB_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MIRRORARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MIRRORARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MIRRORARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MIRRORARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MIRRORARB_MODE")
	setStr(&cfg.LogLevel, "MIRRORARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
