package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBRADAR_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known ARBRADAR_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "ARBRADAR_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "ARBRADAR_CHAIN_ID")
	setStr(&cfg.Chain.WrappedNative, "ARBRADAR_CHAIN_WRAPPED_NATIVE")
	setStr(&cfg.Chain.NativeSymbol, "ARBRADAR_CHAIN_NATIVE_SYMBOL")

	// ── Scan ──
	setDuration(&cfg.Scan.Interval, "ARBRADAR_SCAN_INTERVAL")
	setDuration(&cfg.Scan.QuoteTimeout, "ARBRADAR_SCAN_QUOTE_TIMEOUT")
	setFloat64(&cfg.Scan.ProbeAmount, "ARBRADAR_SCAN_PROBE_AMOUNT")

	// ── Executor ──
	setInt(&cfg.Executor.Workers, "ARBRADAR_EXECUTOR_WORKERS")
	setInt(&cfg.Executor.QueueSize, "ARBRADAR_EXECUTOR_QUEUE_SIZE")
	setFloat64(&cfg.Executor.BaseAmount, "ARBRADAR_EXECUTOR_BASE_AMOUNT")
	setStr(&cfg.Executor.FeeBeneficiary, "ARBRADAR_EXECUTOR_FEE_BENEFICIARY")
	setDuration(&cfg.Executor.InclusionTimeout, "ARBRADAR_EXECUTOR_INCLUSION_TIMEOUT")
	setDuration(&cfg.Executor.LockTTL, "ARBRADAR_EXECUTOR_LOCK_TTL")

	// ── Wallet ──
	setStr(&cfg.Wallet.Dir, "ARBRADAR_WALLET_DIR")
	setStr(&cfg.Wallet.Password, "ARBRADAR_WALLET_PASSWORD")
	setBool(&cfg.Wallet.CreateMissing, "ARBRADAR_WALLET_CREATE_MISSING")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBRADAR_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBRADAR_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBRADAR_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBRADAR_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBRADAR_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBRADAR_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBRADAR_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBRADAR_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBRADAR_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBRADAR_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBRADAR_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBRADAR_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBRADAR_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBRADAR_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBRADAR_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBRADAR_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBRADAR_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARBRADAR_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBRADAR_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBRADAR_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBRADAR_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBRADAR_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBRADAR_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBRADAR_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBRADAR_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setDuration(&cfg.Archive.Interval, "ARBRADAR_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.BatchSize, "ARBRADAR_ARCHIVE_BATCH_SIZE")
	setInt(&cfg.Archive.RetentionDays, "ARBRADAR_ARCHIVE_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBRADAR_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBRADAR_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBRADAR_MODE")
	setStr(&cfg.LogLevel, "ARBRADAR_LOG_LEVEL")
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
