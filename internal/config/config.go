// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/arbradar/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBRADAR_* environment
// variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Scan     ScanConfig     `toml:"scan"`
	Executor ExecutorConfig `toml:"executor"`
	Wallet   WalletConfig   `toml:"wallet"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Venues   []VenueConfig  `toml:"venues"`
	Pairs    []PairConfig   `toml:"pairs"`
	Users    []UserSeed     `toml:"users"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds the EVM node connection and chain parameters.
type ChainConfig struct {
	RPCURL        string `toml:"rpc_url"`
	ChainID       int64  `toml:"chain_id"`
	WrappedNative string `toml:"wrapped_native"`
	NativeSymbol  string `toml:"native_symbol"`
}

// ScanConfig holds the scan loop parameters.
type ScanConfig struct {
	Interval     duration `toml:"interval"`
	QuoteTimeout duration `toml:"quote_timeout"`
	ProbeAmount  float64  `toml:"probe_amount"`
}

// ExecutorConfig holds the trade execution parameters.
type ExecutorConfig struct {
	Workers          int      `toml:"workers"`
	QueueSize        int      `toml:"queue_size"`
	BaseAmount       float64  `toml:"base_amount"`
	FeeBeneficiary   string   `toml:"fee_beneficiary"`
	InclusionTimeout duration `toml:"inclusion_timeout"`
	LockTTL          duration `toml:"lock_ttl"`
}

// WalletConfig holds the per-user keystore parameters.
type WalletConfig struct {
	Dir           string `toml:"dir"`
	Password      string `toml:"password"`
	CreateMissing bool   `toml:"create_missing"`
}

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

// RedisConfig holds Redis connection parameters. Redis backs the
// distributed execution locks and the published quote cache; it is
// optional, disabled instances fall back to in-process guards only.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for ledger
// archival.
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

// ArchiveConfig holds the ledger export cadence and retention.
type ArchiveConfig struct {
	Interval      duration `toml:"interval"`
	BatchSize     int      `toml:"batch_size"`
	RetentionDays int      `toml:"retention_days"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
}

// VenueConfig describes one DEX: a display name and its V2-style router.
type VenueConfig struct {
	Name   string `toml:"name"`
	Router string `toml:"router"`
}

// PairConfig describes one tradable token pair.
type PairConfig struct {
	Name   string `toml:"name"`
	Token0 string `toml:"token0"`
	Token1 string `toml:"token1"`
}

// UserSeed pre-registers a user's scan configuration at startup.
type UserSeed struct {
	ID        int64    `toml:"id"`
	Venues    []string `toml:"venues"`
	Pairs     []int    `toml:"pairs"`
	Threshold float64  `toml:"threshold"`
	Autotrade bool     `toml:"autotrade"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:       "http://localhost:8545",
			ChainID:      1,
			NativeSymbol: "ETH",
		},
		Scan: ScanConfig{
			Interval:     duration{15 * time.Second},
			QuoteTimeout: duration{5 * time.Second},
			ProbeAmount:  1.0,
		},
		Executor: ExecutorConfig{
			Workers:          2,
			QueueSize:        16,
			BaseAmount:       0.001,
			InclusionTimeout: duration{90 * time.Second},
			LockTTL:          duration{2 * time.Minute},
		},
		Wallet: WalletConfig{
			Dir:           "wallets",
			CreateMissing: true,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbradar",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbradar-data",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Interval:      duration{time.Hour},
			BatchSize:     500,
			RetentionDays: 90,
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode. "scan"
// detects and notifies only; "trade" adds the execution pipeline.
var validModes = map[string]bool{
	"scan":  true,
	"trade": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, trade)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, fmt.Sprintf("chain: chain_id must be positive, got %d", c.Chain.ChainID))
	}
	if c.Chain.WrappedNative != "" && !common.IsHexAddress(c.Chain.WrappedNative) {
		errs = append(errs, fmt.Sprintf("chain: wrapped_native %q is not a valid address", c.Chain.WrappedNative))
	}

	// Scan
	if c.Scan.Interval.Duration <= 0 {
		errs = append(errs, "scan: interval must be > 0")
	}
	if c.Scan.QuoteTimeout.Duration <= 0 {
		errs = append(errs, "scan: quote_timeout must be > 0")
	}
	if c.Scan.ProbeAmount <= 0 {
		errs = append(errs, "scan: probe_amount must be > 0")
	}

	// Executor
	if c.Executor.Workers < 1 {
		errs = append(errs, "executor: workers must be >= 1")
	}
	if c.Executor.QueueSize < 1 {
		errs = append(errs, "executor: queue_size must be >= 1")
	}
	if c.Executor.BaseAmount <= 0 {
		errs = append(errs, "executor: base_amount must be > 0")
	}
	if c.Executor.FeeBeneficiary != "" && !common.IsHexAddress(c.Executor.FeeBeneficiary) {
		errs = append(errs, fmt.Sprintf("executor: fee_beneficiary %q is not a valid address", c.Executor.FeeBeneficiary))
	}

	// Wallet — required in trade mode.
	if strings.ToLower(c.Mode) == "trade" {
		if c.Wallet.Dir == "" {
			errs = append(errs, "wallet: dir must not be empty for mode trade")
		}
		if c.Wallet.Password == "" {
			errs = append(errs, "wallet: password is required for mode trade")
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
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Venues — the scanner needs at least two routers to compare.
	if len(c.Venues) < 2 {
		errs = append(errs, fmt.Sprintf("venues: at least 2 venues are required, got %d", len(c.Venues)))
	}
	seenVenue := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("venues[%d]: name must not be empty", i))
		} else if seenVenue[v.Name] {
			errs = append(errs, fmt.Sprintf("venues[%d]: duplicate name %q", i, v.Name))
		}
		seenVenue[v.Name] = true
		if !common.IsHexAddress(v.Router) {
			errs = append(errs, fmt.Sprintf("venues[%d] %s: router %q is not a valid address", i, v.Name, v.Router))
		}
	}

	// Pairs
	if len(c.Pairs) < 1 {
		errs = append(errs, "pairs: at least 1 pair is required")
	}
	for i, p := range c.Pairs {
		if !common.IsHexAddress(p.Token0) {
			errs = append(errs, fmt.Sprintf("pairs[%d]: token0 %q is not a valid address", i, p.Token0))
		}
		if !common.IsHexAddress(p.Token1) {
			errs = append(errs, fmt.Sprintf("pairs[%d]: token1 %q is not a valid address", i, p.Token1))
		}
	}

	// User seeds
	for i, u := range c.Users {
		if u.ID == 0 {
			errs = append(errs, fmt.Sprintf("users[%d]: id must not be zero", i))
		}
		for _, name := range u.Venues {
			if !seenVenue[name] {
				errs = append(errs, fmt.Sprintf("users[%d]: unknown venue %q", i, name))
			}
		}
		for _, p := range u.Pairs {
			if p < 0 || p >= len(c.Pairs) {
				errs = append(errs, fmt.Sprintf("users[%d]: pair index %d out of range", i, p))
			}
		}
		if u.Threshold != 0 && (u.Threshold < domain.MinSpreadThreshold || u.Threshold > domain.MaxSpreadThreshold) {
			errs = append(errs, fmt.Sprintf("users[%d]: threshold %.3f outside [%.1f, %.1f]",
				i, u.Threshold, domain.MinSpreadThreshold, domain.MaxSpreadThreshold))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
