package config

import (
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Venues = []VenueConfig{
		{Name: "UniV2", Router: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"},
		{Name: "SushiV2", Router: "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F"},
	}
	cfg.Pairs = []PairConfig{
		{
			Name:   "DAI/WETH",
			Token0: "0x6B175474E89094C44Da98b954EedeAC495271d0F",
			Token1: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		},
	}
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "turbo"
	cfg.Chain.ChainID = 0
	cfg.Venues = cfg.Venues[:1]
	cfg.Users = []UserSeed{{ID: 42, Threshold: 99.0}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "chain_id must be positive")
	assert.Contains(t, err.Error(), "at least 2 venues")
	assert.Contains(t, err.Error(), "threshold 99.000")
}

func TestValidateTradeModeRequiresWallet(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.Wallet.Password = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet: password is required")
}

func TestValidateRejectsUnknownSeedVenue(t *testing.T) {
	cfg := validConfig()
	cfg.Users = []UserSeed{{ID: 1, Venues: []string{"UniV3"}}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown venue "UniV3"`)
}

func TestTOMLDurationDecoding(t *testing.T) {
	cfg := Defaults()
	_, err := toml.Decode(`
[scan]
interval = "30s"
quote_timeout = "2s"
`, &cfg)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Scan.Interval.Duration)
	assert.Equal(t, 2*time.Second, cfg.Scan.QuoteTimeout.Duration)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARBRADAR_MODE", "trade")
	t.Setenv("ARBRADAR_SCAN_INTERVAL", "45s")
	t.Setenv("ARBRADAR_EXECUTOR_WORKERS", "4")
	t.Setenv("ARBRADAR_WALLET_PASSWORD", "hunter2")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "trade", cfg.Mode)
	assert.Equal(t, 45*time.Second, cfg.Scan.Interval.Duration)
	assert.Equal(t, 4, cfg.Executor.Workers)
	assert.Equal(t, "hunter2", cfg.Wallet.Password)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.Password = "hunter2"
	cfg.Postgres.Password = "pgpass"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Wallet.Password)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	// The original is untouched.
	assert.Equal(t, "hunter2", cfg.Wallet.Password)
	// Empty secrets stay empty rather than gaining a placeholder.
	assert.Empty(t, red.Redis.Password)
}
