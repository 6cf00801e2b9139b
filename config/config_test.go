package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, cfg.Trading.Coins)
	assert.Equal(t, 20.0, cfg.Trading.MaxPositionSizePct)
	assert.Equal(t, 3, cfg.Trading.DefaultLeverage)
	assert.Equal(t, 0.01, cfg.Trading.EntrySlippage)
	assert.Equal(t, 0.03, cfg.Trading.ExitSlippage)
	assert.Equal(t, 5, cfg.Trading.SizePrecision["BTC"])
	assert.Equal(t, 60*time.Second, cfg.Loop.RetryBackoff)
	assert.True(t, cfg.Hyperliquid.Testnet)
	assert.Equal(t, testnetURL, cfg.Hyperliquid.BaseURL())
	assert.Equal(t, mainnetURL, cfg.Hyperliquid.DataURL)
	assert.False(t, cfg.Hyperliquid.CanTrade())
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
exchange: paper
trading:
  coins: [BTC, ETH]
  max_position_size_pct: 10
  size_precision:
    ETH: 3
loop:
  interval: 15m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ExchangePaper, cfg.Exchange)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Trading.Coins)
	assert.Equal(t, 10.0, cfg.Trading.MaxPositionSizePct)
	assert.Equal(t, 15*time.Minute, cfg.Loop.Interval)
	assert.Equal(t, 3, cfg.Trading.SizePrecision["ETH"])
	assert.Equal(t, 5, cfg.Trading.SizePrecision["BTC"], "defaults survive partial maps")
	assert.Equal(t, 3, cfg.Trading.DefaultLeverage)
}

func TestLoad_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tradingg:\n  coins: [BTC]\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"HL_TESTNET":            "false",
		"HL_ACCOUNT_ADDRESS":    "0xabc",
		"HL_PRIVATE_KEY":        "0xdef",
		"TRADING_COINS":         " btc, sol ,",
		"MAX_POSITION_SIZE_PCT": "15",
		"DEFAULT_LEVERAGE":      "5",
		"DEFAULT_SLIPPAGE":      "0.02",
		"DATABASE_DRIVER":       "postgres",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))

	assert.False(t, cfg.Hyperliquid.Testnet)
	assert.Equal(t, mainnetURL, cfg.Hyperliquid.BaseURL())
	assert.True(t, cfg.Hyperliquid.CanTrade())
	assert.Equal(t, []string{"BTC", "SOL"}, cfg.Trading.Coins)
	assert.Equal(t, 15.0, cfg.Trading.MaxPositionSizePct)
	assert.Equal(t, 5, cfg.Trading.DefaultLeverage)
	assert.Equal(t, 0.02, cfg.Trading.EntrySlippage)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "MAX_DAILY_LOSS_PCT" {
			return "five", true
		}
		return "", false
	})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown exchange", func(c *Config) { c.Exchange = "binance" }},
		{"no coins", func(c *Config) { c.Trading.Coins = nil }},
		{"zero max size", func(c *Config) { c.Trading.MaxPositionSizePct = 0 }},
		{"zero leverage", func(c *Config) { c.Trading.DefaultLeverage = 0 }},
		{"leverage above max", func(c *Config) { c.Trading.DefaultLeverage = MaxLeverage + 1 }},
		{"max size above hundred", func(c *Config) { c.Trading.MaxPositionSizePct = 101 }},
		{"negative slippage", func(c *Config) { c.Trading.ExitSlippage = -1 }},
		{"bad margin mode", func(c *Config) { c.Hyperliquid.MarginMode = "portfolio" }},
		{"bad provider", func(c *Config) { c.LLM.Provider = "anthropic" }},
		{"bad driver", func(c *Config) { c.Database.Driver = "mssql" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
