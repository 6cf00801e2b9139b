package setup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/hlpilot/config"
)

func TestAnswersConfig(t *testing.T) {
	a := DefaultAnswers()
	a.Exchange = config.ExchangePaper
	a.Coins = " btc, eth ,,"
	a.LLMAPIKey = "sk-test"
	a.DefaultLeverage = "5"
	a.LoopInterval = "15m"

	cfg, err := a.Config()
	require.NoError(t, err)

	assert.Equal(t, config.ExchangePaper, cfg.Exchange)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Trading.Coins)
	assert.Equal(t, 5, cfg.Trading.DefaultLeverage)
	assert.Equal(t, 15*time.Minute, cfg.Loop.Interval)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestAnswersConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(a *Answers)
	}{
		{name: "no coins", modify: func(a *Answers) { a.Coins = " , " }},
		{name: "bad leverage", modify: func(a *Answers) { a.DefaultLeverage = "three" }},
		{name: "bad interval", modify: func(a *Answers) { a.LoopInterval = "hourly" }},
		{name: "unknown exchange", modify: func(a *Answers) { a.Exchange = "binance" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := DefaultAnswers()
			tt.modify(&a)
			_, err := a.Config()
			assert.Error(t, err)
		})
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.gen.yaml")
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("OTHER=keep\nLLM_API_KEY=old\n"), 0o600))

	cfg := config.Default()
	cfg.Hyperliquid.PrivateKey = "0xabc"
	cfg.LLM.APIKey = "sk-new"

	require.NoError(t, Save(cfg, configPath, envPath))

	raw, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "0xabc")
	assert.NotContains(t, string(raw), "sk-new")

	loaded, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Trading.Coins, loaded.Trading.Coins)

	env, err := godotenv.Read(envPath)
	require.NoError(t, err)
	assert.Equal(t, "keep", env["OTHER"])
	assert.Equal(t, "sk-new", env["LLM_API_KEY"])
	assert.Equal(t, "0xabc", env["HL_PRIVATE_KEY"])
	_, ok := env["CRYPTOPANIC_API_KEY"]
	assert.False(t, ok)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateAddress(""))
	assert.NoError(t, validateAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.Error(t, validateAddress("0x123"))

	assert.NoError(t, validateLeverage("10"))
	assert.Error(t, validateLeverage("11"))
	assert.Error(t, validateLeverage("1.5"))

	assert.NoError(t, validateRange(1, 5)("2.5"))
	assert.Error(t, validateRange(1, 5)("6"))
	assert.Error(t, validateCoins(""))
}
