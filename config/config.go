// Package config loads hlpilot settings: built-in defaults, then an optional YAML file,
// then .env and process environment overrides.
package config

import (
	"bytes"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	ExchangeHyperliquid = "hyperliquid"
	ExchangePaper       = "paper"

	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	MarginIsolated = "isolated"
	MarginCross    = "cross"

	// MaxLeverage matches the leverage range the decision schema accepts.
	MaxLeverage = 10

	mainnetURL = "https://api.hyperliquid.xyz"
	testnetURL = "https://api.hyperliquid-testnet.xyz"
)

type Config struct {
	Exchange    string            `yaml:"exchange"`
	Hyperliquid HyperliquidConfig `yaml:"hyperliquid"`
	Paper       PaperConfig       `yaml:"paper"`
	Trading     TradingConfig     `yaml:"trading"`
	Loop        LoopConfig        `yaml:"loop"`
	LLM         LLMConfig         `yaml:"llm"`
	News        NewsConfig        `yaml:"news"`
	Sentiment   SentimentConfig   `yaml:"sentiment"`
	Database    DatabaseConfig    `yaml:"database"`
	Journal     JournalConfig     `yaml:"journal"`
	Log         LogConfig         `yaml:"log"`
}

type HyperliquidConfig struct {
	Testnet        bool   `yaml:"testnet"`
	AccountAddress string `yaml:"account_address"`
	PrivateKey     string `yaml:"private_key"`
	// DataURL serves candles, mids and funding. Mainnet data is used even when
	// trading on testnet, where candles are sparse.
	DataURL    string `yaml:"data_url"`
	MarginMode string `yaml:"margin_mode"`
}

// BaseURL is the endpoint signed actions are sent to.
func (h HyperliquidConfig) BaseURL() string {
	if h.Testnet {
		return testnetURL
	}
	return mainnetURL
}

// CanTrade reports whether a signing key is present. The account address is
// derived from the key when not set.
func (h HyperliquidConfig) CanTrade() bool {
	return strings.TrimSpace(h.PrivateKey) != ""
}

type PaperConfig struct {
	StartingBalance float64 `yaml:"starting_balance"`
	StateDir        string  `yaml:"state_dir"`
}

type TradingConfig struct {
	Coins               []string       `yaml:"coins"`
	Interval            string         `yaml:"interval"`
	Lookback            int            `yaml:"lookback"`
	MaxPositionSizePct  float64        `yaml:"max_position_size_pct"`
	MaxTotalExposurePct float64        `yaml:"max_total_exposure_pct"`
	MaxDailyLossPct     float64        `yaml:"max_daily_loss_pct"`
	DefaultLeverage     int            `yaml:"default_leverage"`
	DefaultSizePct      float64        `yaml:"default_size_pct"`
	StopLossPct         float64        `yaml:"stop_loss_pct"`
	TakeProfitPct       float64        `yaml:"take_profit_pct"`
	EntrySlippage       float64        `yaml:"entry_slippage"`
	ExitSlippage        float64        `yaml:"exit_slippage"`
	SizePrecision       map[string]int `yaml:"size_precision"`
	PricePrecision      map[string]int `yaml:"price_precision"`
}

type LoopConfig struct {
	Interval     time.Duration `yaml:"interval"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	MaxRetries   int           `yaml:"max_retries"`
}

type LLMConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type NewsConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Limit   int    `yaml:"limit"`
	Filter  string `yaml:"filter"`
}

type SentimentConfig struct {
	URL string `yaml:"url"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type JournalConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Exchange: ExchangeHyperliquid,
		Hyperliquid: HyperliquidConfig{
			Testnet:    true,
			DataURL:    mainnetURL,
			MarginMode: MarginIsolated,
		},
		Paper: PaperConfig{StartingBalance: 10000, StateDir: "data/paper"},
		Trading: TradingConfig{
			Coins:               []string{"BTC", "ETH", "SOL"},
			Interval:            "1h",
			Lookback:            100,
			MaxPositionSizePct:  20,
			MaxTotalExposurePct: 50,
			MaxDailyLossPct:     5,
			DefaultLeverage:     3,
			DefaultSizePct:      3,
			StopLossPct:         3,
			TakeProfitPct:       6,
			EntrySlippage:       0.01,
			ExitSlippage:        0.03,
			SizePrecision:       map[string]int{"BTC": 5},
			PricePrecision:      map[string]int{},
		},
		Loop: LoopConfig{Interval: 60 * time.Minute, RetryBackoff: 60 * time.Second, MaxRetries: 3},
		LLM: LLMConfig{
			Provider:  ProviderOpenAI,
			BaseURL:   "https://openrouter.ai/api/v1",
			Model:     "anthropic/claude-sonnet-4",
			MaxTokens: 1000,
		},
		News:      NewsConfig{BaseURL: "https://cryptopanic.com/api/developer/v2", Limit: 10},
		Sentiment: SentimentConfig{URL: "https://api.alternative.me/fng/"},
		Database:  DatabaseConfig{Driver: DriverSQLite, DSN: "data/hlpilot.db"},
		Journal:   JournalConfig{Dir: "data/journal"},
		Log:       LogConfig{Level: "info"},
	}
}

// Load builds the configuration. path may be empty. A missing .env file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var err error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" && err == nil {
			f, perr := strconv.ParseFloat(v, 64)
			if perr != nil {
				err = errors.Wrapf(perr, "env %s", key)
				return
			}
			*dst = f
		}
	}

	if v, ok := lookup("HL_TESTNET"); ok && v != "" {
		c.Hyperliquid.Testnet = strings.EqualFold(v, "true")
	}
	str("HL_ACCOUNT_ADDRESS", &c.Hyperliquid.AccountAddress)
	str("HL_PRIVATE_KEY", &c.Hyperliquid.PrivateKey)
	if v, ok := lookup("TRADING_COINS"); ok && v != "" {
		c.Trading.Coins = splitCoins(v)
	}
	float("MAX_POSITION_SIZE_PCT", &c.Trading.MaxPositionSizePct)
	float("MAX_TOTAL_EXPOSURE_PCT", &c.Trading.MaxTotalExposurePct)
	float("MAX_DAILY_LOSS_PCT", &c.Trading.MaxDailyLossPct)
	float("DEFAULT_SLIPPAGE", &c.Trading.EntrySlippage)
	if v, ok := lookup("DEFAULT_LEVERAGE"); ok && v != "" && err == nil {
		lev, perr := strconv.Atoi(v)
		if perr != nil {
			return errors.Wrap(perr, "env DEFAULT_LEVERAGE")
		}
		c.Trading.DefaultLeverage = lev
	}
	str("LLM_API_KEY", &c.LLM.APIKey)
	str("CRYPTOPANIC_API_KEY", &c.News.APIKey)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_DSN", &c.Database.DSN)

	return err
}

// Validate checks values that would otherwise fail deep inside a cycle.
func (c Config) Validate() error {
	switch c.Exchange {
	case ExchangeHyperliquid, ExchangePaper:
	default:
		return errors.Errorf("unknown exchange %q", c.Exchange)
	}
	if len(c.Trading.Coins) == 0 {
		return errors.New("trading.coins is empty")
	}
	if c.Trading.MaxPositionSizePct <= 0 || c.Trading.MaxPositionSizePct > 100 {
		return errors.Errorf("trading.max_position_size_pct must be in (0, 100], got %v", c.Trading.MaxPositionSizePct)
	}
	if c.Trading.DefaultLeverage < 1 || c.Trading.DefaultLeverage > MaxLeverage {
		return errors.Errorf("trading.default_leverage must be in [1, %d], got %d", MaxLeverage, c.Trading.DefaultLeverage)
	}
	if c.Trading.Lookback <= 0 {
		return errors.Errorf("trading.lookback must be positive, got %d", c.Trading.Lookback)
	}
	if c.Trading.EntrySlippage < 0 || c.Trading.ExitSlippage < 0 {
		return errors.New("slippage must not be negative")
	}
	if c.Loop.Interval <= 0 {
		return errors.Errorf("loop.interval must be positive, got %s", c.Loop.Interval)
	}
	switch c.Hyperliquid.MarginMode {
	case MarginIsolated, MarginCross:
	default:
		return errors.Errorf("unknown hyperliquid.margin_mode %q", c.Hyperliquid.MarginMode)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderDeepSeek:
	default:
		return errors.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return errors.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	return nil
}

func splitCoins(s string) []string {
	var coins []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			coins = append(coins, c)
		}
	}
	return coins
}
