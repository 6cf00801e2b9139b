package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/hlpilot/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers holds the raw wizard input.
type Answers struct {
	Exchange       string
	Testnet        bool
	Coins          string
	AccountAddress string
	PrivateKey     string

	LLMProvider string
	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string

	MaxPositionSizePct string
	DefaultLeverage    string
	StopLossPct        string
	TakeProfitPct      string
	LoopInterval       string

	NewsAPIKey string
}

// DefaultAnswers pre-fills the wizard from the built-in defaults.
func DefaultAnswers() Answers {
	d := config.Default()
	return Answers{
		Exchange:           d.Exchange,
		Testnet:            d.Hyperliquid.Testnet,
		Coins:              strings.Join(d.Trading.Coins, ","),
		LLMProvider:        d.LLM.Provider,
		LLMBaseURL:         d.LLM.BaseURL,
		LLMModel:           d.LLM.Model,
		MaxPositionSizePct: strconv.FormatFloat(d.Trading.MaxPositionSizePct, 'f', -1, 64),
		DefaultLeverage:    strconv.Itoa(d.Trading.DefaultLeverage),
		StopLossPct:        strconv.FormatFloat(d.Trading.StopLossPct, 'f', -1, 64),
		TakeProfitPct:      strconv.FormatFloat(d.Trading.TakeProfitPct, 'f', -1, 64),
		LoopInterval:       d.Loop.Interval.String(),
	}
}

// Config converts the answers into a validated configuration, secrets included.
func (a Answers) Config() (config.Config, error) {
	cfg := config.Default()
	cfg.Exchange = a.Exchange
	cfg.Hyperliquid.Testnet = a.Testnet
	cfg.Hyperliquid.AccountAddress = strings.TrimSpace(a.AccountAddress)
	cfg.Hyperliquid.PrivateKey = strings.TrimSpace(a.PrivateKey)
	cfg.Trading.Coins = splitCoins(a.Coins)

	cfg.LLM.Provider = a.LLMProvider
	cfg.LLM.BaseURL = strings.TrimSpace(a.LLMBaseURL)
	cfg.LLM.APIKey = strings.TrimSpace(a.LLMAPIKey)
	cfg.LLM.Model = strings.TrimSpace(a.LLMModel)
	cfg.News.APIKey = strings.TrimSpace(a.NewsAPIKey)

	var err error
	if cfg.Trading.MaxPositionSizePct, err = strconv.ParseFloat(a.MaxPositionSizePct, 64); err != nil {
		return config.Config{}, errors.Wrap(err, "max position size")
	}
	if cfg.Trading.DefaultLeverage, err = strconv.Atoi(a.DefaultLeverage); err != nil {
		return config.Config{}, errors.Wrap(err, "leverage")
	}
	if cfg.Trading.StopLossPct, err = strconv.ParseFloat(a.StopLossPct, 64); err != nil {
		return config.Config{}, errors.Wrap(err, "stop loss")
	}
	if cfg.Trading.TakeProfitPct, err = strconv.ParseFloat(a.TakeProfitPct, 64); err != nil {
		return config.Config{}, errors.Wrap(err, "take profit")
	}
	if cfg.Loop.Interval, err = time.ParseDuration(a.LoopInterval); err != nil {
		return config.Config{}, errors.Wrap(err, "loop interval")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to configPath without secrets and merges the secrets into
// the env file at envPath, keeping any other variables already there.
func Save(cfg config.Config, configPath, envPath string) error {
	secrets := map[string]string{
		"HL_PRIVATE_KEY":      cfg.Hyperliquid.PrivateKey,
		"LLM_API_KEY":         cfg.LLM.APIKey,
		"CRYPTOPANIC_API_KEY": cfg.News.APIKey,
	}
	cfg.Hyperliquid.PrivateKey = ""
	cfg.LLM.APIKey = ""
	cfg.News.APIKey = ""

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create config dir")
		}
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}

	env, err := godotenv.Read(envPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return errors.Wrap(err, "failed to read env file")
		}
		env = map[string]string{}
	}
	changed := false
	for k, v := range secrets {
		if v != "" {
			env[k] = v
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := godotenv.Write(env, envPath); err != nil {
		return errors.Wrap(err, "failed to save env file")
	}
	return os.Chmod(envPath, 0o600)
}

// RunTUI launches the terminal configuration wizard and writes the result.
func RunTUI(configPath, envPath string) error {
	a := DefaultAnswers()
	var confirm bool

	step := func(title string) {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("HLPILOT CONFIG WIZARD"))
		fmt.Println(stepStyle.Render(title))
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("HLPILOT CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Configure the Hyperliquid trading assistant.\n"))

	fmt.Println(stepStyle.Render("STEP 1: EXCHANGE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should orders go?").
				Options(
					huh.NewOption("Hyperliquid", config.ExchangeHyperliquid),
					huh.NewOption("Paper trading (simulated fills)", config.ExchangePaper),
				).
				Value(&a.Exchange),
			huh.NewConfirm().
				Title("Use testnet?").
				Value(&a.Testnet),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 2: COINS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Coins to trade").
				Description("Comma separated perp symbols (e.g. BTC,ETH,SOL)").
				Value(&a.Coins).
				Validate(validateCoins),
		),
	).Run()
	if err != nil {
		return err
	}

	if a.Exchange == config.ExchangeHyperliquid {
		step("STEP 3: WALLET")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Account address").
					Description("Leave empty to derive it from the key").
					Value(&a.AccountAddress).
					Validate(validateAddress),
				huh.NewInput().
					Title("Private key").
					Description("Leave empty for analysis-only mode").
					Value(&a.PrivateKey).
					EchoMode(huh.EchoModePassword),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	step("STEP 4: MODEL")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("LLM provider").
				Options(
					huh.NewOption("OpenAI-compatible (OpenAI, OpenRouter)", config.ProviderOpenAI),
					huh.NewOption("DeepSeek", config.ProviderDeepSeek),
				).
				Value(&a.LLMProvider),
			huh.NewInput().
				Title("API base URL").
				Value(&a.LLMBaseURL),
			huh.NewInput().
				Title("API key").
				Value(&a.LLMAPIKey).
				EchoMode(huh.EchoModePassword).
				Validate(notEmpty("API key")),
			huh.NewInput().
				Title("Model").
				Value(&a.LLMModel).
				Validate(notEmpty("model")),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 5: RISK")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Max position size %").
				Description("Share of available balance per trade (1-100)").
				Value(&a.MaxPositionSizePct).
				Validate(validateRange(1, 100)),
			huh.NewInput().
				Title("Default leverage").
				Description("1-10").
				Value(&a.DefaultLeverage).
				Validate(validateLeverage),
			huh.NewInput().
				Title("Stop loss %").
				Value(&a.StopLossPct).
				Validate(validateRange(1, 5)),
			huh.NewInput().
				Title("Take profit %").
				Value(&a.TakeProfitPct).
				Validate(validateRange(2, 10)),
			huh.NewInput().
				Title("Loop interval").
				Description("Duration string (e.g. 15m, 1h)").
				Value(&a.LoopInterval).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewInput().
				Title("CryptoPanic API key").
				Description("Optional, enables news headlines").
				Value(&a.NewsAPIKey).
				EchoMode(huh.EchoModePassword),
		),
	).Run()
	if err != nil {
		return err
	}

	step("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Exchange: %s (testnet: %t)\nCoins: %s\nModel: %s via %s\nMax size: %s%%  Leverage: %sx\nSL/TP: %s%% / %s%%\nInterval: %s\n",
		a.Exchange, a.Testnet, a.Coins, a.LLMModel, a.LLMProvider,
		a.MaxPositionSizePct, a.DefaultLeverage, a.StopLossPct, a.TakeProfitPct, a.LoopInterval,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	cfg, err := a.Config()
	if err != nil {
		return err
	}
	if err := Save(cfg, configPath, envPath); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s (secrets in %s)", configPath, envPath)))
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

func validateCoins(s string) error {
	if len(splitCoins(s)) == 0 {
		return fmt.Errorf("at least one coin is required")
	}
	return nil
}

func validateAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || common.IsHexAddress(s) {
		return nil
	}
	return fmt.Errorf("not a valid 0x address")
}

func validateLeverage(s string) error {
	lev, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if lev < 1 || lev > 10 {
		return fmt.Errorf("must be between 1 and 10")
	}
	return nil
}

func validateRange(lo, hi float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("must be a valid number")
		}
		if v < lo || v > hi {
			return fmt.Errorf("must be between %g and %g", lo, hi)
		}
		return nil
	}
}

func notEmpty(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		return nil
	}
}
