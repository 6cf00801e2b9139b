package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SentimentSignal buckets the Fear & Greed value.
type SentimentSignal string

const (
	SentimentExtremeFear  SentimentSignal = "EXTREME_FEAR"
	SentimentFear         SentimentSignal = "FEAR"
	SentimentNeutral      SentimentSignal = "NEUTRAL"
	SentimentGreed        SentimentSignal = "GREED"
	SentimentExtremeGreed SentimentSignal = "EXTREME_GREED"
)

// Bias is the contrarian direction suggested by sentiment. It is not a trade signal.
type Bias string

const (
	BiasLong  Bias = "LONG"
	BiasShort Bias = "SHORT"
	BiasNone  Bias = "NONE"
)

// FearGreed is the normalised Fear & Greed reading. Value is nil when the
// index could not be fetched.
type FearGreed struct {
	Value          *int            `json:"value"`
	Classification string          `json:"classification"`
	Signal         SentimentSignal `json:"signal"`
	Score          float64         `json:"score"`
	Bias           Bias            `json:"bias"`
	Timestamp      int64           `json:"timestamp,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// SentimentSummary is the compact sentiment block of the market context.
type SentimentSummary struct {
	FearGreed      FearGreed       `json:"fear_greed"`
	OverallSignal  SentimentSignal `json:"overall_signal"`
	OverallBias    Bias            `json:"overall_bias"`
	SentimentScore float64         `json:"sentiment_score"`
}

// NewsItem is one headline with its vote-derived sentiment.
type NewsItem struct {
	Title         string   `json:"title"`
	Source        string   `json:"source"`
	URL           string   `json:"url"`
	PublishedAt   string   `json:"published_at"`
	Sentiment     Signal   `json:"sentiment"`
	Currencies    []string `json:"currencies"`
	VotesPositive int      `json:"votes_positive"`
	VotesNegative int      `json:"votes_negative"`
}

// NewsSummary aggregates recent headlines.
type NewsSummary struct {
	TotalNews        int      `json:"total_news"`
	BullishCount     int      `json:"bullish_count"`
	BearishCount     int      `json:"bearish_count"`
	SentimentSummary Signal   `json:"sentiment_summary"`
	Headlines        []string `json:"headlines"`
}

// CoinMarket is the per-coin block of the market context.
type CoinMarket struct {
	Coin        string           `json:"coin"`
	Report      IndicatorReport  `json:"report"`
	FundingRate *decimal.Decimal `json:"funding_rate,omitempty"`
}

// Portfolio is the account view rendered into the prompt.
type Portfolio struct {
	Balance          decimal.Decimal `json:"balance_usd"`
	Available        decimal.Decimal `json:"available_usd"`
	Positions        []Position      `json:"positions"`
	TotalExposurePct decimal.Decimal `json:"total_exposure_pct"`
}

// NewPortfolio computes total exposure as position notional over account value.
func NewPortfolio(balance Balance, positions []Position) Portfolio {
	exposure := decimal.Zero
	if balance.Total.IsPositive() {
		notional := decimal.Zero
		for _, p := range positions {
			notional = notional.Add(p.Notional())
		}
		exposure = notional.Div(balance.Total).Mul(hundred).Round(2)
	}
	return Portfolio{
		Balance:          balance.Total,
		Available:        balance.Available,
		Positions:        positions,
		TotalExposurePct: exposure,
	}
}

// RiskParams are the static limits shown to the model.
type RiskParams struct {
	MaxPositionSizePct  float64 `json:"max_position_size_pct"`
	MaxTotalExposurePct float64 `json:"max_total_exposure_pct"`
	MaxDailyLossPct     float64 `json:"max_daily_loss_pct"`
	DefaultLeverage     int     `json:"default_leverage"`
}

// MarketContext is everything one decision cycle shows the model.
// Markets keeps the configured coin order; coins without data are absent.
type MarketContext struct {
	Timestamp  time.Time        `json:"timestamp"`
	Portfolio  Portfolio        `json:"portfolio"`
	Sentiment  SentimentSummary `json:"sentiment"`
	News       NewsSummary      `json:"news"`
	Markets    []CoinMarket     `json:"market"`
	RiskParams RiskParams       `json:"risk_params"`
}

// Market returns the block for coin, if present.
func (c MarketContext) Market(coin string) (CoinMarket, bool) {
	for _, m := range c.Markets {
		if m.Coin == coin {
			return m, true
		}
	}
	return CoinMarket{}, false
}
