package domain

// Signal is a qualitative label attached to an indicator or to sentiment.
type Signal string

const (
	SignalBullish    Signal = "BULLISH"
	SignalBearish    Signal = "BEARISH"
	SignalNeutral    Signal = "NEUTRAL"
	SignalOverbought Signal = "OVERBOUGHT"
	SignalOversold   Signal = "OVERSOLD"
)

// Volatility buckets ATR as a percentage of price.
type Volatility string

const (
	VolatilityHigh   Volatility = "HIGH"
	VolatilityMedium Volatility = "MEDIUM"
	VolatilityLow    Volatility = "LOW"
)

// PivotPosition locates price relative to the classic daily pivots.
type PivotPosition string

const (
	PivotAboveR1    PivotPosition = "ABOVE_R1"
	PivotBetweenPR1 PivotPosition = "BETWEEN_P_R1"
	PivotBetweenS1P PivotPosition = "BETWEEN_S1_P"
	PivotBelowS1    PivotPosition = "BELOW_S1"
)

// RSIReport is the latest RSI(14) reading.
type RSIReport struct {
	Value  float64 `json:"value"`
	Signal Signal  `json:"signal"`
}

// MACDReport is the latest MACD(12,26,9) reading. Trend is never neutral.
type MACDReport struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
	Trend     Signal  `json:"trend"`
}

// BollingerReport is the latest Bollinger(20, 2) reading.
// Position is 0 at the lower band and 1 at the upper band; it is not clamped.
type BollingerReport struct {
	Upper    float64 `json:"upper"`
	Middle   float64 `json:"middle"`
	Lower    float64 `json:"lower"`
	Position float64 `json:"position"`
}

// EMAReport holds EMA20/EMA50 and the trend they describe together with price.
type EMAReport struct {
	EMA20 float64 `json:"ema_20"`
	EMA50 float64 `json:"ema_50"`
	Trend Signal  `json:"trend"`
}

// ATRReport is the latest ATR(14) and its size relative to price.
type ATRReport struct {
	Value      float64    `json:"value"`
	Percent    float64    `json:"percent"`
	Volatility Volatility `json:"volatility"`
}

// PivotReport holds classic pivots of the prior completed daily candle.
type PivotReport struct {
	Pivot    float64       `json:"pivot"`
	R1       float64       `json:"r1"`
	R2       float64       `json:"r2"`
	S1       float64       `json:"s1"`
	S2       float64       `json:"s2"`
	Position PivotPosition `json:"position"`
}

// IndicatorReport is the indicator engine output for one coin.
type IndicatorReport struct {
	Coin      string          `json:"coin"`
	Interval  string          `json:"interval"`
	Price     float64         `json:"price"`
	RSI       RSIReport       `json:"rsi"`
	MACD      MACDReport      `json:"macd"`
	Bollinger BollingerReport `json:"bollinger"`
	EMA       EMAReport       `json:"ema"`
	ATR       ATRReport       `json:"atr"`
	Pivots    *PivotReport    `json:"pivots,omitempty"`
	Trend     Signal          `json:"trend"`
}
