// Package indicators turns candles into the per-coin indicator report used by the prompt.
package indicators

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/hlpilot/internal/domain"
	ta "github.com/vadiminshakov/hlpilot/pkg/indicators"
	"go.uber.org/zap"
)

const (
	rsiPeriod = 14
	atrPeriod = 14

	dailyInterval = "1d"
	dailyLimit    = 2
)

type klineProvider interface {
	GetKlines(ctx context.Context, coin, interval string, limit int) ([]domain.MarketCandle, error)
}

// Engine fetches candles for a coin and computes its indicator report.
type Engine struct {
	klines   klineProvider
	interval string
	lookback int
	logger   *zap.Logger
}

// NewEngine creates an engine reading `lookback` candles of `interval`.
func NewEngine(klines klineProvider, interval string, lookback int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{klines: klines, interval: interval, lookback: lookback, logger: logger}
}

// Analyze returns the report for coin. ErrNoData and ErrInsufficientData mean the
// coin should be left out of the context.
func (e *Engine) Analyze(ctx context.Context, coin string) (domain.IndicatorReport, error) {
	candles, err := e.klines.GetKlines(ctx, coin, e.interval, e.lookback)
	if err != nil {
		return domain.IndicatorReport{}, errors.Wrapf(err, "get %s klines for %s", e.interval, coin)
	}

	daily, err := e.klines.GetKlines(ctx, coin, dailyInterval, dailyLimit)
	if err != nil {
		// pivots are optional
		e.logger.Warn("daily candles unavailable, skipping pivots", zap.String("coin", coin), zap.Error(err))
		daily = nil
	}

	return Compute(coin, e.interval, candles, daily)
}

// Compute builds an indicator report from candles (oldest first). daily may be
// empty, in which case pivots are omitted.
func Compute(coin, interval string, candles, daily []domain.MarketCandle) (domain.IndicatorReport, error) {
	if len(candles) == 0 {
		return domain.IndicatorReport{}, errors.Wrapf(domain.ErrNoData, "no candles for %s", coin)
	}
	if len(candles) < ta.MinCandles {
		return domain.IndicatorReport{}, errors.Wrapf(domain.ErrInsufficientData,
			"%s: need %d candles, got %d", coin, ta.MinCandles, len(candles))
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
		closes[i] = c.Close.InexactFloat64()
	}
	price := closes[len(closes)-1]

	report := domain.IndicatorReport{Coin: coin, Interval: interval, Price: price}

	rsi, err := lastOf(ta.RSI(closes, rsiPeriod))
	if err != nil {
		return domain.IndicatorReport{}, errors.Wrap(err, "rsi")
	}
	report.RSI = domain.RSIReport{Value: round2(rsi), Signal: rsiSignal(rsi)}

	macdLine, signalLine, err := ta.MACD(closes)
	if err != nil {
		return domain.IndicatorReport{}, errors.Wrap(err, "macd")
	}
	macd, okM := ta.Last(macdLine)
	signal, okS := ta.Last(signalLine)
	if !okM || !okS {
		return domain.IndicatorReport{}, errors.Wrap(domain.ErrInsufficientData, "macd")
	}
	report.MACD = domain.MACDReport{
		MACD:      round2(macd),
		Signal:    round2(signal),
		Histogram: round2(macd - signal),
		Trend:     macdTrend(macd, signal),
	}

	bands, err := ta.Bollinger(closes)
	if err != nil {
		return domain.IndicatorReport{}, errors.Wrap(err, "bollinger")
	}
	band, ok := ta.Last(bands)
	if !ok {
		return domain.IndicatorReport{}, errors.Wrap(domain.ErrInsufficientData, "bollinger")
	}
	report.Bollinger = domain.BollingerReport{
		Upper:    round2(band.Upper),
		Middle:   round2(band.Middle),
		Lower:    round2(band.Lower),
		Position: round2(bandPosition(price, band.Upper, band.Lower)),
	}

	ema20, err := lastOf(ta.EMA(closes, 20))
	if err != nil {
		return domain.IndicatorReport{}, errors.Wrap(err, "ema20")
	}
	ema50, err := lastOf(ta.EMA(closes, 50))
	if err != nil {
		return domain.IndicatorReport{}, errors.Wrap(err, "ema50")
	}
	report.EMA = domain.EMAReport{EMA20: round2(ema20), EMA50: round2(ema50), Trend: emaTrend(price, ema20, ema50)}

	atr, err := lastOf(ta.ATR(highs, lows, closes, atrPeriod))
	if err != nil {
		return domain.IndicatorReport{}, errors.Wrap(err, "atr")
	}
	atrPct := 0.0
	if price > 0 {
		atrPct = atr / price * 100
	}
	report.ATR = domain.ATRReport{Value: round2(atr), Percent: round2(atrPct), Volatility: volatilityBucket(atrPct)}

	if len(daily) > 0 {
		prior := daily[len(daily)-1]
		if len(daily) > 1 {
			prior = daily[len(daily)-2]
		}
		p := Pivots(prior, price)
		report.Pivots = &p
	}

	report.Trend = CompositeTrend(report.RSI.Signal, report.MACD.Trend, report.EMA.Trend)
	return report, nil
}

// Pivots computes classic floor pivots from one daily candle and buckets price against them.
func Pivots(day domain.MarketCandle, price float64) domain.PivotReport {
	h := day.High.InexactFloat64()
	l := day.Low.InexactFloat64()
	c := day.Close.InexactFloat64()

	pivot := (h + l + c) / 3
	r1 := 2*pivot - l
	s1 := 2*pivot - h
	r2 := pivot + (h - l)
	s2 := pivot - (h - l)

	return domain.PivotReport{
		Pivot:    round2(pivot),
		R1:       round2(r1),
		R2:       round2(r2),
		S1:       round2(s1),
		S2:       round2(s2),
		Position: pivotPosition(price, pivot, r1, s1),
	}
}

// CompositeTrend is a majority vote of RSI, MACD and EMA. A tie is neutral.
func CompositeTrend(rsi, macd, ema domain.Signal) domain.Signal {
	var bull, bear int

	switch rsi {
	case domain.SignalBullish, domain.SignalOversold:
		bull++
	case domain.SignalBearish, domain.SignalOverbought:
		bear++
	}

	if macd == domain.SignalBullish {
		bull++
	} else {
		bear++
	}

	switch ema {
	case domain.SignalBullish:
		bull++
	case domain.SignalBearish:
		bear++
	}

	switch {
	case bull > bear:
		return domain.SignalBullish
	case bear > bull:
		return domain.SignalBearish
	default:
		return domain.SignalNeutral
	}
}

func rsiSignal(v float64) domain.Signal {
	switch {
	case v >= 70:
		return domain.SignalOverbought
	case v <= 30:
		return domain.SignalOversold
	case v >= 60:
		return domain.SignalBullish
	case v <= 40:
		return domain.SignalBearish
	default:
		return domain.SignalNeutral
	}
}

func macdTrend(macd, signal float64) domain.Signal {
	if macd > signal {
		return domain.SignalBullish
	}
	return domain.SignalBearish
}

func emaTrend(price, ema20, ema50 float64) domain.Signal {
	switch {
	case price > ema20 && ema20 > ema50:
		return domain.SignalBullish
	case price < ema20 && ema20 < ema50:
		return domain.SignalBearish
	default:
		return domain.SignalNeutral
	}
}

func bandPosition(price, upper, lower float64) float64 {
	width := upper - lower
	if width <= 0 {
		return 0.5
	}
	return (price - lower) / width
}

func volatilityBucket(atrPct float64) domain.Volatility {
	switch {
	case atrPct > 3:
		return domain.VolatilityHigh
	case atrPct > 1.5:
		return domain.VolatilityMedium
	default:
		return domain.VolatilityLow
	}
}

func pivotPosition(price, pivot, r1, s1 float64) domain.PivotPosition {
	switch {
	case price > r1:
		return domain.PivotAboveR1
	case price > pivot:
		return domain.PivotBetweenPR1
	case price > s1:
		return domain.PivotBetweenS1P
	default:
		return domain.PivotBelowS1
	}
}

func lastOf(series []float64, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	v, ok := ta.Last(series)
	if !ok {
		return 0, domain.ErrInsufficientData
	}
	return v, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
