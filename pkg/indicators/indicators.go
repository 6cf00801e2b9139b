// Package indicators computes technical indicator series (EMA, MACD, RSI, ATR, Bollinger bands)
// on top of cinar/indicator. Every series is returned oldest first and is shorter than
// its input by the indicator warmup.
package indicators

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/hlpilot/internal/domain"
)

// MinCandles is the shortest input that warms up every indicator (EMA50 being the longest).
const MinCandles = 50

// EMA calculates the exponential moving average for the given period.
func EMA(closes []float64, period int) ([]float64, error) {
	if err := need(len(closes), period, "EMA"); err != nil {
		return nil, err
	}
	ema := trend.NewEmaWithPeriod[float64](period)
	return helper.ChanToSlice(ema.Compute(helper.SliceToChan(closes))), nil
}

// MACD calculates the MACD(12,26,9) line and its signal line, aligned to the same length.
func MACD(closes []float64) (macdLine, signalLine []float64, err error) {
	if err := need(len(closes), 35, "MACD"); err != nil {
		return nil, nil, err
	}
	macd := trend.NewMacd[float64]()
	macdCh, signalCh := macd.Compute(helper.SliceToChan(closes))

	// both outputs must be drained concurrently or the indicator blocks
	done := make(chan []float64)
	go func() {
		done <- helper.ChanToSlice(signalCh)
	}()
	macdLine = helper.ChanToSlice(macdCh)
	signalLine = <-done

	n := min(len(macdLine), len(signalLine))
	return tail(macdLine, n), tail(signalLine, n), nil
}

// RSI calculates the relative strength index with Wilder smoothing.
func RSI(closes []float64, period int) ([]float64, error) {
	if err := need(len(closes), period+1, "RSI"); err != nil {
		return nil, err
	}
	rsi := momentum.NewRsiWithPeriod[float64](period)
	return helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes))), nil
}

// ATR calculates the average true range for the given period.
func ATR(highs, lows, closes []float64, period int) ([]float64, error) {
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, errors.New("ATR: highs, lows and closes differ in length")
	}
	if err := need(len(closes), period+1, "ATR"); err != nil {
		return nil, err
	}
	atr := volatility.NewAtrWithPeriod[float64](period)
	out := atr.Compute(helper.SliceToChan(highs), helper.SliceToChan(lows), helper.SliceToChan(closes))
	return helper.ChanToSlice(out), nil
}

// Band is one Bollinger reading.
type Band struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger calculates 20-period bands two standard deviations wide.
func Bollinger(closes []float64) ([]Band, error) {
	if err := need(len(closes), 20, "Bollinger"); err != nil {
		return nil, err
	}
	bb := volatility.NewBollingerBands[float64]()
	upperCh, middleCh, lowerCh := bb.Compute(helper.SliceToChan(closes))

	middleDone := make(chan []float64)
	lowerDone := make(chan []float64)
	go func() { middleDone <- helper.ChanToSlice(middleCh) }()
	go func() { lowerDone <- helper.ChanToSlice(lowerCh) }()
	upper := helper.ChanToSlice(upperCh)
	middle := <-middleDone
	lower := <-lowerDone

	n := min(len(upper), len(middle), len(lower))
	upper, middle, lower = tail(upper, n), tail(middle, n), tail(lower, n)

	bands := make([]Band, n)
	for i := range bands {
		hi, lo := upper[i], lower[i]
		if lo > hi {
			hi, lo = lo, hi
		}
		bands[i] = Band{Upper: hi, Middle: middle[i], Lower: lo}
	}
	return bands, nil
}

// Last returns the newest value of a series.
func Last[T any](series []T) (T, bool) {
	var zero T
	if len(series) == 0 {
		return zero, false
	}
	return series[len(series)-1], true
}

func need(have, want int, name string) error {
	if have < want {
		return errors.Wrapf(domain.ErrInsufficientData, "%s needs %d points, got %d", name, want, have)
	}
	return nil
}

func tail[T any](s []T, n int) []T {
	return s[len(s)-n:]
}
