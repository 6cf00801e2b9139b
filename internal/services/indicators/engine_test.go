package indicators

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/hlpilot/internal/domain"
	"go.uber.org/zap"
)

func risingCandles(n int) []domain.MarketCandle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.MarketCandle, n)
	for i := range out {
		c := decimal.NewFromInt(int64(100 + i))
		out[i] = domain.MarketCandle{
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c.Add(decimal.NewFromInt(1)),
			Low:       c.Sub(decimal.NewFromInt(1)),
			Close:     c,
			Volume:    decimal.NewFromInt(10),
			CloseTime: start.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return out
}

func dailyCandle(h, l, c int64) domain.MarketCandle {
	return domain.MarketCandle{
		High:  decimal.NewFromInt(h),
		Low:   decimal.NewFromInt(l),
		Close: decimal.NewFromInt(c),
	}
}

func TestCompute_Errors(t *testing.T) {
	_, err := Compute("BTC", "1h", nil, nil)
	assert.ErrorIs(t, err, domain.ErrNoData)

	_, err = Compute("BTC", "1h", risingCandles(49), nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestCompute_RisingMarket(t *testing.T) {
	candles := risingCandles(100)
	daily := []domain.MarketCandle{dailyCandle(150, 130, 140), dailyCandle(200, 100, 199)}

	report, err := Compute("BTC", "1h", candles, daily)
	require.NoError(t, err)

	assert.Equal(t, "BTC", report.Coin)
	assert.Equal(t, 199.0, report.Price)
	assert.Equal(t, domain.SignalOverbought, report.RSI.Signal)
	assert.Equal(t, domain.SignalBullish, report.EMA.Trend)
	assert.Less(t, report.EMA.EMA50, report.EMA.EMA20)
	assert.InDelta(t, 2.0, report.ATR.Value, 0.01)
	assert.Equal(t, domain.VolatilityLow, report.ATR.Volatility)
	assert.Greater(t, report.Bollinger.Position, 0.5)
	assert.Greater(t, report.Bollinger.Upper, report.Bollinger.Lower)

	// pivots come from the prior completed day, not the current one
	require.NotNil(t, report.Pivots)
	assert.Equal(t, 140.0, report.Pivots.Pivot)
	assert.Equal(t, domain.PivotAboveR1, report.Pivots.Position)
}

func TestCompute_NoDailyCandles(t *testing.T) {
	report, err := Compute("ETH", "1h", risingCandles(60), nil)
	require.NoError(t, err)
	assert.Nil(t, report.Pivots)
}

func TestPivots(t *testing.T) {
	day := dailyCandle(110, 90, 100)

	tests := []struct {
		name     string
		price    float64
		expected domain.PivotPosition
	}{
		{name: "above r1", price: 111, expected: domain.PivotAboveR1},
		{name: "at r1 is below it", price: 110, expected: domain.PivotBetweenPR1},
		{name: "between p and r1", price: 105, expected: domain.PivotBetweenPR1},
		{name: "at pivot", price: 100, expected: domain.PivotBetweenS1P},
		{name: "below s1", price: 85, expected: domain.PivotBelowS1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Pivots(day, tt.price)
			assert.Equal(t, 100.0, p.Pivot)
			assert.Equal(t, 110.0, p.R1)
			assert.Equal(t, 90.0, p.S1)
			assert.Equal(t, 120.0, p.R2)
			assert.Equal(t, 80.0, p.S2)
			assert.Equal(t, tt.expected, p.Position)
		})
	}
}

func TestRSISignal(t *testing.T) {
	tests := []struct {
		value    float64
		expected domain.Signal
	}{
		{75, domain.SignalOverbought},
		{70, domain.SignalOverbought},
		{65, domain.SignalBullish},
		{60, domain.SignalBullish},
		{50, domain.SignalNeutral},
		{40, domain.SignalBearish},
		{30, domain.SignalOversold},
		{10, domain.SignalOversold},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, rsiSignal(tt.value), "rsi %v", tt.value)
	}
}

func TestCompositeTrend(t *testing.T) {
	tests := []struct {
		name     string
		rsi      domain.Signal
		macd     domain.Signal
		ema      domain.Signal
		expected domain.Signal
	}{
		{"all bullish", domain.SignalBullish, domain.SignalBullish, domain.SignalBullish, domain.SignalBullish},
		{"oversold counts as bull", domain.SignalOversold, domain.SignalBullish, domain.SignalNeutral, domain.SignalBullish},
		{"overbought counts as bear", domain.SignalOverbought, domain.SignalBearish, domain.SignalNeutral, domain.SignalBearish},
		{"tie is neutral", domain.SignalNeutral, domain.SignalBullish, domain.SignalBearish, domain.SignalNeutral},
		{"macd always votes", domain.SignalNeutral, domain.SignalBearish, domain.SignalNeutral, domain.SignalBearish},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompositeTrend(tt.rsi, tt.macd, tt.ema))
		})
	}
}

func TestBandPositionAndVolatility(t *testing.T) {
	assert.Equal(t, 0.5, bandPosition(100, 100, 100))
	assert.Equal(t, 0.25, bandPosition(95, 110, 90))
	assert.Equal(t, 1.5, bandPosition(120, 110, 90))

	assert.Equal(t, domain.VolatilityHigh, volatilityBucket(3.1))
	assert.Equal(t, domain.VolatilityMedium, volatilityBucket(3))
	assert.Equal(t, domain.VolatilityLow, volatilityBucket(1.5))
}

type fakeKlines struct {
	candles map[string][]domain.MarketCandle
	err     map[string]error
}

func (f *fakeKlines) GetKlines(_ context.Context, _ string, interval string, _ int) ([]domain.MarketCandle, error) {
	if err := f.err[interval]; err != nil {
		return nil, err
	}
	return f.candles[interval], nil
}

func TestEngine_Analyze(t *testing.T) {
	t.Run("daily failure only drops pivots", func(t *testing.T) {
		klines := &fakeKlines{
			candles: map[string][]domain.MarketCandle{"1h": risingCandles(100)},
			err:     map[string]error{"1d": errors.New("timeout")},
		}
		report, err := NewEngine(klines, "1h", 100, zap.NewNop()).Analyze(context.Background(), "BTC")
		require.NoError(t, err)
		assert.Nil(t, report.Pivots)
	})

	t.Run("kline failure is returned", func(t *testing.T) {
		klines := &fakeKlines{err: map[string]error{"1h": errors.New("boom")}}
		_, err := NewEngine(klines, "1h", 100, nil).Analyze(context.Background(), "BTC")
		assert.Error(t, err)
	})
}
