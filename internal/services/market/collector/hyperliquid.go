// Package collector fetches candlestick data from Hyperliquid.
package collector

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/hlpilot/internal/clients"
	"github.com/vadiminshakov/hlpilot/internal/domain"
)

type candleSource interface {
	CandleSnapshot(ctx context.Context, coin, interval string, startMs, endMs int64) ([]clients.Candle, error)
}

// HyperliquidKlineProvider reads candles from the Hyperliquid info API.
type HyperliquidKlineProvider struct {
	info candleSource
	now  func() time.Time
}

// NewHyperliquidKlineProvider creates a kline provider.
func NewHyperliquidKlineProvider(info candleSource) *HyperliquidKlineProvider {
	return &HyperliquidKlineProvider{info: info, now: time.Now}
}

// ParseInterval converts an interval such as "15m", "1h" or "1d" to a duration.
func ParseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, errors.Errorf("invalid interval %q", interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, errors.Errorf("invalid interval number %q", interval)
	}
	switch interval[len(interval)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, errors.Errorf("unsupported interval unit in %q", interval)
	}
}

// GetKlines returns at most limit candles of coin, oldest first. The newest candle
// may still be forming.
func (p *HyperliquidKlineProvider) GetKlines(ctx context.Context, coin, interval string, limit int) ([]domain.MarketCandle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	dur, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	coin = strings.ToUpper(coin)
	endMs := p.now().UnixMilli()
	// two extra candles of slack for boundary rounding
	startMs := endMs - (int64(limit)+2)*dur.Milliseconds()

	candles, err := p.info.CandleSnapshot(ctx, coin, interval, startMs, endMs)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, errors.Wrapf(domain.ErrNoData, "%s %s", coin, interval)
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	out := make([]domain.MarketCandle, 0, len(candles))
	for i, c := range candles {
		mc, err := toMarketCandle(c)
		if err != nil {
			return nil, errors.Wrapf(err, "candle %d of %s", i, coin)
		}
		out = append(out, mc)
	}
	return out, nil
}

func toMarketCandle(c clients.Candle) (domain.MarketCandle, error) {
	fields := [5]string{c.Open, c.High, c.Low, c.Close, c.Volume}
	var parsed [5]decimal.Decimal
	for i, f := range fields {
		d, err := decimal.NewFromString(f)
		if err != nil {
			return domain.MarketCandle{}, errors.Wrapf(err, "parse %q", f)
		}
		parsed[i] = d
	}
	return domain.MarketCandle{
		OpenTime:  time.UnixMilli(c.OpenTime),
		Open:      parsed[0],
		High:      parsed[1],
		Low:       parsed[2],
		Close:     parsed[3],
		Volume:    parsed[4],
		CloseTime: time.UnixMilli(c.CloseTime),
	}, nil
}
