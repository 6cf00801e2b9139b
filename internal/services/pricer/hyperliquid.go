package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/hlpilot/internal/domain"
)

type infoSource interface {
	AllMids(ctx context.Context) (map[string]string, error)
	FundingRates(ctx context.Context) (map[string]string, error)
}

// HyperliquidPricer fetches prices from the Hyperliquid public info API.
type HyperliquidPricer struct {
	info infoSource
}

func NewHyperliquidPricer(info infoSource) *HyperliquidPricer {
	return &HyperliquidPricer{info: info}
}

// GetPrice returns the mid price of coin. A missing or non-positive mid is ErrPriceUnavailable.
func (p *HyperliquidPricer) GetPrice(ctx context.Context, coin string) (decimal.Decimal, error) {
	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(domain.ErrPriceUnavailable, "%s: %v", coin, err)
	}
	return midOf(mids, coin)
}

// GetPrices returns mids for every coin in coins that has one.
func (p *HyperliquidPricer) GetPrices(ctx context.Context, coins []string) (map[string]decimal.Decimal, error) {
	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "all mids")
	}
	out := make(map[string]decimal.Decimal, len(coins))
	for _, coin := range coins {
		if px, err := midOf(mids, coin); err == nil {
			out[coin] = px
		}
	}
	return out, nil
}

// GetFundingRate returns the current hourly funding rate of coin.
func (p *HyperliquidPricer) GetFundingRate(ctx context.Context, coin string) (decimal.Decimal, error) {
	rates, err := p.info.FundingRates(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	raw, ok := rates[coin]
	if !ok || raw == "" {
		return decimal.Zero, errors.Errorf("no funding rate for %s", coin)
	}
	return decimal.NewFromString(raw)
}

func midOf(mids map[string]string, coin string) (decimal.Decimal, error) {
	raw, ok := mids[coin]
	if !ok || raw == "" {
		return decimal.Zero, errors.Wrapf(domain.ErrPriceUnavailable, "no mid for %s", coin)
	}
	px, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(domain.ErrPriceUnavailable, "parse mid %q for %s", raw, coin)
	}
	if !px.IsPositive() {
		return decimal.Zero, errors.Wrapf(domain.ErrPriceUnavailable, "%s mid is %s", coin, px)
	}
	return px, nil
}
