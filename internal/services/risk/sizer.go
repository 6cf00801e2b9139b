// Package risk converts a trading decision and account balance into a bounded order size.
package risk

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/hlpilot/internal/domain"
)

const defaultSizePrecision int32 = 4

var hundred = decimal.NewFromInt(100)

// Limits are the sizing parameters taken from configuration.
type Limits struct {
	MaxPositionSizePct float64
	DefaultSizePct     float64
	DefaultLeverage    int
	// SizePrecision maps coin to the number of decimals of its base-unit size.
	// Coins not listed use 4.
	SizePrecision map[string]int
}

// Sizer computes entry orders. It never sizes above MaxPositionSizePct of available balance.
type Sizer struct {
	limits Limits
}

// NewSizer creates a sizer.
func NewSizer(limits Limits) *Sizer {
	if limits.DefaultSizePct <= 0 {
		limits.DefaultSizePct = domain.DefaultSizePct
	}
	if limits.DefaultLeverage < 1 {
		limits.DefaultLeverage = 1
	}
	return &Sizer{limits: limits}
}

// Size builds the entry order for an opening decision.
//
//	effective = min(size_pct or default, max_position_size_pct)
//	size_usd  = available * effective / 100
//	size      = size_usd * leverage / price, rounded to the coin precision
func (s *Sizer) Size(d domain.TradingDecision, available, price decimal.Decimal) (domain.SizedOrder, error) {
	if !d.Action.IsOpen() {
		return domain.SizedOrder{}, errors.Errorf("cannot size %s decision", d.Action)
	}
	if !price.IsPositive() {
		return domain.SizedOrder{}, errors.Wrapf(domain.ErrPriceUnavailable, "%s price %s", d.Coin, price)
	}

	pct := s.EffectiveSizePct(d)
	sizeUSD := available.Mul(pct).Div(hundred)
	if sizeUSD.IsNegative() {
		sizeUSD = decimal.Zero
	}

	lev := s.Leverage(d)
	size := sizeUSD.Mul(decimal.NewFromInt(int64(lev))).Div(price).Round(s.precision(d.Coin))
	if !size.IsPositive() {
		return domain.SizedOrder{}, errors.Errorf("order size for %s rounds to zero (size_usd %s, price %s)",
			d.Coin, sizeUSD.StringFixed(2), price)
	}

	return domain.SizedOrder{
		Coin:     d.Coin,
		IsBuy:    d.Action == domain.ActionOpenLong,
		Size:     size,
		Leverage: lev,
		SizeUSD:  sizeUSD.Round(2),
		SizePct:  pct,
		Price:    price,
	}, nil
}

// EffectiveSizePct returns the requested percentage capped by the configured maximum.
func (s *Sizer) EffectiveSizePct(d domain.TradingDecision) decimal.Decimal {
	pct := decimal.NewFromFloat(s.limits.DefaultSizePct)
	if d.SizePct != nil {
		pct = decimal.NewFromFloat(*d.SizePct)
	}
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	return decimal.Min(pct, decimal.NewFromFloat(s.limits.MaxPositionSizePct))
}

// Leverage returns the decision's leverage, or the default when it is missing or below 1.
func (s *Sizer) Leverage(d domain.TradingDecision) int {
	if d.Leverage != nil && *d.Leverage >= 1 {
		return *d.Leverage
	}
	return s.limits.DefaultLeverage
}

func (s *Sizer) precision(coin string) int32 {
	if p, ok := s.limits.SizePrecision[coin]; ok {
		return int32(p)
	}
	return defaultSizePrecision
}
