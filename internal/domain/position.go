package domain

import "github.com/shopspring/decimal"

// PositionSide is the direction of open exposure.
type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// Opposite returns the other side.
func (s PositionSide) Opposite() PositionSide {
	if s == PositionSideLong {
		return PositionSideShort
	}
	return PositionSideLong
}

// SideForAction maps an opening action onto the side it creates.
func SideForAction(a Action) PositionSide {
	if a == ActionOpenShort {
		return PositionSideShort
	}
	return PositionSideLong
}

// Position is exchange-reported open exposure. Size is signed; its sign is the direction.
type Position struct {
	Coin          string
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	UnrealizedPnl decimal.Decimal
	Leverage      int
}

// Side derives the direction from the signed size.
func (p Position) Side() PositionSide {
	if p.Size.IsNegative() {
		return PositionSideShort
	}
	return PositionSideLong
}

// AbsSize returns the unsigned position size in base units.
func (p Position) AbsSize() decimal.Decimal {
	return p.Size.Abs()
}

// Notional returns |size| * entry price.
func (p Position) Notional() decimal.Decimal {
	return p.Size.Abs().Mul(p.EntryPrice)
}

// FindPosition returns the open position for coin, if any.
func FindPosition(positions []Position, coin string) (Position, bool) {
	for _, p := range positions {
		if p.Coin == coin && !p.Size.IsZero() {
			return p, true
		}
	}
	return Position{}, false
}

// Balance is the account margin summary.
type Balance struct {
	// Total is the account value in USD.
	Total decimal.Decimal
	// Available is the withdrawable amount in USD.
	Available decimal.Decimal
}
