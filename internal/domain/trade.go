package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeResult is the lifecycle outcome of a trade record.
type TradeResult string

const (
	TradeResultOpen      TradeResult = "OPEN"
	TradeResultWin       TradeResult = "WIN"
	TradeResultLoss      TradeResult = "LOSS"
	TradeResultBreakeven TradeResult = "BREAKEVEN"
)

// ExitReason explains why a trade was closed.
type ExitReason string

const (
	ExitTakeProfit  ExitReason = "TAKE_PROFIT"
	ExitStopLoss    ExitReason = "STOP_LOSS"
	ExitManual      ExitReason = "MANUAL"
	ExitSignal      ExitReason = "SIGNAL"
	ExitLiquidation ExitReason = "LIQUIDATION"
)

// ParseExitReason accepts both the long names and the short TP/SL codes.
// Anything unrecognised is treated as a manual exit.
func ParseExitReason(s string) ExitReason {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TP", string(ExitTakeProfit):
		return ExitTakeProfit
	case "SL", string(ExitStopLoss):
		return ExitStopLoss
	case string(ExitSignal):
		return ExitSignal
	case string(ExitLiquidation):
		return ExitLiquidation
	default:
		return ExitManual
	}
}

// TradeOpen holds the entry fields of a new trade record.
type TradeOpen struct {
	Coin       string
	Direction  PositionSide
	EntryPrice decimal.Decimal
	Size       decimal.Decimal
	SizeUSD    decimal.Decimal
	Leverage   int
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	DecisionID *uint
}

// TradeRecord is a persisted trade.
type TradeRecord struct {
	ID         uint
	Coin       string
	Direction  PositionSide
	EntryPrice decimal.Decimal
	ExitPrice  *decimal.Decimal
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	Size       decimal.Decimal
	SizeUSD    decimal.Decimal
	Leverage   int
	PnLUSD     *decimal.Decimal
	PnLPct     *decimal.Decimal
	Result     TradeResult
	ExitReason *ExitReason
	OpenedAt   time.Time
	ClosedAt   *time.Time
}

// IsOpen reports whether the trade has not been closed yet.
func (t TradeRecord) IsOpen() bool {
	return t.Result == TradeResultOpen
}

// CloseOutcome is the realised PnL of a closed trade.
type CloseOutcome struct {
	PnLPct decimal.Decimal
	PnLUSD decimal.Decimal
	Result TradeResult
}

var hundred = decimal.NewFromInt(100)

// ComputeClose derives the leveraged PnL of a trade closed at exitPrice.
// pnl_pct = (exit-entry)/entry*100*leverage, sign flipped for shorts;
// pnl_usd = pnl_pct/100*size_usd. Both are rounded to 2 decimals.
func ComputeClose(direction PositionSide, entry, exit decimal.Decimal, leverage int, sizeUSD decimal.Decimal) CloseOutcome {
	if entry.IsZero() {
		return CloseOutcome{Result: TradeResultBreakeven}
	}
	move := exit.Sub(entry)
	if direction == PositionSideShort {
		move = entry.Sub(exit)
	}
	pnlPct := move.Div(entry).Mul(hundred).Mul(decimal.NewFromInt(int64(leverage)))
	pnlUSD := pnlPct.Div(hundred).Mul(sizeUSD)

	result := TradeResultBreakeven
	switch {
	case pnlUSD.IsPositive():
		result = TradeResultWin
	case pnlUSD.IsNegative():
		result = TradeResultLoss
	}

	return CloseOutcome{
		PnLPct: pnlPct.Round(2),
		PnLUSD: pnlUSD.Round(2),
		Result: result,
	}
}

// InferExitReason guesses why a position disappeared, given the last known
// price and the protective levels that were placed with it.
func InferExitReason(direction PositionSide, price decimal.Decimal, stopLoss, takeProfit *decimal.Decimal) ExitReason {
	if direction == PositionSideLong {
		if stopLoss != nil && price.LessThanOrEqual(*stopLoss) {
			return ExitStopLoss
		}
		if takeProfit != nil && price.GreaterThanOrEqual(*takeProfit) {
			return ExitTakeProfit
		}
		return ExitManual
	}
	if stopLoss != nil && price.GreaterThanOrEqual(*stopLoss) {
		return ExitStopLoss
	}
	if takeProfit != nil && price.LessThanOrEqual(*takeProfit) {
		return ExitTakeProfit
	}
	return ExitManual
}

// TradeStats summarises closed trades.
type TradeStats struct {
	TotalTrades int             `json:"total_trades"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	WinRate     decimal.Decimal `json:"win_rate"`
	TotalPnLUSD decimal.Decimal `json:"total_pnl_usd"`
}
