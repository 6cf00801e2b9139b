package cli

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vadiminshakov/hlpilot/config"
	"github.com/vadiminshakov/hlpilot/internal"
	"github.com/vadiminshakov/hlpilot/internal/domain"
)

func TestRenderDecision(t *testing.T) {
	size := 5.0
	lev := 3
	out := RenderDecision(domain.TradingDecision{
		Action:     domain.ActionOpenLong,
		Coin:       "BTC",
		Confidence: 0.72,
		SizePct:    &size,
		Leverage:   &lev,
		Reasoning:  "breakout above R1",
	})

	assert.Contains(t, out, "OPEN_LONG")
	assert.Contains(t, out, "BTC")
	assert.Contains(t, out, "confidence: 0.72")
	assert.Contains(t, out, "size: 5%")
	assert.Contains(t, out, "leverage: 3x")
	assert.Contains(t, out, "SL/TP: 3% / 6%")
	assert.Contains(t, out, "breakout above R1")
}

func TestRenderCycle(t *testing.T) {
	res := domain.ExecutionResult{
		Action:      domain.ActionOpenShort,
		Coin:        "ETH",
		Trade:       &domain.LegResult{Success: true, Price: decimal.NewFromInt(3000), Size: decimal.RequireFromString("0.5")},
		StopLoss:    &domain.LegResult{Error: "trigger rejected"},
		TakeProfit:  &domain.LegResult{Success: true},
		StopPrice:   decimal.NewFromInt(3090),
		TargetPrice: decimal.NewFromInt(2820),
	}
	out := RenderCycle(internal.CycleReport{
		Decision: domain.TradingDecision{Action: domain.ActionOpenShort, Coin: "ETH"},
		Valid:    true,
		Result:   &res,
	})

	assert.Contains(t, out, "OPEN_SHORT ETH 0.5 @ $3000.00")
	assert.Contains(t, out, "stop loss @ $3090.00 failed: trigger rejected")
	assert.Contains(t, out, "take profit @ $2820.00")
}

func TestRenderStatus(t *testing.T) {
	out := RenderStatus(internal.StatusReport{
		Balance: domain.Balance{Total: decimal.NewFromInt(10250), Available: decimal.NewFromInt(9000)},
		Positions: []domain.Position{
			{Coin: "BTC", Size: decimal.RequireFromString("-0.01"), EntryPrice: decimal.NewFromInt(50000), UnrealizedPnl: decimal.NewFromInt(-12)},
		},
		Stats: domain.TradeStats{TotalTrades: 4, Wins: 3, Losses: 1, WinRate: decimal.NewFromInt(75), TotalPnLUSD: decimal.NewFromInt(250)},
	})

	assert.Contains(t, out, "balance:   $10250.00")
	assert.Contains(t, out, "SHORT")
	assert.Contains(t, out, "-$12.00")
	assert.Contains(t, out, "win rate: 75%")
	assert.Contains(t, out, "+$250.00")
}

func TestRenderCloseAll(t *testing.T) {
	assert.Contains(t, RenderCloseAll(nil), "no open positions")

	out := RenderCloseAll([]domain.ExecutionResult{
		{Action: domain.ActionClose, Coin: "SOL", Error: "No open position for SOL"},
	})
	assert.Contains(t, out, "✗ CLOSE SOL: No open position for SOL")
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(config.LogConfig{Level: "info"}, "debug")
	assert.NoError(t, err)

	_, err = newLogger(config.LogConfig{Level: "loud"}, "")
	assert.Error(t, err)
}
