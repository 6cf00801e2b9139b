package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/hlpilot/internal"
	"github.com/vadiminshakov/hlpilot/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"})
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F5F"})
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
)

// RenderDecision formats a decision for the confirmation prompt.
func RenderDecision(d domain.TradingDecision) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(string(d.Action)))
	if d.Coin != "" {
		sb.WriteString(" " + d.Coin)
	}
	fmt.Fprintf(&sb, "\nconfidence: %.2f", d.Confidence)
	if d.SizePct != nil {
		fmt.Fprintf(&sb, "\nsize: %g%%", *d.SizePct)
	}
	if d.Leverage != nil {
		fmt.Fprintf(&sb, "\nleverage: %dx", *d.Leverage)
	}
	if d.Action.IsOpen() {
		fmt.Fprintf(&sb, "\nSL/TP: %g%% / %g%%", d.StopLossOrDefault(), d.TakeProfitOrDefault())
	}
	sb.WriteString("\n" + mutedStyle.Render(d.Reasoning))
	return boxStyle.Render(sb.String())
}

// RenderCycle summarises one run-once cycle.
func RenderCycle(r internal.CycleReport) string {
	lines := []string{RenderDecision(r.Decision)}
	switch {
	case !r.Valid && r.Raw != "":
		lines = append(lines, badStyle.Render("model response rejected: "+r.Reason))
	case r.AnalysisOnly && r.Decision.Action != domain.ActionHold:
		lines = append(lines, mutedStyle.Render("analysis-only mode: not executed"))
	case r.Declined:
		lines = append(lines, mutedStyle.Render("skipped"))
	}
	if r.Result != nil {
		lines = append(lines, renderResult(*r.Result))
	}
	return strings.Join(lines, "\n")
}

// RenderStatus formats the status command output.
func RenderStatus(s internal.StatusReport) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("ACCOUNT"))
	if s.ReadOnly {
		sb.WriteString(mutedStyle.Render("  (not configured)"))
	}
	fmt.Fprintf(&sb, "\nbalance:   $%s\navailable: $%s\n", usd(s.Balance.Total), usd(s.Balance.Available))

	sb.WriteString("\n" + titleStyle.Render("POSITIONS") + "\n")
	if len(s.Positions) == 0 {
		sb.WriteString(mutedStyle.Render("none") + "\n")
	}
	for _, p := range s.Positions {
		fmt.Fprintf(&sb, "%-6s %-5s size %s @ $%s  pnl %s\n",
			p.Coin, p.Side(), p.AbsSize().String(), usd(p.EntryPrice), signed(p.UnrealizedPnl))
	}

	sb.WriteString("\n" + titleStyle.Render("OPEN TRADES") + "\n")
	if len(s.OpenTrades) == 0 {
		sb.WriteString(mutedStyle.Render("none") + "\n")
	}
	for _, t := range s.OpenTrades {
		fmt.Fprintf(&sb, "#%d %-6s %-5s $%s @ $%s  %dx  SL %s  TP %s\n",
			t.ID, t.Coin, t.Direction, usd(t.SizeUSD), usd(t.EntryPrice), t.Leverage, optional(t.StopLoss), optional(t.TakeProfit))
	}

	st := s.Stats
	sb.WriteString("\n" + titleStyle.Render("PERFORMANCE") + "\n")
	fmt.Fprintf(&sb, "trades: %d  wins: %d  losses: %d  win rate: %s%%  pnl: %s",
		st.TotalTrades, st.Wins, st.Losses, st.WinRate.String(), signed(st.TotalPnLUSD))

	return boxStyle.Render(sb.String())
}

// RenderCloseAll lists the outcome of each close.
func RenderCloseAll(results []domain.ExecutionResult) string {
	if len(results) == 0 {
		return mutedStyle.Render("no open positions")
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, renderResult(r))
	}
	return strings.Join(lines, "\n")
}

func renderResult(r domain.ExecutionResult) string {
	if !r.Executed() {
		msg := r.Error
		if msg == "" && r.Trade != nil {
			msg = r.Trade.Error
		}
		return badStyle.Render(fmt.Sprintf("✗ %s %s: %s", r.Action, r.Coin, msg))
	}

	line := goodStyle.Render(fmt.Sprintf("✓ %s %s %s @ $%s", r.Action, r.Coin, r.Trade.Size.String(), usd(r.Trade.Price)))
	if r.Action.IsOpen() {
		line += "\n  " + legLine("stop loss", r.StopLoss, r.StopPrice)
		line += "\n  " + legLine("take profit", r.TakeProfit, r.TargetPrice)
	}
	return line
}

func legLine(name string, leg *domain.LegResult, price decimal.Decimal) string {
	if leg == nil {
		return mutedStyle.Render(name + ": not placed")
	}
	if !leg.Success {
		return badStyle.Render(fmt.Sprintf("%s @ $%s failed: %s", name, usd(price), leg.Error))
	}
	return goodStyle.Render(fmt.Sprintf("%s @ $%s", name, usd(price)))
}

func usd(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func signed(d decimal.Decimal) string {
	s := "$" + d.Abs().StringFixed(2)
	if d.IsNegative() {
		return badStyle.Render("-" + s)
	}
	return goodStyle.Render("+" + s)
}

func optional(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return "$" + usd(*d)
}
