// Package promptbuilder renders the market context into the text the model reads.
// Section order is fixed: timestamp, portfolio, sentiment, news, per-coin market
// data, risk parameters. Downstream prompts and tests depend on it.
package promptbuilder

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vadiminshakov/hlpilot/internal/domain"
)

const (
	maxHeadlines = 5

	userPromptSuffix = "Based on the above market context, what is your trading decision?\nRespond ONLY with the JSON format specified."
)

// PromptBuilder constructs prompts for the LLM.
type PromptBuilder struct {
	coins  []string
	maxPct float64
	p      *message.Printer
	logger *zap.Logger
}

// NewPromptBuilder creates a builder for the configured coins.
func NewPromptBuilder(coins []string, maxPositionSizePct float64, logger *zap.Logger) *PromptBuilder {
	return &PromptBuilder{
		coins:  coins,
		maxPct: maxPositionSizePct,
		p:      message.NewPrinter(language.English),
		logger: logger,
	}
}

// SystemPrompt returns the system instructions.
func (pb *PromptBuilder) SystemPrompt() string {
	return SystemPrompt(pb.coins, pb.maxPct)
}

// BuildUserPrompt renders the context followed by the decision request.
func (pb *PromptBuilder) BuildUserPrompt(ctx domain.MarketContext) string {
	prompt := pb.Render(ctx) + "\n" + userPromptSuffix
	pb.logger.Debug("user prompt built", zap.Int("chars", len(prompt)), zap.Int("markets", len(ctx.Markets)))
	return prompt
}

// Render formats the market context.
func (pb *PromptBuilder) Render(ctx domain.MarketContext) string {
	var sb strings.Builder

	sb.WriteString("=== MARKET CONTEXT ===\n")
	sb.WriteString("Timestamp: " + ctx.Timestamp.UTC().Format(time.RFC3339) + "\n\n")

	pb.writePortfolio(&sb, ctx.Portfolio)
	pb.writeSentiment(&sb, ctx.Sentiment)
	pb.writeNews(&sb, ctx.News)

	sb.WriteString("\n=== MARKET DATA ===\n")
	for _, m := range ctx.Markets {
		pb.writeMarket(&sb, m)
	}

	pb.writeRisk(&sb, ctx.RiskParams)
	return sb.String()
}

func (pb *PromptBuilder) writePortfolio(sb *strings.Builder, p domain.Portfolio) {
	sb.WriteString("=== PORTFOLIO ===\n")
	sb.WriteString(pb.p.Sprintf("Balance: $%.2f\n", p.Balance.InexactFloat64()))
	sb.WriteString(pb.p.Sprintf("Available: $%.2f\n", p.Available.InexactFloat64()))
	sb.WriteString("Open Positions: " + strconv.Itoa(len(p.Positions)) + "\n")
	for _, pos := range p.Positions {
		sb.WriteString(pb.p.Sprintf("- %s %s %s @ $%.2f (uPnL: $%.2f, %dx)\n",
			pos.Coin, pos.Side(), pos.AbsSize().String(),
			pos.EntryPrice.InexactFloat64(), pos.UnrealizedPnl.InexactFloat64(), pos.Leverage))
	}
	sb.WriteString("Total Exposure: " + p.TotalExposurePct.String() + "%\n\n")
}

func (pb *PromptBuilder) writeSentiment(sb *strings.Builder, s domain.SentimentSummary) {
	value := "N/A"
	if s.FearGreed.Value != nil {
		value = strconv.Itoa(*s.FearGreed.Value)
	}
	sb.WriteString("=== SENTIMENT ===\n")
	sb.WriteString("Fear & Greed Index: " + value + " (" + s.FearGreed.Classification + ")\n")
	sb.WriteString("Signal: " + string(s.OverallSignal) + "\n")
	sb.WriteString("Bias: " + string(s.OverallBias) + "\n")
	sb.WriteString("Score: " + formatFloat(s.SentimentScore) + "\n\n")
}

func (pb *PromptBuilder) writeNews(sb *strings.Builder, n domain.NewsSummary) {
	signal := string(n.SentimentSummary)
	if signal == "" {
		signal = "N/A"
	}
	sb.WriteString("=== NEWS ===\n")
	sb.WriteString("News Sentiment: " + signal +
		" (Bullish: " + strconv.Itoa(n.BullishCount) +
		", Bearish: " + strconv.Itoa(n.BearishCount) + ")\n")
	sb.WriteString("Recent Headlines:\n")
	for i, h := range n.Headlines {
		if i == maxHeadlines {
			break
		}
		sb.WriteString("- " + h + "\n")
	}
}

func (pb *PromptBuilder) writeMarket(sb *strings.Builder, m domain.CoinMarket) {
	r := m.Report

	sb.WriteString("\n--- " + m.Coin + " ---\n")
	sb.WriteString(pb.p.Sprintf("Price: $%.2f\n", r.Price))
	sb.WriteString("Overall Trend: " + string(r.Trend) + "\n")
	if m.FundingRate != nil {
		sb.WriteString("Funding Rate: " + m.FundingRate.String() + "\n")
	}

	sb.WriteString("\nIndicators:\n")
	sb.WriteString("- RSI(14): " + formatFloat(r.RSI.Value) + " (" + string(r.RSI.Signal) + ")\n")
	sb.WriteString("- MACD: " + string(r.MACD.Trend) +
		" (MACD: " + formatFloat(r.MACD.MACD) + ", Signal: " + formatFloat(r.MACD.Signal) + ")\n")
	sb.WriteString(pb.p.Sprintf("- EMA: %s (EMA20: %.0f, EMA50: %.0f)\n", r.EMA.Trend, r.EMA.EMA20, r.EMA.EMA50))
	sb.WriteString(pb.p.Sprintf("- Bollinger Position: %s (Upper: %.0f, Lower: %.0f)\n",
		formatFloat(r.Bollinger.Position), r.Bollinger.Upper, r.Bollinger.Lower))
	sb.WriteString("- ATR: " + formatFloat(r.ATR.Percent) + "% (" + string(r.ATR.Volatility) + " volatility)\n")
	if r.Pivots != nil {
		sb.WriteString(pb.p.Sprintf("- Pivot Position: %s (P: %.0f, R1: %.0f, S1: %.0f)\n",
			r.Pivots.Position, r.Pivots.Pivot, r.Pivots.R1, r.Pivots.S1))
	}
}

func (pb *PromptBuilder) writeRisk(sb *strings.Builder, r domain.RiskParams) {
	sb.WriteString("\n=== RISK PARAMETERS ===\n")
	sb.WriteString("Max Position Size: " + formatFloat(r.MaxPositionSizePct) + "%\n")
	sb.WriteString("Max Total Exposure: " + formatFloat(r.MaxTotalExposurePct) + "%\n")
	sb.WriteString("Max Daily Loss: " + formatFloat(r.MaxDailyLossPct) + "%\n")
	sb.WriteString("Default Leverage: " + strconv.Itoa(r.DefaultLeverage) + "x\n")
}

// formatFloat prints the shortest exact representation, always with a decimal point.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
