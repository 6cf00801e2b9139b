package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hlpilot/internal/domain"
	"github.com/vadiminshakov/hlpilot/internal/services/executor"
	"github.com/vadiminshakov/hlpilot/pkg/retrier"
)

type analyzer interface {
	Analyze(ctx context.Context, coin string) (domain.IndicatorReport, error)
}

type fundingSource interface {
	GetFundingRate(ctx context.Context, coin string) (decimal.Decimal, error)
}

type sentimentSource interface {
	Summary(ctx context.Context) domain.SentimentSummary
}

type newsSource interface {
	Summary(ctx context.Context, currencies []string) domain.NewsSummary
}

type prompter interface {
	SystemPrompt() string
	BuildUserPrompt(mc domain.MarketContext) string
}

type chatClient interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

type decisionParser interface {
	Parse(raw string) domain.ParseResult
}

type decisionExecutor interface {
	Execute(ctx context.Context, d domain.TradingDecision) domain.ExecutionResult
}

type auditLog interface {
	LogDecision(ctx context.Context, mc domain.MarketContext, d domain.TradingDecision, raw string) (uint, error)
	LogTradeOpen(ctx context.Context, t domain.TradeOpen) (uint, error)
	LogTradeClose(ctx context.Context, id uint, exitPrice decimal.Decimal, reason domain.ExitReason) (bool, error)
	SaveSnapshot(ctx context.Context, mc domain.MarketContext) error
	OpenTrades(ctx context.Context) ([]domain.TradeRecord, error)
	OpenTradeForCoin(ctx context.Context, coin string) (domain.TradeRecord, bool, error)
	Stats(ctx context.Context) (domain.TradeStats, error)
}

// Confirmer asks the operator before a decision is executed.
type Confirmer interface {
	Confirm(ctx context.Context, d domain.TradingDecision) (bool, error)
}

// CycleReport describes what one decision cycle did.
type CycleReport struct {
	Decision     domain.TradingDecision
	Raw          string
	Valid        bool
	Reason       string
	DecisionID   uint
	AnalysisOnly bool
	Declined     bool
	Result       *domain.ExecutionResult
}

// StatusReport is the account view printed by the status command.
type StatusReport struct {
	Balance    domain.Balance
	Positions  []domain.Position
	OpenTrades []domain.TradeRecord
	Stats      domain.TradeStats
	ReadOnly   bool
}

// TradingBot runs decision cycles for one account.
type TradingBot struct {
	exchange   executor.Exchange
	analyzer   analyzer
	funding    fundingSource
	sentiment  sentimentSource
	news       newsSource
	prompts    prompter
	llm        chatClient
	parser     decisionParser
	executor   decisionExecutor
	audit      auditLog
	confirmer  Confirmer
	retrier    *retrier.Retrier
	coins      []string
	riskParams domain.RiskParams
	logger     *zap.Logger
	now        func() time.Time
	closers    []func() error
}

// RunOnce runs a single cycle. Errors before execution are returned as
// *domain.UnexpectedCycleError and may be retried; once orders were submitted
// failures are only logged.
func (b *TradingBot) RunOnce(ctx context.Context, auto bool) (CycleReport, error) {
	var report CycleReport

	portfolio, readOnly, err := b.portfolio(ctx)
	if err != nil {
		return report, domain.CycleError("portfolio", err)
	}
	report.AnalysisOnly = readOnly

	if !readOnly {
		b.reconcile(ctx, portfolio.Positions)
	}

	mc, err := b.buildContext(ctx, portfolio)
	if err != nil {
		return report, domain.CycleError("market data", err)
	}

	raw, err := b.llm.Chat(ctx, b.prompts.SystemPrompt(), b.prompts.BuildUserPrompt(mc))
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		b.logger.Error("model call failed", zap.Error(err))
		report.Decision = domain.HoldDecision("model call failed: " + err.Error())
		report.Reason = report.Decision.Reasoning
	} else {
		report.Raw = raw
		parsed := b.parser.Parse(raw)
		report.Valid = parsed.IsValid()
		report.Reason = parsed.Reason()
		report.Decision = parsed.OrHold()
		if !report.Valid {
			b.logger.Warn("model response rejected, holding", zap.Error(parsed.Err()))
		}
	}

	d := report.Decision
	b.logger.Info("decision",
		zap.String("action", string(d.Action)),
		zap.String("coin", d.Coin),
		zap.Float64("confidence", d.Confidence),
		zap.String("reasoning", d.Reasoning))

	if id, err := b.audit.LogDecision(ctx, mc, d, report.Raw); err != nil {
		b.logger.Warn("failed to log decision", zap.Error(err))
	} else {
		report.DecisionID = id
	}
	if err := b.audit.SaveSnapshot(ctx, mc); err != nil {
		b.logger.Warn("failed to save market snapshot", zap.Error(err))
	}

	if d.Action == domain.ActionHold {
		return report, nil
	}
	if readOnly {
		b.logger.Info("analysis-only mode, decision not executed")
		return report, nil
	}

	if !auto {
		ok, err := b.confirm(ctx, d)
		if err != nil {
			return report, domain.CycleError("confirm", err)
		}
		if !ok {
			report.Declined = true
			b.logger.Info("decision declined by operator")
			return report, nil
		}
	}

	res := b.executor.Execute(ctx, d)
	report.Result = &res
	b.record(ctx, d, report.DecisionID, res)
	return report, nil
}

// Run executes cycles every interval until ctx is cancelled. Each cycle is
// retried under the configured policy.
func (b *TradingBot) Run(ctx context.Context, interval time.Duration, auto bool) error {
	b.logger.Info("starting trading loop",
		zap.Strings("coins", b.coins),
		zap.Duration("interval", interval))

	for {
		report, err := retrier.DoWithData(b.retrier, ctx, func(ctx context.Context) (CycleReport, error) {
			return b.RunOnce(ctx, auto)
		})
		if err != nil {
			if ctx.Err() != nil {
				b.logger.Info("context done, stopping trading loop")
				return ctx.Err()
			}
			b.logger.Error("cycle failed, waiting for next interval", zap.Error(err))
		} else {
			b.logger.Info("cycle complete",
				zap.String("action", string(report.Decision.Action)),
				zap.String("coin", report.Decision.Coin),
				zap.Bool("valid", report.Valid),
				zap.Bool("executed", report.Result != nil && report.Result.Executed()))
		}

		select {
		case <-ctx.Done():
			b.logger.Info("context done, stopping trading loop")
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Status returns balance, positions and trade statistics.
func (b *TradingBot) Status(ctx context.Context) (StatusReport, error) {
	var report StatusReport

	portfolio, readOnly, err := b.portfolio(ctx)
	if err != nil {
		return report, err
	}
	report.ReadOnly = readOnly
	report.Balance = domain.Balance{Total: portfolio.Balance, Available: portfolio.Available}
	report.Positions = portfolio.Positions

	if report.OpenTrades, err = b.audit.OpenTrades(ctx); err != nil {
		return report, err
	}
	if report.Stats, err = b.audit.Stats(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// CloseAll closes every open position and records each as a manual exit.
func (b *TradingBot) CloseAll(ctx context.Context) ([]domain.ExecutionResult, error) {
	positions, err := b.exchange.GetPositions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get positions")
	}

	results := make([]domain.ExecutionResult, 0, len(positions))
	for _, p := range positions {
		if p.Size.IsZero() {
			continue
		}
		res := b.executor.Execute(ctx, domain.TradingDecision{
			Action:    domain.ActionClose,
			Coin:      p.Coin,
			Reasoning: "manual close-all",
		})
		if res.Executed() {
			b.closeRecord(ctx, p.Coin, res.Trade.Price, domain.ExitManual)
		}
		results = append(results, res)
	}
	return results, nil
}

// Close releases stores held by the bot.
func (b *TradingBot) Close() error {
	var firstErr error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// portfolio reads the account. An unconfigured exchange yields an empty
// portfolio and readOnly=true.
func (b *TradingBot) portfolio(ctx context.Context) (domain.Portfolio, bool, error) {
	balance, err := b.exchange.GetBalance(ctx)
	if errors.Is(err, domain.ErrExchangeUnconfigured) {
		return domain.NewPortfolio(domain.Balance{}, nil), true, nil
	}
	if err != nil {
		return domain.Portfolio{}, false, errors.Wrap(err, "get balance")
	}
	positions, err := b.exchange.GetPositions(ctx)
	if err != nil {
		return domain.Portfolio{}, false, errors.Wrap(err, "get positions")
	}
	return domain.NewPortfolio(balance, positions), false, nil
}

func (b *TradingBot) buildContext(ctx context.Context, portfolio domain.Portfolio) (domain.MarketContext, error) {
	mc := domain.MarketContext{
		Timestamp:  b.now().UTC(),
		Portfolio:  portfolio,
		Sentiment:  b.sentiment.Summary(ctx),
		News:       b.news.Summary(ctx, b.coins),
		RiskParams: b.riskParams,
	}

	for _, coin := range b.coins {
		report, err := b.analyzer.Analyze(ctx, coin)
		if err != nil {
			if ctx.Err() != nil {
				return mc, ctx.Err()
			}
			b.logger.Warn("skipping coin without indicators", zap.String("coin", coin), zap.Error(err))
			continue
		}
		market := domain.CoinMarket{Coin: coin, Report: report}
		if rate, err := b.funding.GetFundingRate(ctx, coin); err == nil {
			market.FundingRate = &rate
		} else {
			b.logger.Debug("funding rate unavailable", zap.String("coin", coin), zap.Error(err))
		}
		mc.Markets = append(mc.Markets, market)
	}

	if len(mc.Markets) == 0 {
		return mc, errors.Wrap(domain.ErrNoData, "no market data for any coin")
	}
	return mc, nil
}

// reconcile closes trade records whose position is gone, e.g. after a stop fired.
func (b *TradingBot) reconcile(ctx context.Context, positions []domain.Position) {
	trades, err := b.audit.OpenTrades(ctx)
	if err != nil {
		b.logger.Warn("reconcile: cannot load open trades", zap.Error(err))
		return
	}

	for _, t := range trades {
		if _, ok := domain.FindPosition(positions, t.Coin); ok {
			continue
		}
		price, err := b.exchange.GetPrice(ctx, t.Coin)
		if err != nil {
			b.logger.Warn("reconcile: no price", zap.String("coin", t.Coin), zap.Error(err))
			continue
		}
		reason := domain.InferExitReason(t.Direction, price, t.StopLoss, t.TakeProfit)
		if _, err := b.audit.LogTradeClose(ctx, t.ID, price, reason); err != nil {
			b.logger.Warn("reconcile: close record failed", zap.Uint("trade_id", t.ID), zap.Error(err))
			continue
		}
		b.logger.Info("reconciled closed position",
			zap.Uint("trade_id", t.ID),
			zap.String("coin", t.Coin),
			zap.String("price", price.String()),
			zap.String("reason", string(reason)))
	}
}

func (b *TradingBot) confirm(ctx context.Context, d domain.TradingDecision) (bool, error) {
	if b.confirmer == nil {
		b.logger.Warn("no confirmer configured, decision not executed; use auto mode to trade unattended")
		return false, nil
	}
	return b.confirmer.Confirm(ctx, d)
}

func (b *TradingBot) record(ctx context.Context, d domain.TradingDecision, decisionID uint, res domain.ExecutionResult) {
	if !res.Executed() {
		b.logger.Warn("decision not executed", zap.String("error", res.Error))
		return
	}

	switch {
	case d.Action.IsOpen():
		open := domain.TradeOpen{
			Coin:       res.Coin,
			Direction:  domain.SideForAction(d.Action),
			EntryPrice: res.Trade.Price,
			Size:       res.Trade.Size,
		}
		if res.Order != nil {
			open.SizeUSD = res.Order.SizeUSD
			open.Leverage = res.Order.Leverage
		}
		if res.StopLoss != nil && res.StopLoss.Success {
			sl := res.StopPrice
			open.StopLoss = &sl
		}
		if res.TakeProfit != nil && res.TakeProfit.Success {
			tp := res.TargetPrice
			open.TakeProfit = &tp
		}
		if decisionID != 0 {
			open.DecisionID = &decisionID
		}
		if _, err := b.audit.LogTradeOpen(ctx, open); err != nil {
			b.logger.Error("failed to record opened trade", zap.String("coin", res.Coin), zap.Error(err))
		}
	case d.Action == domain.ActionClose:
		b.closeRecord(ctx, res.Coin, res.Trade.Price, domain.ExitSignal)
	}
}

func (b *TradingBot) closeRecord(ctx context.Context, coin string, price decimal.Decimal, reason domain.ExitReason) {
	t, ok, err := b.audit.OpenTradeForCoin(ctx, coin)
	if err != nil {
		b.logger.Error("failed to load open trade", zap.String("coin", coin), zap.Error(err))
		return
	}
	if !ok {
		b.logger.Info("closed position had no trade record", zap.String("coin", coin))
		return
	}
	if _, err := b.audit.LogTradeClose(ctx, t.ID, price, reason); err != nil {
		b.logger.Error("failed to record closed trade", zap.Uint("trade_id", t.ID), zap.Error(err))
	}
}
