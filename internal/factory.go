package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hlpilot/config"
	"github.com/vadiminshakov/hlpilot/internal/clients"
	"github.com/vadiminshakov/hlpilot/internal/domain"
	"github.com/vadiminshakov/hlpilot/internal/services/decision"
	"github.com/vadiminshakov/hlpilot/internal/services/executor"
	"github.com/vadiminshakov/hlpilot/internal/services/indicators"
	"github.com/vadiminshakov/hlpilot/internal/services/news"
	"github.com/vadiminshakov/hlpilot/internal/services/promptbuilder"
	"github.com/vadiminshakov/hlpilot/internal/services/risk"
	"github.com/vadiminshakov/hlpilot/internal/services/sentiment"
	"github.com/vadiminshakov/hlpilot/internal/storage/orderjournal"
	"github.com/vadiminshakov/hlpilot/internal/storage/tradelog"
	"github.com/vadiminshakov/hlpilot/pkg/retrier"
)

// NewTradingBot wires every component from conf. confirmer may be nil when the
// bot only runs in auto mode.
func NewTradingBot(ctx context.Context, conf config.Config, logger *zap.Logger, confirmer Confirmer) (*TradingBot, error) {
	provider, err := newServiceProvider(conf, logger)
	if err != nil {
		return nil, err
	}

	exchange, err := provider.Trader()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create trader")
	}

	llm, err := clients.NewLLMClient(ctx, conf.LLM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create LLM client")
	}

	store, err := tradelog.Open(conf.Database)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open trade log")
	}

	journal, err := orderjournal.Open(conf.Journal.Dir)
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrap(err, "failed to open order journal")
	}
	for _, e := range journal.InFlight() {
		logger.Warn("order sequence did not finish on last run, check the exchange",
			zap.String("sequence_id", e.SequenceID),
			zap.String("action", string(e.Action)),
			zap.String("coin", e.Coin),
			zap.String("state", string(e.State)),
			zap.Time("time", e.Time))
	}

	t := conf.Trading
	sizer := risk.NewSizer(risk.Limits{
		MaxPositionSizePct: t.MaxPositionSizePct,
		DefaultSizePct:     t.DefaultSizePct,
		DefaultLeverage:    t.DefaultLeverage,
		SizePrecision:      t.SizePrecision,
	})
	sequencer := executor.NewSequencer(exchange, sizer, journal, executor.Params{
		StopLossPct:    t.StopLossPct,
		TakeProfitPct:  t.TakeProfitPct,
		EntrySlippage:  t.EntrySlippage,
		ExitSlippage:   t.ExitSlippage,
		PricePrecision: t.PricePrecision,
	}, logger)

	bot := &TradingBot{
		exchange:  exchange,
		analyzer:  indicators.NewEngine(provider.KlineProvider(), t.Interval, t.Lookback, logger),
		funding:   provider.Pricer(),
		sentiment: sentiment.NewFearGreedClient(conf.Sentiment.URL, logger),
		news:      news.NewCryptoPanicClient(conf.News.BaseURL, conf.News.APIKey, conf.News.Limit, conf.News.Filter, logger),
		prompts:   promptbuilder.NewPromptBuilder(t.Coins, t.MaxPositionSizePct, logger),
		llm:       llm,
		parser:    decision.NewParser(logger),
		executor:  sequencer,
		audit:     store,
		confirmer: confirmer,
		retrier:   newCycleRetrier(conf.Loop, logger),
		coins:     t.Coins,
		riskParams: domain.RiskParams{
			MaxPositionSizePct:  t.MaxPositionSizePct,
			MaxTotalExposurePct: t.MaxTotalExposurePct,
			MaxDailyLossPct:     t.MaxDailyLossPct,
			DefaultLeverage:     t.DefaultLeverage,
		},
		logger:  logger,
		now:     time.Now,
		closers: []func() error{store.Close, journal.Close},
	}

	logger.Info("trading bot initialized",
		zap.String("exchange", conf.Exchange),
		zap.Bool("testnet", conf.Hyperliquid.Testnet),
		zap.Strings("coins", t.Coins),
		zap.String("model", llm.Model()))

	return bot, nil
}

// newCycleRetrier retries a failed cycle at a fixed backoff. Cancellation and a
// missing exchange configuration are not retried.
func newCycleRetrier(loop config.LoopConfig, logger *zap.Logger) *retrier.Retrier {
	return retrier.New(
		retrier.WithInitialInterval(loop.RetryBackoff),
		retrier.WithMaxInterval(loop.RetryBackoff),
		retrier.WithMultiplier(1),
		retrier.WithJitter(0),
		retrier.WithMaxRetries(loop.MaxRetries),
		retrier.WithRetryIf(retryableCycleError),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			logger.Warn("cycle failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
}

func retryableCycleError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, domain.ErrExchangeUnconfigured)
}
