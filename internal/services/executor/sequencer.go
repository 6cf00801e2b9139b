// Package executor turns a validated decision into exchange orders.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hlpilot/internal/domain"
	"github.com/vadiminshakov/hlpilot/internal/storage/orderjournal"
)

// Exchange is the trading surface the sequencer drives.
type Exchange interface {
	GetBalance(ctx context.Context) (domain.Balance, error)
	GetPositions(ctx context.Context) ([]domain.Position, error)
	GetPrice(ctx context.Context, coin string) (decimal.Decimal, error)
	SetLeverage(ctx context.Context, coin string, leverage int) error
	OpenPosition(ctx context.Context, coin string, isBuy bool, size decimal.Decimal, slippage float64, clientID string) (domain.Fill, error)
	ClosePosition(ctx context.Context, coin string, slippage float64, clientID string) (domain.Fill, error)
	PlaceStopLoss(ctx context.Context, coin string, isBuy bool, size, trigger decimal.Decimal, clientID string) (domain.Fill, error)
	PlaceTakeProfit(ctx context.Context, coin string, isBuy bool, size, trigger decimal.Decimal, clientID string) (domain.Fill, error)
}

type sizer interface {
	Size(d domain.TradingDecision, available, price decimal.Decimal) (domain.SizedOrder, error)
}

type journal interface {
	Record(e orderjournal.Entry) error
}

// Params are the execution settings taken from config.
type Params struct {
	StopLossPct    float64
	TakeProfitPct  float64
	EntrySlippage  float64
	ExitSlippage   float64
	PricePrecision map[string]int
}

const defaultPricePrecision = 1

// Sequencer runs the per-decision order state machine:
// IDLE → SIZING → ENTRY_SUBMITTED → {PROTECTED | PROTECTION_INCOMPLETE | ENTRY_FAILED} → DONE
// for entries and IDLE → CLOSE_SUBMITTED → DONE for closes.
type Sequencer struct {
	exchange Exchange
	sizer    sizer
	journal  journal
	params   Params
	logger   *zap.Logger
	newID    func() string
}

// NewSequencer creates a sequencer. journal may be nil.
func NewSequencer(exchange Exchange, sizer sizer, journal journal, params Params, logger *zap.Logger) *Sequencer {
	return &Sequencer{
		exchange: exchange,
		sizer:    sizer,
		journal:  journal,
		params:   params,
		logger:   logger,
		newID:    func() string { return uuid.New().String() },
	}
}

// Execute carries out d. Failures are reported in the result, never returned.
func (s *Sequencer) Execute(ctx context.Context, d domain.TradingDecision) domain.ExecutionResult {
	res := domain.ExecutionResult{
		SequenceID: s.newID(),
		Action:     d.Action,
		Coin:       d.Coin,
	}
	s.transition(&res, domain.StateIdle, 0)

	switch d.Action {
	case domain.ActionHold:
		s.transition(&res, domain.StateDone, 0)
	case domain.ActionOpenLong, domain.ActionOpenShort:
		s.open(ctx, d, &res)
	case domain.ActionClose:
		s.close(ctx, d, &res)
	default:
		res.Error = "unknown action: " + string(d.Action)
		s.transition(&res, domain.StateDone, 0)
	}
	return res
}

func (s *Sequencer) open(ctx context.Context, d domain.TradingDecision, res *domain.ExecutionResult) {
	s.transition(res, domain.StateSizing, 0)

	order, err := s.size(ctx, d)
	if err != nil {
		s.fail(res, err)
		return
	}
	res.Order = &order

	if err := s.exchange.SetLeverage(ctx, order.Coin, order.Leverage); err != nil {
		s.logger.Warn("set leverage failed, continuing with entry",
			zap.String("coin", order.Coin),
			zap.Int("leverage", order.Leverage),
			zap.Error(err))
	}

	s.transition(res, domain.StateEntrySubmitted, 0)
	fill, err := s.exchange.OpenPosition(ctx, order.Coin, order.IsBuy, order.Size, s.params.EntrySlippage, res.SequenceID+"-entry")
	if err != nil {
		leg := domain.FailedLeg(err)
		res.Trade = &leg
		s.fail(res, err)
		return
	}
	trade := domain.SucceededLeg(fill)
	res.Trade = &trade

	side := order.Side()
	res.StopPrice, res.TargetPrice = ProtectivePrices(side, fill.Price, s.stopLossPct(d), s.takeProfitPct(d), s.pricePrecision(order.Coin))

	size := fill.Size
	if !size.IsPositive() {
		size = order.Size
	}
	// protective orders close the position, so they trade the opposite side
	protectBuy := side == domain.PositionSideShort

	sl, slErr := s.exchange.PlaceStopLoss(ctx, order.Coin, protectBuy, size, res.StopPrice, res.SequenceID+"-sl")
	res.StopLoss = legResult(sl, slErr)
	tp, tpErr := s.exchange.PlaceTakeProfit(ctx, order.Coin, protectBuy, size, res.TargetPrice, res.SequenceID+"-tp")
	res.TakeProfit = legResult(tp, tpErr)

	if slErr != nil || tpErr != nil {
		s.logger.Error("position is not fully protected",
			zap.String("sequence_id", res.SequenceID),
			zap.String("coin", order.Coin),
			zap.NamedError("stop_loss_error", slErr),
			zap.NamedError("take_profit_error", tpErr))
		s.transition(res, domain.StateProtectionIncomplete, fill.OrderID)
	} else {
		s.transition(res, domain.StateProtected, fill.OrderID)
	}
	s.transition(res, domain.StateDone, 0)

	s.logger.Info("entry executed",
		zap.String("sequence_id", res.SequenceID),
		zap.String("coin", order.Coin),
		zap.String("side", string(side)),
		zap.String("price", fill.Price.String()),
		zap.String("size", size.String()),
		zap.String("sl", res.StopPrice.String()),
		zap.String("tp", res.TargetPrice.String()))
}

func (s *Sequencer) size(ctx context.Context, d domain.TradingDecision) (domain.SizedOrder, error) {
	balance, err := s.exchange.GetBalance(ctx)
	if err != nil {
		return domain.SizedOrder{}, errors.Wrap(err, "get balance")
	}
	price, err := s.exchange.GetPrice(ctx, d.Coin)
	if err != nil {
		return domain.SizedOrder{}, err
	}
	return s.sizer.Size(d, balance.Available, price)
}

func (s *Sequencer) close(ctx context.Context, d domain.TradingDecision, res *domain.ExecutionResult) {
	positions, err := s.exchange.GetPositions(ctx)
	if err != nil {
		s.fail(res, errors.Wrap(err, "get positions"))
		return
	}
	if _, ok := domain.FindPosition(positions, d.Coin); !ok {
		err := domain.NoOpenPositionError(d.Coin)
		leg := domain.FailedLeg(err)
		res.Trade = &leg
		s.fail(res, err)
		return
	}

	s.transition(res, domain.StateCloseSubmitted, 0)
	fill, err := s.exchange.ClosePosition(ctx, d.Coin, s.params.ExitSlippage, res.SequenceID+"-close")
	if err != nil {
		leg := domain.FailedLeg(err)
		res.Trade = &leg
		res.Error = err.Error()
		s.logger.Error("close failed", zap.String("coin", d.Coin), zap.Error(err))
		s.transition(res, domain.StateDone, 0)
		return
	}
	trade := domain.SucceededLeg(fill)
	res.Trade = &trade
	s.transition(res, domain.StateDone, fill.OrderID)

	s.logger.Info("position closed",
		zap.String("sequence_id", res.SequenceID),
		zap.String("coin", d.Coin),
		zap.String("price", fill.Price.String()),
		zap.String("size", fill.Size.String()))
}

// fail ends an entry or close that never reached the exchange, or was rejected by it.
func (s *Sequencer) fail(res *domain.ExecutionResult, err error) {
	res.Error = err.Error()
	fields := []zap.Field{
		zap.String("sequence_id", res.SequenceID),
		zap.String("action", string(res.Action)),
		zap.String("coin", res.Coin),
		zap.Error(err),
	}
	if domain.IsOrderRejected(err) {
		s.logger.Warn("order rejected by exchange", fields...)
	} else {
		s.logger.Error("execution failed", fields...)
	}
	if res.Action.IsOpen() {
		s.transition(res, domain.StateEntryFailed, 0)
	}
	s.transition(res, domain.StateDone, 0)
}

func (s *Sequencer) transition(res *domain.ExecutionResult, state domain.SequencerState, orderID int64) {
	res.States = append(res.States, state)
	if s.journal == nil {
		return
	}
	entry := orderjournal.Entry{
		SequenceID: res.SequenceID,
		Action:     res.Action,
		Coin:       res.Coin,
		State:      state,
		OrderID:    orderID,
		Error:      res.Error,
		Time:       time.Now().UTC(),
	}
	if err := s.journal.Record(entry); err != nil {
		s.logger.Warn("journal write failed", zap.String("state", string(state)), zap.Error(err))
	}
}

func (s *Sequencer) stopLossPct(d domain.TradingDecision) float64 {
	if d.StopLossPct != nil && *d.StopLossPct > 0 {
		return *d.StopLossPct
	}
	if s.params.StopLossPct > 0 {
		return s.params.StopLossPct
	}
	return domain.DefaultStopLossPct
}

func (s *Sequencer) takeProfitPct(d domain.TradingDecision) float64 {
	if d.TakeProfitPct != nil && *d.TakeProfitPct > 0 {
		return *d.TakeProfitPct
	}
	if s.params.TakeProfitPct > 0 {
		return s.params.TakeProfitPct
	}
	return domain.DefaultTakeProfitPct
}

func (s *Sequencer) pricePrecision(coin string) int32 {
	if p, ok := s.params.PricePrecision[coin]; ok {
		return int32(p)
	}
	return defaultPricePrecision
}

// ProtectivePrices derives stop and target from the entry price.
// LONG: sl = e*(1-sl%/100), tp = e*(1+tp%/100); SHORT mirrors it.
func ProtectivePrices(side domain.PositionSide, entry decimal.Decimal, slPct, tpPct float64, precision int32) (decimal.Decimal, decimal.Decimal) {
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	sl := decimal.NewFromFloat(slPct).Div(hundred)
	tp := decimal.NewFromFloat(tpPct).Div(hundred)

	if side == domain.PositionSideShort {
		return entry.Mul(one.Add(sl)).Round(precision), entry.Mul(one.Sub(tp)).Round(precision)
	}
	return entry.Mul(one.Sub(sl)).Round(precision), entry.Mul(one.Add(tp)).Round(precision)
}

func legResult(f domain.Fill, err error) *domain.LegResult {
	if err != nil {
		leg := domain.FailedLeg(err)
		return &leg
	}
	leg := domain.SucceededLeg(f)
	return &leg
}
