package trader

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hlpilot/internal/domain"
	"github.com/vadiminshakov/hlpilot/internal/storage/simstate"
)

// Pricer returns the current mid price of a coin.
type Pricer interface {
	GetPrice(ctx context.Context, coin string) (decimal.Decimal, error)
}

const (
	triggerStopLoss   = "sl"
	triggerTakeProfit = "tp"
)

type paperPosition struct {
	size     decimal.Decimal // signed
	entry    decimal.Decimal
	leverage int
	margin   decimal.Decimal
}

type paperTrigger struct {
	orderID   int64
	coin      string
	kind      string
	isBuy     bool
	size      decimal.Decimal
	triggerPx decimal.Decimal
}

// PaperTrader simulates a perp account on live prices. Entries lock margin,
// closes release it plus realised PnL, and resting triggers fire on the next read.
type PaperTrader struct {
	mu          sync.Mutex
	logger      *zap.Logger
	pricer      Pricer
	cash        decimal.Decimal
	positions   map[string]*paperPosition
	triggers    []paperTrigger
	leverage    map[string]int
	nextOrderID int64
	stateStore  *simstate.Store
}

// NewPaperTrader creates a paper account. Existing state in store takes precedence
// over startingBalance.
func NewPaperTrader(pricer Pricer, startingBalance decimal.Decimal, store *simstate.Store, logger *zap.Logger) (*PaperTrader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pricer == nil {
		return nil, errors.New("pricer is required for PaperTrader")
	}
	t := &PaperTrader{
		logger:      logger,
		pricer:      pricer,
		cash:        startingBalance,
		positions:   make(map[string]*paperPosition),
		leverage:    make(map[string]int),
		nextOrderID: 1,
		stateStore:  store,
	}
	if err := t.restoreState(); err != nil {
		logger.Warn("failed to restore paper state", zap.Error(err))
	}
	logger.Info("paper exchange init",
		zap.String("cash", t.cash.String()),
		zap.Int("positions", len(t.positions)),
		zap.Int("triggers", len(t.triggers)))
	return t, nil
}

// GetBalance returns cash plus locked margin and unrealised PnL as the total,
// and free cash as available.
func (t *PaperTrader) GetBalance(ctx context.Context) (domain.Balance, error) {
	if err := t.evaluateTriggers(ctx); err != nil {
		return domain.Balance{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	total := t.cash
	for coin, p := range t.positions {
		total = total.Add(p.margin).Add(t.unrealized(ctx, coin, p))
	}
	return domain.Balance{Total: total, Available: t.cash}, nil
}

// GetPositions returns open positions ordered by coin.
func (t *PaperTrader) GetPositions(ctx context.Context) ([]domain.Position, error) {
	if err := t.evaluateTriggers(ctx); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	coins := make([]string, 0, len(t.positions))
	for coin := range t.positions {
		coins = append(coins, coin)
	}
	sort.Strings(coins)

	out := make([]domain.Position, 0, len(coins))
	for _, coin := range coins {
		p := t.positions[coin]
		out = append(out, domain.Position{
			Coin:          coin,
			Size:          p.size,
			EntryPrice:    p.entry,
			UnrealizedPnl: t.unrealized(ctx, coin, p),
			Leverage:      p.leverage,
		})
	}
	return out, nil
}

// GetPrice returns the live mid price.
func (t *PaperTrader) GetPrice(ctx context.Context, coin string) (decimal.Decimal, error) {
	return t.pricer.GetPrice(ctx, coin)
}

// SetLeverage records leverage used for the next entry in coin.
func (t *PaperTrader) SetLeverage(_ context.Context, coin string, leverage int) error {
	if leverage < 1 {
		return errors.Errorf("invalid leverage %d", leverage)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leverage[coin] = leverage
	t.persist()
	return nil
}

// OpenPosition fills at mid moved against the taker by slippage.
func (t *PaperTrader) OpenPosition(ctx context.Context, coin string, isBuy bool, size decimal.Decimal, slippage float64, _ string) (domain.Fill, error) {
	if !size.IsPositive() {
		return domain.Fill{}, errors.Errorf("invalid size %s", size)
	}
	mid, err := t.pricer.GetPrice(ctx, coin)
	if err != nil {
		return domain.Fill{}, err
	}
	price := slipped(mid, isBuy, slippage)

	t.mu.Lock()
	defer t.mu.Unlock()

	lev := t.leverage[coin]
	if lev < 1 {
		lev = 1
	}
	margin := size.Mul(price).Div(decimal.NewFromInt(int64(lev)))
	if margin.GreaterThan(t.cash) {
		return domain.Fill{}, &domain.OrderRejectedError{Coin: coin, Message: "Insufficient margin to place order."}
	}

	signed := size
	if !isBuy {
		signed = size.Neg()
	}

	if p, ok := t.positions[coin]; ok {
		if p.size.IsNegative() != signed.IsNegative() {
			return domain.Fill{}, &domain.OrderRejectedError{Coin: coin, Message: "Paper exchange does not net opposite positions; close first."}
		}
		newSize := p.size.Add(signed)
		p.entry = p.entry.Mul(p.size.Abs()).Add(price.Mul(size)).Div(newSize.Abs())
		p.size = newSize
		p.margin = p.margin.Add(margin)
		p.leverage = lev
	} else {
		t.positions[coin] = &paperPosition{size: signed, entry: price, leverage: lev, margin: margin}
	}
	t.cash = t.cash.Sub(margin)

	fill := domain.Fill{Price: price, Size: size, OrderID: t.orderID()}
	t.logger.Info("paper open",
		zap.String("coin", coin),
		zap.Bool("is_buy", isBuy),
		zap.String("price", price.String()),
		zap.String("size", size.String()),
		zap.String("margin", margin.String()),
		zap.String("cash", t.cash.String()))
	t.persist()
	return fill, nil
}

// ClosePosition closes the whole position in coin at mid moved against the taker.
func (t *PaperTrader) ClosePosition(ctx context.Context, coin string, slippage float64, _ string) (domain.Fill, error) {
	t.mu.Lock()
	p, ok := t.positions[coin]
	t.mu.Unlock()
	if !ok {
		return domain.Fill{}, domain.NoOpenPositionError(coin)
	}

	mid, err := t.pricer.GetPrice(ctx, coin)
	if err != nil {
		return domain.Fill{}, err
	}
	isBuy := p.size.IsNegative()
	price := slipped(mid, isBuy, slippage)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, still := t.positions[coin]; !still {
		return domain.Fill{}, domain.NoOpenPositionError(coin)
	}
	fill := t.closeLocked(coin, price)
	t.persist()
	return fill, nil
}

// PlaceStopLoss rests a reduce-only stop trigger.
func (t *PaperTrader) PlaceStopLoss(_ context.Context, coin string, isBuy bool, size, trigger decimal.Decimal, _ string) (domain.Fill, error) {
	return t.placeTrigger(coin, triggerStopLoss, isBuy, size, trigger)
}

// PlaceTakeProfit rests a reduce-only take-profit trigger.
func (t *PaperTrader) PlaceTakeProfit(_ context.Context, coin string, isBuy bool, size, trigger decimal.Decimal, _ string) (domain.Fill, error) {
	return t.placeTrigger(coin, triggerTakeProfit, isBuy, size, trigger)
}

func (t *PaperTrader) placeTrigger(coin, kind string, isBuy bool, size, trigger decimal.Decimal) (domain.Fill, error) {
	if !trigger.IsPositive() {
		return domain.Fill{}, errors.Errorf("invalid trigger price %s", trigger)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.positions[coin]
	if !ok {
		return domain.Fill{}, &domain.OrderRejectedError{Coin: coin, Message: "Reduce only order would increase position."}
	}
	// a reduce-only order must trade against the position
	if isBuy != p.size.IsNegative() {
		return domain.Fill{}, &domain.OrderRejectedError{Coin: coin, Message: "Reduce only order would increase position."}
	}

	id := t.orderID()
	t.triggers = append(t.triggers, paperTrigger{
		orderID:   id,
		coin:      coin,
		kind:      kind,
		isBuy:     isBuy,
		size:      size,
		triggerPx: trigger,
	})
	t.persist()
	return domain.Fill{Price: trigger, Size: size, OrderID: id}, nil
}

// evaluateTriggers closes positions whose stop or target was crossed by the current mid.
func (t *PaperTrader) evaluateTriggers(ctx context.Context) error {
	t.mu.Lock()
	coins := make(map[string]struct{})
	for _, tr := range t.triggers {
		coins[tr.coin] = struct{}{}
	}
	t.mu.Unlock()

	for coin := range coins {
		mid, err := t.pricer.GetPrice(ctx, coin)
		if err != nil {
			t.logger.Warn("skip trigger check", zap.String("coin", coin), zap.Error(err))
			continue
		}

		t.mu.Lock()
		for _, tr := range t.triggers {
			if tr.coin != coin || !crossed(tr, mid) {
				continue
			}
			if _, ok := t.positions[coin]; ok {
				t.logger.Info("paper trigger fired",
					zap.String("coin", coin),
					zap.String("kind", tr.kind),
					zap.String("trigger_px", tr.triggerPx.String()),
					zap.String("mid", mid.String()))
				t.closeLocked(coin, tr.triggerPx)
				t.persist()
			}
			break
		}
		t.mu.Unlock()
	}
	return nil
}

// crossed reports whether mid reached the trigger. A sell trigger protects a long:
// its stop fires at or below, its target at or above. Buy triggers mirror that.
func crossed(tr paperTrigger, mid decimal.Decimal) bool {
	below := mid.LessThanOrEqual(tr.triggerPx)
	above := mid.GreaterThanOrEqual(tr.triggerPx)
	switch {
	case !tr.isBuy && tr.kind == triggerStopLoss:
		return below
	case !tr.isBuy && tr.kind == triggerTakeProfit:
		return above
	case tr.isBuy && tr.kind == triggerStopLoss:
		return above
	default:
		return below
	}
}

// closeLocked realises PnL at price, releases margin and drops the coin's triggers.
func (t *PaperTrader) closeLocked(coin string, price decimal.Decimal) domain.Fill {
	p := t.positions[coin]
	pnl := price.Sub(p.entry).Mul(p.size)
	t.cash = t.cash.Add(p.margin).Add(pnl)
	delete(t.positions, coin)

	kept := t.triggers[:0]
	for _, tr := range t.triggers {
		if tr.coin != coin {
			kept = append(kept, tr)
		}
	}
	t.triggers = kept

	t.logger.Info("paper close",
		zap.String("coin", coin),
		zap.String("price", price.String()),
		zap.String("pnl", pnl.String()),
		zap.String("cash", t.cash.String()))
	return domain.Fill{Price: price, Size: p.size.Abs(), OrderID: t.orderID()}
}

func (t *PaperTrader) unrealized(ctx context.Context, coin string, p *paperPosition) decimal.Decimal {
	mid, err := t.pricer.GetPrice(ctx, coin)
	if err != nil {
		return decimal.Zero
	}
	return mid.Sub(p.entry).Mul(p.size)
}

func (t *PaperTrader) orderID() int64 {
	id := t.nextOrderID
	t.nextOrderID++
	return id
}

func slipped(mid decimal.Decimal, isBuy bool, slippage float64) decimal.Decimal {
	s := decimal.NewFromFloat(slippage)
	if isBuy {
		return mid.Mul(decimal.NewFromInt(1).Add(s))
	}
	return mid.Mul(decimal.NewFromInt(1).Sub(s))
}

func (t *PaperTrader) restoreState() error {
	if t.stateStore == nil {
		return nil
	}
	state, err := t.stateStore.Load()
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	cash, err := decimal.NewFromString(state.Cash)
	if err != nil {
		return errors.Wrap(err, "parse cash")
	}
	t.cash = cash

	for coin, sp := range state.Positions {
		t.positions[coin] = &paperPosition{
			size:     parseDecimal(sp.Size),
			entry:    parseDecimal(sp.EntryPrice),
			leverage: sp.Leverage,
			margin:   parseDecimal(sp.Margin),
		}
	}
	for _, st := range state.Triggers {
		t.triggers = append(t.triggers, paperTrigger{
			orderID:   st.OrderID,
			coin:      st.Coin,
			kind:      st.Kind,
			isBuy:     st.IsBuy,
			size:      parseDecimal(st.Size),
			triggerPx: parseDecimal(st.TriggerPx),
		})
	}
	for coin, lev := range state.Leverage {
		t.leverage[coin] = lev
	}
	if state.NextOrderID > t.nextOrderID {
		t.nextOrderID = state.NextOrderID
	}
	return nil
}

// persist must be called with mu held.
func (t *PaperTrader) persist() {
	if t.stateStore == nil {
		return
	}

	state := simstate.State{
		Cash:        t.cash.String(),
		Positions:   make(map[string]simstate.StoredPosition, len(t.positions)),
		Leverage:    make(map[string]int, len(t.leverage)),
		NextOrderID: t.nextOrderID,
	}
	for coin, p := range t.positions {
		state.Positions[coin] = simstate.StoredPosition{
			Size:       p.size.String(),
			EntryPrice: p.entry.String(),
			Leverage:   p.leverage,
			Margin:     p.margin.String(),
		}
	}
	for _, tr := range t.triggers {
		state.Triggers = append(state.Triggers, simstate.StoredTrigger{
			OrderID:   tr.orderID,
			Coin:      tr.coin,
			Kind:      tr.kind,
			IsBuy:     tr.isBuy,
			Size:      tr.size.String(),
			TriggerPx: tr.triggerPx.String(),
		})
	}
	for coin, lev := range t.leverage {
		state.Leverage[coin] = lev
	}

	if err := t.stateStore.Save(state); err != nil {
		t.logger.Warn("failed to persist paper state", zap.Error(err))
	}
}
