package trader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hlpilot/internal/clients"
	"github.com/vadiminshakov/hlpilot/internal/domain"
)

// infoReader is the read side of the Hyperliquid API.
type infoReader interface {
	AllMids(ctx context.Context) (map[string]string, error)
	ClearinghouseState(ctx context.Context, user string) (clients.ClearinghouseState, error)
}

// orderSigner submits signed actions. sdkSigner is the production implementation.
type orderSigner interface {
	UpdateLeverage(ctx context.Context, leverage int, coin string, isCross bool) error
	SlippagePrice(ctx context.Context, coin string, isBuy bool, slippage float64) (float64, error)
	Order(ctx context.Context, req hyperliquid.CreateOrderRequest) (orderStatus, error)
}

// orderStatus is the per-order status the exchange returns for a submitted order.
type orderStatus struct {
	Filled  bool
	TotalSz string
	AvgPx   string
	Resting bool
	Oid     int64
	Error   string
}

type sdkSigner struct {
	ex *hyperliquid.Exchange
}

func (s sdkSigner) UpdateLeverage(ctx context.Context, leverage int, coin string, isCross bool) error {
	_, err := s.ex.UpdateLeverage(ctx, leverage, coin, isCross)
	return err
}

func (s sdkSigner) SlippagePrice(ctx context.Context, coin string, isBuy bool, slippage float64) (float64, error) {
	return s.ex.SlippagePrice(ctx, coin, isBuy, slippage, nil)
}

func (s sdkSigner) Order(ctx context.Context, req hyperliquid.CreateOrderRequest) (orderStatus, error) {
	res, err := s.ex.Order(ctx, req, nil)
	if err != nil {
		return orderStatus{}, err
	}

	var st orderStatus
	switch {
	case res.Error != nil:
		st.Error = *res.Error
	case res.Filled != nil:
		st.Filled = true
		st.TotalSz = res.Filled.TotalSz
		st.AvgPx = res.Filled.AvgPx
		st.Oid = int64(res.Filled.Oid)
	case res.Resting != nil:
		st.Resting = true
		st.Oid = int64(res.Resting.Oid)
	}
	return st, nil
}

// HyperliquidTrader trades perpetuals on Hyperliquid. Without a signing client it is
// read-only and every mutating call returns domain.ErrExchangeUnconfigured.
type HyperliquidTrader struct {
	info        infoReader
	signer      orderSigner
	accountAddr string
	isCross     bool
	logger      *zap.Logger
}

// NewHyperliquidTrader creates a trader. client may be nil for read-only use.
func NewHyperliquidTrader(info infoReader, client *clients.HyperliquidClient, accountAddr string, isCross bool, logger *zap.Logger) *HyperliquidTrader {
	t := &HyperliquidTrader{
		info:        info,
		accountAddr: accountAddr,
		isCross:     isCross,
		logger:      logger,
	}
	if client != nil {
		t.signer = sdkSigner{ex: client.Exchange()}
		if t.accountAddr == "" {
			t.accountAddr = client.AccountAddress()
		}
	}
	return t
}

// CanTrade reports whether signed actions are available.
func (t *HyperliquidTrader) CanTrade() bool {
	return t.signer != nil
}

// GetBalance returns account value and withdrawable amount.
func (t *HyperliquidTrader) GetBalance(ctx context.Context) (domain.Balance, error) {
	state, err := t.userState(ctx)
	if err != nil {
		return domain.Balance{}, err
	}
	return domain.Balance{
		Total:     parseDecimal(state.MarginSummary.AccountValue),
		Available: parseDecimal(state.Withdrawable),
	}, nil
}

// GetPositions returns every non-zero perp position.
func (t *HyperliquidTrader) GetPositions(ctx context.Context) ([]domain.Position, error) {
	state, err := t.userState(ctx)
	if err != nil {
		return nil, err
	}

	positions := make([]domain.Position, 0, len(state.AssetPositions))
	for _, ap := range state.AssetPositions {
		p := ap.Position
		size := parseDecimal(p.Szi)
		if size.IsZero() {
			continue
		}
		var entry decimal.Decimal
		if p.EntryPx != nil {
			entry = parseDecimal(*p.EntryPx)
		}
		positions = append(positions, domain.Position{
			Coin:          p.Coin,
			Size:          size,
			EntryPrice:    entry,
			UnrealizedPnl: parseDecimal(p.UnrealizedPnl),
			Leverage:      p.Leverage.Value,
		})
	}
	return positions, nil
}

// GetPrice returns the mid price of coin.
func (t *HyperliquidTrader) GetPrice(ctx context.Context, coin string) (decimal.Decimal, error) {
	mids, err := t.info.AllMids(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(domain.ErrPriceUnavailable, "%s: %v", coin, err)
	}
	price := parseDecimal(mids[coin])
	if !price.IsPositive() {
		return decimal.Zero, errors.Wrapf(domain.ErrPriceUnavailable, "no mid for %s", coin)
	}
	return price, nil
}

// SetLeverage updates leverage for coin using the configured margin mode.
func (t *HyperliquidTrader) SetLeverage(ctx context.Context, coin string, leverage int) error {
	if t.signer == nil {
		return domain.ErrExchangeUnconfigured
	}
	if err := t.signer.UpdateLeverage(ctx, leverage, coin, t.isCross); err != nil {
		return errors.Wrapf(err, "update leverage %s x%d", coin, leverage)
	}
	return nil
}

// OpenPosition submits an IOC market order with the given slippage bound.
func (t *HyperliquidTrader) OpenPosition(ctx context.Context, coin string, isBuy bool, size decimal.Decimal, slippage float64, clientID string) (domain.Fill, error) {
	if t.signer == nil {
		return domain.Fill{}, domain.ErrExchangeUnconfigured
	}
	return t.marketOrder(ctx, coin, isBuy, size, slippage, false, clientID)
}

// ClosePosition closes the whole position in coin with a reduce-only market order.
func (t *HyperliquidTrader) ClosePosition(ctx context.Context, coin string, slippage float64, clientID string) (domain.Fill, error) {
	if t.signer == nil {
		return domain.Fill{}, domain.ErrExchangeUnconfigured
	}

	positions, err := t.GetPositions(ctx)
	if err != nil {
		return domain.Fill{}, errors.Wrap(err, "load positions")
	}
	pos, ok := domain.FindPosition(positions, coin)
	if !ok {
		return domain.Fill{}, domain.NoOpenPositionError(coin)
	}

	isBuy := pos.Side() == domain.PositionSideShort
	return t.marketOrder(ctx, coin, isBuy, pos.AbsSize(), slippage, true, clientID)
}

// PlaceStopLoss places a reduce-only stop-market trigger.
func (t *HyperliquidTrader) PlaceStopLoss(ctx context.Context, coin string, isBuy bool, size, trigger decimal.Decimal, clientID string) (domain.Fill, error) {
	return t.placeTrigger(ctx, coin, isBuy, size, trigger, hyperliquid.StopLoss, clientID)
}

// PlaceTakeProfit places a reduce-only take-profit-market trigger.
func (t *HyperliquidTrader) PlaceTakeProfit(ctx context.Context, coin string, isBuy bool, size, trigger decimal.Decimal, clientID string) (domain.Fill, error) {
	return t.placeTrigger(ctx, coin, isBuy, size, trigger, hyperliquid.TakeProfit, clientID)
}

func (t *HyperliquidTrader) marketOrder(ctx context.Context, coin string, isBuy bool, size decimal.Decimal, slippage float64, reduceOnly bool, clientID string) (domain.Fill, error) {
	px, err := t.signer.SlippagePrice(ctx, coin, isBuy, slippage)
	if err != nil {
		return domain.Fill{}, errors.Wrapf(err, "slippage price %s", coin)
	}

	cloid := cloidFromID(clientID)
	req := hyperliquid.CreateOrderRequest{
		Coin:          coin,
		IsBuy:         isBuy,
		Price:         px,
		Size:          size.InexactFloat64(),
		ReduceOnly:    reduceOnly,
		ClientOrderID: &cloid,
		OrderType: hyperliquid.OrderType{
			Limit: &hyperliquid.LimitOrderType{Tif: hyperliquid.TifIoc},
		},
	}

	st, err := t.signer.Order(ctx, req)
	if err != nil {
		return domain.Fill{}, errors.Wrapf(err, "submit order %s", coin)
	}
	if st.Error != "" {
		return domain.Fill{}, &domain.OrderRejectedError{Coin: coin, Message: st.Error}
	}
	if !st.Filled {
		return domain.Fill{}, &domain.OrderRejectedError{Coin: coin, Message: "Order did not fill"}
	}

	filled := parseDecimal(st.TotalSz)
	if filled.IsZero() {
		filled = size
	}
	t.logger.Info("order filled",
		zap.String("coin", coin),
		zap.Bool("is_buy", isBuy),
		zap.Bool("reduce_only", reduceOnly),
		zap.String("avg_px", st.AvgPx),
		zap.String("size", filled.String()),
		zap.Int64("oid", st.Oid),
	)
	return domain.Fill{Price: parseDecimal(st.AvgPx), Size: filled, OrderID: st.Oid}, nil
}

func (t *HyperliquidTrader) placeTrigger(ctx context.Context, coin string, isBuy bool, size, trigger decimal.Decimal, tpsl hyperliquid.Tpsl, clientID string) (domain.Fill, error) {
	if t.signer == nil {
		return domain.Fill{}, domain.ErrExchangeUnconfigured
	}
	if !trigger.IsPositive() {
		return domain.Fill{}, errors.Errorf("invalid trigger price %s", trigger)
	}

	px := trigger.InexactFloat64()
	cloid := cloidFromID(clientID)
	req := hyperliquid.CreateOrderRequest{
		Coin:          coin,
		IsBuy:         isBuy,
		Price:         px,
		Size:          size.InexactFloat64(),
		ReduceOnly:    true,
		ClientOrderID: &cloid,
		OrderType: hyperliquid.OrderType{
			Trigger: &hyperliquid.TriggerOrderType{
				TriggerPx: px,
				IsMarket:  true,
				Tpsl:      tpsl,
			},
		},
	}

	st, err := t.signer.Order(ctx, req)
	if err != nil {
		return domain.Fill{}, errors.Wrapf(err, "submit %s trigger %s", tpsl, coin)
	}
	if st.Error != "" {
		return domain.Fill{}, &domain.OrderRejectedError{Coin: coin, Message: st.Error}
	}
	return domain.Fill{Price: trigger, Size: size, OrderID: st.Oid}, nil
}

func (t *HyperliquidTrader) userState(ctx context.Context) (clients.ClearinghouseState, error) {
	if t.accountAddr == "" {
		return clients.ClearinghouseState{}, domain.ErrExchangeUnconfigured
	}
	state, err := t.info.ClearinghouseState(ctx, t.accountAddr)
	if err != nil {
		return clients.ClearinghouseState{}, errors.Wrap(err, "get user state")
	}
	return state, nil
}

// cloidFromID converts a free-form id into a valid Hyperliquid cloid (0x + 32 hex chars).
func cloidFromID(id string) string {
	s := strings.TrimSpace(id)
	if s == "" {
		s = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	sum := sha256.Sum256([]byte(s))
	return "0x" + hex.EncodeToString(sum[:16])
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
