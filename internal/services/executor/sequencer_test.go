package executor

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vadiminshakov/hlpilot/internal/domain"
	"github.com/vadiminshakov/hlpilot/internal/services/risk"
	"github.com/vadiminshakov/hlpilot/internal/storage/orderjournal"
)

type fakeExchange struct {
	balance   domain.Balance
	positions []domain.Position
	price     decimal.Decimal
	fillPrice decimal.Decimal

	leverageErr error
	openErr     error
	closeErr    error
	slErr       error
	tpErr       error

	calls      []string
	protectBuy []bool
	triggers   []decimal.Decimal
}

func (f *fakeExchange) GetBalance(context.Context) (domain.Balance, error) {
	f.calls = append(f.calls, "balance")
	return f.balance, nil
}

func (f *fakeExchange) GetPositions(context.Context) ([]domain.Position, error) {
	f.calls = append(f.calls, "positions")
	return f.positions, nil
}

func (f *fakeExchange) GetPrice(context.Context, string) (decimal.Decimal, error) {
	f.calls = append(f.calls, "price")
	return f.price, nil
}

func (f *fakeExchange) SetLeverage(context.Context, string, int) error {
	f.calls = append(f.calls, "leverage")
	return f.leverageErr
}

func (f *fakeExchange) OpenPosition(_ context.Context, _ string, _ bool, size decimal.Decimal, _ float64, _ string) (domain.Fill, error) {
	f.calls = append(f.calls, "open")
	if f.openErr != nil {
		return domain.Fill{}, f.openErr
	}
	return domain.Fill{Price: f.fillPrice, Size: size, OrderID: 1}, nil
}

func (f *fakeExchange) ClosePosition(context.Context, string, float64, string) (domain.Fill, error) {
	f.calls = append(f.calls, "close")
	if f.closeErr != nil {
		return domain.Fill{}, f.closeErr
	}
	return domain.Fill{Price: f.fillPrice, Size: decimal.RequireFromString("0.02"), OrderID: 4}, nil
}

func (f *fakeExchange) PlaceStopLoss(_ context.Context, _ string, isBuy bool, size, trigger decimal.Decimal, _ string) (domain.Fill, error) {
	f.calls = append(f.calls, "sl")
	f.protectBuy = append(f.protectBuy, isBuy)
	f.triggers = append(f.triggers, trigger)
	if f.slErr != nil {
		return domain.Fill{}, f.slErr
	}
	return domain.Fill{Price: trigger, Size: size, OrderID: 2}, nil
}

func (f *fakeExchange) PlaceTakeProfit(_ context.Context, _ string, isBuy bool, size, trigger decimal.Decimal, _ string) (domain.Fill, error) {
	f.calls = append(f.calls, "tp")
	f.protectBuy = append(f.protectBuy, isBuy)
	f.triggers = append(f.triggers, trigger)
	if f.tpErr != nil {
		return domain.Fill{}, f.tpErr
	}
	return domain.Fill{Price: trigger, Size: size, OrderID: 3}, nil
}

type memJournal struct {
	entries []orderjournal.Entry
}

func (m *memJournal) Record(e orderjournal.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func newExchange() *fakeExchange {
	return &fakeExchange{
		balance:   domain.Balance{Total: decimal.NewFromInt(10000), Available: decimal.NewFromInt(10000)},
		price:     decimal.NewFromInt(50000),
		fillPrice: decimal.NewFromInt(50000),
	}
}

func newSequencer(ex Exchange, j journal) *Sequencer {
	sizer := risk.NewSizer(risk.Limits{MaxPositionSizePct: 20, DefaultSizePct: 3, DefaultLeverage: 1})
	s := NewSequencer(ex, sizer, j, Params{
		StopLossPct:   3,
		TakeProfitPct: 6,
		EntrySlippage: 0.01,
		ExitSlippage:  0.03,
	}, zap.NewNop())
	s.newID = func() string { return "seq-1" }
	return s
}

func f64(v float64) *float64 { return &v }

func openLong() domain.TradingDecision {
	return domain.TradingDecision{Action: domain.ActionOpenLong, Coin: "BTC", Confidence: 0.8, SizePct: f64(10)}
}

func TestSequencer_OpenLongProtected(t *testing.T) {
	ex := newExchange()
	j := &memJournal{}

	res := newSequencer(ex, j).Execute(context.Background(), openLong())

	assert.Empty(t, res.Error)
	assert.True(t, res.Executed())
	require.NotNil(t, res.Order)
	assert.Equal(t, "0.02", res.Order.Size.String())
	assert.Equal(t, "48500", res.StopPrice.String())
	assert.Equal(t, "53000", res.TargetPrice.String())
	assert.True(t, res.StopLoss.Success)
	assert.True(t, res.TakeProfit.Success)
	assert.Equal(t, []bool{false, false}, ex.protectBuy, "protective orders sell against a long")
	assert.Equal(t, []string{"balance", "price", "leverage", "open", "sl", "tp"}, ex.calls)

	want := []domain.SequencerState{domain.StateIdle, domain.StateSizing, domain.StateEntrySubmitted, domain.StateProtected, domain.StateDone}
	assert.Equal(t, want, res.States)
	require.Len(t, j.entries, len(want))
	for i, e := range j.entries {
		assert.Equal(t, want[i], e.State)
		assert.Equal(t, "seq-1", e.SequenceID)
	}
	assert.Equal(t, int64(1), j.entries[3].OrderID)
}

func TestSequencer_OpenShortMirrorsProtection(t *testing.T) {
	ex := newExchange()
	d := openLong()
	d.Action = domain.ActionOpenShort

	res := newSequencer(ex, nil).Execute(context.Background(), d)

	assert.Equal(t, "51500", res.StopPrice.String())
	assert.Equal(t, "47000", res.TargetPrice.String())
	assert.Equal(t, []bool{true, true}, ex.protectBuy)
	assert.False(t, res.Order.IsBuy)
}

func TestSequencer_StopLossFailsTakeProfitStillPlaced(t *testing.T) {
	ex := newExchange()
	ex.slErr = &domain.OrderRejectedError{Coin: "BTC", Message: "Invalid TP/SL price."}

	res := newSequencer(ex, nil).Execute(context.Background(), openLong())

	assert.True(t, res.Executed())
	require.NotNil(t, res.StopLoss)
	assert.False(t, res.StopLoss.Success)
	assert.Equal(t, "Invalid TP/SL price.", res.StopLoss.Error)
	require.NotNil(t, res.TakeProfit)
	assert.True(t, res.TakeProfit.Success)
	assert.Contains(t, ex.calls, "tp")
	assert.Equal(t, domain.StateDone, res.State())
	assert.Contains(t, res.States, domain.StateProtectionIncomplete)
}

func TestSequencer_LeverageFailureDoesNotBlockEntry(t *testing.T) {
	ex := newExchange()
	ex.leverageErr = errors.New("leverage update rejected")

	res := newSequencer(ex, nil).Execute(context.Background(), openLong())

	assert.True(t, res.Executed())
	assert.Contains(t, res.States, domain.StateProtected)
}

func TestSequencer_EntryRejected(t *testing.T) {
	ex := newExchange()
	ex.openErr = &domain.OrderRejectedError{Coin: "BTC", Message: "Insufficient margin to place order."}

	res := newSequencer(ex, nil).Execute(context.Background(), openLong())

	assert.False(t, res.Executed())
	assert.Equal(t, "Insufficient margin to place order.", res.Error)
	assert.Nil(t, res.StopLoss)
	assert.Nil(t, res.TakeProfit)
	assert.NotContains(t, ex.calls, "sl")
	assert.Equal(t, []domain.SequencerState{
		domain.StateIdle, domain.StateSizing, domain.StateEntrySubmitted, domain.StateEntryFailed, domain.StateDone,
	}, res.States)
}

func TestSequencer_FailureLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		openErr error
		price   decimal.Decimal
		level   zapcore.Level
		message string
	}{
		{
			name:    "exchange rejection is a warning",
			openErr: &domain.OrderRejectedError{Coin: "BTC", Message: "Insufficient margin to place order."},
			price:   decimal.NewFromInt(50000),
			level:   zapcore.WarnLevel,
			message: "order rejected by exchange",
		},
		{
			name:    "transport failure is an error",
			openErr: errors.New("connection reset"),
			price:   decimal.NewFromInt(50000),
			level:   zapcore.ErrorLevel,
			message: "execution failed",
		},
		{
			name:    "sizing failure is an error",
			price:   decimal.Zero,
			level:   zapcore.ErrorLevel,
			message: "execution failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := newExchange()
			ex.openErr = tt.openErr
			ex.price = tt.price

			core, logs := observer.New(zapcore.WarnLevel)
			s := newSequencer(ex, nil)
			s.logger = zap.New(core)

			res := s.Execute(context.Background(), openLong())
			require.False(t, res.Executed())

			entries := logs.FilterMessage(tt.message).All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
		})
	}
}

func TestSequencer_SizingFailure(t *testing.T) {
	ex := newExchange()
	ex.price = decimal.Zero

	res := newSequencer(ex, nil).Execute(context.Background(), openLong())

	assert.False(t, res.Executed())
	assert.Contains(t, res.Error, "price unavailable")
	assert.NotContains(t, ex.calls, "open")
	assert.Contains(t, res.States, domain.StateEntryFailed)
}

func TestSequencer_CloseWithoutPosition(t *testing.T) {
	ex := newExchange()

	res := newSequencer(ex, nil).Execute(context.Background(), domain.TradingDecision{Action: domain.ActionClose, Coin: "BTC"})

	assert.False(t, res.Executed())
	assert.Equal(t, "No open position for BTC", res.Error)
	assert.NotContains(t, ex.calls, "close")
	assert.Equal(t, []domain.SequencerState{domain.StateIdle, domain.StateDone}, res.States)
}

func TestSequencer_Close(t *testing.T) {
	ex := newExchange()
	ex.fillPrice = decimal.NewFromInt(51000)
	ex.positions = []domain.Position{{Coin: "BTC", Size: decimal.RequireFromString("0.02"), EntryPrice: decimal.NewFromInt(50000)}}

	res := newSequencer(ex, nil).Execute(context.Background(), domain.TradingDecision{Action: domain.ActionClose, Coin: "BTC"})

	assert.True(t, res.Executed())
	assert.Equal(t, "51000", res.Trade.Price.String())
	assert.Equal(t, []domain.SequencerState{domain.StateIdle, domain.StateCloseSubmitted, domain.StateDone}, res.States)
}

func TestSequencer_HoldIsIdempotent(t *testing.T) {
	ex := newExchange()
	s := newSequencer(ex, nil)

	first := s.Execute(context.Background(), domain.HoldDecision("waiting"))
	second := s.Execute(context.Background(), domain.HoldDecision("waiting"))

	assert.Equal(t, first, second)
	assert.Empty(t, ex.calls)
	assert.False(t, first.Executed())
	assert.Equal(t, []domain.SequencerState{domain.StateIdle, domain.StateDone}, first.States)
}

func TestProtectivePrices(t *testing.T) {
	tests := []struct {
		name   string
		side   domain.PositionSide
		entry  string
		sl, tp float64
		wantSL string
		wantTP string
	}{
		{name: "long defaults", side: domain.PositionSideLong, entry: "50000", sl: 3, tp: 6, wantSL: "48500", wantTP: "53000"},
		{name: "short defaults", side: domain.PositionSideShort, entry: "50000", sl: 3, tp: 6, wantSL: "51500", wantTP: "47000"},
		{name: "rounded to one decimal", side: domain.PositionSideLong, entry: "3000.55", sl: 3, tp: 6, wantSL: "2910.5", wantTP: "3180.6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sl, tp := ProtectivePrices(tt.side, decimal.RequireFromString(tt.entry), tt.sl, tt.tp, 1)
			assert.Equal(t, tt.wantSL, sl.String())
			assert.Equal(t, tt.wantTP, tp.String())
		})
	}
}
