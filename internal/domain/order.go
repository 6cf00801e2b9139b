package domain

import "github.com/shopspring/decimal"

// SizedOrder is an entry order derived from a decision and account state.
type SizedOrder struct {
	Coin     string
	IsBuy    bool
	Size     decimal.Decimal
	Leverage int
	SizeUSD  decimal.Decimal
	SizePct  decimal.Decimal
	Price    decimal.Decimal
}

// Side returns the side the order opens.
func (o SizedOrder) Side() PositionSide {
	if o.IsBuy {
		return PositionSideLong
	}
	return PositionSideShort
}

// Fill is what the exchange reports back for a submitted order.
type Fill struct {
	Price   decimal.Decimal
	Size    decimal.Decimal
	OrderID int64
}

// LegResult reports the outcome of a single order submission.
type LegResult struct {
	Success bool            `json:"success"`
	Price   decimal.Decimal `json:"price"`
	Size    decimal.Decimal `json:"size"`
	OrderID int64           `json:"order_id,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SucceededLeg converts a fill into a successful leg result.
func SucceededLeg(f Fill) LegResult {
	return LegResult{Success: true, Price: f.Price, Size: f.Size, OrderID: f.OrderID}
}

// FailedLeg converts an error into a failed leg result.
func FailedLeg(err error) LegResult {
	return LegResult{Error: err.Error()}
}

// SequencerState is a step of the per-decision order state machine.
type SequencerState string

const (
	StateIdle                 SequencerState = "IDLE"
	StateSizing               SequencerState = "SIZING"
	StateEntrySubmitted       SequencerState = "ENTRY_SUBMITTED"
	StateProtected            SequencerState = "PROTECTED"
	StateProtectionIncomplete SequencerState = "PROTECTION_INCOMPLETE"
	StateEntryFailed          SequencerState = "ENTRY_FAILED"
	StateCloseSubmitted       SequencerState = "CLOSE_SUBMITTED"
	StateDone                 SequencerState = "DONE"
)

// InFlight reports whether a sequence that stopped in this state may have left
// an order on the exchange without a recorded outcome.
func (s SequencerState) InFlight() bool {
	return s == StateEntrySubmitted || s == StateCloseSubmitted
}

// ExecutionResult is the structured outcome of executing one decision.
// Failures are reported in fields, never by panicking.
type ExecutionResult struct {
	SequenceID  string           `json:"sequence_id"`
	Action      Action           `json:"action"`
	Coin        string           `json:"coin,omitempty"`
	Order       *SizedOrder      `json:"order,omitempty"`
	Trade       *LegResult       `json:"trade,omitempty"`
	StopLoss    *LegResult       `json:"stop_loss,omitempty"`
	TakeProfit  *LegResult       `json:"take_profit,omitempty"`
	StopPrice   decimal.Decimal  `json:"sl_price"`
	TargetPrice decimal.Decimal  `json:"tp_price"`
	States      []SequencerState `json:"states"`
	Error       string           `json:"error,omitempty"`
}

// State returns the last state the sequence reached.
func (r ExecutionResult) State() SequencerState {
	if len(r.States) == 0 {
		return StateIdle
	}
	return r.States[len(r.States)-1]
}

// Executed reports whether the main order leg went through.
func (r ExecutionResult) Executed() bool {
	return r.Trade != nil && r.Trade.Success
}
