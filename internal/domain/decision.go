package domain

import "strings"

const (
	// DefaultSizePct is used when the model omits size_pct.
	DefaultSizePct = 3.0
	// DefaultStopLossPct is used when the model omits stop_loss_pct.
	DefaultStopLossPct = 3.0
	// DefaultTakeProfitPct is used when the model omits take_profit_pct.
	DefaultTakeProfitPct = 6.0

	// ReasonUnparseable is the reasoning attached to decisions built from unreadable model output.
	ReasonUnparseable = "could not parse response"

	defaultReasoning = "no reasoning provided"
)

// TradingDecision is the validated decision consumed by execution.
// Optional numeric fields stay nil when the model did not send them so that
// sizing can fall back to configured defaults.
type TradingDecision struct {
	Action        Action   `json:"decision"`
	Coin          string   `json:"coin,omitempty"`
	Confidence    float64  `json:"confidence"`
	SizePct       *float64 `json:"size_pct,omitempty"`
	Leverage      *int     `json:"leverage,omitempty"`
	StopLossPct   *float64 `json:"stop_loss_pct,omitempty"`
	TakeProfitPct *float64 `json:"take_profit_pct,omitempty"`
	Reasoning     string   `json:"reasoning"`
}

// HoldDecision builds the fallback decision. Reasoning is never left empty.
func HoldDecision(reason string) TradingDecision {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ReasonUnparseable
	}
	return TradingDecision{Action: ActionHold, Reasoning: reason}
}

// StopLossOrDefault returns the requested stop-loss distance in percent.
func (d TradingDecision) StopLossOrDefault() float64 {
	if d.StopLossPct != nil && *d.StopLossPct > 0 {
		return *d.StopLossPct
	}
	return DefaultStopLossPct
}

// TakeProfitOrDefault returns the requested take-profit distance in percent.
func (d TradingDecision) TakeProfitOrDefault() float64 {
	if d.TakeProfitPct != nil && *d.TakeProfitPct > 0 {
		return *d.TakeProfitPct
	}
	return DefaultTakeProfitPct
}

// ParseResult is the outcome of reading a model response: either a valid
// decision or the reason it was rejected.
type ParseResult struct {
	decision TradingDecision
	reason   string
	valid    bool
}

// Valid wraps an accepted decision.
func Valid(d TradingDecision) ParseResult {
	if strings.TrimSpace(d.Reasoning) == "" {
		d.Reasoning = defaultReasoning
	}
	return ParseResult{decision: d, valid: true}
}

// Invalid wraps a rejection reason.
func Invalid(reason string) ParseResult {
	if strings.TrimSpace(reason) == "" {
		reason = ReasonUnparseable
	}
	return ParseResult{reason: reason}
}

// Err returns nil for accepted results. Rejections match ErrParse and carry the reason as message.
func (r ParseResult) Err() error {
	if r.valid {
		return nil
	}
	return &parseError{reason: r.reason}
}

type parseError struct {
	reason string
}

func (e *parseError) Error() string { return e.reason }

func (e *parseError) Is(target error) bool { return target == ErrParse }

// Decision returns the accepted decision and true, or a zero value and false.
func (r ParseResult) Decision() (TradingDecision, bool) {
	return r.decision, r.valid
}

// Reason returns the rejection reason for invalid results.
func (r ParseResult) Reason() string {
	return r.reason
}

// IsValid reports whether the response produced an accepted decision.
func (r ParseResult) IsValid() bool {
	return r.valid
}

// OrHold resolves the result into something execution can act on.
func (r ParseResult) OrHold() TradingDecision {
	if r.valid {
		return r.decision
	}
	return HoldDecision(r.reason)
}
