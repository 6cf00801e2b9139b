package domain

import "strings"

// Action is the operation requested by a trading decision.
type Action string

const (
	ActionOpenLong  Action = "OPEN_LONG"
	ActionOpenShort Action = "OPEN_SHORT"
	ActionClose     Action = "CLOSE"
	ActionHold      Action = "HOLD"
)

// ParseAction maps a raw string onto a known action.
func ParseAction(s string) (Action, bool) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionOpenLong, ActionOpenShort, ActionClose, ActionHold:
		return a, true
	}
	return "", false
}

// IsOpen reports whether the action opens a new position.
func (a Action) IsOpen() bool {
	return a == ActionOpenLong || a == ActionOpenShort
}

// RequiresCoin reports whether the action must name a coin.
func (a Action) RequiresCoin() bool {
	return a != ActionHold
}

func (a Action) String() string {
	return string(a)
}
