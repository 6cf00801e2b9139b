package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrParse marks model output that could not be turned into a decision.
	ErrParse = errors.New(ReasonUnparseable)
	// ErrPriceUnavailable is returned when a coin has no usable (positive) price.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrExchangeUnconfigured is returned by mutating exchange calls in read-only mode.
	ErrExchangeUnconfigured = errors.New("exchange not configured")
	// ErrNoOpenPosition is returned when closing a coin with no exposure.
	ErrNoOpenPosition = errors.New("no open position")
	// ErrNoData is returned when a provider has no candles for a coin.
	ErrNoData = errors.New("no data")
	// ErrInsufficientData is returned when there are too few candles for indicator warmup.
	ErrInsufficientData = errors.New("insufficient data")
)

// NoOpenPositionError builds the user-facing error for closing a coin that has no position.
func NoOpenPositionError(coin string) error {
	return &noOpenPositionError{coin: coin}
}

type noOpenPositionError struct {
	coin string
}

func (e *noOpenPositionError) Error() string {
	return fmt.Sprintf("No open position for %s", e.coin)
}

func (e *noOpenPositionError) Unwrap() error {
	return ErrNoOpenPosition
}

// OrderRejectedError carries the exchange rejection message verbatim.
type OrderRejectedError struct {
	Coin    string
	Message string
}

func (e *OrderRejectedError) Error() string {
	return e.Message
}

// IsOrderRejected reports whether err is an exchange-side rejection.
func IsOrderRejected(err error) bool {
	var rejected *OrderRejectedError
	return errors.As(err, &rejected)
}

// UnexpectedCycleError wraps any failure that aborted a decision cycle.
type UnexpectedCycleError struct {
	Stage string
	Err   error
}

func (e *UnexpectedCycleError) Error() string {
	return fmt.Sprintf("cycle failed at %s: %v", e.Stage, e.Err)
}

func (e *UnexpectedCycleError) Unwrap() error {
	return e.Err
}

// CycleError wraps err as an UnexpectedCycleError for the given stage.
func CycleError(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &UnexpectedCycleError{Stage: stage, Err: err}
}
