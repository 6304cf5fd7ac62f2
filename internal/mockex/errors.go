package mockex

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error taxonomy of the mock exchange. None of these are retried or masked
// internally; every one propagates to the engine or strategy that caused it.
var (
	// ErrInvalidParameter covers missing or malformed input. The exchange
	// never corrects, rounds, or defaults a bad parameter.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrOrderNotFound is returned when canceling an unknown or already
	// terminal order. Double-cancel is an error, not a no-op.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnsupportedOrderType rejects any order type other than STOP_LOSS.
	ErrUnsupportedOrderType = errors.New("unsupported order type")

	// ErrInsufficientBalance is the exchange-style -2010 rejection.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDataGap means the requested bar range is unavailable.
	ErrDataGap = errors.New("kline data unavailable for requested range")
)

// CodeInsufficientBalance is the numeric code of the real exchange's
// insufficient-balance rejection, preserved for compatibility with its
// error surface.
const CodeInsufficientBalance = -2010

// InsufficientBalanceError reports a rejected order with the free balance
// that was actually available. It unwraps to ErrInsufficientBalance.
type InsufficientBalanceError struct {
	Asset string
	Need  decimal.Decimal
	Free  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("code=%d insufficient %s balance: need %s, free %s",
		CodeInsufficientBalance, e.Asset, e.Need, e.Free)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }
