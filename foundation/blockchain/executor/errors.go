package executor

import (
	"errors"
	"fmt"
)

// Set of reasons a transaction is declined. A declined transaction makes no
// state changes.
var (
	ErrBlockGasLimit     = errors.New("block gas limit reached")
	ErrIntrinsicGas      = errors.New("intrinsic gas exceeds gas limit")
	ErrNonce             = errors.New("invalid nonce")
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")
	ErrInvalidSender     = errors.New("invalid sender signature")
)

// NotReadyError is returned when a transaction fails validation and is not
// applied.
type NotReadyError struct {
	Err    error
	Reason string
}

// newNotReady constructs a NotReadyError for the reason.
func newNotReady(err error, format string, args ...any) *NotReadyError {
	return &NotReadyError{
		Err:    err,
		Reason: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (nre *NotReadyError) Error() string {
	return fmt.Sprintf("%s: %s", nre.Err, nre.Reason)
}

// Unwrap returns the sentinel describing the reason.
func (nre *NotReadyError) Unwrap() error {
	return nre.Err
}

// IsNotReady reports whether the error declined a transaction.
func IsNotReady(err error) bool {
	var nre *NotReadyError
	return errors.As(err, &nre)
}
