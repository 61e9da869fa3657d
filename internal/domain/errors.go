package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrMissingData          = errors.New("data not yet available")
	ErrStaleCostBasis       = errors.New("balance diverged from tracked transfers")
	ErrDivisionByZero       = errors.New("division by zero")
	ErrUnsupportedOrderKind = errors.New("unsupported order kind")
)

// userCancelledFragment is the message substring wallets emit when the holder
// rejects a transaction signature request.
const userCancelledFragment = "User denied transaction signature"

// IsUserCancelled reports whether err represents the holder rejecting a
// transaction in their wallet. Such errors are treated as a no-op by callers,
// not logged as system failures.
func IsUserCancelled(err error) bool {
	return err != nil && strings.Contains(err.Error(), userCancelledFragment)
}
