// Package num holds the exact-decimal arithmetic helpers used by every
// valuation and cost-basis computation. All monetary and token amounts flow
// through shopspring decimals; binary floating point is never used for money,
// so repeated multiplications and divisions accumulate no rounding error.
package num

import (
	"github.com/shopspring/decimal"

	"github.com/marginview/marginview/internal/domain"
)

// Display precisions. USD prices round to 2 places, token amounts to
// TokenDigits places, interest fractions to 4 places, always floor-rounded
// and only at presentation time. Comparisons use the full-precision value.
const (
	USDDigits      = 2
	TokenDigits    = 4
	InterestDigits = 4
)

// SafeDiv divides a by b, returning domain.ErrDivisionByZero when b is zero
// instead of panicking.
func SafeDiv(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Decimal{}, domain.ErrDivisionByZero
	}
	return a.Div(b), nil
}

// FixedFloor renders d with exactly places fractional digits, rounded toward
// negative infinity. This matches the dashboard's display contract: a price
// of 1.999 shows as "1.99", never "2.00".
func FixedFloor(d decimal.Decimal, places int32) string {
	return d.RoundFloor(places).StringFixed(places)
}

// FromBase converts a base-unit amount to its natural-unit representation by
// shifting the decimal point left by the token's decimals.
func FromBase(amount decimal.Decimal, decimals int32) decimal.Decimal {
	return amount.Shift(-decimals)
}

// ToBase converts a natural-unit amount back to base units.
func ToBase(amount decimal.Decimal, decimals int32) decimal.Decimal {
	return amount.Shift(decimals)
}

// USDString formats d as a USD display value (2 digits, floor-rounded).
func USDString(d decimal.Decimal) string {
	return FixedFloor(d, USDDigits)
}

// TokenString formats a natural token amount with the fixed token digit count.
func TokenString(d decimal.Decimal) string {
	return FixedFloor(d, TokenDigits)
}

// InterestString formats an interest fraction with 4 digits.
func InterestString(d decimal.Decimal) string {
	return FixedFloor(d, InterestDigits)
}
