package num

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marginview/marginview/internal/domain"
)

func TestSafeDiv(t *testing.T) {
	got, err := SafeDiv(decimal.NewFromInt(150), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("1.5")))

	_, err = SafeDiv(decimal.NewFromInt(1), decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrDivisionByZero)
}

func TestFixedFloor(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		places int32
		want   string
	}{
		{"truncates up-rounding case", "1.999", 2, "1.99"},
		{"pads short values", "1.5", 2, "1.50"},
		{"negative rounds toward -inf", "-8.501", 2, "-8.51"},
		{"exact value unchanged", "219.96", 2, "219.96"},
		{"token digits", "12.34567", 4, "12.3456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FixedFloor(decimal.RequireFromString(tt.in), tt.places))
		})
	}
}

// Formatting a value at the documented precision and re-parsing it must
// reproduce the same displayed string.
func TestFixedFloorRoundTrip(t *testing.T) {
	for _, in := range []string{"219.96", "-8.50", "0.00", "1234.01"} {
		d := decimal.RequireFromString(in)
		s := USDString(d)
		reparsed := decimal.RequireFromString(s)
		assert.Equal(t, s, USDString(reparsed))
	}
}

func TestFromBase(t *testing.T) {
	amount := decimal.RequireFromString("1234500000000000000") // 1.2345 at 18 decimals
	nat := FromBase(amount, 18)
	assert.Equal(t, "1.2345", TokenString(nat))
	assert.True(t, ToBase(nat, 18).Equal(amount))
}
