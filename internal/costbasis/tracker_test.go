package costbasis

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marginview/marginview/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func transfer(amount, price string) domain.Transfer {
	return domain.Transfer{
		ID:         uuid.New(),
		PositionID: "pos-1",
		Amount:     dec(amount),
		Price:      dec(price),
	}
}

func TestComputeWeightedAverage(t *testing.T) {
	// Prices stored scaled by CostScale (100): 200*100 and 220*100.
	transfers := []domain.Transfer{
		transfer("10", "20000"),
		transfer("10", "22000"),
	}

	cb := Compute(transfers)
	assert.True(t, cb.TotalTokens.Equal(dec("20")), "total %s", cb.TotalTokens)
	assert.True(t, cb.AveragePrice.Equal(dec("21000")), "avg %s", cb.AveragePrice)
	assert.True(t, cb.AveragePriceNatural().Equal(dec("210")))
}

func TestComputeWithDisposal(t *testing.T) {
	transfers := []domain.Transfer{
		transfer("30", "10000"),
		transfer("-10", "12000"),
	}

	cb := Compute(transfers)
	assert.True(t, cb.TotalTokens.Equal(dec("20")))
	// (30*10000 - 10*12000) / 20 = 9000
	assert.True(t, cb.AveragePrice.Equal(dec("9000")))
}

func TestComputeZeroNetHolding(t *testing.T) {
	transfers := []domain.Transfer{
		transfer("10", "20000"),
		transfer("-10", "25000"),
	}

	cb := Compute(transfers)
	assert.True(t, cb.TotalTokens.IsZero())
	// averagePrice undefined: no value, never a division error surfacing.
	assert.True(t, cb.AveragePrice.IsZero())

	_, ok := cb.UnrealizedGainsPercent(dec("210"), dec("1"), decimal.Zero)
	assert.False(t, ok)
}

func TestMatchesBalance(t *testing.T) {
	cb := Compute([]domain.Transfer{transfer("10000000000000", "20000")})

	assert.True(t, cb.MatchesBalance(dec("10000000000000")))
	assert.True(t, cb.MatchesBalance(dec("10000000000100")), "within tolerance")
	assert.False(t, cb.MatchesBalance(dec("10000000000101")), "just past tolerance")
	// A disposal not captured as a Transfer leaves the balance far off.
	assert.False(t, cb.MatchesBalance(dec("5000000000000")))
}

func TestCheckBalance(t *testing.T) {
	cb := Compute([]domain.Transfer{transfer("10000000000000", "20000")})

	assert.NoError(t, cb.CheckBalance(dec("10000000000100")), "within tolerance")

	err := cb.CheckBalance(dec("10000000000101"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStaleCostBasis)
}

func TestUnrealizedGainsPercent(t *testing.T) {
	transfers := []domain.Transfer{
		transfer("10000000000000", "20000"),
		transfer("10000000000000", "22000"),
	}
	cb := Compute(transfers)
	balance := dec("20000000000000")
	natural := dec("2") // balance in natural units, positive holding

	gains, ok := cb.UnrealizedGainsPercent(dec("231"), natural, balance)
	require.True(t, ok)
	// ((231 - 210) / 210) * 100 = 10
	assert.True(t, gains.Equal(dec("10")), "got %s", gains)
}

func TestUnrealizedGainsSuppressedOnStaleBalance(t *testing.T) {
	transfers := []domain.Transfer{
		transfer("10000000000000", "20000"),
		transfer("10000000000000", "22000"),
	}
	cb := Compute(transfers)

	// External transfer-out the tracker never saw.
	_, ok := cb.UnrealizedGainsPercent(dec("231"), dec("0.5"), dec("5000000000000"))
	assert.False(t, ok)
}

func TestIsDust(t *testing.T) {
	assert.True(t, IsDust(dec("9999999999")))
	assert.False(t, IsDust(dec("10000000000")), "threshold itself is not dust")
	assert.False(t, IsDust(dec("10000000001")))
	assert.True(t, IsDust(dec("-9999999999")), "dust check uses absolute value")
	assert.True(t, IsDust(decimal.Zero))
}

func TestRoughlyEqual(t *testing.T) {
	tol := decimal.NewFromInt(100)
	assert.True(t, RoughlyEqual(dec("20"), dec("20"), tol))
	assert.True(t, RoughlyEqual(dec("0"), dec("100"), tol))
	assert.False(t, RoughlyEqual(dec("0"), dec("101"), tol))
}
