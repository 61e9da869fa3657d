package valuation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marginview/marginview/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func quote(base, quoteUSD, interest string) domain.Quote {
	return domain.Quote{
		BaseUSD:         decp(base),
		QuoteUSD:        decp(quoteUSD),
		InterestPercent: decp(interest),
	}
}

func TestTokenPriceShort(t *testing.T) {
	p := domain.Position{
		ID:                "short-1",
		Type:              domain.PositionTypeShort,
		InitialCollateral: dec("150"),
		InitialPrincipal:  dec("100"),
		State:             domain.PositionStateActive,
	}

	// 1.5 * 1.00 - 0.05 * 200 = -8.5. The valuator must return the negative
	// price as-is, not clamp it.
	price, err := TokenPrice(p, quote("200", "1.00", "0.05"))
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("-8.5")), "got %s", price)
}

func TestTokenPriceLong(t *testing.T) {
	p := domain.Position{
		ID:                "long-1",
		Type:              domain.PositionTypeLong,
		InitialCollateral: dec("50"),
		InitialPrincipal:  dec("100"),
		State:             domain.PositionStateActive,
	}

	// initialPriceBase = 2; 220 - 2 * 0.02 * 1.00 = 219.96
	price, err := TokenPrice(p, quote("220", "1.00", "0.02"))
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("219.96")), "got %s", price)
}

func TestTokenPriceMissingQuote(t *testing.T) {
	p := domain.Position{
		Type:              domain.PositionTypeLong,
		InitialCollateral: dec("50"),
		InitialPrincipal:  dec("100"),
	}

	q := domain.Quote{BaseUSD: decp("220")} // quoteUsd and interest absent
	_, err := TokenPrice(p, q)
	assert.ErrorIs(t, err, domain.ErrMissingData)
}

func TestTokenPriceClosedPositionStillPrices(t *testing.T) {
	p := domain.Position{
		ID:                "closed-1",
		Type:              domain.PositionTypeShort,
		InitialCollateral: dec("150"),
		InitialPrincipal:  dec("100"),
		State:             domain.PositionStateClosed,
	}

	// Price computation remains valid using the terms at close.
	price, err := TokenPrice(p, quote("200", "1.00", "0.05"))
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("-8.5")))
}

func TestPriceChange24h(t *testing.T) {
	change := PriceChange24h(decp("210"), decp("200"))
	require.NotNil(t, change)
	assert.True(t, change.Equal(dec("10")))

	assert.Nil(t, PriceChange24h(nil, decp("200")))
	assert.Nil(t, PriceChange24h(decp("210"), nil))
}

func TestChangeDirection(t *testing.T) {
	assert.Equal(t, DirectionUp, ChangeDirection(decp("0.01")))
	assert.Equal(t, DirectionDown, ChangeDirection(decp("-0.01")))
	assert.Equal(t, DirectionNone, ChangeDirection(decp("0")))
	assert.Equal(t, DirectionNone, ChangeDirection(nil))
}

func TestExplainShort(t *testing.T) {
	p := domain.Position{
		Type:              domain.PositionTypeShort,
		InitialCollateral: dec("150"),
		InitialPrincipal:  dec("100"),
		State:             domain.PositionStateActive,
	}

	exp, ok := Explain(p, quote("200", "1.00", "0.05"))
	require.True(t, ok)
	assert.Equal(t, "1.50 DAI * Current Price of DAI - Interest * Current Price of ETH", exp.Formula)
	assert.Equal(t, "1.50 DAI * $1.00 - 0.0500 * $200.00 = $-8.50", exp.Numbers)
}

func TestExplainSuppressedWhenClosed(t *testing.T) {
	p := domain.Position{
		Type:              domain.PositionTypeShort,
		InitialCollateral: dec("150"),
		InitialPrincipal:  dec("100"),
		State:             domain.PositionStateClosed,
	}

	_, ok := Explain(p, quote("200", "1.00", "0.05"))
	assert.False(t, ok)
}
