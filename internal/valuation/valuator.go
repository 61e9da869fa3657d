// Package valuation derives the live USD price of a synthetic leveraged token
// from its fixed entry terms and the current spot quote. All functions are
// pure over immutable snapshots of their inputs; concurrent calls for
// different positions are independent.
package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/marginview/marginview/internal/domain"
	"github.com/marginview/marginview/internal/num"
)

// Direction classifies a 24-hour price change for the dashboard's arrow
// indicator. A change of exactly zero has no indicator.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
)

// TokenPrice computes the current USD price of the position's margin token.
//
// A SHORT token is a fixed amount of the quote asset minus accrued interest
// priced in the base asset, so it falls as ETH rises:
//
//	price = (initialCollateral/initialPrincipal)·quoteUsd − interest·baseUsd
//
// A LONG token tracks ETH directly minus an interest drag scaled by its entry
// leverage:
//
//	price = baseUsd − (initialPrincipal/initialCollateral)·interest·quoteUsd
//
// The result retains full precision and may be negative; rounding happens
// only at presentation time. When any quote field is missing the valuator
// reports domain.ErrMissingData rather than guessing.
func TokenPrice(p domain.Position, q domain.Quote) (decimal.Decimal, error) {
	if !q.Complete() {
		return decimal.Decimal{}, domain.ErrMissingData
	}

	switch p.Type {
	case domain.PositionTypeShort:
		initialPriceQuote, err := num.SafeDiv(p.InitialCollateral, p.InitialPrincipal)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("valuation: short entry price for %s: %w", p.ID, err)
		}
		return initialPriceQuote.Mul(*q.QuoteUSD).Sub(q.InterestPercent.Mul(*q.BaseUSD)), nil

	case domain.PositionTypeLong:
		initialPriceBase, err := num.SafeDiv(p.InitialPrincipal, p.InitialCollateral)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("valuation: long entry price for %s: %w", p.ID, err)
		}
		return q.BaseUSD.Sub(initialPriceBase.Mul(*q.InterestPercent).Mul(*q.QuoteUSD)), nil

	default:
		return decimal.Decimal{}, fmt.Errorf("valuation: unknown position type %q", p.Type)
	}
}

// PriceChange24h returns priceNow − price24hAgo. Either input being nil means
// the change is not yet known and the indicator is suppressed.
func PriceChange24h(now, dayAgo *decimal.Decimal) *decimal.Decimal {
	if now == nil || dayAgo == nil {
		return nil
	}
	change := now.Sub(*dayAgo)
	return &change
}

// ChangeDirection maps a price change to its arrow indicator. Nil or exactly
// zero yields no indicator.
func ChangeDirection(change *decimal.Decimal) Direction {
	switch {
	case change == nil || change.IsZero():
		return DirectionNone
	case change.IsPositive():
		return DirectionUp
	default:
		return DirectionDown
	}
}

// Explanation is the formula breakdown shown in the price tooltip: the
// symbolic formula plus the same computation with the live numbers plugged
// in. It is a pure function of (position, quote); no hidden view state.
type Explanation struct {
	Formula string
	Numbers string
	Price   decimal.Decimal
}

// Explain builds the formula breakdown for the position's current price.
// Closed positions get no explanation: the formulas are entry-term math and
// meaningless after settlement. The ok result is false when the position is
// closed or the quote is incomplete.
func Explain(p domain.Position, q domain.Quote) (Explanation, bool) {
	if p.Closed() || !q.Complete() {
		return Explanation{}, false
	}

	price, err := TokenPrice(p, q)
	if err != nil {
		return Explanation{}, false
	}

	switch p.Type {
	case domain.PositionTypeShort:
		initialPriceQuote, err := num.SafeDiv(p.InitialCollateral, p.InitialPrincipal)
		if err != nil {
			return Explanation{}, false
		}
		entry := num.FixedFloor(initialPriceQuote, num.USDDigits)
		return Explanation{
			Formula: fmt.Sprintf("%s DAI * Current Price of DAI - Interest * Current Price of ETH", entry),
			Numbers: fmt.Sprintf("%s DAI * $%s - %s * $%s = $%s",
				entry,
				num.USDString(*q.QuoteUSD),
				num.InterestString(*q.InterestPercent),
				num.USDString(*q.BaseUSD),
				num.USDString(price),
			),
			Price: price,
		}, true

	case domain.PositionTypeLong:
		initialPriceBase, err := num.SafeDiv(p.InitialPrincipal, p.InitialCollateral)
		if err != nil {
			return Explanation{}, false
		}
		entry := num.FixedFloor(initialPriceBase, num.USDDigits)
		return Explanation{
			Formula: fmt.Sprintf("Current Price of ETH - %s DAI * Interest * Current Price of DAI", entry),
			Numbers: fmt.Sprintf("$%s - %s DAI * %s * %s = $%s",
				num.USDString(*q.BaseUSD),
				entry,
				num.InterestString(*q.InterestPercent),
				num.USDString(*q.QuoteUSD),
				num.USDString(price),
			),
			Price: price,
		}, true

	default:
		return Explanation{}, false
	}
}
