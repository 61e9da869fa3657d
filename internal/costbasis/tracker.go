// Package costbasis aggregates a position's transfer history into a
// weighted-average acquisition price and validates it against the live
// on-chain balance. The cost basis is recomputed on demand from the transfer
// set and never cached across balance changes.
package costbasis

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/marginview/marginview/internal/domain"
	"github.com/marginview/marginview/internal/num"
)

// BalanceTolerance is the maximum absolute divergence, in base units,
// between the tracked acquisition total and the live balance before the cost
// basis is considered stale.
var BalanceTolerance = decimal.NewFromInt(100)

// DustThreshold is the base-unit balance below which an amount is treated as
// economically zero. A CLOSED position holding only dust is hidden entirely
// rather than shown as a near-zero row.
var DustThreshold = decimal.NewFromInt(10_000_000_000)

// CostBasis is the derived acquisition summary for one position.
// AveragePrice carries the same domain.CostScale factor as the underlying
// transfer prices; divide by the scale to recover the natural per-unit cost.
type CostBasis struct {
	TotalTokens  decimal.Decimal
	AveragePrice decimal.Decimal
}

// Compute derives the cost basis from the position's transfer set.
// totalTokens is the signed sum of transfer amounts; averagePrice is the
// amount-weighted mean of the scaled transfer prices. With no net holding
// the average is undefined and left at zero.
func Compute(transfers []domain.Transfer) CostBasis {
	total := decimal.Zero
	weighted := decimal.Zero
	for _, t := range transfers {
		total = total.Add(t.Amount)
		weighted = weighted.Add(t.Amount.Mul(t.Price))
	}

	avg, err := num.SafeDiv(weighted, total)
	if err != nil {
		// totalTokens = 0: no value, dependent figures become unavailable.
		return CostBasis{TotalTokens: total}
	}
	return CostBasis{TotalTokens: total, AveragePrice: avg}
}

// AveragePriceNatural returns the average acquisition price with the storage
// scale divided out.
func (cb CostBasis) AveragePriceNatural() decimal.Decimal {
	return cb.AveragePrice.Div(decimal.NewFromInt(domain.CostScale))
}

// MatchesBalance reports whether the live balance still agrees with the
// tracked acquisition total within BalanceTolerance. The tracker has no
// visibility into transfers outside its recorded set; once the balance
// diverges, gains computed from the recorded basis would be misleading and
// must be suppressed.
func (cb CostBasis) MatchesBalance(balance decimal.Decimal) bool {
	return RoughlyEqual(cb.TotalTokens, balance, BalanceTolerance)
}

// CheckBalance returns domain.ErrStaleCostBasis when the live balance has
// diverged from the tracked acquisition total beyond BalanceTolerance.
func (cb CostBasis) CheckBalance(balance decimal.Decimal) error {
	if !cb.MatchesBalance(balance) {
		return fmt.Errorf("costbasis: tracked %s vs live %s: %w",
			cb.TotalTokens.String(), balance.String(), domain.ErrStaleCostBasis)
	}
	return nil
}

// UnrealizedGainsPercent computes ((price − avg) / avg) · 100 against the
// natural average price. The figure is only trustworthy when the position
// holds a positive natural balance, the average price is positive, and the
// balance guard passes; otherwise ok is false and callers report no value.
func (cb CostBasis) UnrealizedGainsPercent(price, naturalBalance, liveBalance decimal.Decimal) (decimal.Decimal, bool) {
	if naturalBalance.Sign() <= 0 || !cb.TotalTokens.IsPositive() || !cb.MatchesBalance(liveBalance) {
		return decimal.Decimal{}, false
	}
	avg := cb.AveragePriceNatural()
	if !avg.IsPositive() {
		return decimal.Decimal{}, false
	}
	gains := price.Sub(avg).Div(avg).Mul(decimal.NewFromInt(100))
	return gains, true
}

// RoughlyEqual reports |a − b| ≤ tolerance.
func RoughlyEqual(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// IsDust reports whether a base-unit amount is strictly below DustThreshold.
// Exactly DustThreshold is not dust.
func IsDust(amount decimal.Decimal) bool {
	return amount.Abs().LessThan(DustThreshold)
}
