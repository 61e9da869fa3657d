package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a spot-price snapshot consumed by the valuation engine. BaseUSD is
// the ETH/USD price, QuoteUSD the stable-asset/USD price, and InterestPercent
// the accrued interest fraction for the position (monotonically non-decreasing
// over the position's life). Any field may be nil while the upstream feed is
// still warming up; consumers must degrade to an "unavailable" state rather
// than compute with missing inputs.
type Quote struct {
	BaseUSD         *decimal.Decimal
	QuoteUSD        *decimal.Decimal
	InterestPercent *decimal.Decimal
	Timestamp       time.Time
}

// Complete reports whether every field needed by the price formulas is set.
func (q Quote) Complete() bool {
	return q.BaseUSD != nil && q.QuoteUSD != nil && q.InterestPercent != nil
}

// PositionQuote pairs a stored quote with the position it belongs to. The
// archiver uses it when exporting quote history across positions.
type PositionQuote struct {
	PositionID string
	Quote
}

// RiskSnapshot carries the externally computed risk figures for a position.
// The margin-call price and leverage ratio are owned by the risk engine; this
// service only consumes them and never derives its own. Nil means the figure
// is not yet available and its display must be suppressed.
type RiskSnapshot struct {
	PositionID      string
	MarginCallPrice *decimal.Decimal
	LeverageRatio   *decimal.Decimal
	UpdatedAt       time.Time
}
