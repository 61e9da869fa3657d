package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChartPoint is one sample on the position price chart. Points are produced
// in chronological order and are immutable once added to a series.
type ChartPoint struct {
	Time             time.Time
	MarginTokenPrice decimal.Decimal
	BasePrice        decimal.Decimal
}
