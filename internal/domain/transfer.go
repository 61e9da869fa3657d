package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostScale is the fixed factor by which transfer prices are stored scaled,
// retaining two extra digits of precision. Consumers divide the weighted
// average by CostScale to recover the natural per-unit cost.
const CostScale = 100

// Transfer is one append-only acquisition or disposal record for a position.
// Amount is signed (positive = acquisition, negative = disposal) in base
// units. Price is the per-unit cost at transfer time, scaled by CostScale.
// Transfers are never mutated or deleted once recorded.
type Transfer struct {
	ID         uuid.UUID
	PositionID string
	Amount     decimal.Decimal
	Price      decimal.Decimal
	TxHash     string
	Timestamp  time.Time
}
