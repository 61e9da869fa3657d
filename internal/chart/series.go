// Package chart assembles the bounded price time series and the vertical
// axis domain for the position chart.
package chart

import (
	"github.com/shopspring/decimal"

	"github.com/marginview/marginview/internal/domain"
)

// clampRatio scales how far below the visible price range the margin-call
// reference line may render: at most delta * 0.25 under the lowest point.
var clampRatio = decimal.RequireFromString("0.25")

// Series is one chronological window of chart points. Each build represents
// a fresh window; a Series is never restarted or appended to.
type Series struct {
	Points []domain.ChartPoint
}

// AxisDomain is the derived vertical range for rendering the series. The
// MarginCallLine is the display position of the margin-call reference: the
// true threshold clamped so it never renders far below the price range. The
// true threshold value stays authoritative for all numeric comparisons.
type AxisDomain struct {
	Lowest         decimal.Decimal
	Highest        decimal.Decimal
	Delta          decimal.Decimal
	MarginCallLine decimal.Decimal
}

// Build wraps the sample window into a Series. Points pass through unchanged
// and in order.
func Build(points []domain.ChartPoint) Series {
	return Series{Points: points}
}

// Domain computes the vertical axis domain across the full series. The min
// and max scan marginTokenPrice, and basePrice as well when the base line is
// shown. The displayed margin-call line is
//
//	max(marginCallPrice, lowest − delta·0.25)
//
// so a deep threshold cannot squash the chart while the line still marks it.
// ok is false for an empty series.
func (s Series) Domain(marginCallPrice decimal.Decimal, showBaseLine bool) (AxisDomain, bool) {
	if len(s.Points) == 0 {
		return AxisDomain{}, false
	}

	lowest := s.Points[0].MarginTokenPrice
	highest := s.Points[0].MarginTokenPrice
	for _, p := range s.Points {
		if p.MarginTokenPrice.LessThan(lowest) {
			lowest = p.MarginTokenPrice
		}
		if p.MarginTokenPrice.GreaterThan(highest) {
			highest = p.MarginTokenPrice
		}
		if showBaseLine {
			if p.BasePrice.LessThan(lowest) {
				lowest = p.BasePrice
			}
			if p.BasePrice.GreaterThan(highest) {
				highest = p.BasePrice
			}
		}
	}

	delta := highest.Sub(lowest)
	floor := lowest.Sub(delta.Mul(clampRatio))
	line := marginCallPrice
	if floor.GreaterThan(line) {
		line = floor
	}

	return AxisDomain{
		Lowest:         lowest,
		Highest:        highest,
		Delta:          delta,
		MarginCallLine: line,
	}, true
}
