package chart

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marginview/marginview/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func points(prices ...string) []domain.ChartPoint {
	base := time.Date(2019, 4, 12, 0, 0, 0, 0, time.UTC)
	pts := make([]domain.ChartPoint, 0, len(prices))
	for i, p := range prices {
		pts = append(pts, domain.ChartPoint{
			Time:             base.Add(time.Duration(i) * time.Hour),
			MarginTokenPrice: dec(p),
			BasePrice:        dec(p).Mul(dec("2")),
		})
	}
	return pts
}

func TestDomainClampsMarginCallLine(t *testing.T) {
	s := Build(points("90", "100", "110"))

	d, ok := s.Domain(dec("50"), false)
	require.True(t, ok)

	assert.True(t, d.Lowest.Equal(dec("90")))
	assert.True(t, d.Highest.Equal(dec("110")))
	assert.True(t, d.Delta.Equal(dec("20")))
	// clamp floor = 90 - 20*0.25 = 85; max(50, 85) = 85
	assert.True(t, d.MarginCallLine.Equal(dec("85")), "got %s", d.MarginCallLine)
}

func TestDomainKeepsNearbyMarginCall(t *testing.T) {
	s := Build(points("90", "100", "110"))

	d, ok := s.Domain(dec("88"), false)
	require.True(t, ok)
	// 88 is above the clamp floor of 85, so the true threshold renders.
	assert.True(t, d.MarginCallLine.Equal(dec("88")))
}

func TestDomainWithBaseLine(t *testing.T) {
	s := Build(points("90", "100", "110")) // base prices 180..220

	d, ok := s.Domain(dec("50"), true)
	require.True(t, ok)
	assert.True(t, d.Lowest.Equal(dec("90")))
	assert.True(t, d.Highest.Equal(dec("220")))
	assert.True(t, d.Delta.Equal(dec("130")))
}

func TestDomainEmptySeries(t *testing.T) {
	_, ok := Build(nil).Domain(dec("50"), false)
	assert.False(t, ok)
}

func TestBuildPassesThroughInOrder(t *testing.T) {
	pts := points("1", "2", "3")
	s := Build(pts)
	require.Len(t, s.Points, 3)
	for i := range pts {
		assert.True(t, s.Points[i].Time.Equal(pts[i].Time))
		assert.True(t, s.Points[i].MarginTokenPrice.Equal(pts[i].MarginTokenPrice))
	}
}
