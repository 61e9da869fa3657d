package portfolio

import (
	"github.com/marginview/marginview/internal/chart"
	"github.com/marginview/marginview/internal/domain"
	"github.com/marginview/marginview/internal/valuation"
)

// Placeholder is rendered wherever a figure is unavailable. Values never
// display as NaN or garbage; they degrade to this marker.
const Placeholder = "–"

// Row is one line of the portfolio table, fully formatted for display.
// All fields are plain immutable values with no behavior attached.
type Row struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Type            domain.PositionType `json:"type"`
	Color           string              `json:"color"`
	Leverage        string              `json:"leverage"`
	PriceUSD        string              `json:"price_usd"`
	Change          string              `json:"change"`
	ChangeDirection valuation.Direction `json:"change_direction"`
	Owned           string              `json:"owned"`
	ValueUSD        string              `json:"value_usd"`
	UnrealizedGains string              `json:"unrealized_gains"`
	IsClosing       bool                `json:"is_closing"`
	IsClosed        bool                `json:"is_closed"`
}

// ChartView is the full payload behind the position chart: the point series,
// the derived axis domain, and every label the chart header renders.
type ChartView struct {
	PositionID         string                 `json:"position_id"`
	Color              string                 `json:"color"`
	Points             []domain.ChartPoint    `json:"points"`
	Axis               *chart.AxisDomain      `json:"axis,omitempty"`
	HideMarginCallLine bool                   `json:"hide_margin_call_line"`
	PriceUSD           string                 `json:"price_usd"`
	BasePriceUSD       string                 `json:"base_price_usd"`
	ChangeDirection    valuation.Direction    `json:"change_direction"`
	BaseDirection      valuation.Direction    `json:"base_direction"`
	MarginCallPriceUSD string                 `json:"margin_call_price_usd"`
	Leverage           string                 `json:"leverage"`
	ExpiryLabel        string                 `json:"expiry_label"`
	StartDate          string                 `json:"start_date"`
	EndDate            string                 `json:"end_date"`
	Explanation        *valuation.Explanation `json:"explanation,omitempty"`
}

// TruncateAddress shortens an address or transaction hash for display:
// "0x1234...abcd".
func TruncateAddress(address string) string {
	i := 0
	if len(address) >= 2 && address[0] == '0' && address[1] == 'x' {
		i = 2
	}
	if len(address) < i+8 {
		return address
	}
	return "0x" + address[i:i+4] + "..." + address[len(address)-4:]
}
