package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PositionType distinguishes leveraged-long tokens (LETH) from
// inverse-short tokens (sETH).
type PositionType string

const (
	PositionTypeLong  PositionType = "LONG"
	PositionTypeShort PositionType = "SHORT"
)

// PositionState is the lifecycle state of a position.
type PositionState string

const (
	PositionStateActive   PositionState = "ACTIVE"
	PositionStateClosing  PositionState = "CLOSING"
	PositionStateInactive PositionState = "INACTIVE"
	PositionStateClosed   PositionState = "CLOSED"
)

// Token identifies the synthetic margin token backing a position.
type Token struct {
	Symbol          string
	Decimals        int32
	ContractAddress common.Address
}

// Position represents a synthetic leveraged token position. InitialCollateral
// and InitialPrincipal are the terms struck at open time, in base units; they
// are immutable for the lifetime of the position and must both be positive
// while the position is ACTIVE.
type Position struct {
	ID                string
	Name              string
	Type              PositionType
	Token             Token
	InitialCollateral decimal.Decimal
	InitialPrincipal  decimal.Decimal
	ExpiresAt         time.Time
	State             PositionState
	IsClosing         bool
	OpenedAt          time.Time
	ClosedAt          *time.Time
}

// Closed reports whether the position has settled. Valuation formulas remain
// valid after settlement using the terms at close, but interest-derived
// explanatory text must not be produced for closed positions.
func (p Position) Closed() bool {
	return p.State == PositionStateClosed
}

// AccentColor is the display color the dashboard uses for this position type.
func (p Position) AccentColor() string {
	if p.Type == PositionTypeShort {
		return "#ff6a31"
	}
	return "#017bff"
}
