package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore persists position records. Positions are owned by the
// portfolio store and outlive any single valuation.
type PositionStore interface {
	Upsert(ctx context.Context, pos Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	List(ctx context.Context, opts ListOpts) ([]Position, error)
	ListByState(ctx context.Context, state PositionState, opts ListOpts) ([]Position, error)
}

// TransferStore persists the append-only transfer history per position.
// Records are never updated or deleted.
type TransferStore interface {
	Append(ctx context.Context, t Transfer) error
	ListByPosition(ctx context.Context, positionID string) ([]Transfer, error)
}

// QuoteStore persists the historical quote stream per position. Latest returns
// the most recent quote; At returns the newest quote at or before ts (for the
// 24-hour change figure); History returns a bounded chronological window for
// chart rendering.
type QuoteStore interface {
	Insert(ctx context.Context, positionID string, q Quote) error
	Latest(ctx context.Context, positionID string) (Quote, error)
	At(ctx context.Context, positionID string, ts time.Time) (Quote, error)
	History(ctx context.Context, positionID string, from, to time.Time, limit int) ([]Quote, error)
}
