package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// QuoteCache provides fast access to the latest quote per position.
type QuoteCache interface {
	SetLatest(ctx context.Context, positionID string, q Quote) error
	GetLatest(ctx context.Context, positionID string) (Quote, error)
}

// BalanceCache stores the live on-chain token balance per contract address,
// in base units. Balances are written by an external chain watcher; this
// service only reads them.
type BalanceCache interface {
	SetBalance(ctx context.Context, contract common.Address, balance decimal.Decimal, ts time.Time) error
	GetBalance(ctx context.Context, contract common.Address) (decimal.Decimal, error)
}

// RateLimiter limits request rates per key over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RiskCache stores the externally computed risk snapshot per position. The
// margin-call price and leverage ratio are produced by the risk engine; this
// service consumes them read-only.
type RiskCache interface {
	SetRisk(ctx context.Context, snap RiskSnapshot) error
	GetRisk(ctx context.Context, positionID string) (RiskSnapshot, error)
}
