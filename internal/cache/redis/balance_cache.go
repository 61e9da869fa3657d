package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/marginview/marginview/internal/domain"
)

// BalanceCache implements domain.BalanceCache using Redis hashes. Each token
// contract's live balance is stored at key "balance:{contract}" with fields
// "amount" (base units, exact decimal string) and "ts". The chain watcher
// writes; this service only reads.
type BalanceCache struct {
	rdb *redis.Client
}

// NewBalanceCache creates a BalanceCache backed by the given Client.
func NewBalanceCache(c *Client) *BalanceCache {
	return &BalanceCache{rdb: c.Underlying()}
}

func balanceKey(contract common.Address) string {
	return "balance:" + contract.Hex()
}

// SetBalance stores the live base-unit balance for a token contract.
func (bc *BalanceCache) SetBalance(ctx context.Context, contract common.Address, balance decimal.Decimal, ts time.Time) error {
	fields := map[string]interface{}{
		"amount": balance.String(),
		"ts":     strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := bc.rdb.HSet(ctx, balanceKey(contract), fields).Err(); err != nil {
		return fmt.Errorf("redis: set balance %s: %w", contract.Hex(), err)
	}
	return nil
}

// GetBalance retrieves the live balance for a token contract. It returns
// domain.ErrNotFound when the watcher has not reported one yet.
func (bc *BalanceCache) GetBalance(ctx context.Context, contract common.Address) (decimal.Decimal, error) {
	vals, err := bc.rdb.HGetAll(ctx, balanceKey(contract)).Result()
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("redis: get balance %s: %w", contract.Hex(), err)
	}
	amountStr, ok := vals["amount"]
	if !ok {
		return decimal.Decimal{}, domain.ErrNotFound
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("redis: parse balance %s: %w", contract.Hex(), err)
	}
	return amount, nil
}

// Compile-time interface check.
var _ domain.BalanceCache = (*BalanceCache)(nil)
