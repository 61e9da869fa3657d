package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/marginview/marginview/internal/domain"
)

// RiskCache implements domain.RiskCache using Redis hashes. The external
// risk engine publishes each position's snapshot at key "risk:{positionID}"
// with fields "margin_call_price", "leverage_ratio", and "ts". Either figure
// may be absent; this service never fills the gap with a derived value.
type RiskCache struct {
	rdb *redis.Client
}

// NewRiskCache creates a RiskCache backed by the given Client.
func NewRiskCache(c *Client) *RiskCache {
	return &RiskCache{rdb: c.Underlying()}
}

func riskKey(positionID string) string {
	return "risk:" + positionID
}

// SetRisk stores a risk snapshot. Only figures present on the snapshot are
// written.
func (rc *RiskCache) SetRisk(ctx context.Context, snap domain.RiskSnapshot) error {
	fields := map[string]interface{}{
		"ts": strconv.FormatInt(snap.UpdatedAt.UnixNano(), 10),
	}
	if snap.MarginCallPrice != nil {
		fields["margin_call_price"] = snap.MarginCallPrice.String()
	}
	if snap.LeverageRatio != nil {
		fields["leverage_ratio"] = snap.LeverageRatio.String()
	}
	if err := rc.rdb.HSet(ctx, riskKey(snap.PositionID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set risk %s: %w", snap.PositionID, err)
	}
	return nil
}

// GetRisk retrieves the risk snapshot for a position. It returns
// domain.ErrNotFound when the risk engine has not published one.
func (rc *RiskCache) GetRisk(ctx context.Context, positionID string) (domain.RiskSnapshot, error) {
	vals, err := rc.rdb.HGetAll(ctx, riskKey(positionID)).Result()
	if err != nil {
		return domain.RiskSnapshot{}, fmt.Errorf("redis: get risk %s: %w", positionID, err)
	}
	if len(vals) == 0 {
		return domain.RiskSnapshot{}, domain.ErrNotFound
	}

	snap := domain.RiskSnapshot{PositionID: positionID}
	if s, ok := vals["margin_call_price"]; ok {
		d, perr := decimal.NewFromString(s)
		if perr != nil {
			return domain.RiskSnapshot{}, fmt.Errorf("redis: parse margin call price for %s: %w", positionID, perr)
		}
		snap.MarginCallPrice = &d
	}
	if s, ok := vals["leverage_ratio"]; ok {
		d, perr := decimal.NewFromString(s)
		if perr != nil {
			return domain.RiskSnapshot{}, fmt.Errorf("redis: parse leverage ratio for %s: %w", positionID, perr)
		}
		snap.LeverageRatio = &d
	}
	if tsStr, ok := vals["ts"]; ok {
		if tsNano, perr := strconv.ParseInt(tsStr, 10, 64); perr == nil {
			snap.UpdatedAt = time.Unix(0, tsNano)
		}
	}

	return snap, nil
}

// Compile-time interface check.
var _ domain.RiskCache = (*RiskCache)(nil)
