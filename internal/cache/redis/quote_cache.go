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

// QuoteCache implements domain.QuoteCache using Redis hashes. Each position's
// latest quote is stored at key "quote:{positionID}" with fields "base_usd",
// "quote_usd", "interest", and "ts" (Unix nanosecond timestamp). A field may
// be absent while the upstream feed has not yet produced it; readers get a
// Quote with the corresponding pointer nil.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(positionID string) string {
	return "quote:" + positionID
}

// SetLatest stores the latest quote for a position. Only fields present on
// the quote are written.
func (qc *QuoteCache) SetLatest(ctx context.Context, positionID string, q domain.Quote) error {
	fields := map[string]interface{}{
		"ts": strconv.FormatInt(q.Timestamp.UnixNano(), 10),
	}
	if q.BaseUSD != nil {
		fields["base_usd"] = q.BaseUSD.String()
	}
	if q.QuoteUSD != nil {
		fields["quote_usd"] = q.QuoteUSD.String()
	}
	if q.InterestPercent != nil {
		fields["interest"] = q.InterestPercent.String()
	}
	if err := qc.rdb.HSet(ctx, quoteKey(positionID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", positionID, err)
	}
	return nil
}

// GetLatest retrieves the latest quote for a position. It returns
// domain.ErrNotFound when no quote has been stored yet.
func (qc *QuoteCache) GetLatest(ctx context.Context, positionID string) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(positionID)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", positionID, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	var q domain.Quote
	for field, dst := range map[string]**decimal.Decimal{
		"base_usd":  &q.BaseUSD,
		"quote_usd": &q.QuoteUSD,
		"interest":  &q.InterestPercent,
	} {
		s, ok := vals[field]
		if !ok {
			continue
		}
		d, perr := decimal.NewFromString(s)
		if perr != nil {
			return domain.Quote{}, fmt.Errorf("redis: parse quote field %s for %s: %w", field, positionID, perr)
		}
		*dst = &d
	}

	if tsStr, ok := vals["ts"]; ok {
		tsNano, perr := strconv.ParseInt(tsStr, 10, 64)
		if perr != nil {
			return domain.Quote{}, fmt.Errorf("redis: parse quote ts for %s: %w", positionID, perr)
		}
		q.Timestamp = time.Unix(0, tsNano)
	}

	return q, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
