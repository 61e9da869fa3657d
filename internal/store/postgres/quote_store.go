package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/marginview/marginview/internal/domain"
)

// QuoteStore implements domain.QuoteStore using PostgreSQL.
type QuoteStore struct {
	pool *pgxpool.Pool
}

// NewQuoteStore creates a new QuoteStore backed by the given connection pool.
func NewQuoteStore(pool *pgxpool.Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

func scanQuoteRow(row pgx.Row) (domain.Quote, error) {
	var q domain.Quote
	var baseUSD, quoteUSD, interest *string

	if err := row.Scan(&baseUSD, &quoteUSD, &interest, &q.Timestamp); err != nil {
		return domain.Quote{}, err
	}
	var err error
	if q.BaseUSD, err = parseDecimalPtr(baseUSD); err != nil {
		return domain.Quote{}, fmt.Errorf("base_usd: %w", err)
	}
	if q.QuoteUSD, err = parseDecimalPtr(quoteUSD); err != nil {
		return domain.Quote{}, fmt.Errorf("quote_usd: %w", err)
	}
	if q.InterestPercent, err = parseDecimalPtr(interest); err != nil {
		return domain.Quote{}, fmt.Errorf("interest: %w", err)
	}
	return q, nil
}

func parseDecimalPtr(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalPtrArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

// Insert appends a quote snapshot. Partial quotes are stored as-is; the nil
// fields survive the round trip so consumers see the same incomplete state the
// feed delivered.
func (s *QuoteStore) Insert(ctx context.Context, positionID string, q domain.Quote) error {
	const query = `
		INSERT INTO quotes (position_id, base_usd, quote_usd, interest, ts)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query, positionID,
		decimalPtrArg(q.BaseUSD), decimalPtrArg(q.QuoteUSD), decimalPtrArg(q.InterestPercent),
		q.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: insert quote for %s: %w", positionID, err)
	}
	return nil
}

// Latest returns the most recent quote for a position.
func (s *QuoteStore) Latest(ctx context.Context, positionID string) (domain.Quote, error) {
	const query = `
		SELECT base_usd, quote_usd, interest, ts
		FROM quotes
		WHERE position_id = $1
		ORDER BY ts DESC
		LIMIT 1`

	q, err := scanQuoteRow(s.pool.QueryRow(ctx, query, positionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quote{}, domain.ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("postgres: latest quote for %s: %w", positionID, err)
	}
	return q, nil
}

// At returns the newest quote at or before ts.
func (s *QuoteStore) At(ctx context.Context, positionID string, ts time.Time) (domain.Quote, error) {
	const query = `
		SELECT base_usd, quote_usd, interest, ts
		FROM quotes
		WHERE position_id = $1 AND ts <= $2
		ORDER BY ts DESC
		LIMIT 1`

	q, err := scanQuoteRow(s.pool.QueryRow(ctx, query, positionID, ts))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quote{}, domain.ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("postgres: quote at %s for %s: %w", ts.Format(time.RFC3339), positionID, err)
	}
	return q, nil
}

// History returns quotes in [from, to] in chronological order, capped at limit.
// When the window holds more than limit rows the newest rows win, so the chart
// always ends at the present.
func (s *QuoteStore) History(ctx context.Context, positionID string, from, to time.Time, limit int) ([]domain.Quote, error) {
	const query = `
		SELECT base_usd, quote_usd, interest, ts FROM (
			SELECT base_usd, quote_usd, interest, ts
			FROM quotes
			WHERE position_id = $1 AND ts >= $2 AND ts <= $3
			ORDER BY ts DESC
			LIMIT $4
		) recent ORDER BY ts ASC`

	rows, err := s.pool.Query(ctx, query, positionID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: quote history for %s: %w", positionID, err)
	}
	defer rows.Close()

	var quotes []domain.Quote
	for rows.Next() {
		q, err := scanQuoteRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate quotes: %w", err)
	}
	return quotes, nil
}

// ListBefore returns every quote older than the cutoff, across positions, in
// chronological order. The archiver is the only consumer.
func (s *QuoteStore) ListBefore(ctx context.Context, before time.Time) ([]domain.PositionQuote, error) {
	const query = `
		SELECT position_id, base_usd, quote_usd, interest, ts
		FROM quotes
		WHERE ts < $1
		ORDER BY ts ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list quotes before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var quotes []domain.PositionQuote
	for rows.Next() {
		var pq domain.PositionQuote
		var baseUSD, quoteUSD, interest *string
		if err := rows.Scan(&pq.PositionID, &baseUSD, &quoteUSD, &interest, &pq.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan quote: %w", err)
		}
		if pq.BaseUSD, err = parseDecimalPtr(baseUSD); err != nil {
			return nil, fmt.Errorf("postgres: scan quote base_usd: %w", err)
		}
		if pq.QuoteUSD, err = parseDecimalPtr(quoteUSD); err != nil {
			return nil, fmt.Errorf("postgres: scan quote quote_usd: %w", err)
		}
		if pq.InterestPercent, err = parseDecimalPtr(interest); err != nil {
			return nil, fmt.Errorf("postgres: scan quote interest: %w", err)
		}
		quotes = append(quotes, pq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate quotes: %w", err)
	}
	return quotes, nil
}

// Compile-time interface check.
var _ domain.QuoteStore = (*QuoteStore)(nil)
