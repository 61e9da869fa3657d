package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/marginview/marginview/internal/domain"
)

// TransferStore implements domain.TransferStore using PostgreSQL. The table is
// append-only; there is no update or delete path.
type TransferStore struct {
	pool *pgxpool.Pool
}

// NewTransferStore creates a new TransferStore backed by the given connection pool.
func NewTransferStore(pool *pgxpool.Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Append records one acquisition or disposal. Re-inserting the same transfer id
// is a no-op so feed replays stay idempotent.
func (s *TransferStore) Append(ctx context.Context, t domain.Transfer) error {
	const query = `
		INSERT INTO transfers (id, position_id, amount, price, tx_hash, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, t.ID, t.PositionID, t.Amount, t.Price, t.TxHash, t.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: append transfer %s: %w", t.ID, err)
	}
	return nil
}

// ListByPosition returns the full transfer history for a position in
// chronological order. Cost-basis math folds over the complete history, so
// there is no pagination here.
func (s *TransferStore) ListByPosition(ctx context.Context, positionID string) ([]domain.Transfer, error) {
	const query = `
		SELECT id, position_id, amount, price, tx_hash, ts
		FROM transfers
		WHERE position_id = $1
		ORDER BY ts ASC`

	rows, err := s.pool.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transfers for %s: %w", positionID, err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		var amount, price decimal.Decimal
		if err := rows.Scan(&t.ID, &t.PositionID, &amount, &price, &t.TxHash, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan transfer: %w", err)
		}
		t.Amount = amount
		t.Price = price
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate transfers: %w", err)
	}
	return transfers, nil
}

// ListBefore returns every transfer older than the cutoff, across positions,
// in chronological order. The archiver is the only consumer.
func (s *TransferStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Transfer, error) {
	const query = `
		SELECT id, position_id, amount, price, tx_hash, ts
		FROM transfers
		WHERE ts < $1
		ORDER BY ts ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transfers before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		if err := rows.Scan(&t.ID, &t.PositionID, &t.Amount, &t.Price, &t.TxHash, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate transfers: %w", err)
	}
	return transfers, nil
}

// Compile-time interface check.
var _ domain.TransferStore = (*TransferStore)(nil)
