package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/marginview/marginview/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, name, position_type, token_symbol, token_decimals, token_contract,
	initial_collateral, initial_principal, expires_at, state, is_closing, opened_at, closed_at`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var posType, state, contract string
	var collateral, principal decimal.Decimal

	err := row.Scan(
		&p.ID, &p.Name, &posType,
		&p.Token.Symbol, &p.Token.Decimals, &contract,
		&collateral, &principal,
		&p.ExpiresAt, &state, &p.IsClosing,
		&p.OpenedAt, &p.ClosedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Type = domain.PositionType(posType)
	p.State = domain.PositionState(state)
	p.Token.ContractAddress = common.HexToAddress(contract)
	p.InitialCollateral = collateral
	p.InitialPrincipal = principal
	return p, nil
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	defer rows.Close()
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Upsert inserts a position or refreshes its mutable fields. The entry terms
// are written once and never overwritten: they are the terms struck at open
// time, not live balances.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, name, position_type, token_symbol, token_decimals, token_contract,
			initial_collateral, initial_principal, expires_at, state, is_closing,
			opened_at, closed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			name       = EXCLUDED.name,
			state      = EXCLUDED.state,
			is_closing = EXCLUDED.is_closing,
			closed_at  = EXCLUDED.closed_at,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Name, string(p.Type),
		p.Token.Symbol, p.Token.Decimals, p.Token.ContractAddress.Hex(),
		p.InitialCollateral, p.InitialPrincipal,
		p.ExpiresAt, string(p.State), p.IsClosing,
		p.OpenedAt, p.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s: %w", p.ID, err)
	}
	return nil
}

// GetByID fetches one position. It returns domain.ErrNotFound when the id is
// unknown.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE id = $1`

	p, err := scanPositionRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// List returns positions ordered by open time, newest first.
func (s *PositionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions ORDER BY opened_at DESC`
	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

// ListByState returns positions in the given lifecycle state.
func (s *PositionStore) ListByState(ctx context.Context, state domain.PositionState, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE state = $1 ORDER BY opened_at DESC`
	args := []any{string(state)}
	if opts.Limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions by state %s: %w", state, err)
	}
	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions by state: %w", err)
	}
	return positions, nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
