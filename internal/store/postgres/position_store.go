package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predyx/predyx/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionCols = `id, market_id, user_address, side, shares, avg_price, created_at, updated_at`

func (s *PositionStore) Get(ctx context.Context, marketID int64, userAddress string, side domain.Side) (*domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionCols+` FROM positions
		 WHERE market_id = $1 AND LOWER(user_address) = LOWER($2) AND side = $3`,
		marketID, userAddress, string(side))
	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get position: %w", err)
	}
	return p, nil
}

func (s *PositionStore) Upsert(ctx context.Context, p *domain.Position) error {
	const query = `
		INSERT INTO positions (market_id, user_address, side, shares, avg_price)
		VALUES ($1, LOWER($2), $3, $4, $5)
		ON CONFLICT (market_id, user_address, side) DO UPDATE SET
			shares     = EXCLUDED.shares,
			avg_price  = EXCLUDED.avg_price,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		p.MarketID, p.UserAddress, string(p.Side), p.Shares, p.AvgPrice,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert position: %w", err)
	}
	return nil
}

func (s *PositionStore) Delete(ctx context.Context, marketID int64, userAddress string, side domain.Side) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM positions
		 WHERE market_id = $1 AND LOWER(user_address) = LOWER($2) AND side = $3`,
		marketID, userAddress, string(side))
	if err != nil {
		return fmt.Errorf("postgres: delete position: %w", err)
	}
	return nil
}

func (s *PositionStore) ListByUser(ctx context.Context, userAddress string) ([]*domain.Position, error) {
	return s.queryPositions(ctx,
		`SELECT `+positionCols+` FROM positions WHERE LOWER(user_address) = LOWER($1) ORDER BY id`,
		userAddress)
}

func (s *PositionStore) ListByMarket(ctx context.Context, marketID int64) ([]*domain.Position, error) {
	return s.queryPositions(ctx,
		`SELECT `+positionCols+` FROM positions WHERE market_id = $1 ORDER BY id`,
		marketID)
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var side string
	err := row.Scan(
		&p.ID, &p.MarketID, &p.UserAddress, &side,
		&p.Shares, &p.AvgPrice, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Side = domain.Side(side)
	return &p, nil
}

func (s *PositionStore) queryPositions(ctx context.Context, query string, args ...any) ([]*domain.Position, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: position rows: %w", err)
	}
	return positions, nil
}
