package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predyx/predyx/internal/domain"
)

// PriceHistoryStore implements domain.PriceHistoryStore using PostgreSQL.
type PriceHistoryStore struct {
	pool *pgxpool.Pool
}

func NewPriceHistoryStore(pool *pgxpool.Pool) *PriceHistoryStore {
	return &PriceHistoryStore{pool: pool}
}

const priceCols = `id, market_id, yes_price, no_price, ts`

func (s *PriceHistoryStore) Append(ctx context.Context, p *domain.PricePoint) error {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO price_history (market_id, yes_price, no_price, ts)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		p.MarketID, p.YesPrice, p.NoPrice, p.Timestamp,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("postgres: append price point: %w", err)
	}
	return nil
}

func (s *PriceHistoryStore) ListByMarket(ctx context.Context, marketID int64, since time.Time, limit int) ([]*domain.PricePoint, error) {
	query := `SELECT ` + priceCols + ` FROM price_history
		WHERE market_id = $1 AND ts >= $2 ORDER BY ts`
	args := []any{marketID, since}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}
	return s.queryPoints(ctx, query, args...)
}

func (s *PriceHistoryStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.PricePoint, error) {
	query := `SELECT ` + priceCols + ` FROM price_history WHERE ts < $1 ORDER BY ts`
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.queryPoints(ctx, query, args...)
}

func (s *PriceHistoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM price_history WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete price points before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PriceHistoryStore) queryPoints(ctx context.Context, query string, args ...any) ([]*domain.PricePoint, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query price points: %w", err)
	}
	defer rows.Close()

	var points []*domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.ID, &p.MarketID, &p.YesPrice, &p.NoPrice, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan price point: %w", err)
		}
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: price point rows: %w", err)
	}
	return points, nil
}
