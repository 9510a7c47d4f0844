package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predyx/predyx/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, address, question, description, category,
	resolution_date, oracle, fee_bps, yes_price, no_price, volume,
	resolved, outcome, created_at, updated_at`

// Upsert inserts or updates a market keyed by its on-chain address, writing
// the generated id and timestamps back into m.
func (s *MarketStore) Upsert(ctx context.Context, m *domain.Market) error {
	const query = `
		INSERT INTO markets (
			address, question, description, category, resolution_date,
			oracle, fee_bps, yes_price, no_price, volume, resolved, outcome
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''))
		ON CONFLICT (address) DO UPDATE SET
			question        = EXCLUDED.question,
			description     = EXCLUDED.description,
			category        = EXCLUDED.category,
			resolution_date = EXCLUDED.resolution_date,
			oracle          = EXCLUDED.oracle,
			fee_bps         = EXCLUDED.fee_bps,
			yes_price       = EXCLUDED.yes_price,
			no_price        = EXCLUDED.no_price,
			volume          = EXCLUDED.volume,
			resolved        = EXCLUDED.resolved,
			outcome         = EXCLUDED.outcome,
			updated_at      = NOW()
		RETURNING id, created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		m.Address, m.Question, m.Description, m.Category, m.ResolutionDate,
		m.Oracle, m.FeeBps, m.YesPrice, m.NoPrice, m.Volume, m.Resolved,
		string(m.Outcome),
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.Address, err)
	}
	return nil
}

func scanMarket(row pgx.Row) (*domain.Market, error) {
	var m domain.Market
	var outcome *string
	err := row.Scan(
		&m.ID, &m.Address, &m.Question, &m.Description, &m.Category,
		&m.ResolutionDate, &m.Oracle, &m.FeeBps, &m.YesPrice, &m.NoPrice,
		&m.Volume, &m.Resolved, &outcome, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		m.Outcome = domain.Side(*outcome)
	}
	return &m, nil
}

func (s *MarketStore) GetByID(ctx context.Context, id int64) (*domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

func (s *MarketStore) GetByAddress(ctx context.Context, address string) (*domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE LOWER(address) = LOWER($1)`, address)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get market by address %s: %w", address, err)
	}
	return m, nil
}

func (s *MarketStore) List(ctx context.Context, f domain.MarketFilter) ([]*domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE TRUE`
	args := []any{}
	argIdx := 1

	if f.Category != "" {
		query += fmt.Sprintf(" AND LOWER(category) = LOWER($%d)", argIdx)
		args = append(args, f.Category)
		argIdx++
	}
	if f.Resolved != nil {
		query += fmt.Sprintf(" AND resolved = $%d", argIdx)
		args = append(args, *f.Resolved)
		argIdx++
	}

	switch f.Sort {
	case domain.SortVolume:
		query += " ORDER BY volume DESC"
	default:
		query += " ORDER BY created_at DESC"
	}

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
		argIdx++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, f.Offset)
	}

	return s.queryMarkets(ctx, query, args...)
}

func (s *MarketStore) Search(ctx context.Context, q string, limit int) ([]*domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets
		WHERE question ILIKE '%' || $1 || '%'
		   OR description ILIKE '%' || $1 || '%'
		   OR category ILIKE '%' || $1 || '%'
		ORDER BY volume DESC`
	args := []any{q}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.queryMarkets(ctx, query, args...)
}

func (s *MarketStore) ListUnresolved(ctx context.Context) ([]*domain.Market, error) {
	return s.queryMarkets(ctx,
		`SELECT `+marketCols+` FROM markets WHERE resolved = FALSE ORDER BY created_at DESC`)
}

func (s *MarketStore) queryMarkets(ctx context.Context, query string, args ...any) ([]*domain.Market, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query markets: %w", err)
	}
	defer rows.Close()

	var markets []*domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: market rows: %w", err)
	}
	return markets, nil
}

func (s *MarketStore) SetPrices(ctx context.Context, id int64, yes, no float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET yes_price = $2, no_price = $3, updated_at = NOW() WHERE id = $1`,
		id, yes, no)
	if err != nil {
		return fmt.Errorf("postgres: set prices for market %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *MarketStore) AddVolume(ctx context.Context, id int64, delta float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET volume = volume + $2, updated_at = NOW() WHERE id = $1`,
		id, delta)
	if err != nil {
		return fmt.Errorf("postgres: add volume for market %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *MarketStore) Resolve(ctx context.Context, id int64, outcome domain.Side) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET resolved = TRUE, outcome = $2, updated_at = NOW() WHERE id = $1`,
		id, string(outcome))
	if err != nil {
		return fmt.Errorf("postgres: resolve market %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *MarketStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
