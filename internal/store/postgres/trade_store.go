package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predyx/predyx/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeCols = `id, market_id, user_address, action, shares, price, amount, tx_hash, ts`

// Insert stores the trade, returning false when its tx_hash already exists.
// The conflict path is the idempotency boundary for replayed chain events.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) (bool, error) {
	const query = `
		INSERT INTO trades (market_id, user_address, action, shares, price, amount, tx_hash, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tx_hash) DO NOTHING
		RETURNING id`

	err := s.pool.QueryRow(ctx, query,
		t.MarketID, t.UserAddress, string(t.Action),
		t.Shares, t.Price, t.Amount, t.TxHash, t.Timestamp,
	).Scan(&t.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres: insert trade %s: %w", t.TxHash, err)
	}
	return true, nil
}

func (s *TradeStore) ListByMarket(ctx context.Context, marketID int64, limit int) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeCols + ` FROM trades WHERE market_id = $1 ORDER BY ts DESC`
	args := []any{marketID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.queryTrades(ctx, query, args...)
}

func (s *TradeStore) ListByUser(ctx context.Context, userAddress string, limit int) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeCols + ` FROM trades WHERE LOWER(user_address) = LOWER($1) ORDER BY ts DESC`
	args := []any{userAddress}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.queryTrades(ctx, query, args...)
}

func (s *TradeStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeCols + ` FROM trades WHERE ts < $1 ORDER BY ts`
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.queryTrades(ctx, query, args...)
}

func (s *TradeStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

func (s *TradeStore) queryTrades(ctx context.Context, query string, args ...any) ([]*domain.Trade, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		var action string
		if err := rows.Scan(
			&t.ID, &t.MarketID, &t.UserAddress, &action,
			&t.Shares, &t.Price, &t.Amount, &t.TxHash, &t.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.Action = domain.TradeAction(action)
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: trade rows: %w", err)
	}
	return trades, nil
}
