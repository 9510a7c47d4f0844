package domain

import (
	"context"
	"time"
)

// Sort orders for market listings.
const (
	SortNewest = "newest"
	SortVolume = "volume"
)

// MarketFilter narrows List queries. Zero values mean "no constraint";
// an empty Sort means SortNewest.
type MarketFilter struct {
	Category string
	Resolved *bool
	Sort     string
	Limit    int
	Offset   int
}

// MarketStore persists the market mirror.
type MarketStore interface {
	// Upsert inserts the market or updates it in place, keyed by Address.
	Upsert(ctx context.Context, m *Market) error
	GetByID(ctx context.Context, id int64) (*Market, error)
	GetByAddress(ctx context.Context, address string) (*Market, error)
	List(ctx context.Context, f MarketFilter) ([]*Market, error)
	// Search matches the query case-insensitively against question,
	// description and category.
	Search(ctx context.Context, query string, limit int) ([]*Market, error)
	ListUnresolved(ctx context.Context) ([]*Market, error)
	SetPrices(ctx context.Context, id int64, yes, no float64) error
	AddVolume(ctx context.Context, id int64, delta float64) error
	Resolve(ctx context.Context, id int64, outcome Side) error
	Count(ctx context.Context) (int, error)
}

// TradeStore persists the immutable trade log.
type TradeStore interface {
	// Insert stores the trade. It returns false with a nil error when a
	// trade with the same TxHash already exists.
	Insert(ctx context.Context, t *Trade) (bool, error)
	ListByMarket(ctx context.Context, marketID int64, limit int) ([]*Trade, error)
	ListByUser(ctx context.Context, userAddress string, limit int) ([]*Trade, error)
	// ListBefore returns trades older than cutoff, ordered by timestamp
	// ascending. Callers that delete up to the last returned row depend on
	// this ordering.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Trade, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PositionStore persists per-user holdings.
type PositionStore interface {
	Get(ctx context.Context, marketID int64, userAddress string, side Side) (*Position, error)
	Upsert(ctx context.Context, p *Position) error
	Delete(ctx context.Context, marketID int64, userAddress string, side Side) error
	ListByUser(ctx context.Context, userAddress string) ([]*Position, error)
	ListByMarket(ctx context.Context, marketID int64) ([]*Position, error)
}

// PriceHistoryStore persists the sampled price series.
type PriceHistoryStore interface {
	Append(ctx context.Context, p *PricePoint) error
	ListByMarket(ctx context.Context, marketID int64, since time.Time, limit int) ([]*PricePoint, error)
	// ListBefore returns points older than cutoff, ordered by timestamp
	// ascending, same contract as TradeStore.ListBefore.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]*PricePoint, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
