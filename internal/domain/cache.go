package domain

import (
	"context"
	"time"
)

// PriceCache holds the latest quote per market for cheap hot-path reads.
type PriceCache interface {
	SetPrice(ctx context.Context, marketID int64, yes, no float64) error
	GetPrice(ctx context.Context, marketID int64) (yes, no float64, err error)
}

// MarketCache holds serialized market snapshots with a TTL.
type MarketCache interface {
	SetMarket(ctx context.Context, m *Market, ttl time.Duration) error
	GetMarket(ctx context.Context, id int64) (*Market, error)
	Invalidate(ctx context.Context, id int64) error
}

// Signal is a cross-process notification about market activity, fanned out
// to websocket clients and any other subscribed process.
type Signal struct {
	Kind      string    `json:"kind"` // trade | price | market | resolution
	MarketID  int64     `json:"marketId"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SignalBus publishes and subscribes to Signals across processes.
type SignalBus interface {
	Publish(ctx context.Context, s Signal) error
	// Subscribe delivers signals on the returned channel until ctx ends.
	Subscribe(ctx context.Context) (<-chan Signal, error)
}

// BlobWriter archives batches of records as JSONL objects.
type BlobWriter interface {
	Write(ctx context.Context, key string, lines []any) error
	ListBefore(ctx context.Context, prefix string, cutoff time.Time) ([]string, error)
	DeleteBefore(ctx context.Context, prefix string, cutoff time.Time) (int, error)
}
