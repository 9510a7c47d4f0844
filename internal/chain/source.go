// Package chain abstracts where on-chain state comes from. The poller and
// reconciler only see the Source interface; behind it sits either a JSON-RPC
// node or the in-process simulator.
package chain

import (
	"context"
	"errors"
	"time"

	"github.com/predyx/predyx/internal/domain"
)

var ErrMarketUnknown = errors.New("market unknown to chain source")

// MarketInfo is the full on-chain view of one market, as returned by a
// getMarketInfo read. Prices and volume are raw fixed-point integers.
type MarketInfo struct {
	ID             uint64
	Address        string
	Question       string
	Description    string
	Category       string
	ResolutionDate time.Time
	Oracle         string
	FeeBps         int64
	YesPrice       int64
	NoPrice        int64
	Volume         int64
	Resolved       bool
	Outcome        domain.Side
}

// Source is a read view over the chain. Events are returned in block order;
// delivery is at-least-once, so consumers must tolerate replays.
type Source interface {
	// HeadBlock returns the current chain head.
	HeadBlock(ctx context.Context) (uint64, error)
	// Events returns all registry and market events with from <= block <= to.
	Events(ctx context.Context, from, to uint64) ([]domain.ChainEvent, error)
	// Markets enumerates every market address the registry knows.
	Markets(ctx context.Context) ([]string, error)
	// MarketInfo reads one market's complete live state.
	MarketInfo(ctx context.Context, address string) (*MarketInfo, error)
	// WatchMarket adds a market address to the event filter set, so trades
	// and resolutions on newly discovered markets are picked up.
	WatchMarket(address string)
}
