package domain

import "time"

// ChainEvent is one on-chain occurrence the indexer mirrors. Events are
// delivered at-least-once in block order; consumers must be idempotent.
type ChainEvent interface {
	// EventBlock returns the block the event was emitted in.
	EventBlock() uint64
	// EventTx returns the transaction reference of the event.
	EventTx() string
}

// MarketCreatedEvent is emitted by the factory when a new market is deployed.
type MarketCreatedEvent struct {
	Block    uint64
	TxHash   string
	Address  string
	MarketID uint64
	Question string
	Creator  string
	FeeBps   int64
}

func (e MarketCreatedEvent) EventBlock() uint64 { return e.Block }
func (e MarketCreatedEvent) EventTx() string    { return e.TxHash }

// SharesPurchasedEvent is emitted by a market on every buy. Amounts and
// shares are raw 6-decimal fixed-point integers; prices use the on-chain
// 1e6 == 100% scale.
type SharesPurchasedEvent struct {
	Block       uint64
	TxHash      string
	Market      string
	Buyer       string
	Side        Side
	Amount      int64
	Shares      int64
	NewYesPrice int64
	NewNoPrice  int64
	Timestamp   time.Time
}

func (e SharesPurchasedEvent) EventBlock() uint64 { return e.Block }
func (e SharesPurchasedEvent) EventTx() string    { return e.TxHash }

// SharesSoldEvent is emitted by a market on every sell. Payout is the gross
// amount released from the pools before the fee is withheld.
type SharesSoldEvent struct {
	Block       uint64
	TxHash      string
	Market      string
	Seller      string
	Side        Side
	Shares      int64
	Payout      int64
	NewYesPrice int64
	NewNoPrice  int64
	Timestamp   time.Time
}

func (e SharesSoldEvent) EventBlock() uint64 { return e.Block }
func (e SharesSoldEvent) EventTx() string    { return e.TxHash }

// WinningsClaimedEvent is emitted when a holder redeems winning shares on a
// resolved market.
type WinningsClaimedEvent struct {
	Block     uint64
	TxHash    string
	Market    string
	Claimer   string
	Side      Side
	Shares    int64
	Payout    int64
	Timestamp time.Time
}

func (e WinningsClaimedEvent) EventBlock() uint64 { return e.Block }
func (e WinningsClaimedEvent) EventTx() string    { return e.TxHash }

// MarketResolvedEvent is emitted once when the oracle resolves a market.
type MarketResolvedEvent struct {
	Block     uint64
	TxHash    string
	Market    string
	Outcome   Side
	Timestamp time.Time
}

func (e MarketResolvedEvent) EventBlock() uint64 { return e.Block }
func (e MarketResolvedEvent) EventTx() string    { return e.TxHash }
