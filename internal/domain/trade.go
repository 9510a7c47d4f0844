package domain

import (
	"strings"
	"time"
)

// TradeAction describes what a trade did, from the trader's point of view.
type TradeAction string

const (
	ActionBuyYes  TradeAction = "BUY_YES"
	ActionBuyNo   TradeAction = "BUY_NO"
	ActionSellYes TradeAction = "SELL_YES"
	ActionSellNo  TradeAction = "SELL_NO"
)

// Side returns the outcome side the action traded.
func (a TradeAction) Side() Side {
	if strings.HasSuffix(string(a), "YES") {
		return SideYes
	}
	return SideNo
}

// IsBuy reports whether the action added shares to the trader's position.
func (a TradeAction) IsBuy() bool {
	return strings.HasPrefix(string(a), "BUY")
}

// Valid reports whether the action is one of the four known values.
func (a TradeAction) Valid() bool {
	switch a {
	case ActionBuyYes, ActionBuyNo, ActionSellYes, ActionSellNo:
		return true
	}
	return false
}

// Trade is an immutable record of one buy or sell. TxHash is the globally
// unique transaction reference; inserting the same reference twice must be a
// no-op, which is the idempotency boundary for at-least-once event delivery.
type Trade struct {
	ID          int64       `json:"id"`
	MarketID    int64       `json:"marketId"`
	UserAddress string      `json:"userAddress"`
	Action      TradeAction `json:"action"`
	Shares      float64     `json:"shares"`
	Price       float64     `json:"price"`  // percent per share
	Amount      float64     `json:"amount"` // notional in collateral units
	TxHash      string      `json:"txHash"`
	Timestamp   time.Time   `json:"timestamp"`
}
