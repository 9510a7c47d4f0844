package domain

import "time"

// Position is a holder's stake on one side of one market. A position with
// zero shares is deleted rather than stored; AvgPrice is the volume-weighted
// average entry price in percent.
type Position struct {
	ID          int64     `json:"id"`
	MarketID    int64     `json:"marketId"`
	UserAddress string    `json:"userAddress"`
	Side        Side      `json:"outcome"`
	Shares      float64   `json:"shares"`
	AvgPrice    float64   `json:"avgPrice"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
