package domain

import "time"

// PricePoint is one sample of a market's price time series. One point is
// appended per applied trade event and one per price-refresh tick.
type PricePoint struct {
	ID        int64     `json:"id"`
	MarketID  int64     `json:"marketId"`
	YesPrice  float64   `json:"yesPrice"`
	NoPrice   float64   `json:"noPrice"`
	Timestamp time.Time `json:"timestamp"`
}
