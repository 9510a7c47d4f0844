package domain

import "time"

// Side identifies one of the two outcome sides of a binary market.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Market is the off-chain mirror of one on-chain prediction market.
// Prices are percentages (0-100) and volume is in whole collateral units;
// the exact fixed-point representation lives only in the engine and on chain.
type Market struct {
	ID             int64     `json:"id"`
	Address        string    `json:"address"`
	Question       string    `json:"question"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	ResolutionDate time.Time `json:"resolutionDate"`
	Oracle         string    `json:"oracle"`
	FeeBps         int64     `json:"tradingFee"`
	YesPrice       float64   `json:"yesPrice"`
	NoPrice        float64   `json:"noPrice"`
	Volume         float64   `json:"volume"`
	Resolved       bool      `json:"resolved"`
	Outcome        Side      `json:"outcome,omitempty"` // empty until resolved
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
