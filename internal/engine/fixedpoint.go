package engine

import "math/big"

// On-chain numeric scales. Amounts and shares carry six implied decimals,
// matching a stablecoin-style collateral token. Prices use a separate scale
// where PriceScale equals 100%.
const (
	UnitScale      int64 = 1_000_000
	PriceScale     int64 = 1_000_000
	FeeDenominator int64 = 10_000

	// MinPoolSize is the floor either pool may never cross, 0.001 units.
	MinPoolSize int64 = 1_000
)

// MulDiv returns a*b/d truncated toward zero. The intermediate product is
// carried at full precision so pool math never overflows int64.
func MulDiv(a, b, d int64) int64 {
	p := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	p.Quo(p, big.NewInt(d))
	return p.Int64()
}

// Units converts a raw 6-decimal amount to whole collateral units.
func Units(raw int64) float64 {
	return float64(raw) / float64(UnitScale)
}

// ToRaw converts whole collateral units to the raw 6-decimal representation.
func ToRaw(units float64) int64 {
	return int64(units * float64(UnitScale))
}

// Percent converts an on-chain price to a 0-100 percentage.
func Percent(price int64) float64 {
	return float64(price) * 100 / float64(PriceScale)
}
