package engine

import "errors"

var (
	ErrNotInitialized     = errors.New("pool not initialized")
	ErrAlreadyInitialized = errors.New("pool already initialized")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrPoolDrain          = errors.New("trade too large: pool drain")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrMarketResolved     = errors.New("market already resolved")
	ErrMarketNotResolved  = errors.New("market not resolved")
	ErrNotOracle          = errors.New("caller is not the oracle")
	ErrNothingToClaim     = errors.New("nothing to claim")
	ErrAlreadyClaimed     = errors.New("winnings already claimed")
)
