package engine

import (
	"sync"
	"time"

	"github.com/predyx/predyx/internal/domain"
)

// Config holds the immutable parameters a market is created with.
type Config struct {
	Question       string
	Description    string
	Category       string
	ResolutionDate time.Time
	Oracle         string
	FeeBps         int64
}

// TradeResult reports what one buy or sell did to the pools.
// Shares is the amount minted (buy) or burned (sell); Payout is the gross
// amount released from the pools on a sell, before the fee is withheld.
type TradeResult struct {
	Shares   int64
	Payout   int64
	Fee      int64
	YesPrice int64
	NoPrice  int64
}

// State is a point-in-time snapshot of a market's full on-chain view.
type State struct {
	Question          string
	Description       string
	Category          string
	ResolutionDate    time.Time
	Oracle            string
	FeeBps            int64
	YesPool           int64
	NoPool            int64
	FeePool           int64
	YesPrice          int64
	NoPrice           int64
	TotalVolume       int64
	TotalSharesIssued int64
	Resolved          bool
	Outcome           domain.Side
}

// Market is a constant-product matching engine for one binary YES/NO market.
// All arithmetic is fixed-point integer math with truncation, so a sequence
// of trades produces exactly the numbers the deployed contract would.
//
// The pool update on a buy adds the net amount to the bought side's own pool
// and shrinks the opposite pool to preserve K; the shares minted equal the
// opposite pool's shrinkage. A sell is the exact inverse, with the fee taken
// from the gross payout so selling everything restores the pools.
type Market struct {
	mu sync.Mutex

	cfg         Config
	initialized bool

	yesPool int64
	noPool  int64
	feePool int64

	totalVolume       int64
	totalSharesIssued int64

	yesShares map[string]int64
	noShares  map[string]int64

	resolved   bool
	outcome    domain.Side
	resolvedAt time.Time
	claimed    map[string]bool
}

// New creates an uninitialized market. InitializePool must be called before
// any trade.
func New(cfg Config) *Market {
	return &Market{
		cfg:       cfg,
		yesShares: make(map[string]int64),
		noShares:  make(map[string]int64),
		claimed:   make(map[string]bool),
	}
}

// InitializePool seeds both pools with a 50/50 split of the given liquidity,
// putting both prices at exactly 50%.
func (m *Market) InitializePool(liquidity int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return ErrAlreadyInitialized
	}
	if liquidity <= 0 || liquidity/2 < MinPoolSize {
		return ErrInvalidAmount
	}
	m.yesPool = liquidity / 2
	m.noPool = liquidity / 2
	m.initialized = true
	return nil
}

// Buy spends amount of collateral on the given side. The fee comes off the
// top, the net amount enters the bought side's pool, and the minted shares
// equal the opposite pool's shrinkage. State is untouched on error.
func (m *Market) Buy(trader string, side domain.Side, amount int64) (*TradeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, ErrNotInitialized
	}
	if m.resolved {
		return nil, ErrMarketResolved
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	fee := MulDiv(amount, m.cfg.FeeBps, FeeDenominator)
	net := amount - fee
	if net <= 0 {
		return nil, ErrInvalidAmount
	}

	own, other := m.yesPool, m.noPool
	if side == domain.SideNo {
		own, other = other, own
	}
	newOwn := own + net
	newOther := MulDiv(own, other, newOwn)
	if newOther < MinPoolSize {
		return nil, ErrPoolDrain
	}
	shares := other - newOther
	if shares <= 0 {
		return nil, ErrInvalidAmount
	}

	if side == domain.SideYes {
		m.yesPool, m.noPool = newOwn, newOther
		m.yesShares[trader] += shares
	} else {
		m.noPool, m.yesPool = newOwn, newOther
		m.noShares[trader] += shares
	}
	m.feePool += fee
	m.totalVolume += amount
	m.totalSharesIssued += shares

	return &TradeResult{
		Shares:   shares,
		Fee:      fee,
		YesPrice: m.yesPrice(),
		NoPrice:  m.noPrice(),
	}, nil
}

// Sell burns shares of the given side back into the pools. The sold side's
// pool releases the gross payout, the opposite pool absorbs the shares, and
// the fee is withheld from the gross payout.
func (m *Market) Sell(trader string, side domain.Side, shares int64) (*TradeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, ErrNotInitialized
	}
	if m.resolved {
		return nil, ErrMarketResolved
	}
	if shares <= 0 {
		return nil, ErrInvalidAmount
	}

	balances := m.yesShares
	if side == domain.SideNo {
		balances = m.noShares
	}
	if balances[trader] < shares {
		return nil, ErrInsufficientShares
	}

	own, other := m.yesPool, m.noPool
	if side == domain.SideNo {
		own, other = other, own
	}
	newOther := other + shares
	newOwn := MulDiv(own, other, newOther)
	if newOwn < MinPoolSize {
		return nil, ErrPoolDrain
	}
	gross := own - newOwn
	if gross <= 0 {
		return nil, ErrInvalidAmount
	}
	fee := MulDiv(gross, m.cfg.FeeBps, FeeDenominator)

	if side == domain.SideYes {
		m.yesPool, m.noPool = newOwn, newOther
	} else {
		m.noPool, m.yesPool = newOwn, newOther
	}
	balances[trader] -= shares
	if balances[trader] == 0 {
		delete(balances, trader)
	}
	m.feePool += fee
	m.totalVolume += gross
	m.totalSharesIssued -= shares

	return &TradeResult{
		Shares:   shares,
		Payout:   gross - fee,
		Fee:      fee,
		YesPrice: m.yesPrice(),
		NoPrice:  m.noPrice(),
	}, nil
}

// Resolve fixes the market outcome. Only the configured oracle may call it,
// and only once.
func (m *Market) Resolve(caller string, outcome domain.Side) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.cfg.Oracle {
		return ErrNotOracle
	}
	if m.resolved {
		return ErrMarketResolved
	}
	m.resolved = true
	m.outcome = outcome
	m.resolvedAt = time.Now().UTC()
	return nil
}

// Claim redeems the trader's winning shares at 1:1 after resolution and
// zeroes the balance. It returns the payout in raw collateral.
func (m *Market) Claim(trader string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.resolved {
		return 0, ErrMarketNotResolved
	}
	if m.claimed[trader] {
		return 0, ErrAlreadyClaimed
	}
	balances := m.yesShares
	if m.outcome == domain.SideNo {
		balances = m.noShares
	}
	shares := balances[trader]
	if shares <= 0 {
		return 0, ErrNothingToClaim
	}
	m.claimed[trader] = true
	delete(balances, trader)
	m.totalSharesIssued -= shares
	return shares, nil
}

// YesPrice returns the current YES price on the PriceScale == 100% scale.
func (m *Market) YesPrice() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.yesPrice()
}

// NoPrice returns the current NO price on the PriceScale == 100% scale.
func (m *Market) NoPrice() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.noPrice()
}

// Pools returns the current pool reserves.
func (m *Market) Pools() (yes, no int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.yesPool, m.noPool
}

// SharesOf returns the trader's balance on one side.
func (m *Market) SharesOf(trader string, side domain.Side) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if side == domain.SideNo {
		return m.noShares[trader]
	}
	return m.yesShares[trader]
}

// TotalSharesIssued returns the outstanding share count across both sides.
func (m *Market) TotalSharesIssued() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalSharesIssued
}

// State returns a consistent snapshot of the full market view.
func (m *Market) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Question:          m.cfg.Question,
		Description:       m.cfg.Description,
		Category:          m.cfg.Category,
		ResolutionDate:    m.cfg.ResolutionDate,
		Oracle:            m.cfg.Oracle,
		FeeBps:            m.cfg.FeeBps,
		YesPool:           m.yesPool,
		NoPool:            m.noPool,
		FeePool:           m.feePool,
		YesPrice:          m.yesPrice(),
		NoPrice:           m.noPrice(),
		TotalVolume:       m.totalVolume,
		TotalSharesIssued: m.totalSharesIssued,
		Resolved:          m.resolved,
		Outcome:           m.outcome,
	}
}

func (m *Market) yesPrice() int64 {
	total := m.yesPool + m.noPool
	if total == 0 {
		return 0
	}
	return MulDiv(m.yesPool, PriceScale, total)
}

func (m *Market) noPrice() int64 {
	total := m.yesPool + m.noPool
	if total == 0 {
		return 0
	}
	return MulDiv(m.noPool, PriceScale, total)
}
