package chain

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/predyx/predyx/internal/domain"
	"github.com/predyx/predyx/internal/engine"
	"github.com/predyx/predyx/internal/registry"
)

// Sim is an in-process chain backed by the registry and its market engines.
// Every write mines one synthetic block carrying the resulting event, which
// makes the poller/reconciler path testable without a node.
type Sim struct {
	mu     sync.Mutex
	reg    *registry.Registry
	head   uint64
	events []domain.ChainEvent
}

func NewSim(reg *registry.Registry) *Sim {
	return &Sim{reg: reg}
}

// CreateMarket deploys a market through the registry and mines its creation
// event.
func (s *Sim) CreateMarket(creator string, cfg engine.Config, initialLiquidity int64) (*registry.Entry, error) {
	e, err := s.reg.Create(creator, cfg, initialLiquidity)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head++
	s.events = append(s.events, domain.MarketCreatedEvent{
		Block:    s.head,
		TxHash:   newTxHash(),
		Address:  e.Address,
		MarketID: e.ID,
		Question: cfg.Question,
		Creator:  creator,
		FeeBps:   cfg.FeeBps,
	})
	return e, nil
}

// Buy executes a buy on the addressed market and mines the purchase event.
// It returns the transaction hash of the mined event.
func (s *Sim) Buy(trader, address string, side domain.Side, amount int64) (string, error) {
	e, err := s.reg.Get(address)
	if err != nil {
		return "", ErrMarketUnknown
	}
	res, err := e.Market.Buy(trader, side, amount)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head++
	tx := newTxHash()
	s.events = append(s.events, domain.SharesPurchasedEvent{
		Block:       s.head,
		TxHash:      tx,
		Market:      address,
		Buyer:       trader,
		Side:        side,
		Amount:      amount,
		Shares:      res.Shares,
		NewYesPrice: res.YesPrice,
		NewNoPrice:  res.NoPrice,
		Timestamp:   time.Now().UTC(),
	})
	return tx, nil
}

// Sell executes a sell on the addressed market and mines the sale event.
func (s *Sim) Sell(trader, address string, side domain.Side, shares int64) (string, error) {
	e, err := s.reg.Get(address)
	if err != nil {
		return "", ErrMarketUnknown
	}
	res, err := e.Market.Sell(trader, side, shares)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head++
	tx := newTxHash()
	s.events = append(s.events, domain.SharesSoldEvent{
		Block:       s.head,
		TxHash:      tx,
		Market:      address,
		Seller:      trader,
		Side:        side,
		Shares:      shares,
		Payout:      res.Payout,
		NewYesPrice: res.YesPrice,
		NewNoPrice:  res.NoPrice,
		Timestamp:   time.Now().UTC(),
	})
	return tx, nil
}

// Resolve resolves the addressed market and mines the resolution event.
func (s *Sim) Resolve(caller, address string, outcome domain.Side) (string, error) {
	e, err := s.reg.Get(address)
	if err != nil {
		return "", ErrMarketUnknown
	}
	if err := e.Market.Resolve(caller, outcome); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head++
	tx := newTxHash()
	s.events = append(s.events, domain.MarketResolvedEvent{
		Block:     s.head,
		TxHash:    tx,
		Market:    address,
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	})
	return tx, nil
}

// Claim redeems the trader's winning shares on a resolved market and mines
// the claim event.
func (s *Sim) Claim(trader, address string) (string, error) {
	e, err := s.reg.Get(address)
	if err != nil {
		return "", ErrMarketUnknown
	}
	st := e.Market.State()
	side := st.Outcome
	payout, err := e.Market.Claim(trader)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head++
	tx := newTxHash()
	s.events = append(s.events, domain.WinningsClaimedEvent{
		Block:     s.head,
		TxHash:    tx,
		Market:    address,
		Claimer:   trader,
		Side:      side,
		Shares:    payout,
		Payout:    payout,
		Timestamp: time.Now().UTC(),
	})
	return tx, nil
}

// MineEmpty advances the head without emitting an event, like a block with
// no relevant transactions.
func (s *Sim) MineEmpty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head++
}

func (s *Sim) HeadBlock(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head, nil
}

func (s *Sim) Events(ctx context.Context, from, to uint64) ([]domain.ChainEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ChainEvent
	for _, ev := range s.events {
		if b := ev.EventBlock(); b >= from && b <= to {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Sim) Markets(ctx context.Context) ([]string, error) {
	entries := s.reg.List()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Address
	}
	return out, nil
}

func (s *Sim) MarketInfo(ctx context.Context, address string) (*MarketInfo, error) {
	e, err := s.reg.Get(address)
	if err != nil {
		return nil, ErrMarketUnknown
	}
	st := e.Market.State()
	info := &MarketInfo{
		ID:             e.ID,
		Address:        e.Address,
		Question:       st.Question,
		Description:    st.Description,
		Category:       st.Category,
		ResolutionDate: st.ResolutionDate,
		Oracle:         st.Oracle,
		FeeBps:         st.FeeBps,
		YesPrice:       st.YesPrice,
		NoPrice:        st.NoPrice,
		Volume:         st.TotalVolume,
		Resolved:       st.Resolved,
	}
	if st.Resolved {
		info.Outcome = st.Outcome
	}
	return info, nil
}

// WatchMarket is a no-op: the simulator sees every market it created.
func (s *Sim) WatchMarket(address string) {}

// newTxHash fabricates a 32-byte transaction hash from a fresh UUID.
func newTxHash() string {
	id := uuid.New()
	return hexutil.Encode(crypto.Keccak256(id[:]))
}
