package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/predyx/predyx/internal/domain"
)

type TradeStore struct {
	mu     sync.RWMutex
	seq    int64
	trades []*domain.Trade
	byTx   map[string]struct{}
}

func NewTradeStore() *TradeStore {
	return &TradeStore{byTx: make(map[string]struct{})}
}

func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byTx[t.TxHash]; dup {
		return false, nil
	}
	s.seq++
	t.ID = s.seq
	cp := *t
	s.trades = append(s.trades, &cp)
	s.byTx[t.TxHash] = struct{}{}
	return true, nil
}

func (s *TradeStore) ListByMarket(ctx context.Context, marketID int64, limit int) ([]*domain.Trade, error) {
	return s.list(func(t *domain.Trade) bool { return t.MarketID == marketID }, limit)
}

func (s *TradeStore) ListByUser(ctx context.Context, userAddress string, limit int) ([]*domain.Trade, error) {
	return s.list(func(t *domain.Trade) bool {
		return strings.EqualFold(t.UserAddress, userAddress)
	}, limit)
}

// ListBefore returns aged rows oldest first. The archiver deletes everything
// up to the last returned row, so this ordering is load-bearing.
func (s *TradeStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Trade
	for _, t := range s.trades {
		if t.Timestamp.Before(cutoff) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return window(out, 0, limit), nil
}

func (s *TradeStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*domain.Trade
	var removed int64
	for _, t := range s.trades {
		if t.Timestamp.Before(cutoff) {
			delete(s.byTx, t.TxHash)
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.trades = kept
	return removed, nil
}

// list returns matches newest first.
func (s *TradeStore) list(match func(*domain.Trade) bool, limit int) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Trade
	for _, t := range s.trades {
		if match(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return window(out, 0, limit), nil
}
