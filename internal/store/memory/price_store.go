package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/predyx/predyx/internal/domain"
)

type PriceHistoryStore struct {
	mu     sync.RWMutex
	seq    int64
	points []*domain.PricePoint
}

func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{}
}

func (s *PriceHistoryStore) Append(ctx context.Context, p *domain.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	p.ID = s.seq
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	cp := *p
	s.points = append(s.points, &cp)
	return nil
}

// ListByMarket returns points at or after since, ordered by timestamp
// ascending.
func (s *PriceHistoryStore) ListByMarket(ctx context.Context, marketID int64, since time.Time, limit int) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.PricePoint
	for _, p := range s.points {
		if p.MarketID != marketID || p.Timestamp.Before(since) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return window(out, 0, limit), nil
}

// ListBefore returns aged points oldest first, same contract as the trade
// store.
func (s *PriceHistoryStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.PricePoint
	for _, p := range s.points {
		if p.Timestamp.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return window(out, 0, limit), nil
}

func (s *PriceHistoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*domain.PricePoint
	var removed int64
	for _, p := range s.points {
		if p.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	s.points = kept
	return removed, nil
}
