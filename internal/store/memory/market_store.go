// Package memory provides in-memory store implementations with the same
// semantics as the postgres ones. They back the standalone simulator mode
// and the test suites.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/predyx/predyx/internal/domain"
)

type MarketStore struct {
	mu     sync.RWMutex
	seq    int64
	byID   map[int64]*domain.Market
	byAddr map[string]int64
}

func NewMarketStore() *MarketStore {
	return &MarketStore{
		byID:   make(map[int64]*domain.Market),
		byAddr: make(map[string]int64),
	}
}

func (s *MarketStore) Upsert(ctx context.Context, m *domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if id, ok := s.byAddr[m.Address]; ok {
		existing := s.byID[id]
		m.ID = id
		m.CreatedAt = existing.CreatedAt
		m.UpdatedAt = now
		s.byID[id] = cloneMarket(m)
		return nil
	}
	s.seq++
	m.ID = s.seq
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	s.byID[m.ID] = cloneMarket(m)
	s.byAddr[m.Address] = m.ID
	return nil
}

func (s *MarketStore) GetByID(ctx context.Context, id int64) (*domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneMarket(m), nil
}

func (s *MarketStore) GetByAddress(ctx context.Context, address string) (*domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAddr[address]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneMarket(s.byID[id]), nil
}

func (s *MarketStore) List(ctx context.Context, f domain.MarketFilter) ([]*domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Market
	for _, m := range s.byID {
		if f.Category != "" && !strings.EqualFold(m.Category, f.Category) {
			continue
		}
		if f.Resolved != nil && m.Resolved != *f.Resolved {
			continue
		}
		out = append(out, cloneMarket(m))
	}
	switch f.Sort {
	case domain.SortVolume:
		sort.Slice(out, func(i, j int) bool { return out[i].Volume > out[j].Volume })
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return window(out, f.Offset, f.Limit), nil
}

func (s *MarketStore) Search(ctx context.Context, query string, limit int) ([]*domain.Market, error) {
	q := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Market
	for _, m := range s.byID {
		if strings.Contains(strings.ToLower(m.Question), q) ||
			strings.Contains(strings.ToLower(m.Description), q) ||
			strings.Contains(strings.ToLower(m.Category), q) {
			out = append(out, cloneMarket(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Volume > out[j].Volume })
	return window(out, 0, limit), nil
}

func (s *MarketStore) ListUnresolved(ctx context.Context) ([]*domain.Market, error) {
	unresolved := false
	return s.List(ctx, domain.MarketFilter{Resolved: &unresolved})
}

func (s *MarketStore) SetPrices(ctx context.Context, id int64, yes, no float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.YesPrice, m.NoPrice = yes, no
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MarketStore) AddVolume(ctx context.Context, id int64, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Volume += delta
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MarketStore) Resolve(ctx context.Context, id int64, outcome domain.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Resolved = true
	m.Outcome = outcome
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MarketStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func cloneMarket(m *domain.Market) *domain.Market {
	cp := *m
	return &cp
}

func window[T any](in []T, offset, limit int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
