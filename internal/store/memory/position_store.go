package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/predyx/predyx/internal/domain"
)

type positionKey struct {
	marketID int64
	user     string
	side     domain.Side
}

type PositionStore struct {
	mu        sync.RWMutex
	seq       int64
	positions map[positionKey]*domain.Position
}

func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[positionKey]*domain.Position)}
}

func key(marketID int64, user string, side domain.Side) positionKey {
	return positionKey{marketID: marketID, user: strings.ToLower(user), side: side}
}

func (s *PositionStore) Get(ctx context.Context, marketID int64, userAddress string, side domain.Side) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[key(marketID, userAddress, side)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *PositionStore) Upsert(ctx context.Context, p *domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(p.MarketID, p.UserAddress, p.Side)
	now := time.Now().UTC()
	if existing, ok := s.positions[k]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		s.seq++
		p.ID = s.seq
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	cp := *p
	s.positions[k] = &cp
	return nil
}

func (s *PositionStore) Delete(ctx context.Context, marketID int64, userAddress string, side domain.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, key(marketID, userAddress, side))
	return nil
}

func (s *PositionStore) ListByUser(ctx context.Context, userAddress string) ([]*domain.Position, error) {
	return s.list(func(p *domain.Position) bool {
		return strings.EqualFold(p.UserAddress, userAddress)
	})
}

func (s *PositionStore) ListByMarket(ctx context.Context, marketID int64) ([]*domain.Position, error) {
	return s.list(func(p *domain.Position) bool { return p.MarketID == marketID })
}

func (s *PositionStore) list(match func(*domain.Position) bool) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Position
	for _, p := range s.positions {
		if match(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
