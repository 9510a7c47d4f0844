// Package registry owns the set of deployed markets. It validates creation
// parameters, assigns ids and deterministic addresses, seeds the pool, and
// keeps the append-only list used for enumeration and full resync.
package registry

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/predyx/predyx/internal/engine"
)

const maxFeeBps = 1000 // 10%

var (
	ErrPastResolution = errors.New("resolution date must be in the future")
	ErrInvalidFee     = errors.New("trading fee out of range")
	ErrEmptyQuestion  = errors.New("question must not be empty")
	ErrNotFound       = errors.New("market not found")
)

// Entry is one created market and its creation metadata.
type Entry struct {
	ID        uint64
	Address   string
	Creator   string
	Market    *engine.Market
	CreatedAt time.Time
}

// Registry creates markets and enumerates them in creation order.
type Registry struct {
	mu      sync.Mutex
	entries []*Entry
	byAddr  map[string]*Entry
}

func New() *Registry {
	return &Registry{byAddr: make(map[string]*Entry)}
}

// Create validates the parameters, deploys a new market engine with the
// initial liquidity split 50/50, and appends it to the enumeration list.
func (r *Registry) Create(creator string, cfg engine.Config, initialLiquidity int64) (*Entry, error) {
	if cfg.Question == "" {
		return nil, ErrEmptyQuestion
	}
	if !cfg.ResolutionDate.After(time.Now()) {
		return nil, ErrPastResolution
	}
	if cfg.FeeBps < 0 || cfg.FeeBps > maxFeeBps {
		return nil, ErrInvalidFee
	}

	m := engine.New(cfg)
	if err := m.InitializePool(initialLiquidity); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	id := uint64(len(r.entries)) + 1
	e := &Entry{
		ID:        id,
		Address:   deriveAddress(id, cfg.Question),
		Creator:   creator,
		Market:    m,
		CreatedAt: time.Now().UTC(),
	}
	r.entries = append(r.entries, e)
	r.byAddr[e.Address] = e
	return e, nil
}

// Get returns the entry for an address.
func (r *Registry) Get(address string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byAddr[address]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// List returns all entries in creation order.
func (r *Registry) List() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns the number of created markets.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// deriveAddress builds a deterministic contract-style address from the
// market id and question, the same way a create-opcode address is formed
// from stable inputs.
func deriveAddress(id uint64, question string) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	h := crypto.Keccak256(buf[:], []byte(question))
	return common.BytesToAddress(h[12:]).Hex()
}
