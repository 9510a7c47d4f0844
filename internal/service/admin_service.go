package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/predyx/predyx/internal/domain"
	"github.com/predyx/predyx/internal/engine"
	"github.com/predyx/predyx/internal/registry"
)

// ErrChainWritesDisabled is returned when an admin write is requested in a
// deployment that mirrors a real chain instead of running the simulator.
var ErrChainWritesDisabled = errors.New("chain writes are disabled in this mode")

// ChainWriter is the write surface of the simulated chain.
type ChainWriter interface {
	CreateMarket(creator string, cfg engine.Config, initialLiquidity int64) (*registry.Entry, error)
	Resolve(caller, address string, outcome domain.Side) (string, error)
}

// Resyncer re-derives the mirror from live chain state.
type Resyncer interface {
	Resync(ctx context.Context) error
}

// CreateMarketRequest is the admin payload for deploying a simulated market.
type CreateMarketRequest struct {
	Question         string    `json:"question"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	ResolutionDate   time.Time `json:"resolutionDate"`
	Oracle           string    `json:"oracle"`
	Creator          string    `json:"creator"`
	InitialLiquidity float64   `json:"initialLiquidity"`
	FeeBps           int64     `json:"tradingFee"`
}

// ResolveMarketRequest settles a simulated market through its oracle.
type ResolveMarketRequest struct {
	MarketAddress string `json:"marketAddress"`
	Oracle        string `json:"oracle"`
	Outcome       string `json:"outcome"`
}

// AdminService exposes operator actions: resync, and, when the simulator is
// wired, market creation and resolution. The poller picks up the resulting
// events on its next scan.
type AdminService struct {
	writer ChainWriter // nil unless the simulator backs the deployment
	resync Resyncer
	log    *slog.Logger
}

func NewAdminService(writer ChainWriter, resync Resyncer, log *slog.Logger) *AdminService {
	return &AdminService{
		writer: writer,
		resync: resync,
		log:    log.With("component", "admin_service"),
	}
}

func (s *AdminService) Resync(ctx context.Context) error {
	s.log.Info("manual resync requested")
	return s.resync.Resync(ctx)
}

func (s *AdminService) CreateMarket(ctx context.Context, req CreateMarketRequest) (*registry.Entry, error) {
	if s.writer == nil {
		return nil, ErrChainWritesDisabled
	}
	if req.InitialLiquidity <= 0 {
		return nil, fmt.Errorf("%w: initial liquidity must be positive", domain.ErrInvalidInput)
	}
	creator := req.Creator
	if creator == "" {
		creator = req.Oracle
	}
	entry, err := s.writer.CreateMarket(creator, engine.Config{
		Question:       req.Question,
		Description:    req.Description,
		Category:       req.Category,
		ResolutionDate: req.ResolutionDate,
		Oracle:         req.Oracle,
		FeeBps:         req.FeeBps,
	}, engine.ToRaw(req.InitialLiquidity))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	s.log.Info("market created", "id", entry.ID, "address", entry.Address, "question", req.Question)
	return entry, nil
}

func (s *AdminService) ResolveMarket(ctx context.Context, req ResolveMarketRequest) (string, error) {
	if s.writer == nil {
		return "", ErrChainWritesDisabled
	}
	outcome := domain.Side(strings.ToUpper(req.Outcome))
	if outcome != domain.SideYes && outcome != domain.SideNo {
		return "", fmt.Errorf("%w: outcome %q", domain.ErrInvalidInput, req.Outcome)
	}
	tx, err := s.writer.Resolve(req.Oracle, req.MarketAddress, outcome)
	if err != nil {
		if errors.Is(err, engine.ErrNotOracle) {
			return "", fmt.Errorf("%w: caller is not the market oracle", domain.ErrUnauthorized)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	s.log.Info("market resolved", "address", req.MarketAddress, "outcome", outcome, "tx", tx)
	return tx, nil
}
