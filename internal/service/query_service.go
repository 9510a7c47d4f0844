// Package service contains the read and write application services exposed
// over REST. Services derive everything from the mirror stores on each call;
// caches only shave latency.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/predyx/predyx/internal/domain"
)

const marketCacheTTL = 30 * time.Second

// PortfolioEntry is one position valued at the current mirror price.
type PortfolioEntry struct {
	Position     *domain.Position `json:"position"`
	Question     string           `json:"question"`
	Resolved     bool             `json:"resolved"`
	CurrentPrice float64          `json:"currentPrice"`
	Value        float64          `json:"value"`
	CostBasis    float64          `json:"costBasis"`
	PnL          float64          `json:"pnl"`
	PnLPct       float64          `json:"pnlPct"`
}

// Portfolio aggregates a holder's open positions.
type Portfolio struct {
	Address    string           `json:"address"`
	Positions  []PortfolioEntry `json:"positions"`
	TotalValue float64          `json:"totalValue"`
	TotalCost  float64          `json:"totalCost"`
	TotalPnL   float64          `json:"totalPnl"`
}

// Claimable is a winning position on a resolved market, redeemable 1:1.
type Claimable struct {
	Market *domain.Market `json:"market"`
	Side   domain.Side    `json:"side"`
	Shares float64        `json:"shares"`
	Payout float64        `json:"payout"`
}

// QueryService serves all read paths over the mirror.
type QueryService struct {
	markets    domain.MarketStore
	trades     domain.TradeStore
	positions  domain.PositionStore
	prices     domain.PriceHistoryStore
	cache      domain.MarketCache // optional
	priceCache domain.PriceCache  // optional
	log        *slog.Logger
}

func NewQueryService(
	markets domain.MarketStore,
	trades domain.TradeStore,
	positions domain.PositionStore,
	prices domain.PriceHistoryStore,
	cache domain.MarketCache,
	priceCache domain.PriceCache,
	log *slog.Logger,
) *QueryService {
	return &QueryService{
		markets:    markets,
		trades:     trades,
		positions:  positions,
		prices:     prices,
		cache:      cache,
		priceCache: priceCache,
		log:        log.With("component", "query_service"),
	}
}

func (s *QueryService) ListMarkets(ctx context.Context, f domain.MarketFilter) ([]*domain.Market, error) {
	return s.markets.List(ctx, f)
}

func (s *QueryService) SearchMarkets(ctx context.Context, query string, limit int) ([]*domain.Market, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", domain.ErrInvalidInput)
	}
	return s.markets.Search(ctx, query, limit)
}

// FeaturedMarkets returns the top markets by volume for the front-page
// carousel.
func (s *QueryService) FeaturedMarkets(ctx context.Context) ([]*domain.Market, error) {
	return s.markets.List(ctx, domain.MarketFilter{
		Sort:  domain.SortVolume,
		Limit: 3,
	})
}

// GetMarket resolves a market by numeric id or 0x address and returns it
// with a bounded slice of its price history.
func (s *QueryService) GetMarket(ctx context.Context, idOrAddress string, historyLimit int) (*domain.Market, []*domain.PricePoint, error) {
	m, err := s.lookupMarket(ctx, idOrAddress)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.prices.ListByMarket(ctx, m.ID, time.Time{}, historyLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("price history for market %d: %w", m.ID, err)
	}
	return m, history, nil
}

func (s *QueryService) lookupMarket(ctx context.Context, idOrAddress string) (*domain.Market, error) {
	if strings.HasPrefix(idOrAddress, "0x") {
		return s.markets.GetByAddress(ctx, idOrAddress)
	}
	id, err := strconv.ParseInt(idOrAddress, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: market id %q", domain.ErrInvalidInput, idOrAddress)
	}
	if s.cache != nil {
		if m, err := s.cache.GetMarket(ctx, id); err == nil {
			return m, nil
		}
	}
	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetMarket(ctx, m, marketCacheTTL); err != nil {
			s.log.Warn("market cache set failed", "market_id", id, "error", err)
		}
	}
	return m, nil
}

func (s *QueryService) GetTrades(ctx context.Context, marketID int64, limit int) ([]*domain.Trade, error) {
	if _, err := s.markets.GetByID(ctx, marketID); err != nil {
		return nil, err
	}
	return s.trades.ListByMarket(ctx, marketID, limit)
}

func (s *QueryService) GetTradeHistory(ctx context.Context, address string, limit int) ([]*domain.Trade, error) {
	return s.trades.ListByUser(ctx, address, limit)
}

// GetPortfolio values every open position at the current mirror price.
// Value and cost are in collateral units; prices are percentages, so one
// share at 100% is worth exactly one unit.
func (s *QueryService) GetPortfolio(ctx context.Context, address string) (*Portfolio, error) {
	positions, err := s.positions.ListByUser(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("positions for %s: %w", address, err)
	}

	p := &Portfolio{Address: strings.ToLower(address), Positions: []PortfolioEntry{}}
	for _, pos := range positions {
		m, err := s.markets.GetByID(ctx, pos.MarketID)
		if err != nil {
			return nil, fmt.Errorf("market %d for position: %w", pos.MarketID, err)
		}
		price := s.sidePrice(ctx, m, pos.Side)
		entry := PortfolioEntry{
			Position:     pos,
			Question:     m.Question,
			Resolved:     m.Resolved,
			CurrentPrice: price,
			Value:        pos.Shares * price / 100,
			CostBasis:    pos.Shares * pos.AvgPrice / 100,
		}
		entry.PnL = entry.Value - entry.CostBasis
		if entry.CostBasis > 0 {
			entry.PnLPct = entry.PnL / entry.CostBasis * 100
		}
		p.Positions = append(p.Positions, entry)
		p.TotalValue += entry.Value
		p.TotalCost += entry.CostBasis
		p.TotalPnL += entry.PnL
	}
	return p, nil
}

// sidePrice returns the freshest known price for one side of a market: the
// price cache when it has the market, the mirror row otherwise. The cache is
// updated on every applied trade, so it can be ahead of a stale snapshot.
func (s *QueryService) sidePrice(ctx context.Context, m *domain.Market, side domain.Side) float64 {
	if s.priceCache != nil {
		if yes, no, err := s.priceCache.GetPrice(ctx, m.ID); err == nil {
			if side == domain.SideNo {
				return no
			}
			return yes
		}
	}
	if side == domain.SideNo {
		return m.NoPrice
	}
	return m.YesPrice
}

// GetClaimable lists winning positions on resolved markets; each pays one
// unit per share.
func (s *QueryService) GetClaimable(ctx context.Context, address string) ([]Claimable, error) {
	positions, err := s.positions.ListByUser(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("positions for %s: %w", address, err)
	}

	claimable := []Claimable{}
	for _, pos := range positions {
		m, err := s.markets.GetByID(ctx, pos.MarketID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !m.Resolved || m.Outcome != pos.Side {
			continue
		}
		claimable = append(claimable, Claimable{
			Market: m,
			Side:   pos.Side,
			Shares: pos.Shares,
			Payout: pos.Shares,
		})
	}
	return claimable, nil
}
