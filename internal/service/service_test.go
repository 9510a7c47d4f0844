package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/predyx/predyx/internal/domain"
	"github.com/predyx/predyx/internal/store/memory"
)

type env struct {
	markets   *memory.MarketStore
	trades    *memory.TradeStore
	positions *memory.PositionStore
	prices    *memory.PriceHistoryStore
	query     *QueryService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	e := &env{
		markets:   memory.NewMarketStore(),
		trades:    memory.NewTradeStore(),
		positions: memory.NewPositionStore(),
		prices:    memory.NewPriceHistoryStore(),
	}
	e.query = NewQueryService(e.markets, e.trades, e.positions, e.prices, nil, nil, log)
	return e
}

func (e *env) addMarket(t *testing.T, m *domain.Market) *domain.Market {
	t.Helper()
	if m.ResolutionDate.IsZero() {
		m.ResolutionDate = time.Now().Add(24 * time.Hour)
	}
	if err := e.markets.Upsert(context.Background(), m); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return m
}

func TestGetMarketByIDAndAddress(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	m := e.addMarket(t, &domain.Market{
		Address:  "0xAbC0000000000000000000000000000000000001",
		Question: "By id or address?",
		YesPrice: 60, NoPrice: 40,
	})
	for i := 0; i < 3; i++ {
		if err := e.prices.Append(ctx, &domain.PricePoint{MarketID: m.ID, YesPrice: 60, NoPrice: 40}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, history, err := e.query.GetMarket(ctx, "1", 2)
	if err != nil {
		t.Fatalf("GetMarket by id: %v", err)
	}
	if got.Address != m.Address {
		t.Errorf("got market %s, want %s", got.Address, m.Address)
	}
	if len(history) != 2 {
		t.Errorf("history len = %d, want bounded to 2", len(history))
	}

	if _, _, err := e.query.GetMarket(ctx, m.Address, 0); err != nil {
		t.Errorf("GetMarket by address: %v", err)
	}
	if _, _, err := e.query.GetMarket(ctx, "999", 0); err == nil {
		t.Error("GetMarket for unknown id succeeded")
	}
	if _, _, err := e.query.GetMarket(ctx, "not-a-number", 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("bad id err = %v, want ErrInvalidInput", err)
	}
}

func TestFeaturedMarketsTopByVolume(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addMarket(t, &domain.Market{Address: "0x01", Question: "quiet", Volume: 10})
	busy := e.addMarket(t, &domain.Market{Address: "0x02", Question: "busy", Volume: 500})
	e.addMarket(t, &domain.Market{Address: "0x03", Question: "mid", Volume: 200})
	e.addMarket(t, &domain.Market{Address: "0x04", Question: "dead", Volume: 1})

	got, err := e.query.FeaturedMarkets(ctx)
	if err != nil {
		t.Fatalf("FeaturedMarkets: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("featured count = %d, want 3", len(got))
	}
	if got[0].ID != busy.ID {
		t.Errorf("featured[0] = %q, want the busiest market", got[0].Question)
	}
}

func TestPortfolioValuation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	m := e.addMarket(t, &domain.Market{
		Address: "0x0A", Question: "valued?", YesPrice: 70, NoPrice: 30,
	})
	if err := e.positions.Upsert(ctx, &domain.Position{
		MarketID: m.ID, UserAddress: "0xAlice", Side: domain.SideYes,
		Shares: 10, AvgPrice: 50,
	}); err != nil {
		t.Fatalf("Upsert position: %v", err)
	}

	p, err := e.query.GetPortfolio(ctx, "0xAlice")
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if len(p.Positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(p.Positions))
	}
	entry := p.Positions[0]
	if math.Abs(entry.Value-7.0) > 1e-9 { // 10 shares at 70%
		t.Errorf("value = %v, want 7", entry.Value)
	}
	if math.Abs(entry.CostBasis-5.0) > 1e-9 { // 10 shares at 50%
		t.Errorf("cost basis = %v, want 5", entry.CostBasis)
	}
	if math.Abs(entry.PnL-2.0) > 1e-9 {
		t.Errorf("pnl = %v, want 2", entry.PnL)
	}
	if math.Abs(entry.PnLPct-40.0) > 1e-9 { // 2 gained on a cost of 5
		t.Errorf("pnl pct = %v, want 40", entry.PnLPct)
	}
	if math.Abs(p.TotalPnL-2.0) > 1e-9 {
		t.Errorf("total pnl = %v, want 2", p.TotalPnL)
	}
}

// fakePriceCache serves a fixed quote for a single market id.
type fakePriceCache struct {
	marketID int64
	yes, no  float64
}

func (f *fakePriceCache) SetPrice(ctx context.Context, marketID int64, yes, no float64) error {
	return nil
}

func (f *fakePriceCache) GetPrice(ctx context.Context, marketID int64) (float64, float64, error) {
	if marketID != f.marketID {
		return 0, 0, domain.ErrNotFound
	}
	return f.yes, f.no, nil
}

func TestPortfolioPrefersPriceCache(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	m := e.addMarket(t, &domain.Market{
		Address: "0x0F", Question: "cached?", YesPrice: 70, NoPrice: 30,
	})
	if err := e.positions.Upsert(ctx, &domain.Position{
		MarketID: m.ID, UserAddress: "0xAlice", Side: domain.SideYes,
		Shares: 10, AvgPrice: 50,
	}); err != nil {
		t.Fatalf("Upsert position: %v", err)
	}
	// The cache carries a fresher quote than the mirror row.
	e.query.priceCache = &fakePriceCache{marketID: m.ID, yes: 80, no: 20}

	p, err := e.query.GetPortfolio(ctx, "0xAlice")
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	entry := p.Positions[0]
	if math.Abs(entry.CurrentPrice-80.0) > 1e-9 {
		t.Errorf("current price = %v, want the cached 80", entry.CurrentPrice)
	}
	if math.Abs(entry.Value-8.0) > 1e-9 { // 10 shares at the cached 80%
		t.Errorf("value = %v, want 8", entry.Value)
	}

	// A cache miss falls back to the mirror row.
	e.query.priceCache = &fakePriceCache{marketID: m.ID + 1}
	p, err = e.query.GetPortfolio(ctx, "0xAlice")
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if math.Abs(p.Positions[0].CurrentPrice-70.0) > 1e-9 {
		t.Errorf("fallback price = %v, want the mirror's 70", p.Positions[0].CurrentPrice)
	}
}

func TestClaimableOnlyWinningResolvedSides(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	won := e.addMarket(t, &domain.Market{Address: "0x0B", Question: "won", Resolved: true, Outcome: domain.SideYes})
	lost := e.addMarket(t, &domain.Market{Address: "0x0C", Question: "lost", Resolved: true, Outcome: domain.SideNo})
	open := e.addMarket(t, &domain.Market{Address: "0x0D", Question: "open"})

	for _, pos := range []*domain.Position{
		{MarketID: won.ID, UserAddress: "0xAlice", Side: domain.SideYes, Shares: 12, AvgPrice: 40},
		{MarketID: lost.ID, UserAddress: "0xAlice", Side: domain.SideYes, Shares: 5, AvgPrice: 60},
		{MarketID: open.ID, UserAddress: "0xAlice", Side: domain.SideNo, Shares: 3, AvgPrice: 50},
	} {
		if err := e.positions.Upsert(ctx, pos); err != nil {
			t.Fatalf("Upsert position: %v", err)
		}
	}

	claims, err := e.query.GetClaimable(ctx, "0xAlice")
	if err != nil {
		t.Fatalf("GetClaimable: %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("got %d claims, want 1", len(claims))
	}
	c := claims[0]
	if c.Market.ID != won.ID || c.Shares != 12 || c.Payout != 12 {
		t.Errorf("claim = %+v, want 12 shares paying 12 units on the won market", c)
	}
}

// recordingIngester counts Ingest calls and reports duplicates by tx hash.
type recordingIngester struct {
	seen map[string]bool
}

func (r *recordingIngester) Ingest(ctx context.Context, tr *domain.Trade) (bool, error) {
	if r.seen == nil {
		r.seen = map[string]bool{}
	}
	if r.seen[tr.TxHash] {
		return false, nil
	}
	r.seen[tr.TxHash] = true
	tr.ID = int64(len(r.seen))
	return true, nil
}

func TestRecordTrade(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	m := e.addMarket(t, &domain.Market{Address: "0x0E", Question: "record?"})
	svc := NewTradeService(e.markets, &recordingIngester{}, slog.New(slog.DiscardHandler))

	req := RecordTradeRequest{
		MarketAddress: m.Address,
		UserAddress:   "0xAliceB00000000000000000000000000000000001",
		Action:        domain.ActionBuyYes,
		Shares:        4,
		Price:         55,
		Amount:        2.2,
		TxHash:        "0xdeadbeef",
	}
	trade, err := svc.RecordTrade(ctx, req)
	if err != nil {
		t.Fatalf("RecordTrade: %v", err)
	}
	if trade.MarketID != m.ID || trade.UserAddress != "0xaliceb00000000000000000000000000000000001" {
		t.Errorf("trade = %+v, want lowercased holder on market %d", trade, m.ID)
	}

	if _, err := svc.RecordTrade(ctx, req); !errors.Is(err, domain.ErrAlreadyRecorded) {
		t.Errorf("duplicate err = %v, want ErrAlreadyRecorded", err)
	}

	bad := req
	bad.TxHash = "0xother"
	bad.Action = "SHORT_YES"
	if _, err := svc.RecordTrade(ctx, bad); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("bad action err = %v, want ErrInvalidInput", err)
	}

	bad = req
	bad.TxHash = "0xother2"
	bad.Shares = 0
	if _, err := svc.RecordTrade(ctx, bad); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("zero shares err = %v, want ErrInvalidInput", err)
	}

	bad = req
	bad.TxHash = "0xother3"
	bad.MarketAddress = "0x00000000000000000000000000000000000000ff"
	if _, err := svc.RecordTrade(ctx, bad); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown market err = %v, want ErrNotFound", err)
	}
}
