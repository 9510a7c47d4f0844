package indexer

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/predyx/predyx/internal/chain"
	"github.com/predyx/predyx/internal/domain"
	"github.com/predyx/predyx/internal/engine"
	"github.com/predyx/predyx/internal/registry"
	"github.com/predyx/predyx/internal/store/memory"
)

type fixture struct {
	sim       *chain.Sim
	rec       *Reconciler
	poller    *Poller
	markets   *memory.MarketStore
	trades    *memory.TradeStore
	positions *memory.PositionStore
	prices    *memory.PriceHistoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	f := &fixture{
		sim:       chain.NewSim(registry.New()),
		markets:   memory.NewMarketStore(),
		trades:    memory.NewTradeStore(),
		positions: memory.NewPositionStore(),
		prices:    memory.NewPriceHistoryStore(),
	}
	f.rec = NewReconciler(Deps{
		Source:    f.sim,
		Markets:   f.markets,
		Trades:    f.trades,
		Positions: f.positions,
		Prices:    f.prices,
		Log:       log,
	})
	f.poller = NewPoller(f.sim, f.rec, time.Second, time.Second, log)
	return f
}

func (f *fixture) createMarket(t *testing.T, question string) *registry.Entry {
	t.Helper()
	e, err := f.sim.CreateMarket("0xCreator", engine.Config{
		Question:       question,
		Category:       "crypto",
		ResolutionDate: time.Now().Add(30 * 24 * time.Hour),
		Oracle:         "0xOracle",
		FeeBps:         200,
	}, 1000*engine.UnitScale)
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	return e
}

func TestResyncBackfillsExistingMarkets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createMarket(t, "Market one?")
	e2 := f.createMarket(t, "Market two?")
	if _, err := f.sim.Buy("0xAlice", e2.Address, domain.SideYes, 100*engine.UnitScale); err != nil {
		t.Fatalf("Buy: %v", err)
	}

	// The markets and the trade all predate the reconciler.
	if err := f.rec.Resync(ctx); err != nil {
		t.Fatalf("Resync: %v", err)
	}

	n, _ := f.markets.Count(ctx)
	if n != 2 {
		t.Fatalf("markets after resync = %d, want 2", n)
	}
	m2, err := f.markets.GetByAddress(ctx, e2.Address)
	if err != nil {
		t.Fatalf("GetByAddress: %v", err)
	}
	if m2.YesPrice <= 50 {
		t.Errorf("resync did not pick up live price: yes = %v", m2.YesPrice)
	}
	if m2.Volume != 100 {
		t.Errorf("resync volume = %v, want 100 units", m2.Volume)
	}
	points, _ := f.prices.ListByMarket(ctx, m2.ID, time.Time{}, 0)
	if len(points) != 1 {
		t.Errorf("seeded %d price points, want 1", len(points))
	}
}

func TestScanAppliesTradeEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.createMarket(t, "Will it ship this quarter?")
	f.poller.ScanOnce(ctx)

	tx, err := f.sim.Buy("0xAlice", e.Address, domain.SideYes, 100*engine.UnitScale)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	f.poller.ScanOnce(ctx)
	if wm := f.poller.Watermark(); wm != 2 {
		t.Fatalf("watermark = %d, want 2", wm)
	}

	m, err := f.markets.GetByAddress(ctx, e.Address)
	if err != nil {
		t.Fatalf("market not mirrored: %v", err)
	}
	trades, _ := f.trades.ListByMarket(ctx, m.ID, 0)
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	tr := trades[0]
	if tr.TxHash != tx || tr.Action != domain.ActionBuyYes {
		t.Errorf("trade = %+v, want BUY_YES with tx %s", tr, tx)
	}
	if math.Abs(tr.Shares-81.9398) > 0.0001 {
		t.Errorf("trade shares = %v, want 81.9398", tr.Shares)
	}
	if tr.Amount != 100 {
		t.Errorf("trade amount = %v, want 100", tr.Amount)
	}
	if want := tr.Amount / tr.Shares * 100; math.Abs(tr.Price-want) > 1e-9 {
		t.Errorf("trade price = %v, want realized %v", tr.Price, want)
	}

	pos, err := f.positions.Get(ctx, m.ID, "0xalice", domain.SideYes)
	if err != nil {
		t.Fatalf("position missing: %v", err)
	}
	if pos.Shares != tr.Shares || pos.AvgPrice != tr.Price {
		t.Errorf("position = %+v, want first-buy mirror of the trade", pos)
	}
	if m.Volume != 100 {
		t.Errorf("market volume = %v, want 100", m.Volume)
	}
	if m.YesPrice <= 50 || m.NoPrice >= 50 {
		t.Errorf("mirror prices = %v/%v, want moved off 50/50", m.YesPrice, m.NoPrice)
	}
	points, _ := f.prices.ListByMarket(ctx, m.ID, time.Time{}, 0)
	if len(points) != 2 { // creation seed + trade
		t.Errorf("got %d price points, want 2", len(points))
	}
}

func TestReplayedRangeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.createMarket(t, "Replay safe?")
	f.poller.ScanOnce(ctx)
	if _, err := f.sim.Buy("0xAlice", e.Address, domain.SideYes, 100*engine.UnitScale); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	f.poller.ScanOnce(ctx)
	m, _ := f.markets.GetByAddress(ctx, e.Address)
	posBefore, _ := f.positions.Get(ctx, m.ID, "0xalice", domain.SideYes)

	// A crash before the watermark advanced replays the whole range.
	events, _ := f.sim.Events(ctx, 1, 2)
	for _, ev := range events {
		if err := f.rec.Apply(ctx, ev); err != nil {
			t.Fatalf("replay apply: %v", err)
		}
	}

	trades, _ := f.trades.ListByMarket(ctx, m.ID, 0)
	if len(trades) != 1 {
		t.Errorf("replay duplicated trades: got %d, want 1", len(trades))
	}
	m2, _ := f.markets.GetByAddress(ctx, e.Address)
	if m2.Volume != m.Volume {
		t.Errorf("replay bumped volume: %v -> %v", m.Volume, m2.Volume)
	}
	posAfter, _ := f.positions.Get(ctx, m2.ID, "0xalice", domain.SideYes)
	if posAfter.Shares != posBefore.Shares || posAfter.AvgPrice != posBefore.AvgPrice {
		t.Errorf("replay changed position: %+v -> %+v", posBefore, posAfter)
	}
}

func TestPositionMergeAndSellDeletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.createMarket(t, "Merge positions?")

	if _, err := f.sim.Buy("0xAlice", e.Address, domain.SideYes, 100*engine.UnitScale); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if _, err := f.sim.Buy("0xAlice", e.Address, domain.SideYes, 50*engine.UnitScale); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	f.poller.ScanOnce(ctx)

	m, _ := f.markets.GetByAddress(ctx, e.Address)
	trades, _ := f.trades.ListByMarket(ctx, m.ID, 0)
	if len(trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(trades))
	}

	pos, err := f.positions.Get(ctx, m.ID, "0xalice", domain.SideYes)
	if err != nil {
		t.Fatalf("position missing: %v", err)
	}
	// Order in ListByMarket is newest first.
	second, first := trades[0], trades[1]
	wantShares := first.Shares + second.Shares
	wantAvg := (first.Shares*first.Price + second.Shares*second.Price) / wantShares
	if math.Abs(pos.Shares-wantShares) > 1e-9 {
		t.Errorf("merged shares = %v, want %v", pos.Shares, wantShares)
	}
	if math.Abs(pos.AvgPrice-wantAvg) > 1e-9 {
		t.Errorf("merged avg price = %v, want weighted %v", pos.AvgPrice, wantAvg)
	}
	if pos.AvgPrice <= first.Price || pos.AvgPrice >= second.Price {
		t.Errorf("avg price %v not between %v and %v", pos.AvgPrice, first.Price, second.Price)
	}

	// Sell everything: position disappears.
	held := e.Market.SharesOf("0xAlice", domain.SideYes)
	if _, err := f.sim.Sell("0xAlice", e.Address, domain.SideYes, held); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	f.poller.ScanOnce(ctx)
	if _, err := f.positions.Get(ctx, m.ID, "0xalice", domain.SideYes); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("position after sell-all err = %v, want ErrNotFound", err)
	}
}

func TestResolutionEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.createMarket(t, "Resolves YES?")
	if _, err := f.sim.Resolve("0xOracle", e.Address, domain.SideYes); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	f.poller.ScanOnce(ctx)

	m, err := f.markets.GetByAddress(ctx, e.Address)
	if err != nil {
		t.Fatalf("market missing: %v", err)
	}
	if !m.Resolved || m.Outcome != domain.SideYes {
		t.Errorf("mirror = resolved %v outcome %q, want YES resolution", m.Resolved, m.Outcome)
	}
}

// Exercises concurrent watermark reads against a running scan loop; the
// race detector flags any unsynchronized access.
func TestWatermarkReadableWhileScanning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.createMarket(t, "Concurrent reads?")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := f.sim.Buy("0xAlice", e.Address, domain.SideYes, engine.UnitScale); err != nil {
				return
			}
			f.poller.ScanOnce(ctx)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = f.poller.Watermark()
		}
	}()
	wg.Wait()

	if wm := f.poller.Watermark(); wm == 0 {
		t.Error("watermark never advanced")
	}
}

func TestClaimEventClearsPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.createMarket(t, "Pays out on YES?")
	if _, err := f.sim.Buy("0xAlice", e.Address, domain.SideYes, 100*engine.UnitScale); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if _, err := f.sim.Resolve("0xOracle", e.Address, domain.SideYes); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	f.poller.ScanOnce(ctx)

	m, err := f.markets.GetByAddress(ctx, e.Address)
	if err != nil {
		t.Fatalf("market missing: %v", err)
	}
	if _, err := f.positions.Get(ctx, m.ID, "0xalice", domain.SideYes); err != nil {
		t.Fatalf("winning position missing before claim: %v", err)
	}

	if _, err := f.sim.Claim("0xAlice", e.Address); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	f.poller.ScanOnce(ctx)

	if _, err := f.positions.Get(ctx, m.ID, "0xalice", domain.SideYes); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("position after claim err = %v, want ErrNotFound", err)
	}
}

// failingSource wraps the sim and fails event fetches on demand.
type failingSource struct {
	chain.Source
	fail bool
}

func (s *failingSource) Events(ctx context.Context, from, to uint64) ([]domain.ChainEvent, error) {
	if s.fail {
		return nil, errors.New("rpc: connection reset")
	}
	return s.Source.Events(ctx, from, to)
}

func TestScanAbandonsTickOnFetchError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := &failingSource{Source: f.sim}
	f.rec = NewReconciler(Deps{
		Source:    src,
		Markets:   f.markets,
		Trades:    f.trades,
		Positions: f.positions,
		Prices:    f.prices,
		Log:       slog.New(slog.DiscardHandler),
	})
	f.poller = NewPoller(src, f.rec, time.Second, time.Second, slog.New(slog.DiscardHandler))

	e := f.createMarket(t, "Retries after errors?")
	tx, err := f.sim.Buy("0xAlice", e.Address, domain.SideYes, 10*engine.UnitScale)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}

	src.fail = true
	f.poller.ScanOnce(ctx)
	if wm := f.poller.Watermark(); wm != 0 {
		t.Fatalf("watermark advanced over a failed fetch: %d", wm)
	}

	// The next healthy tick re-fetches the same range.
	src.fail = false
	f.poller.ScanOnce(ctx)
	if wm := f.poller.Watermark(); wm != 2 {
		t.Fatalf("watermark = %d after recovery, want 2", wm)
	}
	m, err := f.markets.GetByAddress(ctx, e.Address)
	if err != nil {
		t.Fatalf("market missing after recovery: %v", err)
	}
	trades, _ := f.trades.ListByMarket(ctx, m.ID, 0)
	if len(trades) != 1 || trades[0].TxHash != tx {
		t.Errorf("trade not recovered: %+v", trades)
	}
}

func TestRefreshSkipsPlaceholderMarkets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	placeholder := &domain.Market{
		Address:        "0x0000000000000000000000000000000000000001",
		Question:       "seed market",
		ResolutionDate: time.Now().Add(time.Hour),
	}
	if err := f.markets.Upsert(ctx, placeholder); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := f.rec.RefreshPrices(ctx); err != nil {
		t.Fatalf("RefreshPrices: %v", err)
	}
	points, _ := f.prices.ListByMarket(ctx, placeholder.ID, time.Time{}, 0)
	if len(points) != 0 {
		t.Errorf("placeholder market was refreshed: %d points", len(points))
	}
}

func TestRefreshUpdatesLivePrices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.createMarket(t, "Live refresh?")
	f.poller.ScanOnce(ctx)

	// A trade the scan has not seen yet: refresh still picks up the price.
	if _, err := f.sim.Buy("0xBob", e.Address, domain.SideNo, 200*engine.UnitScale); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if err := f.rec.RefreshPrices(ctx); err != nil {
		t.Fatalf("RefreshPrices: %v", err)
	}

	m, _ := f.markets.GetByAddress(ctx, e.Address)
	if m.NoPrice <= 50 {
		t.Errorf("refresh missed the live NO price: %v", m.NoPrice)
	}
	if m.Volume != 200 {
		t.Errorf("refresh volume = %v, want 200", m.Volume)
	}
}
