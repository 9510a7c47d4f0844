package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/predyx/predyx/internal/domain"
	"github.com/predyx/predyx/internal/service"
	"github.com/predyx/predyx/internal/store/memory"
)

// storeIngester writes trades straight to the store, standing in for the
// reconciler on the write path.
type storeIngester struct {
	trades *memory.TradeStore
}

func (s *storeIngester) Ingest(ctx context.Context, t *domain.Trade) (bool, error) {
	return s.trades.Insert(ctx, t)
}

type fixture struct {
	markets   *memory.MarketStore
	trades    *memory.TradeStore
	positions *memory.PositionStore
	mux       *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.DiscardHandler)

	f := &fixture{
		markets:   memory.NewMarketStore(),
		trades:    memory.NewTradeStore(),
		positions: memory.NewPositionStore(),
		mux:       http.NewServeMux(),
	}
	prices := memory.NewPriceHistoryStore()

	query := service.NewQueryService(f.markets, f.trades, f.positions, prices, nil, nil, log)
	tradeSvc := service.NewTradeService(f.markets, &storeIngester{trades: f.trades}, log)
	admin := service.NewAdminService(nil, noopResyncer{}, log)

	markets := NewMarketHandler(query)
	portfolio := NewPortfolioHandler(query)
	tradesH := NewTradeHandler(tradeSvc)
	adminH := NewAdminHandler(admin)
	health := NewHealthHandler(f.markets, nil)

	f.mux.HandleFunc("GET /api/health", health.Health)
	f.mux.HandleFunc("GET /api/markets", markets.List)
	f.mux.HandleFunc("GET /api/markets/featured", markets.Featured)
	f.mux.HandleFunc("GET /api/markets/search", markets.Search)
	f.mux.HandleFunc("GET /api/markets/{id}", markets.Get)
	f.mux.HandleFunc("GET /api/markets/{id}/trades", markets.Trades)
	f.mux.HandleFunc("GET /api/portfolio/{address}", portfolio.Portfolio)
	f.mux.HandleFunc("GET /api/portfolio/{address}/history", portfolio.History)
	f.mux.HandleFunc("GET /api/portfolio/{address}/claimable", portfolio.Claimable)
	f.mux.HandleFunc("POST /api/trades", tradesH.Record)
	f.mux.HandleFunc("POST /api/admin/resolve", adminH.Resolve)
	return f
}

type noopResyncer struct{}

func (noopResyncer) Resync(ctx context.Context) error { return nil }

func (f *fixture) addMarket(t *testing.T, m *domain.Market) *domain.Market {
	t.Helper()
	if m.ResolutionDate.IsZero() {
		m.ResolutionDate = time.Now().Add(24 * time.Hour)
	}
	if err := f.markets.Upsert(context.Background(), m); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return m
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[map[string]any](t, rec)
	if resp["status"] != "ok" {
		t.Errorf("status field = %v, want ok", resp["status"])
	}
}

func TestListMarketsFilters(t *testing.T) {
	f := newFixture(t)
	f.addMarket(t, &domain.Market{Address: "0x01", Question: "open sports", Category: "sports"})
	f.addMarket(t, &domain.Market{Address: "0x02", Question: "open politics", Category: "politics"})
	f.addMarket(t, &domain.Market{Address: "0x03", Question: "done sports", Category: "sports", Resolved: true, Outcome: domain.SideNo})

	rec := f.do(t, http.MethodGet, "/api/markets?category=sports&resolved=false", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[struct {
		Markets []domain.Market `json:"markets"`
		Count   int             `json:"count"`
	}](t, rec)
	if resp.Count != 1 || resp.Markets[0].Address != "0x01" {
		t.Errorf("got %+v, want only the open sports market", resp)
	}

	if rec := f.do(t, http.MethodGet, "/api/markets?resolved=perhaps", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad resolved flag status = %d, want 400", rec.Code)
	}
}

func TestGetMarketRoutes(t *testing.T) {
	f := newFixture(t)
	m := f.addMarket(t, &domain.Market{Address: "0xAbC0000000000000000000000000000000000001", Question: "routed?"})

	rec := f.do(t, http.MethodGet, "/api/markets/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("by id status = %d, want 200", rec.Code)
	}
	resp := decode[struct {
		Market domain.Market `json:"market"`
	}](t, rec)
	if resp.Market.Address != m.Address {
		t.Errorf("market address = %s, want %s", resp.Market.Address, m.Address)
	}

	if rec := f.do(t, http.MethodGet, "/api/markets/"+m.Address, ""); rec.Code != http.StatusOK {
		t.Errorf("by address status = %d, want 200", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/markets/999", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/markets/not-a-number", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/markets/abc/trades", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric trades id status = %d, want 400", rec.Code)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	f := newFixture(t)
	f.addMarket(t, &domain.Market{Address: "0x01", Question: "will it rain tomorrow"})

	rec := f.do(t, http.MethodGet, "/api/markets/search?q=rain", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[struct {
		Count int `json:"count"`
	}](t, rec)
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}

	if rec := f.do(t, http.MethodGet, "/api/markets/search", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("empty query status = %d, want 400", rec.Code)
	}
}

func TestPortfolioAddressValidation(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/api/portfolio/alice", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bare name status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/portfolio/0xAlice/claimable", ""); rec.Code != http.StatusOK {
		t.Errorf("claimable status = %d, want 200", rec.Code)
	}
}

func TestClaimableReportsTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	won := f.addMarket(t, &domain.Market{
		Address: "0x0000000000000000000000000000000000000b01", Question: "won?",
		Resolved: true, Outcome: domain.SideYes,
	})
	for _, pos := range []*domain.Position{
		{MarketID: won.ID, UserAddress: "0xAlice", Side: domain.SideYes, Shares: 12, AvgPrice: 40},
		{MarketID: won.ID, UserAddress: "0xAlice", Side: domain.SideNo, Shares: 7, AvgPrice: 60},
	} {
		if err := f.positions.Upsert(ctx, pos); err != nil {
			t.Fatalf("Upsert position: %v", err)
		}
	}

	rec := f.do(t, http.MethodGet, "/api/portfolio/0xAlice/claimable", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decode[struct {
		TotalClaimable float64 `json:"totalClaimable"`
		Count          int     `json:"count"`
	}](t, rec)
	if resp.Count != 1 {
		t.Fatalf("count = %d, want only the winning side", resp.Count)
	}
	if resp.TotalClaimable != 12 {
		t.Errorf("totalClaimable = %v, want 12", resp.TotalClaimable)
	}
}

func TestRecordTradeEndpoint(t *testing.T) {
	f := newFixture(t)
	m := f.addMarket(t, &domain.Market{Address: "0x0000000000000000000000000000000000000a01", Question: "record?"})

	body := `{"marketAddress":"` + m.Address + `","userAddress":"0xB0b","action":"BUY_YES","shares":4,"price":55,"amount":2.2,"txHash":"0xfeed01"}`
	rec := f.do(t, http.MethodPost, "/api/trades", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	trade := decode[domain.Trade](t, rec)
	if trade.MarketID != m.ID || trade.UserAddress != "0xb0b" {
		t.Errorf("trade = %+v, want lowercased holder on market %d", trade, m.ID)
	}

	if rec := f.do(t, http.MethodPost, "/api/trades", body); rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}

	bad := strings.Replace(body, "BUY_YES", "SHORT_YES", 1)
	bad = strings.Replace(bad, "0xfeed01", "0xfeed02", 1)
	if rec := f.do(t, http.MethodPost, "/api/trades", bad); rec.Code != http.StatusBadRequest {
		t.Errorf("bad action status = %d, want 400", rec.Code)
	}

	if rec := f.do(t, http.MethodPost, "/api/trades", `{"unknown":true}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", rec.Code)
	}
}

func TestAdminWritesUnavailableWithoutSimulator(t *testing.T) {
	f := newFixture(t)
	body := `{"marketAddress":"0x01","oracle":"0x02","outcome":"YES"}`
	if rec := f.do(t, http.MethodPost, "/api/admin/resolve", body); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
