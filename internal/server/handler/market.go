package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/predyx/predyx/internal/domain"
)

const (
	defaultHistoryLimit = 200
	defaultTradesLimit  = 20
)

// MarketReader is the read surface the market endpoints need.
type MarketReader interface {
	ListMarkets(ctx context.Context, f domain.MarketFilter) ([]*domain.Market, error)
	SearchMarkets(ctx context.Context, query string, limit int) ([]*domain.Market, error)
	FeaturedMarkets(ctx context.Context) ([]*domain.Market, error)
	GetMarket(ctx context.Context, idOrAddress string, historyLimit int) (*domain.Market, []*domain.PricePoint, error)
	GetTrades(ctx context.Context, marketID int64, limit int) ([]*domain.Trade, error)
}

type MarketHandler struct {
	svc MarketReader
}

func NewMarketHandler(svc MarketReader) *MarketHandler {
	return &MarketHandler{svc: svc}
}

// GET /api/markets?category=&resolved=&sort=&limit=&offset=
func (h *MarketHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r)
	f := domain.MarketFilter{
		Category: r.URL.Query().Get("category"),
		Sort:     r.URL.Query().Get("sort"),
		Limit:    limit,
		Offset:   offset,
	}
	if v := r.URL.Query().Get("resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "resolved must be a boolean")
			return
		}
		f.Resolved = &resolved
	}

	markets, err := h.svc.ListMarkets(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets, "count": len(markets)})
}

// GET /api/markets/featured
func (h *MarketHandler) Featured(w http.ResponseWriter, r *http.Request) {
	markets, err := h.svc.FeaturedMarkets(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, markets)
}

// GET /api/markets/search?q=
func (h *MarketHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := parseLimitOffset(r)
	markets, err := h.svc.SearchMarkets(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets, "count": len(markets)})
}

// GET /api/markets/{id}   (numeric id or 0x address)
func (h *MarketHandler) Get(w http.ResponseWriter, r *http.Request) {
	idOrAddress := strings.TrimSpace(r.PathValue("id"))
	historyLimit := defaultHistoryLimit
	if v := r.URL.Query().Get("history"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			historyLimit = min(n, maxLimit)
		}
	}
	m, history, err := h.svc.GetMarket(r.Context(), idOrAddress, historyLimit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"market": m, "priceHistory": history})
}

// GET /api/markets/{id}/trades
func (h *MarketHandler) Trades(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "market id must be numeric")
		return
	}
	limit := defaultTradesLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}
	trades, err := h.svc.GetTrades(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades, "count": len(trades)})
}
