package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/predyx/predyx/internal/domain"
	"github.com/predyx/predyx/internal/service"
)

// PortfolioReader is the read surface the holder endpoints need.
type PortfolioReader interface {
	GetPortfolio(ctx context.Context, address string) (*service.Portfolio, error)
	GetTradeHistory(ctx context.Context, address string, limit int) ([]*domain.Trade, error)
	GetClaimable(ctx context.Context, address string) ([]service.Claimable, error)
}

type PortfolioHandler struct {
	svc PortfolioReader
}

func NewPortfolioHandler(svc PortfolioReader) *PortfolioHandler {
	return &PortfolioHandler{svc: svc}
}

func holderAddress(w http.ResponseWriter, r *http.Request) (string, bool) {
	addr := strings.TrimSpace(r.PathValue("address"))
	if !strings.HasPrefix(addr, "0x") {
		writeError(w, http.StatusBadRequest, "address must start with 0x")
		return "", false
	}
	return addr, true
}

// GET /api/portfolio/{address}
func (h *PortfolioHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	addr, ok := holderAddress(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetPortfolio(r.Context(), addr)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /api/portfolio/{address}/history
func (h *PortfolioHandler) History(w http.ResponseWriter, r *http.Request) {
	addr, ok := holderAddress(w, r)
	if !ok {
		return
	}
	limit, _ := parseLimitOffset(r)
	trades, err := h.svc.GetTradeHistory(r.Context(), addr, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades, "count": len(trades)})
}

// GET /api/portfolio/{address}/claimable
func (h *PortfolioHandler) Claimable(w http.ResponseWriter, r *http.Request) {
	addr, ok := holderAddress(w, r)
	if !ok {
		return
	}
	claims, err := h.svc.GetClaimable(r.Context(), addr)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var total float64
	for _, c := range claims {
		total += c.Payout
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claimable":      claims,
		"totalClaimable": total,
		"count":          len(claims),
	})
}
