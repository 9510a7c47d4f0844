package handler

import (
	"context"
	"net/http"

	"github.com/predyx/predyx/internal/registry"
	"github.com/predyx/predyx/internal/service"
)

// Admin is the operator surface: resync plus simulated chain writes.
type Admin interface {
	Resync(ctx context.Context) error
	CreateMarket(ctx context.Context, req service.CreateMarketRequest) (*registry.Entry, error)
	ResolveMarket(ctx context.Context, req service.ResolveMarketRequest) (string, error)
}

type AdminHandler struct {
	svc Admin
}

func NewAdminHandler(svc Admin) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// POST /api/admin/resync
func (h *AdminHandler) Resync(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Resync(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resynced"})
}

// POST /api/admin/markets
func (h *AdminHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req service.CreateMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entry, err := h.svc.CreateMarket(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"marketId": entry.ID,
		"address":  entry.Address,
	})
}

// POST /api/admin/resolve
func (h *AdminHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req service.ResolveMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tx, err := h.svc.ResolveMarket(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved", "txHash": tx})
}
