package handler

import (
	"context"
	"net/http"

	"github.com/predyx/predyx/internal/domain"
	"github.com/predyx/predyx/internal/service"
)

// TradeRecorder is the write surface for client-reported trades.
type TradeRecorder interface {
	RecordTrade(ctx context.Context, req service.RecordTradeRequest) (*domain.Trade, error)
}

type TradeHandler struct {
	svc TradeRecorder
}

func NewTradeHandler(svc TradeRecorder) *TradeHandler {
	return &TradeHandler{svc: svc}
}

// POST /api/trades
func (h *TradeHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req service.RecordTradeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	trade, err := h.svc.RecordTrade(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trade)
}
