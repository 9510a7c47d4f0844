package handler

import (
	"context"
	"net/http"
	"time"
)

// MarketCounter reports the number of mirrored markets.
type MarketCounter interface {
	Count(ctx context.Context) (int, error)
}

// WatermarkReader reports the last fully applied block.
type WatermarkReader interface {
	Watermark() uint64
}

type HealthHandler struct {
	markets   MarketCounter
	watermark WatermarkReader // nil when the poller runs out of process
	started   time.Time
}

func NewHealthHandler(markets MarketCounter, watermark WatermarkReader) *HealthHandler {
	return &HealthHandler{markets: markets, watermark: watermark, started: time.Now()}
}

// GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}
	if n, err := h.markets.Count(r.Context()); err == nil {
		resp["markets"] = n
	} else {
		resp["status"] = "degraded"
	}
	if h.watermark != nil {
		resp["lastBlock"] = h.watermark.Watermark()
	}
	writeJSON(w, http.StatusOK, resp)
}
