package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/predyx/predyx/internal/domain"
)

// TradeIngester applies one trade as a single logical unit with idempotent
// insert semantics. The reconciler implements it; the trade service shares
// it so the REST write path and the event path cannot diverge.
type TradeIngester interface {
	Ingest(ctx context.Context, t *domain.Trade) (bool, error)
}

// RecordTradeRequest is the payload for the confirmed-transaction write
// path: a client reports a trade it just landed on chain, ahead of the
// poller naturally discovering it.
type RecordTradeRequest struct {
	MarketAddress string             `json:"marketAddress"`
	UserAddress   string             `json:"userAddress"`
	Action        domain.TradeAction `json:"action"`
	Shares        float64            `json:"shares"`
	Price         float64            `json:"price"`
	Amount        float64            `json:"amount"`
	TxHash        string             `json:"txHash"`
}

// TradeService handles the recordTrade write path.
type TradeService struct {
	markets  domain.MarketStore
	ingester TradeIngester
	log      *slog.Logger
}

func NewTradeService(markets domain.MarketStore, ingester TradeIngester, log *slog.Logger) *TradeService {
	return &TradeService{
		markets:  markets,
		ingester: ingester,
		log:      log.With("component", "trade_service"),
	}
}

// RecordTrade validates and ingests a client-reported trade. A transaction
// hash that was already recorded, by this path or by the poller, yields
// domain.ErrAlreadyRecorded.
func (s *TradeService) RecordTrade(ctx context.Context, req RecordTradeRequest) (*domain.Trade, error) {
	if err := validateRecordTrade(req); err != nil {
		return nil, err
	}
	m, err := s.markets.GetByAddress(ctx, req.MarketAddress)
	if err != nil {
		return nil, err
	}

	trade := &domain.Trade{
		MarketID:    m.ID,
		UserAddress: strings.ToLower(req.UserAddress),
		Action:      req.Action,
		Shares:      req.Shares,
		Price:       req.Price,
		Amount:      req.Amount,
		TxHash:      req.TxHash,
		Timestamp:   time.Now().UTC(),
	}
	inserted, err := s.ingester.Ingest(ctx, trade)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, domain.ErrAlreadyRecorded
	}
	s.log.Info("trade recorded",
		"market_id", m.ID, "user", trade.UserAddress, "action", trade.Action, "tx", trade.TxHash)
	return trade, nil
}

func validateRecordTrade(req RecordTradeRequest) error {
	switch {
	case !strings.HasPrefix(req.MarketAddress, "0x"):
		return fmt.Errorf("%w: market address %q", domain.ErrInvalidInput, req.MarketAddress)
	case !strings.HasPrefix(req.UserAddress, "0x"):
		return fmt.Errorf("%w: user address %q", domain.ErrInvalidInput, req.UserAddress)
	case !req.Action.Valid():
		return fmt.Errorf("%w: action %q", domain.ErrInvalidInput, req.Action)
	case req.Shares <= 0:
		return fmt.Errorf("%w: shares must be positive", domain.ErrInvalidInput)
	case req.Amount < 0:
		return fmt.Errorf("%w: amount must not be negative", domain.ErrInvalidInput)
	case req.TxHash == "":
		return fmt.Errorf("%w: missing tx hash", domain.ErrInvalidInput)
	}
	return nil
}
