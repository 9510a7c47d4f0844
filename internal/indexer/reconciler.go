// Package indexer keeps the off-chain mirror in sync with the chain. The
// poller discovers events and the reconciler applies them to the stores with
// at-least-once tolerance: every write path is idempotent, keyed on the
// transaction hash.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/predyx/predyx/internal/chain"
	"github.com/predyx/predyx/internal/domain"
	"github.com/predyx/predyx/internal/engine"
)

// placeholderAddr matches seed/placeholder market addresses that have no
// contract behind them and must be skipped by live reads.
var placeholderAddr = regexp.MustCompile(`^0x0{10,}`)

// Notifier receives human-readable notifications about market activity,
// filtered by event type on the notifier side.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Deps wires a Reconciler. Source, the four stores and Log are required;
// the caches, bus and notifier are optional and skipped when nil.
type Deps struct {
	Source    chain.Source
	Markets   domain.MarketStore
	Trades    domain.TradeStore
	Positions domain.PositionStore
	Prices    domain.PriceHistoryStore

	PriceCache  domain.PriceCache
	MarketCache domain.MarketCache
	Bus         domain.SignalBus
	Notifier    Notifier

	Log *slog.Logger
}

// Reconciler applies chain events and periodic snapshots to the mirror.
type Reconciler struct {
	d   Deps
	log *slog.Logger
}

func NewReconciler(d Deps) *Reconciler {
	return &Reconciler{d: d, log: d.Log.With("component", "reconciler")}
}

// Apply routes one chain event to its handler.
func (r *Reconciler) Apply(ctx context.Context, ev domain.ChainEvent) error {
	switch e := ev.(type) {
	case domain.MarketCreatedEvent:
		return r.applyCreated(ctx, e)
	case domain.SharesPurchasedEvent:
		return r.applyPurchased(ctx, e)
	case domain.SharesSoldEvent:
		return r.applySold(ctx, e)
	case domain.MarketResolvedEvent:
		return r.applyResolved(ctx, e)
	case domain.WinningsClaimedEvent:
		return r.applyClaimed(ctx, e)
	default:
		r.log.Warn("unknown chain event", "type", fmt.Sprintf("%T", ev))
		return nil
	}
}

func (r *Reconciler) applyCreated(ctx context.Context, e domain.MarketCreatedEvent) error {
	m, err := r.upsertFromChain(ctx, e.Address)
	if err != nil {
		return err
	}
	r.d.Source.WatchMarket(e.Address)
	r.seedPricePoint(ctx, m)
	r.publish(ctx, domain.Signal{Kind: "market", MarketID: m.ID, Payload: m})
	r.notify(ctx, "market_created", "New market", m.Question)
	r.log.Info("market created", "address", e.Address, "market_id", m.ID, "question", m.Question)
	return nil
}

func (r *Reconciler) applyPurchased(ctx context.Context, e domain.SharesPurchasedEvent) error {
	m, err := r.marketByAddress(ctx, e.Market)
	if err != nil {
		return err
	}
	action := domain.ActionBuyYes
	if e.Side == domain.SideNo {
		action = domain.ActionBuyNo
	}
	trade := &domain.Trade{
		MarketID:    m.ID,
		UserAddress: strings.ToLower(e.Buyer),
		Action:      action,
		Shares:      engine.Units(e.Shares),
		Price:       execPrice(engine.Units(e.Amount), engine.Units(e.Shares)),
		Amount:      engine.Units(e.Amount),
		TxHash:      e.TxHash,
		Timestamp:   e.Timestamp,
	}
	inserted, err := r.Ingest(ctx, trade)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}
	return r.applyNewPrices(ctx, m, engine.Percent(e.NewYesPrice), engine.Percent(e.NewNoPrice), e.Timestamp, trade)
}

func (r *Reconciler) applySold(ctx context.Context, e domain.SharesSoldEvent) error {
	m, err := r.marketByAddress(ctx, e.Market)
	if err != nil {
		return err
	}
	action := domain.ActionSellYes
	if e.Side == domain.SideNo {
		action = domain.ActionSellNo
	}
	trade := &domain.Trade{
		MarketID:    m.ID,
		UserAddress: strings.ToLower(e.Seller),
		Action:      action,
		Shares:      engine.Units(e.Shares),
		Price:       execPrice(engine.Units(e.Payout), engine.Units(e.Shares)),
		Amount:      engine.Units(e.Payout),
		TxHash:      e.TxHash,
		Timestamp:   e.Timestamp,
	}
	inserted, err := r.Ingest(ctx, trade)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}
	return r.applyNewPrices(ctx, m, engine.Percent(e.NewYesPrice), engine.Percent(e.NewNoPrice), e.Timestamp, trade)
}

func (r *Reconciler) applyResolved(ctx context.Context, e domain.MarketResolvedEvent) error {
	m, err := r.marketByAddress(ctx, e.Market)
	if err != nil {
		return err
	}
	if m.Resolved {
		return nil
	}
	if err := r.d.Markets.Resolve(ctx, m.ID, e.Outcome); err != nil {
		return fmt.Errorf("resolve market %d: %w", m.ID, err)
	}
	r.invalidateMarket(ctx, m.ID)
	r.publish(ctx, domain.Signal{Kind: "resolution", MarketID: m.ID, Payload: e.Outcome})
	r.notify(ctx, "market_resolved", "Market resolved", fmt.Sprintf("%s resolved %s", m.Question, e.Outcome))
	r.log.Info("market resolved", "market_id", m.ID, "outcome", e.Outcome)
	return nil
}

// applyClaimed removes the redeemed position so claimable listings stay
// accurate. Deleting an already-deleted position is a no-op, which keeps the
// handler safe under replay.
func (r *Reconciler) applyClaimed(ctx context.Context, e domain.WinningsClaimedEvent) error {
	m, err := r.marketByAddress(ctx, e.Market)
	if err != nil {
		return err
	}
	holder := strings.ToLower(e.Claimer)
	if err := r.d.Positions.Delete(ctx, m.ID, holder, e.Side); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete claimed position: %w", err)
	}
	r.publish(ctx, domain.Signal{Kind: "claim", MarketID: m.ID, Payload: e})
	r.log.Info("winnings claimed", "market_id", m.ID, "holder", holder, "payout", engine.Units(e.Payout))
	return nil
}

// execPrice is the realized price per share in percent: what the trader
// actually paid or received, not the post-trade quote.
func execPrice(amount, shares float64) float64 {
	if shares <= 0 {
		return 50
	}
	return amount / shares * 100
}

// Ingest applies one trade as a single logical unit: the idempotent insert,
// the position merge and the volume increment. It returns false without any
// side effects when the transaction hash was already recorded. The REST
// recordTrade write path shares this exact code with the event path.
func (r *Reconciler) Ingest(ctx context.Context, t *domain.Trade) (bool, error) {
	inserted, err := r.d.Trades.Insert(ctx, t)
	if err != nil {
		return false, fmt.Errorf("insert trade %s: %w", t.TxHash, err)
	}
	if !inserted {
		r.log.Debug("duplicate trade skipped", "tx", t.TxHash)
		return false, nil
	}
	if err := r.mergePosition(ctx, t); err != nil {
		return true, err
	}
	if err := r.d.Markets.AddVolume(ctx, t.MarketID, t.Amount); err != nil {
		return true, fmt.Errorf("add volume: %w", err)
	}
	r.invalidateMarket(ctx, t.MarketID)
	r.publish(ctx, domain.Signal{Kind: "trade", MarketID: t.MarketID, Payload: t})
	return true, nil
}

// mergePosition folds a trade into the (market, holder, side) position.
// Buys merge with a volume-weighted average price; sells decrement and
// delete the position once it reaches zero.
func (r *Reconciler) mergePosition(ctx context.Context, t *domain.Trade) error {
	side := t.Action.Side()
	pos, err := r.d.Positions.Get(ctx, t.MarketID, t.UserAddress, side)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		pos = nil
	default:
		return fmt.Errorf("get position: %w", err)
	}

	if t.Action.IsBuy() {
		if pos == nil {
			pos = &domain.Position{
				MarketID:    t.MarketID,
				UserAddress: t.UserAddress,
				Side:        side,
				Shares:      t.Shares,
				AvgPrice:    t.Price,
			}
		} else {
			total := pos.Shares + t.Shares
			pos.AvgPrice = (pos.Shares*pos.AvgPrice + t.Shares*t.Price) / total
			pos.Shares = total
		}
		if err := r.d.Positions.Upsert(ctx, pos); err != nil {
			return fmt.Errorf("upsert position: %w", err)
		}
		return nil
	}

	if pos == nil {
		// Sell with no tracked position, nothing to reduce.
		return nil
	}
	pos.Shares -= t.Shares
	if pos.Shares <= 1e-9 {
		if err := r.d.Positions.Delete(ctx, t.MarketID, t.UserAddress, side); err != nil {
			return fmt.Errorf("delete position: %w", err)
		}
		return nil
	}
	if err := r.d.Positions.Upsert(ctx, pos); err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

func (r *Reconciler) applyNewPrices(ctx context.Context, m *domain.Market, yes, no float64, ts time.Time, trade *domain.Trade) error {
	if err := r.d.Markets.SetPrices(ctx, m.ID, yes, no); err != nil {
		return fmt.Errorf("set prices: %w", err)
	}
	point := &domain.PricePoint{MarketID: m.ID, YesPrice: yes, NoPrice: no, Timestamp: ts}
	if err := r.d.Prices.Append(ctx, point); err != nil {
		return fmt.Errorf("append price point: %w", err)
	}
	r.cachePrice(ctx, m.ID, yes, no)
	r.publish(ctx, domain.Signal{Kind: "price", MarketID: m.ID, Payload: point})
	r.log.Info("trade applied",
		"market_id", m.ID, "action", trade.Action, "shares", trade.Shares,
		"amount", trade.Amount, "tx", trade.TxHash)
	return nil
}

// Resync enumerates every market from the registry, re-reads its complete
// live state, upserts the mirror and seeds one price point. It runs at
// startup to establish the watermark baseline and backfill markets that
// predate the poller.
func (r *Reconciler) Resync(ctx context.Context) error {
	addrs, err := r.d.Source.Markets(ctx)
	if err != nil {
		return fmt.Errorf("enumerate markets: %w", err)
	}
	for _, addr := range addrs {
		if placeholderAddr.MatchString(strings.ToLower(addr)) {
			continue
		}
		m, err := r.upsertFromChain(ctx, addr)
		if err != nil {
			return err
		}
		r.d.Source.WatchMarket(addr)
		r.seedPricePoint(ctx, m)
	}
	r.log.Info("resync complete", "markets", len(addrs))
	return nil
}

// RefreshPrices re-reads live prices and volume for every unresolved,
// non-placeholder market. Individual market failures are logged and skipped
// so one dead contract cannot starve the rest of the batch.
func (r *Reconciler) RefreshPrices(ctx context.Context) error {
	markets, err := r.d.Markets.ListUnresolved(ctx)
	if err != nil {
		return fmt.Errorf("list unresolved markets: %w", err)
	}
	for _, m := range markets {
		if placeholderAddr.MatchString(strings.ToLower(m.Address)) {
			continue
		}
		updated, err := r.upsertFromChain(ctx, m.Address)
		if err != nil {
			r.log.Warn("price refresh failed", "address", m.Address, "error", err)
			continue
		}
		r.seedPricePoint(ctx, updated)
	}
	return nil
}

// upsertFromChain reads the market's full on-chain view and overwrites the
// mirror row, returning the stored record.
func (r *Reconciler) upsertFromChain(ctx context.Context, address string) (*domain.Market, error) {
	info, err := r.d.Source.MarketInfo(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("read market %s: %w", address, err)
	}
	m := &domain.Market{
		Address:        address,
		Question:       info.Question,
		Description:    info.Description,
		Category:       info.Category,
		ResolutionDate: info.ResolutionDate,
		Oracle:         info.Oracle,
		FeeBps:         info.FeeBps,
		YesPrice:       engine.Percent(info.YesPrice),
		NoPrice:        engine.Percent(info.NoPrice),
		Volume:         engine.Units(info.Volume),
		Resolved:       info.Resolved,
		Outcome:        info.Outcome,
	}
	if err := r.d.Markets.Upsert(ctx, m); err != nil {
		return nil, fmt.Errorf("upsert market %s: %w", address, err)
	}
	r.cachePrice(ctx, m.ID, m.YesPrice, m.NoPrice)
	r.invalidateMarket(ctx, m.ID)
	return m, nil
}

// marketByAddress resolves the mirror row for an address, backfilling it
// from the chain when a trade event arrives for a market the mirror has not
// seen yet.
func (r *Reconciler) marketByAddress(ctx context.Context, address string) (*domain.Market, error) {
	m, err := r.d.Markets.GetByAddress(ctx, address)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get market %s: %w", address, err)
	}
	return r.upsertFromChain(ctx, address)
}

func (r *Reconciler) seedPricePoint(ctx context.Context, m *domain.Market) {
	point := &domain.PricePoint{
		MarketID: m.ID,
		YesPrice: m.YesPrice,
		NoPrice:  m.NoPrice,
	}
	if err := r.d.Prices.Append(ctx, point); err != nil {
		r.log.Warn("seed price point failed", "market_id", m.ID, "error", err)
	}
}

// Cache, bus and notifier failures never fail reconciliation.

func (r *Reconciler) cachePrice(ctx context.Context, marketID int64, yes, no float64) {
	if r.d.PriceCache == nil {
		return
	}
	if err := r.d.PriceCache.SetPrice(ctx, marketID, yes, no); err != nil {
		r.log.Warn("price cache update failed", "market_id", marketID, "error", err)
	}
}

func (r *Reconciler) invalidateMarket(ctx context.Context, marketID int64) {
	if r.d.MarketCache == nil {
		return
	}
	if err := r.d.MarketCache.Invalidate(ctx, marketID); err != nil {
		r.log.Warn("market cache invalidation failed", "market_id", marketID, "error", err)
	}
}

func (r *Reconciler) publish(ctx context.Context, s domain.Signal) {
	if r.d.Bus == nil {
		return
	}
	s.Timestamp = time.Now().UTC()
	if err := r.d.Bus.Publish(ctx, s); err != nil {
		r.log.Warn("signal publish failed", "kind", s.Kind, "error", err)
	}
}

func (r *Reconciler) notify(ctx context.Context, event, title, message string) {
	if r.d.Notifier == nil {
		return
	}
	if err := r.d.Notifier.Notify(ctx, event, title, message); err != nil {
		r.log.Warn("notification failed", "event", event, "error", err)
	}
}
