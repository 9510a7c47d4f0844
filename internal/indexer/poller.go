package indexer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/predyx/predyx/internal/chain"
)

// Poller drives the reconciler with two independent periodic tasks: a block
// range scan for events and a live price refresh. It deliberately polls
// bounded ranges instead of holding a log subscription, because public RPC
// endpoints drop long-lived filters.
type Poller struct {
	source          chain.Source
	rec             *Reconciler
	scanInterval    time.Duration
	refreshInterval time.Duration
	log             *slog.Logger

	// lastScanned is the watermark: every block up to and including it has
	// been processed. Written by the scan loop, read by the health endpoint
	// from HTTP goroutines.
	lastScanned atomic.Uint64
}

func NewPoller(source chain.Source, rec *Reconciler, scanInterval, refreshInterval time.Duration, log *slog.Logger) *Poller {
	return &Poller{
		source:          source,
		rec:             rec,
		scanInterval:    scanInterval,
		refreshInterval: refreshInterval,
		log:             log.With("component", "poller"),
	}
}

// Run performs the startup resync, sets the watermark baseline at the
// current head, and then runs the scan and refresh loops until ctx ends.
func (p *Poller) Run(ctx context.Context) error {
	head, err := p.source.HeadBlock(ctx)
	if err != nil {
		return err
	}
	if err := p.rec.Resync(ctx); err != nil {
		return err
	}
	p.lastScanned.Store(head)
	p.log.Info("poller started", "watermark", head,
		"scan_interval", p.scanInterval, "refresh_interval", p.refreshInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.loop(ctx, p.scanInterval, p.ScanOnce) })
	g.Go(func() error { return p.loop(ctx, p.refreshInterval, p.refreshOnce) })
	return g.Wait()
}

func (p *Poller) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// ScanOnce runs one event-scan tick. The watermark only advances after the
// whole range applied cleanly; any failure abandons the tick so the same
// range is retried, giving at-least-once delivery.
func (p *Poller) ScanOnce(ctx context.Context) {
	head, err := p.source.HeadBlock(ctx)
	if err != nil {
		p.log.Warn("head fetch failed", "error", err)
		return
	}
	last := p.lastScanned.Load()
	if head <= last {
		return
	}

	from, to := last+1, head
	events, err := p.source.Events(ctx, from, to)
	if err != nil {
		p.log.Warn("event fetch failed", "from", from, "to", to, "error", err)
		return
	}
	for _, ev := range events {
		if err := p.rec.Apply(ctx, ev); err != nil {
			p.log.Error("event apply failed", "block", ev.EventBlock(), "tx", ev.EventTx(), "error", err)
			return
		}
	}
	p.lastScanned.Store(head)
	if len(events) > 0 {
		p.log.Info("scanned range", "from", from, "to", to, "events", len(events))
	}
}

// Watermark returns the last fully processed block. Safe to call from any
// goroutine.
func (p *Poller) Watermark() uint64 {
	return p.lastScanned.Load()
}

func (p *Poller) refreshOnce(ctx context.Context) {
	if err := p.rec.RefreshPrices(ctx); err != nil {
		p.log.Warn("price refresh failed", "error", err)
	}
}
