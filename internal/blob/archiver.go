// Package blob archives aged trade and price rows to object storage and
// enforces retention on both the database and the archive.
package blob

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/predyx/predyx/internal/domain"
)

const (
	tradePrefix = "archive/trades/"
	pricePrefix = "archive/prices/"
	batchSize   = 5000
)

type Config struct {
	// Interval between archival sweeps.
	Interval time.Duration
	// ArchiveAfter is the age at which rows move from the database to the
	// archive.
	ArchiveAfter time.Duration
	// RetainBlobs is how long archive objects are kept before deletion.
	// Zero keeps them forever.
	RetainBlobs time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.ArchiveAfter <= 0 {
		c.ArchiveAfter = 30 * 24 * time.Hour
	}
	return c
}

// Archiver drains aged rows into JSONL blobs. Rows are deleted only after
// the blob write succeeds, so a failed sweep retries the same rows.
type Archiver struct {
	cfg    Config
	trades domain.TradeStore
	prices domain.PriceHistoryStore
	writer domain.BlobWriter
	log    *slog.Logger
	now    func() time.Time
}

func NewArchiver(cfg Config, trades domain.TradeStore, prices domain.PriceHistoryStore, writer domain.BlobWriter, log *slog.Logger) *Archiver {
	return &Archiver{
		cfg:    cfg.withDefaults(),
		trades: trades,
		prices: prices,
		writer: writer,
		log:    log.With("component", "archiver"),
		now:    time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.Sweep(ctx); err != nil {
				a.log.Error("archive sweep failed", "error", err)
			}
		}
	}
}

// Sweep archives one batch of aged trades and price points, then applies
// blob retention.
func (a *Archiver) Sweep(ctx context.Context) error {
	now := a.now().UTC()
	cutoff := now.Add(-a.cfg.ArchiveAfter)

	if err := a.archiveTrades(ctx, cutoff, now); err != nil {
		return err
	}
	if err := a.archivePrices(ctx, cutoff, now); err != nil {
		return err
	}

	if a.cfg.RetainBlobs > 0 {
		blobCutoff := now.Add(-a.cfg.RetainBlobs)
		for _, prefix := range []string{tradePrefix, pricePrefix} {
			n, err := a.writer.DeleteBefore(ctx, prefix, blobCutoff)
			if err != nil {
				return fmt.Errorf("blob retention under %s: %w", prefix, err)
			}
			if n > 0 {
				a.log.Info("expired archive objects deleted", "prefix", prefix, "count", n)
			}
		}
	}
	return nil
}

func (a *Archiver) archiveTrades(ctx context.Context, cutoff, now time.Time) error {
	trades, err := a.trades.ListBefore(ctx, cutoff, batchSize)
	if err != nil {
		return fmt.Errorf("list aged trades: %w", err)
	}
	if len(trades) == 0 {
		return nil
	}

	lines := make([]any, len(trades))
	for i, t := range trades {
		lines[i] = t
	}
	key := tradePrefix + now.Format("20060102T150405Z") + ".jsonl"
	if err := a.writer.Write(ctx, key, lines); err != nil {
		return fmt.Errorf("write trade archive %s: %w", key, err)
	}

	deleted, err := a.trades.DeleteBefore(ctx, trades[len(trades)-1].Timestamp.Add(time.Nanosecond))
	if err != nil {
		return fmt.Errorf("delete archived trades: %w", err)
	}
	a.log.Info("trades archived", "key", key, "rows", deleted)
	return nil
}

func (a *Archiver) archivePrices(ctx context.Context, cutoff, now time.Time) error {
	points, err := a.prices.ListBefore(ctx, cutoff, batchSize)
	if err != nil {
		return fmt.Errorf("list aged price points: %w", err)
	}
	if len(points) == 0 {
		return nil
	}

	lines := make([]any, len(points))
	for i, p := range points {
		lines[i] = p
	}
	key := pricePrefix + now.Format("20060102T150405Z") + ".jsonl"
	if err := a.writer.Write(ctx, key, lines); err != nil {
		return fmt.Errorf("write price archive %s: %w", key, err)
	}

	deleted, err := a.prices.DeleteBefore(ctx, points[len(points)-1].Timestamp.Add(time.Nanosecond))
	if err != nil {
		return fmt.Errorf("delete archived price points: %w", err)
	}
	a.log.Info("price points archived", "key", key, "rows", deleted)
	return nil
}
