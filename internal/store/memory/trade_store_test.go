package memory

import (
	"context"
	"testing"
	"time"

	"github.com/predyx/predyx/internal/domain"
)

func TestTradeListBeforeOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Insert out of timestamp order.
	for _, tr := range []*domain.Trade{
		{TxHash: "0x2", Timestamp: base.Add(2 * time.Hour)},
		{TxHash: "0x0", Timestamp: base},
		{TxHash: "0x1", Timestamp: base.Add(time.Hour)},
		{TxHash: "0x9", Timestamp: base.Add(48 * time.Hour)},
	} {
		if _, err := s.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	aged, err := s.ListBefore(ctx, base.Add(3*time.Hour), 0)
	if err != nil {
		t.Fatalf("ListBefore: %v", err)
	}
	if len(aged) != 3 {
		t.Fatalf("got %d aged trades, want 3", len(aged))
	}
	for i := 1; i < len(aged); i++ {
		if aged[i].Timestamp.Before(aged[i-1].Timestamp) {
			t.Fatalf("aged[%d] (%s) is older than aged[%d], want ascending order",
				i, aged[i].TxHash, i-1)
		}
	}

	// Deleting up to the last returned row must remove exactly the aged rows.
	removed, err := s.DeleteBefore(ctx, aged[len(aged)-1].Timestamp.Add(time.Nanosecond))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	rest, _ := s.ListBefore(ctx, base.Add(100*time.Hour), 0)
	if len(rest) != 1 || rest[0].TxHash != "0x9" {
		t.Errorf("remaining = %+v, want only the fresh trade", rest)
	}
}

func TestPriceListBeforeOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewPriceHistoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, ts := range []time.Time{base.Add(2 * time.Hour), base, base.Add(time.Hour)} {
		if err := s.Append(ctx, &domain.PricePoint{MarketID: 1, YesPrice: 50, NoPrice: 50, Timestamp: ts}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	aged, err := s.ListBefore(ctx, base.Add(3*time.Hour), 0)
	if err != nil {
		t.Fatalf("ListBefore: %v", err)
	}
	if len(aged) != 3 {
		t.Fatalf("got %d aged points, want 3", len(aged))
	}
	for i := 1; i < len(aged); i++ {
		if aged[i].Timestamp.Before(aged[i-1].Timestamp) {
			t.Fatalf("points out of order at %d, want ascending", i)
		}
	}
}
