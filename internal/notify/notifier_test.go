package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

type fakeSender struct {
	name  string
	fail  bool
	calls int
}

func (f *fakeSender) Send(ctx context.Context, title, message string) error {
	f.calls++
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func TestNotifyFiltersByEventType(t *testing.T) {
	ctx := context.Background()
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventMarketResolved}, slog.New(slog.DiscardHandler))

	if err := n.Notify(ctx, EventMarketCreated, "t", "m"); err != nil {
		t.Fatalf("Notify filtered event: %v", err)
	}
	if s.calls != 0 {
		t.Errorf("filtered event reached sender %d times", s.calls)
	}

	if err := n.Notify(ctx, EventMarketResolved, "t", "m"); err != nil {
		t.Fatalf("Notify allowed event: %v", err)
	}
	if s.calls != 1 {
		t.Errorf("allowed event calls = %d, want 1", s.calls)
	}
}

func TestNotifyEmptyFilterPassesEverything(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, slog.New(slog.DiscardHandler))
	if err := n.Notify(context.Background(), "anything", "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if s.calls != 1 {
		t.Errorf("calls = %d, want 1", s.calls)
	}
}

func TestNotifyOneFailureDoesNotBlockOthers(t *testing.T) {
	bad := &fakeSender{name: "bad", fail: true}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, slog.New(slog.DiscardHandler))

	err := n.Notify(context.Background(), "x", "t", "m")
	if err == nil {
		t.Fatal("expected combined error from failing sender")
	}
	if good.calls != 1 {
		t.Errorf("good sender calls = %d, want 1", good.calls)
	}
}
