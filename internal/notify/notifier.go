// Package notify delivers market lifecycle alerts to operator channels.
// Events are dispatched to every registered sender and can be filtered by
// event type, so operators only hear about what they subscribed to.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event types emitted by the indexer.
const (
	EventMarketCreated  = "market_created"
	EventMarketResolved = "market_resolved"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans alerts out to its senders. An empty allowed set passes every
// event type.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	log     *slog.Logger
}

func NewNotifier(senders []Sender, events []string, log *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		log:     log.With("component", "notifier"),
	}
}

// Notify delivers the alert when the event type passes the filter. A single
// sender failure does not block delivery to the rest; failures are collected
// into one error.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.log.Debug("event filtered out", "event", event)
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.log.Error("sender failed", "sender", s.Name(), "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.log.Debug("notification sent", "sender", s.Name(), "title", title)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
