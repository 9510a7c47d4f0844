// Package bus provides an in-process SignalBus for deployments that run
// without Redis. Signals fan out to every subscriber in the same process.
package bus

import (
	"context"
	"sync"

	"github.com/predyx/predyx/internal/domain"
)

const subscriberBuffer = 64

// Local is a process-local domain.SignalBus. Publish never blocks; a signal
// is dropped for a subscriber whose buffer is full.
type Local struct {
	mu   sync.Mutex
	subs map[chan domain.Signal]struct{}
}

func NewLocal() *Local {
	return &Local{subs: make(map[chan domain.Signal]struct{})}
}

func (b *Local) Publish(ctx context.Context, s domain.Signal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- s:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel that receives published signals until ctx
// ends, at which point the channel is closed.
func (b *Local) Subscribe(ctx context.Context) (<-chan domain.Signal, error) {
	ch := make(chan domain.Signal, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}
