package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/predyx/predyx/internal/domain"
)

// signalChannel is the Pub/Sub channel all market activity fans out on.
const signalChannel = "predyx:signals"

// SignalBus implements domain.SignalBus over Redis Pub/Sub, so every server
// process sees trades and resolutions applied by the indexer process.
type SignalBus struct {
	rdb *redis.Client
}

func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

func (sb *SignalBus) Publish(ctx context.Context, s domain.Signal) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: marshal signal: %w", err)
	}
	if err := sb.rdb.Publish(ctx, signalChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish signal: %w", err)
	}
	return nil
}

// Subscribe delivers signals until ctx is cancelled, at which point the
// subscription and the returned channel are both closed. Signals that fail
// to decode are dropped.
func (sb *SignalBus) Subscribe(ctx context.Context) (<-chan domain.Signal, error) {
	pubsub := sb.rdb.Subscribe(ctx, signalChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe signals: %w", err)
	}

	out := make(chan domain.Signal, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var s domain.Signal
				if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
					continue
				}
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
