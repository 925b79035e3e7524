// Package notifications delivers comment events to websocket viewers and to
// the durable event stream consumed by the search indexer.
package notifications

import (
	"context"
	"errors"
	"runtime/debug"

	"commentboard/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// BroadcastChannel relays realtime messages between server instances.
const BroadcastChannel = "comments:broadcast"

// ErrNoRedis is returned by publishers constructed without a Redis client.
var ErrNoRedis = errors.New("notifications: redis not configured")

// Notifier publishes realtime messages over Redis pub/sub so every instance
// can deliver them to its own websocket clients.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client yields a Notifier that reports itself disabled.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether messages travel through Redis.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishBroadcast sends a payload to every subscribed instance.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if !n.Enabled() {
		return ErrNoRedis
	}
	return n.rdb.Publish(ctx, BroadcastChannel, payload).Err()
}

// StartBroadcastSubscriber subscribes to BroadcastChannel and calls onMessage
// for each payload until ctx is done.
func (n *Notifier) StartBroadcastSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, BroadcastChannel)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in broadcast subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
