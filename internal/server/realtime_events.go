package server

import (
	"context"
	"encoding/json"
	"fmt"

	"commentboard/internal/middleware"
	"commentboard/internal/notifications"
	"commentboard/internal/observability"
)

// realtimeEnvelope is the frame pushed to websocket viewers.
type realtimeEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// realtimeBroadcaster delivers comment events to viewers on every instance.
// With Redis the message goes out over pub/sub only and reaches the local
// hub through its own subscription; without Redis, or if the publish fails,
// it is delivered to the local hub directly.
type realtimeBroadcaster struct {
	hub      *notifications.Hub
	notifier *notifications.Notifier
}

func newRealtimeBroadcaster(hub *notifications.Hub, notifier *notifications.Notifier) *realtimeBroadcaster {
	return &realtimeBroadcaster{hub: hub, notifier: notifier}
}

// Broadcast implements service.Broadcaster.
func (b *realtimeBroadcaster) Broadcast(ctx context.Context, eventType string, payload any) error {
	frame, err := json.Marshal(realtimeEnvelope{Type: eventType, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	observability.WebSocketEventsTotal.WithLabelValues(eventType).Inc()

	if b.notifier.Enabled() {
		err := b.notifier.PublishBroadcast(ctx, string(frame))
		if err == nil {
			return nil
		}
		middleware.Logger.WarnContext(ctx, "realtime publish failed, delivering locally",
			"event_type", eventType, "error", err)
	}

	if b.hub != nil {
		b.hub.BroadcastGroup(frame)
	}
	return nil
}
