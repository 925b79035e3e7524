package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommentsCreated counts committed comments.
	CommentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commentboard_comments_created_total",
		Help: "Total number of comments created",
	})

	// CommentsDeleted counts deleted comments.
	CommentsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commentboard_comments_deleted_total",
		Help: "Total number of comments deleted",
	})

	// CacheLookups counts comment cache reads by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commentboard_cache_lookups_total",
		Help: "Comment cache lookups by result",
	}, []string{"result"})

	// SideEffectFailures counts swallowed failures of best-effort steps.
	SideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commentboard_side_effect_failures_total",
		Help: "Non-fatal failures by step",
	}, []string{"step"})

	// EventsPublished counts events appended to the durable stream by type.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commentboard_events_published_total",
		Help: "Events published to the durable stream",
	}, []string{"event_type"})

	// EventsProcessed counts consumed events by type and outcome (ok, retry, dead).
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commentboard_events_processed_total",
		Help: "Events consumed from the durable stream",
	}, []string{"event_type", "outcome"})

	// BreakerState reports the publish circuit breaker state (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "commentboard_circuit_breaker_state",
		Help: "Circuit breaker state by name",
	}, []string{"name"})

	// WebSocketEventsTotal counts realtime messages by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commentboard_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commentboard_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)
