package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"commentboard/internal/middleware"
	"commentboard/internal/models"
	"commentboard/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ErrPermanent marks a handler failure that retrying cannot fix. Such events
// go to the dead-letter stream straight away.
var ErrPermanent = errors.New("permanent event failure")

// EventHandler processes one event. Returning nil acknowledges it.
type EventHandler func(ctx context.Context, event models.CommentEvent) error

// EventQueueConfig tunes an EventQueue. Zero values take defaults.
type EventQueueConfig struct {
	Stream     string
	Group      string
	Consumer   string
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
	// BreakerThreshold is the number of consecutive publish failures that
	// opens the circuit.
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

// EventQueue is a durable comment event stream on Redis Streams with a
// consumer group, idle-message reclaim, bounded retries and a dead-letter
// stream. Publishing is guarded by a circuit breaker so a Redis outage
// fails fast instead of holding fan-out goroutines.
type EventQueue struct {
	rdb          *redis.Client
	stream       string
	deadStream   string
	group        string
	consumerBase string
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
	claimCount   int64
	breaker      *gobreaker.CircuitBreaker[string]
}

// NewEventQueue returns an EventQueue over rdb.
func NewEventQueue(rdb *redis.Client, cfg EventQueueConfig) (*EventQueue, error) {
	if rdb == nil {
		return nil, ErrNoRedis
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("event stream name required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "comment-indexer"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = uuid.NewString()
	}

	q := &EventQueue{
		rdb:          rdb,
		stream:       stream,
		deadStream:   stream + ":dead",
		group:        group,
		consumerBase: consumer,
		maxRetries:   orDefault(cfg.MaxRetries, 5),
		block:        orDefault(cfg.Block, 5*time.Second),
		claimIdle:    orDefault(cfg.ClaimIdle, 30*time.Second),
		retryDelay:   orDefault(cfg.RetryDelay, time.Second),
		maxLen:       orDefault(cfg.MaxLen, int64(10000)),
		readCount:    orDefault(cfg.ReadCount, int64(10)),
		claimCount:   orDefault(cfg.ClaimCount, int64(10)),
	}

	threshold := orDefault(cfg.BreakerThreshold, uint32(5))
	breakerName := "event_publish"
	observability.BreakerState.WithLabelValues(breakerName).Set(0)
	q.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     orDefault(cfg.BreakerTimeout, 30*time.Second),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.BreakerState.WithLabelValues(name).Set(float64(to))
			middleware.Logger.Warn("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return q, nil
}

// Stream is the name of the event stream.
func (q *EventQueue) Stream() string { return q.stream }

// DeadLetterStream is where events that exhausted their retries end up.
func (q *EventQueue) DeadLetterStream() string { return q.deadStream }

// Publish appends event to the stream.
func (q *EventQueue) Publish(ctx context.Context, event models.CommentEvent) (err error) {
	ctx, span := observability.StartSpan(ctx, "EventQueue.Publish", eventAttrs(event)...)
	defer observability.EndSpan(span, &err)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msgID, err := q.breaker.Execute(func() (string, error) {
		return q.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: q.stream,
			MaxLen: q.maxLen,
			Approx: true,
			Values: map[string]any{
				"type":     event.Type,
				"payload":  string(payload),
				"attempts": "0",
			},
		}).Result()
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	span.SetAttributes(observability.AttrMessageID.String(msgID))
	observability.EventsPublished.WithLabelValues(event.Type).Inc()
	return nil
}

func eventAttrs(event models.CommentEvent) []attribute.KeyValue {
	return append(observability.CommentAttrs(event.CommentID, event.ParentID),
		observability.AttrEventType.String(event.Type))
}

// Run consumes the stream with concurrency workers until ctx is done.
func (q *EventQueue) Run(ctx context.Context, concurrency int, handler EventHandler) error {
	concurrency = max(concurrency, 1)
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range concurrency {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		g.Go(func() error {
			q.consumeLoop(gctx, consumer, handler)
			return nil
		})
	}
	return g.Wait()
}

func (q *EventQueue) ensureGroup(ctx context.Context) error {
	// Start at the beginning so events published before the first consumer
	// came up are still delivered.
	err := q.rdb.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (q *EventQueue) consumeLoop(ctx context.Context, consumer string, handler EventHandler) {
	for ctx.Err() == nil {
		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			middleware.Logger.Warn("event stream read failed", "stream", q.stream, "consumer", consumer, "error", err)
			if !sleepContext(ctx, q.retryDelay) {
				return
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *EventQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return res, err
}

func (q *EventQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler EventHandler) {
	raw, _ := msg.Values["payload"].(string)
	attemptsRaw, _ := msg.Values["attempts"].(string)
	attempts, _ := strconv.Atoi(attemptsRaw)

	var event models.CommentEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil || event.Type == "" {
		q.deadLetter(ctx, msg, raw, attempts, fmt.Errorf("undecodable event: %v", err))
		return
	}

	err := q.invoke(ctx, msg.ID, attempts, event, handler)
	if err == nil {
		observability.EventsProcessed.WithLabelValues(event.Type, "ok").Inc()
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if ctx.Err() != nil {
		// Left pending; another consumer reclaims it after claimIdle.
		return
	}

	attempts++
	if errors.Is(err, ErrPermanent) || attempts >= q.maxRetries {
		q.deadLetter(ctx, msg, raw, attempts, err)
		observability.EventsProcessed.WithLabelValues(event.Type, "dead").Inc()
		return
	}

	observability.EventsProcessed.WithLabelValues(event.Type, "retry").Inc()
	middleware.Logger.Warn("event handling failed, retrying",
		"event_id", event.ID, "event_type", event.Type, "attempt", attempts, "error", err)
	if !sleepContext(ctx, q.retryDelay) {
		return
	}
	if err := q.requeueAndAck(ctx, msg.ID, event.Type, raw, attempts); err != nil {
		middleware.Logger.Error("failed to requeue event", "event_id", event.ID, "error", err)
	}
}

func (q *EventQueue) invoke(ctx context.Context, msgID string, attempts int, event models.CommentEvent, handler EventHandler) (err error) {
	attrs := append(eventAttrs(event),
		observability.AttrMessageID.String(msgID),
		observability.AttrAttempt.Int(attempts+1))
	ctx, span := observability.StartSpan(ctx, "EventQueue.Handle", attrs...)
	defer observability.EndSpan(span, &err)
	return handler(ctx, event)
}

func (q *EventQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.rdb.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.rdb.XDel(ctx, q.stream, msgID).Result()
}

func (q *EventQueue) requeueAndAck(ctx context.Context, msgID, eventType, payload string, attempts int) error {
	pipe := q.rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":     eventType,
			"payload":  payload,
			"attempts": strconv.Itoa(attempts),
		},
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *EventQueue) deadLetter(ctx context.Context, msg redis.XMessage, payload string, attempts int, cause error) {
	middleware.Logger.Error("event moved to dead-letter stream",
		"stream", q.deadStream, "message_id", msg.ID, "attempts", attempts, "error", cause)
	pipe := q.rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.deadStream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"payload":  payload,
			"attempts": strconv.Itoa(attempts),
			"error":    cause.Error(),
			"origin":   msg.ID,
		},
	})
	pipe.XAck(ctx, q.stream, q.group, msg.ID)
	pipe.XDel(ctx, q.stream, msg.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		middleware.Logger.Error("failed to dead-letter event", "message_id", msg.ID, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func orDefault[T int | int64 | uint32 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
