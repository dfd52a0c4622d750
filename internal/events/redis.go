package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/logger"
	"github.com/jilaboon/rafit-sub000/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const maxRelayTries = 3

// RedisQueue pushes events onto a Redis list. Consumers pop from the other end.
type RedisQueue struct {
	redis *redis.Client
	queue string
}

func NewRedisQueue(rdb *redis.Client, queue string) *RedisQueue {
	return &RedisQueue{redis: rdb, queue: queue}
}

func (q *RedisQueue) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := q.redis.LPush(ctx, q.queue, data).Err(); err != nil {
		metrics.RecordEvent("redis", string(e.Type), "failed")
		return fmt.Errorf("queue event %s: %w", e.ID, err)
	}

	metrics.RecordEvent("redis", string(e.Type), "success")
	logger.Debug("event queued", "event_id", e.ID, "type", e.Type, "queue", q.queue)
	return nil
}

func (q *RedisQueue) QueueLength(ctx context.Context) int64 {
	length, _ := q.redis.LLen(ctx, q.queue).Result()
	return length
}

func (q *RedisQueue) FailedQueue() string {
	return q.queue + ":failed"
}

// Relay drains a RedisQueue into another publisher. Events that keep failing
// are parked on the failed list after maxRelayTries attempts.
type Relay struct {
	queue      *RedisQueue
	sink       Publisher
	popTimeout time.Duration
	retryDelay time.Duration
	// errBackoff is the pause after Redis itself fails.
	errBackoff time.Duration
}

func NewRelay(queue *RedisQueue, sink Publisher) *Relay {
	return &Relay{
		queue:      queue,
		sink:       sink,
		popTimeout: 2 * time.Second,
		retryDelay: 5 * time.Second,
		errBackoff: time.Second,
	}
}

func (r *Relay) Start(ctx context.Context) {
	logger.Info("event relay started", "queue", r.queue.queue, "backlog", r.queue.QueueLength(ctx))

	for {
		_, err := r.processNext(ctx)
		if ctx.Err() != nil {
			logger.Info("event relay stopped")
			return
		}
		if err == nil {
			continue
		}

		logger.WithError(err).Warn("event relay cannot read queue", "queue", r.queue.queue, "retry_in", r.errBackoff.String())
		if !wait(ctx, r.errBackoff) {
			logger.Info("event relay stopped")
			return
		}
	}
}

// wait pauses for d and reports false when ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// processNext handles at most one event and reports whether one was popped.
// An empty queue is not an error.
func (r *Relay) processNext(ctx context.Context) (bool, error) {
	result, err := r.queue.redis.BRPop(ctx, r.popTimeout, r.queue.queue).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pop %s: %w", r.queue.queue, err)
	}

	var e Event
	if err := json.Unmarshal([]byte(result[1]), &e); err != nil {
		logger.Error("bad event payload", "error", err)
		return true, nil
	}

	e.Tries++
	if err := r.sink.Publish(ctx, e); err != nil {
		logger.Warn("event relay failed", "event_id", e.ID, "type", e.Type, "attempt", e.Tries, "error", err)

		if e.Tries < maxRelayTries {
			// the event goes back even when shutdown cuts the delay short
			wait(ctx, r.retryDelay)
			data, _ := json.Marshal(e)
			r.queue.redis.LPush(context.Background(), r.queue.queue, data)
		} else {
			r.park(e, err)
		}
		return true, nil
	}

	logger.Debug("event relayed", "event_id", e.ID, "type", e.Type)
	return true, nil
}

func (r *Relay) park(e Event, cause error) {
	failed := map[string]interface{}{
		"event": e,
		"error": cause.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	r.queue.redis.LPush(context.Background(), r.queue.FailedQueue(), data)
	logger.WithError(cause).Error("event moved to failed queue", "event_id", e.ID, "type", e.Type)
}
