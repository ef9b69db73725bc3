// Package queue implements the durable payment queue over Redis: a single
// list acting as a FIFO, pushed to with LPUSH and drained with BRPOP so the
// list itself blocks pop callers until work arrives instead of polling.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rinha-gateway/payment-router/internal/apperr"
	"github.com/rinha-gateway/payment-router/internal/model"
)

// listKey is the single Redis list backing the queue. There is exactly one
// logical queue in this system; payments are routed to a processor only
// after being popped, not before.
const listKey = "payments:queue"

// popTimeout bounds each BRPOP call so a worker can still observe context
// cancellation between polls instead of blocking forever.
const popTimeout = 1 * time.Second

// Queue is a FIFO of model.QueueMessage backed by a Redis list.
type Queue struct {
	client *redis.Client
}

// New wraps an already-connected redis.Client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Push adds a message at the list's head (LPUSH); Pop drains from the other
// end (BRPOP), so pops observe FIFO order relative to pushes.
func (q *Queue) Push(ctx context.Context, msg model.QueueMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal queue message: %w", err)
	}

	if err := q.client.LPush(ctx, listKey, payload).Err(); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// Pop blocks up to popTimeout waiting for a message. It returns
// (nil, false, nil) on a timeout with no message available, so callers can
// loop and re-check ctx.Err() between attempts rather than blocking
// indefinitely on one Redis round trip.
func (q *Queue) Pop(ctx context.Context) (*model.QueueMessage, bool, error) {
	res, err := q.client.BRPop(ctx, popTimeout, listKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, fmt.Errorf("%w: %s", apperr.ErrStorageUnavailable, err)
	}

	// BRPop returns [key, value]; only the value is ours.
	if len(res) != 2 {
		return nil, false, fmt.Errorf("%w: unexpected BRPOP reply shape", apperr.ErrStorageUnavailable)
	}

	var msg model.QueueMessage
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, false, fmt.Errorf("unmarshal queue message: %w", err)
	}
	return &msg, true, nil
}
