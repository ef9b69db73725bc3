// Package ingress implements a bounded ingress bridge: a buffered channel
// between the HTTP accept handler and a single forwarder goroutine that
// pushes each payment onto the durable payment queue.
package ingress

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/rinha-gateway/payment-router/internal/apperr"
	"github.com/rinha-gateway/payment-router/internal/model"
	"github.com/rinha-gateway/payment-router/internal/queue"
)

// Capacity is the bridge channel's buffer size.
const Capacity = 100_000

// Bridge decouples HTTP accept latency from PaymentQueue write latency: the
// accept handler only has to succeed at a channel send, and a single
// forwarder goroutine owns every write to the durable queue.
type Bridge struct {
	ch     chan model.Payment
	queue  *queue.Queue
	closed atomic.Bool
}

// New builds a Bridge writing to q.
func New(q *queue.Queue) *Bridge {
	return &Bridge{ch: make(chan model.Payment, Capacity), queue: q}
}

// Accept attempts a non-blocking send onto the bridge channel. It returns
// apperr.ErrAcceptRejected if the channel is full or already closed.
func (b *Bridge) Accept(payment model.Payment) (err error) {
	if b.closed.Load() {
		return apperr.ErrAcceptRejected
	}

	defer func() {
		// Close() may run concurrently with this send; a send racing a
		// closed channel panics rather than returning an error.
		if recover() != nil {
			err = apperr.ErrAcceptRejected
		}
	}()

	select {
	case b.ch <- payment:
		return nil
	default:
		return apperr.ErrAcceptRejected
	}
}

// Run is the single forwarder goroutine: it drains the bridge channel and
// pushes each payment onto the durable queue until the channel is closed
// and drained, or ctx is canceled.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case payment, ok := <-b.ch:
			if !ok {
				return
			}
			msg := model.NewQueueMessage(payment)
			if err := b.queue.Push(ctx, msg); err != nil {
				slog.Error("ingress forwarder failed to push to queue", "correlation_id", payment.CorrelationID, "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close stops further Accept calls from succeeding. It is called first
// during shutdown so new requests are rejected before worker cycles are
// given time to finish their current message.
func (b *Bridge) Close() {
	if b.closed.Swap(true) {
		return
	}
	close(b.ch)
}
