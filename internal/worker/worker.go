// Package worker implements the worker pool: N context-cancellable loops,
// each popping a message, checking the ledger for a dedup hit, then
// attempting dispatch through the Router until it succeeds, is terminally
// rejected, or no processor is currently available.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rinha-gateway/payment-router/internal/apperr"
	"github.com/rinha-gateway/payment-router/internal/ledger"
	"github.com/rinha-gateway/payment-router/internal/model"
	"github.com/rinha-gateway/payment-router/internal/process"
	"github.com/rinha-gateway/payment-router/internal/queue"
	"github.com/rinha-gateway/payment-router/internal/router"
)

// popIdleSleep is how long a worker waits after a pop timeout or error
// before trying again.
const popIdleSleep = 1 * time.Second

// requeueBackoff is the back-pressure delay after a message is pushed back
// onto the queue.
const requeueBackoff = 250 * time.Millisecond

// Pool runs a fixed number of worker loops against a shared queue, router,
// processor and ledger.
type Pool struct {
	count     int
	queue     *queue.Queue
	router    *router.Router
	processor *process.Processor
	ledger    *ledger.Ledger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Pool of count workers.
func New(count int, q *queue.Queue, rt *router.Router, proc *process.Processor, led *ledger.Ledger) *Pool {
	return &Pool{count: count, queue: q, router: rt, processor: proc, ledger: led}
}

// Start launches all worker goroutines. It returns immediately; call Stop
// for a graceful shutdown.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Stop cancels every worker loop and blocks until each finishes its current
// message cycle; nothing in flight is lost because the queue is durable.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		msg, ok, err := p.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("worker pop failed", "worker", id, "err", err)
			sleepOrDone(ctx, popIdleSleep)
			continue
		}
		if !ok {
			sleepOrDone(ctx, popIdleSleep)
			continue
		}

		p.handle(ctx, id, *msg)
	}
}

func (p *Pool) handle(ctx context.Context, id int, msg model.QueueMessage) {
	alreadyProcessed, err := p.ledger.IsAlreadyProcessedAnywhere(ctx, msg.Payment.CorrelationID)
	if err != nil {
		slog.Warn("worker dedup check failed", "worker", id, "correlation_id", msg.Payment.CorrelationID, "err", err)
		p.requeue(ctx, id, msg)
		return
	}
	if alreadyProcessed {
		slog.Info("worker dropped duplicate message", "worker", id, "correlation_id", msg.Payment.CorrelationID)
		return
	}

	payment := msg.Payment
	done := false

	for {
		if ctx.Err() != nil {
			break
		}

		choice, err := p.router.Choose()
		if err != nil {
			// No processor available right now: break the attempt loop,
			// not the worker loop.
			break
		}

		// The attempt already under way runs to completion even if the pool
		// is stopping; the loop check above ends further attempts.
		ok, err := p.processor.Execute(context.WithoutCancel(ctx), &payment, choice.Name, choice.Breaker)
		if err == nil || errors.Is(err, apperr.ErrClientReject) {
			// Either domain-success or terminal domain-failure: both are
			// "done" for this message, just with different outcomes.
			done = true
			if !ok {
				slog.Info("worker dropped rejected payment", "worker", id, "correlation_id", payment.CorrelationID)
			}
			break
		}

		if errors.Is(err, apperr.ErrBreakerOpen) {
			// Chosen breaker flipped Open between selection and call:
			// treat as NoneAvailable for this iteration.
			break
		}

		slog.Warn("worker dispatch attempt failed, retrying", "worker", id, "correlation_id", payment.CorrelationID, "err", err)
	}

	if !done {
		p.requeue(ctx, id, model.NewQueueMessage(payment))
		return
	}
}

func (p *Pool) requeue(ctx context.Context, id int, msg model.QueueMessage) {
	// Pushed with a non-cancelled context so a message held when the pool
	// stops goes back onto the queue instead of being dropped.
	if err := p.queue.Push(context.WithoutCancel(ctx), msg); err != nil {
		slog.Error("worker failed to requeue message", "worker", id, "correlation_id", msg.Payment.CorrelationID, "err", err)
	}
	sleepOrDone(ctx, requeueBackoff)
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
