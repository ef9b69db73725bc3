// Package apperr collects the sentinel errors the router's core
// distinguishes, per the error handling design: each names a failure kind
// whose handling policy differs from the others (retry vs. terminal,
// log-and-continue vs. surface to the caller).
package apperr

import "errors"

var (
	// ErrStorageUnavailable means a PaymentQueue operation failed on
	// transport grounds. The worker logs it, sleeps, and retries the pop;
	// it is never fatal to the worker goroutine.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrBreakerOpen means the circuit breaker refused the call outright;
	// the worker treats this the same as the router returning no processor.
	ErrBreakerOpen = errors.New("circuit breaker open")

	// ErrClientReject means the downstream processor returned 4xx: the
	// payment is malformed or rejected. This is terminal — the worker does
	// not retry and does not save to the ledger.
	ErrClientReject = errors.New("processor rejected payment")

	// ErrTransientDownstream wraps a downstream 5xx or transport failure
	// observed while a call was in flight through the breaker.
	ErrTransientDownstream = errors.New("transient downstream failure")

	// ErrLedgerUnavailable means a ledger write failed after dispatch
	// already succeeded. The dedup marker (the ledger entry itself) is
	// what's missing, so the message will be retried and may dispatch
	// again; that's an accepted at-least-once cost.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrNoProcessorAvailable is returned by the Router when neither
	// processor is eligible right now; the worker should stall/requeue.
	ErrNoProcessorAvailable = errors.New("no processor available")

	// ErrAcceptRejected means the ingress bridge's channel was closed or
	// full; the client sees a 5xx and no state was created.
	ErrAcceptRejected = errors.New("ingress channel closed or full")
)
