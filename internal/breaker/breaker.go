// Package breaker implements a per-processor circuit breaker: a fixed
// three-state machine (Closed, Open, HalfOpen) that counts recent dispatch
// outcomes and suppresses calls to a misbehaving processor.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Config is a breaker's fixed policy, set once at construction.
type Config struct {
	// FailureRateThreshold trips the breaker when the failure rate over
	// the current closed-state window reaches or exceeds this value.
	FailureRateThreshold float64
	// MinThroughput is the minimum number of samples in the window before
	// the failure rate is evaluated at all.
	MinThroughput int
	// ProbeInterval is the number of trial calls allowed while HalfOpen.
	ProbeInterval int
	// Cooldown is how long the breaker stays Open before allowing a
	// half-open probe.
	Cooldown time.Duration
}

// Breaker is a concurrency-safe circuit breaker for a single processor.
// The mutex only ever guards in-memory bookkeeping; the wrapped call
// itself always runs outside the lock so no suspension point holds it.
type Breaker struct {
	cfg Config

	mu             sync.Mutex
	state          State
	openedAt       time.Time
	windowRequests int
	windowFailures int
	halfOpenTrials int
	halfOpenFailed bool
}

// New builds a breaker starting Closed.
func New(cfg Config) *Breaker {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 1
	}
	return &Breaker{cfg: cfg, state: Closed}
}

// State returns the breaker's current state. The state may change
// immediately after this returns due to concurrent Call invocations or
// cooldown expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// currentStateLocked resolves a lazily-expired Open->HalfOpen transition
// without mutating counters (those happen in admit/record). Must be called
// with mu held.
func (b *Breaker) currentStateLocked() State {
	if b.state == Open && time.Since(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen
	}
	return b.state
}

// ForceOpen trips the breaker immediately, for tests that need to exercise
// the fallback-promotion path without manufacturing real failures.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Open
	b.openedAt = time.Now()
}

// admit decides whether a call may proceed right now, transitioning
// Open->HalfOpen if the cooldown has elapsed and reserving a half-open
// trial slot if so. Returns false if the call must be refused.
func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.openedAt) < b.cfg.Cooldown {
			return false
		}
		b.state = HalfOpen
		b.halfOpenTrials = 0
		b.halfOpenFailed = false
		fallthrough
	case HalfOpen:
		if b.halfOpenTrials >= b.cfg.ProbeInterval {
			return false
		}
		b.halfOpenTrials++
		return true
	default:
		return false
	}
}

// record updates counters and applies state transitions after a call
// completed. failed indicates a breaker-relevant failure (transport error
// or 5xx); domain rejections (4xx) are NOT failures and must be reported
// as failed=false by the caller.
func (b *Breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		if failed {
			b.state = Open
			b.openedAt = time.Now()
			return
		}
		if b.halfOpenTrials >= b.cfg.ProbeInterval {
			b.state = Closed
			b.windowRequests = 0
			b.windowFailures = 0
		}
	default: // Closed — the only other state admit() can hand back a slot from
		b.windowRequests++
		if failed {
			b.windowFailures++
		}
		if b.windowRequests >= b.cfg.MinThroughput {
			rate := float64(b.windowFailures) / float64(b.windowRequests)
			if rate >= b.cfg.FailureRateThreshold {
				b.state = Open
				b.openedAt = time.Now()
			}
		}
	}
}

// Outcome is the result of a call attempted through the breaker.
type Outcome int

const (
	// OutcomeOk means the call ran and returned a domain result (whether
	// that domain result was success or a rejection doesn't matter here).
	OutcomeOk Outcome = iota
	// OutcomeRefused means the breaker did not run the call at all.
	OutcomeRefused
)

// Call runs fn if the breaker currently admits calls, and records the
// outcome. fn must report failed=true only for transport errors or 5xx
// responses; 4xx domain rejections must report failed=false since they
// are not a sign the processor itself is unhealthy.
func (b *Breaker) Call(fn func() (result bool, failed bool)) (result bool, outcome Outcome) {
	if !b.admit() {
		return false, OutcomeRefused
	}

	result, failed := fn()
	b.record(failed)
	return result, OutcomeOk
}
