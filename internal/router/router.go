// Package router implements the pure routing decision: given a registry
// snapshot and both breakers, choose which processor a payment should be
// dispatched through.
package router

import (
	"github.com/rinha-gateway/payment-router/internal/apperr"
	"github.com/rinha-gateway/payment-router/internal/breaker"
	"github.com/rinha-gateway/payment-router/internal/model"
	"github.com/rinha-gateway/payment-router/internal/registry"
)

// maxResponseTimeMs is the latency ceiling above which a processor is
// treated as too slow to route to, regardless of its reported health.
const maxResponseTimeMs = 100

// Router picks a processor out of a registry snapshot plus both breakers.
// It holds no state of its own; all inputs are read fresh on every Choose.
type Router struct {
	registry        *registry.Registry
	defaultBreaker  *breaker.Breaker
	fallbackBreaker *breaker.Breaker
}

// New builds a Router over the given registry and the two fixed breakers.
func New(reg *registry.Registry, defaultBreaker, fallbackBreaker *breaker.Breaker) *Router {
	return &Router{registry: reg, defaultBreaker: defaultBreaker, fallbackBreaker: fallbackBreaker}
}

// Choice names which processor was picked and the breaker that must wrap
// the dispatch call.
type Choice struct {
	Name    model.ProcessorName
	Breaker *breaker.Breaker
}

// Choose prefers the default processor whenever it's healthy, fast enough,
// and its breaker isn't open, falling back to the fallback processor only
// once the default's breaker has tripped. It returns
// apperr.ErrNoProcessorAvailable when neither processor is eligible right
// now, including the case where the default is merely slow or unhealthy
// but its breaker has not tripped — the Router never promotes to fallback
// on that basis alone.
func (rt *Router) Choose() (Choice, error) {
	def, fallback := rt.registry.Snapshot()

	if def.Health == model.Healthy && def.MinResponseTimeMs < maxResponseTimeMs && rt.defaultBreaker.State() != breaker.Open {
		return Choice{Name: model.Default, Breaker: rt.defaultBreaker}, nil
	}

	if rt.defaultBreaker.State() == breaker.Open &&
		fallback.Health == model.Healthy &&
		fallback.MinResponseTimeMs < maxResponseTimeMs &&
		rt.fallbackBreaker.State() != breaker.Open {
		return Choice{Name: model.Fallback, Breaker: rt.fallbackBreaker}, nil
	}

	return Choice{}, apperr.ErrNoProcessorAvailable
}
