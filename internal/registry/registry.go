// Package registry holds the process-wide processor registry: the only
// in-memory mutable state shared by every worker and the health monitor.
// Many concurrent readers (workers consulting health), one writer at a
// time (the health monitor) — a sync.RWMutex bracketing a single read or
// write, never held across a suspension point.
package registry

import (
	"sync"

	"github.com/rinha-gateway/payment-router/internal/model"
)

// Registry is the shared, concurrency-safe map of the two fixed processor
// slots. Both entries exist for the lifetime of the process; only Health
// and MinResponseTimeMs ever change.
type Registry struct {
	mu      sync.RWMutex
	entries map[model.ProcessorName]model.ProcessorEntry
}

// New builds a registry with both processors present and Failing, keyed by
// name, each entry holding its immutable URL.
func New(defaultURL, fallbackURL string) *Registry {
	return &Registry{
		entries: map[model.ProcessorName]model.ProcessorEntry{
			model.Default: {
				Name:   model.Default,
				URL:    defaultURL,
				Health: model.Failing,
			},
			model.Fallback: {
				Name:   model.Fallback,
				URL:    fallbackURL,
				Health: model.Failing,
			},
		},
	}
}

// Get returns a snapshot of one processor's entry. The returned value is a
// copy; mutating it has no effect on the registry.
func (r *Registry) Get(name model.ProcessorName) model.ProcessorEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name]
}

// Snapshot returns copies of both processor entries in one read lease, so
// the Router always decides against a consistent pair of readings.
func (r *Registry) Snapshot() (def, fallback model.ProcessorEntry) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[model.Default], r.entries[model.Fallback]
}

// Update atomically replaces one processor's health fields. The name+URL
// pair never changes after New; only health fields are overwritten here.
func (r *Registry) Update(name model.ProcessorName, health model.Health, minResponseTimeMs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entries[name]
	entry.Health = health
	entry.MinResponseTimeMs = minResponseTimeMs
	r.entries[name] = entry
}
