// Package health implements the processor health monitor: a single
// long-lived task that polls both processors' service-health endpoints on a
// fixed interval and writes outcomes into the shared registry.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rinha-gateway/payment-router/internal/model"
	"github.com/rinha-gateway/payment-router/internal/registry"
)

// Interval is the fixed polling cadence. The processors document a 5s rate
// limit on this endpoint; polling faster is a contract violation.
const Interval = 5 * time.Second

// probeTimeout bounds a single health GET. The two probes of a tick run one
// after the other, so a slow processor delays the other's probe by at most
// this long.
const probeTimeout = 4 * time.Second

// serviceHealthResponse mirrors the downstream processor's
// /payments/service-health JSON body.
type serviceHealthResponse struct {
	Failing         bool `json:"failing"`
	MinResponseTime int  `json:"minResponseTime"`
}

// Monitor polls both processors and updates the shared registry.
type Monitor struct {
	registry    *registry.Registry
	httpClient  *http.Client
	defaultURL  string
	fallbackURL string
}

// New builds a Monitor that probes the given processor base URLs and writes
// the outcomes into reg.
func New(reg *registry.Registry, defaultURL, fallbackURL string) *Monitor {
	return &Monitor{
		registry:    reg,
		httpClient:  &http.Client{Timeout: probeTimeout},
		defaultURL:  defaultURL,
		fallbackURL: fallbackURL,
	}
}

// Run blocks, probing both processors every Interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	m.probeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeAll(ctx)
		}
	}
}

func (m *Monitor) probeAll(ctx context.Context) {
	m.probeOne(ctx, model.Default, m.defaultURL)
	m.probeOne(ctx, model.Fallback, m.fallbackURL)
}

func (m *Monitor) probeOne(ctx context.Context, name model.ProcessorName, baseURL string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/payments/service-health", nil)
	if err != nil {
		slog.Error("health probe request build failed", "processor", name, "err", err)
		m.registry.Update(name, model.Failing, 0)
		return
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		slog.Warn("health probe transport error", "processor", name, "err", err)
		m.registry.Update(name, model.Failing, 0)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("health probe non-2xx", "processor", name, "status", resp.StatusCode)
		m.registry.Update(name, model.Failing, 0)
		return
	}

	var body serviceHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		// Unparseable 2xx body: leave the existing entry untouched,
		// just log it.
		slog.Warn("health probe unparseable body", "processor", name, "err", err)
		return
	}

	health := model.Healthy
	if body.Failing {
		health = model.Failing
	}
	m.registry.Update(name, health, body.MinResponseTime)
}
