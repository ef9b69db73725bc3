// Package process implements the process-payment use case: dispatch a
// payment to a chosen processor through its breaker, stamp the result, and
// persist success to the ledger.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rinha-gateway/payment-router/internal/apperr"
	"github.com/rinha-gateway/payment-router/internal/breaker"
	"github.com/rinha-gateway/payment-router/internal/ledger"
	"github.com/rinha-gateway/payment-router/internal/model"
	"github.com/rinha-gateway/payment-router/internal/registry"
)

// dispatchTimeout bounds both connect and total time for a downstream
// dispatch call.
const dispatchTimeout = 100 * time.Millisecond

// dispatchRequest is the JSON body sent to a processor's /payments route.
type dispatchRequest struct {
	CorrelationID string    `json:"correlationId"`
	Amount        float64   `json:"amount"`
	RequestedAt   time.Time `json:"requestedAt"`
}

// Processor dispatches a payment to a chosen processor and records the
// result in the ledger.
type Processor struct {
	registry   *registry.Registry
	ledger     *ledger.Ledger
	httpClient *http.Client
}

// New builds a Processor. The HTTP client is built here (not injected) so
// its timeout is always pinned to dispatchTimeout — no blocking call
// through this Processor goes out unbounded.
func New(reg *registry.Registry, led *ledger.Ledger) *Processor {
	return &Processor{
		registry: reg,
		ledger:   led,
		httpClient: &http.Client{
			Timeout: dispatchTimeout,
		},
	}
}

// Execute dispatches payment through the given processor/breaker choice.
// It mutates payment in place (RequestedAt always, ProcessedAt/ProcessedBy
// on success) and returns true on domain-success, false on domain-failure
// (4xx, terminal, not retried — reported as apperr.ErrClientReject). An
// error otherwise means the breaker refused the call (apperr.ErrBreakerOpen)
// or the downstream call failed on transport/5xx grounds
// (apperr.ErrTransientDownstream) or the ledger write failed after a
// successful dispatch (apperr.ErrLedgerUnavailable).
func (p *Processor) Execute(ctx context.Context, payment *model.Payment, name model.ProcessorName, br *breaker.Breaker) (bool, error) {
	payment.RequestedAt = time.Now().UTC()
	url := p.registry.Get(name).URL

	var transportErr error
	result, outcome := br.Call(func() (bool, bool) {
		ok, failed, err := p.dispatch(ctx, url, *payment)
		if err != nil {
			transportErr = err
		}
		return ok, failed
	})

	if outcome == breaker.OutcomeRefused {
		return false, apperr.ErrBreakerOpen
	}
	if transportErr != nil {
		return false, fmt.Errorf("%w: %s", apperr.ErrTransientDownstream, transportErr)
	}
	if !result {
		return false, apperr.ErrClientReject
	}

	payment.ProcessedAt = time.Now().UTC()
	payment.ProcessedBy = string(name)
	if err := p.ledger.Save(ctx, name, *payment); err != nil {
		return true, err
	}
	return true, nil
}

// dispatch performs the actual HTTP call. It returns (success, breakerFailed, err):
// success is true only on 2xx; breakerFailed is true on 5xx or a transport
// error (and err carries the detail); 4xx is success=false, breakerFailed=false.
func (p *Processor) dispatch(ctx context.Context, baseURL string, payment model.Payment) (success bool, breakerFailed bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	body, err := json.Marshal(dispatchRequest{
		CorrelationID: payment.CorrelationID,
		Amount:        payment.Amount,
		RequestedAt:   payment.RequestedAt,
	})
	if err != nil {
		return false, true, fmt.Errorf("marshal dispatch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return false, true, fmt.Errorf("build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, false, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return false, false, nil
	default:
		return false, true, fmt.Errorf("processor returned status %d", resp.StatusCode)
	}
}
