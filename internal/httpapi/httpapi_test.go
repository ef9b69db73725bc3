package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinha-gateway/payment-router/internal/ingress"
	"github.com/rinha-gateway/payment-router/internal/ledger"
	"github.com/rinha-gateway/payment-router/internal/model"
	"github.com/rinha-gateway/payment-router/internal/queue"
)

func testRedis(t *testing.T) *goredis.Client {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	cleanup := func() {
		keys, _ := client.Keys(context.Background(), "ledger:*").Result()
		keys = append(keys, "payments:queue")
		client.Del(context.Background(), keys...)
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return client
}

func TestHandlePaymentsRejectsInvalidUUID(t *testing.T) {
	client := testRedis(t)
	q := queue.New(client)
	bridge := ingress.New(q)
	led := ledger.New(client)
	s := New(bridge, led)

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"correlationId":"not-a-uuid","amount":10}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlePaymentsAcceptsValidPayment(t *testing.T) {
	client := testRedis(t)
	q := queue.New(client)
	bridge := ingress.New(q)
	led := ledger.New(client)
	s := New(bridge, led)

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"correlationId":"3fa85f64-5717-4562-b3fc-2c963f66afa6","amount":100.5}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandlePaymentsSummaryReturnsRoundedAmounts(t *testing.T) {
	client := testRedis(t)
	q := queue.New(client)
	bridge := ingress.New(q)
	led := ledger.New(client)
	s := New(bridge, led)

	now := time.Now().UTC()
	require.NoError(t, led.Save(context.Background(), model.Default, model.Payment{
		CorrelationID: "sum-1", Amount: 100.005, ProcessedAt: now,
	}))

	url := "/payments-summary?from=" + now.Add(-time.Hour).Format(time.RFC3339) + "&to=" + now.Add(time.Hour).Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp summaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Default.TotalRequests)
	assert.InDelta(t, 100.01, resp.Default.TotalAmount, 1e-9)
}

func TestHandlePurgePaymentsClearsLedger(t *testing.T) {
	client := testRedis(t)
	q := queue.New(client)
	bridge := ingress.New(q)
	led := ledger.New(client)
	s := New(bridge, led)

	require.NoError(t, led.Save(context.Background(), model.Default, model.Payment{
		CorrelationID: "purge-1", Amount: 1, ProcessedAt: time.Now(),
	}))

	req := httptest.NewRequest(http.MethodPost, "/purge-payments", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	found, err := led.IsAlreadyProcessed(context.Background(), model.Default, "purge-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHandleHealthz(t *testing.T) {
	client := testRedis(t)
	q := queue.New(client)
	bridge := ingress.New(q)
	led := ledger.New(client)
	s := New(bridge, led)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
