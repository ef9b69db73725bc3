package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/rinha-gateway/payment-router/internal/breaker"
	"github.com/rinha-gateway/payment-router/internal/ledger"
	"github.com/rinha-gateway/payment-router/internal/model"
	"github.com/rinha-gateway/payment-router/internal/process"
	"github.com/rinha-gateway/payment-router/internal/queue"
	"github.com/rinha-gateway/payment-router/internal/registry"
	"github.com/rinha-gateway/payment-router/internal/router"
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

func defaultBreakerConfig() breaker.Config {
	return breaker.Config{FailureRateThreshold: 0.5, MinThroughput: 5, ProbeInterval: 10, Cooldown: 3 * time.Second}
}

func TestPoolDispatchesSuccessfullyToDefault(t *testing.T) {
	client := testRedis(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := registry.New(srv.URL, "http://unused")
	reg.Update(model.Default, model.Healthy, 50)

	defBreaker := breaker.New(defaultBreakerConfig())
	fbBreaker := breaker.New(defaultBreakerConfig())
	rt := router.New(reg, defBreaker, fbBreaker)

	led := ledger.New(client)
	proc := process.New(reg, led)
	q := queue.New(client)

	require.NoError(t, q.Push(context.Background(), model.NewQueueMessage(model.Payment{CorrelationID: "w-1", Amount: 250.00})))

	pool := New(1, q, rt, proc, led)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		found, err := led.IsAlreadyProcessed(context.Background(), model.Default, "w-1")
		require.NoError(t, err)
		if found {
			break
		}
		select {
		case <-deadline:
			t.Fatal("payment was never processed")
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	pool.Stop()
}

func TestPoolDropsDuplicateAlreadyInLedger(t *testing.T) {
	client := testRedis(t)

	called := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := registry.New(srv.URL, "http://unused")
	reg.Update(model.Default, model.Healthy, 50)
	defBreaker := breaker.New(defaultBreakerConfig())
	fbBreaker := breaker.New(defaultBreakerConfig())
	rt := router.New(reg, defBreaker, fbBreaker)

	led := ledger.New(client)
	now := time.Now()
	require.NoError(t, led.Save(context.Background(), model.Default, model.Payment{
		CorrelationID: "w-2", Amount: 500.00, ProcessedAt: now,
	}))

	proc := process.New(reg, led)
	q := queue.New(client)
	require.NoError(t, q.Push(context.Background(), model.NewQueueMessage(model.Payment{CorrelationID: "w-2", Amount: 500.00})))

	pool := New(1, q, rt, proc, led)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	time.Sleep(300 * time.Millisecond)
	cancel()
	pool.Stop()

	require.Equal(t, 0, called)
	summary, err := led.Summarize(context.Background(), model.Default, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, summary.TotalRequests)
}
