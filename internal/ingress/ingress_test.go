package ingress

import (
	"context"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinha-gateway/payment-router/internal/apperr"
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
	client.Del(context.Background(), "payments:queue")
	t.Cleanup(func() {
		client.Del(context.Background(), "payments:queue")
		client.Close()
	})
	return client
}

func TestAcceptThenRunForwardsToQueue(t *testing.T) {
	client := testRedis(t)
	q := queue.New(client)
	b := New(q)

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	defer cancel()

	require.NoError(t, b.Accept(model.Payment{CorrelationID: "ing-1", Amount: 10}))

	deadline := time.After(time.Second)
	for {
		msg, ok, err := q.Pop(context.Background())
		require.NoError(t, err)
		if ok {
			assert.Equal(t, "ing-1", msg.MessageID)
			return
		}
		select {
		case <-deadline:
			t.Fatal("message never forwarded")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAcceptRejectsAfterClose(t *testing.T) {
	client := testRedis(t)
	q := queue.New(client)
	b := New(q)
	b.Close()

	err := b.Accept(model.Payment{CorrelationID: "ing-2", Amount: 10})
	assert.ErrorIs(t, err, apperr.ErrAcceptRejected)
}

func TestAcceptRejectsWhenChannelFull(t *testing.T) {
	client := testRedis(t)
	q := queue.New(client)
	b := &Bridge{ch: make(chan model.Payment, 1), queue: q}

	require.NoError(t, b.Accept(model.Payment{CorrelationID: "ing-3", Amount: 1}))
	err := b.Accept(model.Payment{CorrelationID: "ing-4", Amount: 1})
	assert.ErrorIs(t, err, apperr.ErrAcceptRejected)
}
