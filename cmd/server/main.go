// Command server wires the payment router's components together and runs
// the HTTP ingress adapter, the health monitor, the worker pool, and
// graceful shutdown of all three.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rinha-gateway/payment-router/internal/breaker"
	"github.com/rinha-gateway/payment-router/internal/config"
	"github.com/rinha-gateway/payment-router/internal/health"
	"github.com/rinha-gateway/payment-router/internal/httpapi"
	"github.com/rinha-gateway/payment-router/internal/ingress"
	"github.com/rinha-gateway/payment-router/internal/ledger"
	"github.com/rinha-gateway/payment-router/internal/process"
	"github.com/rinha-gateway/payment-router/internal/queue"
	"github.com/rinha-gateway/payment-router/internal/registry"
	"github.com/rinha-gateway/payment-router/internal/router"
	"github.com/rinha-gateway/payment-router/internal/worker"
)

// Breaker policy constants: the fallback processor charges a higher fee and
// only takes traffic while the default's breaker is open, hence its tighter
// failure-rate threshold and longer cooldown.
var (
	defaultBreakerConfig = breaker.Config{
		FailureRateThreshold: 0.5,
		MinThroughput:        5,
		ProbeInterval:        10,
		Cooldown:             3 * time.Second,
	}
	fallbackBreakerConfig = breaker.Config{
		FailureRateThreshold: 0.1,
		MinThroughput:        5,
		ProbeInterval:        10,
		Cooldown:             10 * time.Second,
	}
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration failed to load", "err", err)
		os.Exit(1)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid redis url", "err", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Error("could not connect to redis", "err", err)
		os.Exit(1)
	}

	reg := registry.New(cfg.DefaultPaymentProcessor, cfg.FallbackPaymentProcessor)
	defaultBreaker := breaker.New(defaultBreakerConfig)
	fallbackBreaker := breaker.New(fallbackBreakerConfig)

	monitor := health.New(reg, cfg.DefaultPaymentProcessor, cfg.FallbackPaymentProcessor)
	go monitor.Run(ctx)

	q := queue.New(redisClient)
	led := ledger.New(redisClient)
	rt := router.New(reg, defaultBreaker, fallbackBreaker)
	proc := process.New(reg, led)

	pool := worker.New(cfg.WorkerCount, q, rt, proc, led)
	pool.Start(ctx)

	bridge := ingress.New(q)
	go bridge.Run(ctx)

	srv := httpapi.New(bridge, led)
	httpServer := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     srv.Handler(),
		IdleTimeout: time.Duration(cfg.ServerKeepAlive) * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.ServerPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	// Ingress bridge closes first so new requests are rejected, then the
	// HTTP server stops accepting, then workers finish whatever message
	// they're holding.
	bridge.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "err", err)
	}

	pool.Stop()
	slog.Info("shutdown complete")
}
