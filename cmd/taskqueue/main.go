// Command taskqueue runs the full task-queue-go process: it loads
// configuration, registers task handlers against the queues they
// serve, starts the Coordinator (which reconciles worker pools,
// scheduler triggers, and crash recovery), and serves the optional
// HTTP API (enqueue, queue status/pause, health, metrics, a WebSocket
// event feed) over it.
//
// Per §5, this is a single-process system: the worker pools, the
// control plane's reconcile loop, the scheduler, and the HTTP surface
// all share one in-memory Task Registry, so they must run together.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/maumercado/task-queue-go/internal/api"
	"github.com/maumercado/task-queue-go/internal/config"
	"github.com/maumercado/task-queue-go/internal/coordinator"
	"github.com/maumercado/task-queue-go/internal/events"
	"github.com/maumercado/task-queue-go/internal/logger"
	"github.com/maumercado/task-queue-go/internal/registry"
	"github.com/maumercado/task-queue-go/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, os.Getenv("ENV") != "production", cfg.EnableLogging)
	log := logger.Get()
	log.Info().Msg("starting task-queue-go")

	st, err := store.NewRedisStore(store.Options{
		URL:          cfg.Store.URL,
		PoolSize:     cfg.Store.PoolSize,
		MinIdleConns: cfg.Store.MinIdleConns,
		MaxRetries:   cfg.Store.MaxRetries,
		DialTimeout:  cfg.Store.DialTimeout,
		ReadTimeout:  cfg.Store.ReadTimeout,
		WriteTimeout: cfg.Store.WriteTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create store")
	}

	// Pub/Sub runs over its own connection: it is a separate Redis
	// primitive from the list-based queue protocol the Store Adapter
	// exposes.
	pubsubClient, err := parseRedisURL(cfg.Store.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse store url for pub/sub")
	}
	publisher := events.NewRedisPubSub(pubsubClient)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	reg := registry.New()
	mustRegister(*log, reg, "demo:echo", echoHandler, 4, 5*time.Second)
	mustRegister(*log, reg, "demo:sleep", sleepHandler, 2, 10*time.Second)
	mustRegister(*log, reg, "demo:compute", computeHandler, 8, 0)
	mustRegister(*log, reg, "demo:fail", failHandler, 1, 5*time.Second)

	c := coordinator.New(cfg, st, reg, publisher, *log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start coordinator")
	}

	server := api.NewServer(cfg, c, publisher)
	server.Start(ctx)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	server.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := c.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("coordinator shutdown error")
	}

	log.Info().Msg("stopped")
}

func mustRegister(log zerolog.Logger, reg *registry.Registry, queue string, h registry.Handler, concurrency int, timeout time.Duration) {
	if err := reg.Register(queue, h, concurrency, timeout); err != nil {
		log.Fatal().Err(err).Str("queue", queue).Msg("failed to register handler")
	}
}

func parseRedisURL(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}
