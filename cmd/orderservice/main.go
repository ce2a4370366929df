// Command orderservice runs the Order Service: accepts orders over HTTP,
// persists them transactionally with an outbox row, publishes
// order.created, and consumes order.processed to advance orders to their
// terminal status.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stepangreenberg/order-processor/internal/api"
	"github.com/stepangreenberg/order-processor/internal/broker"
	"github.com/stepangreenberg/order-processor/internal/cache"
	"github.com/stepangreenberg/order-processor/internal/config"
	"github.com/stepangreenberg/order-processor/internal/consumer"
	"github.com/stepangreenberg/order-processor/internal/publisher"
	"github.com/stepangreenberg/order-processor/internal/storage/postgres"
	"github.com/stepangreenberg/order-processor/internal/usecase"
	"github.com/stepangreenberg/order-processor/internal/worker"
)

const routingKeyOrderProcessed = "order.processed"

func main() {
	log := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	// ── Infrastructure ───────────────────────────────────────────────

	db, err := postgres.Connect(cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	orderCache := cache.New(redisClient)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	conn, err := broker.Dial(rootCtx, cfg.RabbitMQURL)
	if err != nil {
		log.Error("rabbitmq connect failed", "error", err)
		os.Exit(1)
	}

	queueName, err := conn.DeclareServiceQueue("order-service", routingKeyOrderProcessed)
	if err != nil {
		log.Error("declare queue failed", "error", err)
		os.Exit(1)
	}

	orderUseCases := usecase.NewOrderUseCases(db)

	loop := consumer.New(conn, queueName, log)
	loop.On(routingKeyOrderProcessed, func(ctx context.Context, body []byte) error {
		evt, err := consumer.DecodeJSON[orderProcessedEvent](body)
		if err != nil {
			return err
		}
		_, err = orderUseCases.ApplyProcessed(ctx, usecase.ApplyProcessedCommand{
			OrderID:    evt.OrderID,
			Status:     evt.Status,
			FailReason: derefString(evt.Reason),
			Version:    evt.Version,
		})
		if err != nil {
			return err
		}
		if err := orderCache.Invalidate(ctx, evt.OrderID); err != nil {
			log.Warn("cache invalidate failed", "component", "orderservice", "order_id", evt.OrderID, "error", err)
		}
		return nil
	})

	// ── Background workers ───────────────────────────────────────────

	var wg sync.WaitGroup

	pub := publisher.New(db, cfg.RabbitMQURL, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		pub.Run(rootCtx)
	}()

	retention, err := time.ParseDuration(cfg.JanitorRetention)
	if err != nil {
		log.Error("invalid janitor retention", "value", cfg.JanitorRetention, "error", err)
		os.Exit(1)
	}
	janitor := worker.NewJanitor(db, retention, log)
	cronScheduler, err := janitor.Start(cfg.JanitorSchedule)
	if err != nil {
		log.Error("invalid janitor schedule", "schedule", cfg.JanitorSchedule, "error", err)
		os.Exit(1)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(rootCtx); err != nil {
			log.Error("consumer loop exited", "error", err)
		}
	}()

	// ── HTTP server ───────────────────────────────────────────────────

	handler := &api.Handler{Orders: orderUseCases, Cache: orderCache, UOWFactory: db, Log: log}
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler.NewRouter(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("order service started", "component", "orderservice", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "component", "orderservice", "error", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutdown signal received", "component", "orderservice")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		log.Error("http shutdown error", "component", "orderservice", "error", err)
	}

	rootCancel() // stops the publisher and consumer loops
	wg.Wait()

	<-cronScheduler.Stop().Done()
	log.Info("cron stopped", "component", "orderservice")

	conn.Close()
	redisClient.Close()
	db.Close()

	log.Info("shutdown complete", "component", "orderservice")
}

type orderProcessedEvent struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	Reason  *string `json:"reason"`
	Version int     `json:"version"`
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
