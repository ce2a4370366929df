// Command processorservice runs the Processor Service: consumes
// order.created, applies the processing business rules, and publishes
// order.processed via its own transactional outbox.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stepangreenberg/order-processor/internal/broker"
	"github.com/stepangreenberg/order-processor/internal/config"
	"github.com/stepangreenberg/order-processor/internal/consumer"
	"github.com/stepangreenberg/order-processor/internal/publisher"
	"github.com/stepangreenberg/order-processor/internal/storage/postgres"
	"github.com/stepangreenberg/order-processor/internal/usecase"
	"github.com/stepangreenberg/order-processor/internal/worker"
)

const routingKeyOrderCreated = "order.created"

func main() {
	log := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	db, err := postgres.Connect(cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	conn, err := broker.Dial(rootCtx, cfg.RabbitMQURL)
	if err != nil {
		log.Error("rabbitmq connect failed", "error", err)
		os.Exit(1)
	}

	queueName, err := conn.DeclareServiceQueue("processor-service", routingKeyOrderCreated)
	if err != nil {
		log.Error("declare queue failed", "error", err)
		os.Exit(1)
	}

	processorUseCases := usecase.NewProcessorUseCases(db, nil)

	loop := consumer.New(conn, queueName, log)
	loop.On(routingKeyOrderCreated, func(ctx context.Context, body []byte) error {
		evt, err := consumer.DecodeJSON[orderCreatedEvent](body)
		if err != nil {
			return err
		}
		_, err = processorUseCases.HandleOrderCreated(ctx, usecase.HandleOrderCreatedCommand{
			OrderID: evt.OrderID,
			Items:   itemSKUs(evt.Items),
			Amount:  evt.Amount,
			Version: evt.Version,
		})
		return err
	})

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

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second}

	go func() {
		log.Info("processor service started", "component", "processorservice", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "component", "processorservice", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutdown signal received", "component", "processorservice")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		log.Error("http shutdown error", "component", "processorservice", "error", err)
	}

	rootCancel()
	wg.Wait()

	<-cronScheduler.Stop().Done()
	log.Info("cron stopped", "component", "processorservice")

	conn.Close()
	db.Close()

	log.Info("shutdown complete", "component", "processorservice")
}

type orderCreatedEvent struct {
	OrderID    string             `json:"order_id"`
	CustomerID string             `json:"customer_id"`
	Items      []itemLinePayload  `json:"items"`
	Amount     float64            `json:"amount"`
	Version    int                `json:"version"`
}

type itemLinePayload struct {
	SKU      string  `json:"sku"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

func itemSKUs(items []itemLinePayload) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.SKU
	}
	return out
}
