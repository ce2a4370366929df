// Package worker holds the background cron job each service runs
// alongside its HTTP/consumer loop. It adapts the teacher repo's
// materialized-view-refresh cron (internal/worker/cron.go) into a
// retention sweep over processed_inbox and published outbox rows: once an
// event has been durably published and acknowledged, keeping it forever
// only grows two append-only tables without bound.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stepangreenberg/order-processor/internal/storage"
)

// Janitor periodically deletes published outbox rows and processed_inbox
// keys older than a retention window.
type Janitor struct {
	uowFactory storage.UnitOfWorkFactory
	retention  time.Duration
	log        *slog.Logger
}

// NewJanitor constructs a Janitor bound to a Unit of Work factory.
func NewJanitor(uowFactory storage.UnitOfWorkFactory, retention time.Duration, log *slog.Logger) *Janitor {
	return &Janitor{uowFactory: uowFactory, retention: retention, log: log.With("component", "janitor")}
}

// Start registers the sweep on the given cron schedule and starts the
// scheduler. The caller must Stop() the returned *cron.Cron on shutdown —
// Stop returns a context that is done once any in-flight sweep finishes,
// matching the teacher's cron.StartCronJobs contract.
func (j *Janitor) Start(schedule string) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		j.log.Info("retention sweep started")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := j.sweep(ctx); err != nil {
			j.log.Error("retention sweep failed", "error", err)
			return
		}
		j.log.Info("retention sweep done")
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	j.log.Info("janitor cron started", "schedule", schedule)
	return c, nil
}

func (j *Janitor) sweep(ctx context.Context) error {
	uow, err := j.uowFactory.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Close(ctx)

	cutoff := time.Now().Add(-j.retention)
	if err := uow.Outbox().DeletePublishedBefore(ctx, cutoff); err != nil {
		return err
	}
	if err := uow.Inbox().DeleteBefore(ctx, cutoff); err != nil {
		return err
	}

	return uow.Commit(ctx)
}
