package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepangreenberg/order-processor/internal/domain"
	"github.com/stepangreenberg/order-processor/internal/storage/memory"
	"github.com/stepangreenberg/order-processor/internal/usecase"
)

func TestHandleOrderCreated_EmbargoedItemEmitsFailed(t *testing.T) {
	store := memory.New()
	uc := usecase.NewProcessorUseCases(store, func() float64 { return 0.1 })

	result, err := uc.HandleOrderCreated(context.Background(), usecase.HandleOrderCreatedCommand{
		OrderID: "ord-1",
		Items:   []string{"teapot"},
		Version: 1,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.ResultFailed, result.Status)
	assert.Equal(t, "Pineapple/teapot embargo", result.Reason)

	uow, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer uow.Close(context.Background())
	state, err := uow.States().Get(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessingFailed, state.Status)
	assert.Equal(t, 1, state.AttemptCount)
}

func TestHandleOrderCreated_SuccessEmitsProcessedEvent(t *testing.T) {
	store := memory.New()
	uc := usecase.NewProcessorUseCases(store, func() float64 { return 0.5 })
	ctx := context.Background()

	result, err := uc.HandleOrderCreated(ctx, usecase.HandleOrderCreatedCommand{
		OrderID: "ord-1",
		Items:   []string{"widget"},
		Version: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSuccess, result.Status)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Close(ctx)
	pending, err := uow.Outbox().ClaimPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, usecase.OrderProcessedEvent, pending[0].EventType)
}

func TestHandleOrderCreated_StaleVersionNoOutboxEvent(t *testing.T) {
	store := memory.New()
	uc := usecase.NewProcessorUseCases(store, func() float64 { return 0.5 })
	ctx := context.Background()

	_, err := uc.HandleOrderCreated(ctx, usecase.HandleOrderCreatedCommand{OrderID: "ord-1", Items: []string{"widget"}, Version: 3})
	require.NoError(t, err)

	result, err := uc.HandleOrderCreated(ctx, usecase.HandleOrderCreatedCommand{OrderID: "ord-1", Items: []string{"widget"}, Version: 2})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.ResultIgnored, result.Status)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Close(ctx)
	pending, err := uow.Outbox().ClaimPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "only the first (version 3) event produced an order.processed")
}

func TestHandleOrderCreated_DuplicateEventKeyIsNoOp(t *testing.T) {
	store := memory.New()
	uc := usecase.NewProcessorUseCases(store, func() float64 { return 0.5 })
	ctx := context.Background()

	cmd := usecase.HandleOrderCreatedCommand{OrderID: "ord-1", Items: []string{"widget"}, Version: 1}
	first, err := uc.HandleOrderCreated(ctx, cmd)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := uc.HandleOrderCreated(ctx, cmd)
	require.NoError(t, err)
	assert.Nil(t, second, "replay of the same order.created:ord-1:1 key must be a no-op")
}
