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

func TestCreateOrder_HappyPath(t *testing.T) {
	store := memory.New()
	uc := usecase.NewOrderUseCases(store)

	order, err := uc.CreateOrder(context.Background(), usecase.CreateOrderCommand{
		OrderID:    "ord-456",
		CustomerID: "cust-789",
		Items: []domain.ItemLine{
			{SKU: "laptop", Quantity: 1, Price: 1200},
			{SKU: "mouse", Quantity: 2, Price: 25},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1250.0, order.TotalAmount)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, 1, order.Version)

	uow, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer uow.Close(context.Background())
	pending, err := uow.Outbox().ClaimPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, usecase.OrderCreatedEvent, pending[0].EventType)
}

func TestCreateOrder_IdempotentOnRepeatID(t *testing.T) {
	store := memory.New()
	uc := usecase.NewOrderUseCases(store)
	ctx := context.Background()

	cmd := usecase.CreateOrderCommand{
		OrderID:    "ord-1",
		CustomerID: "cust-1",
		Items:      []domain.ItemLine{{SKU: "widget", Quantity: 1, Price: 10}},
	}

	first, err := uc.CreateOrder(ctx, cmd)
	require.NoError(t, err)

	second, err := uc.CreateOrder(ctx, cmd)
	require.NoError(t, err)

	assert.Equal(t, first.Version, second.Version)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Close(ctx)
	pending, err := uow.Outbox().ClaimPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "repeat create must not enqueue a second event")
}

func TestCreateOrder_ValidationError(t *testing.T) {
	store := memory.New()
	uc := usecase.NewOrderUseCases(store)

	_, err := uc.CreateOrder(context.Background(), usecase.CreateOrderCommand{
		OrderID:    "ord-1",
		CustomerID: "cust-1",
		Items:      nil,
	})
	require.Error(t, err)
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func seedOrder(t *testing.T, store *memory.Store, orderID string) {
	t.Helper()
	ctx := context.Background()
	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Close(ctx)

	order, err := domain.NewOrder(orderID, "cust-1", []domain.ItemLine{{SKU: "widget", Quantity: 1, Price: 10}})
	require.NoError(t, err)
	require.NoError(t, uow.Orders().Put(ctx, order))
	require.NoError(t, uow.Commit(ctx))
}

func TestApplyProcessed_AdvancesOrderToDone(t *testing.T) {
	store := memory.New()
	seedOrder(t, store, "ord-proc-123")
	uc := usecase.NewOrderUseCases(store)

	order, err := uc.ApplyProcessed(context.Background(), usecase.ApplyProcessedCommand{
		OrderID: "ord-proc-123",
		Status:  "success",
		Version: 2,
	})
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, domain.StatusDone, order.Status)
	assert.Equal(t, 2, order.Version)
}

func TestApplyProcessed_RedeliveryIsNoOp(t *testing.T) {
	store := memory.New()
	seedOrder(t, store, "ord-proc-123")
	uc := usecase.NewOrderUseCases(store)
	ctx := context.Background()

	cmd := usecase.ApplyProcessedCommand{OrderID: "ord-proc-123", Status: "success", Version: 2}
	first, err := uc.ApplyProcessed(ctx, cmd)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := uc.ApplyProcessed(ctx, cmd)
	require.NoError(t, err)
	assert.Nil(t, second, "replay of an already-applied event key must be a no-op")

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Close(ctx)
	stored, err := uow.Orders().Get(ctx, "ord-proc-123")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version, "state unchanged by the replay")
}

func TestApplyProcessed_StaleVersionDropped(t *testing.T) {
	store := memory.New()
	seedOrder(t, store, "ord-1")
	uc := usecase.NewOrderUseCases(store)
	ctx := context.Background()

	// Advance to version 3 first.
	_, err := uc.ApplyProcessed(ctx, usecase.ApplyProcessedCommand{OrderID: "ord-1", Status: "success", Version: 3})
	require.NoError(t, err)

	// A version-2 event arriving late must not move anything.
	result, err := uc.ApplyProcessed(ctx, usecase.ApplyProcessedCommand{OrderID: "ord-1", Status: "failed", FailReason: "late", Version: 2})
	require.NoError(t, err)
	assert.Nil(t, result)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Close(ctx)
	stored, err := uow.Orders().Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, stored.Status)
	assert.Equal(t, 3, stored.Version)
}

func TestApplyProcessed_MissingOrderDropped(t *testing.T) {
	store := memory.New()
	uc := usecase.NewOrderUseCases(store)

	order, err := uc.ApplyProcessed(context.Background(), usecase.ApplyProcessedCommand{
		OrderID: "does-not-exist",
		Status:  "success",
		Version: 1,
	})
	require.NoError(t, err)
	assert.Nil(t, order)
}
