package cache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepangreenberg/order-processor/internal/cache"
	"github.com/stepangreenberg/order-processor/internal/domain"
)

func newTestClient(t *testing.T) *cache.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.New(rdb)
}

func TestSetGetOrder_RoundTrips(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	order := &domain.Order{OrderID: "ord-1", CustomerID: "cust-1", TotalAmount: 10, Status: domain.StatusPending, Version: 1}
	require.NoError(t, c.SetOrder(ctx, order))

	got, err := c.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, order.OrderID, got.OrderID)
	assert.Equal(t, order.TotalAmount, got.TotalAmount)
}

func TestGetOrder_MissReturnsErrNotFound(t *testing.T) {
	c := newTestClient(t)
	_, err := c.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestInvalidate_RemovesCachedOrder(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetOrder(ctx, &domain.Order{OrderID: "ord-1", Status: domain.StatusPending, Version: 1}))
	require.NoError(t, c.Invalidate(ctx, "ord-1"))

	_, err := c.GetOrder(ctx, "ord-1")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}
