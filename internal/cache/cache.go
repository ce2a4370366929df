// Package cache provides a Redis-backed read-through cache for Order
// lookups. Unlike the teacher repo's write-back cache (which seeded Redis
// at write time so a write could return before Postgres caught up), this
// service's order reads are not latency-critical in the same way, so the
// cache here is the simpler read-through shape: the GET /orders/{id}
// handler checks Redis first, falls back to Postgres on a miss, and
// back-fills with a short TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stepangreenberg/order-processor/internal/domain"
)

const (
	orderKeyPrefix = "order:"
	orderTTL       = 30 * time.Second
)

// ErrNotFound is returned when a key does not exist in the cache.
var ErrNotFound = errors.New("cache: key not found")

// Client wraps the Redis client and exposes domain-level operations.
type Client struct {
	rdb *redis.Client
}

// New wraps an already-constructed go-redis client. Callers (production
// main, or tests backed by miniredis) own dialing.
func New(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close shuts down the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetOrder serialises an Order and stores it in Redis with a short TTL —
// long enough to absorb a burst of repeat reads, short enough that a
// missed cache invalidation on ApplyProcessed self-heals quickly.
func (c *Client) SetOrder(ctx context.Context, order *domain.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, orderKeyPrefix+order.OrderID, data, orderTTL).Err()
}

// GetOrder fetches an Order by ID from Redis. Returns ErrNotFound when the
// key does not exist or has expired.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	data, err := c.rdb.Get(ctx, orderKeyPrefix+orderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Invalidate drops a cached order, used after ApplyProcessed moves an
// order to a terminal status so a stale pending snapshot cannot linger
// past its own TTL unnecessarily.
func (c *Client) Invalidate(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, orderKeyPrefix+orderID).Err()
}
