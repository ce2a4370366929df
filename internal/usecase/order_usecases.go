// Package usecase composes domain rules with the storage gateway to
// implement the three operations spec.md §4.6 names. Each use case owns
// exactly one Unit of Work scope and commits at most once (the no-op paths
// return without committing).
package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stepangreenberg/order-processor/internal/domain"
	"github.com/stepangreenberg/order-processor/internal/inbox"
	"github.com/stepangreenberg/order-processor/internal/storage"
)

// OrderCreatedEvent and OrderProcessedEvent are the wire event type names
// used as both the outbox event_type column and the AMQP routing key.
const (
	OrderCreatedEvent   = "order.created"
	OrderProcessedEvent = "order.processed"
)

// orderCreatedPayload is the canonical JSON body of an order.created event
// (spec.md §6).
type orderCreatedPayload struct {
	OrderID    string           `json:"order_id"`
	CustomerID string           `json:"customer_id"`
	Items      []itemLinePayload `json:"items"`
	Amount     float64          `json:"amount"`
	Version    int              `json:"version"`
}

type itemLinePayload struct {
	SKU      string  `json:"sku"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// orderProcessedPayload is the canonical JSON body of an order.processed
// event (spec.md §6). Reason is a pointer so "no reason" serializes as
// JSON null rather than an empty string, matching the wire schema.
type orderProcessedPayload struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	Reason  *string `json:"reason"`
	Version int     `json:"version"`
}

// OrderUseCases implements CreateOrder and ApplyProcessed for the Order
// Service, against a UnitOfWorkFactory so every invocation gets its own
// transaction scope.
type OrderUseCases struct {
	uowFactory storage.UnitOfWorkFactory
}

// NewOrderUseCases constructs the Order Service's use-case layer.
func NewOrderUseCases(uowFactory storage.UnitOfWorkFactory) *OrderUseCases {
	return &OrderUseCases{uowFactory: uowFactory}
}

// CreateOrderCommand is the input to CreateOrder.
type CreateOrderCommand struct {
	OrderID    string
	CustomerID string
	Items      []domain.ItemLine
}

// CreateOrder is idempotent on OrderID: a repeat call with the same ID
// returns the existing order unchanged and produces no new outbox event.
func (uc *OrderUseCases) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	uow, err := uc.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("usecase: begin: %w", err)
	}
	defer uow.Close(ctx)

	existing, err := uow.Orders().Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, fmt.Errorf("usecase: load existing order: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	order, err := domain.NewOrder(cmd.OrderID, cmd.CustomerID, cmd.Items)
	if err != nil {
		return nil, err
	}

	if err := uow.Orders().Put(ctx, order); err != nil {
		return nil, fmt.Errorf("usecase: store order: %w", err)
	}

	payload, err := json.Marshal(orderCreatedPayload{
		OrderID:    order.OrderID,
		CustomerID: order.CustomerID,
		Items:      toItemPayloads(order.Items),
		Amount:     order.TotalAmount,
		Version:    order.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("usecase: marshal order.created payload: %w", err)
	}

	if err := uow.Outbox().Put(ctx, OrderCreatedEvent, payload); err != nil {
		return nil, fmt.Errorf("usecase: enqueue order.created: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("usecase: commit: %w", err)
	}

	return order, nil
}

// GetOrder returns the order by ID, or nil if it does not exist.
func (uc *OrderUseCases) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	uow, err := uc.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("usecase: begin: %w", err)
	}
	defer uow.Close(ctx)

	order, err := uow.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("usecase: load order: %w", err)
	}
	return order, nil
}

// ApplyProcessedCommand is the input to ApplyProcessed, built from a
// decoded order.processed event.
type ApplyProcessedCommand struct {
	OrderID    string
	Status     string // "success" | "failed"
	FailReason string // empty when Status == "success"
	Version    int
}

// ApplyProcessed consumes order.processed. It is a no-op when the event's
// key has already been applied, when the order does not exist, or when the
// incoming version does not move the order forward.
func (uc *OrderUseCases) ApplyProcessed(ctx context.Context, cmd ApplyProcessedCommand) (*domain.Order, error) {
	eventKey := inbox.Key(OrderProcessedEvent, cmd.OrderID, cmd.Version)

	uow, err := uc.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("usecase: begin: %w", err)
	}
	defer uow.Close(ctx)

	seen, err := uow.Inbox().Exists(ctx, eventKey)
	if err != nil {
		return nil, fmt.Errorf("usecase: check inbox: %w", err)
	}
	if seen {
		return nil, nil
	}

	order, err := uow.Orders().Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, fmt.Errorf("usecase: load order: %w", err)
	}
	if order == nil {
		// Order not found: drop without recording the inbox key. See
		// DESIGN.md "Open Questions" for why this cannot leak a replay in
		// this pipeline's actual event ordering.
		return nil, nil
	}

	if cmd.Version <= order.Version {
		return nil, nil
	}

	var failReason *string
	if cmd.Status != "success" {
		reason := cmd.FailReason
		failReason = &reason
	}

	if err := order.ApplyProcessed(cmd.Status, cmd.Version, failReason); err != nil {
		return nil, fmt.Errorf("usecase: apply processed: %w", err)
	}

	if err := uow.Orders().Put(ctx, order); err != nil {
		return nil, fmt.Errorf("usecase: store order: %w", err)
	}
	if err := uow.Inbox().Add(ctx, eventKey); err != nil {
		return nil, fmt.Errorf("usecase: record inbox key: %w", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("usecase: commit: %w", err)
	}

	return order, nil
}

func toItemPayloads(items []domain.ItemLine) []itemLinePayload {
	out := make([]itemLinePayload, len(items))
	for i, item := range items {
		out[i] = itemLinePayload{SKU: item.SKU, Quantity: item.Quantity, Price: item.Price}
	}
	return out
}
