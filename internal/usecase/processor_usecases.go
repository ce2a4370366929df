package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/stepangreenberg/order-processor/internal/domain"
	"github.com/stepangreenberg/order-processor/internal/inbox"
	"github.com/stepangreenberg/order-processor/internal/storage"
)

// ProcessorUseCases implements HandleOrderCreated for the Processor
// Service.
type ProcessorUseCases struct {
	uowFactory storage.UnitOfWorkFactory
	rnd        func() float64
}

// NewProcessorUseCases constructs the Processor Service's use-case layer.
// Production callers leave rnd nil to get math/rand.Float64; tests inject a
// deterministic source per spec.md §4.2.
func NewProcessorUseCases(uowFactory storage.UnitOfWorkFactory, rnd func() float64) *ProcessorUseCases {
	if rnd == nil {
		rnd = rand.Float64
	}
	return &ProcessorUseCases{uowFactory: uowFactory, rnd: rnd}
}

// HandleOrderCreatedCommand is the input to HandleOrderCreated, built from
// a decoded order.created event.
type HandleOrderCreatedCommand struct {
	OrderID string
	Items   []string
	Amount  float64
	Version int
}

// HandleOrderCreated consumes order.created, applies the domain processing
// rules, and — unless the event is a stale-version replay — enqueues an
// order.processed event in the same transaction.
func (uc *ProcessorUseCases) HandleOrderCreated(ctx context.Context, cmd HandleOrderCreatedCommand) (*domain.ProcessingResult, error) {
	eventKey := inbox.Key(OrderCreatedEvent, cmd.OrderID, cmd.Version)

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

	state, err := uow.States().Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, fmt.Errorf("usecase: load processing state: %w", err)
	}
	if state == nil {
		state = domain.NewProcessingState(cmd.OrderID)
	}

	result := state.ApplyOrderCreated(cmd.Items, cmd.Amount, cmd.Version, uc.rnd)

	if result.Status == domain.ResultIgnored {
		// Stale replay: record the inbox key so future replays are cheap,
		// but emit nothing — no state changed.
		if err := uow.Inbox().Add(ctx, eventKey); err != nil {
			return nil, fmt.Errorf("usecase: record inbox key: %w", err)
		}
		if err := uow.Commit(ctx); err != nil {
			return nil, fmt.Errorf("usecase: commit: %w", err)
		}
		return &result, nil
	}

	if err := uow.States().Upsert(ctx, state); err != nil {
		return nil, fmt.Errorf("usecase: store processing state: %w", err)
	}
	if err := uow.Inbox().Add(ctx, eventKey); err != nil {
		return nil, fmt.Errorf("usecase: record inbox key: %w", err)
	}

	var reason *string
	if result.Reason != "" {
		r := result.Reason
		reason = &r
	}
	payload, err := json.Marshal(orderProcessedPayload{
		OrderID: cmd.OrderID,
		Status:  result.Status,
		Reason:  reason,
		Version: state.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("usecase: marshal order.processed payload: %w", err)
	}
	if err := uow.Outbox().Put(ctx, OrderProcessedEvent, payload); err != nil {
		return nil, fmt.Errorf("usecase: enqueue order.processed: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("usecase: commit: %w", err)
	}

	return &result, nil
}
