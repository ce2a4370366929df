// Package storage defines the persistence-gateway ports the use cases
// depend on: a scoped Unit of Work exposing the orders/states/outbox/inbox/
// dlq repositories, realized by internal/storage/postgres (production) and
// internal/storage/memory (tests) — the two-realization shape spec.md §9
// calls for.
package storage

import (
	"context"
	"time"

	"github.com/stepangreenberg/order-processor/internal/dlq"
	"github.com/stepangreenberg/order-processor/internal/domain"
	"github.com/stepangreenberg/order-processor/internal/outbox"
)

// OrderRepo is the Order Service's orders table gateway.
type OrderRepo interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	Put(ctx context.Context, order *domain.Order) error
}

// StateRepo is the Processor Service's processing_states table gateway.
type StateRepo interface {
	Get(ctx context.Context, orderID string) (*domain.ProcessingState, error)
	Upsert(ctx context.Context, state *domain.ProcessingState) error
}

// Outbox is the append/claim/mark gateway shared by both services.
type Outbox interface {
	Put(ctx context.Context, eventType string, payload []byte) error
	ClaimPending(ctx context.Context) ([]outbox.Entry, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	RecordFailure(ctx context.Context, id int64, at time.Time) error
	MoveToDLQ(ctx context.Context, id int64, reason string, at time.Time) error
	// DeletePublishedBefore removes rows published before cutoff, used by
	// the janitor's retention sweep.
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) error
}

// Inbox is the dedup gateway shared by both services.
type Inbox interface {
	Exists(ctx context.Context, eventKey string) (bool, error)
	Add(ctx context.Context, eventKey string) error
	// DeleteBefore removes dedup keys recorded before cutoff, used by the
	// janitor's retention sweep.
	DeleteBefore(ctx context.Context, cutoff time.Time) error
}

// DLQ is the append-only terminal sink, readable for operability.
type DLQ interface {
	List(ctx context.Context) ([]dlq.Entry, error)
}

// UnitOfWork bundles one or more repository operations into a single
// atomic commit. A scope that is never explicitly committed leaves the
// database unchanged when it exits (rollback-on-Close semantics).
type UnitOfWork interface {
	Orders() OrderRepo
	States() StateRepo
	Outbox() Outbox
	Inbox() Inbox
	DLQ() DLQ
	Commit(ctx context.Context) error
	Close(ctx context.Context) error
}

// UnitOfWorkFactory opens a new UnitOfWork scope. Implementations begin a
// transaction (Postgres) or take a mutex (in-memory) on Begin and release
// it on the returned UnitOfWork's Close — callers must always call Close,
// typically via defer, even after Commit (Close after Commit only releases
// the scope; the committed writes stay).
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
