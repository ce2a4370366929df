// Package memory is the in-memory realization of the storage ports, used by
// domain/usecase unit tests so they never need a real Postgres instance.
// A single mutex guards the whole store and doubles as the Unit of Work's
// transaction: Begin takes the lock, Close releases it, matching the
// "scoped session with guaranteed release on every exit path" contract of
// spec.md §4.3.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/stepangreenberg/order-processor/internal/dlq"
	"github.com/stepangreenberg/order-processor/internal/domain"
	"github.com/stepangreenberg/order-processor/internal/outbox"
	"github.com/stepangreenberg/order-processor/internal/storage"
)

// Store is the shared in-memory backing for every repository. It is safe
// for concurrent use across multiple Begin calls; only one Unit of Work can
// be mid-flight at a time (mu is held from Begin to Close), matching the
// single-writer-per-aggregate assumption spec.md §4.3 describes.
type Store struct {
	mu sync.Mutex

	orders map[string]domain.Order
	states map[string]domain.ProcessingState
	inbox  map[string]time.Time
	outbox []outbox.Entry
	dlq    []dlq.Entry
	nextID int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		orders: make(map[string]domain.Order),
		states: make(map[string]domain.ProcessingState),
		inbox:  make(map[string]time.Time),
		nextID: 1,
	}
}

// Begin acquires the store's lock and returns a Unit of Work over it.
// Close releases the lock whether or not Commit was called. This in-memory
// store does not implement rollback: writes made within a scope stay in
// place even when the scope closes without Commit, so callers must structure use cases (as this repo
// does) to only mutate state after every validation has already passed.
func (s *Store) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	s.mu.Lock()
	return &unitOfWork{store: s}, nil
}

type unitOfWork struct {
	store     *Store
	committed bool
}

func (u *unitOfWork) Orders() storage.OrderRepo { return orderRepo{u.store} }
func (u *unitOfWork) States() storage.StateRepo { return stateRepo{u.store} }
func (u *unitOfWork) Outbox() storage.Outbox    { return outboxRepo{u.store} }
func (u *unitOfWork) Inbox() storage.Inbox      { return inboxRepo{u.store} }
func (u *unitOfWork) DLQ() storage.DLQ          { return dlqRepo{u.store} }

func (u *unitOfWork) Commit(ctx context.Context) error {
	u.committed = true
	return nil
}

func (u *unitOfWork) Close(ctx context.Context) error {
	u.store.mu.Unlock()
	return nil
}

type orderRepo struct{ store *Store }

func (r orderRepo) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	o, ok := r.store.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := o
	cp.Items = append([]domain.ItemLine(nil), o.Items...)
	return &cp, nil
}

func (r orderRepo) Put(ctx context.Context, order *domain.Order) error {
	cp := *order
	cp.Items = append([]domain.ItemLine(nil), order.Items...)
	r.store.orders[order.OrderID] = cp
	return nil
}

type stateRepo struct{ store *Store }

func (r stateRepo) Get(ctx context.Context, orderID string) (*domain.ProcessingState, error) {
	s, ok := r.store.states[orderID]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

func (r stateRepo) Upsert(ctx context.Context, state *domain.ProcessingState) error {
	r.store.states[state.OrderID] = *state
	return nil
}

type outboxRepo struct{ store *Store }

func (r outboxRepo) Put(ctx context.Context, eventType string, payload []byte) error {
	id := r.store.nextID
	r.store.nextID++
	r.store.outbox = append(r.store.outbox, outbox.Entry{
		ID:        id,
		EventType: eventType,
		Payload:   append([]byte(nil), payload...),
	})
	return nil
}

func (r outboxRepo) ClaimPending(ctx context.Context) ([]outbox.Entry, error) {
	var pending []outbox.Entry
	for _, e := range r.store.outbox {
		if e.PublishedAt == nil {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

func (r outboxRepo) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	for i := range r.store.outbox {
		if r.store.outbox[i].ID == id {
			r.store.outbox[i].PublishedAt = &at
			return nil
		}
	}
	return nil
}

func (r outboxRepo) RecordFailure(ctx context.Context, id int64, at time.Time) error {
	for i := range r.store.outbox {
		if r.store.outbox[i].ID == id {
			r.store.outbox[i].RetryCount++
			r.store.outbox[i].LastRetryAt = &at
			return nil
		}
	}
	return nil
}

func (r outboxRepo) MoveToDLQ(ctx context.Context, id int64, reason string, at time.Time) error {
	kept := r.store.outbox[:0]
	for _, e := range r.store.outbox {
		if e.ID == id {
			r.store.dlq = append(r.store.dlq, dlq.Entry{
				ID:                id,
				OriginalEventType: e.EventType,
				Payload:           e.Payload,
				RetryCount:        e.RetryCount,
				LastRetryAt:       e.LastRetryAt,
				FailureReason:     reason,
				MovedToDLQAt:      at,
			})
			continue
		}
		kept = append(kept, e)
	}
	r.store.outbox = kept
	return nil
}

func (r outboxRepo) DeletePublishedBefore(ctx context.Context, cutoff time.Time) error {
	kept := r.store.outbox[:0]
	for _, e := range r.store.outbox {
		if e.PublishedAt != nil && e.PublishedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	r.store.outbox = kept
	return nil
}

type inboxRepo struct{ store *Store }

func (r inboxRepo) Exists(ctx context.Context, eventKey string) (bool, error) {
	_, ok := r.store.inbox[eventKey]
	return ok, nil
}

func (r inboxRepo) Add(ctx context.Context, eventKey string) error {
	r.store.inbox[eventKey] = time.Now()
	return nil
}

func (r inboxRepo) DeleteBefore(ctx context.Context, cutoff time.Time) error {
	for key, recordedAt := range r.store.inbox {
		if recordedAt.Before(cutoff) {
			delete(r.store.inbox, key)
		}
	}
	return nil
}

type dlqRepo struct{ store *Store }

func (r dlqRepo) List(ctx context.Context) ([]dlq.Entry, error) {
	out := make([]dlq.Entry, len(r.store.dlq))
	copy(out, r.store.dlq)
	return out, nil
}
