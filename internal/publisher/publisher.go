// Package publisher runs the outbox poll loop: claim unpublished rows,
// attempt to publish each to the broker, and record success, a retry, or a
// move to the dead-letter queue. It is the only writer of published_at.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/stepangreenberg/order-processor/internal/broker"
	"github.com/stepangreenberg/order-processor/internal/metrics"
	"github.com/stepangreenberg/order-processor/internal/outbox"
	"github.com/stepangreenberg/order-processor/internal/storage"
)

// PollInterval is how often the publisher checks the outbox for pending
// rows.
const PollInterval = 5 * time.Second

// sender is the narrow slice of broker.Conn the poll loop needs, so tests
// can substitute a fake without a real AMQP dial.
type sender interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
	Close()
}

// Publisher polls one Unit of Work factory's outbox and publishes ready
// rows onto a broker connection.
type Publisher struct {
	uowFactory storage.UnitOfWorkFactory
	brokerURL  string
	log        *slog.Logger
	dial       func(ctx context.Context, url string) (sender, error)
}

// New constructs a Publisher. brokerURL is re-dialed at most once per poll
// tick rather than held open for the process lifetime, so a broker restart
// between ticks never requires this service to restart too.
func New(uowFactory storage.UnitOfWorkFactory, brokerURL string, log *slog.Logger) *Publisher {
	return &Publisher{
		uowFactory: uowFactory,
		brokerURL:  brokerURL,
		log:        log.With("component", "publisher"),
		dial: func(ctx context.Context, url string) (sender, error) {
			return broker.Dial(ctx, url)
		},
	}
}

// Run blocks, polling every PollInterval until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.tick(ctx); err != nil {
				p.log.Error("publish tick failed", "error", err)
			}
		}
	}
}

func (p *Publisher) tick(ctx context.Context) error {
	uow, err := p.uowFactory.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Close(ctx)

	pending, err := uow.Outbox().ClaimPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return uow.Commit(ctx)
	}

	// The broker is dialed on the first row that is actually attempted, so a
	// tick that only retires rows never connects.
	var conn sender
	var dialErr error
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	now := time.Now()
	for _, entry := range pending {
		// A row already at budget is retired unconditionally — the publisher
		// never contacts the broker for a retired row, backoff window or not.
		if !outbox.ShouldRetry(entry.RetryCount) {
			if err := uow.Outbox().MoveToDLQ(ctx, entry.ID, outbox.FailureReason, now); err != nil {
				return err
			}
			metrics.OutboxDeadLetteredTotal.WithLabelValues(entry.EventType).Inc()
			p.log.Error("outbox row retired to dlq", "outbox_id", entry.ID, "event_type", entry.EventType)
			continue
		}

		if !outbox.ReadyToAttempt(entry.RetryCount, entry.LastRetryAt, now) {
			continue
		}

		if conn == nil && dialErr == nil {
			if conn, dialErr = p.dial(ctx, p.brokerURL); dialErr != nil {
				conn = nil
			}
		}
		err := dialErr
		if conn != nil {
			err = conn.Publish(ctx, entry.EventType, entry.Payload)
		}
		if err != nil {
			p.log.Warn("publish attempt failed", "event_type", entry.EventType, "outbox_id", entry.ID, "error", err)
			if err := uow.Outbox().RecordFailure(ctx, entry.ID, now); err != nil {
				return err
			}
			if !outbox.ShouldRetry(entry.RetryCount + 1) {
				if err := uow.Outbox().MoveToDLQ(ctx, entry.ID, outbox.FailureReason, now); err != nil {
					return err
				}
				metrics.OutboxDeadLetteredTotal.WithLabelValues(entry.EventType).Inc()
				p.log.Error("outbox row retired to dlq", "outbox_id", entry.ID, "event_type", entry.EventType)
				continue
			}
			metrics.OutboxRetriedTotal.WithLabelValues(entry.EventType).Inc()
			continue
		}

		if err := uow.Outbox().MarkPublished(ctx, entry.ID, now); err != nil {
			return err
		}
		metrics.OutboxPublishedTotal.WithLabelValues(entry.EventType).Inc()
	}

	return uow.Commit(ctx)
}
