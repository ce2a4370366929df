package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stepangreenberg/order-processor/internal/outbox"
)

type outboxRow struct {
	ID          int64      `db:"id"`
	EventType   string     `db:"event_type"`
	Payload     []byte     `db:"payload"`
	PublishedAt *time.Time `db:"published_at"`
	RetryCount  int        `db:"retry_count"`
	LastRetryAt *time.Time `db:"last_retry_at"`
}

type outboxRepo struct{ tx *sqlx.Tx }

func (r outboxRepo) Put(ctx context.Context, eventType string, payload []byte) error {
	q, args, err := psql.Insert("outbox").
		Columns("event_type", "payload").
		Values(eventType, payload).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build outbox insert: %w", err)
	}
	if _, err := r.tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("postgres: insert outbox row: %w", err)
	}
	return nil
}

// ClaimPending returns unpublished rows ordered by id ascending, skipping
// rows another concurrent publisher already has locked — this is what lets
// the publisher poll loop run more than one replica safely without a
// dedicated queue table.
func (r outboxRepo) ClaimPending(ctx context.Context) ([]outbox.Entry, error) {
	var rows []outboxRow
	err := r.tx.SelectContext(ctx, &rows, `
		SELECT id, event_type, payload, published_at, retry_count, last_retry_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY id ASC
		FOR UPDATE SKIP LOCKED`)
	if err != nil {
		return nil, fmt.Errorf("postgres: claim outbox rows: %w", err)
	}

	out := make([]outbox.Entry, len(rows))
	for i, row := range rows {
		out[i] = outbox.Entry{
			ID:          row.ID,
			EventType:   row.EventType,
			Payload:     row.Payload,
			PublishedAt: row.PublishedAt,
			RetryCount:  row.RetryCount,
			LastRetryAt: row.LastRetryAt,
		}
	}
	return out, nil
}

func (r outboxRepo) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	_, err := r.tx.ExecContext(ctx, `UPDATE outbox SET published_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("postgres: mark outbox published: %w", err)
	}
	return nil
}

func (r outboxRepo) RecordFailure(ctx context.Context, id int64, at time.Time) error {
	_, err := r.tx.ExecContext(ctx, `
		UPDATE outbox SET retry_count = retry_count + 1, last_retry_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("postgres: record outbox failure: %w", err)
	}
	return nil
}

func (r outboxRepo) MoveToDLQ(ctx context.Context, id int64, reason string, at time.Time) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO dead_letter_queue (id, original_event_type, payload, retry_count, last_retry_at, failure_reason, moved_to_dlq_at)
		SELECT id, event_type, payload, retry_count, last_retry_at, $2, $3 FROM outbox WHERE id = $1`,
		id, reason, at)
	if err != nil {
		return fmt.Errorf("postgres: insert dlq row: %w", err)
	}

	if _, err := r.tx.ExecContext(ctx, `DELETE FROM outbox WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete retired outbox row: %w", err)
	}
	return nil
}

func (r outboxRepo) DeletePublishedBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("postgres: sweep published outbox rows: %w", err)
	}
	return nil
}
