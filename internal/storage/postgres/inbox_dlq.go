package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stepangreenberg/order-processor/internal/dlq"
)

type inboxRepo struct{ tx *sqlx.Tx }

func (r inboxRepo) Exists(ctx context.Context, eventKey string) (bool, error) {
	var exists bool
	err := r.tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM processed_inbox WHERE event_key = $1)`, eventKey)
	if err != nil {
		return false, fmt.Errorf("postgres: check inbox: %w", err)
	}
	return exists, nil
}

func (r inboxRepo) Add(ctx context.Context, eventKey string) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO processed_inbox (event_key) VALUES ($1) ON CONFLICT DO NOTHING`, eventKey)
	if err != nil {
		return fmt.Errorf("postgres: record inbox key: %w", err)
	}
	return nil
}

func (r inboxRepo) DeleteBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM processed_inbox WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("postgres: sweep processed_inbox: %w", err)
	}
	return nil
}

type dlqRow struct {
	ID                int64          `db:"id"`
	OriginalEventType string         `db:"original_event_type"`
	Payload           []byte         `db:"payload"`
	RetryCount        int            `db:"retry_count"`
	LastRetryAt       sql.NullTime   `db:"last_retry_at"`
	FailureReason     string         `db:"failure_reason"`
	MovedToDLQAt      sql.NullTime   `db:"moved_to_dlq_at"`
}

type dlqRepo struct{ tx *sqlx.Tx }

func (r dlqRepo) List(ctx context.Context) ([]dlq.Entry, error) {
	var rows []dlqRow
	err := r.tx.SelectContext(ctx, &rows, `
		SELECT id, original_event_type, payload, retry_count, last_retry_at, failure_reason, moved_to_dlq_at
		FROM dead_letter_queue ORDER BY moved_to_dlq_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list dlq: %w", err)
	}

	out := make([]dlq.Entry, len(rows))
	for i, row := range rows {
		e := dlq.Entry{
			ID:                row.ID,
			OriginalEventType: row.OriginalEventType,
			Payload:           row.Payload,
			RetryCount:        row.RetryCount,
			FailureReason:     row.FailureReason,
		}
		if row.LastRetryAt.Valid {
			t := row.LastRetryAt.Time
			e.LastRetryAt = &t
		}
		if row.MovedToDLQAt.Valid {
			e.MovedToDLQAt = row.MovedToDLQAt.Time
		}
		out[i] = e
	}
	return out, nil
}
