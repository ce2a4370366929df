package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/stepangreenberg/order-processor/internal/domain"
)

type stateRow struct {
	OrderID      string `db:"order_id"`
	Version      int    `db:"version"`
	Status       string `db:"status"`
	AttemptCount int    `db:"attempt_count"`
	LastError    string `db:"last_error"`
}

type stateRepo struct{ tx *sqlx.Tx }

func (r stateRepo) Get(ctx context.Context, orderID string) (*domain.ProcessingState, error) {
	var row stateRow
	err := r.tx.GetContext(ctx, &row, `
		SELECT order_id, version, status, attempt_count, last_error
		FROM processing_states WHERE order_id = $1`, orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get processing state: %w", err)
	}

	return &domain.ProcessingState{
		OrderID:      row.OrderID,
		Version:      row.Version,
		Status:       row.Status,
		AttemptCount: row.AttemptCount,
		LastError:    row.LastError,
	}, nil
}

func (r stateRepo) Upsert(ctx context.Context, state *domain.ProcessingState) error {
	q, args, err := psql.Insert("processing_states").
		Columns("order_id", "version", "status", "attempt_count", "last_error").
		Values(state.OrderID, state.Version, state.Status, state.AttemptCount, state.LastError).
		Suffix(`ON CONFLICT (order_id) DO UPDATE SET
			version = EXCLUDED.version,
			status = EXCLUDED.status,
			attempt_count = EXCLUDED.attempt_count,
			last_error = EXCLUDED.last_error`).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build state upsert: %w", err)
	}

	if _, err := r.tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("postgres: upsert processing state: %w", err)
	}
	return nil
}
