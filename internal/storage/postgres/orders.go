package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/stepangreenberg/order-processor/internal/domain"
)

// orderRow mirrors the orders table; Items is stored as a JSON column and
// decoded into domain.ItemLine on read.
type orderRow struct {
	OrderID     string  `db:"order_id"`
	CustomerID  string  `db:"customer_id"`
	Items       []byte  `db:"items"`
	TotalAmount float64 `db:"total_amount"`
	Status      string  `db:"status"`
	Version     int     `db:"version"`
	FailReason  *string `db:"fail_reason"`
}

type orderRepo struct{ tx *sqlx.Tx }

func (r orderRepo) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	var row orderRow
	err := r.tx.GetContext(ctx, &row, `
		SELECT order_id, customer_id, items, total_amount, status, version, fail_reason
		FROM orders WHERE order_id = $1`, orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get order: %w", err)
	}

	var items []domain.ItemLine
	if err := json.Unmarshal(row.Items, &items); err != nil {
		return nil, fmt.Errorf("postgres: decode order items: %w", err)
	}

	return &domain.Order{
		OrderID:     row.OrderID,
		CustomerID:  row.CustomerID,
		Items:       items,
		TotalAmount: row.TotalAmount,
		Status:      row.Status,
		Version:     row.Version,
		FailReason:  row.FailReason,
	}, nil
}

func (r orderRepo) Put(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("postgres: encode order items: %w", err)
	}

	q, args, err := psql.Insert("orders").
		Columns("order_id", "customer_id", "items", "total_amount", "status", "version", "fail_reason").
		Values(order.OrderID, order.CustomerID, items, order.TotalAmount, order.Status, order.Version, order.FailReason).
		Suffix(`ON CONFLICT (order_id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			items = EXCLUDED.items,
			total_amount = EXCLUDED.total_amount,
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			fail_reason = EXCLUDED.fail_reason`).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build order upsert: %w", err)
	}

	if _, err := r.tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("postgres: upsert order: %w", err)
	}
	return nil
}
