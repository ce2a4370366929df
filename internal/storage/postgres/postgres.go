// Package postgres is the production realization of the storage ports:
// database/sql + github.com/lib/pq as the driver (kept from the teacher
// repo), github.com/jmoiron/sqlx for struct scanning, and
// github.com/Masterminds/squirrel for building the upsert/insert statements
// (the outbox claim query is plain SQL).
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/stepangreenberg/order-processor/internal/storage"
)

// psql is the squirrel statement builder configured for Postgres's $N
// placeholder style.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// operationTimeout caps how long a single Unit of Work transaction can stay
// open: Begin binds the transaction to a context with this deadline, and
// database/sql rolls the transaction back once it expires. It is kept
// tighter than the HTTP server's own write timeout so a handler can return
// a clean 500 before the client's connection times out, the same
// reasoning the teacher repo's internal/database/db.go uses.
const operationTimeout = 5 * time.Second

// DB wraps a sqlx-backed connection pool.
type DB struct {
	conn *sqlx.DB
}

// Connect opens and verifies a Postgres connection.
func Connect(dsn string) (*DB, error) {
	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Exec runs a raw statement outside any Unit of Work scope — used to apply
// schema DDL (see migrations/) in integration tests and operator scripts,
// never from application code paths.
func (db *DB) Exec(ctx context.Context, query string) error {
	_, err := db.conn.ExecContext(ctx, query)
	return err
}

// Begin starts a transaction and returns a Unit of Work scoped to it. The
// transaction is rolled back on Close unless Commit was already called —
// "a scope that exits without commit() leaves the database unchanged"
// (spec.md §4.3).
func (db *DB) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	return &unitOfWork{tx: tx, cancel: cancel}, nil
}

type unitOfWork struct {
	tx        *sqlx.Tx
	cancel    context.CancelFunc
	committed bool
}

func (u *unitOfWork) Orders() storage.OrderRepo { return orderRepo{u.tx} }
func (u *unitOfWork) States() storage.StateRepo { return stateRepo{u.tx} }
func (u *unitOfWork) Outbox() storage.Outbox    { return outboxRepo{u.tx} }
func (u *unitOfWork) Inbox() storage.Inbox      { return inboxRepo{u.tx} }
func (u *unitOfWork) DLQ() storage.DLQ          { return dlqRepo{u.tx} }

func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	u.committed = true
	return nil
}

func (u *unitOfWork) Close(ctx context.Context) error {
	defer u.cancel()
	if u.committed {
		return nil
	}
	if err := u.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}
