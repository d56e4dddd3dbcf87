// Package sqlite is the single-file store used for local runs and tests.
// It implements the same repository ports as the Postgres store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/ports/repository"
)

// Open opens (or creates) the database file and applies the schema.
// Writers are serialized through one connection; BEGIN IMMEDIATE takes the
// write lock up front so a transaction's reads are as good as row locks.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id                 TEXT PRIMARY KEY,
		email              TEXT NOT NULL UNIQUE,
		name               TEXT NOT NULL,
		password_hash      TEXT NOT NULL,
		is_premium         INTEGER NOT NULL DEFAULT 0,
		premium_until      INTEGER,
		premium_granted_at INTEGER,
		demo_tasks_used    INTEGER NOT NULL DEFAULT 0 CHECK (demo_tasks_used >= 0),
		demo_claim_until   INTEGER,
		customer_ref       TEXT UNIQUE,
		created_at         INTEGER NOT NULL,
		updated_at         INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS usage_events (
		id         TEXT PRIMARY KEY,
		account_id TEXT REFERENCES accounts (id) ON DELETE SET NULL,
		task_type  TEXT NOT NULL,
		task_mode  TEXT NOT NULL,
		is_demo    INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_events_account ON usage_events (account_id)`,
	`CREATE TABLE IF NOT EXISTS payment_events (
		id                  TEXT PRIMARY KEY,
		account_id          TEXT,
		external_payment_id TEXT NOT NULL UNIQUE,
		amount              INTEGER NOT NULL DEFAULT 0,
		currency            TEXT NOT NULL DEFAULT '',
		status              TEXT NOT NULL,
		plan_type           TEXT NOT NULL,
		created_at          INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_events_account ON payment_events (account_id, created_at)`,
}

func Migrate(ctx context.Context, db *sql.DB) error {
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

var _ repository.TransactionManager = (*TxManager)(nil)

type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager { return &TxManager{db: db} }

// WithTx passes a *sql.Tx to fn; an error from fn rolls back.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getExecutor(db *sql.DB, tx repository.Tx) (executor, error) {
	switch v := tx.(type) {
	case *sql.Tx:
		return v, nil
	case nil:
		if db != nil {
			return db, nil
		}
		return nil, domain.ErrInvalidArgument
	default:
		return nil, domain.ErrInvalidExecContext
	}
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && (se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// Timestamps are stored as unix nanoseconds.

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func toNullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}
