package repository

import "context"

// Tx is an opaque transaction handle. Its concrete type is infra-defined
// (pgx.Tx for Postgres, *sql.Tx for SQLite). Repositories MUST accept nil as
// the non-transactional path.
type Tx interface{}

var NoTX Tx

// TransactionManager executes fn inside one database transaction, passing the
// handle through tx. An error from fn rolls back; nil commits.
//
//	tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
//		acc, err := accounts.FindByIDForUpdate(ctx, tx, id)
//		...
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
