package repository

import "context"

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a storage transaction and hands the
// backend-specific handle to repositories through tx.
//
// The concrete type of tx is infra-defined (pgx.Tx for Postgres, *sql.Tx for
// SQLite). Repositories MUST accept a nil tx and fall back to the pool.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
