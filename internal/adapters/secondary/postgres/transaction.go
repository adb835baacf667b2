package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// ErrNoTransaction is returned by statements that only make sense inside
// WithTransaction, such as the assignment lock.
var ErrNoTransaction = errors.New("operation requires a transaction")

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txContextKey struct{}

// ContextWithTx stores tx so repositories called with ctx join it.
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok
}

// GetDBTX picks the open transaction from ctx, or the pool outside one.
func GetDBTX(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return pool
}

// TransactionManager runs ticket creation (technician pick plus insert) as
// one read-committed unit.
type TransactionManager struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

var _ ports.TransactionManager = (*TransactionManager)(nil)

func NewTransactionManager(pool *pgxpool.Pool) ports.TransactionManager {
	return &TransactionManager{pool: pool, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
}

// WithTransaction commits when fn returns nil and rolls back otherwise,
// including on panic. A call inside an open transaction joins it.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := TxFromContext(ctx); nested {
		return fn(ctx)
	}

	return pgx.BeginTxFunc(ctx, tm.pool, tm.opts, func(tx pgx.Tx) error {
		return fn(ContextWithTx(ctx, tx))
	})
}
