// Package tx hands an open SQL transaction to the stores through context.
// The orchestrator's finalize step runs inside RunInTx, which puts the
// transaction in context; each store's execer then picks it up, so the
// extracted-data row, the verification result, and the terminal status
// commit or roll back together.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx returns a context carrying the transaction. Stores reached through
// this context write into it instead of the connection pool.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From reports the transaction carried by ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}
