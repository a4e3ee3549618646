package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn inside a database transaction and hands the
// transaction to fn via tx. Repositories accept that handle on every method
// and fall back to the pool when it is nil.
//
// USAGE
// tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
// // call repositories with the same ctx and tx
// rec, err := payments.FindByReference(ctx, tx, ref)
// ...
// return err
// })
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
