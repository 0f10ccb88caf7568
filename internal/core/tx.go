package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers to run inside or outside a transaction.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Ledger operations must abort rather than queue indefinitely behind a lock;
// a blocked mutation surfaces as BusyError instead of deadlocking.
const lockWaitBound = "5s"

// beginTx opens a transaction with the ledger's bounded lock wait applied.
func beginTx(ctx context.Context, pool *pgxpool.Pool) (pgx.Tx, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%s'", lockWaitBound)); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to bound lock wait: %w", err)
	}
	return tx, nil
}
