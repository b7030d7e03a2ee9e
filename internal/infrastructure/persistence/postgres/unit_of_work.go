// Package postgres - UnitOfWork implementation for PostgreSQL.
//
// Unit of Work Pattern:
// - Manages transaction boundaries
// - Automatic ROLLBACK on error or panic
// - Automatic COMMIT on success
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/fundflow/internal/application/ports"
)

// Compile-time check
var _ ports.UnitOfWork = (*UnitOfWork)(nil)

// UnitOfWork implements ports.UnitOfWork over PostgreSQL transactions.
//
// Thread-safe: backed by the connection pool.
// Transaction isolation: READ COMMITTED by default.
type UnitOfWork struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

// NewUnitOfWork creates a UnitOfWork with the default isolation level.
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{
		pool: pool,
		opts: pgx.TxOptions{
			IsoLevel: pgx.ReadCommitted,
		},
	}
}

// NewUnitOfWorkWithIsolation creates a UnitOfWork with an explicit isolation
// level. Use pgx.Serializable for the strictest guarantees (expect retries on
// conflict).
func NewUnitOfWorkWithIsolation(pool *pgxpool.Pool, isolation pgx.TxIsoLevel) *UnitOfWork {
	return &UnitOfWork{
		pool: pool,
		opts: pgx.TxOptions{
			IsoLevel: isolation,
		},
	}
}

// Execute runs fn inside a transaction.
//
// Behavior:
// - Begins a transaction and injects it into the context
// - fn returns nil: COMMIT
// - fn returns error: ROLLBACK
// - panic: ROLLBACK + re-panic
//
// IMPORTANT: repositories inside fn must use the passed txCtx.
func (u *UnitOfWork) Execute(ctx context.Context, fn func(context.Context) error) error {
	// Already inside a transaction (PostgreSQL has no true nested
	// transactions, only savepoints) - just run the function.
	if hasTx(ctx) {
		return fn(ctx)
	}

	tx, err := u.pool.BeginTx(ctx, u.opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	txCtx := injectTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ExecuteWithRetry runs the transaction with automatic retry on
// serialization failures and connection-class errors.
// maxRetries is the number of additional attempts (0 = no retry).
func (u *UnitOfWork) ExecuteWithRetry(ctx context.Context, maxRetries int, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := u.Execute(ctx, fn)
		if err == nil {
			return nil
		}

		if !isRetryableError(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
