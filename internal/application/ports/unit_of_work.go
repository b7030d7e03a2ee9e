package ports

import "context"

// UnitOfWork manages transaction boundaries for the durable store.
//
// Usage:
//
//	err := uow.Execute(ctx, func(txCtx context.Context) error {
//	    // Repository calls inside fn must use txCtx
//	    return nil // COMMIT
//	    // return err // ROLLBACK
//	})
type UnitOfWork interface {
	// Execute runs fn inside a store transaction. A nil return commits;
	// an error (or panic) rolls back.
	Execute(ctx context.Context, fn func(txCtx context.Context) error) error
}
