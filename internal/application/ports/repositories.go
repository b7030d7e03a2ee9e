// Package ports defines interfaces (ports) for external dependencies.
// These interfaces are implemented in the Infrastructure Layer.
//
// Pattern: Repository Pattern + Ports & Adapters (Hexagonal Architecture)
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/Haleralex/fundflow/internal/domain/entities"
	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
)

// WalletRepository defines the persistence contract for wallets.
//
// Balance mutations go through the expression-based methods so that the store
// applies `balance = balance + delta` atomically instead of read-modify-write.
type WalletRepository interface {
	// Save inserts a new wallet.
	Save(ctx context.Context, wallet *entities.Wallet) error

	// FindByID loads a wallet by ID. Returns a not-found error when missing.
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)

	// AdjustBalance applies an expression update `balance = balance + delta`
	// and returns the balances before and after. deltaCents may be negative;
	// a debit that would push the balance below zero affects no row and
	// returns an insufficient-balance error. Only active wallets are touched.
	AdjustBalance(ctx context.Context, id uuid.UUID, deltaCents int64) (before, after valueobjects.Money, err error)

	// SetBalance writes an absolute balance. Used by the mutation layer's
	// internal atomic update path.
	SetBalance(ctx context.Context, id uuid.UUID, balanceCents int64) error
}

// TransactionRepository defines the persistence contract for transactions.
type TransactionRepository interface {
	// Save inserts a transaction. Violating the idempotency-key unique index
	// surfaces as a conflict error.
	Save(ctx context.Context, tx *entities.Transaction) error

	// Update persists the mutable fields of an existing transaction
	// (status, sub-state, saga state, snapshots, error detail).
	Update(ctx context.Context, tx *entities.Transaction) error

	// FindByID loads a transaction by ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error)

	// FindByIdempotencyKey finds the transaction for an idempotency key.
	// Critical for duplicate prevention.
	FindByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error)
}

// LimitRepository defines the persistence contract for per-user limit ledgers.
type LimitRepository interface {
	// Save upserts a ledger (unique on user_id).
	Save(ctx context.Context, ledger *entities.LimitLedger) error

	// FindByUserID loads the ledger for a user.
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entities.LimitLedger, error)
}
