package transfer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Haleralex/fundflow/internal/application/dtos"
	"github.com/Haleralex/fundflow/internal/application/ports"
	domainErrors "github.com/Haleralex/fundflow/internal/domain/errors"
)

// FindByIdempotencyKeyUseCase answers "has this key been used, and for what".
type FindByIdempotencyKeyUseCase struct {
	transactions ports.TransactionRepository
	wallets      ports.WalletRepository
	logger       *slog.Logger
}

func NewFindByIdempotencyKeyUseCase(
	transactions ports.TransactionRepository,
	wallets ports.WalletRepository,
	logger *slog.Logger,
) *FindByIdempotencyKeyUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &FindByIdempotencyKeyUseCase{
		transactions: transactions,
		wallets:      wallets,
		logger:       logger,
	}
}

// Execute looks up the transaction behind an idempotency key. Keys used by
// other users answer "not used" rather than leaking the transaction.
func (uc *FindByIdempotencyKeyUseCase) Execute(ctx context.Context, userID uuid.UUID, key string) (*dtos.IdempotencyLookupDTO, error) {
	if key == "" {
		return nil, domainErrors.NewInvalidRequest("invalid_idempotency_key", "idempotency key is required")
	}

	tx, err := uc.transactions.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			return &dtos.IdempotencyLookupDTO{Exists: false}, nil
		}
		return nil, err
	}

	owned, err := uc.ownedBy(ctx, tx.SourceWalletID(), tx.DestinationWalletID(), userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return &dtos.IdempotencyLookupDTO{Exists: false}, nil
	}

	return &dtos.IdempotencyLookupDTO{
		Exists:      true,
		Transaction: dtos.MapTransactionToDTO(tx),
	}, nil
}

// ownedBy reports whether the user owns either side of the transaction.
func (uc *FindByIdempotencyKeyUseCase) ownedBy(ctx context.Context, sourceID, destinationID *uuid.UUID, userID uuid.UUID) (bool, error) {
	for _, walletID := range []*uuid.UUID{sourceID, destinationID} {
		if walletID == nil {
			continue
		}
		w, err := uc.wallets.FindByID(ctx, *walletID)
		if err != nil {
			if domainErrors.IsNotFound(err) {
				continue
			}
			return false, err
		}
		if w.OwnedBy(userID) {
			return true, nil
		}
	}
	return false, nil
}
