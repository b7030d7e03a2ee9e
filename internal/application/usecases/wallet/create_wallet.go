// Package wallet implements wallet lifecycle and balance use cases.
package wallet

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/fundflow/internal/application/dtos"
	"github.com/Haleralex/fundflow/internal/application/ports"
	"github.com/Haleralex/fundflow/internal/domain/entities"
	domainErrors "github.com/Haleralex/fundflow/internal/domain/errors"
	"github.com/Haleralex/fundflow/internal/domain/events"
	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
)

// CreateWalletUseCase creates wallets.
type CreateWalletUseCase struct {
	wallets   ports.WalletRepository
	cache     ports.BalanceCache
	publisher ports.EventPublisher
	logger    *slog.Logger
}

func NewCreateWalletUseCase(
	wallets ports.WalletRepository,
	cache ports.BalanceCache,
	publisher ports.EventPublisher,
	logger *slog.Logger,
) *CreateWalletUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateWalletUseCase{
		wallets:   wallets,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// Execute creates a wallet with zero balance and primes its cache entry.
func (uc *CreateWalletUseCase) Execute(ctx context.Context, cmd dtos.CreateWalletCommand) (*dtos.WalletDTO, error) {
	userID, err := uuid.Parse(cmd.UserID)
	if err != nil {
		return nil, domainErrors.NewInvalidRequest("invalid_user_id", "userId must be a valid UUID")
	}

	currency, err := valueobjects.NewCurrency(cmd.Currency)
	if err != nil {
		return nil, domainErrors.NewInvalidRequest("invalid_currency", err.Error())
	}

	wallet, err := entities.NewWallet(userID, cmd.Name, currency)
	if err != nil {
		return nil, err
	}

	if err := uc.wallets.Save(ctx, wallet); err != nil {
		return nil, err
	}

	// Prime the cache so the first balance read is a hit. Best-effort.
	if uc.cache != nil {
		if err := uc.cache.Put(ctx, wallet.ID(), ports.CachedBalance{
			Cents:       0,
			Version:     1,
			OwnerID:     wallet.UserID(),
			Currency:    wallet.Currency().Code(),
			LastUpdated: time.Now(),
		}); err != nil {
			uc.logger.WarnContext(ctx, "balance cache prime failed",
				slog.String("walletId", wallet.ID().String()),
				slog.String("error", err.Error()),
			)
		}
	}

	if uc.publisher != nil {
		if err := uc.publisher.Publish(ctx, events.NewWalletCreated(wallet.ID(), userID, currency)); err != nil {
			uc.logger.WarnContext(ctx, "wallet created event publish failed",
				slog.String("walletId", wallet.ID().String()),
				slog.String("error", err.Error()),
			)
		}
	}

	uc.logger.InfoContext(ctx, "wallet created",
		slog.String("walletId", wallet.ID().String()),
		slog.String("userId", userID.String()),
		slog.String("currency", currency.Code()),
	)

	return dtos.MapWalletToDTO(wallet), nil
}
