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

// AddFundsUseCase deposits funds into a wallet.
//
// The mutation follows the locked write path: wallet lease, transactional
// expression update plus deposit row, then the cache bump after commit.
type AddFundsUseCase struct {
	wallets      ports.WalletRepository
	transactions ports.TransactionRepository
	uow          ports.UnitOfWork
	locks        ports.WalletLockManager
	cache        ports.BalanceCache
	publisher    ports.EventPublisher
	logger       *slog.Logger

	lockTTL  time.Duration
	lockWait time.Duration
}

func NewAddFundsUseCase(
	wallets ports.WalletRepository,
	transactions ports.TransactionRepository,
	uow ports.UnitOfWork,
	locks ports.WalletLockManager,
	cache ports.BalanceCache,
	publisher ports.EventPublisher,
	logger *slog.Logger,
	lockTTL, lockWait time.Duration,
) *AddFundsUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &AddFundsUseCase{
		wallets:      wallets,
		transactions: transactions,
		uow:          uow,
		locks:        locks,
		cache:        cache,
		publisher:    publisher,
		logger:       logger,
		lockTTL:      lockTTL,
		lockWait:     lockWait,
	}
}

// Execute deposits cmd.Amount into the wallet and records a completed
// deposit transaction. Returns the wallet with its new balance.
func (uc *AddFundsUseCase) Execute(ctx context.Context, cmd dtos.AddFundsCommand) (*dtos.WalletDTO, error) {
	userID, err := uuid.Parse(cmd.UserID)
	if err != nil {
		return nil, domainErrors.NewInvalidRequest("invalid_user_id", "userId must be a valid UUID")
	}
	walletID, err := uuid.Parse(cmd.WalletID)
	if err != nil {
		return nil, domainErrors.NewInvalidRequest("invalid_wallet_id", "walletId must be a valid UUID")
	}

	wallet, err := uc.wallets.FindByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if !wallet.OwnedBy(userID) {
		return nil, domainErrors.NewNotFound("wallet not found")
	}
	if !wallet.IsActive() {
		return nil, domainErrors.NewNotFound("wallet is not active")
	}

	amount, err := valueobjects.NewMoney(cmd.Amount, wallet.Currency())
	if err != nil {
		return nil, domainErrors.NewInvalidRequest("invalid_amount", err.Error())
	}
	if !amount.IsPositive() {
		return nil, domainErrors.NewInvalidRequest("invalid_amount", "amount must be positive")
	}

	token, err := uc.locks.Acquire(ctx, walletID, uc.lockTTL, uc.lockWait)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := uc.locks.Release(ctx, walletID, token); err != nil {
			uc.logger.WarnContext(ctx, "wallet lease release failed",
				slog.String("walletId", walletID.String()),
				slog.String("error", err.Error()),
			)
		}
	}()

	var (
		after   valueobjects.Money
		deposit *entities.Transaction
	)
	err = uc.uow.Execute(ctx, func(txCtx context.Context) error {
		before, newBalance, err := uc.wallets.AdjustBalance(txCtx, walletID, amount.Cents())
		if err != nil {
			return err
		}
		after = newBalance

		deposit, err = entities.NewDepositTransaction(walletID, amount, cmd.Description)
		if err != nil {
			return err
		}
		deposit.SnapshotDestinationBefore(before)
		deposit.SnapshotDestinationAfter(newBalance)

		return uc.transactions.Save(txCtx, deposit)
	})
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		BumpBalanceCache(ctx, uc.cache, uc.logger, wallet, after.Cents())
	}

	if uc.publisher != nil {
		if err := uc.publisher.Publish(ctx, events.NewWalletFundsAdded(walletID, amount, deposit.ID(), after)); err != nil {
			uc.logger.WarnContext(ctx, "funds added event publish failed",
				slog.String("walletId", walletID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	uc.logger.InfoContext(ctx, "funds added",
		slog.String("walletId", walletID.String()),
		slog.String("amount", amount.Decimal()),
		slog.String("transactionId", deposit.ID().String()),
	)

	if err := wallet.SetBalance(after); err != nil {
		return nil, err
	}
	return dtos.MapWalletToDTO(wallet), nil
}
