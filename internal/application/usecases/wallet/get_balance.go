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
	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
	"github.com/Haleralex/fundflow/internal/pkg/metrics"
)

// GetBalanceUseCase reads a wallet balance. Entries inside the freshness
// window are served straight from the cache; everything else reads through
// to the authoritative store and refreshes the entry under a short lease.
//
// A fresh entry that reaches the store path and disagrees with it is an
// inconsistency signal: it is counted, logged and repaired, never trusted.
type GetBalanceUseCase struct {
	wallets ports.WalletRepository
	locks   ports.WalletLockManager
	cache   ports.BalanceCache
	logger  *slog.Logger

	freshness time.Duration
	repairTTL time.Duration
	now       func() time.Time
}

func NewGetBalanceUseCase(
	wallets ports.WalletRepository,
	locks ports.WalletLockManager,
	cache ports.BalanceCache,
	logger *slog.Logger,
	freshness time.Duration,
	now func() time.Time,
) *GetBalanceUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if freshness <= 0 {
		freshness = 60 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &GetBalanceUseCase{
		wallets:   wallets,
		locks:     locks,
		cache:     cache,
		logger:    logger,
		freshness: freshness,
		repairTTL: 5 * time.Second,
		now:       now,
	}
}

// Execute returns the wallet's balance.
func (uc *GetBalanceUseCase) Execute(ctx context.Context, userID, walletID uuid.UUID) (*dtos.BalanceDTO, error) {
	if dto := uc.serveFresh(ctx, userID, walletID); dto != nil {
		return dto, nil
	}

	wallet, err := uc.wallets.FindByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if !wallet.OwnedBy(userID) {
		return nil, domainErrors.NewNotFound("wallet not found")
	}

	uc.reconcileCache(ctx, wallet)

	return &dtos.BalanceDTO{Balance: wallet.Balance().Decimal()}, nil
}

// serveFresh answers from the cache when the entry is inside the freshness
// window and was written for this owner. Anything doubtful falls through to
// the store path.
func (uc *GetBalanceUseCase) serveFresh(ctx context.Context, userID, walletID uuid.UUID) *dtos.BalanceDTO {
	if uc.cache == nil {
		return nil
	}

	entry, err := uc.cache.Get(ctx, walletID)
	if err != nil {
		uc.logger.WarnContext(ctx, "balance cache read failed",
			slog.String("walletId", walletID.String()),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if entry == nil || entry.OwnerID != userID {
		return nil
	}
	if uc.now().Sub(entry.LastUpdated) > uc.freshness {
		return nil
	}

	currency, err := valueobjects.NewCurrency(entry.Currency)
	if err != nil {
		return nil
	}
	balance, err := valueobjects.NewMoneyFromCents(entry.Cents, currency)
	if err != nil {
		return nil
	}
	return &dtos.BalanceDTO{Balance: balance.Decimal()}
}

// reconcileCache compares the cache entry against the authoritative balance
// and repairs misses, stale entries and inconsistencies. Best-effort.
func (uc *GetBalanceUseCase) reconcileCache(ctx context.Context, w *entities.Wallet) {
	if uc.cache == nil {
		return
	}
	walletID := w.ID()
	storeCents := w.Balance().Cents()

	entry, err := uc.cache.Get(ctx, walletID)
	if err != nil {
		uc.logger.WarnContext(ctx, "balance cache read failed",
			slog.String("walletId", walletID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	if entry != nil && entry.Cents != storeCents && uc.now().Sub(entry.LastUpdated) <= uc.freshness {
		// A fresh entry should agree with the store. This points at a
		// writer bug or a lost cache bump; alert and repair.
		metrics.CacheInconsistenciesTotal.Inc()
		uc.logger.WarnContext(ctx, "balance cache inconsistency detected",
			slog.String("walletId", walletID.String()),
			slog.Int64("cachedCents", entry.Cents),
			slog.Int64("storeCents", storeCents),
			slog.Int64("version", entry.Version),
		)
	}

	uc.repair(ctx, w, entry)
}

// repair rewrites the entry from the store under a short lease. Skipped when
// the lease is contended: the active writer will bump the entry itself.
func (uc *GetBalanceUseCase) repair(ctx context.Context, w *entities.Wallet, entry *ports.CachedBalance) {
	if uc.locks == nil {
		return
	}
	walletID := w.ID()

	token, err := uc.locks.Acquire(ctx, walletID, uc.repairTTL, 0)
	if err != nil {
		return
	}
	defer func() {
		if err := uc.locks.Release(ctx, walletID, token); err != nil {
			uc.logger.WarnContext(ctx, "wallet lease release failed",
				slog.String("walletId", walletID.String()),
				slog.String("error", err.Error()),
			)
		}
	}()

	var version int64 = 1
	if entry != nil {
		version = entry.Version + 1
	}
	if err := uc.cache.Put(ctx, walletID, ports.CachedBalance{
		Cents:       w.Balance().Cents(),
		Version:     version,
		OwnerID:     w.UserID(),
		Currency:    w.Currency().Code(),
		LastUpdated: uc.now(),
	}); err != nil {
		uc.logger.WarnContext(ctx, "balance cache repair failed",
			slog.String("walletId", walletID.String()),
			slog.String("error", err.Error()),
		)
	}
}
