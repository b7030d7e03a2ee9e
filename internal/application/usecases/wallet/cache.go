package wallet

import (
	"context"
	"log/slog"
	"time"

	"github.com/Haleralex/fundflow/internal/application/ports"
	"github.com/Haleralex/fundflow/internal/domain/entities"
)

// BumpBalanceCache advances the versioned cache entry for a wallet after a
// committed balance change. Callers must hold the wallet lease.
//
// The version check guards against a writer that outlived its lease TTL: if
// the entry moved underneath us, the stale write is dropped and the entry
// invalidated so the next read re-primes from the store.
func BumpBalanceCache(ctx context.Context, cache ports.BalanceCache, logger *slog.Logger, w *entities.Wallet, balanceCents int64) {
	walletID := w.ID()
	entry, err := cache.Get(ctx, walletID)
	if err != nil {
		logger.WarnContext(ctx, "balance cache read failed",
			slog.String("walletId", walletID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	var expected int64
	if entry != nil {
		expected = entry.Version
	}

	swapped, err := cache.CompareAndSwap(ctx, walletID, expected, ports.CachedBalance{
		Cents:       balanceCents,
		Version:     expected + 1,
		OwnerID:     w.UserID(),
		Currency:    w.Currency().Code(),
		LastUpdated: time.Now(),
	})
	if err != nil {
		logger.WarnContext(ctx, "balance cache update failed",
			slog.String("walletId", walletID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if !swapped {
		if err := cache.Invalidate(ctx, walletID); err != nil {
			logger.WarnContext(ctx, "balance cache invalidation failed",
				slog.String("walletId", walletID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}
