// Package redis - distributed wallet leases.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Haleralex/fundflow/internal/application/ports"
	domainErrors "github.com/Haleralex/fundflow/internal/domain/errors"
)

// Compile-time check
var _ ports.WalletLockManager = (*WalletLockManager)(nil)

const lockKeyPrefix = "wallet_lock:"

// releaseScript deletes the lease only when the caller still holds it.
// Compare-and-delete must be atomic or a slow holder could release a lease
// that has already expired and been re-acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// WalletLockManager implements ports.WalletLockManager with SET NX PX leases.
//
// The lease is advisory: it serializes writers during the read-compute-commit
// window. A holder that outlives its TTL is fenced by the versioned balance
// cache, not by the lease.
type WalletLockManager struct {
	client        *redis.Client
	retryInterval time.Duration
}

// NewWalletLockManager creates a new WalletLockManager.
func NewWalletLockManager(client *redis.Client) *WalletLockManager {
	return &WalletLockManager{
		client:        client,
		retryInterval: 50 * time.Millisecond,
	}
}

func lockKey(walletID uuid.UUID) string {
	return lockKeyPrefix + walletID.String()
}

// Acquire takes the lease for walletID, polling until wait elapses.
// wait <= 0 means a single attempt.
func (m *WalletLockManager) Acquire(ctx context.Context, walletID uuid.UUID, ttl, wait time.Duration) (string, error) {
	token := uuid.NewString()
	key := lockKey(walletID)
	deadline := time.Now().Add(wait)

	for {
		ok, err := m.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("failed to acquire wallet lock: %w", err)
		}
		if ok {
			return token, nil
		}

		if time.Now().After(deadline) {
			return "", domainErrors.NewLockTimeout("wallet:" + walletID.String())
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.retryInterval):
		}
	}
}

// Release frees the lease if token is still the holder. Releasing an expired
// or stolen lease is a no-op, not an error.
func (m *WalletLockManager) Release(ctx context.Context, walletID uuid.UUID, token string) error {
	if err := releaseScript.Run(ctx, m.client, []string{lockKey(walletID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release wallet lock: %w", err)
	}
	return nil
}
