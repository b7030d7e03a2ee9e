package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WalletLockManager hands out time-bounded exclusive leases on wallets.
//
// Locking contract: every mutation of a wallet balance must hold that
// wallet's lease for the entire read-compute-commit window. The lease TTL
// bounds progress; a writer that outlives its TTL is fenced by the versioned
// balance compare-and-swap, not by the lease itself.
type WalletLockManager interface {
	// Acquire tries to take the lease for walletID, retrying until wait
	// elapses. ttl is the lease expiry. Returns the holder token, or a
	// lock-timeout error when the lease could not be taken in time.
	Acquire(ctx context.Context, walletID uuid.UUID, ttl, wait time.Duration) (token string, err error)

	// Release frees the lease if (and only if) token is still the holder.
	Release(ctx context.Context, walletID uuid.UUID, token string) error
}

// CachedBalance is the versioned balance entry kept alongside the
// authoritative store. The version is monotonically non-decreasing per wallet
// because all writers hold the wallet lease during the store commit.
type CachedBalance struct {
	Cents       int64     `json:"balance"`
	Version     int64     `json:"version"`
	OwnerID     uuid.UUID `json:"ownerId"`
	Currency    string    `json:"currency"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// BalanceCache caches wallet balances with compare-and-swap semantics.
//
// Failure semantics: cache errors never corrupt durable state. Callers fall
// back to authoritative store reads on a miss and log (not fail) on write
// errors.
type BalanceCache interface {
	// Get returns the cached entry, or nil when missing.
	Get(ctx context.Context, walletID uuid.UUID) (*CachedBalance, error)

	// CompareAndSwap updates the entry only when the stored version equals
	// expectedVersion. A missing entry matches expectedVersion 0. Returns
	// false when the version check failed.
	CompareAndSwap(ctx context.Context, walletID uuid.UUID, expectedVersion int64, entry CachedBalance) (bool, error)

	// Put unconditionally writes the entry. Used to prime a fresh wallet and
	// to repair a detected inconsistency (under the wallet lease).
	Put(ctx context.Context, walletID uuid.UUID, entry CachedBalance) error

	// Invalidate drops the entry.
	Invalidate(ctx context.Context, walletID uuid.UUID) error
}

// LimitCache caches windowed usage counters per user.
type LimitCache interface {
	// GetUsage returns cached (dailyCents, monthlyCents). ok is false on miss.
	GetUsage(ctx context.Context, userID uuid.UUID) (daily, monthly int64, ok bool, err error)

	// SetUsage writes both counters with their window TTLs.
	SetUsage(ctx context.Context, userID uuid.UUID, daily, monthly int64) error

	// Invalidate drops both counters (after a usage commit or release).
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// RequestHashEntry maps a request-content hash to the idempotency key that
// first carried it.
type RequestHashEntry struct {
	IdempotencyKey string    `json:"idempotencyKey"`
	Endpoint       string    `json:"endpoint"`
	Timestamp      time.Time `json:"timestamp"`
}

// IdempotencyStore keeps the gate's cache entries: serialized results,
// request-content hashes, and failure records. TTLs are fixed by
// configuration (result 1h, request hash 30m, error 5m).
type IdempotencyStore interface {
	// GetResult returns the cached serialized response for a key, or nil.
	GetResult(ctx context.Context, key string) ([]byte, error)

	// PutResult caches the serialized response for a completed request.
	PutResult(ctx context.Context, key string, payload []byte) error

	// GetRequestHash returns the entry for a content hash, or nil.
	GetRequestHash(ctx context.Context, hash string) (*RequestHashEntry, error)

	// PutRequestHash records hash -> key.
	PutRequestHash(ctx context.Context, hash string, entry RequestHashEntry) error

	// GetError returns the cached failure verdict for a key, or nil.
	GetError(ctx context.Context, key string) ([]byte, error)

	// PutError records a failure verdict for a key. Only terminal business
	// rejections are recorded; transient failures stay retryable.
	PutError(ctx context.Context, key string, payload []byte) error
}
