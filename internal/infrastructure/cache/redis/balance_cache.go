// Package redis - versioned balance cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Haleralex/fundflow/internal/application/ports"
)

// Compile-time check
var _ ports.BalanceCache = (*BalanceCache)(nil)

// balanceKeyPrefix is versioned: v2 entries carry the CAS version field,
// so v1 entries from older deployments are simply never read.
const balanceKeyPrefix = "wallet_balance_v2:"

// casScript swaps the entry only when the stored version matches the expected
// one. A missing key matches expected version 0.
var casScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
local expected = tonumber(ARGV[1])
if current == false then
	if expected == 0 then
		redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
		return 1
	end
	return 0
end
local decoded = cjson.decode(current)
if tonumber(decoded.version) == expected then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// BalanceCache implements ports.BalanceCache with JSON entries and a Lua
// compare-and-swap keyed on the entry version.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache creates a BalanceCache with the given entry TTL.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &BalanceCache{client: client, ttl: ttl}
}

func balanceKey(walletID uuid.UUID) string {
	return balanceKeyPrefix + walletID.String()
}

// Get returns the cached entry, or nil on miss.
func (c *BalanceCache) Get(ctx context.Context, walletID uuid.UUID) (*ports.CachedBalance, error) {
	payload, err := c.client.Get(ctx, balanceKey(walletID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read balance cache: %w", err)
	}

	var entry ports.CachedBalance
	if err := json.Unmarshal(payload, &entry); err != nil {
		// A corrupt entry is treated as a miss; the writer will repair it.
		return nil, nil
	}
	return &entry, nil
}

// CompareAndSwap updates the entry when the stored version matches.
func (c *BalanceCache) CompareAndSwap(ctx context.Context, walletID uuid.UUID, expectedVersion int64, entry ports.CachedBalance) (bool, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("failed to serialize balance entry: %w", err)
	}

	swapped, err := casScript.Run(ctx, c.client,
		[]string{balanceKey(walletID)},
		expectedVersion, payload, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to swap balance entry: %w", err)
	}

	return swapped == 1, nil
}

// Put unconditionally writes the entry.
func (c *BalanceCache) Put(ctx context.Context, walletID uuid.UUID, entry ports.CachedBalance) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize balance entry: %w", err)
	}

	if err := c.client.Set(ctx, balanceKey(walletID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write balance cache: %w", err)
	}
	return nil
}

// Invalidate drops the entry.
func (c *BalanceCache) Invalidate(ctx context.Context, walletID uuid.UUID) error {
	if err := c.client.Del(ctx, balanceKey(walletID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate balance cache: %w", err)
	}
	return nil
}
