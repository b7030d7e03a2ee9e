// Package redis - windowed limit usage cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Haleralex/fundflow/internal/application/ports"
)

// Compile-time check
var _ ports.LimitCache = (*LimitCache)(nil)

const (
	dailyUsageKeyPrefix   = "limit_daily:"
	monthlyUsageKeyPrefix = "limit_monthly:"
)

// LimitCache implements ports.LimitCache.
//
// Counters are read-through hints only: every transfer decision projects
// against the durable ledger, so a stale or missing counter costs one store
// read, never a wrong answer.
type LimitCache struct {
	client     *redis.Client
	dailyTTL   time.Duration
	monthlyTTL time.Duration
}

// NewLimitCache creates a LimitCache with the given window TTLs.
func NewLimitCache(client *redis.Client, dailyTTL, monthlyTTL time.Duration) *LimitCache {
	if dailyTTL <= 0 {
		dailyTTL = 24 * time.Hour
	}
	if monthlyTTL <= 0 {
		monthlyTTL = 30 * 24 * time.Hour
	}
	return &LimitCache{client: client, dailyTTL: dailyTTL, monthlyTTL: monthlyTTL}
}

// GetUsage returns cached (daily, monthly) cents. ok is false when either
// counter is missing.
func (c *LimitCache) GetUsage(ctx context.Context, userID uuid.UUID) (int64, int64, bool, error) {
	values, err := c.client.MGet(ctx,
		dailyUsageKeyPrefix+userID.String(),
		monthlyUsageKeyPrefix+userID.String(),
	).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("failed to read limit cache: %w", err)
	}

	daily, ok := parseCounter(values[0])
	if !ok {
		return 0, 0, false, nil
	}
	monthly, ok := parseCounter(values[1])
	if !ok {
		return 0, 0, false, nil
	}

	return daily, monthly, true, nil
}

// SetUsage writes both counters with their window TTLs.
func (c *LimitCache) SetUsage(ctx context.Context, userID uuid.UUID, daily, monthly int64) error {
	pipe := c.client.Pipeline()
	pipe.Set(ctx, dailyUsageKeyPrefix+userID.String(), daily, c.dailyTTL)
	pipe.Set(ctx, monthlyUsageKeyPrefix+userID.String(), monthly, c.monthlyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write limit cache: %w", err)
	}
	return nil
}

// Invalidate drops both counters.
func (c *LimitCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	err := c.client.Del(ctx,
		dailyUsageKeyPrefix+userID.String(),
		monthlyUsageKeyPrefix+userID.String(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to invalidate limit cache: %w", err)
	}
	return nil
}

func parseCounter(value any) (int64, bool) {
	s, ok := value.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
