// Package redis - idempotency gate cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Haleralex/fundflow/internal/application/ports"
)

// Compile-time check
var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

const (
	resultKeyPrefix      = "idempotency:"
	requestHashKeyPrefix = "request_hash:"
	errorKeyPrefix       = "idempotency_error:"
)

// IdempotencyStore implements ports.IdempotencyStore.
//
// The cache is an accelerator in front of the durable transactions table: a
// lost entry means one extra database lookup, never a duplicate execution.
type IdempotencyStore struct {
	client     *redis.Client
	resultTTL  time.Duration
	requestTTL time.Duration
	errorTTL   time.Duration
}

// NewIdempotencyStore creates an IdempotencyStore with the given TTLs.
func NewIdempotencyStore(client *redis.Client, resultTTL, requestTTL, errorTTL time.Duration) *IdempotencyStore {
	if resultTTL <= 0 {
		resultTTL = time.Hour
	}
	if requestTTL <= 0 {
		requestTTL = 30 * time.Minute
	}
	if errorTTL <= 0 {
		errorTTL = 5 * time.Minute
	}
	return &IdempotencyStore{
		client:     client,
		resultTTL:  resultTTL,
		requestTTL: requestTTL,
		errorTTL:   errorTTL,
	}
}

// GetResult returns the cached serialized response for a key, or nil.
func (s *IdempotencyStore) GetResult(ctx context.Context, key string) ([]byte, error) {
	return s.getBytes(ctx, resultKeyPrefix+key)
}

// PutResult caches the serialized response for a completed request.
func (s *IdempotencyStore) PutResult(ctx context.Context, key string, payload []byte) error {
	if err := s.client.Set(ctx, resultKeyPrefix+key, payload, s.resultTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache idempotency result: %w", err)
	}
	return nil
}

// GetRequestHash returns the entry for a content hash, or nil.
func (s *IdempotencyStore) GetRequestHash(ctx context.Context, hash string) (*ports.RequestHashEntry, error) {
	payload, err := s.getBytes(ctx, requestHashKeyPrefix+hash)
	if err != nil || payload == nil {
		return nil, err
	}

	var entry ports.RequestHashEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, nil
	}
	return &entry, nil
}

// PutRequestHash records hash -> key.
func (s *IdempotencyStore) PutRequestHash(ctx context.Context, hash string, entry ports.RequestHashEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize request hash entry: %w", err)
	}
	if err := s.client.Set(ctx, requestHashKeyPrefix+hash, payload, s.requestTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache request hash: %w", err)
	}
	return nil
}

// GetError returns the cached failure verdict for a key, or nil.
func (s *IdempotencyStore) GetError(ctx context.Context, key string) ([]byte, error) {
	return s.getBytes(ctx, errorKeyPrefix+key)
}

// PutError records a failure verdict for a key.
func (s *IdempotencyStore) PutError(ctx context.Context, key string, payload []byte) error {
	if err := s.client.Set(ctx, errorKeyPrefix+key, payload, s.errorTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache idempotency error: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) getBytes(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read idempotency cache: %w", err)
	}
	return payload, nil
}
