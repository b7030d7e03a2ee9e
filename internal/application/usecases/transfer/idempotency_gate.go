// Package transfer implements transfer execution: the idempotency gate in
// front, the saga behind it, and the idempotency-key lookup.
package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Haleralex/fundflow/internal/application/dtos"
	"github.com/Haleralex/fundflow/internal/application/ports"
	"github.com/Haleralex/fundflow/internal/domain/entities"
	domainErrors "github.com/Haleralex/fundflow/internal/domain/errors"
	"github.com/Haleralex/fundflow/internal/pkg/metrics"
)

const transferEndpoint = "POST /api/v1/transfers"

// collisionWindow bounds how long a request-hash mapping can veto an
// identical submission under a different client key.
const collisionWindow = 5 * time.Minute

// errorVerdict is the serialized form of a cached terminal failure.
type errorVerdict struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GateVerdict is the idempotency gate's decision for one request.
//
// Exactly one of these shapes comes back:
//   - CachedResult set: serve the bytes as-is, nothing executes
//   - Existing set, Proceed false: replay the durable transaction's outcome
//   - Proceed true (Existing optionally set for a retry): run the saga
type GateVerdict struct {
	Key          string
	AutoKey      bool
	CachedResult []byte
	Existing     *entities.Transaction
	Proceed      bool
}

// IdempotencyGate decides whether a transfer request executes, replays a
// prior outcome, or is rejected as a duplicate.
//
// The durable transaction row is the source of truth; the cache entries only
// short-circuit the common paths.
type IdempotencyGate struct {
	transactions ports.TransactionRepository
	store        ports.IdempotencyStore
	logger       *slog.Logger
	maxRetries   int
	now          func() time.Time
}

func NewIdempotencyGate(
	transactions ports.TransactionRepository,
	store ports.IdempotencyStore,
	logger *slog.Logger,
	maxRetries int,
) *IdempotencyGate {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &IdempotencyGate{
		transactions: transactions,
		store:        store,
		logger:       logger,
		maxRetries:   maxRetries,
		now:          time.Now,
	}
}

// Check runs the gate for a command.
func (g *IdempotencyGate) Check(ctx context.Context, cmd dtos.TransferCommand) (*GateVerdict, error) {
	key := cmd.IdempotencyKey
	auto := key == ""
	if auto {
		key = SynthesizeKey(cmd)
	}

	if payload := g.getResult(ctx, key); payload != nil {
		metrics.IdempotentReplaysTotal.Inc()
		return &GateVerdict{Key: key, AutoKey: auto, CachedResult: payload}, nil
	}

	if payload := g.getError(ctx, key); payload != nil {
		var verdict errorVerdict
		if err := json.Unmarshal(payload, &verdict); err == nil {
			metrics.IdempotentReplaysTotal.Inc()
			return nil, domainErrors.New(domainErrors.KindForCode(verdict.Code), verdict.Code, verdict.Message)
		}
	}

	// Content-hash collision check. Client-supplied keys only: synthesized
	// keys already hash the content, so a second identical request maps to
	// the same key and is handled above.
	var hash string
	if !auto {
		hash = RequestHash(cmd)
		if err := g.guardHashCollision(ctx, hash, key); err != nil {
			return nil, err
		}
	}

	tx, err := g.transactions.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			g.rememberHash(ctx, hash, key)
			return &GateVerdict{Key: key, AutoKey: auto, Proceed: true}, nil
		}
		return nil, err
	}

	switch {
	case tx.Status() == entities.TransactionStatusCompleted:
		metrics.IdempotentReplaysTotal.Inc()
		return &GateVerdict{Key: key, AutoKey: auto, Existing: tx}, nil
	case tx.IsInFlight():
		return nil, domainErrors.NewConflict("transfer with this idempotency key is already in progress")
	case tx.IsRetryable(g.maxRetries):
		g.rememberHash(ctx, hash, key)
		return &GateVerdict{Key: key, AutoKey: auto, Existing: tx, Proceed: true}, nil
	default:
		// Terminal failure: the stored verdict is replayed.
		return &GateVerdict{Key: key, AutoKey: auto, Existing: tx}, nil
	}
}

// guardHashCollision rejects identical content resubmitted under a different
// client key, but only while the mapping is fresh and the original transfer
// is still in flight. A stale mapping or a settled original lets the new key
// run on its own.
func (g *IdempotencyGate) guardHashCollision(ctx context.Context, hash, key string) error {
	entry, err := g.store.GetRequestHash(ctx, hash)
	if err != nil {
		g.logger.WarnContext(ctx, "request hash lookup failed", slog.String("error", err.Error()))
		return nil
	}
	if entry == nil || entry.IdempotencyKey == key {
		return nil
	}
	if g.now().Sub(entry.Timestamp) > collisionWindow {
		return nil
	}
	tx, err := g.transactions.FindByIdempotencyKey(ctx, entry.IdempotencyKey)
	if err != nil {
		// No durable row behind the mapping; nothing to protect.
		return nil
	}
	if tx.IsInFlight() {
		return domainErrors.NewConflict(
			"identical request already in progress under a different idempotency key")
	}
	return nil
}

// rememberHash records the hash-to-key mapping once the gate has decided the
// request will actually execute.
func (g *IdempotencyGate) rememberHash(ctx context.Context, hash, key string) {
	if hash == "" {
		return
	}
	if err := g.store.PutRequestHash(ctx, hash, ports.RequestHashEntry{
		IdempotencyKey: key,
		Endpoint:       transferEndpoint,
		Timestamp:      g.now(),
	}); err != nil {
		g.logger.WarnContext(ctx, "request hash store failed", slog.String("error", err.Error()))
	}
}

// RecordResult caches the serialized success response for replays.
func (g *IdempotencyGate) RecordResult(ctx context.Context, key string, payload []byte) {
	if err := g.store.PutResult(ctx, key, payload); err != nil {
		g.logger.WarnContext(ctx, "idempotency result store failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// RecordFailure caches a terminal failure verdict. Retryable failures are
// not recorded so a retry with the same key can run.
func (g *IdempotencyGate) RecordFailure(ctx context.Context, key, code, message string) {
	if domainErrors.KindForCode(code).Retryable() {
		return
	}
	payload, err := json.Marshal(errorVerdict{Code: code, Message: message})
	if err != nil {
		return
	}
	if err := g.store.PutError(ctx, key, payload); err != nil {
		g.logger.WarnContext(ctx, "idempotency error store failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func (g *IdempotencyGate) getResult(ctx context.Context, key string) []byte {
	payload, err := g.store.GetResult(ctx, key)
	if err != nil {
		g.logger.WarnContext(ctx, "idempotency result lookup failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return payload
}

func (g *IdempotencyGate) getError(ctx context.Context, key string) []byte {
	payload, err := g.store.GetError(ctx, key)
	if err != nil {
		g.logger.WarnContext(ctx, "idempotency error lookup failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return payload
}

// SynthesizeKey derives a deterministic idempotency key for requests that did
// not supply one. Two identical submissions from the same user map to the
// same key and deduplicate naturally.
func SynthesizeKey(cmd dtos.TransferCommand) string {
	return "auto_" + RequestHash(cmd)[:32]
}

// RequestHash hashes the identifying content of a transfer request.
func RequestHash(cmd dtos.TransferCommand) string {
	h := sha256.New()
	h.Write([]byte(cmd.UserID))
	h.Write([]byte{'|'})
	h.Write([]byte(cmd.SourceWalletID))
	h.Write([]byte{'|'})
	h.Write([]byte(cmd.DestinationWalletID))
	h.Write([]byte{'|'})
	h.Write([]byte(cmd.Amount))
	h.Write([]byte{'|'})
	h.Write([]byte(cmd.Description))
	return hex.EncodeToString(h.Sum(nil))
}
