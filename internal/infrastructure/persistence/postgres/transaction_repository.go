// Package postgres - TransactionRepository implementation.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/fundflow/internal/application/ports"
	"github.com/Haleralex/fundflow/internal/domain/entities"
	domainErrors "github.com/Haleralex/fundflow/internal/domain/errors"
	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
)

// Compile-time check
var _ ports.TransactionRepository = (*TransactionRepository)(nil)

const transactionColumns = `
	id, kind, status, transfer_state,
	amount, currency,
	source_wallet_id, destination_wallet_id, parent_transaction_id,
	description, metadata,
	idempotency_key, external_reference_id,
	retry_count, error_detail, saga_state,
	reserved_amount, reservation_expiry,
	source_balance_before, source_balance_after,
	destination_balance_before, destination_balance_after,
	created_at, updated_at, processed_at, completed_at, failed_at
`

// TransactionRepository implements ports.TransactionRepository.
//
// Storage notes:
// - amount and balance snapshots are BIGINT cents, all in the row's currency
// - metadata, error_detail and saga_state are JSONB
// - idempotency_key carries a partial UNIQUE index (NULLs excluded)
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Save inserts a transaction. A duplicate idempotency key surfaces as a
// conflict so the gate can route the caller to the replay path.
func (r *TransactionRepository) Save(ctx context.Context, tx *entities.Transaction) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9,
			$10, $11,
			$12, $13,
			$14, $15, $16,
			$17, $18,
			$19, $20,
			$21, $22,
			$23, $24, $25, $26, $27
		)
	`

	args, err := r.insertArgs(tx)
	if err != nil {
		return err
	}

	if _, err := q.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err, "idempotency_key") {
			return domainErrors.NewConflict(
				fmt.Sprintf("idempotency key %s is already in use", tx.IdempotencyKey()))
		}
		if isUniqueViolation(err, "") {
			return domainErrors.NewConflict(
				fmt.Sprintf("transaction %s already exists", tx.ID()))
		}
		if isForeignKeyViolation(err) {
			return domainErrors.NewNotFound("referenced wallet not found")
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// Update persists the mutable fields of an existing transaction.
func (r *TransactionRepository) Update(ctx context.Context, tx *entities.Transaction) error {
	q := r.getQuerier(ctx)

	query := `
		UPDATE transactions SET
			status = $2,
			transfer_state = $3,
			metadata = $4,
			external_reference_id = $5,
			retry_count = $6,
			error_detail = $7,
			saga_state = $8,
			reserved_amount = $9,
			reservation_expiry = $10,
			source_balance_before = $11,
			source_balance_after = $12,
			destination_balance_before = $13,
			destination_balance_after = $14,
			updated_at = $15,
			processed_at = $16,
			completed_at = $17,
			failed_at = $18
		WHERE id = $1
	`

	metadataJSON, err := tx.MetadataJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}

	sagaStateJSON, err := tx.SagaStateJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize saga state: %w", err)
	}

	errorDetailJSON, err := marshalErrorDetail(tx.ErrorDetail())
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, query,
		tx.ID(),
		string(tx.Status()),
		string(tx.TransferState()),
		metadataJSON,
		nullableString(tx.ExternalReferenceID()),
		tx.RetryCount(),
		errorDetailJSON,
		sagaStateJSON,
		moneyCents(tx.ReservedAmount()),
		tx.ReservationExpiry(),
		moneyCents(tx.SourceBalanceBefore()),
		moneyCents(tx.SourceBalanceAfter()),
		moneyCents(tx.DestinationBalanceBefore()),
		moneyCents(tx.DestinationBalanceAfter()),
		tx.UpdatedAt(),
		tx.ProcessedAt(),
		tx.CompletedAt(),
		tx.FailedAt(),
	)

	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domainErrors.NewNotFound(fmt.Sprintf("transaction %s not found", tx.ID()))
	}

	return nil
}

// FindByID loads a transaction by ID.
func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	q := r.getQuerier(ctx)

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	return r.scanTransaction(q.QueryRow(ctx, query, id))
}

// FindByIdempotencyKey finds the transaction for an idempotency key.
func (r *TransactionRepository) FindByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error) {
	q := r.getQuerier(ctx)

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`

	return r.scanTransaction(q.QueryRow(ctx, query, key))
}

func (r *TransactionRepository) insertArgs(tx *entities.Transaction) ([]any, error) {
	metadataJSON, err := tx.MetadataJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metadata: %w", err)
	}

	sagaStateJSON, err := tx.SagaStateJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize saga state: %w", err)
	}

	errorDetailJSON, err := marshalErrorDetail(tx.ErrorDetail())
	if err != nil {
		return nil, err
	}

	return []any{
		tx.ID(),
		string(tx.Kind()),
		string(tx.Status()),
		string(tx.TransferState()),
		tx.Amount().Cents(),
		tx.Amount().Currency().Code(),
		tx.SourceWalletID(),
		tx.DestinationWalletID(),
		tx.ParentTransactionID(),
		tx.Description(),
		metadataJSON,
		nullableString(tx.IdempotencyKey()),
		nullableString(tx.ExternalReferenceID()),
		tx.RetryCount(),
		errorDetailJSON,
		sagaStateJSON,
		moneyCents(tx.ReservedAmount()),
		tx.ReservationExpiry(),
		moneyCents(tx.SourceBalanceBefore()),
		moneyCents(tx.SourceBalanceAfter()),
		moneyCents(tx.DestinationBalanceBefore()),
		moneyCents(tx.DestinationBalanceAfter()),
		tx.CreatedAt(),
		tx.UpdatedAt(),
		tx.ProcessedAt(),
		tx.CompletedAt(),
		tx.FailedAt(),
	}, nil
}

// scanTransaction scans a single row into a Transaction entity.
func (r *TransactionRepository) scanTransaction(row pgx.Row) (*entities.Transaction, error) {
	var (
		id                                       uuid.UUID
		kindStr, statusStr, stateStr             string
		amountCents                              int64
		currencyCode                             string
		sourceWalletID, destinationWalletID      *uuid.UUID
		parentTransactionID                      *uuid.UUID
		description                              string
		metadataJSON                             []byte
		idempotencyKey, externalReferenceID      *string
		retryCount                               int
		errorDetailJSON, sagaStateJSON           []byte
		reservedCents                            *int64
		reservationExpiry                        *time.Time
		srcBeforeCents, srcAfterCents            *int64
		dstBeforeCents, dstAfterCents            *int64
		createdAt, updatedAt                     time.Time
		processedAt, completedAt, failedAt       *time.Time
	)

	err := row.Scan(
		&id, &kindStr, &statusStr, &stateStr,
		&amountCents, &currencyCode,
		&sourceWalletID, &destinationWalletID, &parentTransactionID,
		&description, &metadataJSON,
		&idempotencyKey, &externalReferenceID,
		&retryCount, &errorDetailJSON, &sagaStateJSON,
		&reservedCents, &reservationExpiry,
		&srcBeforeCents, &srcAfterCents,
		&dstBeforeCents, &dstAfterCents,
		&createdAt, &updatedAt, &processedAt, &completedAt, &failedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.NewNotFound("transaction not found")
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	currency, err := valueobjects.NewCurrency(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid currency in database: %w", err)
	}

	amount, err := valueobjects.NewMoneyFromCents(amountCents, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to convert amount: %w", err)
	}

	var errorDetail *entities.ErrorDetail
	if len(errorDetailJSON) > 0 {
		errorDetail = &entities.ErrorDetail{}
		if err := json.Unmarshal(errorDetailJSON, errorDetail); err != nil {
			return nil, fmt.Errorf("failed to parse error detail: %w", err)
		}
	}

	reserved, err := moneyFromCents(reservedCents, currency)
	if err != nil {
		return nil, err
	}
	srcBefore, err := moneyFromCents(srcBeforeCents, currency)
	if err != nil {
		return nil, err
	}
	srcAfter, err := moneyFromCents(srcAfterCents, currency)
	if err != nil {
		return nil, err
	}
	dstBefore, err := moneyFromCents(dstBeforeCents, currency)
	if err != nil {
		return nil, err
	}
	dstAfter, err := moneyFromCents(dstAfterCents, currency)
	if err != nil {
		return nil, err
	}

	return entities.ReconstructTransaction(
		id,
		entities.TransactionKind(kindStr),
		entities.TransactionStatus(statusStr),
		entities.TransferState(stateStr),
		amount,
		sourceWalletID, destinationWalletID, parentTransactionID,
		description,
		metadataJSON,
		stringOrEmpty(idempotencyKey), stringOrEmpty(externalReferenceID),
		retryCount,
		errorDetail,
		sagaStateJSON,
		reserved,
		reservationExpiry,
		srcBefore, srcAfter,
		dstBefore, dstAfter,
		createdAt, updatedAt,
		processedAt, completedAt, failedAt,
	)
}

// Conversion helpers between nullable columns and domain values.

func marshalErrorDetail(detail *entities.ErrorDetail) ([]byte, error) {
	if detail == nil {
		return nil, nil
	}
	payload, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize error detail: %w", err)
	}
	return payload, nil
}

func moneyCents(m *valueobjects.Money) *int64 {
	if m == nil {
		return nil
	}
	cents := m.Cents()
	return &cents
}

func moneyFromCents(cents *int64, currency valueobjects.Currency) (*valueobjects.Money, error) {
	if cents == nil {
		return nil, nil
	}
	m, err := valueobjects.NewMoneyFromCents(*cents, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to convert stored amount: %w", err)
	}
	return &m, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
