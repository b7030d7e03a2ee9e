// Package entities - Transaction represents a money movement in the system.
// This is a critical entity with complex state management and business rules.
package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/fundflow/internal/domain/errors"
	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
)

// TransactionKind represents the kind of transaction.
type TransactionKind string

const (
	TransactionKindDeposit      TransactionKind = "DEPOSIT"      // External deposit to wallet
	TransactionKindWithdrawal   TransactionKind = "WITHDRAWAL"   // Withdrawal to external account
	TransactionKindTransfer     TransactionKind = "TRANSFER"     // Internal transfer between wallets
	TransactionKindRefund       TransactionKind = "REFUND"       // Refund of previous transaction
	TransactionKindCompensation TransactionKind = "COMPENSATION" // Compensation of a partial transfer
)

// IsValid checks if the transaction kind is valid.
func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindDeposit, TransactionKindWithdrawal, TransactionKindTransfer,
		TransactionKindRefund, TransactionKindCompensation:
		return true
	default:
		return false
	}
}

// TransactionStatus represents the current state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending     TransactionStatus = "PENDING"     // Created, not yet processed
	TransactionStatusProcessing  TransactionStatus = "PROCESSING"  // Currently being processed
	TransactionStatusCompleted   TransactionStatus = "COMPLETED"   // Successfully completed
	TransactionStatusFailed      TransactionStatus = "FAILED"      // Processing failed
	TransactionStatusCancelled   TransactionStatus = "CANCELLED"   // Cancelled by user/system
	TransactionStatusCompensated TransactionStatus = "COMPENSATED" // Fully unwound after partial progress
)

// IsValid checks if the transaction status is valid.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusProcessing, TransactionStatusCompleted,
		TransactionStatusFailed, TransactionStatusCancelled, TransactionStatusCompensated:
		return true
	default:
		return false
	}
}

// IsFinal returns true if the status is terminal (no further transitions).
func (s TransactionStatus) IsFinal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed,
		TransactionStatusCancelled, TransactionStatusCompensated:
		return true
	default:
		return false
	}
}

// TransferState is the transfer sub-state that tracks saga progress.
// It advances monotonically through the forward sequence until COMPLETED or
// enters the compensation path.
type TransferState string

const (
	TransferStateInitiated           TransferState = "INITIATED"
	TransferStateValidationComplete  TransferState = "VALIDATION_COMPLETE"
	TransferStateFundsReserved       TransferState = "FUNDS_RESERVED"
	TransferStateDebitComplete       TransferState = "DEBIT_COMPLETE"
	TransferStateCreditComplete      TransferState = "CREDIT_COMPLETE"
	TransferStateCompleted           TransferState = "COMPLETED"
	TransferStateCompensationPending TransferState = "COMPENSATION_PENDING"
	TransferStateCompensated         TransferState = "COMPENSATED"
	TransferStateFailed              TransferState = "FAILED"
)

// forwardOrder maps forward states to their sequence index.
var forwardOrder = map[TransferState]int{
	TransferStateInitiated:          0,
	TransferStateValidationComplete: 1,
	TransferStateFundsReserved:      2,
	TransferStateDebitComplete:      3,
	TransferStateCreditComplete:     4,
	TransferStateCompleted:          5,
}

// ErrorDetail records what went wrong with a transaction.
type ErrorDetail struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Step      string    `json:"step,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SagaState is the crash-recovery snapshot persisted on the transaction row
// after every saga step. The schema is strict so recovery is deterministic.
type SagaState struct {
	CurrentStep      int        `json:"currentStep"`
	CompletedSteps   []string   `json:"completedSteps"`
	CompensatedSteps []string   `json:"compensatedSteps"`
	RetryCount       int        `json:"retryCount"`
	LastError        *SagaError `json:"lastError,omitempty"`
}

// SagaError is the last error recorded in a saga state snapshot.
type SagaError struct {
	Message   string    `json:"message"`
	Step      string    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// nonRetryableCodes are business rejections: retrying them cannot succeed.
var nonRetryableCodes = map[string]bool{
	"insufficient_balance": true,
	"invalid_wallet":       true,
	"limit_exceeded":       true,
	"currency_mismatch":    true,
}

// Transaction represents a money movement in the system.
//
// Entity Pattern:
// - Has identity (ID + idempotency key)
// - Complex state machine (status + transfer sub-state)
// - Immutable after reaching a terminal status
type Transaction struct {
	id     uuid.UUID
	kind   TransactionKind
	status TransactionStatus
	state  TransferState
	amount valueobjects.Money

	sourceWalletID      *uuid.UUID // Nullable for deposits
	destinationWalletID *uuid.UUID // Nullable for withdrawals
	description         string
	metadata            map[string]interface{} // Opaque JSON blob, never read semantically

	idempotencyKey      string // Globally unique when present
	externalReferenceID string
	parentTransactionID *uuid.UUID // Set on compensation transactions

	retryCount  int
	errorDetail *ErrorDetail
	sagaState   *SagaState

	reservedAmount    *valueobjects.Money
	reservationExpiry *time.Time

	sourceBalanceBefore      *valueobjects.Money
	sourceBalanceAfter       *valueobjects.Money
	destinationBalanceBefore *valueobjects.Money
	destinationBalanceAfter  *valueobjects.Money

	createdAt   time.Time
	updatedAt   time.Time
	processedAt *time.Time
	completedAt *time.Time
	failedAt    *time.Time
}

// NewTransferTransaction creates a transfer between two wallets.
//
// Business Rules:
// - Amount must be positive
// - Idempotency key is required (the gate synthesizes one when the caller omits it)
// - Source and destination must differ (checked again at validation)
func NewTransferTransaction(
	sourceWalletID, destinationWalletID uuid.UUID,
	idempotencyKey string,
	amount valueobjects.Money,
	description string,
) (*Transaction, error) {
	if idempotencyKey == "" {
		return nil, errors.ValidationError{
			Field:   "idempotencyKey",
			Message: "idempotency key is required",
		}
	}

	if !amount.IsPositive() {
		return nil, errors.NewInvalidRequest("invalid_amount", "transfer amount must be positive")
	}

	now := time.Now()
	src := sourceWalletID
	dst := destinationWalletID
	return &Transaction{
		id:                  uuid.New(),
		kind:                TransactionKindTransfer,
		status:              TransactionStatusPending,
		state:               TransferStateInitiated,
		amount:              amount,
		sourceWalletID:      &src,
		destinationWalletID: &dst,
		description:         description,
		metadata:            make(map[string]interface{}),
		idempotencyKey:      idempotencyKey,
		createdAt:           now,
		updatedAt:           now,
	}, nil
}

// NewDepositTransaction creates a completed deposit record (add-funds path).
// Deposits are committed in the same store transaction as the balance update,
// so they are born COMPLETED.
func NewDepositTransaction(
	destinationWalletID uuid.UUID,
	amount valueobjects.Money,
	description string,
) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, errors.NewInvalidRequest("invalid_amount", "deposit amount must be positive")
	}

	now := time.Now()
	dst := destinationWalletID
	return &Transaction{
		id:                  uuid.New(),
		kind:                TransactionKindDeposit,
		status:              TransactionStatusCompleted,
		state:               TransferStateCompleted,
		amount:              amount,
		destinationWalletID: &dst,
		description:         description,
		metadata:            make(map[string]interface{}),
		createdAt:           now,
		updatedAt:           now,
		completedAt:         &now,
	}, nil
}

// ReconstructTransaction reconstructs a Transaction from stored data.
func ReconstructTransaction(
	id uuid.UUID,
	kind TransactionKind,
	status TransactionStatus,
	state TransferState,
	amount valueobjects.Money,
	sourceWalletID, destinationWalletID, parentTransactionID *uuid.UUID,
	description string,
	metadataJSON []byte,
	idempotencyKey, externalReferenceID string,
	retryCount int,
	errorDetail *ErrorDetail,
	sagaStateJSON []byte,
	reservedAmount *valueobjects.Money,
	reservationExpiry *time.Time,
	sourceBalanceBefore, sourceBalanceAfter *valueobjects.Money,
	destinationBalanceBefore, destinationBalanceAfter *valueobjects.Money,
	createdAt, updatedAt time.Time,
	processedAt, completedAt, failedAt *time.Time,
) (*Transaction, error) {
	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, err
		}
	}
	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	var sagaState *SagaState
	if len(sagaStateJSON) > 0 {
		sagaState = &SagaState{}
		if err := json.Unmarshal(sagaStateJSON, sagaState); err != nil {
			return nil, err
		}
	}

	return &Transaction{
		id:                       id,
		kind:                     kind,
		status:                   status,
		state:                    state,
		amount:                   amount,
		sourceWalletID:           sourceWalletID,
		destinationWalletID:      destinationWalletID,
		parentTransactionID:      parentTransactionID,
		description:              description,
		metadata:                 metadata,
		idempotencyKey:           idempotencyKey,
		externalReferenceID:      externalReferenceID,
		retryCount:               retryCount,
		errorDetail:              errorDetail,
		sagaState:                sagaState,
		reservedAmount:           reservedAmount,
		reservationExpiry:        reservationExpiry,
		sourceBalanceBefore:      sourceBalanceBefore,
		sourceBalanceAfter:       sourceBalanceAfter,
		destinationBalanceBefore: destinationBalanceBefore,
		destinationBalanceAfter:  destinationBalanceAfter,
		createdAt:                createdAt,
		updatedAt:                updatedAt,
		processedAt:              processedAt,
		completedAt:              completedAt,
		failedAt:                 failedAt,
	}, nil
}

// Getters

func (t *Transaction) ID() uuid.UUID                        { return t.id }
func (t *Transaction) Kind() TransactionKind                { return t.kind }
func (t *Transaction) Status() TransactionStatus            { return t.status }
func (t *Transaction) TransferState() TransferState         { return t.state }
func (t *Transaction) Amount() valueobjects.Money           { return t.amount }
func (t *Transaction) SourceWalletID() *uuid.UUID           { return t.sourceWalletID }
func (t *Transaction) DestinationWalletID() *uuid.UUID      { return t.destinationWalletID }
func (t *Transaction) ParentTransactionID() *uuid.UUID      { return t.parentTransactionID }
func (t *Transaction) Description() string                  { return t.description }
func (t *Transaction) Metadata() map[string]interface{}     { return t.metadata }
func (t *Transaction) IdempotencyKey() string               { return t.idempotencyKey }
func (t *Transaction) ExternalReferenceID() string          { return t.externalReferenceID }
func (t *Transaction) RetryCount() int                      { return t.retryCount }
func (t *Transaction) ErrorDetail() *ErrorDetail            { return t.errorDetail }
func (t *Transaction) SagaState() *SagaState                { return t.sagaState }
func (t *Transaction) ReservedAmount() *valueobjects.Money  { return t.reservedAmount }
func (t *Transaction) ReservationExpiry() *time.Time        { return t.reservationExpiry }
func (t *Transaction) CreatedAt() time.Time                 { return t.createdAt }
func (t *Transaction) UpdatedAt() time.Time                 { return t.updatedAt }
func (t *Transaction) ProcessedAt() *time.Time              { return t.processedAt }
func (t *Transaction) CompletedAt() *time.Time              { return t.completedAt }
func (t *Transaction) FailedAt() *time.Time                 { return t.failedAt }

func (t *Transaction) SourceBalanceBefore() *valueobjects.Money      { return t.sourceBalanceBefore }
func (t *Transaction) SourceBalanceAfter() *valueobjects.Money       { return t.sourceBalanceAfter }
func (t *Transaction) DestinationBalanceBefore() *valueobjects.Money { return t.destinationBalanceBefore }
func (t *Transaction) DestinationBalanceAfter() *valueobjects.Money  { return t.destinationBalanceAfter }

// MetadataJSON serializes metadata for storage.
func (t *Transaction) MetadataJSON() ([]byte, error) {
	return json.Marshal(t.metadata)
}

// SagaStateJSON serializes the saga state snapshot for storage.
// Returns nil when no saga has run yet.
func (t *Transaction) SagaStateJSON() ([]byte, error) {
	if t.sagaState == nil {
		return nil, nil
	}
	return json.Marshal(t.sagaState)
}

// Business Methods

func (t *Transaction) IsPending() bool    { return t.status == TransactionStatusPending }
func (t *Transaction) IsProcessing() bool { return t.status == TransactionStatusProcessing }
func (t *Transaction) IsCompleted() bool  { return t.status == TransactionStatusCompleted }
func (t *Transaction) IsFailed() bool     { return t.status == TransactionStatusFailed }
func (t *Transaction) IsFinal() bool      { return t.status.IsFinal() }

// IsInFlight reports whether the transaction is still being processed.
// In-flight transactions block duplicate submissions of the same key.
func (t *Transaction) IsInFlight() bool {
	return t.IsPending() || t.IsProcessing()
}

// SetExternalReference sets an external system reference.
func (t *Transaction) SetExternalReference(reference string) error {
	if t.IsFinal() {
		return errors.ErrTransactionAlreadyProcessed
	}
	t.externalReferenceID = reference
	t.updatedAt = time.Now()
	return nil
}

// AddMetadata adds custom metadata to the transaction.
func (t *Transaction) AddMetadata(key string, value interface{}) error {
	if t.IsFinal() {
		return errors.ErrTransactionAlreadyProcessed
	}
	t.metadata[key] = value
	t.updatedAt = time.Now()
	return nil
}

// State Machine Transitions

// StartProcessing transitions the transaction to PROCESSING status.
// Business rule: Can only process PENDING transactions.
func (t *Transaction) StartProcessing() error {
	if !t.IsPending() {
		return errors.NewConflict("transaction is not in pending state")
	}

	now := time.Now()
	t.status = TransactionStatusProcessing
	t.processedAt = &now
	t.updatedAt = now
	return nil
}

// AdvanceState moves the transfer sub-state forward.
// The forward sequence is monotonic: moving backwards is a programming error.
func (t *Transaction) AdvanceState(next TransferState) error {
	if t.status.IsFinal() {
		return errors.ErrTransactionAlreadyProcessed
	}

	cur, curForward := forwardOrder[t.state]
	nxt, nextForward := forwardOrder[next]
	if curForward && nextForward && nxt < cur {
		return errors.NewInvalidRequest("invalid_state_transition",
			string(t.state)+" -> "+string(next))
	}

	t.state = next
	t.updatedAt = time.Now()
	return nil
}

// BeginCompensation marks the transfer as being unwound.
func (t *Transaction) BeginCompensation() {
	t.state = TransferStateCompensationPending
	t.updatedAt = time.Now()
}

// Reserve records an advisory reservation of funds on the transaction.
// A reservation is not an exclusive hold: the authoritative guard is the
// locked debit re-checking the balance.
func (t *Transaction) Reserve(amount valueobjects.Money, expiry time.Time) error {
	if t.status.IsFinal() {
		return errors.ErrTransactionAlreadyProcessed
	}
	t.reservedAmount = &amount
	t.reservationExpiry = &expiry
	t.updatedAt = time.Now()
	return nil
}

// ClearReservation removes the advisory reservation.
func (t *Transaction) ClearReservation() {
	t.reservedAmount = nil
	t.reservationExpiry = nil
	t.updatedAt = time.Now()
}

// Snapshot setters for balance-before / balance-after on each side.

func (t *Transaction) SnapshotSourceBefore(balance valueobjects.Money) {
	b := balance
	t.sourceBalanceBefore = &b
	t.updatedAt = time.Now()
}

func (t *Transaction) SnapshotSourceAfter(balance valueobjects.Money) {
	b := balance
	t.sourceBalanceAfter = &b
	t.updatedAt = time.Now()
}

func (t *Transaction) SnapshotDestinationBefore(balance valueobjects.Money) {
	b := balance
	t.destinationBalanceBefore = &b
	t.updatedAt = time.Now()
}

func (t *Transaction) SnapshotDestinationAfter(balance valueobjects.Money) {
	b := balance
	t.destinationBalanceAfter = &b
	t.updatedAt = time.Now()
}

// SetSagaState stores the coordinator's snapshot for crash recovery.
func (t *Transaction) SetSagaState(state SagaState) {
	s := state
	t.sagaState = &s
	t.updatedAt = time.Now()
}

// MarkCompleted transitions the transaction to COMPLETED.
// Business rule: Can only complete PROCESSING transactions.
func (t *Transaction) MarkCompleted() error {
	if !t.IsProcessing() {
		return errors.NewConflict("only processing transactions can be completed")
	}

	now := time.Now()
	t.status = TransactionStatusCompleted
	t.state = TransferStateCompleted
	t.completedAt = &now
	t.updatedAt = now
	return nil
}

// MarkFailed transitions the transaction to FAILED with an error detail.
// compensated indicates whether any compensation ran; the sub-state reflects it.
func (t *Transaction) MarkFailed(detail ErrorDetail, compensated bool) error {
	if t.IsFinal() {
		return errors.ErrTransactionAlreadyProcessed
	}

	now := time.Now()
	if detail.Timestamp.IsZero() {
		detail.Timestamp = now
	}
	t.status = TransactionStatusFailed
	if compensated {
		t.state = TransferStateCompensated
	} else {
		t.state = TransferStateFailed
	}
	t.errorDetail = &detail
	t.failedAt = &now
	t.updatedAt = now
	return nil
}

// Cancel transitions the transaction to CANCELLED status.
// Business rule: Can only cancel PENDING transactions.
func (t *Transaction) Cancel() error {
	if !t.IsPending() {
		return errors.NewConflict("only pending transactions can be cancelled")
	}

	now := time.Now()
	t.status = TransactionStatusCancelled
	t.completedAt = &now
	t.updatedAt = now
	return nil
}

// PrepareRetry re-arms a failed transaction for another saga run under the
// same idempotency key. The retry count survives; the error detail and any
// reservation are cleared.
func (t *Transaction) PrepareRetry(maxRetries int) error {
	if !t.IsRetryable(maxRetries) {
		return errors.NewConflict("transaction is not retryable")
	}

	t.status = TransactionStatusPending
	t.state = TransferStateInitiated
	t.errorDetail = nil
	t.reservedAmount = nil
	t.reservationExpiry = nil
	t.failedAt = nil
	t.completedAt = nil
	t.retryCount++
	t.updatedAt = time.Now()
	return nil
}

// IsRetryable reports whether a failed transaction may be retried with the
// same idempotency key. Business rejections are terminal; network/timeout
// class errors are retryable while under the retry budget.
func (t *Transaction) IsRetryable(maxRetries int) bool {
	if t.status != TransactionStatusFailed && t.status != TransactionStatusCancelled {
		return false
	}
	if t.retryCount >= maxRetries {
		return false
	}
	if t.errorDetail != nil && nonRetryableCodes[t.errorDetail.Code] {
		return false
	}
	return true
}
