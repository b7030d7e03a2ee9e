// Package events defines domain events that represent significant business occurrences.
// Events are immutable facts about what happened in the past.
//
// Pattern: Domain Events (Observer Pattern foundation)
// - Events are raised by use cases after state changes commit
// - Handlers can react asynchronously
// - Enables loose coupling between domain modules
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
)

// DomainEvent is the base interface for all domain events.
// All events must have an ID, timestamp, and type.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID // ID of the entity that raised this event
}

// BaseEvent provides common fields for all events.
// Embedded in specific event types to avoid duplication.
type BaseEvent struct {
	eventID     uuid.UUID
	eventType   string
	occurredAt  time.Time
	aggregateID uuid.UUID
}

func newBaseEvent(eventType string, aggregateID uuid.UUID) BaseEvent {
	return BaseEvent{
		eventID:     uuid.New(),
		eventType:   eventType,
		occurredAt:  time.Now(),
		aggregateID: aggregateID,
	}
}

func (e BaseEvent) EventID() uuid.UUID {
	return e.eventID
}

func (e BaseEvent) EventType() string {
	return e.eventType
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

func (e BaseEvent) AggregateID() uuid.UUID {
	return e.aggregateID
}

// Event Types (constants double as NATS subjects)
const (
	EventTypeWalletCreated       = "fundflow.wallet.created"
	EventTypeWalletCredited      = "fundflow.wallet.credited"
	EventTypeWalletDebited       = "fundflow.wallet.debited"
	EventTypeWalletFundsAdded    = "fundflow.wallet.funds_added"
	EventTypeTransferCompleted   = "fundflow.transfer.completed"
	EventTypeTransferFailed      = "fundflow.transfer.failed"
	EventTypeTransferCompensated = "fundflow.transfer.compensated"
)

// ===== Wallet Events =====

// WalletCreated is raised when a new wallet is created.
type WalletCreated struct {
	BaseEvent
	UserID   uuid.UUID
	Currency valueobjects.Currency
}

func NewWalletCreated(walletID, userID uuid.UUID, currency valueobjects.Currency) *WalletCreated {
	return &WalletCreated{
		BaseEvent: newBaseEvent(EventTypeWalletCreated, walletID),
		UserID:    userID,
		Currency:  currency,
	}
}

// WalletFundsAdded is raised when funds are deposited through add-funds.
type WalletFundsAdded struct {
	BaseEvent
	Amount        valueobjects.Money
	TransactionID uuid.UUID
	NewBalance    valueobjects.Money
}

func NewWalletFundsAdded(walletID uuid.UUID, amount valueobjects.Money, transactionID uuid.UUID, newBalance valueobjects.Money) *WalletFundsAdded {
	return &WalletFundsAdded{
		BaseEvent:     newBaseEvent(EventTypeWalletFundsAdded, walletID),
		Amount:        amount,
		TransactionID: transactionID,
		NewBalance:    newBalance,
	}
}

// WalletDebited is raised when a transfer debits a wallet.
type WalletDebited struct {
	BaseEvent
	Amount        valueobjects.Money
	TransactionID uuid.UUID
	NewBalance    valueobjects.Money
}

func NewWalletDebited(walletID uuid.UUID, amount valueobjects.Money, transactionID uuid.UUID, newBalance valueobjects.Money) *WalletDebited {
	return &WalletDebited{
		BaseEvent:     newBaseEvent(EventTypeWalletDebited, walletID),
		Amount:        amount,
		TransactionID: transactionID,
		NewBalance:    newBalance,
	}
}

// WalletCredited is raised when a transfer credits a wallet.
type WalletCredited struct {
	BaseEvent
	Amount        valueobjects.Money
	TransactionID uuid.UUID
	NewBalance    valueobjects.Money
}

func NewWalletCredited(walletID uuid.UUID, amount valueobjects.Money, transactionID uuid.UUID, newBalance valueobjects.Money) *WalletCredited {
	return &WalletCredited{
		BaseEvent:     newBaseEvent(EventTypeWalletCredited, walletID),
		Amount:        amount,
		TransactionID: transactionID,
		NewBalance:    newBalance,
	}
}

// ===== Transfer Events =====

// TransferCompleted is raised when a transfer saga commits fully.
type TransferCompleted struct {
	BaseEvent
	SourceWalletID      uuid.UUID
	DestinationWalletID uuid.UUID
	Amount              valueobjects.Money
	IdempotencyKey      string
}

func NewTransferCompleted(transactionID, sourceWalletID, destinationWalletID uuid.UUID, amount valueobjects.Money, idempotencyKey string) *TransferCompleted {
	return &TransferCompleted{
		BaseEvent:           newBaseEvent(EventTypeTransferCompleted, transactionID),
		SourceWalletID:      sourceWalletID,
		DestinationWalletID: destinationWalletID,
		Amount:              amount,
		IdempotencyKey:      idempotencyKey,
	}
}

// TransferFailed is raised when a transfer terminates in FAILED.
type TransferFailed struct {
	BaseEvent
	SourceWalletID      uuid.UUID
	DestinationWalletID uuid.UUID
	Amount              valueobjects.Money
	ErrorCode           string
	Compensated         bool
}

func NewTransferFailed(transactionID, sourceWalletID, destinationWalletID uuid.UUID, amount valueobjects.Money, errorCode string, compensated bool) *TransferFailed {
	return &TransferFailed{
		BaseEvent:           newBaseEvent(EventTypeTransferFailed, transactionID),
		SourceWalletID:      sourceWalletID,
		DestinationWalletID: destinationWalletID,
		Amount:              amount,
		ErrorCode:           errorCode,
		Compensated:         compensated,
	}
}

// TransferCompensationFailed is raised when a compensation step could not run.
// Consumers should route this to an operational alert for reconciliation.
type TransferCompensationFailed struct {
	BaseEvent
	Step   string
	Reason string
}

func NewTransferCompensationFailed(transactionID uuid.UUID, step, reason string) *TransferCompensationFailed {
	return &TransferCompensationFailed{
		BaseEvent: newBaseEvent(EventTypeTransferCompensated, transactionID),
		Step:      step,
		Reason:    reason,
	}
}
