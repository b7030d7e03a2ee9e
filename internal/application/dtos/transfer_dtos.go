// Package dtos contains data transfer objects between the application layer
// and its callers. DTOs are plain serializable structs; mapping from domain
// entities happens in mappers.go.
package dtos

import "time"

// TransferCommand is the input for executing a transfer.
// Amounts travel as decimal strings to avoid float drift.
type TransferCommand struct {
	UserID              string `json:"userId"`
	SourceWalletID      string `json:"sourceWalletId"`
	DestinationWalletID string `json:"destinationWalletId"`
	Amount              string `json:"amount"`
	Description         string `json:"description,omitempty"`
	IdempotencyKey      string `json:"idempotencyKey,omitempty"`
	ExternalReferenceID string `json:"externalReferenceId,omitempty"`
}

// TransferMetadataDTO is the metadata block of a transfer response.
type TransferMetadataDTO struct {
	TransferState       string     `json:"transferState"`
	IdempotencyKey      string     `json:"idempotencyKey"`
	ExternalReferenceID string     `json:"externalReferenceId,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
}

// TransferResultDTO is the wire response for a transfer.
// Replays with the same idempotency key return a byte-equal body.
type TransferResultDTO struct {
	ID                  string              `json:"id"`
	Amount              string              `json:"amount"`
	SourceWalletID      string              `json:"sourceWalletId"`
	DestinationWalletID string              `json:"destinationWalletId"`
	Description         string              `json:"description,omitempty"`
	Status              string              `json:"status"`
	CreatedAt           time.Time           `json:"createdAt"`
	Metadata            TransferMetadataDTO `json:"metadata"`
}

// TransactionDTO is the full transaction representation used by lookups.
type TransactionDTO struct {
	ID                  string                 `json:"id"`
	Kind                string                 `json:"kind"`
	Status              string                 `json:"status"`
	TransferState       string                 `json:"transferState,omitempty"`
	Amount              string                 `json:"amount"`
	SourceWalletID      string                 `json:"sourceWalletId,omitempty"`
	DestinationWalletID string                 `json:"destinationWalletId,omitempty"`
	Description         string                 `json:"description,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	IdempotencyKey      string                 `json:"idempotencyKey,omitempty"`
	ExternalReferenceID string                 `json:"externalReferenceId,omitempty"`
	RetryCount          int                    `json:"retryCount"`
	ErrorCode           string                 `json:"errorCode,omitempty"`
	ErrorMessage        string                 `json:"errorMessage,omitempty"`
	CreatedAt           time.Time              `json:"createdAt"`
	ProcessedAt         *time.Time             `json:"processedAt,omitempty"`
	CompletedAt         *time.Time             `json:"completedAt,omitempty"`
	FailedAt            *time.Time             `json:"failedAt,omitempty"`
}

// IdempotencyLookupDTO answers "has this key been used, and for what".
type IdempotencyLookupDTO struct {
	Exists      bool            `json:"exists"`
	Transaction *TransactionDTO `json:"transaction,omitempty"`
}
