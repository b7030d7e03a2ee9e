// Package errors defines domain-specific error types for the transfer core.
// Using typed errors (instead of strings) allows clients to handle specific cases.
//
// Every public operation of the core returns errors classified by Kind; the
// HTTP adapter maps each Kind to a status code and the saga uses Kind to
// decide retryability.
//
// Pattern: Sentinel Errors + Custom Error Types
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a domain error. It is the error sum the core surfaces.
type Kind string

const (
	KindInvalidRequest      Kind = "invalid_request"
	KindNotFound            Kind = "not_found"
	KindCurrencyMismatch    Kind = "currency_mismatch"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindLimitExceeded       Kind = "limit_exceeded"
	KindConflict            Kind = "conflict"
	KindLockTimeout         Kind = "lock_timeout"
	KindInfra               Kind = "infra"
	KindCompensation        Kind = "compensation_failure"
)

// Retryable reports whether errors of this kind are transient.
// Business rejections are terminal; infrastructure failures are not.
func (k Kind) Retryable() bool {
	switch k {
	case KindLockTimeout, KindInfra:
		return true
	default:
		return false
	}
}

// Common sentinel errors for domain validation
var (
	ErrEntityNotFound      = errors.New("entity not found")
	ErrEntityAlreadyExists = errors.New("entity already exists")

	// Wallet errors
	ErrWalletNotActive     = errors.New("wallet is not active")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// Transaction errors
	ErrInvalidTransactionKind      = errors.New("invalid transaction kind")
	ErrTransactionAlreadyProcessed = errors.New("transaction already processed")
	ErrDuplicateTransaction        = errors.New("duplicate transaction detected")

	// Limit errors
	ErrDailyLimitExceeded   = errors.New("daily limit exceeded")
	ErrMonthlyLimitExceeded = errors.New("monthly limit exceeded")
)

// DomainError is the error type every public operation of the core returns.
// It carries the Kind classification, a machine-readable code and an optional cause.
type DomainError struct {
	Kind    Kind   // Classification for mapping and retry decisions
	Code    string // Machine-readable error code (e.g., "insufficient_balance")
	Message string // Human-readable message
	Err     error  // Underlying error (for error chains)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the error is transient.
func (e *DomainError) Retryable() bool {
	return e.Kind.Retryable()
}

// New creates a domain error of the given kind.
func New(kind Kind, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

// Wrap creates a domain error of the given kind around a cause.
func Wrap(kind Kind, code, message string, err error) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message, Err: err}
}

// Constructors for the common kinds. Codes are stable wire values.

func NewInvalidRequest(code, message string) *DomainError {
	return New(KindInvalidRequest, code, message)
}

func NewNotFound(message string) *DomainError {
	return Wrap(KindNotFound, "not_found", message, ErrEntityNotFound)
}

func NewCurrencyMismatch(source, destination string) *DomainError {
	return New(KindCurrencyMismatch, "currency_mismatch",
		fmt.Sprintf("currency mismatch: source=%s, destination=%s", source, destination))
}

func NewInsufficientBalance(walletID string) *DomainError {
	return Wrap(KindInsufficientBalance, "insufficient_balance",
		fmt.Sprintf("insufficient balance on wallet %s", walletID), ErrInsufficientBalance)
}

func NewLimitExceeded(window, message string) *DomainError {
	return New(KindLimitExceeded, "limit_exceeded", fmt.Sprintf("%s limit exceeded: %s", window, message))
}

func NewConflict(message string) *DomainError {
	return New(KindConflict, "conflict", message)
}

func NewLockTimeout(resource string) *DomainError {
	return New(KindLockTimeout, "lock_timeout", fmt.Sprintf("could not acquire lock on %s", resource))
}

func NewInfra(code, message string, err error) *DomainError {
	return Wrap(KindInfra, code, message, err)
}

func NewCompensationFailure(step string, err error) *DomainError {
	return Wrap(KindCompensation, "compensation_failure",
		fmt.Sprintf("compensation of step %s failed", step), err)
}

// ValidationError represents validation failures with field-level details.
type ValidationError struct {
	Field   string // Field name that failed validation
	Message string // What went wrong
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// Helper functions for common error checking

// KindOf extracts the Kind of an error, or KindInfra when the error is not a
// DomainError (unknown failures are treated as infrastructure).
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		return KindInvalidRequest
	}
	if errors.Is(err, ErrEntityNotFound) {
		return KindNotFound
	}
	return KindInfra
}

// CodeOf extracts the machine-readable code of an error.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		return "invalid_request"
	}
	if errors.Is(err, ErrEntityNotFound) {
		return "not_found"
	}
	return "internal_error"
}

// KindForCode maps a stored error code back to its Kind. Used when replaying
// a persisted failure verdict.
func KindForCode(code string) Kind {
	switch code {
	case "insufficient_balance":
		return KindInsufficientBalance
	case "currency_mismatch":
		return KindCurrencyMismatch
	case "limit_exceeded":
		return KindLimitExceeded
	case "not_found", "invalid_wallet":
		return KindNotFound
	case "conflict":
		return KindConflict
	case "lock_timeout":
		return KindLockTimeout
	case "compensation_failure":
		return KindCompensation
	default:
		if strings.HasPrefix(code, "invalid_") {
			return KindInvalidRequest
		}
		return KindInfra
	}
}

// IsNotFound checks if an error is an "entity not found" error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConflict checks if an error is an idempotency conflict.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsRetryable reports whether the error is worth retrying.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
