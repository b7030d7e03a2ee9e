package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_Retryable(t *testing.T) {
	retryable := []Kind{KindLockTimeout, KindInfra}
	terminal := []Kind{
		KindInvalidRequest, KindNotFound, KindCurrencyMismatch,
		KindInsufficientBalance, KindLimitExceeded, KindConflict,
		KindCompensation,
	}

	for _, k := range retryable {
		assert.True(t, k.Retryable(), string(k))
	}
	for _, k := range terminal {
		assert.False(t, k.Retryable(), string(k))
	}
}

func TestDomainError_ErrorAndUnwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewInfra("infra", "publish failed", cause)

	assert.Equal(t, "[infra] publish failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	t.Run("DomainError", func(t *testing.T) {
		assert.Equal(t, KindInsufficientBalance, KindOf(NewInsufficientBalance("w1")))
		assert.Equal(t, KindConflict, KindOf(NewConflict("dup")))
	})

	t.Run("WrappedDomainError", func(t *testing.T) {
		wrapped := stderrors.Join(stderrors.New("outer"), NewLockTimeout("wallet:1"))
		assert.Equal(t, KindLockTimeout, KindOf(wrapped))
	})

	t.Run("ValidationError", func(t *testing.T) {
		assert.Equal(t, KindInvalidRequest, KindOf(ValidationError{Field: "amount", Message: "required"}))
	})

	t.Run("SentinelNotFound", func(t *testing.T) {
		assert.Equal(t, KindNotFound, KindOf(ErrEntityNotFound))
	})

	t.Run("UnknownDefaultsToInfra", func(t *testing.T) {
		assert.Equal(t, KindInfra, KindOf(stderrors.New("mystery")))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "insufficient_balance", CodeOf(NewInsufficientBalance("w1")))
	assert.Equal(t, "not_found", CodeOf(NewNotFound("wallet missing")))
	assert.Equal(t, "invalid_request", CodeOf(ValidationError{Field: "x"}))
	assert.Equal(t, "internal_error", CodeOf(stderrors.New("mystery")))
}

func TestKindForCode(t *testing.T) {
	cases := map[string]Kind{
		"insufficient_balance": KindInsufficientBalance,
		"currency_mismatch":    KindCurrencyMismatch,
		"limit_exceeded":       KindLimitExceeded,
		"not_found":            KindNotFound,
		"invalid_wallet":       KindNotFound,
		"conflict":             KindConflict,
		"lock_timeout":         KindLockTimeout,
		"compensation_failure": KindCompensation,
		"invalid_amount":       KindInvalidRequest,
		"something_else":       KindInfra,
	}

	for code, want := range cases {
		assert.Equal(t, want, KindForCode(code), code)
	}
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound("gone")))
	assert.True(t, IsConflict(NewConflict("dup")))
	assert.True(t, IsRetryable(NewLockTimeout("wallet:1")))
	assert.False(t, IsRetryable(NewLimitExceeded("daily", "over budget")))
	assert.True(t, IsValidation(ValidationError{Field: "amount"}))
	assert.False(t, IsValidation(NewConflict("dup")))
}
