package entities

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/fundflow/internal/domain/errors"
)

func newTestTransfer(t *testing.T) *Transaction {
	t.Helper()
	tx, err := NewTransferTransaction(
		uuid.New(), uuid.New(),
		"key-"+uuid.New().String(),
		mustUSD(t, "25.00"),
		"lunch split",
	)
	require.NoError(t, err)
	return tx
}

func TestNewTransferTransaction(t *testing.T) {
	t.Run("StartsPendingInitiated", func(t *testing.T) {
		tx := newTestTransfer(t)

		assert.Equal(t, TransactionKindTransfer, tx.Kind())
		assert.Equal(t, TransactionStatusPending, tx.Status())
		assert.Equal(t, TransferStateInitiated, tx.TransferState())
		assert.True(t, tx.IsInFlight())
		assert.NotNil(t, tx.SourceWalletID())
		assert.NotNil(t, tx.DestinationWalletID())
	})

	t.Run("RequiresIdempotencyKey", func(t *testing.T) {
		_, err := NewTransferTransaction(uuid.New(), uuid.New(), "", mustUSD(t, "1.00"), "")

		assert.True(t, errors.IsValidation(err))
	})

	t.Run("RejectsZeroAmount", func(t *testing.T) {
		_, err := NewTransferTransaction(uuid.New(), uuid.New(), "k", mustUSD(t, "0"), "")

		assert.Equal(t, errors.KindInvalidRequest, errors.KindOf(err))
	})
}

func TestNewDepositTransaction(t *testing.T) {
	t.Run("BornCompleted", func(t *testing.T) {
		tx, err := NewDepositTransaction(uuid.New(), mustUSD(t, "50.00"), "top up")

		require.NoError(t, err)
		assert.Equal(t, TransactionKindDeposit, tx.Kind())
		assert.True(t, tx.IsCompleted())
		assert.NotNil(t, tx.CompletedAt())
		assert.Nil(t, tx.SourceWalletID())
	})

	t.Run("RejectsZeroAmount", func(t *testing.T) {
		_, err := NewDepositTransaction(uuid.New(), mustUSD(t, "0"), "")

		assert.Equal(t, errors.KindInvalidRequest, errors.KindOf(err))
	})
}

func TestTransaction_StatusMachine(t *testing.T) {
	t.Run("PendingToProcessingToCompleted", func(t *testing.T) {
		tx := newTestTransfer(t)

		require.NoError(t, tx.StartProcessing())
		assert.True(t, tx.IsProcessing())
		assert.NotNil(t, tx.ProcessedAt())

		require.NoError(t, tx.MarkCompleted())
		assert.True(t, tx.IsCompleted())
		assert.Equal(t, TransferStateCompleted, tx.TransferState())
	})

	t.Run("CannotProcessTwice", func(t *testing.T) {
		tx := newTestTransfer(t)
		require.NoError(t, tx.StartProcessing())

		assert.Error(t, tx.StartProcessing())
	})

	t.Run("CannotCompletePending", func(t *testing.T) {
		tx := newTestTransfer(t)

		assert.Error(t, tx.MarkCompleted())
	})

	t.Run("CancelOnlyPending", func(t *testing.T) {
		tx := newTestTransfer(t)
		require.NoError(t, tx.Cancel())
		assert.True(t, tx.IsFinal())

		other := newTestTransfer(t)
		require.NoError(t, other.StartProcessing())
		assert.Error(t, other.Cancel())
	})

	t.Run("MarkFailedRecordsDetail", func(t *testing.T) {
		tx := newTestTransfer(t)
		require.NoError(t, tx.StartProcessing())

		require.NoError(t, tx.MarkFailed(ErrorDetail{
			Code:    "insufficient_balance",
			Message: "insufficient balance",
			Step:    "debit_source",
		}, true))

		assert.True(t, tx.IsFailed())
		assert.Equal(t, TransferStateCompensated, tx.TransferState())
		assert.Equal(t, "insufficient_balance", tx.ErrorDetail().Code)
		assert.False(t, tx.ErrorDetail().Timestamp.IsZero())
		assert.NotNil(t, tx.FailedAt())
	})

	t.Run("FinalStatusBlocksMutations", func(t *testing.T) {
		tx := newTestTransfer(t)
		require.NoError(t, tx.StartProcessing())
		require.NoError(t, tx.MarkCompleted())

		assert.ErrorIs(t, tx.SetExternalReference("ref"), errors.ErrTransactionAlreadyProcessed)
		assert.ErrorIs(t, tx.AddMetadata("k", "v"), errors.ErrTransactionAlreadyProcessed)
		assert.ErrorIs(t, tx.MarkFailed(ErrorDetail{Code: "x"}, false), errors.ErrTransactionAlreadyProcessed)
	})
}

func TestTransaction_AdvanceState(t *testing.T) {
	t.Run("ForwardIsMonotonic", func(t *testing.T) {
		tx := newTestTransfer(t)
		require.NoError(t, tx.StartProcessing())

		require.NoError(t, tx.AdvanceState(TransferStateValidationComplete))
		require.NoError(t, tx.AdvanceState(TransferStateFundsReserved))
		require.NoError(t, tx.AdvanceState(TransferStateDebitComplete))

		err := tx.AdvanceState(TransferStateValidationComplete)
		assert.Equal(t, errors.KindInvalidRequest, errors.KindOf(err))
		assert.Equal(t, TransferStateDebitComplete, tx.TransferState())
	})

	t.Run("CompensationPathAllowed", func(t *testing.T) {
		tx := newTestTransfer(t)
		require.NoError(t, tx.StartProcessing())
		require.NoError(t, tx.AdvanceState(TransferStateDebitComplete))

		tx.BeginCompensation()

		assert.Equal(t, TransferStateCompensationPending, tx.TransferState())
	})
}

func TestTransaction_Reservation(t *testing.T) {
	tx := newTestTransfer(t)
	expiry := time.Now().Add(5 * time.Minute)

	require.NoError(t, tx.Reserve(mustUSD(t, "25.00"), expiry))
	require.NotNil(t, tx.ReservedAmount())
	assert.Equal(t, "25.00", tx.ReservedAmount().Decimal())

	tx.ClearReservation()
	assert.Nil(t, tx.ReservedAmount())
	assert.Nil(t, tx.ReservationExpiry())
}

func TestTransaction_Retry(t *testing.T) {
	failWith := func(t *testing.T, code string) *Transaction {
		tx := newTestTransfer(t)
		require.NoError(t, tx.StartProcessing())
		require.NoError(t, tx.MarkFailed(ErrorDetail{Code: code, Message: code}, false))
		return tx
	}

	t.Run("TransientFailureIsRetryable", func(t *testing.T) {
		tx := failWith(t, "lock_timeout")

		assert.True(t, tx.IsRetryable(3))
		require.NoError(t, tx.PrepareRetry(3))

		assert.True(t, tx.IsPending())
		assert.Equal(t, TransferStateInitiated, tx.TransferState())
		assert.Nil(t, tx.ErrorDetail())
		assert.Nil(t, tx.FailedAt())
		assert.Equal(t, 1, tx.RetryCount())
	})

	t.Run("BusinessRejectionIsTerminal", func(t *testing.T) {
		for _, code := range []string{"insufficient_balance", "limit_exceeded", "currency_mismatch", "invalid_wallet"} {
			tx := failWith(t, code)
			assert.False(t, tx.IsRetryable(3), code)
			assert.Error(t, tx.PrepareRetry(3), code)
		}
	})

	t.Run("RetryBudgetExhausts", func(t *testing.T) {
		tx := failWith(t, "lock_timeout")
		require.NoError(t, tx.PrepareRetry(2))
		require.NoError(t, tx.StartProcessing())
		require.NoError(t, tx.MarkFailed(ErrorDetail{Code: "lock_timeout"}, false))
		require.NoError(t, tx.PrepareRetry(2))
		require.NoError(t, tx.StartProcessing())
		require.NoError(t, tx.MarkFailed(ErrorDetail{Code: "lock_timeout"}, false))

		assert.False(t, tx.IsRetryable(2))
	})

	t.Run("CompletedIsNotRetryable", func(t *testing.T) {
		tx := newTestTransfer(t)
		require.NoError(t, tx.StartProcessing())
		require.NoError(t, tx.MarkCompleted())

		assert.False(t, tx.IsRetryable(3))
	})
}

func TestTransaction_SagaStateRoundTrip(t *testing.T) {
	tx := newTestTransfer(t)
	tx.SetSagaState(SagaState{
		CurrentStep:    2,
		CompletedSteps: []string{"validate_transfer", "reserve_funds"},
		RetryCount:     1,
	})

	raw, err := tx.SagaStateJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "reserve_funds")

	restored, err := ReconstructTransaction(
		tx.ID(), tx.Kind(), tx.Status(), tx.TransferState(), tx.Amount(),
		tx.SourceWalletID(), tx.DestinationWalletID(), nil,
		tx.Description(), nil, tx.IdempotencyKey(), "", 0, nil, raw,
		nil, nil, nil, nil, nil, nil,
		tx.CreatedAt(), tx.UpdatedAt(), nil, nil, nil,
	)
	require.NoError(t, err)
	require.NotNil(t, restored.SagaState())
	assert.Equal(t, 2, restored.SagaState().CurrentStep)
	assert.Equal(t, []string{"validate_transfer", "reserve_funds"}, restored.SagaState().CompletedSteps)
}
