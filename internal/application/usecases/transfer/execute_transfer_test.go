package transfer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/fundflow/internal/application/dtos"
	"github.com/Haleralex/fundflow/internal/domain/entities"
	domainErrors "github.com/Haleralex/fundflow/internal/domain/errors"
	"github.com/Haleralex/fundflow/internal/domain/events"
)

func transferCmd(userID uuid.UUID, source, destination *entities.Wallet, amount, key string) dtos.TransferCommand {
	return dtos.TransferCommand{
		UserID:              userID.String(),
		SourceWalletID:      source.ID().String(),
		DestinationWalletID: destination.ID().String(),
		Amount:              amount,
		Description:         "dinner split",
		IdempotencyKey:      key,
	}
}

func TestExecuteTransfer_HappyPath(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "500.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "100.00")

	dto, err := h.uc.Execute(context.Background(), transferCmd(userID, source, destination, "120.50", "key-1"))

	require.NoError(t, err)
	assert.Equal(t, "120.50", dto.Amount)
	assert.Equal(t, string(entities.TransactionStatusCompleted), dto.Status)
	assert.Equal(t, string(entities.TransferStateCompleted), dto.Metadata.TransferState)
	assert.Equal(t, "key-1", dto.Metadata.IdempotencyKey)
	require.NotNil(t, dto.Metadata.CompletedAt)

	// Funds moved exactly once.
	assert.Equal(t, "379.50", h.wallets.balanceOf(source.ID()))
	assert.Equal(t, "220.50", h.wallets.balanceOf(destination.ID()))

	// Durable row carries snapshots from both sides.
	tx, err := h.txRepo.FindByIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, err)
	require.NotNil(t, tx.SourceBalanceBefore())
	assert.Equal(t, "500.00", tx.SourceBalanceBefore().Decimal())
	assert.Equal(t, "379.50", tx.SourceBalanceAfter().Decimal())
	assert.Equal(t, "100.00", tx.DestinationBalanceBefore().Decimal())
	assert.Equal(t, "220.50", tx.DestinationBalanceAfter().Decimal())
	assert.Nil(t, tx.ReservedAmount())

	// Limit usage committed.
	limitsDTO, err := h.limits.GetLimits(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "120.50", limitsDTO.DailyUsed)
	assert.Equal(t, "120.50", limitsDTO.MonthlyUsed)

	// Result cached for replays; completion events published.
	payload, err := h.store.GetResult(context.Background(), "key-1")
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
	assert.Contains(t, h.publisher.types(), events.EventTypeTransferCompleted)
	assert.Contains(t, h.publisher.types(), events.EventTypeWalletDebited)
	assert.Contains(t, h.publisher.types(), events.EventTypeWalletCredited)

	// Cache entries bumped for both wallets.
	entry, err := h.cache.Get(context.Background(), source.ID())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(37950), entry.Cents)
}

func TestExecuteTransfer_ReplaySameKeyIsByteEqual(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "500.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")
	cmd := transferCmd(userID, source, destination, "50.00", "key-replay")

	first, err := h.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	second, err := h.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	// The wire forms are byte-equal.
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
	// No second debit.
	assert.Equal(t, "450.00", h.wallets.balanceOf(source.ID()))
	assert.Equal(t, "50.00", h.wallets.balanceOf(destination.ID()))
}

func TestExecuteTransfer_AutoKeyDeduplicatesIdenticalRequests(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "500.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")
	cmd := transferCmd(userID, source, destination, "25.00", "")

	_, err := h.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)
	_, err = h.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, "475.00", h.wallets.balanceOf(source.ID()))
	assert.Equal(t, "25.00", h.wallets.balanceOf(destination.ID()))
}

func TestExecuteTransfer_InsufficientBalance(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "30.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")

	_, err := h.uc.Execute(context.Background(), transferCmd(userID, source, destination, "100.00", "key-poor"))

	require.Error(t, err)
	assert.Equal(t, domainErrors.KindInsufficientBalance, domainErrors.KindOf(err))

	// Nothing moved, nothing committed to the windows.
	assert.Equal(t, "30.00", h.wallets.balanceOf(source.ID()))
	assert.Equal(t, "0.00", h.wallets.balanceOf(destination.ID()))
	limitsDTO, err := h.limits.GetLimits(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", limitsDTO.DailyUsed)

	// Durable row records the failure.
	tx, err := h.txRepo.FindByIdempotencyKey(context.Background(), "key-poor")
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusFailed, tx.Status())
	require.NotNil(t, tx.ErrorDetail())
	assert.Equal(t, "insufficient_balance", tx.ErrorDetail().Code)
	assert.Equal(t, stepReserveFunds, tx.ErrorDetail().Step)
}

func TestExecuteTransfer_FailureReplayServesSameVerdict(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "30.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")
	cmd := transferCmd(userID, source, destination, "100.00", "key-failed")

	_, err := h.uc.Execute(context.Background(), cmd)
	require.Error(t, err)

	_, err = h.uc.Execute(context.Background(), cmd)
	require.Error(t, err)
	assert.Equal(t, domainErrors.KindInsufficientBalance, domainErrors.KindOf(err))
	assert.Equal(t, "insufficient_balance", domainErrors.CodeOf(err))
}

func TestExecuteTransfer_CurrencyMismatch(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "100.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "EUR", "0.00")

	_, err := h.uc.Execute(context.Background(), transferCmd(userID, source, destination, "10.00", "key-fx"))

	require.Error(t, err)
	assert.Equal(t, domainErrors.KindCurrencyMismatch, domainErrors.KindOf(err))
	assert.Equal(t, "100.00", h.wallets.balanceOf(source.ID()))
}

func TestExecuteTransfer_LimitExceeded(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "50000.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")

	_, err := h.uc.Execute(context.Background(), transferCmd(userID, source, destination, "10000.01", "key-limit"))

	require.Error(t, err)
	assert.Equal(t, domainErrors.KindLimitExceeded, domainErrors.KindOf(err))
	assert.Equal(t, "50000.00", h.wallets.balanceOf(source.ID()))

	// The rejection happens before a transaction row exists.
	_, findErr := h.txRepo.FindByIdempotencyKey(context.Background(), "key-limit")
	assert.True(t, domainErrors.IsNotFound(findErr))
}

func TestExecuteTransfer_SameWalletRejected(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "100.00")

	_, err := h.uc.Execute(context.Background(), dtos.TransferCommand{
		UserID:              userID.String(),
		SourceWalletID:      source.ID().String(),
		DestinationWalletID: source.ID().String(),
		Amount:              "10.00",
	})

	require.Error(t, err)
	assert.Equal(t, "same_wallet", domainErrors.CodeOf(err))
}

func TestExecuteTransfer_ForeignSourceWalletNotFound(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	source := seedWallet(t, h.wallets, owner, "USD", "100.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")

	_, err := h.uc.Execute(context.Background(), transferCmd(uuid.New(), source, destination, "10.00", "key-foreign"))

	require.Error(t, err)
	assert.True(t, domainErrors.IsNotFound(err))
}

func TestExecuteTransfer_InactiveDestinationIsNotFoundOnRunAndReplay(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "100.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")
	destination.Deactivate()
	cmd := transferCmd(userID, source, destination, "10.00", "key-inactive")

	_, err := h.uc.Execute(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, domainErrors.IsNotFound(err))
	assert.Equal(t, "invalid_wallet", domainErrors.CodeOf(err))

	// Replaying the stored verdict classifies the failure the same way.
	_, err = h.uc.Execute(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, domainErrors.IsNotFound(err))
	assert.Equal(t, "invalid_wallet", domainErrors.CodeOf(err))
}

func TestExecuteTransfer_TransientValidationFailureRetriesInRun(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "100.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")

	// The destination read fails twice; the validation retry budget absorbs
	// both and the transfer completes in one run.
	h.wallets.injectFindFailure(destination.ID(),
		domainErrors.NewInfra("db_error", "read failed", nil), 2)

	dto, err := h.uc.Execute(context.Background(), transferCmd(userID, source, destination, "40.00", "key-flaky"))

	require.NoError(t, err)
	assert.Equal(t, string(entities.TransactionStatusCompleted), dto.Status)
	assert.Equal(t, "60.00", h.wallets.balanceOf(source.ID()))
	assert.Equal(t, "40.00", h.wallets.balanceOf(destination.ID()))
}

func TestExecuteTransfer_InFlightKeyConflicts(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "100.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")

	// Another request holds the key with an in-flight row.
	pending, err := entities.NewTransferTransaction(source.ID(), destination.ID(), "key-busy", usd(t, "10.00"), "")
	require.NoError(t, err)
	require.NoError(t, h.txRepo.Save(context.Background(), pending))

	_, err = h.uc.Execute(context.Background(), transferCmd(userID, source, destination, "10.00", "key-busy"))

	require.Error(t, err)
	assert.True(t, domainErrors.IsConflict(err))
}

func TestExecuteTransfer_KeyReuseWithDifferentPayloadConflicts(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "500.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")

	_, err := h.uc.Execute(context.Background(), transferCmd(userID, source, destination, "50.00", "key-reuse"))
	require.NoError(t, err)

	// Same key, different amount.
	_, err = h.uc.Execute(context.Background(), transferCmd(userID, source, destination, "60.00", "key-reuse"))
	require.Error(t, err)
	assert.True(t, domainErrors.IsConflict(err))
	assert.Equal(t, "450.00", h.wallets.balanceOf(source.ID()))
}

func TestExecuteTransfer_LockTimeoutRetriesAndSucceeds(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "100.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")

	// First lease attempt on the source fails, the step retry succeeds.
	h.locks.failFor[source.ID()] = 1

	dto, err := h.uc.Execute(context.Background(), transferCmd(userID, source, destination, "40.00", "key-lock"))

	require.NoError(t, err)
	assert.Equal(t, string(entities.TransactionStatusCompleted), dto.Status)
	assert.Equal(t, "60.00", h.wallets.balanceOf(source.ID()))

	tx, err := h.txRepo.FindByIdempotencyKey(context.Background(), "key-lock")
	require.NoError(t, err)
	require.NotNil(t, tx.SagaState())
	assert.GreaterOrEqual(t, tx.SagaState().RetryCount, 1)
}

func TestExecuteTransfer_CreditFailureCompensatesDebit(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "200.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")

	// Credit fails past the step retry budget (first attempt plus retries).
	h.wallets.injectAdjustFailure(destination.ID(),
		domainErrors.NewInfra("db_error", "write failed", nil), 10)

	_, err := h.uc.Execute(context.Background(), transferCmd(userID, source, destination, "75.00", "key-comp"))

	require.Error(t, err)
	assert.Equal(t, domainErrors.KindInfra, domainErrors.KindOf(err))

	// Debit undone; both balances back to the initial state.
	assert.Equal(t, "200.00", h.wallets.balanceOf(source.ID()))
	assert.Equal(t, "0.00", h.wallets.balanceOf(destination.ID()))

	tx, err := h.txRepo.FindByIdempotencyKey(context.Background(), "key-comp")
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusFailed, tx.Status())
	assert.Equal(t, entities.TransferStateCompensated, tx.TransferState())
	require.NotNil(t, tx.ErrorDetail())
	assert.Equal(t, stepCreditDestination, tx.ErrorDetail().Step)

	assert.Contains(t, h.publisher.types(), events.EventTypeTransferFailed)

	// No limit usage left behind.
	limitsDTO, err := h.limits.GetLimits(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", limitsDTO.DailyUsed)
}

func TestExecuteTransfer_TransientFailureIsRetryableWithSameKey(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "200.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")
	cmd := transferCmd(userID, source, destination, "75.00", "key-retry")

	// Exactly the first attempt plus the step retry budget fails; the next
	// saga run goes through.
	h.wallets.injectAdjustFailure(destination.ID(),
		domainErrors.NewInfra("db_error", "write failed", nil), 3)

	_, err := h.uc.Execute(context.Background(), cmd)
	require.Error(t, err)

	// Infra failures are not cached as verdicts; the same key runs again.
	_, err = h.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, "125.00", h.wallets.balanceOf(source.ID()))
	assert.Equal(t, "75.00", h.wallets.balanceOf(destination.ID()))

	tx, err := h.txRepo.FindByIdempotencyKey(context.Background(), "key-retry")
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusCompleted, tx.Status())
	assert.Equal(t, 1, tx.RetryCount())
}

func TestExecuteTransfer_InvalidAmounts(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	source := seedWallet(t, h.wallets, userID, "USD", "100.00")
	destination := seedWallet(t, h.wallets, uuid.New(), "USD", "0.00")

	for _, amount := range []string{"0.00", "-10.00", "1.005", "abc"} {
		cmd := transferCmd(userID, source, destination, amount, "")
		_, err := h.uc.Execute(context.Background(), cmd)
		require.Error(t, err, "amount %q", amount)
		assert.Equal(t, "invalid_amount", domainErrors.CodeOf(err), "amount %q", amount)
	}
	assert.Equal(t, "100.00", h.wallets.balanceOf(source.ID()))
}
