package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/fundflow/internal/application/dtos"
	"github.com/Haleralex/fundflow/internal/application/ports"
	"github.com/Haleralex/fundflow/internal/application/saga"
	"github.com/Haleralex/fundflow/internal/application/usecases/limits"
	"github.com/Haleralex/fundflow/internal/application/usecases/wallet"
	"github.com/Haleralex/fundflow/internal/domain/entities"
	domainErrors "github.com/Haleralex/fundflow/internal/domain/errors"
	"github.com/Haleralex/fundflow/internal/domain/events"
	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
	"github.com/Haleralex/fundflow/internal/pkg/metrics"
)

// Saga step names. These appear in persisted saga state and error details.
const (
	stepValidateTransfer  = "validate_transfer"
	stepReserveFunds      = "reserve_funds"
	stepDebitSource       = "debit_source"
	stepCreditDestination = "credit_destination"
	stepCommitLimitUsage  = "commit_limit_usage"
	stepFinalizeTransfer  = "finalize_transfer"
)

// Deps wires the transfer executor.
type Deps struct {
	Wallets      ports.WalletRepository
	Transactions ports.TransactionRepository
	UnitOfWork   ports.UnitOfWork
	Locks        ports.WalletLockManager
	BalanceCache ports.BalanceCache
	Gate         *IdempotencyGate
	Limits       *limits.Service
	Publisher    ports.EventPublisher
	Logger       *slog.Logger

	LockTTL        time.Duration // wallet lease held across a balance mutation
	LockWait       time.Duration // how long to wait for a contended lease
	ReservationTTL time.Duration // advisory reservation lifetime
	StepRetries    int           // per-step retry budget for transient errors
}

// ExecuteTransferUseCase runs a wallet-to-wallet transfer as a saga behind
// the idempotency gate.
type ExecuteTransferUseCase struct {
	deps Deps
}

func NewExecuteTransferUseCase(deps Deps) *ExecuteTransferUseCase {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = 30 * time.Second
	}
	if deps.LockWait <= 0 {
		deps.LockWait = 5 * time.Second
	}
	if deps.ReservationTTL <= 0 {
		deps.ReservationTTL = time.Minute
	}
	if deps.StepRetries <= 0 {
		deps.StepRetries = 2
	}
	return &ExecuteTransferUseCase{deps: deps}
}

// Execute runs one transfer request end to end.
func (uc *ExecuteTransferUseCase) Execute(ctx context.Context, cmd dtos.TransferCommand) (*dtos.TransferResultDTO, error) {
	userID, err := uuid.Parse(cmd.UserID)
	if err != nil {
		return nil, domainErrors.NewInvalidRequest("invalid_user_id", "userId must be a valid UUID")
	}
	sourceID, err := uuid.Parse(cmd.SourceWalletID)
	if err != nil {
		return nil, domainErrors.NewInvalidRequest("invalid_wallet_id", "sourceWalletId must be a valid UUID")
	}
	destinationID, err := uuid.Parse(cmd.DestinationWalletID)
	if err != nil {
		return nil, domainErrors.NewInvalidRequest("invalid_wallet_id", "destinationWalletId must be a valid UUID")
	}
	if sourceID == destinationID {
		return nil, domainErrors.NewInvalidRequest("same_wallet", "source and destination wallets must differ")
	}

	verdict, err := uc.deps.Gate.Check(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if verdict.CachedResult != nil {
		var dto dtos.TransferResultDTO
		if err := json.Unmarshal(verdict.CachedResult, &dto); err == nil {
			if err := guardCachedReuse(cmd, &dto); err != nil {
				return nil, err
			}
			return &dto, nil
		}
		// Corrupt cache entry: fall through to the durable row.
		verdict, err = uc.retryCheckWithoutCache(ctx, cmd, verdict)
		if err != nil {
			return nil, err
		}
	}

	if verdict.Existing != nil {
		if err := uc.guardKeyReuse(cmd, verdict.Existing); err != nil {
			return nil, err
		}
		if !verdict.Proceed {
			return uc.replayExisting(ctx, verdict)
		}
	}

	run := &transferRun{
		uc:            uc,
		userID:        userID,
		sourceID:      sourceID,
		destinationID: destinationID,
		cmd:           cmd,
	}
	return uc.execute(ctx, run, verdict)
}

// retryCheckWithoutCache re-runs the gate after a corrupt result entry.
func (uc *ExecuteTransferUseCase) retryCheckWithoutCache(ctx context.Context, cmd dtos.TransferCommand, prev *GateVerdict) (*GateVerdict, error) {
	uc.deps.Logger.WarnContext(ctx, "corrupt idempotency result entry",
		slog.String("key", prev.Key),
	)
	tx, err := uc.deps.Transactions.FindByIdempotencyKey(ctx, prev.Key)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			return &GateVerdict{Key: prev.Key, AutoKey: prev.AutoKey, Proceed: true}, nil
		}
		return nil, err
	}
	return &GateVerdict{Key: prev.Key, AutoKey: prev.AutoKey, Existing: tx}, nil
}

// guardKeyReuse rejects a key reused with different request content.
func (uc *ExecuteTransferUseCase) guardKeyReuse(cmd dtos.TransferCommand, tx *entities.Transaction) error {
	src := tx.SourceWalletID()
	dst := tx.DestinationWalletID()
	if src == nil || dst == nil ||
		src.String() != cmd.SourceWalletID || dst.String() != cmd.DestinationWalletID {
		return domainErrors.NewConflict("idempotency key was already used for a different request")
	}
	amount, err := valueobjects.NewMoney(cmd.Amount, tx.Amount().Currency())
	if err != nil || !amount.Equals(tx.Amount()) {
		return domainErrors.NewConflict("idempotency key was already used for a different request")
	}
	return nil
}

// replayExisting serves the durable outcome of a prior run.
func (uc *ExecuteTransferUseCase) replayExisting(ctx context.Context, verdict *GateVerdict) (*dtos.TransferResultDTO, error) {
	tx := verdict.Existing
	if tx.Status() == entities.TransactionStatusCompleted {
		dto := dtos.MapTransferResult(tx)
		if payload, err := json.Marshal(dto); err == nil {
			uc.deps.Gate.RecordResult(ctx, verdict.Key, payload)
		}
		return dto, nil
	}

	detail := tx.ErrorDetail()
	if detail == nil {
		return nil, domainErrors.NewConflict("transfer previously failed")
	}
	return nil, domainErrors.New(domainErrors.KindForCode(detail.Code), detail.Code, detail.Message)
}

// transferRun carries the mutable state of one saga execution.
type transferRun struct {
	uc            *ExecuteTransferUseCase
	userID        uuid.UUID
	sourceID      uuid.UUID
	destinationID uuid.UUID
	cmd           dtos.TransferCommand

	source      *entities.Wallet
	destination *entities.Wallet
	amount      valueobjects.Money
	tx          *entities.Transaction

	debitedCents  int64
	creditedCents int64
}

// execute prepares the transaction row and drives the saga to a terminal
// state, recording the verdict for replays.
func (uc *ExecuteTransferUseCase) execute(ctx context.Context, run *transferRun, verdict *GateVerdict) (*dtos.TransferResultDTO, error) {
	if err := run.prepare(ctx, verdict); err != nil {
		uc.deps.Gate.RecordFailure(ctx, verdict.Key, domainErrors.CodeOf(err), messageOf(err))
		return nil, err
	}

	coordinator := saga.NewCoordinator(run.steps(), run.persistState, uc.deps.Logger)
	outcome := coordinator.Run(ctx)

	if outcome.Err == nil {
		return uc.finishSuccess(ctx, run, verdict)
	}
	return nil, uc.finishFailure(ctx, run, verdict, outcome)
}

func (uc *ExecuteTransferUseCase) finishSuccess(ctx context.Context, run *transferRun, verdict *GateVerdict) (*dtos.TransferResultDTO, error) {
	metrics.TransfersTotal.WithLabelValues("completed").Inc()

	dto := dtos.MapTransferResult(run.tx)
	if payload, err := json.Marshal(dto); err == nil {
		uc.deps.Gate.RecordResult(ctx, verdict.Key, payload)
	}

	uc.publish(ctx,
		events.NewWalletDebited(run.sourceID, run.amount, run.tx.ID(), mustCents(run.debitedCents, run.amount)),
		events.NewWalletCredited(run.destinationID, run.amount, run.tx.ID(), mustCents(run.creditedCents, run.amount)),
		events.NewTransferCompleted(run.tx.ID(), run.sourceID, run.destinationID, run.amount, verdict.Key),
	)

	uc.deps.Logger.InfoContext(ctx, "transfer completed",
		slog.String("transactionId", run.tx.ID().String()),
		slog.String("sourceWalletId", run.sourceID.String()),
		slog.String("destinationWalletId", run.destinationID.String()),
		slog.String("amount", run.amount.Decimal()),
	)
	return dto, nil
}

func (uc *ExecuteTransferUseCase) finishFailure(ctx context.Context, run *transferRun, verdict *GateVerdict, outcome saga.Outcome) error {
	metrics.TransfersTotal.WithLabelValues("failed").Inc()
	if outcome.Compensated {
		metrics.SagaCompensationsTotal.Inc()
	}
	for _, failure := range outcome.CompensationFailures {
		metrics.CompensationFailuresTotal.Inc()
		uc.publish(ctx, events.NewTransferCompensationFailed(run.tx.ID(), failure.Step, failure.Err.Error()))
	}

	failedStep := ""
	if outcome.State.LastError != nil {
		failedStep = outcome.State.LastError.Step
	}
	code := domainErrors.CodeOf(outcome.Err)
	detail := entities.ErrorDetail{
		Code:    code,
		Message: messageOf(outcome.Err),
		Step:    failedStep,
	}
	if err := run.tx.MarkFailed(detail, outcome.Compensated); err != nil {
		uc.deps.Logger.ErrorContext(ctx, "failed to mark transaction failed",
			slog.String("transactionId", run.tx.ID().String()),
			slog.String("error", err.Error()),
		)
	}
	if err := uc.deps.Transactions.Update(ctx, run.tx); err != nil {
		uc.deps.Logger.ErrorContext(ctx, "failed to persist failed transaction",
			slog.String("transactionId", run.tx.ID().String()),
			slog.String("error", err.Error()),
		)
	}

	uc.deps.Gate.RecordFailure(ctx, verdict.Key, code, detail.Message)
	uc.publish(ctx, events.NewTransferFailed(
		run.tx.ID(), run.sourceID, run.destinationID, run.amount, code, outcome.Compensated))

	uc.deps.Logger.WarnContext(ctx, "transfer failed",
		slog.String("transactionId", run.tx.ID().String()),
		slog.String("step", failedStep),
		slog.String("code", code),
		slog.Bool("compensated", outcome.Compensated),
	)
	return outcome.Err
}

func (uc *ExecuteTransferUseCase) publish(ctx context.Context, evts ...events.DomainEvent) {
	if uc.deps.Publisher == nil {
		return
	}
	if err := uc.deps.Publisher.PublishBatch(ctx, evts); err != nil {
		uc.deps.Logger.WarnContext(ctx, "event publish failed", slog.String("error", err.Error()))
	}
}

// prepare loads the source wallet, parses the amount, projects the user's
// windows and gets the transaction row into PROCESSING, either fresh or
// re-armed for a retry. A window rejection happens before any row exists.
func (r *transferRun) prepare(ctx context.Context, verdict *GateVerdict) error {
	deps := r.uc.deps

	source, err := deps.Wallets.FindByID(ctx, r.sourceID)
	if err != nil {
		return err
	}
	if !source.OwnedBy(r.userID) {
		return domainErrors.NewNotFound("source wallet not found")
	}
	r.source = source

	amount, err := valueobjects.NewMoney(r.cmd.Amount, source.Currency())
	if err != nil {
		return domainErrors.NewInvalidRequest("invalid_amount", err.Error())
	}
	if !amount.IsPositive() {
		return domainErrors.NewInvalidRequest("invalid_amount", "amount must be positive")
	}
	r.amount = amount

	// Limit projection runs before any row is written: a request the windows
	// reject must leave no transaction behind.
	if err := deps.Limits.CheckAndProject(ctx, r.userID, r.amount); err != nil {
		return err
	}

	if verdict.Existing != nil {
		r.tx = verdict.Existing
		if err := r.tx.PrepareRetry(deps.Gate.maxRetries); err != nil {
			return err
		}
		if err := deps.Transactions.Update(ctx, r.tx); err != nil {
			return err
		}
	} else {
		tx, err := entities.NewTransferTransaction(r.sourceID, r.destinationID, verdict.Key, amount, r.cmd.Description)
		if err != nil {
			return err
		}
		if r.cmd.ExternalReferenceID != "" {
			if err := tx.SetExternalReference(r.cmd.ExternalReferenceID); err != nil {
				return err
			}
		}
		r.tx = tx
		if err := deps.Transactions.Save(ctx, tx); err != nil {
			// A concurrent request won the unique-key race.
			if domainErrors.IsConflict(err) {
				return domainErrors.NewConflict("transfer with this idempotency key is already in progress")
			}
			return err
		}
	}

	if err := r.tx.StartProcessing(); err != nil {
		return err
	}
	return deps.Transactions.Update(ctx, r.tx)
}

// persistState stores the coordinator's snapshot on the transaction row.
// Once a step has failed, the sub-state flips to COMPENSATION_PENDING so a
// crash mid-unwind is visible.
func (r *transferRun) persistState(ctx context.Context, state entities.SagaState) error {
	if state.LastError != nil &&
		r.tx.TransferState() != entities.TransferStateCompensationPending &&
		r.tx.TransferState() != entities.TransferStateCompensated {
		r.tx.BeginCompensation()
	}
	r.tx.SetSagaState(state)
	return r.uc.deps.Transactions.Update(ctx, r.tx)
}

func (r *transferRun) steps() []saga.Step {
	retries := r.uc.deps.StepRetries
	return []saga.Step{
		{Name: stepValidateTransfer, Execute: r.validate, Retryable: true, MaxRetries: retries + 1},
		{Name: stepReserveFunds, Execute: r.reserve, Compensate: r.unreserve, Retryable: true, MaxRetries: retries},
		{Name: stepDebitSource, Execute: r.debit, Compensate: r.refundSource, Retryable: true, MaxRetries: retries},
		{Name: stepCreditDestination, Execute: r.credit, Compensate: r.reverseCredit, Retryable: true, MaxRetries: retries},
		{Name: stepCommitLimitUsage, Execute: r.commitLimits, Compensate: r.releaseLimits, Retryable: true, MaxRetries: retries},
		{Name: stepFinalizeTransfer, Execute: r.finalize},
	}
}

// validate checks both wallets and currency equality.
func (r *transferRun) validate(ctx context.Context) error {
	deps := r.uc.deps

	if !r.source.IsActive() {
		return domainErrors.New(domainErrors.KindNotFound, "invalid_wallet", "source wallet is not active")
	}

	destination, err := deps.Wallets.FindByID(ctx, r.destinationID)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			return domainErrors.New(domainErrors.KindNotFound, "invalid_wallet", "destination wallet not found")
		}
		return err
	}
	if !destination.IsActive() {
		return domainErrors.New(domainErrors.KindNotFound, "invalid_wallet", "destination wallet is not active")
	}
	r.destination = destination

	if !r.source.Currency().Equals(destination.Currency()) {
		return domainErrors.NewCurrencyMismatch(r.source.Currency().Code(), destination.Currency().Code())
	}

	if err := r.tx.AdvanceState(entities.TransferStateValidationComplete); err != nil {
		return err
	}
	return deps.Transactions.Update(ctx, r.tx)
}

// reserve takes the source lease, confirms sufficiency against the store and
// records an advisory reservation on the transaction.
func (r *transferRun) reserve(ctx context.Context) error {
	deps := r.uc.deps

	token, err := deps.Locks.Acquire(ctx, r.sourceID, deps.LockTTL, deps.LockWait)
	if err != nil {
		return err
	}
	defer r.release(ctx, r.sourceID, token)

	source, err := deps.Wallets.FindByID(ctx, r.sourceID)
	if err != nil {
		return err
	}
	r.source = source

	sufficient, err := source.HasSufficientBalance(r.amount)
	if err != nil {
		return err
	}
	if !sufficient {
		return domainErrors.NewInsufficientBalance(r.sourceID.String())
	}

	if err := r.tx.Reserve(r.amount, time.Now().Add(deps.ReservationTTL)); err != nil {
		return err
	}
	if err := r.tx.AdvanceState(entities.TransferStateFundsReserved); err != nil {
		return err
	}
	return deps.Transactions.Update(ctx, r.tx)
}

func (r *transferRun) unreserve(ctx context.Context) error {
	r.tx.ClearReservation()
	return r.uc.deps.Transactions.Update(ctx, r.tx)
}

// debit applies the expression update on the source under its lease. The
// non-negative guard in the store is the authoritative insufficiency check.
func (r *transferRun) debit(ctx context.Context) error {
	deps := r.uc.deps

	token, err := deps.Locks.Acquire(ctx, r.sourceID, deps.LockTTL, deps.LockWait)
	if err != nil {
		return err
	}
	defer r.release(ctx, r.sourceID, token)

	var after valueobjects.Money
	err = deps.UnitOfWork.Execute(ctx, func(txCtx context.Context) error {
		before, newBalance, err := deps.Wallets.AdjustBalance(txCtx, r.sourceID, -r.amount.Cents())
		if err != nil {
			return err
		}
		after = newBalance
		r.tx.SnapshotSourceBefore(before)
		r.tx.SnapshotSourceAfter(newBalance)
		r.tx.ClearReservation()
		if err := r.tx.AdvanceState(entities.TransferStateDebitComplete); err != nil {
			return err
		}
		return deps.Transactions.Update(txCtx, r.tx)
	})
	if err != nil {
		return err
	}

	r.debitedCents = after.Cents()
	wallet.BumpBalanceCache(ctx, deps.BalanceCache, deps.Logger, r.source, after.Cents())
	return nil
}

// refundSource credits the debited amount back to the source.
func (r *transferRun) refundSource(ctx context.Context) error {
	deps := r.uc.deps

	token, err := deps.Locks.Acquire(ctx, r.sourceID, deps.LockTTL, deps.LockWait)
	if err != nil {
		return err
	}
	defer r.release(ctx, r.sourceID, token)

	var after valueobjects.Money
	err = deps.UnitOfWork.Execute(ctx, func(txCtx context.Context) error {
		_, newBalance, err := deps.Wallets.AdjustBalance(txCtx, r.sourceID, r.amount.Cents())
		if err != nil {
			return err
		}
		after = newBalance
		return nil
	})
	if err != nil {
		return err
	}

	wallet.BumpBalanceCache(ctx, deps.BalanceCache, deps.Logger, r.source, after.Cents())
	return nil
}

// credit applies the expression update on the destination under its lease.
func (r *transferRun) credit(ctx context.Context) error {
	deps := r.uc.deps

	token, err := deps.Locks.Acquire(ctx, r.destinationID, deps.LockTTL, deps.LockWait)
	if err != nil {
		return err
	}
	defer r.release(ctx, r.destinationID, token)

	var after valueobjects.Money
	err = deps.UnitOfWork.Execute(ctx, func(txCtx context.Context) error {
		before, newBalance, err := deps.Wallets.AdjustBalance(txCtx, r.destinationID, r.amount.Cents())
		if err != nil {
			return err
		}
		after = newBalance
		r.tx.SnapshotDestinationBefore(before)
		r.tx.SnapshotDestinationAfter(newBalance)
		if err := r.tx.AdvanceState(entities.TransferStateCreditComplete); err != nil {
			return err
		}
		return deps.Transactions.Update(txCtx, r.tx)
	})
	if err != nil {
		return err
	}

	r.creditedCents = after.Cents()
	wallet.BumpBalanceCache(ctx, deps.BalanceCache, deps.Logger, r.destination, after.Cents())
	return nil
}

// reverseCredit debits the credited amount back off the destination. This can
// legitimately fail when the destination already spent the funds; the failure
// surfaces as a compensation alert for manual reconciliation.
func (r *transferRun) reverseCredit(ctx context.Context) error {
	deps := r.uc.deps

	token, err := deps.Locks.Acquire(ctx, r.destinationID, deps.LockTTL, deps.LockWait)
	if err != nil {
		return err
	}
	defer r.release(ctx, r.destinationID, token)

	var after valueobjects.Money
	err = deps.UnitOfWork.Execute(ctx, func(txCtx context.Context) error {
		_, newBalance, err := deps.Wallets.AdjustBalance(txCtx, r.destinationID, -r.amount.Cents())
		if err != nil {
			return err
		}
		after = newBalance
		return nil
	})
	if err != nil {
		return err
	}

	wallet.BumpBalanceCache(ctx, deps.BalanceCache, deps.Logger, r.destination, after.Cents())
	return nil
}

func (r *transferRun) commitLimits(ctx context.Context) error {
	return r.uc.deps.Limits.CommitUsage(ctx, r.userID, r.amount)
}

func (r *transferRun) releaseLimits(ctx context.Context) error {
	return r.uc.deps.Limits.ReleaseUsage(ctx, r.userID, r.amount)
}

// finalize flips the transaction to COMPLETED. Idempotent so a retry after a
// failed row write does not trip on the in-memory transition.
func (r *transferRun) finalize(ctx context.Context) error {
	if r.tx.Status() != entities.TransactionStatusCompleted {
		if err := r.tx.MarkCompleted(); err != nil {
			return err
		}
	}
	return r.uc.deps.Transactions.Update(ctx, r.tx)
}

func (r *transferRun) release(ctx context.Context, walletID uuid.UUID, token string) {
	if err := r.uc.deps.Locks.Release(ctx, walletID, token); err != nil {
		r.uc.deps.Logger.WarnContext(ctx, "wallet lease release failed",
			slog.String("walletId", walletID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// messageOf extracts the human-readable message without the code prefix.
func messageOf(err error) string {
	var de *domainErrors.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// guardCachedReuse rejects a key whose cached result belongs to a different
// request payload.
func guardCachedReuse(cmd dtos.TransferCommand, dto *dtos.TransferResultDTO) error {
	if dto.SourceWalletID != cmd.SourceWalletID ||
		dto.DestinationWalletID != cmd.DestinationWalletID ||
		!sameDecimal(dto.Amount, cmd.Amount) {
		return domainErrors.NewConflict("idempotency key was already used for a different request")
	}
	return nil
}

// sameDecimal compares two decimal amount strings numerically.
func sameDecimal(a, b string) bool {
	cur := valueobjects.MustNewCurrency("USD")
	ma, errA := valueobjects.NewMoney(a, cur)
	mb, errB := valueobjects.NewMoney(b, cur)
	if errA != nil || errB != nil {
		return a == b
	}
	return ma.Equals(mb)
}

// mustCents rebuilds a Money from stored cents using the transfer currency.
func mustCents(cents int64, ref valueobjects.Money) valueobjects.Money {
	m, err := valueobjects.NewMoneyFromCents(cents, ref.Currency())
	if err != nil {
		return valueobjects.Zero(ref.Currency())
	}
	return m
}
