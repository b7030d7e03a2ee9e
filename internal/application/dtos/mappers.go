package dtos

import (
	"github.com/Haleralex/fundflow/internal/domain/entities"
)

// MapWalletToDTO converts a Wallet entity to its DTO.
func MapWalletToDTO(w *entities.Wallet) *WalletDTO {
	return &WalletDTO{
		ID:        w.ID().String(),
		UserID:    w.UserID().String(),
		Name:      w.Name(),
		Balance:   w.Balance().Decimal(),
		Currency:  w.Currency().Code(),
		Active:    w.IsActive(),
		CreatedAt: w.CreatedAt(),
		UpdatedAt: w.UpdatedAt(),
	}
}

// MapTransferResult converts a transfer Transaction into the wire response.
// The mapping is deterministic so idempotent replays serialize identically.
func MapTransferResult(t *entities.Transaction) *TransferResultDTO {
	dto := &TransferResultDTO{
		ID:          t.ID().String(),
		Amount:      t.Amount().Decimal(),
		Description: t.Description(),
		Status:      string(t.Status()),
		CreatedAt:   t.CreatedAt(),
		Metadata: TransferMetadataDTO{
			TransferState:       string(t.TransferState()),
			IdempotencyKey:      t.IdempotencyKey(),
			ExternalReferenceID: t.ExternalReferenceID(),
			CompletedAt:         t.CompletedAt(),
		},
	}
	if src := t.SourceWalletID(); src != nil {
		dto.SourceWalletID = src.String()
	}
	if dst := t.DestinationWalletID(); dst != nil {
		dto.DestinationWalletID = dst.String()
	}
	return dto
}

// MapTransactionToDTO converts a Transaction entity to its full DTO.
func MapTransactionToDTO(t *entities.Transaction) *TransactionDTO {
	dto := &TransactionDTO{
		ID:                  t.ID().String(),
		Kind:                string(t.Kind()),
		Status:              string(t.Status()),
		TransferState:       string(t.TransferState()),
		Amount:              t.Amount().Decimal(),
		Description:         t.Description(),
		Metadata:            t.Metadata(),
		IdempotencyKey:      t.IdempotencyKey(),
		ExternalReferenceID: t.ExternalReferenceID(),
		RetryCount:          t.RetryCount(),
		CreatedAt:           t.CreatedAt(),
		ProcessedAt:         t.ProcessedAt(),
		CompletedAt:         t.CompletedAt(),
		FailedAt:            t.FailedAt(),
	}
	if src := t.SourceWalletID(); src != nil {
		dto.SourceWalletID = src.String()
	}
	if dst := t.DestinationWalletID(); dst != nil {
		dto.DestinationWalletID = dst.String()
	}
	if detail := t.ErrorDetail(); detail != nil {
		dto.ErrorCode = detail.Code
		dto.ErrorMessage = detail.Message
	}
	return dto
}

// MapLimitsToDTO converts a LimitLedger to the transfer-limits response.
func MapLimitsToDTO(l *entities.LimitLedger) *TransferLimitsDTO {
	return &TransferLimitsDTO{
		DailyLimit:       l.DailyLimit().Decimal(),
		DailyUsed:        l.DailyUsed().Decimal(),
		DailyRemaining:   l.DailyRemaining().Decimal(),
		MonthlyLimit:     l.MonthlyLimit().Decimal(),
		MonthlyUsed:      l.MonthlyUsed().Decimal(),
		MonthlyRemaining: l.MonthlyRemaining().Decimal(),
		LastDailyReset:   l.LastDailyReset(),
		LastMonthlyReset: l.LastMonthlyReset(),
	}
}
