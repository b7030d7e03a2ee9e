// Package handlers - transfer endpoints.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Haleralex/fundflow/internal/adapters/http/common"
	"github.com/Haleralex/fundflow/internal/adapters/http/middleware"
	"github.com/Haleralex/fundflow/internal/application/dtos"
)

// IdempotencyKeyHeader carries the client's idempotency key. A key in the
// body wins over the header when both are present.
const IdempotencyKeyHeader = "Idempotency-Key"

// ============================================
// Use Case Interfaces
// ============================================

// ExecuteTransferUseCase runs a wallet-to-wallet transfer.
type ExecuteTransferUseCase interface {
	Execute(ctx context.Context, cmd dtos.TransferCommand) (*dtos.TransferResultDTO, error)
}

// FindByIdempotencyKeyUseCase looks up a transfer by its idempotency key.
type FindByIdempotencyKeyUseCase interface {
	Execute(ctx context.Context, userID uuid.UUID, key string) (*dtos.IdempotencyLookupDTO, error)
}

// ============================================
// Transfer Handler
// ============================================

// TransferHandler serves the transfer endpoints.
type TransferHandler struct {
	executeTransfer ExecuteTransferUseCase
	findByKey       FindByIdempotencyKeyUseCase
}

// NewTransferHandler creates a TransferHandler.
func NewTransferHandler(
	executeTransfer ExecuteTransferUseCase,
	findByKey FindByIdempotencyKeyUseCase,
) *TransferHandler {
	return &TransferHandler{
		executeTransfer: executeTransfer,
		findByKey:       findByKey,
	}
}

// ============================================
// Request DTOs
// ============================================

// TransferRequest is the body of POST /transfers.
type TransferRequest struct {
	SourceWalletID      string `json:"sourceWalletId" binding:"required,uuid"`
	DestinationWalletID string `json:"destinationWalletId" binding:"required,uuid"`
	Amount              string `json:"amount" binding:"required,money_amount"`
	Description         string `json:"description" binding:"omitempty,max=500"`
	IdempotencyKey      string `json:"idempotencyKey" binding:"omitempty,max=255"`
	ExternalReferenceID string `json:"externalReferenceId" binding:"omitempty,max=255"`
}

// IdempotencyKeyParam binds the key path parameter.
type IdempotencyKeyParam struct {
	Key string `uri:"key" binding:"required,max=255"`
}

// ============================================
// HTTP Handlers
// ============================================

// ExecuteTransfer handles POST /transfers.
//
// Replays with the same idempotency key return the recorded result through
// the same path, indistinguishable from the first response.
func (h *TransferHandler) ExecuteTransfer(c *gin.Context) {
	userID, err := middleware.GetAuthUserID(c)
	if err != nil {
		common.UnauthorizedResponse(c, "user not authenticated")
		return
	}

	var req TransferRequest
	if !BindJSON(c, &req) {
		return
	}

	key := req.IdempotencyKey
	if key == "" {
		key = c.GetHeader(IdempotencyKeyHeader)
	}

	cmd := dtos.TransferCommand{
		UserID:              userID.String(),
		SourceWalletID:      req.SourceWalletID,
		DestinationWalletID: req.DestinationWalletID,
		Amount:              req.Amount,
		Description:         req.Description,
		IdempotencyKey:      key,
		ExternalReferenceID: req.ExternalReferenceID,
	}

	result, err := h.executeTransfer.Execute(c.Request.Context(), cmd)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// FindByIdempotencyKey handles GET /transfers/idempotency/:key.
func (h *TransferHandler) FindByIdempotencyKey(c *gin.Context) {
	userID, err := middleware.GetAuthUserID(c)
	if err != nil {
		common.UnauthorizedResponse(c, "user not authenticated")
		return
	}

	var params IdempotencyKeyParam
	if !BindURI(c, &params) {
		return
	}

	result, err := h.findByKey.Execute(c.Request.Context(), userID, params.Key)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// RegisterRoutes registers the transfer routes.
//
// Routes:
// - POST /transfers                  - Execute transfer
// - GET  /transfers/idempotency/:key - Look up by idempotency key
func (h *TransferHandler) RegisterRoutes(router *gin.RouterGroup) {
	transfers := router.Group("/transfers")
	{
		transfers.POST("", h.ExecuteTransfer)
		transfers.GET("/idempotency/:key", h.FindByIdempotencyKey)
	}
}
