// Package handlers - wallet endpoints.
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

// ============================================
// Use Case Interfaces
// ============================================

// CreateWalletUseCase creates a wallet.
type CreateWalletUseCase interface {
	Execute(ctx context.Context, cmd dtos.CreateWalletCommand) (*dtos.WalletDTO, error)
}

// AddFundsUseCase deposits into a wallet.
type AddFundsUseCase interface {
	Execute(ctx context.Context, cmd dtos.AddFundsCommand) (*dtos.WalletDTO, error)
}

// GetBalanceUseCase reads a wallet balance.
type GetBalanceUseCase interface {
	Execute(ctx context.Context, userID, walletID uuid.UUID) (*dtos.BalanceDTO, error)
}

// ============================================
// Wallet Handler
// ============================================

// WalletHandler serves the wallet endpoints.
type WalletHandler struct {
	createWallet CreateWalletUseCase
	addFunds     AddFundsUseCase
	getBalance   GetBalanceUseCase
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(
	createWallet CreateWalletUseCase,
	addFunds AddFundsUseCase,
	getBalance GetBalanceUseCase,
) *WalletHandler {
	return &WalletHandler{
		createWallet: createWallet,
		addFunds:     addFunds,
		getBalance:   getBalance,
	}
}

// ============================================
// Request DTOs
// ============================================

// CreateWalletRequest is the body of POST /wallets.
type CreateWalletRequest struct {
	Name     string `json:"name" binding:"omitempty,max=100"`
	Currency string `json:"currency" binding:"required,currency_code"`
}

// AddFundsRequest is the body of POST /wallets/:id/funds.
type AddFundsRequest struct {
	Amount      string `json:"amount" binding:"required,money_amount"`
	Description string `json:"description" binding:"omitempty,max=500"`
}

// WalletIDParam binds the wallet ID path parameter.
type WalletIDParam struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// ============================================
// HTTP Handlers
// ============================================

// CreateWallet handles POST /wallets.
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	userID, err := middleware.GetAuthUserID(c)
	if err != nil {
		common.UnauthorizedResponse(c, "user not authenticated")
		return
	}

	var req CreateWalletRequest
	if !BindJSON(c, &req) {
		return
	}

	cmd := dtos.CreateWalletCommand{
		UserID:   userID.String(),
		Name:     req.Name,
		Currency: req.Currency,
	}

	result, err := h.createWallet.Execute(c.Request.Context(), cmd)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusCreated, result)
}

// AddFunds handles POST /wallets/:id/funds.
func (h *WalletHandler) AddFunds(c *gin.Context) {
	userID, err := middleware.GetAuthUserID(c)
	if err != nil {
		common.UnauthorizedResponse(c, "user not authenticated")
		return
	}

	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}

	var req AddFundsRequest
	if !BindJSON(c, &req) {
		return
	}

	cmd := dtos.AddFundsCommand{
		UserID:      userID.String(),
		WalletID:    params.ID,
		Amount:      req.Amount,
		Description: req.Description,
	}

	result, err := h.addFunds.Execute(c.Request.Context(), cmd)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// GetBalance handles GET /wallets/:id/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, err := middleware.GetAuthUserID(c)
	if err != nil {
		common.UnauthorizedResponse(c, "user not authenticated")
		return
	}

	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}
	walletID := uuid.MustParse(params.ID)

	result, err := h.getBalance.Execute(c.Request.Context(), userID, walletID)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// RegisterRoutes registers the wallet routes.
//
// Routes:
// - POST /wallets             - Create wallet
// - POST /wallets/:id/funds   - Add funds
// - GET  /wallets/:id/balance - Get balance
func (h *WalletHandler) RegisterRoutes(router *gin.RouterGroup) {
	wallets := router.Group("/wallets")
	{
		wallets.POST("", h.CreateWallet)
		wallets.POST("/:id/funds", h.AddFunds)
		wallets.GET("/:id/balance", h.GetBalance)
	}
}
