// Package handlers - transfer limit endpoints.
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

// LimitsReader reads the authenticated user's transfer limits.
type LimitsReader interface {
	GetLimits(ctx context.Context, userID uuid.UUID) (*dtos.TransferLimitsDTO, error)
}

// LimitsHandler serves the limit endpoints.
type LimitsHandler struct {
	limits LimitsReader
}

// NewLimitsHandler creates a LimitsHandler.
func NewLimitsHandler(limits LimitsReader) *LimitsHandler {
	return &LimitsHandler{limits: limits}
}

// GetLimits handles GET /users/limits.
func (h *LimitsHandler) GetLimits(c *gin.Context) {
	userID, err := middleware.GetAuthUserID(c)
	if err != nil {
		common.UnauthorizedResponse(c, "user not authenticated")
		return
	}

	result, err := h.limits.GetLimits(c.Request.Context(), userID)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// RegisterRoutes registers the limit routes.
//
// Routes:
// - GET /users/limits - Get the caller's transfer limits
func (h *LimitsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/users/limits", h.GetLimits)
}
