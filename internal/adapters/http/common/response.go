// Package common holds shared types for the HTTP layer.
//
// Separate package to avoid circular imports between handlers and the main
// http package.
package common

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/Haleralex/fundflow/internal/domain/errors"
)

// ============================================
// Standard API Response Format
// ============================================

// APIResponse is the standard API envelope.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError is the API error structure.
type APIError struct {
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Fields     []FieldError `json:"fields,omitempty"`
	Retryable  bool         `json:"retryable,omitempty"`
	RetryAfter int          `json:"retry_after,omitempty"`
}

// FieldError describes a validation failure of one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ============================================
// Request ID
// ============================================

// RequestIDKey matches the gin context key the request-id middleware sets.
const RequestIDKey = "request_id"

// GetRequestID returns the request ID from the gin context.
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		if strID, ok := id.(string); ok {
			return strID
		}
	}
	return ""
}

// ============================================
// Response Helpers
// ============================================

// Success sends a successful response.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success:   true,
		Data:      data,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
	})
}

// Error sends an error response.
func Error(c *gin.Context, statusCode int, apiError *APIError) {
	c.JSON(statusCode, APIResponse{
		Success:   false,
		Error:     apiError,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
	})
}

// ValidationErrorResponse sends a field-level validation failure.
func ValidationErrorResponse(c *gin.Context, fields []FieldError) {
	Error(c, http.StatusBadRequest, &APIError{
		Code:    "invalid_request",
		Message: "request validation failed",
		Fields:  fields,
	})
}

// BadRequestResponse sends a 400.
func BadRequestResponse(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, &APIError{
		Code:    "invalid_request",
		Message: message,
	})
}

// UnauthorizedResponse sends a 401.
func UnauthorizedResponse(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, &APIError{
		Code:    "unauthorized",
		Message: message,
	})
}

// NotFoundResponse sends a 404.
func NotFoundResponse(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, &APIError{
		Code:    "not_found",
		Message: message,
	})
}

// InternalErrorResponse sends a 500.
func InternalErrorResponse(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, &APIError{
		Code:    "internal_error",
		Message: message,
	})
}

// ============================================
// Domain Error to HTTP Error Mapper
// ============================================

// statusForKind maps every domain error kind to its HTTP status.
func statusForKind(kind domainErrors.Kind) int {
	switch kind {
	case domainErrors.KindInvalidRequest,
		domainErrors.KindInsufficientBalance,
		domainErrors.KindLimitExceeded,
		domainErrors.KindCurrencyMismatch:
		// Business rejections are client errors: the request can never
		// succeed as submitted.
		return http.StatusBadRequest
	case domainErrors.KindNotFound:
		return http.StatusNotFound
	case domainErrors.KindConflict:
		return http.StatusConflict
	case domainErrors.KindLockTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleDomainError maps a domain error to an HTTP response.
func HandleDomainError(c *gin.Context, err error) {
	if domainErrors.IsValidation(err) {
		BadRequestResponse(c, err.Error())
		return
	}

	kind := domainErrors.KindOf(err)
	status := statusForKind(kind)

	code := domainErrors.CodeOf(err)
	message := err.Error()
	var de *domainErrors.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	if status == http.StatusInternalServerError {
		// Infra details stay in the logs, not on the wire.
		message = "an unexpected error occurred"
	}

	apiError := &APIError{
		Code:      code,
		Message:   message,
		Retryable: kind.Retryable(),
	}
	if kind == domainErrors.KindLockTimeout {
		apiError.RetryAfter = 1
	}

	Error(c, status, apiError)
}
