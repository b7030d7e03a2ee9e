// Package middleware contains the HTTP middleware chain.
//
// Middleware handles the cross-cutting concerns: request IDs, auth, logging,
// metrics, panic recovery and CORS.
//
// Pattern: Chain of Responsibility
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the header name for the request ID
	RequestIDHeader = "X-Request-ID"
	// RequestIDContextKey is the gin context key for the request ID
	RequestIDContextKey = "request_id"
)

// RequestID middleware attaches a unique ID to every request.
//
// A client-supplied X-Request-ID is honored; otherwise a new UUID is
// generated. The ID links the log records of one request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDContextKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// GetRequestID extracts the request ID from the gin context.
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDContextKey); exists {
		if strID, ok := id.(string); ok {
			return strID
		}
	}
	return ""
}
