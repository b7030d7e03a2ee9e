// Package middleware - authentication.
package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AuthUserIDKey is the gin context key for the authenticated user ID
	AuthUserIDKey = "auth_user_id"
	// AuthClaimsKey is the gin context key for the full claims
	AuthClaimsKey = "auth_claims"
)

// AuthClaims carries the identity extracted from the access token.
type AuthClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Exp    int64  `json:"exp"`
}

// TokenValidator validates a raw bearer token and returns its claims.
type TokenValidator func(token string) (*AuthClaims, error)

// AuthConfig configures the auth middleware.
type AuthConfig struct {
	TokenValidator TokenValidator
	SkipPaths      []string // paths that bypass authentication
}

// Auth middleware enforces bearer-token authentication.
//
// On success the user ID and claims land in the gin context; handlers
// read them through GetAuthUserID.
func Auth(config *AuthConfig) gin.HandlerFunc {
	skipMap := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipMap[path] = true
	}

	return func(c *gin.Context) {
		if skipMap[c.Request.URL.Path] {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithUnauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := config.TokenValidator(parts[1])
		if err != nil {
			abortWithUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(AuthUserIDKey, claims.UserID)
		c.Set(AuthClaimsKey, claims)

		c.Next()
	}
}

// RequireRole restricts a route group to one role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetAuthClaims(c)
		if claims == nil || claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "forbidden",
					"message": "insufficient permissions",
				},
				"request_id": GetRequestID(c),
				"timestamp":  time.Now().UTC(),
			})
			return
		}
		c.Next()
	}
}

// GetAuthUserID returns the authenticated user ID from the gin context.
func GetAuthUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(AuthUserIDKey)
	if !exists {
		return uuid.Nil, fmt.Errorf("no authenticated user in context")
	}
	id, ok := raw.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("no authenticated user in context")
	}
	return uuid.Parse(id)
}

// GetAuthClaims returns the full claims from the gin context.
func GetAuthClaims(c *gin.Context) *AuthClaims {
	if raw, exists := c.Get(AuthClaimsKey); exists {
		if claims, ok := raw.(*AuthClaims); ok {
			return claims
		}
	}
	return nil
}

func abortWithUnauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="fundflow"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "unauthorized",
			"message": message,
		},
		"request_id": GetRequestID(c),
		"timestamp":  time.Now().UTC(),
	})
}

// ============================================
// Token Validators
// ============================================

// NewJWTTokenValidator builds a validator for HMAC-signed JWTs.
func NewJWTTokenValidator(secret string, issuer string) TokenValidator {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}

	return func(token string) (*AuthClaims, error) {
		parsed, err := jwt.Parse(token, keyFunc, options...)
		if err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return nil, fmt.Errorf("unexpected claims type")
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return nil, fmt.Errorf("token has no subject")
		}
		if _, err := uuid.Parse(sub); err != nil {
			return nil, fmt.Errorf("token subject is not a user ID: %w", err)
		}

		result := &AuthClaims{UserID: sub}
		if email, ok := claims["email"].(string); ok {
			result.Email = email
		}
		if role, ok := claims["role"].(string); ok {
			result.Role = role
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			result.Exp = exp.Unix()
		}

		return result, nil
	}
}

// MockTokenValidator accepts tokens of the form "mock:<user-uuid>[:role]".
//
// Development and tests only; Config.Validate rejects it in production.
func MockTokenValidator() TokenValidator {
	return func(token string) (*AuthClaims, error) {
		parts := strings.Split(token, ":")
		if len(parts) < 2 || parts[0] != "mock" {
			return nil, fmt.Errorf("invalid mock token")
		}
		if _, err := uuid.Parse(parts[1]); err != nil {
			return nil, fmt.Errorf("invalid mock token user ID: %w", err)
		}

		claims := &AuthClaims{
			UserID: parts[1],
			Role:   "user",
			Exp:    time.Now().Add(time.Hour).Unix(),
		}
		if len(parts) > 2 {
			claims.Role = parts[2]
		}
		return claims, nil
	}
}
