// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"strings"
	"time"

	"cpaas-console/internal/pkg/jwt"
	"cpaas-console/internal/pkg/response"
	"cpaas-console/internal/pkg/session"

	"github.com/gin-gonic/gin"
)

const (
	ctxOperatorID     = "operator_id"
	ctxJTI            = "jti"
	ctxBackendToken   = "backend_token"
	ctxTokenExpiresAt = "token_expires_at"
	ctxProvider       = "provider"
)

// TokenValidator is satisfied by the auth service.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, *session.SessionData, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
	}
}

// Auth validates the console token and its live session.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token", nil)
			return
		}

		claims, sess, err := m.validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token", err)
			return
		}

		c.Set(ctxOperatorID, claims.OperatorID)
		c.Set(ctxJTI, claims.ID)
		c.Set(ctxProvider, claims.Provider)
		c.Set(ctxBackendToken, sess.BackendToken)
		if claims.ExpiresAt != nil {
			c.Set(ctxTokenExpiresAt, claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	// Fallback to query param (websocket and popup pages)
	return c.Query("token")
}

func GetOperatorID(c *gin.Context) (string, bool) {
	return getString(c, ctxOperatorID)
}

func GetJTI(c *gin.Context) (string, bool) {
	return getString(c, ctxJTI)
}

// GetBackendToken returns the token the remote services issued for this session.
func GetBackendToken(c *gin.Context) (string, bool) {
	return getString(c, ctxBackendToken)
}

func GetTokenExpiry(c *gin.Context) time.Time {
	v, ok := c.Get(ctxTokenExpiresAt)
	if !ok {
		return time.Time{}
	}
	t, _ := v.(time.Time)
	return t
}

func getString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
