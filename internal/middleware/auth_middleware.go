package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/pkg/auth"
)

// Context keys set by RequireAuth.
const (
	ContextKeyUserID  = "user_id"
	ContextKeyIsAdmin = "is_admin"
)

// TokenParser verifies an access token.
type TokenParser interface {
	ParseToken(tokenString string) (*auth.JWTCustomClaims, error)
}

// AuthMiddleware guards protected routes with a bearer token.
type AuthMiddleware struct {
	tokens TokenParser
}

func NewAuthMiddleware(tokens TokenParser) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth rejects requests without a valid "Authorization: Bearer {token}" header and
// stores the user id and admin flag in the gin context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Not authorized, no token", "token_missing")
			return
		}
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "Authorization header format must be Bearer {token}", "token_format")
			return
		}

		claims, err := m.tokens.ParseToken(parts[1])
		if err != nil {
			errorType := "token_invalid"
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				errorType = "token_expired"
			case errors.Is(err, auth.ErrTokenInvalidated):
				errorType = "token_invalidated"
			}
			log.Debug().Err(err).Msgf("[AuthMiddleware] rejected token for %s", c.FullPath())
			abortUnauthorized(c, "Not authorized, token failed", errorType)
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyIsAdmin, claims.IsAdmin)
		c.Next()
	}
}

// AdminOnly must run after RequireAuth.
func (m *AuthMiddleware) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextKeyUserID); !exists {
			abortUnauthorized(c, "Not authorized", "unauthorized")
			return
		}
		if !c.GetBool(ContextKeyIsAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success":    false,
				"message":    "Admin rights required",
				"error_type": "forbidden",
			})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id set by RequireAuth.
func UserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok && id != 0
}

func abortUnauthorized(c *gin.Context, message, errorType string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success":    false,
		"message":    message,
		"error_type": errorType,
	})
}
