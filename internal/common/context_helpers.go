// File: internal/common/context_helpers.go
package common

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetTokenFromContext retrieves the JWT token string from the Authorization header.
// Returns an empty string if not found.
func GetTokenFromContext(c *gin.Context) string {
	authHeader := c.GetHeader(AuthorizationHeader)
	if authHeader == "" {
		return ""
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], AuthorizationTypeBearer) {
		return ""
	}
	return parts[1]
}

// GetLoggerFromContext returns the request scoped logger set by the logging middleware,
// tagged with the authenticated user when there is one. Without it, fallback is used.
func GetLoggerFromContext(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	logger := fallback
	if v, ok := c.Get(LoggerKey); ok {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			logger = l
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if userID := GetUserIDFromContext(c); userID != "" {
		logger = logger.With(zap.String("userID", userID))
	}
	return logger
}

// GetUserIDFromContext retrieves the authenticated user's hex id. Empty when unauthenticated.
func GetUserIDFromContext(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// GetUserRoleFromContext retrieves the user role from the Gin context.
func GetUserRoleFromContext(c *gin.Context) int {
	return c.GetInt(UserRoleKey)
}

// RequestBaseURL is the scheme and host the request was addressed to.
func RequestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

// RequestOrigin is the frontend origin used to build links in mails.
func RequestOrigin(c *gin.Context) string {
	if origin := c.GetHeader("Origin"); origin != "" {
		return origin
	}
	return RequestBaseURL(c)
}
