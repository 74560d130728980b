// File: internal/middleware/auth.go
package middleware

import (
	"errors"

	"texplicit_backend/internal/auth"
	"texplicit_backend/internal/common"
	"texplicit_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authorized validates the bearer token, rejects revoked tokens and loads the active user
// into the context. Handlers read it back with CurrentUser.
func Authorized(tokenService shared.TokenService, blocklist auth.TokenBlocklistService, users shared.UserLookup, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := common.GetTokenFromContext(c)
		if tokenString == "" {
			logger.Debug("Authorization header missing or malformed")
			common.RespondWithError(c, common.ErrUnauthorized)
			return
		}

		claims, err := tokenService.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				logger.Debug("Token expired", zap.String("userID", claims.UserID))
			} else {
				logger.Warn("Token validation failed", zap.Error(err))
			}
			common.RespondWithError(c, common.ErrUnauthorized)
			return
		}

		if claims.Purpose != shared.TokenAccess {
			logger.Warn("Token with wrong purpose used for a session", zap.String("userID", claims.UserID), zap.String("purpose", claims.Purpose))
			common.RespondWithError(c, common.ErrUnauthorized)
			return
		}

		if claims.ID != "" {
			revoked, err := blocklist.IsBlocklisted(c.Request.Context(), claims.ID)
			if err != nil || revoked {
				common.RespondWithError(c, common.ErrUnauthorized)
				return
			}
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil || user == nil || !user.IsActive {
			logger.Debug("Token user missing or inactive", zap.String("userID", claims.UserID))
			common.RespondWithError(c, common.ErrUnauthorized)
			return
		}

		c.Set(common.UserIDKey, user.HexID())
		c.Set(common.UserRoleKey, int(user.Role))
		c.Set(common.CurrentUserKey, user)
		c.Set(common.TokenIDKey, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(common.TokenExpiryKey, claims.ExpiresAt.Time)
		}
		c.Next()
	}
}

// QueryToken lets clients that cannot set headers, such as browser EventSource, pass the
// bearer token as ?<param>=. It must run before Authorized, which still validates the token.
// An Authorization header always wins over the query.
func QueryToken(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(common.AuthorizationHeader) == "" {
			if token := c.Query(param); token != "" {
				c.Request.Header.Set(common.AuthorizationHeader, common.AuthorizationTypeBearer+" "+token)
			}
		}
		c.Next()
	}
}

// AdminOnly must run after Authorized and rejects non-admin users.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			common.RespondWithError(c, common.ErrUnauthorized.WithMessage(common.MsgUnauthorizedAdmin))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user loaded by Authorized, or nil.
func CurrentUser(c *gin.Context) *shared.User {
	val, exists := c.Get(common.CurrentUserKey)
	if !exists {
		return nil
	}
	user, _ := val.(*shared.User)
	return user
}
