// File: internal/common/context_keys.go
package common

const (
	// AuthorizationHeader is the header name for authorization token
	AuthorizationHeader = "Authorization"
	// AuthorizationTypeBearer is the prefix for Bearer tokens
	AuthorizationTypeBearer = "Bearer"
	// UserIDKey is the context key for storing the authenticated user's ID (hex ObjectID)
	UserIDKey = "userID"
	// UserRoleKey is the context key for storing the authenticated user's role
	UserRoleKey = "userRole"
	// CurrentUserKey is the context key for the loaded user record
	CurrentUserKey = "currentUser"
	// TokenIDKey is the context key for the jti of the presented token
	TokenIDKey = "tokenID"
	// TokenExpiryKey is the context key for the expiry of the presented token
	TokenExpiryKey = "tokenExpiry"
	// LoggerKey is the context key for the request scoped logger
	LoggerKey = "logger"
)
