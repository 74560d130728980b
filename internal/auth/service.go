// File: internal/auth/service.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"texplicit_backend/internal/config"
	"texplicit_backend/internal/shared"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrTokenExpired is returned together with the parsed claims when a token is well formed but expired.
var ErrTokenExpired = errors.New("token has expired")

type JWTService struct {
	secret []byte
	logger *zap.Logger
	now    func() time.Time
}

// NewJWTService creates a new JWT service signing HS256 tokens with JWT_SECRET_KEY.
func NewJWTService(cfg *config.Config, logger *zap.Logger) shared.TokenService {
	return &JWTService{secret: []byte(cfg.JWTSecretKey), logger: logger, now: time.Now}
}

// GenerateToken issues a token for userID with the given purpose that expires after ttl.
func (s *JWTService) GenerateToken(userID, purpose string, ttl time.Duration) (string, *shared.Claims, error) {
	issuedAt := s.now()
	claims := &shared.Claims{
		UserID:  userID,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		s.logger.Error("Failed to sign token", zap.Error(err))
		return "", nil, fmt.Errorf("could not sign token: %w", err)
	}
	return tokenString, claims, nil
}

// ValidateToken validates a JWT token and returns its claims. An expired but otherwise
// valid token yields its claims and ErrTokenExpired.
func (s *JWTService) ValidateToken(tokenString string) (*shared.Claims, error) {
	claims := &shared.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && claims.UserID != "" {
			return claims, ErrTokenExpired
		}
		s.logger.Debug("Failed to validate token", zap.Error(err))
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
