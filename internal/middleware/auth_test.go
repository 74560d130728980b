package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"texplicit_backend/internal/auth"
	"texplicit_backend/internal/common"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type userMap map[string]*shared.User

func (m userMap) GetUserByID(_ context.Context, id string) (*shared.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

func TestAuthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewJWTService(&config.Config{JWTSecretKey: "k"}, zap.NewNop())
	blocklist := auth.DefaultBlocklist()

	active := &shared.User{ID: primitive.NewObjectID(), Role: domain.RolePersonal, IsActive: true}
	admin := &shared.User{ID: primitive.NewObjectID(), Role: domain.RoleAdmin, IsActive: true}
	inactive := &shared.User{ID: primitive.NewObjectID(), Role: domain.RolePersonal}
	users := userMap{active.HexID(): active, admin.HexID(): admin, inactive.HexID(): inactive}

	router := gin.New()
	authorized := Authorized(tokens, blocklist, users, zap.NewNop())
	router.GET("/me", authorized, func(c *gin.Context) {
		common.RespondOK(c, "ok", gin.H{"id": common.GetUserIDFromContext(c), "current": CurrentUser(c).HexID()})
	})
	router.GET("/admin", authorized, AdminOnly(), func(c *gin.Context) { common.RespondOK(c, "ok", nil) })

	issue := func(u *shared.User) string {
		tok, _, err := tokens.GenerateToken(u.HexID(), shared.TokenAccess, time.Hour)
		require.NoError(t, err)
		return tok
	}
	call := func(path, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := call("/me", "Bearer "+issue(active))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), active.HexID())

	assert.Equal(t, http.StatusUnauthorized, call("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call("/me", "Token "+issue(active)).Code)
	assert.Equal(t, http.StatusUnauthorized, call("/me", "Bearer garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, call("/me", "Bearer "+issue(inactive)).Code)

	assert.Equal(t, http.StatusUnauthorized, call("/admin", "Bearer "+issue(active)).Code)
	assert.Equal(t, http.StatusOK, call("/admin", "Bearer "+issue(admin)).Code)

	revokedToken, claims, err := tokens.GenerateToken(active.HexID(), shared.TokenAccess, time.Hour)
	require.NoError(t, err)
	require.NoError(t, blocklist.AddToBlocklist(context.Background(), claims.ID, claims.ExpiresAt.Time))
	assert.Equal(t, http.StatusUnauthorized, call("/me", "Bearer "+revokedToken).Code)

	resetToken, _, err := tokens.GenerateToken(active.HexID(), shared.TokenReset, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call("/me", "Bearer "+resetToken).Code)
	untyped, _, err := tokens.GenerateToken(admin.HexID(), "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call("/admin", "Bearer "+untyped).Code)
}

func TestQueryTokenGoesThroughAuthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewJWTService(&config.Config{JWTSecretKey: "k"}, zap.NewNop())
	blocklist := auth.DefaultBlocklist()
	active := &shared.User{ID: primitive.NewObjectID(), Role: domain.RolePersonal, IsActive: true}
	inactive := &shared.User{ID: primitive.NewObjectID(), Role: domain.RolePersonal}
	users := userMap{active.HexID(): active, inactive.HexID(): inactive}

	router := gin.New()
	router.GET("/events", QueryToken("token"), Authorized(tokens, blocklist, users, zap.NewNop()), func(c *gin.Context) {
		common.RespondOK(c, "ok", gin.H{"id": common.GetUserIDFromContext(c)})
	})
	issue := func(u *shared.User, purpose string) (string, *shared.Claims) {
		tok, claims, err := tokens.GenerateToken(u.HexID(), purpose, time.Hour)
		require.NoError(t, err)
		return tok, claims
	}
	call := func(query, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/events"+query, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	good, _ := issue(active, shared.TokenAccess)
	w := call("?token="+good, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), active.HexID())

	assert.Equal(t, http.StatusUnauthorized, call("?token=garbage", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call("?token="+good, "Bearer garbage").Code, "header wins over query")

	reset, _ := issue(active, shared.TokenReset)
	assert.Equal(t, http.StatusUnauthorized, call("?token="+reset, "").Code)

	asleep, _ := issue(inactive, shared.TokenAccess)
	assert.Equal(t, http.StatusUnauthorized, call("?token="+asleep, "").Code)

	revoked, claims := issue(active, shared.TokenAccess)
	require.NoError(t, blocklist.AddToBlocklist(context.Background(), claims.ID, claims.ExpiresAt.Time))
	assert.Equal(t, http.StatusUnauthorized, call("?token="+revoked, "").Code)
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/x", RateLimit(nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
