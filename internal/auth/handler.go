// File: internal/auth/handler.go
package auth

import (
	"context"
	"time"

	"texplicit_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccountService is the part of the user service the auth handler drives.
type AccountService interface {
	Login(ctx context.Context, email, password string) (string, error)
	AdminLogin(ctx context.Context, email, password string) (string, error)
	SendResetToken(ctx context.Context, email, origin string) (string, error)
	VerifyResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Handler struct holds dependencies for auth handlers.
type Handler struct {
	accounts  AccountService
	blocklist TokenBlocklistService
	logger    *zap.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(accounts AccountService, blocklist TokenBlocklistService, logger *zap.Logger) *Handler {
	return &Handler{accounts: accounts, blocklist: blocklist, logger: logger}
}

// RegisterRoutes sets up the routes for authentication operations.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authorized gin.HandlerFunc) {
	account := router.Group("/account")
	{
		account.POST("/login", h.login)
		account.POST("/logout", authorized, h.logout)
		account.POST("/reset-password/generatetoken", h.generateResetToken)
		account.GET("/reset-password/verify-token/:token", h.verifyResetToken)
		account.POST("/reset-password/update-password", h.updatePassword)
	}
	router.POST("/admin/login", h.adminLogin)
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.GetLoggerFromContext(c, h.logger).Warn("Login: Invalid request body", zap.Error(err))
		common.RespondWithError(c, common.BindingError(err))
		return
	}

	token, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKLogin, LoginResponse{Token: token, Message: "Login Successful"})
}

func (h *Handler) adminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}

	token, err := h.accounts.AdminLogin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKLogin, LoginResponse{Token: token, Message: "Login Successful"})
}

func (h *Handler) logout(c *gin.Context) {
	jti := c.GetString(common.TokenIDKey)
	expiresAt, _ := c.Get(common.TokenExpiryKey)
	exp, _ := expiresAt.(time.Time)

	if err := h.blocklist.AddToBlocklist(c.Request.Context(), jti, exp); err != nil {
		common.GetLoggerFromContext(c, h.logger).Error("Logout: failed to blocklist token", zap.Error(err))
		common.RespondWithError(c, err)
		return
	}
	common.GetLoggerFromContext(c, h.logger).Info("User logged out")
	common.RespondOK(c, common.MsgOKLogout, nil)
}

func (h *Handler) generateResetToken(c *gin.Context) {
	var req ResetTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}

	token, err := h.accounts.SendResetToken(c.Request.Context(), req.Email, common.RequestOrigin(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKPasswordResetEmailSent, gin.H{"token": token})
}

func (h *Handler) verifyResetToken(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		common.RespondWithError(c, common.ErrBadRequest.WithMessage(common.MsgMissingParameterToken).WithDetails(validity(false)))
		return
	}

	if err := h.accounts.VerifyResetToken(c.Request.Context(), token); err != nil {
		if apiErr, ok := common.IsAPIError(err); ok {
			common.RespondWithError(c, apiErr.WithDetails(validity(false)))
			return
		}
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKTokenValid, validity(true))
}

func (h *Handler) updatePassword(c *gin.Context) {
	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}

	if err := h.accounts.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKPasswordUpdate, nil)
}

func validity(valid bool) []gin.H {
	return []gin.H{{"validity": valid}}
}
