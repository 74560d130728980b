// File: internal/user/handler.go
package user

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/middleware"
	"texplicit_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for account and user handlers.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new user handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes sets up the account and user listing routes.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authorized gin.HandlerFunc) {
	account := router.Group("/account")
	{
		account.POST("/signup", h.signup)
		account.GET("/image/:name", h.getImage)

		account.GET("/current-user", authorized, h.currentUser)
		account.PATCH("/update", authorized, h.updateProfile)
		account.PUT("/update-image", authorized, h.updateImage)
		account.GET("/:id", authorized, h.getUserByID)
	}
	router.GET("/users/all", authorized, h.listUsers)
}

func imageBaseURL(c *gin.Context) string {
	return common.RequestBaseURL(c) + "/account/image"
}

func (h *Handler) signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.GetLoggerFromContext(c, h.logger).Warn("Signup: Invalid request body", zap.Error(err))
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	id, err := h.service.Signup(c.Request.Context(), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKUserCreated, gin.H{"_id": id})
}

func (h *Handler) currentUser(c *gin.Context) {
	u := middleware.CurrentUser(c)
	if u == nil {
		common.RespondWithError(c, ErrUserNotFound)
		return
	}
	common.RespondOK(c, common.MsgOKUserRetrieval, shared.ToUserResponse(u, imageBaseURL(c)))
}

func (h *Handler) getUserByID(c *gin.Context) {
	u, err := h.service.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKUserRetrieval, shared.ToUserResponse(u, imageBaseURL(c)))
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKUsersRetrieval, shared.ToUserResponses(users, imageBaseURL(c)))
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	if err := h.service.UpdateProfile(c.Request.Context(), common.GetUserIDFromContext(c), req); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKUserUpdate, nil)
}

func (h *Handler) updateImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		common.RespondWithError(c, common.ErrMissingParameters.WithMessage(common.MsgMissingRequiredParameter+"image"))
		return
	}
	name, err := h.service.UpdateImage(c.Request.Context(), common.GetUserIDFromContext(c), fh)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKUserImageUpdate, gin.H{"image": shared.ImageURL(imageBaseURL(c), name)})
}

func (h *Handler) getImage(c *gin.Context) {
	name := c.Param("name")
	rc, err := h.service.OpenImage(c.Request.Context(), name)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(c.Writer, rc); err != nil {
		common.GetLoggerFromContext(c, h.logger).Warn("Failed to stream image", zap.String("image", name), zap.Error(err))
	}
}
