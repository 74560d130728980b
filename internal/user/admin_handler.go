package user

import (
	"texplicit_backend/internal/common"
	"texplicit_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler serves the user administration routes.
type AdminHandler struct {
	service *Service
	logger  *zap.Logger
}

func NewAdminHandler(service *Service, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: logger}
}

// RegisterRoutes mounts /admin/user behind the authorized and admin middlewares.
func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup, authorized, adminOnly gin.HandlerFunc) {
	admin := router.Group("/admin/user", authorized, adminOnly)
	{
		admin.GET("/all", h.listUsers)
		admin.PUT("/user_status", h.toggleStatus)
		admin.POST("/user-add-update", h.addOrUpdate)
	}
}

func (h *AdminHandler) listUsers(c *gin.Context) {
	users, err := h.service.ListBaseUsers(c.Request.Context())
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKUsersRetrieval, shared.ToUserResponses(users, imageBaseURL(c)))
}

func (h *AdminHandler) toggleStatus(c *gin.Context) {
	var req UserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	active, err := h.service.ToggleStatus(c.Request.Context(), req.UserID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKUserStatusUpdate, gin.H{"isActive": active})
}

func (h *AdminHandler) addOrUpdate(c *gin.Context) {
	var req AdminUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	id, created, err := h.service.AddOrUpdate(c.Request.Context(), req, common.RequestOrigin(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	if created {
		common.RespondOK(c, common.MsgOKUserCreated, gin.H{"_id": id})
		return
	}
	common.RespondOK(c, common.MsgOKUserUpdate, gin.H{"_id": id})
}
