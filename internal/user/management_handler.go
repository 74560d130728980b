package user

import (
	"strings"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/menu"
	"texplicit_backend/internal/middleware"
	"texplicit_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ManagementHandler lets an account manage its child users.
type ManagementHandler struct {
	service *Service
	menus   menu.Service
	logger  *zap.Logger
}

func NewManagementHandler(service *Service, menus menu.Service, logger *zap.Logger) *ManagementHandler {
	return &ManagementHandler{service: service, menus: menus, logger: logger}
}

func (h *ManagementHandler) RegisterRoutes(router *gin.RouterGroup, authorized gin.HandlerFunc) {
	group := router.Group("/user-management", authorized)
	{
		group.POST("/add-user", h.addUser)
		group.GET("/get-users", h.getUsers)
		group.GET("/get-user/:id", h.getUser)
		group.PUT("/edit-user/:id", h.editUser)
		group.DELETE("/del-user/:id", h.deleteUser)
		group.GET("/get-menu-names", h.getMenuNames)
	}
}

func (h *ManagementHandler) addUser(c *gin.Context) {
	var req ChildUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	id, sent, err := h.service.AddChild(c.Request.Context(), middleware.CurrentUser(c), req, common.RequestOrigin(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKUserCreated, gin.H{"_id": id, "user_email_sent": sent})
}

func (h *ManagementHandler) getUsers(c *gin.Context) {
	pageIndex, pageSize := common.GetPageParams(c)
	page, err := h.service.ListChildren(c.Request.Context(), common.GetUserIDFromContext(c), pageIndex, pageSize)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKUsersRetrieval, page)
}

func (h *ManagementHandler) getUser(c *gin.Context) {
	child, err := h.service.GetChild(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKUserRetrieval, shared.ToUserResponse(child, imageBaseURL(c)))
}

func (h *ManagementHandler) editUser(c *gin.Context) {
	var req ChildUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	if err := h.service.EditChild(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id"), req); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKUserUpdate, nil)
}

func (h *ManagementHandler) deleteUser(c *gin.Context) {
	if err := h.service.DeleteChild(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id")); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKUserDelete, nil)
}

// getMenuNames accepts menuIds as a comma separated list or as repeated parameters.
func (h *ManagementHandler) getMenuNames(c *gin.Context) {
	var refs []string
	for _, raw := range c.QueryArray("menuIds") {
		refs = append(refs, strings.Split(raw, ",")...)
	}
	if len(refs) == 0 {
		common.RespondWithError(c, common.ErrMissingParameters.WithMessage(common.MsgMissingRequiredParameter+"menuIds"))
		return
	}
	names, err := h.menus.GetMenuNames(c.Request.Context(), refs)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKMenuRetrieval, names)
}
