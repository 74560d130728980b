// File: internal/menu/handler.go
package menu

import (
	"texplicit_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for menu handlers.
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes sets up the public menu route.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/menu", h.getMenu)
}

func (h *Handler) getMenu(c *gin.Context) {
	var req MenuRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.RespondWithError(c, common.BindingError(err))
			return
		}
	}
	menus, err := h.service.GetMenus(c.Request.Context(), req.MenuIDs)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKMenuRetrieval, menus)
}
