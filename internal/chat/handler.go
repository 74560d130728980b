package chat

import (
	"texplicit_backend/internal/common"
	"texplicit_backend/internal/middleware"
	"texplicit_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the /chat routes.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authorized gin.HandlerFunc) {
	group := router.Group("/chat", authorized)
	{
		group.POST("", h.ask)
		group.GET("", h.history)
		group.DELETE("", h.clear)
	}
}

func (h *Handler) ask(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	if err := h.service.Ask(c.Request.Context(), middleware.CurrentUser(c), req.Params); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKChatQueued, nil)
}

// history responds with [entries, userImage].
func (h *Handler) history(c *gin.Context) {
	limit, offset := common.GetLimitOffset(c, 10)
	u := middleware.CurrentUser(c)
	entries, err := h.service.History(c.Request.Context(), u.HexID(), limit, offset)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	image := shared.ImageURL(common.RequestBaseURL(c)+"/account/image", u.Image)
	common.RespondOK(c, common.MsgOKChatRetrieval, []interface{}{entries, image})
}

func (h *Handler) clear(c *gin.Context) {
	if err := h.service.Clear(c.Request.Context(), common.GetUserIDFromContext(c)); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKChatDelete, nil)
}
