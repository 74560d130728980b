package news

import (
	"texplicit_backend/internal/common"
	"texplicit_backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authorized gin.HandlerFunc) {
	router.GET("/get-news", authorized, h.fetch)
	router.POST("/news-document", authorized, h.save)
}

// fetch answers right away; articles follow on "<randomId>_<query>_news".
func (h *Handler) fetch(c *gin.Context) {
	var req FetchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	if err := h.service.Fetch(c.Request.Context(), common.GetUserIDFromContext(c), req); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKNewsQueued, []interface{}{})
}

func (h *Handler) save(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	doc, err := h.service.Save(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKNewsDocumentSaved, gin.H{"_id": doc.ID.Hex(), "originalFileName": doc.OriginalFileName})
}
