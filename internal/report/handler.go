package report

import (
	"mime"
	"net/http"
	"strconv"

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
	group := router.Group("/report", authorized)
	{
		group.POST("/generate", h.generate)
		group.GET("/all", h.list)
		group.GET("/pending", h.pending)
		group.GET("/failed", h.failed)
		group.DELETE("/failed/delete", h.deleteFailed)
		group.GET("/download/:id", h.download)
		group.POST("/share", h.share)
		group.GET("/search", h.search)
		group.GET("/:id", h.get)
		group.DELETE("/:id", h.delete)
	}
}

func (h *Handler) generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	rep, err := h.service.Generate(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKReportQueued, rep)
}

func (h *Handler) list(c *gin.Context) {
	var f Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	limit, offset := common.GetLimitOffset(c, common.DefaultLimit)
	reports, err := h.service.List(c.Request.Context(), common.GetUserIDFromContext(c), f, limit, offset)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKReportRetrieval, reports)
}

func (h *Handler) pending(c *gin.Context) {
	var f Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	limit, offset := common.GetLimitOffset(c, common.DefaultLimit)
	reports, err := h.service.Pending(c.Request.Context(), common.GetUserIDFromContext(c), f, limit, offset)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKReportRetrieval, reports)
}

func (h *Handler) failed(c *gin.Context) {
	reports, err := h.service.Failed(c.Request.Context(), common.GetUserIDFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKReportRetrieval, reports)
}

func (h *Handler) deleteFailed(c *gin.Context) {
	n, err := h.service.DeleteFailed(c.Request.Context(), common.GetUserIDFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKFailedReportsDelete, gin.H{"deleted": n})
}

func (h *Handler) get(c *gin.Context) {
	rep, err := h.service.Get(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKReportRetrieval, rep)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id")); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKReportDelete, nil)
}

func (h *Handler) download(c *gin.Context) {
	name, data, err := h.service.Download(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Header("Content-Length", strconv.Itoa(len(data)))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", data)
}

func (h *Handler) share(c *gin.Context) {
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	n, err := h.service.Share(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKReportShared, gin.H{"shared": n})
}

func (h *Handler) search(c *gin.Context) {
	limit, offset := common.GetLimitOffset(c, common.DefaultLimit)
	hits, err := h.service.Search(c.Request.Context(), common.GetUserIDFromContext(c), c.Query("q"), limit, offset)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKReportSearch, hits)
}
