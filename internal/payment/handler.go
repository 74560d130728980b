package payment

import (
	"texplicit_backend/internal/common"

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
	group := router.Group("/payment", authorized)
	{
		group.POST("/create_order", h.createOrder)
		group.POST("/capture_payment", h.capture)
		group.GET("/payment-history", h.history)
	}
}

func (h *Handler) createOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	id, err := h.service.CreateOrder(c.Request.Context(), common.GetUserIDFromContext(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKRazorpayOrderGenerated, gin.H{"order_id": id})
}

func (h *Handler) capture(c *gin.Context) {
	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	if err := h.service.Capture(c.Request.Context(), common.GetUserIDFromContext(c), req); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKPaymentCaptured, nil)
}

func (h *Handler) history(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), common.GetUserIDFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKPaymentHistory, history)
}
