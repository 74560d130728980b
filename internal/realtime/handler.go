package realtime

import (
	"io"
	"net/http"
	"time"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const keepAliveInterval = 25 * time.Second

// Handler exposes the event stream.
type Handler struct {
	hub    *Hub
	logger *zap.Logger
}

func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

// TokenQueryParam carries the bearer token for EventSource clients.
const TokenQueryParam = "token"

// RegisterRoutes mounts GET /events behind the authorized middleware. The token may come
// from the Authorization header or the token query parameter.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authorized gin.HandlerFunc) {
	router.GET("/events", middleware.QueryToken(TokenQueryParam), authorized, h.stream)
}

func (h *Handler) stream(c *gin.Context) {
	userID := common.GetUserIDFromContext(c)
	events, unsubscribe := h.hub.Subscribe(userID)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	h.logger.Debug("Event stream opened", zap.String("userID", userID))
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
	h.logger.Debug("Event stream closed", zap.String("userID", userID))
}
