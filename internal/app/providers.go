package app

import (
	"texplicit_backend/internal/auth"
	"texplicit_backend/internal/chat"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/documents"
	"texplicit_backend/internal/middleware"
	"texplicit_backend/internal/news"
	"texplicit_backend/internal/platform/cache"
	"texplicit_backend/internal/realtime"
	"texplicit_backend/internal/report"
	"texplicit_backend/internal/shared"
	"texplicit_backend/internal/tasks"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Middleware holds the request middlewares shared by the route groups.
type Middleware struct {
	Authorized gin.HandlerFunc
	AdminOnly  gin.HandlerFunc
	RateLimit  gin.HandlerFunc
}

func NewMiddleware(tokens shared.TokenService, blocklist auth.TokenBlocklistService, users shared.UserLookup, limiter *cache.RateLimiter, logger *zap.Logger) Middleware {
	return Middleware{
		Authorized: middleware.Authorized(tokens, blocklist, users, logger.Named("AuthMiddleware")),
		AdminOnly:  middleware.AdminOnly(),
		RateLimit:  middleware.RateLimit(limiter),
	}
}

// NewRateLimiter returns nil, which disables throttling, without redis or a configured rate.
func NewRateLimiter(client *redis.Client, cfg *config.Config) *cache.RateLimiter {
	if client == nil || cfg.RateLimitPerMinute <= 0 {
		return nil
	}
	return cache.NewRateLimiter(client, cfg.RateLimitPerMinute)
}

// NewPublisher routes events through redis when it is available so that tasks running in a
// separate worker process still reach the streams held by the API process.
func NewPublisher(hub *realtime.Hub, client *redis.Client, logger *zap.Logger) realtime.Publisher {
	if client == nil {
		return hub
	}
	return realtime.NewRedisPublisher(client, realtime.EventsChannel, logger.Named("events"))
}

// TaskTypes lists the task types registered with the worker registry.
type TaskTypes []string

// RegisterTasks binds every background task handler to registry.
func RegisterTasks(registry *tasks.Registry, chats *chat.Service, docs *documents.Service, newsService *news.Service, reports *report.Service) TaskTypes {
	chats.RegisterTasks(registry)
	docs.RegisterTasks(registry)
	newsService.RegisterTasks(registry)
	reports.RegisterTasks(registry)
	return registry.Types()
}
