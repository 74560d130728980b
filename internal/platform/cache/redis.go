// Package cache provides the Redis connection shared by the task broker and the rate limiter.
package cache

import (
	"context"
	"fmt"
	"time"

	"texplicit_backend/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedis parses REDIS_URL, tunes the pool and verifies the connection.
func NewRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

// NewOptionalRedis connects to Redis but tolerates an unreachable server: it returns a nil
// client so callers can fall back to in-process execution during local development.
func NewOptionalRedis(cfg *config.Config, logger *zap.Logger) (*redis.Client, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis unavailable, background tasks run in-process and rate limiting is disabled", zap.Error(err))
		return nil, func() {}
	}
	logger.Info("Successfully connected to Redis")
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Error("Error closing Redis client", zap.Error(err))
		}
	}
}
