package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitPrefix = "ratelimit:"
	rateLimitTTL    = 120 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// tokenBucketScript refills and consumes a token atomically.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = now - last_update
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// RateLimiter is a per-key token bucket stored in Redis.
type RateLimiter struct {
	client        redis.Scripter
	ratePerMinute int
}

// NewRateLimiter returns nil when client is nil, which disables limiting.
func NewRateLimiter(client *redis.Client, ratePerMinute int) *RateLimiter {
	if client == nil || ratePerMinute <= 0 {
		return nil
	}
	return &RateLimiter{client: client, ratePerMinute: ratePerMinute}
}

// Allow consumes one token for key. Redis errors fail open.
func (l *RateLimiter) Allow(ctx context.Context, key string) *RateLimitResult {
	burst := l.ratePerMinute
	rate := float64(l.ratePerMinute) / 60.0

	result, err := tokenBucketScript.Run(ctx, l.client,
		[]string{rateLimitPrefix + key},
		rate, burst, time.Now().Unix(), int(rateLimitTTL.Seconds()),
	).Int64Slice()
	if err != nil || len(result) != 3 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst)}
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		Remaining:  result[2],
		RetryAfter: time.Duration(result[1]) * time.Second,
	}
}
