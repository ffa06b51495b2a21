package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/uniticket/internal/config"
	apperrors "github.com/spec-kit/uniticket/pkg/util"
)

const keyPrefix = "uniticket:rl"

// tokenBucket refills refill_tokens every interval_ms up to capacity and
// takes one token per call. Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
    tokens = capacity
    last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
    local elapsed = math.max(0, now_ms - last_refill)
    local intervals = math.floor(elapsed / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + (intervals * refill_tokens))
        last_refill = last_refill + (intervals * interval_ms)
    end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
    allowed = 1
    tokens = tokens - 1
else
    retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// Decision is the outcome of one bucket check.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter throttles clients by IP. With a Redis client the bucket is shared
// across instances; without one each process keeps its own window.
type Limiter struct {
	cfg    config.RateLimitConfig
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// New builds a Limiter. client may be nil.
func New(cfg config.RateLimitConfig, client *redis.Client, logger *zap.Logger) *Limiter {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = cfg.Capacity
	}
	if cfg.RefillIntervalMS <= 0 {
		cfg.RefillIntervalMS = 60 * 1000
	}
	return &Limiter{cfg: cfg, client: client, logger: logger, now: time.Now}
}

// Middleware returns the fiber handler enforcing the limit.
func (l *Limiter) Middleware() fiber.Handler {
	if !l.cfg.Enabled {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if l.client == nil {
		return l.localMiddleware()
	}
	return l.redisMiddleware()
}

func (l *Limiter) redisMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision, err := l.Allow(c.UserContext(), clientKey(c))
		if err != nil {
			// Fail open: an unreachable Redis must not take the API down.
			l.logger.Warn("rate limit check failed", zap.Error(err))
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if !decision.Allowed {
			secs := retrySeconds(decision.RetryAfter)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return apperrors.NewRateLimited(secs)
		}
		return c.Next()
	}
}

func (l *Limiter) localMiddleware() fiber.Handler {
	window := l.cfg.RefillInterval()
	return limiter.New(limiter.Config{
		Max:          l.cfg.Capacity,
		Expiration:   window,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			secs := retrySeconds(window)
			if header := c.GetRespHeader(fiber.HeaderRetryAfter); header != "" {
				if parsed, err := strconv.Atoi(header); err == nil {
					secs = parsed
				}
			}
			return apperrors.NewRateLimited(secs)
		},
	})
}

// Allow takes one token from the bucket identified by key.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	interval := l.cfg.RefillInterval()
	ttl := int64(math.Ceil((5 * interval).Seconds()))
	vals, err := tokenBucket.Run(ctx, l.client, []string{key},
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		interval.Milliseconds(),
		ttl,
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(vals) != 3 {
		return Decision{}, fmt.Errorf("unexpected token bucket result %v", vals)
	}
	return Decision{
		Allowed:    vals[0] == 1,
		Remaining:  vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

func clientKey(c *fiber.Ctx) string {
	ip := c.IP()
	if ip == "" {
		ip = "unknown"
	}
	return keyPrefix + ":ip:" + ip
}

func retrySeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 0 {
		return 0
	}
	return secs
}
