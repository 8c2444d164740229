package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/zapshift/parcel-service/internal/config"
)

// Route classes. Each class keeps its own buckets.
const (
	classAPI     = "api"
	classPayment = "payment"
)

// takeToken tops the bucket up for every whole interval elapsed since the
// last refill and then spends one token.  Replies {ok, left, wait_ms}.
var takeToken = redis.NewScript(`
local now, cap, per, every, ttl =
  tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

local left = tonumber(redis.call('HGET', KEYS[1], 'left'))
local stamp = tonumber(redis.call('HGET', KEYS[1], 'stamp'))
if not left or not stamp then
  left, stamp = cap, now
end

local steps = math.floor(math.max(0, now - stamp) / every)
if steps > 0 then
  left = math.min(cap, left + steps * per)
  stamp = stamp + steps * every
end

local ok, wait = 0, 0
if left >= 1 then
  ok, left = 1, left - 1
else
  wait = math.max(0, every - (now - stamp))
end

redis.call('HSET', KEYS[1], 'left', left, 'stamp', stamp)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, left, wait}
`)

type bucketState struct {
	allowed   bool
	remaining int64
	wait      time.Duration
}

type rateLimiter struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

// NewRateLimiter limits requests with Redis token buckets.  Payment routes
// (cfg.PaymentPaths, matched against the route pattern) spend from the
// Payment bucket and every other route from the API bucket; within a class
// the bucket is picked by cfg.KeyStrategy.  Redis failures let the request
// through.
func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	l := &rateLimiter{cfg: cfg, rdb: rdb}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			class, bucket := l.classify(c.Path())
			key := l.key(class, c)
			ctx := c.Request().Context()

			st, err := l.take(ctx, key, bucket)
			if err != nil {
				slog.WarnContext(ctx, "rate limiter unavailable", "key", key, "err", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(bucket.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(st.remaining, 10))
			if l.cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if st.allowed {
				return next(c)
			}

			secs := int64((st.wait + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.FormatInt(secs, 10))
			slog.DebugContext(ctx, "rate limited", "class", class, "key", key, "retry_after", secs)
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

func (l *rateLimiter) classify(path string) (string, config.Bucket) {
	if l.cfg.PaymentPaths[path] {
		return classPayment, l.cfg.Payment
	}
	return classAPI, l.cfg.API
}

func (l *rateLimiter) take(ctx context.Context, key string, b config.Bucket) (bucketState, error) {
	reply, err := takeToken.Run(ctx, l.rdb, []string{key},
		time.Now().UnixMilli(),
		b.Capacity,
		b.RefillTokens,
		b.RefillInterval.Milliseconds(),
		int64(l.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return bucketState{}, err
	}
	if len(reply) != 3 {
		return bucketState{}, fmt.Errorf("rate limit reply has %d fields", len(reply))
	}
	return bucketState{
		allowed:   reply[0] == 1,
		remaining: reply[1],
		wait:      time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

// key builds prefix:class:<identity> where identity follows KeyStrategy.
// Unknown strategies fall back to the caller's IP.
func (l *rateLimiter) key(class string, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()

	parts := []string{l.cfg.Prefix, class}
	switch strings.ToLower(l.cfg.KeyStrategy) {
	case "user":
		parts = append(parts, "user", Subject(c))
	case "route":
		parts = append(parts, "route", route)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", Subject(c))
	default:
		parts = append(parts, "ip", ip)
	}
	return strings.Join(parts, ":")
}
