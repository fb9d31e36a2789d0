package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitOptions configures a fixed-window Redis counter.
type RateLimitOptions struct {
	Prefix  string
	Max     int
	Window  time.Duration
	Key     func(c *fiber.Ctx) string
	Message string
}

// RateLimit rejects requests beyond Max per Window for the same key.
// It is a no-op without Redis and fails open on cache errors.
func RateLimit(cache redis.UniversalClient, opts RateLimitOptions) fiber.Handler {
	if opts.Max <= 0 {
		opts.Max = 5
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if opts.Key == nil {
		opts.Key = func(c *fiber.Ctx) string { return c.IP() }
	}
	if opts.Message == "" {
		opts.Message = "too many requests, try again later"
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		key := "rl:" + opts.Prefix + ":" + opts.Key(c)
		ctx, cancel := context.WithTimeout(c.UserContext(), cacheOpTimeout)
		defer cancel()

		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, opts.Window)
		}
		if cnt > int64(opts.Max) {
			if ttl, err := cache.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
			}
			return fiber.NewError(http.StatusTooManyRequests, opts.Message)
		}
		return c.Next()
	}
}

// LoginRateLimit limits login attempts per email, falling back to the client IP.
func LoginRateLimit(cache redis.UniversalClient, maxPerMin int) fiber.Handler {
	return RateLimit(cache, RateLimitOptions{
		Prefix: "login",
		Max:    maxPerMin,
		Window: time.Minute,
		Key: func(c *fiber.Ctx) string {
			var req struct {
				Email string `json:"email"`
			}
			_ = c.BodyParser(&req)
			if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
				return email
			}
			return c.IP()
		},
		Message: "too many login attempts, try again later",
	})
}

// ResendRateLimit limits resends of one verification request.
func ResendRateLimit(cache redis.UniversalClient, max int, window time.Duration) fiber.Handler {
	return RateLimit(cache, RateLimitOptions{
		Prefix:  "resend",
		Max:     max,
		Window:  window,
		Key:     func(c *fiber.Ctx) string { return c.Params("id") },
		Message: "verification was resent too many times, try again later",
	})
}
