package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/config"
)

// RateLimitConfig describes one fixed-window limit.
type RateLimitConfig struct {
	// MaxRequests allowed per Window.
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// AuthRateLimitConfig covers signup and the other public auth endpoints.
func AuthRateLimitConfig(cfg config.RateLimitConfig) RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: orDefault(cfg.AuthLimit, 20),
		Window:      window(cfg),
		KeyPrefix:   "rl:auth",
	}
}

// AuthIPRateLimitConfig caps everything one address sends to the auth endpoints.
func AuthIPRateLimitConfig(cfg config.RateLimitConfig) RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: orDefault(cfg.AuthIPLimit, 60),
		Window:      window(cfg),
		KeyPrefix:   "rl:auth:ip",
	}
}

// LoginRateLimitConfig is the stricter brute-force limit for login.
func LoginRateLimitConfig(cfg config.RateLimitConfig) RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: orDefault(cfg.LoginLimit, 10),
		Window:      window(cfg),
		KeyPrefix:   "rl:auth:login",
	}
}

// FinalizeRateLimitConfig limits finalize calls per client.
func FinalizeRateLimitConfig(cfg config.RateLimitConfig) RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: orDefault(cfg.FinalizeLimit, 30),
		Window:      window(cfg),
		KeyPrefix:   "rl:finalize",
	}
}

func window(cfg config.RateLimitConfig) time.Duration {
	return time.Duration(orDefault(cfg.WindowSec, 60)) * time.Second
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

// counterStore is the part of redis.UniversalClient the limiter needs.
// noExpiry is what TTL reports for a key that exists without an expiry.
const noExpiry time.Duration = -1

type counterStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// RateLimiter counts requests in Redis. Redis failures let the request through.
type RateLimiter struct {
	redisClient counterStore
}

func NewRateLimiter(redisClient redis.UniversalClient) *RateLimiter {
	return &RateLimiter{redisClient: redisClient}
}

// Limit keys the counter by client IP and route pattern.
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return rl.limit(cfg, func(c *gin.Context) string {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		return fmt.Sprintf("%s:%s:%s", cfg.KeyPrefix, c.ClientIP(), path)
	})
}

// LimitByIP keys the counter by client IP only, for a limit shared by a route group.
func (rl *RateLimiter) LimitByIP(cfg RateLimitConfig) gin.HandlerFunc {
	return rl.limit(cfg, func(c *gin.Context) string {
		return fmt.Sprintf("%s:%s", cfg.KeyPrefix, c.ClientIP())
	})
}

// LimitByUser keys the counter by the authenticated user, falling back to the client IP.
func (rl *RateLimiter) LimitByUser(cfg RateLimitConfig) gin.HandlerFunc {
	return rl.limit(cfg, func(c *gin.Context) string {
		if userID, ok := UserID(c); ok {
			return fmt.Sprintf("%s:u%d", cfg.KeyPrefix, userID)
		}
		return fmt.Sprintf("%s:%s", cfg.KeyPrefix, c.ClientIP())
	})
}

func (rl *RateLimiter) limit(cfg RateLimitConfig, keyFor func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFor(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := rl.redisClient.Incr(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("[RateLimiter] Redis error, allowing request")
			c.Next()
			return
		}

		if count == 1 {
			if err := rl.redisClient.Expire(ctx, key, cfg.Window).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("[RateLimiter] failed to set TTL")
			}
		}

		remaining := cfg.MaxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}

		ttl, err := rl.redisClient.TTL(ctx, key).Result()
		if err == nil && ttl == noExpiry {
			// The counter outlived a failed Expire; without a TTL it would block forever.
			if err := rl.redisClient.Expire(ctx, key, cfg.Window).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("[RateLimiter] failed to re-arm TTL")
			} else {
				ttl = cfg.Window
			}
		}
		retryAfter := int(ttl.Seconds())
		if retryAfter <= 0 {
			retryAfter = int(cfg.Window.Seconds())
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(retryAfter))

		if int(count) > cfg.MaxRequests {
			log.Warn().
				Str("key", key).
				Int64("count", count).
				Int("limit", cfg.MaxRequests).
				Msg("[RateLimiter] rate limit exceeded")

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"message":     "Too many requests. Please try again later.",
				"error_type":  "rate_limited",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
