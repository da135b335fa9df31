package handler

import (
	"github.com/campushub/notifyhub/internal/ratelimit"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RateLimitMiddleware consults the token bucket keyed by caller identity
// before any actor work happens. A limiter backend failure fails open so
// a Redis blip does not take notification delivery down with it.
func RateLimitMiddleware(limiter ratelimit.Limiter, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}

		key := principalFrom(c).UserID
		if key == "" {
			key = c.IP()
		}

		allowed, err := limiter.Allow(c.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request",
				zap.String("key", key),
				zap.Error(err),
			)
			return c.Next()
		}
		if !allowed {
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}

		return c.Next()
	}
}
