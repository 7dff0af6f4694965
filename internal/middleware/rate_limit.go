package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/vasiprashanti/techlearn-api/internal/utils"
)

// RateLimit throttles a route per client IP and round access key.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return fmt.Sprintf("%s:%s:%s", identifier, c.IP(), c.Params("accessKey"))
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.FailKind(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, try again later", nil)
		},
	})
}
