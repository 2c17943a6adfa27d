package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// ClientIPConfig makes c.IP() report the visitor address from header when the
// server sits behind a proxy. With trusted set, the header is only honoured on
// connections from those proxies.
func ClientIPConfig(cfg fiber.Config, header string, trusted []string) fiber.Config {
	if header == "" {
		return cfg
	}
	cfg.ProxyHeader = header
	cfg.EnableIPValidation = true
	if len(trusted) > 0 {
		cfg.EnableTrustedProxyCheck = true
		cfg.TrustedProxies = trusted
	}
	return cfg
}

// WidgetRateLimiter limits public widget traffic per client IP, as resolved by ClientIPConfig. A nil storage
// keeps counters in process memory.
func WidgetRateLimiter(storage fiber.Storage, max int) fiber.Handler {
	cfg := limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "widget:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	}
	if storage != nil {
		cfg.Storage = storage
	}
	return limiter.New(cfg)
}
