package cache

import (
	"github.com/gofiber/storage/redis"

	"github.com/sivind/sivind-backend/internal/pkg/config"
)

// limiterDatabase keeps rate limiter counters apart from pub/sub traffic (DB 0).
const limiterDatabase = 1

// NewLimiterStorage returns fiber storage for the rate limiter. It panics if
// Redis is unreachable, so callers only use it after a successful SetupCache.
func NewLimiterStorage(cfg config.Cache) *redis.Storage {
	return redis.New(redis.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		Database: limiterDatabase,
		Reset:    false,
	})
}
