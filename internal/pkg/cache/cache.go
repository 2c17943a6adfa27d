package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sivind/sivind-backend/internal/pkg/config"
)

// SetupCache creates the Redis client shared by the notifier. The client is
// always returned; err reports whether the initial ping succeeded.
func SetupCache(cfg config.Cache) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to cache: %v", err)
		return client, err
	}
	log.Printf("Successfully connected to cache: %s", pong)
	return client, nil
}
