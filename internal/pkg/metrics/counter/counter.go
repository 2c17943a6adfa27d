// Package counter keeps per-store widget usage in Redis hashes, one hash per
// calendar month (UTC) with the store id as field.
package counter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	messagesKeyPrefix = "widget:counters:messages:"
	monthLayout       = "2006-01"

	// Hashes outlive their month so the dashboard can still show last month.
	retention = 62 * 24 * time.Hour
)

// Counter records widget traffic per store.
type Counter struct {
	client *redis.Client
	now    func() time.Time
}

func New(client *redis.Client) *Counter {
	return &Counter{client: client, now: time.Now}
}

// WithClock overrides the clock used to pick the month bucket.
func (c *Counter) WithClock(now func() time.Time) *Counter {
	c.now = now
	return c
}

// Month returns the bucket label for the current month.
func (c *Counter) Month() string {
	return c.now().UTC().Format(monthLayout)
}

func messagesKey(month string) string {
	return messagesKeyPrefix + month
}

// AddMessage increments the store's message counter for the current month and
// returns the new count.
func (c *Counter) AddMessage(ctx context.Context, storeID string) (int64, error) {
	if storeID == "" {
		return 0, errors.New("counter: store id is required")
	}
	key := messagesKey(c.Month())

	pipe := c.client.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, storeID, 1)
	pipe.Expire(ctx, key, retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Messages returns the store's message count for month ("2006-01").
func (c *Counter) Messages(ctx context.Context, storeID, month string) (int64, error) {
	n, err := c.client.HGet(ctx, messagesKey(month), storeID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
