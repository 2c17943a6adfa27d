// Package notify fans subscription changes out to the dashboard's real-time
// channel. Each store has its own Redis pub/sub channel; only an identity that
// owns the store is allowed to listen on it.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sivind/sivind-backend/app/models"
)

const (
	EventSubscriptionUpdated = "subscription.updated"

	channelPrefix = "sivind:store:"
)

var ErrForbiddenChannel = errors.New("notify: channel belongs to another store")

// Event is the message published on a store channel.
type Event struct {
	Type    string    `json:"type"`
	StoreID string    `json:"storeId"`
	Plan    string    `json:"plan,omitempty"`
	Status  string    `json:"status,omitempty"`
	At      time.Time `json:"at"`
}

// ChannelFor returns the pub/sub channel for a store.
func ChannelFor(storeID string) string {
	return channelPrefix + storeID
}

// Authorize is the gate for the real-time channel: a caller may only listen to
// the store it was resolved to.
func Authorize(callerStoreID, requestedStoreID string) error {
	if callerStoreID == "" || requestedStoreID == "" || callerStoreID != requestedStoreID {
		return ErrForbiddenChannel
	}
	return nil
}

// RedisNotifier publishes store events through Redis.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a notifier on an existing client.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Publish sends ev on the store's channel.
func (n *RedisNotifier) Publish(ctx context.Context, ev Event) error {
	if ev.StoreID == "" {
		return errors.New("notify: store id is required")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, ChannelFor(ev.StoreID), payload).Err()
}

// SubscriptionUpdated implements billing.SubscriptionNotifier.
func (n *RedisNotifier) SubscriptionUpdated(ctx context.Context, sub *models.Subscription) error {
	return n.Publish(ctx, Event{
		Type:    EventSubscriptionUpdated,
		StoreID: sub.StoreID,
		Plan:    sub.Plan,
		Status:  sub.Status,
		At:      sub.UpdatedAt,
	})
}

// Subscribe opens a subscription on the store's channel. The caller must close it.
func (n *RedisNotifier) Subscribe(ctx context.Context, storeID string) (*redis.PubSub, error) {
	if storeID == "" {
		return nil, errors.New("notify: store id is required")
	}
	ps := n.client.Subscribe(ctx, ChannelFor(storeID))
	// Wait for the confirmation so early publishes are not lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return ps, nil
}

// Listen streams raw event payloads for storeID until ctx is done. The returned
// close func releases the subscription; the channel is closed afterwards.
func (n *RedisNotifier) Listen(ctx context.Context, storeID string) (<-chan string, func() error, error) {
	ps, err := n.Subscribe(ctx, storeID)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, ps.Close, nil
}
