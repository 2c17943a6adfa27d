package billing

import (
	"context"
	"sync"

	"github.com/sivind/sivind-backend/app/models"
)

// MemoryRepository keeps subscriptions in process memory. It follows the same
// merge rules as the GORM repository and is used in tests and local development.
type MemoryRepository struct {
	mu   sync.RWMutex
	subs map[string]models.Subscription
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{subs: make(map[string]models.Subscription)}
}

func (r *MemoryRepository) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	merged := *sub
	if existing, ok := r.subs[sub.StoreID]; ok {
		merged.CreatedAt = existing.CreatedAt
		if merged.ExternalCustomerID == "" {
			merged.ExternalCustomerID = existing.ExternalCustomerID
		}
		if merged.ExternalSubscriptionID == "" {
			merged.ExternalSubscriptionID = existing.ExternalSubscriptionID
		}
	} else if merged.CreatedAt.IsZero() {
		merged.CreatedAt = merged.UpdatedAt
	}

	r.subs[sub.StoreID] = merged
	*sub = merged
	return nil
}

func (r *MemoryRepository) GetSubscription(ctx context.Context, storeID string) (*models.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subs[storeID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

// Len returns the number of stored records.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
