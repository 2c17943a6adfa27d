package billing

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sivind/sivind-backend/app/models"
)

// Repository persists subscription records keyed by store id.
type Repository interface {
	// UpsertSubscription creates or merges the record for sub.StoreID. Empty external
	// ids leave the stored values untouched.
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscription(ctx context.Context, storeID string) (*models.Subscription, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// upsertColumns lists the columns an existing row takes from sub on conflict.
func upsertColumns(sub *models.Subscription) []string {
	columns := []string{"plan", "status", "last_event_id", "updated_at"}
	if sub.ExternalCustomerID != "" {
		columns = append(columns, "external_customer_id")
	}
	if sub.ExternalSubscriptionID != "" {
		columns = append(columns, "external_subscription_id")
	}
	return columns
}

func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns(sub)),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Reload so the caller sees merged fields and the original created_at.
	return r.db.WithContext(ctx).Where("store_id = ?", sub.StoreID).First(sub).Error
}

func (r *gormRepository) GetSubscription(ctx context.Context, storeID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("store_id = ?", storeID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}
