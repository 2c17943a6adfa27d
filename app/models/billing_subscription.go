package models

import "time"

const (
	BillingStatusActive     = "active"
	BillingStatusTrialing   = "trialing"
	BillingStatusPastDue    = "past_due"
	BillingStatusCanceled   = "canceled"
	BillingStatusIncomplete = "incomplete"
)

// Subscription is the per-store subscription record. It is keyed by store id and
// only ever written through the billing reconciler.
type Subscription struct {
	StoreID                string    `gorm:"primaryKey;type:varchar(128)" json:"store_id"`
	Plan                   string    `gorm:"type:varchar(20);not null;default:'free';index" json:"plan"`
	Status                 string    `gorm:"type:varchar(32);not null;default:'active'" json:"status"`
	ExternalCustomerID     string    `gorm:"type:varchar(191);default:''" json:"external_customer_id"`
	ExternalSubscriptionID string    `gorm:"type:varchar(191);default:'';index" json:"external_subscription_id"`
	LastEventID            string    `gorm:"type:varchar(191);default:''" json:"last_event_id"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"not null" json:"updated_at"`
}

// TableName pins the table to the name used by the SQL migrations.
func (Subscription) TableName() string {
	return "subscriptions"
}

// IsEntitling reports whether the record currently grants its plan.
func (s *Subscription) IsEntitling() bool {
	if s == nil {
		return false
	}
	switch s.Status {
	case BillingStatusActive, BillingStatusTrialing, BillingStatusPastDue:
		return true
	default:
		return false
	}
}
