package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/sivind/sivind-backend/app/models"
	"github.com/sivind/sivind-backend/internal/pkg/billing"
	"github.com/sivind/sivind-backend/internal/pkg/entitlements"
	"github.com/sivind/sivind-backend/internal/pkg/usercontext"
)

type SubscriptionReader interface {
	GetSubscription(ctx context.Context, storeID string) (*models.Subscription, error)
}

// UsageReader reports monthly widget usage per store.
type UsageReader interface {
	Month() string
	Messages(ctx context.Context, storeID, month string) (int64, error)
}

type DashboardController struct {
	subscriptions SubscriptionReader
	usage         UsageReader
}

func NewDashboardController(subscriptions SubscriptionReader) *DashboardController {
	return &DashboardController{subscriptions: subscriptions}
}

// WithUsage enables the usage endpoint.
func (d *DashboardController) WithUsage(usage UsageReader) *DashboardController {
	d.usage = usage
	return d
}

func (d *DashboardController) HandleActivity(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"activities": []fiber.Map{}})
}

func (d *DashboardController) HandleAIMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"metrics": fiber.Map{
			"accuracy":         0,
			"resolution":       0,
			"speed":            0,
			"uptime":           0,
			"learningProgress": 0,
		},
	})
}

// HandleUsage reports this month's widget messages against the plan limit.
// A limit of 0 means unlimited.
func (d *DashboardController) HandleUsage(c *fiber.Ctx) error {
	if d.usage == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, ErrCodeUsageUnavailable)
	}
	storeID := usercontext.GetStoreID(c)

	sub, err := d.currentSubscription(c.UserContext(), storeID)
	if err != nil {
		fiberlog.Errorf("[Dashboard] Failed to load subscription for store %s: %v", storeID, err)
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal)
	}

	month := c.Query("month", d.usage.Month())
	if _, err := time.Parse("2006-01", month); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeBadRequest)
	}
	messages, err := d.usage.Messages(c.UserContext(), storeID, month)
	if err != nil {
		fiberlog.Errorf("[Dashboard] Failed to read usage for store %s: %v", storeID, err)
		return jsonError(c, fiber.StatusServiceUnavailable, ErrCodeUsageUnavailable)
	}

	return c.JSON(fiber.Map{
		"storeId":  storeID,
		"month":    month,
		"messages": messages,
		"limit":    entitlements.Effective(sub).MonthlyConversations,
	})
}

// currentSubscription returns nil without error when the store has no record.
func (d *DashboardController) currentSubscription(ctx context.Context, storeID string) (*models.Subscription, error) {
	sub, err := d.subscriptions.GetSubscription(ctx, storeID)
	if errors.Is(err, billing.ErrSubscriptionNotFound) {
		return nil, nil
	}
	return sub, err
}

// HandleSubscription returns the caller's subscription and what it unlocks. A
// store without a record is on the free plan.
func (d *DashboardController) HandleSubscription(c *fiber.Ctx) error {
	storeID := usercontext.GetStoreID(c)

	sub, err := d.currentSubscription(c.UserContext(), storeID)
	if err != nil {
		fiberlog.Errorf("[Dashboard] Failed to load subscription for store %s: %v", storeID, err)
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal)
	}

	var subscription interface{}
	if sub != nil {
		subscription = fiber.Map{
			"plan":      sub.Plan,
			"status":    sub.Status,
			"updatedAt": sub.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}

	return c.JSON(fiber.Map{
		"storeId":      storeID,
		"subscription": subscription,
		"entitlements": entitlements.Effective(sub),
	})
}
