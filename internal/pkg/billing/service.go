package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/sivind/sivind-backend/app/models"
)

// DefaultCallTimeout bounds each processor call and store write made by the service.
const DefaultCallTimeout = 10 * time.Second

// SubscriptionNotifier is told about every subscription the service writes.
type SubscriptionNotifier interface {
	SubscriptionUpdated(ctx context.Context, sub *models.Subscription) error
}

// Service turns verified billing events into subscription state.
type Service struct {
	repo        Repository
	processor   Processor
	catalog     PlanCatalog
	notifier    SubscriptionNotifier
	callTimeout time.Duration
	now         func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNotifier registers a notifier for applied subscription changes.
func WithNotifier(n SubscriptionNotifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithClock overrides the clock used to stamp updated_at.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a billing service from its collaborators.
func NewService(repo Repository, processor Processor, catalog PlanCatalog, opts ...ServiceOption) *Service {
	s := &Service{
		repo:        repo,
		processor:   processor,
		catalog:     catalog,
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Reconcile applies a verified event to the store's subscription. Applying the same
// event twice converges to the same record. Errors are *ReconciliationError.
func (s *Service) Reconcile(ctx context.Context, ev *VerifiedEvent) (*ReconciliationResult, error) {
	if ev == nil {
		return nil, errors.New("reconcile: event is required")
	}
	if ev.Kind != EventCheckoutCompleted {
		return &ReconciliationResult{EventID: ev.ID, Ignored: true}, nil
	}

	storeID := strings.TrimSpace(ev.Session.ClientReferenceID)
	if storeID == "" {
		return nil, &ReconciliationError{Kind: MissingStoreReference, EventID: ev.ID}
	}

	prices, err := s.lineItemPrices(ctx, ev.Session.ID)
	if err != nil {
		return nil, &ReconciliationError{Kind: UpstreamUnavailable, EventID: ev.ID, Err: err}
	}
	if len(prices) == 0 {
		return nil, &ReconciliationError{Kind: UnknownPlan, EventID: ev.ID, Err: errors.New("checkout session has no line items")}
	}

	plan, ok := s.catalog.Resolve(prices[0])
	if !ok {
		fiberlog.Errorf("[Billing] Event %s for store %s bought unmapped price %q", ev.ID, storeID, prices[0])
		return nil, &ReconciliationError{Kind: UnknownPlan, EventID: ev.ID, Err: errors.New("price " + prices[0] + " is not in the plan catalog")}
	}

	sub := &models.Subscription{
		StoreID:                storeID,
		Plan:                   string(plan),
		Status:                 models.BillingStatusActive,
		ExternalCustomerID:     ev.Session.CustomerID,
		ExternalSubscriptionID: ev.Session.SubscriptionID,
		LastEventID:            ev.ID,
		UpdatedAt:              s.now().UTC(),
	}
	if err := s.upsert(ctx, sub); err != nil {
		return nil, &ReconciliationError{Kind: StorageFailure, EventID: ev.ID, Err: err}
	}

	fiberlog.Infof("[Billing] Store %s now on plan %s (event %s)", storeID, sub.Plan, ev.ID)
	s.notify(ctx, sub)

	return &ReconciliationResult{
		EventID: ev.ID,
		StoreID: sub.StoreID,
		Plan:    sub.Plan,
		Status:  sub.Status,
	}, nil
}

// GetSubscription returns the stored record for storeID or ErrSubscriptionNotFound.
func (s *Service) GetSubscription(ctx context.Context, storeID string) (*models.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.repo.GetSubscription(ctx, storeID)
}

// CreateCheckout starts a hosted checkout for a catalog price. The store id travels
// as the client reference and comes back on the completion event.
func (s *Service) CreateCheckout(ctx context.Context, in CheckoutInput) (*CheckoutSession, error) {
	if strings.TrimSpace(in.StoreID) == "" {
		return nil, errors.New("checkout: store id is required")
	}
	if _, ok := s.catalog.Resolve(in.PriceID); !ok {
		return nil, ErrUnknownPrice
	}

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.processor.CreateCheckoutSession(ctx, CheckoutInput{
		StoreID: strings.TrimSpace(in.StoreID),
		Email:   strings.TrimSpace(in.Email),
		PriceID: strings.TrimSpace(in.PriceID),
	})
}

func (s *Service) lineItemPrices(ctx context.Context, sessionID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.processor.CheckoutLineItemPrices(ctx, sessionID)
}

func (s *Service) upsert(ctx context.Context, sub *models.Subscription) error {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.repo.UpsertSubscription(ctx, sub)
}

// notify is best effort; the record is already durable.
func (s *Service) notify(ctx context.Context, sub *models.Subscription) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	if err := s.notifier.SubscriptionUpdated(ctx, sub); err != nil {
		fiberlog.Warnf("[Billing] Failed to notify store %s about subscription change: %v", sub.StoreID, err)
	}
}
