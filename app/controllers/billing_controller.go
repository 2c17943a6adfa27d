package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/sivind/sivind-backend/internal/pkg/billing"
	"github.com/sivind/sivind-backend/internal/pkg/security"
	"github.com/sivind/sivind-backend/internal/pkg/usercontext"
)

// HeaderStripeSignature carries the webhook signature.
const HeaderStripeSignature = "Stripe-Signature"

type EventAuthenticator interface {
	Authenticate(payload []byte, signatureHeader string) (*billing.VerifiedEvent, error)
}

type SubscriptionReconciler interface {
	Reconcile(ctx context.Context, ev *billing.VerifiedEvent) (*billing.ReconciliationResult, error)
}

type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, in billing.CheckoutInput) (*billing.CheckoutSession, error)
}

type BillingController struct {
	events     EventAuthenticator
	reconciler SubscriptionReconciler
	checkout   CheckoutCreator
}

func NewBillingController(events EventAuthenticator, reconciler SubscriptionReconciler, checkout CheckoutCreator) *BillingController {
	return &BillingController{events: events, reconciler: reconciler, checkout: checkout}
}

type createCheckoutRequest struct {
	PriceID string `json:"priceId" validate:"required,max=255"`
}

// HandleStripeWebhook authenticates the raw payload before anything else reads
// it. Any reconciliation failure answers 500 so the processor redelivers.
func (b *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	raw, ok := usercontext.GetRawBody(c)
	if !ok {
		fiberlog.Error("[Billing] Webhook route is missing raw body capture")
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeRawBodyUnreadable)
	}

	ev, err := b.events.Authenticate(raw, c.Get(HeaderStripeSignature))
	if err != nil {
		fiberlog.Warnf("[Billing] Rejected webhook: %v", err)
		if security.KindOf(err) == security.AuthMissing {
			return jsonError(c, fiber.StatusBadRequest, ErrCodeMissingSignature)
		}
		return jsonError(c, fiber.StatusBadRequest, ErrCodeInvalidSignature)
	}

	result, err := b.reconciler.Reconcile(c.UserContext(), ev)
	if err != nil {
		var recErr *billing.ReconciliationError
		if errors.As(err, &recErr) {
			fiberlog.Errorf("[Billing] Event %s not applied (%s): %v", ev.ID, recErr.Kind, err)
		} else {
			fiberlog.Errorf("[Billing] Event %s not applied: %v", ev.ID, err)
		}
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeReconcileFailed)
	}

	if result.Ignored {
		fiberlog.Debugf("[Billing] Ignored event %s of type %s", ev.ID, ev.Type)
	}
	return c.JSON(fiber.Map{"received": true})
}

// HandleCreateCheckout starts a hosted checkout for the caller's store.
func (b *BillingController) HandleCreateCheckout(c *fiber.Ctx) error {
	var req createCheckoutRequest
	if body := bindJSON(c, &req); body != nil {
		return c.Status(fiber.StatusBadRequest).JSON(body)
	}

	in := billing.CheckoutInput{
		StoreID: usercontext.GetStoreID(c),
		PriceID: req.PriceID,
	}
	if identity := usercontext.GetIdentity(c); identity != nil {
		in.Email = identity.Email
	}

	session, err := b.checkout.CreateCheckout(c.UserContext(), in)
	if err != nil {
		if errors.Is(err, billing.ErrUnknownPrice) {
			return jsonError(c, fiber.StatusBadRequest, ErrCodeUnknownPrice)
		}
		fiberlog.Errorf("[Billing] Checkout for store %s failed: %v", in.StoreID, err)
		return jsonError(c, fiber.StatusBadGateway, ErrCodeCheckoutFailed)
	}

	return c.JSON(fiber.Map{"url": session.URL, "id": session.ID})
}
