package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/sivind/sivind-backend/internal/pkg/security"
)

// DefaultWebhookTolerance bounds how old a signed timestamp may be.
const DefaultWebhookTolerance = webhook.DefaultTolerance

// EventAuthenticator verifies Stripe-Signature headers against the exact request bytes.
type EventAuthenticator struct {
	secret    string
	tolerance time.Duration
}

// NewEventAuthenticator creates an authenticator. A zero tolerance uses DefaultWebhookTolerance.
func NewEventAuthenticator(secret string, tolerance time.Duration) (*EventAuthenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("webhook signing secret is required")
	}
	if tolerance <= 0 {
		tolerance = DefaultWebhookTolerance
	}
	return &EventAuthenticator{secret: secret, tolerance: tolerance}, nil
}

// Authenticate checks the signature over payload and only then decodes it. Failures
// are *security.AuthError; event types the reconciler does not handle come back as
// EventIgnored without error.
func (a *EventAuthenticator) Authenticate(payload []byte, signatureHeader string) (*VerifiedEvent, error) {
	header := strings.TrimSpace(signatureHeader)
	if header == "" {
		return nil, security.MissingError(security.CredentialWebhook, webhook.ErrNotSigned)
	}

	event, err := webhook.ConstructEventWithOptions(payload, header, a.secret, webhook.ConstructEventOptions{
		Tolerance:                a.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, security.InvalidError(security.CredentialWebhook, err)
	}

	verified := &VerifiedEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Kind:    EventIgnored,
		Created: time.Unix(event.Created, 0).UTC(),
	}

	if verified.Type != EventTypeCheckoutSessionCompleted {
		return verified, nil
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, security.InvalidError(security.CredentialWebhook, errors.New("event has no data object"))
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, security.InvalidError(security.CredentialWebhook, fmt.Errorf("decode checkout session: %w", err))
	}

	verified.Kind = EventCheckoutCompleted
	verified.Session = CheckoutSessionRef{
		ID:                session.ID,
		ClientReferenceID: strings.TrimSpace(session.ClientReferenceID),
	}
	if session.Customer != nil {
		verified.Session.CustomerID = session.Customer.ID
	}
	if session.Subscription != nil {
		verified.Session.SubscriptionID = session.Subscription.ID
	}
	return verified, nil
}
