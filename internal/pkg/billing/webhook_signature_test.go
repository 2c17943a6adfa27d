package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sivind/sivind-backend/internal/pkg/security"
)

const testWebhookSecret = "whsec_test_secret"

func signStripePayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedPayload(storeID string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_test_1",
  "object": "event",
  "api_version": "2023-10-16",
  "created": 1767225600,
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_test_1",
      "object": "checkout.session",
      "client_reference_id": %q,
      "customer": "cus_123",
      "subscription": "sub_456",
      "mode": "subscription"
    }
  }
}`, storeID))
}

func newTestAuthenticator(t *testing.T) *EventAuthenticator {
	t.Helper()
	a, err := NewEventAuthenticator(testWebhookSecret, 5*time.Minute)
	require.NoError(t, err)
	return a
}

func TestAuthenticate_CheckoutCompleted(t *testing.T) {
	a := newTestAuthenticator(t)
	payload := checkoutCompletedPayload("u1")

	ev, err := a.Authenticate(payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_test_1", ev.ID)
	assert.Equal(t, EventCheckoutCompleted, ev.Kind)
	assert.Equal(t, EventTypeCheckoutSessionCompleted, ev.Type)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), ev.Created)
	assert.Equal(t, CheckoutSessionRef{
		ID:                "cs_test_1",
		ClientReferenceID: "u1",
		CustomerID:        "cus_123",
		SubscriptionID:    "sub_456",
	}, ev.Session)
}

func TestAuthenticate_SingleByteMutation(t *testing.T) {
	a := newTestAuthenticator(t)
	payload := checkoutCompletedPayload("u1")
	header := signStripePayload(payload, testWebhookSecret, time.Now())

	mutated := append([]byte(nil), payload...)
	for i, b := range mutated {
		if b == 'u' {
			mutated[i] = 'v'
			break
		}
	}
	require.NotEqual(t, payload, mutated)

	ev, err := a.Authenticate(mutated, header)
	assert.Nil(t, ev)
	assert.ErrorIs(t, err, security.ErrInvalidCredential)
}

func TestAuthenticate_ReencodedPayloadFails(t *testing.T) {
	a := newTestAuthenticator(t)
	payload := checkoutCompletedPayload("u1")
	header := signStripePayload(payload, testWebhookSecret, time.Now())

	// Same JSON document, different bytes.
	compact := []byte(`{"id":"evt_test_1","object":"event","api_version":"2023-10-16","created":1767225600,"type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","object":"checkout.session","client_reference_id":"u1","customer":"cus_123","subscription":"sub_456","mode":"subscription"}}}`)
	_, err := a.Authenticate(compact, header)
	assert.ErrorIs(t, err, security.ErrInvalidCredential)
}

func TestAuthenticate_Failures(t *testing.T) {
	a := newTestAuthenticator(t)
	payload := checkoutCompletedPayload("u1")

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{name: "missing header", header: "", want: security.ErrMissingCredential},
		{name: "blank header", header: "   ", want: security.ErrMissingCredential},
		{name: "wrong secret", header: signStripePayload(payload, "whsec_other", time.Now()), want: security.ErrInvalidCredential},
		{name: "stale timestamp", header: signStripePayload(payload, testWebhookSecret, time.Now().Add(-10*time.Minute)), want: security.ErrInvalidCredential},
		{name: "garbage header", header: "not-a-signature", want: security.ErrInvalidCredential},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := a.Authenticate(payload, tc.header)
			assert.Nil(t, ev)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAuthenticate_UnhandledTypeIsIgnored(t *testing.T) {
	a := newTestAuthenticator(t)
	payload := []byte(`{"id":"evt_test_2","object":"event","created":1767225600,"type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice"}}}`)

	ev, err := a.Authenticate(payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, EventIgnored, ev.Kind)
	assert.Equal(t, "invoice.paid", ev.Type)
	assert.Empty(t, ev.Session.ID)
}

func TestNewEventAuthenticator(t *testing.T) {
	_, err := NewEventAuthenticator("", time.Minute)
	assert.Error(t, err)

	a, err := NewEventAuthenticator(testWebhookSecret, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultWebhookTolerance, a.tolerance)
}
