package router

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sivind/sivind-backend/app/controllers"
	"github.com/sivind/sivind-backend/internal/pkg/billing"
	"github.com/sivind/sivind-backend/internal/pkg/entitlements"
	"github.com/sivind/sivind-backend/internal/pkg/middleware"
	"github.com/sivind/sivind-backend/internal/pkg/security"
)

const (
	projectID     = "sivind-test"
	webhookSecret = "whsec_router_test"
	growthPrice   = "price_growth"
)

type stubProcessor struct {
	mu     sync.Mutex
	prices map[string][]string
}

func (p *stubProcessor) CheckoutLineItemPrices(_ context.Context, sessionID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prices[sessionID], nil
}

func (p *stubProcessor) CreateCheckoutSession(_ context.Context, in billing.CheckoutInput) (*billing.CheckoutSession, error) {
	return &billing.CheckoutSession{ID: "cs_new", URL: "https://checkout.example/" + in.StoreID}, nil
}

type testServer struct {
	app  *fiber.App
	key  *rsa.PrivateKey
	repo *billing.MemoryRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	kf := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		"kid-1": keyfunc.NewGivenCustom(&key.PublicKey, keyfunc.GivenKeyOptions{Algorithm: jwt.SigningMethodRS256.Alg()}),
	}).Keyfunc

	identities, err := security.NewIdentityVerifier(kf, projectID)
	require.NoError(t, err)
	issuer, err := security.NewWidgetTokenIssuer("widget-secret", 0)
	require.NoError(t, err)
	widgets, err := security.NewWidgetTokenVerifier("widget-secret")
	require.NoError(t, err)
	events, err := billing.NewEventAuthenticator(webhookSecret, 5*time.Minute)
	require.NoError(t, err)

	catalog, err := billing.NewPlanCatalog(map[string]entitlements.Plan{growthPrice: entitlements.PlanGrowth})
	require.NoError(t, err)
	repo := billing.NewMemoryRepository()
	processor := &stubProcessor{prices: map[string][]string{"cs_1": {growthPrice}, "cs_bad": {"price_unknown"}}}
	service := billing.NewService(repo, processor, catalog)

	app := fiber.New()
	InstallRouter(app, Handlers{
		Widget:       controllers.NewWidgetController(issuer),
		Billing:      controllers.NewBillingController(events, service, service),
		Dashboard:    controllers.NewDashboardController(service),
		Events:       controllers.NewEventsController(nil),
		IdentityGate: middleware.RequireIdentity(identities, security.SubjectStoreResolver{}),
		WidgetGate:   middleware.RequireWidgetToken(widgets),
	})

	return &testServer{app: app, key: key, repo: repo}
}

func (s *testServer) identityToken(t *testing.T, sub string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   "https://securetoken.google.com/" + projectID,
		"aud":   projectID,
		"sub":   sub,
		"email": sub + "@example.com",
		"iat":   now.Add(-time.Minute).Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "kid-1"
	signed, err := token.SignedString(s.key)
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body string, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	} else {
		out["text"] = string(raw)
	}
	return resp.StatusCode, out
}

func signWebhook(payload string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	mac.Write([]byte(payload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func completedEvent(eventID, sessionID, storeID string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":"checkout.session.completed","created":1767225600,`+
		`"data":{"object":{"id":%q,"object":"checkout.session","client_reference_id":%q,"customer":"cus_1","subscription":"sub_1"}}}`,
		eventID, sessionID, storeID)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/", "", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body["text"], "running")
}

func TestDashboardStoreFlow(t *testing.T) {
	s := newTestServer(t)
	idToken := s.identityToken(t, "u1")

	// identity -> widget token
	status, body := s.do(t, http.MethodPost, "/widget/token", idToken, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "u1", body["storeId"])
	widgetToken, _ := body["token"].(string)
	require.NotEmpty(t, widgetToken)

	// widget token -> store operation
	status, body = s.do(t, http.MethodPost, "/widget/message", widgetToken, `{"message":"hi"}`, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, `You said: "hi"`, body["reply"])

	// credentials are not interchangeable
	status, _ = s.do(t, http.MethodPost, "/widget/message", idToken, `{"message":"hi"}`, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = s.do(t, http.MethodGet, "/dashboard/activity", widgetToken, "", nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	// no subscription yet
	status, body = s.do(t, http.MethodGet, "/dashboard/subscription", idToken, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, body["subscription"])

	// paid checkout arrives
	payload := completedEvent("evt_1", "cs_1", "u1")
	status, body = s.do(t, http.MethodPost, "/stripe-webhook", "", payload, map[string]string{"Stripe-Signature": signWebhook(payload)})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])

	// duplicate delivery converges
	status, _ = s.do(t, http.MethodPost, "/stripe-webhook", "", payload, map[string]string{"Stripe-Signature": signWebhook(payload)})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, s.repo.Len())

	status, body = s.do(t, http.MethodGet, "/dashboard/subscription", idToken, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	sub, ok := body["subscription"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "growth", sub["plan"])
	assert.Equal(t, "active", sub["status"])
	ent, ok := body["entitlements"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "growth", ent["plan"])
}

func TestWebhookFailures(t *testing.T) {
	s := newTestServer(t)
	payload := completedEvent("evt_2", "cs_1", "u2")

	status, body := s.do(t, http.MethodPost, "/stripe-webhook", "", payload, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, controllers.ErrCodeMissingSignature, body["error"])

	tampered := strings.Replace(payload, "u2", "u3", 1)
	status, body = s.do(t, http.MethodPost, "/stripe-webhook", "", tampered, map[string]string{"Stripe-Signature": signWebhook(payload)})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, controllers.ErrCodeInvalidSignature, body["error"])

	unknown := completedEvent("evt_3", "cs_bad", "u2")
	status, body = s.do(t, http.MethodPost, "/stripe-webhook", "", unknown, map[string]string{"Stripe-Signature": signWebhook(unknown)})
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, controllers.ErrCodeReconcileFailed, body["error"])

	ignored := `{"id":"evt_4","object":"event","type":"invoice.paid","created":1767225600,"data":{"object":{}}}`
	status, _ = s.do(t, http.MethodPost, "/stripe-webhook", "", ignored, map[string]string{"Stripe-Signature": signWebhook(ignored)})
	assert.Equal(t, fiber.StatusOK, status)

	assert.Zero(t, s.repo.Len(), "no failed or ignored event may write")
}

func TestCreateCheckout(t *testing.T) {
	s := newTestServer(t)
	idToken := s.identityToken(t, "u1")

	status, body := s.do(t, http.MethodPost, "/create-checkout", idToken, `{"priceId":"`+growthPrice+`"}`, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "https://checkout.example/u1", body["url"])

	status, body = s.do(t, http.MethodPost, "/create-checkout", idToken, `{"priceId":"price_other"}`, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, controllers.ErrCodeUnknownPrice, body["error"])

	status, _ = s.do(t, http.MethodPost, "/create-checkout", "", `{"priceId":"`+growthPrice+`"}`, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestPublicAndStubRoutes(t *testing.T) {
	s := newTestServer(t)
	idToken := s.identityToken(t, "u1")

	status, body := s.do(t, http.MethodGet, "/widget/status", "", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "inactive", body["status"])

	status, body = s.do(t, http.MethodGet, "/ai/metrics", idToken, "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "metrics")

	status, _ = s.do(t, http.MethodGet, "/ai/metrics", "", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodGet, "/dashboard/events", idToken, "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, controllers.ErrCodeRealtimeDisabled, body["error"])
}
