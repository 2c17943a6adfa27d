package security

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWidgetSecret = "widget-secret-k1"
	otherSecret      = "widget-secret-k2"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newWidgetPair(t *testing.T, secret string, now time.Time) (*WidgetTokenIssuer, *WidgetTokenVerifier) {
	t.Helper()
	issuer, err := NewWidgetTokenIssuer(secret, 0, WithWidgetClock(fixedClock(now)))
	require.NoError(t, err)
	verifier, err := NewWidgetTokenVerifier(secret, WithWidgetClock(fixedClock(now)))
	require.NoError(t, err)
	return issuer, verifier
}

func TestWidgetToken_RoundTrip(t *testing.T) {
	issuer, verifier := newWidgetPair(t, testWidgetSecret, testNow)

	tok, err := issuer.Issue("store-42")
	require.NoError(t, err)
	assert.Equal(t, "store-42", tok.StoreID)
	assert.Equal(t, testNow, tok.IssuedAt)
	assert.Equal(t, testNow.Add(DefaultWidgetTokenTTL), tok.ExpiresAt)

	storeID, err := verifier.Verify(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "store-42", storeID)
}

func TestWidgetToken_CarriesOnlyStore(t *testing.T) {
	issuer, _ := newWidgetPair(t, testWidgetSecret, testNow)
	tok, err := issuer.Issue("u1")
	require.NoError(t, err)

	payload, err := base64.RawURLEncoding.DecodeString(strings.Split(tok.Token, ".")[1])
	require.NoError(t, err)

	var claims map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &claims))

	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"storeId", "iss", "aud", "iat", "nbf", "exp", "jti"}, keys)
	assert.NotContains(t, claims, "sub")
	assert.NotContains(t, claims, "email")
}

func TestWidgetToken_OtherSecretRejected(t *testing.T) {
	issuer, _ := newWidgetPair(t, testWidgetSecret, testNow)
	_, verifier := newWidgetPair(t, otherSecret, testNow)

	tok, err := issuer.Issue("store-42")
	require.NoError(t, err)

	storeID, err := verifier.Verify(tok.Token)
	assert.Empty(t, storeID)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestWidgetToken_Expired(t *testing.T) {
	issuer, err := NewWidgetTokenIssuer(testWidgetSecret, time.Hour, WithWidgetClock(fixedClock(testNow)))
	require.NoError(t, err)
	verifier, err := NewWidgetTokenVerifier(testWidgetSecret, WithWidgetClock(fixedClock(testNow.Add(2*time.Hour))))
	require.NoError(t, err)

	tok, err := issuer.Issue("store-42")
	require.NoError(t, err)

	_, err = verifier.Verify(tok.Token)
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestWidgetToken_DefaultWindowIsSevenDays(t *testing.T) {
	issuer, _ := newWidgetPair(t, testWidgetSecret, testNow)
	tok, err := issuer.Issue("store-42")
	require.NoError(t, err)

	_, stillValid := newWidgetPair(t, testWidgetSecret, testNow.Add(7*24*time.Hour-time.Second))
	_, err = stillValid.Verify(tok.Token)
	assert.NoError(t, err)

	_, tooLate := newWidgetPair(t, testWidgetSecret, testNow.Add(7*24*time.Hour+time.Second))
	_, err = tooLate.Verify(tok.Token)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestWidgetToken_Tampered(t *testing.T) {
	issuer, verifier := newWidgetPair(t, testWidgetSecret, testNow)
	tok, err := issuer.Issue("store-42")
	require.NoError(t, err)

	parts := strings.Split(tok.Token, ".")
	forged, err := json.Marshal(map[string]interface{}{
		"storeId": "store-other",
		"iss":     widgetIssuer,
		"aud":     []string{widgetAudience},
		"iat":     testNow.Unix(),
		"exp":     testNow.Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)

	_, err = verifier.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestWidgetToken_MissingMaterial(t *testing.T) {
	_, verifier := newWidgetPair(t, testWidgetSecret, testNow)

	for _, token := range []string{"", "not-a-token", "only.two"} {
		_, err := verifier.Verify(token)
		assert.ErrorIs(t, err, ErrMissingCredential, token)
	}
}

func TestWidgetToken_RejectsRawSecretSignature(t *testing.T) {
	_, verifier := newWidgetPair(t, testWidgetSecret, testNow)

	// A token signed with the configured secret itself, not the derived key.
	claims := &WidgetClaims{
		StoreID: "store-42",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    widgetIssuer,
			Audience:  jwt.ClaimStrings{widgetAudience},
			IssuedAt:  jwt.NewNumericDate(testNow),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testWidgetSecret))
	require.NoError(t, err)

	_, err = verifier.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestWidgetToken_Constructors(t *testing.T) {
	_, err := NewWidgetTokenIssuer("", 0)
	assert.ErrorIs(t, err, ErrMissingSigningSecret)

	_, err = NewWidgetTokenVerifier("")
	assert.ErrorIs(t, err, ErrMissingSigningSecret)

	_, err = NewWidgetTokenIssuer(testWidgetSecret, -time.Second)
	assert.Error(t, err)

	issuer, _ := newWidgetPair(t, testWidgetSecret, testNow)
	_, err = issuer.Issue("")
	assert.Error(t, err)
}

func TestCredentialKindsAreNotInterchangeable(t *testing.T) {
	key := newRSAKey(t)
	identity := newTestIdentityVerifier(t, key)
	issuer, widget := newWidgetPair(t, testWidgetSecret, testNow)

	widgetTok, err := issuer.Issue("u1")
	require.NoError(t, err)
	_, err = identity.Verify(context.Background(), widgetTok.Token)
	assert.ErrorIs(t, err, ErrInvalidCredential, "widget token must not pass as identity")

	identityTok := signIdentity(t, key, identityClaims("u1"))
	_, err = widget.Verify(identityTok)
	assert.ErrorIs(t, err, ErrInvalidCredential, "identity token must not pass as widget token")
}

func TestSubjectStoreResolver(t *testing.T) {
	var r SubjectStoreResolver

	storeID, err := r.StoreForSubject(context.Background(), &Identity{Subject: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", storeID)

	_, err = r.StoreForSubject(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = r.StoreForSubject(context.Background(), &Identity{})
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: "Bearer abc", want: "abc", wantOK: true},
		{in: "bearer  abc ", want: "abc", wantOK: true},
		{in: "Basic abc", wantOK: false},
		{in: "Bearer ", wantOK: false},
		{in: "", wantOK: false},
		{in: "abc", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := ExtractBearer(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Fatalf("ExtractBearer(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
