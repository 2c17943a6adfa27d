package security

import (
	"crypto/sha256"
	"errors"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	// DefaultWidgetTokenTTL is the validity window of a widget token.
	DefaultWidgetTokenTTL = 7 * 24 * time.Hour

	widgetIssuer   = "sivind"
	widgetAudience = "widget"
	widgetKeyInfo  = "sivind widget token v1"
	widgetKeySize  = 32
)

var ErrMissingSigningSecret = errors.New("widget token: signing secret is required")

// WidgetClaims bind a widget token to exactly one store. They carry nothing about
// the owner because the token is embedded on third-party pages.
type WidgetClaims struct {
	StoreID string `json:"storeId"`
	jwt.RegisteredClaims
}

// WidgetToken is a freshly issued widget credential.
type WidgetToken struct {
	Token     string
	StoreID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type widgetConfig struct {
	now func() time.Time
}

// WidgetOption configures the widget token issuer and verifier.
type WidgetOption func(*widgetConfig)

// WithWidgetClock overrides the clock used when stamping and checking tokens.
func WithWidgetClock(now func() time.Time) WidgetOption {
	return func(c *widgetConfig) { c.now = now }
}

func newWidgetConfig(opts []WidgetOption) widgetConfig {
	cfg := widgetConfig{now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// deriveWidgetKey stretches the configured secret into a key used only for widget tokens.
func deriveWidgetKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, ErrMissingSigningSecret
	}
	key := make([]byte, widgetKeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(widgetKeyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// WidgetTokenIssuer mints widget tokens.
type WidgetTokenIssuer struct {
	key []byte
	ttl time.Duration
	cfg widgetConfig
}

// NewWidgetTokenIssuer creates an issuer. A zero ttl uses DefaultWidgetTokenTTL.
func NewWidgetTokenIssuer(secret string, ttl time.Duration, opts ...WidgetOption) (*WidgetTokenIssuer, error) {
	key, err := deriveWidgetKey(secret)
	if err != nil {
		return nil, err
	}
	if ttl < 0 {
		return nil, errors.New("widget token: ttl must be non-negative")
	}
	if ttl == 0 {
		ttl = DefaultWidgetTokenTTL
	}
	return &WidgetTokenIssuer{key: key, ttl: ttl, cfg: newWidgetConfig(opts)}, nil
}

// Issue mints a token for storeID. The caller must have authorized the store already.
func (i *WidgetTokenIssuer) Issue(storeID string) (*WidgetToken, error) {
	if storeID == "" {
		return nil, errors.New("widget token: store id is required")
	}

	issuedAt := i.cfg.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.ttl)

	claims := &WidgetClaims{
		StoreID: storeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    widgetIssuer,
			Audience:  jwt.ClaimStrings{widgetAudience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return nil, err
	}
	return &WidgetToken{
		Token:     signed,
		StoreID:   storeID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// WidgetTokenVerifier checks widget tokens locally; it never calls out.
type WidgetTokenVerifier struct {
	key    []byte
	parser *jwt.Parser
}

// NewWidgetTokenVerifier creates a verifier sharing the issuer's secret.
func NewWidgetTokenVerifier(secret string, opts ...WidgetOption) (*WidgetTokenVerifier, error) {
	key, err := deriveWidgetKey(secret)
	if err != nil {
		return nil, err
	}
	cfg := newWidgetConfig(opts)
	return &WidgetTokenVerifier{
		key: key,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(widgetIssuer),
			jwt.WithAudience(widgetAudience),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(cfg.now),
		),
	}, nil
}

// Verify returns the store id bound to token. Every failure is an *AuthError.
func (v *WidgetTokenVerifier) Verify(token string) (string, error) {
	if token == "" || !looksLikeJWT(token) {
		return "", missing(CredentialWidget, errors.New("no bearer token"))
	}

	claims := &WidgetClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		return "", invalid(CredentialWidget, err)
	}
	if !parsed.Valid || claims.StoreID == "" {
		return "", invalid(CredentialWidget, errors.New("token carries no store"))
	}
	return claims.StoreID, nil
}
