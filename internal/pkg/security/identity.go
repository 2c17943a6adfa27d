package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/golang-jwt/jwt/v5"
)

// GoogleSecureTokenJWKSURL publishes the keys that sign Firebase ID tokens.
const GoogleSecureTokenJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

const maxSubjectLength = 128

// Identity is what a verified dashboard credential proves.
type Identity struct {
	Subject string
	Email   string
	Claims  map[string]interface{}
}

// IdentityVerifier validates Firebase ID tokens for dashboard callers.
type IdentityVerifier struct {
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
	now      func() time.Time
}

// IdentityOption configures an IdentityVerifier.
type IdentityOption func(*IdentityVerifier)

// WithIdentityClock overrides the clock used for exp/iat checks.
func WithIdentityClock(now func() time.Time) IdentityOption {
	return func(v *IdentityVerifier) { v.now = now }
}

// NewIdentityVerifier creates a verifier accepting tokens for the given Firebase project.
func NewIdentityVerifier(keyfunc jwt.Keyfunc, projectID string, opts ...IdentityOption) (*IdentityVerifier, error) {
	if keyfunc == nil {
		return nil, errors.New("identity: keyfunc is required")
	}
	if projectID == "" {
		return nil, errors.New("identity: project id is required")
	}
	v := &IdentityVerifier{
		keyfunc:  keyfunc,
		issuer:   "https://securetoken.google.com/" + projectID,
		audience: projectID,
		now:      time.Now,
	}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

// Verify checks an identity token and returns the subject it proves. Every failure
// is an *AuthError.
func (v *IdentityVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" || !looksLikeJWT(token) {
		return nil, missing(CredentialIdentity, errors.New("no bearer token"))
	}
	if err := ctx.Err(); err != nil {
		return nil, invalid(CredentialIdentity, err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)

	claims := jwt.MapClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, v.keyfunc)
	if err != nil {
		return nil, invalid(CredentialIdentity, err)
	}
	if !parsed.Valid {
		return nil, invalid(CredentialIdentity, errors.New("token not valid"))
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, invalid(CredentialIdentity, errors.New("token has no subject"))
	}
	if len(sub) > maxSubjectLength {
		return nil, invalid(CredentialIdentity, fmt.Errorf("subject longer than %d characters", maxSubjectLength))
	}

	email, _ := claims["email"].(string)
	return &Identity{
		Subject: sub,
		Email:   email,
		Claims:  claims,
	}, nil
}

// NewIdentityKeySet fetches the JWKS at jwksURL and keeps it refreshed in the
// background until ctx is done.
func NewIdentityKeySet(ctx context.Context, jwksURL string, timeout time.Duration) (*keyfunc.JWKS, error) {
	if jwksURL == "" {
		jwksURL = GoogleSecureTokenJWKSURL
	}
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			fiberlog.Errorf("identity: background refresh of JWKS failed: %v", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    timeout,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("identity: failed to load JWKS from %s: %w", jwksURL, err)
	}
	return jwks, nil
}
