package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/sivind/sivind-backend/internal/pkg/security"
	"github.com/sivind/sivind-backend/internal/pkg/usercontext"
)

// IdentityAuthenticator verifies dashboard identity tokens.
type IdentityAuthenticator interface {
	Verify(ctx context.Context, token string) (*security.Identity, error)
}

// WidgetAuthenticator verifies widget tokens and returns their store id.
type WidgetAuthenticator interface {
	Verify(token string) (string, error)
}

// Authentication failure codes written to responses.
const (
	CodeMissingCredential = "missing_credential"
	CodeInvalidCredential = "invalid_credential"
	CodeNoStore           = "no_store"
)

// RequireIdentity admits requests with a valid identity bearer token and scopes
// them to the store the identity owns.
func RequireIdentity(verifier IdentityAuthenticator, stores security.StoreResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := security.ExtractBearer(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return denyAuth(c, security.MissingError(security.CredentialIdentity, nil))
		}

		identity, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			return denyAuth(c, err)
		}

		storeID, err := stores.StoreForSubject(c.UserContext(), identity)
		if err != nil {
			if errors.Is(err, security.ErrNoStore) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": CodeNoStore})
			}
			fiberlog.Errorf("[Gate] Store lookup failed for subject %s: %v", identity.Subject, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}

		usercontext.SetIdentity(c, identity, storeID)
		return c.Next()
	}
}

// RequireWidgetToken admits requests carrying a valid widget token. Only the
// store id from the token is exposed to handlers.
func RequireWidgetToken(verifier WidgetAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := security.ExtractBearer(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return denyAuth(c, security.MissingError(security.CredentialWidget, nil))
		}

		storeID, err := verifier.Verify(token)
		if err != nil {
			return denyAuth(c, err)
		}

		usercontext.SetWidgetStore(c, storeID)
		return c.Next()
	}
}

// CaptureRawBody keeps a copy of the unparsed body so signature checks see the
// exact bytes that were sent.
func CaptureRawBody() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.BodyRaw()
		body := make([]byte, len(raw))
		copy(body, raw)
		usercontext.SetRawBody(c, body)
		return c.Next()
	}
}

// AuthStatus maps an authentication error to its HTTP status.
func AuthStatus(err error) int {
	if security.KindOf(err) == security.AuthMissing {
		return fiber.StatusUnauthorized
	}
	return fiber.StatusForbidden
}

// AuthCode maps an authentication error to its response code.
func AuthCode(err error) string {
	if security.KindOf(err) == security.AuthMissing {
		return CodeMissingCredential
	}
	return CodeInvalidCredential
}

func denyAuth(c *fiber.Ctx, err error) error {
	if security.KindOf(err) == security.AuthInvalid {
		fiberlog.Warnf("[Gate] Rejected credential on %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(AuthStatus(err)).JSON(fiber.Map{"error": AuthCode(err)})
}
