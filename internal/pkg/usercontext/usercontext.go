package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sivind/sivind-backend/internal/pkg/security"
)

// SetIdentity stores a verified dashboard identity and the store it owns.
func SetIdentity(c *fiber.Ctx, identity *security.Identity, storeID string) {
	c.Locals(KeyIdentity, identity)
	c.Locals(KeyStoreID, storeID)
	c.Locals(KeyCallerBy, security.CredentialIdentity)
}

// SetWidgetStore stores the store id carried by a verified widget token.
func SetWidgetStore(c *fiber.Ctx, storeID string) {
	c.Locals(KeyStoreID, storeID)
	c.Locals(KeyCallerBy, security.CredentialWidget)
}

// GetIdentity returns the verified identity, or nil if the request was not
// authenticated with an identity token.
func GetIdentity(c *fiber.Ctx) *security.Identity {
	if identity, ok := c.Locals(KeyIdentity).(*security.Identity); ok {
		return identity
	}
	return nil
}

// GetStoreID returns the store the caller is scoped to, or "".
func GetStoreID(c *fiber.Ctx) string {
	if storeID, ok := c.Locals(KeyStoreID).(string); ok {
		return storeID
	}
	return ""
}

// GetCredential returns which credential kind authenticated the request.
func GetCredential(c *fiber.Ctx) string {
	if by, ok := c.Locals(KeyCallerBy).(string); ok {
		return by
	}
	return ""
}

// SetRawBody keeps the unparsed request bytes for signature checks.
func SetRawBody(c *fiber.Ctx, body []byte) {
	c.Locals(KeyRawBody, body)
}

// GetRawBody returns the captured bytes and whether capture ran.
func GetRawBody(c *fiber.Ctx) ([]byte, bool) {
	body, ok := c.Locals(KeyRawBody).([]byte)
	return body, ok
}
