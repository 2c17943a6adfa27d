package security

import "strings"

// ExtractBearer returns the token from an Authorization header value. The scheme
// match is case-insensitive.
func ExtractBearer(header string) (string, bool) {
	auth := strings.TrimSpace(header)
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(auth[7:])
	if token == "" {
		return "", false
	}
	return token, true
}

// looksLikeJWT reports whether token has the three non-empty segments of a
// compact JWS. Anything else is treated as absent bearer material.
func looksLikeJWT(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
