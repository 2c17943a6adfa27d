package security

import (
	"errors"
	"fmt"
)

// AuthErrorKind separates absent credentials from credentials that failed verification.
type AuthErrorKind int

const (
	AuthMissing AuthErrorKind = iota + 1
	AuthInvalid
)

func (k AuthErrorKind) String() string {
	switch k {
	case AuthMissing:
		return "missing"
	case AuthInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Credential names used in AuthError.
const (
	CredentialIdentity = "identity"
	CredentialWidget   = "widget"
	CredentialWebhook  = "webhook"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
)

// AuthError is the only error type returned by the verifiers. The cause is kept
// for logging and must never be written to a response.
type AuthError struct {
	Kind       AuthErrorKind
	Credential string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s credential %s: %v", e.Credential, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s credential %s", e.Credential, e.Kind)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is lets callers match on ErrMissingCredential / ErrInvalidCredential.
func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrMissingCredential:
		return e.Kind == AuthMissing
	case ErrInvalidCredential:
		return e.Kind == AuthInvalid
	default:
		return false
	}
}

func missing(credential string, err error) *AuthError {
	return &AuthError{Kind: AuthMissing, Credential: credential, Err: err}
}

func invalid(credential string, err error) *AuthError {
	return &AuthError{Kind: AuthInvalid, Credential: credential, Err: err}
}

// MissingError builds a Missing AuthError for credentials checked outside this package.
func MissingError(credential string, err error) error {
	return missing(credential, err)
}

// InvalidError builds an Invalid AuthError for credentials checked outside this package.
func InvalidError(credential string, err error) error {
	return invalid(credential, err)
}

// KindOf extracts the AuthErrorKind from err, or 0 if err is not an AuthError.
func KindOf(err error) AuthErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return 0
}
