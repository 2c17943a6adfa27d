package security

import (
	"context"
	"errors"
)

var ErrNoStore = errors.New("no store owned by subject")

// StoreResolver decides which store a verified identity may act for.
type StoreResolver interface {
	StoreForSubject(ctx context.Context, identity *Identity) (string, error)
}

// SubjectStoreResolver treats every account as owning exactly one store whose id
// is the account's subject.
type SubjectStoreResolver struct{}

func (SubjectStoreResolver) StoreForSubject(_ context.Context, identity *Identity) (string, error) {
	if identity == nil || identity.Subject == "" {
		return "", ErrNoStore
	}
	return identity.Subject, nil
}
