package auth

import (
	"context"
	"errors"
)

// Identity is the verified caller of one request. It is produced by a
// Verifier (plus a role lookup on admin routes), lives only for the request,
// and is never persisted.
type Identity struct {
	SubjectID string
	Email     string
	Role      string
}

// ErrUnauthenticated covers every token failure: missing, malformed, expired,
// bad signature, revoked. Callers must not distinguish sub-reasons to end
// users.
var ErrUnauthenticated = errors.New("invalid or missing token")

// ErrForbidden means the identity is valid but lacks the required role.
var ErrForbidden = errors.New("admin access required")

// Verifier validates an opaque bearer token against the external identity
// provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// RoleLookup resolves a subject's role from the external user store.
// A missing user record yields an empty role, not an error.
type RoleLookup interface {
	GetUserRole(ctx context.Context, subjectID string) (string, error)
}
