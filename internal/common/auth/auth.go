// internal/common/auth/auth.go
package auth

import "context"

// Identity is the authenticated caller of the HTTP surface.
type Identity struct {
	UserID string
	Email  string
}

// Authenticator resolves a bearer token to the caller's identity. Invalid
// tokens yield an AUTHENTICATION_ERROR.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}
