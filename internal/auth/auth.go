// Package auth defines the identity collaborators consumed by the
// connection gatekeeper: token verification and user lookup. Both are
// black boxes to the rest of the system; this package also ships a JWT
// adapter for production wiring.
package auth

import (
	"context"
	"errors"
)

// ErrAuthentication is the sentinel for any failed connection
// authentication: bad, missing, or expired token, unknown user, or
// inactive user. It is fatal to the connection attempt.
var ErrAuthentication = errors.New("authentication failed")

// ErrUserNotFound reports a user id with no backing user record.
var ErrUserNotFound = errors.New("user not found")

// Claims is the verified identity extracted from a token.
type Claims struct {
	UserID string
	Role   string
}

// User is the account record behind a set of claims.
type User struct {
	ID     string
	Name   string
	Role   string
	Active bool
}

// Verifier validates a bearer token and extracts its claims.
type Verifier interface {
	// VerifyToken returns the claims carried by token, or an error wrapping
	// ErrAuthentication when the token is absent, malformed, or expired.
	VerifyToken(ctx context.Context, token string) (Claims, error)
}

// UserGetter resolves a user id to its account record.
type UserGetter interface {
	// GetUser returns the user for id, or an error wrapping ErrUserNotFound
	// when absent.
	GetUser(ctx context.Context, id string) (User, error)
}
