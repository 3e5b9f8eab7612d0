package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrVerification marks a bearer token the identity service did not accept,
	// including transport failures talking to it.
	ErrVerification = errors.New("token verification failed")
	// ErrResolution marks a persistence failure while resolving a role.
	ErrResolution = errors.New("role resolution failed")
	// ErrUnsupported is returned when the configured identity provider lacks
	// the requested session capability.
	ErrUnsupported = errors.New("operation not supported by identity provider")
)

// Session is a set of credentials issued by the identity provider.
type Session struct {
	AccessToken  string //nolint:gosec // field name, not a credential
	RefreshToken string //nolint:gosec // field name, not a credential
	ExpiresAt    time.Time
	Identity     Identity
}

// IdentityProvider verifies bearer tokens against the external identity service.
type IdentityProvider interface {
	// VerifyBearerToken returns the identity behind token, or an error if the
	// provider rejects it or cannot be reached.
	VerifyBearerToken(ctx context.Context, token string) (*Identity, error)
	// Name returns the provider identifier used in logs (e.g. "gotrue", "jwt").
	Name() string
}

// PasswordAuthenticator is implemented by providers that manage email/password accounts.
type PasswordAuthenticator interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
}

// SessionRefresher is implemented by providers that can exchange a refresh token
// for a new session.
type SessionRefresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
}

// SessionRevoker is implemented by providers that can end a session server-side.
type SessionRevoker interface {
	SignOut(ctx context.Context, accessToken string) error
}
