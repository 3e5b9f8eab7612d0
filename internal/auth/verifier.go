package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// DefaultIdentityTimeout bounds a single call to the identity provider.
const DefaultIdentityTimeout = 5 * time.Second

// Verification is the outcome of verifying a bearer token.
type Verification struct {
	Valid    bool
	Identity *Identity // set only when Valid
}

// TokenVerifier checks bearer tokens with the identity provider. It keeps no
// state between calls; every token is re-verified.
type TokenVerifier struct {
	provider IdentityProvider
	timeout  time.Duration
}

// NewTokenVerifier creates a verifier. A zero timeout uses DefaultIdentityTimeout.
func NewTokenVerifier(provider IdentityProvider, timeout time.Duration) *TokenVerifier {
	if timeout <= 0 {
		timeout = DefaultIdentityTimeout
	}
	return &TokenVerifier{provider: provider, timeout: timeout}
}

// Provider returns the underlying identity provider.
func (v *TokenVerifier) Provider() IdentityProvider {
	return v.provider
}

// Verify reports whether token is accepted by the identity provider. Empty
// tokens are rejected without calling the provider. Any provider error,
// including timeouts, yields an invalid result.
func (v *TokenVerifier) Verify(ctx context.Context, token string) Verification {
	token = strings.TrimSpace(token)
	if token == "" {
		return Verification{}
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	id, err := v.provider.VerifyBearerToken(ctx, token)
	if err != nil {
		slog.Debug("bearer token rejected", "provider", v.provider.Name(), "error", err)
		return Verification{}
	}
	if id == nil || id.Email == "" {
		slog.Debug("identity provider returned no usable identity", "provider", v.provider.Name())
		return Verification{}
	}
	return Verification{Valid: true, Identity: id}
}
