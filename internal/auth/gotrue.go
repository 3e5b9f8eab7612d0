package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gotrue "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"
)

// GoTrueConfig holds configuration for a hosted GoTrue (Supabase Auth) service.
type GoTrueConfig struct {
	URL     string // project URL, e.g. https://abc.supabase.co
	AnonKey string //nolint:gosec // field name, not a credential
}

// GoTrueProvider talks to the GoTrue REST API through the Supabase auth
// client. Every token is verified by a round trip to /auth/v1/user.
type GoTrueProvider struct {
	client     gotrue.Client
	httpClient *http.Client
}

// GoTrueOption configures a GoTrueProvider.
type GoTrueOption func(*GoTrueProvider)

// WithHTTPClient overrides the HTTP client used for GoTrue calls.
func WithHTTPClient(c *http.Client) GoTrueOption {
	return func(p *GoTrueProvider) { p.httpClient = c }
}

// NewGoTrueProvider creates a GoTrue client.
func NewGoTrueProvider(config GoTrueConfig, opts ...GoTrueOption) (*GoTrueProvider, error) {
	if config.URL == "" || config.AnonKey == "" {
		return nil, errors.New("gotrue url and anon key are required")
	}
	if _, err := url.Parse(config.URL); err != nil {
		return nil, fmt.Errorf("invalid gotrue url: %w", err)
	}
	p := &GoTrueProvider{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(p)
	}

	// The client library takes no context; the timeout bounds requests
	// abandoned by a cancelled caller.
	hc := *p.httpClient
	if hc.Timeout == 0 {
		hc.Timeout = DefaultIdentityTimeout
	}
	p.client = gotrue.New("", config.AnonKey).
		WithCustomAuthURL(strings.TrimRight(config.URL, "/") + "/auth/v1").
		WithClient(hc)
	return p, nil
}

// Name implements IdentityProvider.
func (p *GoTrueProvider) Name() string { return "gotrue" }

// call runs fn and returns early when ctx ends first.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func toSession(s types.Session) *Session {
	out := &Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		Identity:     toIdentity(s.User),
	}
	switch {
	case s.ExpiresAt > 0:
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		out.ExpiresAt = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return out
}

func toIdentity(u types.User) Identity {
	return Identity{ID: u.ID.String(), Email: u.Email}
}

// VerifyBearerToken asks GoTrue for the user behind token.
func (p *GoTrueProvider) VerifyBearerToken(ctx context.Context, token string) (*Identity, error) {
	u, err := call(ctx, p.client.WithToken(token).GetUser)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	if u.Email == "" {
		return nil, fmt.Errorf("%w: user record has no email", ErrVerification)
	}
	id := toIdentity(u.User)
	return &id, nil
}

// SignIn performs the password grant.
func (p *GoTrueProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	resp, err := call(ctx, func() (*types.TokenResponse, error) {
		return p.client.SignInWithEmailPassword(email, password)
	})
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return toSession(resp.Session), nil
}

// SignUp registers a new account. When the project requires email
// confirmation GoTrue returns the bare user, and AccessToken is empty.
func (p *GoTrueProvider) SignUp(ctx context.Context, email, password string) (*Session, error) {
	resp, err := call(ctx, func() (*types.SignupResponse, error) {
		return p.client.Signup(types.SignupRequest{Email: email, Password: password})
	})
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if resp.AccessToken == "" {
		return &Session{Identity: toIdentity(resp.User)}, nil
	}
	return toSession(resp.Session), nil
}

// RefreshSession performs the refresh_token grant.
func (p *GoTrueProvider) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	resp, err := call(ctx, func() (*types.TokenResponse, error) {
		return p.client.RefreshToken(refreshToken)
	})
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return toSession(resp.Session), nil
}

// SignOut revokes the session behind accessToken.
func (p *GoTrueProvider) SignOut(ctx context.Context, accessToken string) error {
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, p.client.WithToken(accessToken).Logout()
	})
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}
