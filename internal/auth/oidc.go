package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig holds configuration for an OpenID Connect identity provider.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string   //nolint:gosec // field name, not a credential
	Scopes       []string // additional scopes beyond "openid" (default: ["profile", "email"])
	EmailClaim   string   // claim key for the account email (default: "email")
}

func (c OIDCConfig) scopes() []string {
	scopes := []string{oidc.ScopeOpenID}
	if len(c.Scopes) > 0 {
		scopes = append(scopes, c.Scopes...)
	} else {
		scopes = append(scopes, "profile", "email")
	}
	return scopes
}

func (c OIDCConfig) emailClaim() string {
	if c.EmailClaim != "" {
		return c.EmailClaim
	}
	return "email"
}

// oidcVerifier abstracts ID token verification for both production and tests.
type oidcVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (claims map[string]any, err error)
}

// tokenRefresher exchanges a refresh token at the provider's token endpoint.
type tokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// goOIDCVerifier wraps go-oidc's IDTokenVerifier.
type goOIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func (v *goOIDCVerifier) Verify(ctx context.Context, rawIDToken string) (map[string]any, error) {
	token, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}
	return claims, nil
}

// oauth2Refresher refreshes through an oauth2 TokenSource.
type oauth2Refresher struct {
	config oauth2.Config
}

func (r *oauth2Refresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	t := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour),
	}
	return r.config.TokenSource(ctx, t).Token()
}

// OIDCProvider verifies ID tokens issued by an OpenID Connect provider and
// refreshes sessions through its token endpoint.
type OIDCProvider struct {
	config    OIDCConfig
	verifier  oidcVerifier
	refresher tokenRefresher
}

// NewOIDCProvider creates an OIDC provider using go-oidc discovery.
func NewOIDCProvider(ctx context.Context, config OIDCConfig) (*OIDCProvider, error) {
	if config.Issuer == "" || config.ClientID == "" {
		return nil, errors.New("oidc issuer and client id are required")
	}
	provider, err := oidc.NewProvider(ctx, config.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", config.Issuer, err)
	}

	return &OIDCProvider{
		config:   config,
		verifier: &goOIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: config.ClientID})},
		refresher: &oauth2Refresher{config: oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       config.scopes(),
		}},
	}, nil
}

// newOIDCProviderWith builds a provider around injected collaborators.
func newOIDCProviderWith(config OIDCConfig, verifier oidcVerifier, refresher tokenRefresher) *OIDCProvider {
	return &OIDCProvider{config: config, verifier: verifier, refresher: refresher}
}

// Name implements IdentityProvider.
func (p *OIDCProvider) Name() string { return "oidc" }

// VerifyBearerToken validates a raw ID token and returns its subject and email.
func (p *OIDCProvider) VerifyBearerToken(ctx context.Context, token string) (*Identity, error) {
	claims, err := p.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	return p.identityFromClaims(claims)
}

func (p *OIDCProvider) identityFromClaims(claims map[string]any) (*Identity, error) {
	email, _ := claims[p.config.emailClaim()].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: ID token missing %s claim", ErrVerification, p.config.emailClaim())
	}
	if emailVerified, ok := claims["email_verified"]; ok {
		if verified, isBool := emailVerified.(bool); isBool && !verified {
			slog.Warn("ID token rejected: email not verified", "email", email)
			return nil, fmt.Errorf("%w: email not verified", ErrVerification)
		}
	}
	sub, _ := claims["sub"].(string)
	return &Identity{ID: sub, Email: email}, nil
}

// RefreshSession exchanges refreshToken for a new session. The new ID token
// becomes the session's access token, since that is what VerifyBearerToken accepts.
func (p *OIDCProvider) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token available")
	}
	tok, err := p.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh rejected: %w", err)
	}
	idToken, ok := tok.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, errors.New("no id_token in refresh response")
	}

	claims, err := p.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("refreshed ID token invalid: %w", err)
	}
	id, err := p.identityFromClaims(claims)
	if err != nil {
		return nil, err
	}

	next := tok.RefreshToken
	if next == "" {
		next = refreshToken
	}
	return &Session{
		AccessToken:  idToken,
		RefreshToken: next,
		ExpiresAt:    tok.Expiry,
		Identity:     *id,
	}, nil
}
