package auth

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

// GoogleConfig holds configuration for Google ID token verification.
type GoogleConfig struct {
	ClientID       string   // OAuth2 client ID used as the expected audience
	AllowedDomains []string // allowed hosted domains (empty = allow all)
}

// validateFunc matches idtoken.Validate.
type validateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// GoogleProvider verifies Google-issued ID tokens presented as bearer tokens.
type GoogleProvider struct {
	config   GoogleConfig
	validate validateFunc
}

// NewGoogleProvider creates a provider backed by idtoken.Validate.
func NewGoogleProvider(config GoogleConfig) *GoogleProvider {
	return &GoogleProvider{config: config, validate: idtoken.Validate}
}

// Name implements IdentityProvider.
func (p *GoogleProvider) Name() string { return "google" }

// VerifyBearerToken verifies the ID token signature and audience, then checks
// the email and hosted-domain claims.
func (p *GoogleProvider) VerifyBearerToken(ctx context.Context, token string) (*Identity, error) {
	payload, err := p.validate(ctx, token, p.config.ClientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: ID token missing email claim", ErrVerification)
	}
	if verified, _ := payload.Claims["email_verified"].(bool); !verified {
		return nil, fmt.Errorf("%w: email not verified", ErrVerification)
	}

	if len(p.config.AllowedDomains) > 0 {
		hd, _ := payload.Claims["hd"].(string)
		if !p.isDomainAllowed(hd) {
			return nil, fmt.Errorf("%w: domain %q not in allowed domains", ErrVerification, hd)
		}
	}

	return &Identity{ID: payload.Subject, Email: email}, nil
}

func (p *GoogleProvider) isDomainAllowed(hd string) bool {
	for _, d := range p.config.AllowedDomains {
		if strings.EqualFold(d, hd) {
			return true
		}
	}
	return false
}
