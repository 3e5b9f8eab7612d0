package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig holds configuration for locally verified bearer tokens.
type JWTConfig struct {
	SigningKey string // raw HMAC secret string OR path to PEM public key file
	Issuer     string // expected "iss" claim (empty = don't verify)
	Audience   string // expected "aud" claim (empty = don't verify)
	EmailClaim string // claim holding the account email (default: "email")
}

// JWTProvider verifies bearer tokens signed with a shared secret or a public
// key, such as access tokens minted by a hosted auth service with a known JWT
// secret. No network call is made.
type JWTProvider struct {
	config     JWTConfig
	parserOpts []jwt.ParserOption
	keyFunc    jwt.Keyfunc
	hmacKey    []byte // nil when the key is a public key
}

// NewJWTProvider creates a JWT provider with auto-detected key type.
// If SigningKey is a path to a PEM file, RSA or ECDSA public key is used.
// Otherwise, the raw string is treated as an HMAC secret.
func NewJWTProvider(config JWTConfig) (*JWTProvider, error) {
	if config.SigningKey == "" {
		return nil, errors.New("jwt signing key is required")
	}
	if config.EmailClaim == "" {
		config.EmailClaim = "email"
	}

	signingKey, validMethods, err := parseSigningKey(config.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(validMethods),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(config.Audience))
	}

	p := &JWTProvider{
		config:     config,
		parserOpts: parserOpts,
		keyFunc:    func(*jwt.Token) (any, error) { return signingKey, nil },
	}
	if b, ok := signingKey.([]byte); ok {
		p.hmacKey = b
	}
	return p, nil
}

// parseSigningKey auto-detects the key type from the input.
// Returns the parsed key and the list of valid signing methods.
func parseSigningKey(input string) (any, []string, error) {
	info, err := os.Stat(input)
	if err == nil && !info.IsDir() {
		pemBytes, err := os.ReadFile(input)
		if err != nil {
			return nil, nil, fmt.Errorf("read PEM file: %w", err)
		}

		if key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes); err == nil {
			return key, []string{"RS256", "RS384", "RS512"}, nil
		}
		if key, err := jwt.ParseECPublicKeyFromPEM(pemBytes); err == nil {
			return key, []string{"ES256", "ES384", "ES512"}, nil
		}
		return nil, nil, errors.New("PEM file contains no recognized RSA or ECDSA public key")
	}

	return []byte(input), []string{"HS256", "HS384", "HS512"}, nil
}

// Name implements IdentityProvider.
func (p *JWTProvider) Name() string { return "jwt" }

// VerifyBearerToken parses and verifies a JWT, returning the subject and email.
func (p *JWTProvider) VerifyBearerToken(_ context.Context, token string) (*Identity, error) {
	parsed, err := jwt.Parse(token, p.keyFunc, p.parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid JWT claims", ErrVerification)
	}

	email, err := extractStringClaim(claims, p.config.EmailClaim)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	sub, _ := claims.GetSubject()

	return &Identity{ID: sub, Email: email}, nil
}

// Issue signs a token for id that expires after ttl. Only HMAC keys can sign.
func (p *JWTProvider) Issue(id Identity, ttl time.Duration) (string, error) {
	if p.hmacKey == nil {
		return "", fmt.Errorf("%w: signing requires an HMAC key", ErrUnsupported)
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": id.ID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	claims[p.config.EmailClaim] = id.Email
	if p.config.Issuer != "" {
		claims["iss"] = p.config.Issuer
	}
	if p.config.Audience != "" {
		claims["aud"] = p.config.Audience
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.hmacKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// extractStringClaim returns a string claim value, or an error if missing/empty.
func extractStringClaim(claims jwt.MapClaims, key string) (string, error) {
	v, ok := claims[key]
	if !ok {
		return "", fmt.Errorf("claim %q not found", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("claim %q is not a non-empty string", key)
	}
	return s, nil
}
