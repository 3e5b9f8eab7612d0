package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// Outcome classifies how a request's AuthContext was built.
type Outcome string

const (
	OutcomeAnonymous       Outcome = "anonymous"        // no bearer token presented
	OutcomeInvalidToken    Outcome = "invalid_token"    // token rejected or provider unreachable
	OutcomeResolutionError Outcome = "resolution_error" // role lookup failed
	OutcomeAuthenticated   Outcome = "authenticated"
)

// ContextBuilder turns an inbound request into an AuthContext. It never
// returns an error: every failure collapses to an anonymous context.
type ContextBuilder struct {
	verifier *TokenVerifier
	resolver *RoleResolver
	observe  func(Outcome, Role)
}

// BuilderOption configures a ContextBuilder.
type BuilderOption func(*ContextBuilder)

// WithOutcomeObserver registers a callback invoked once per Build call. Role
// is empty unless the outcome is OutcomeAuthenticated.
func WithOutcomeObserver(fn func(Outcome, Role)) BuilderOption {
	return func(b *ContextBuilder) { b.observe = fn }
}

// NewContextBuilder creates a ContextBuilder from its two collaborators.
func NewContextBuilder(verifier *TokenVerifier, resolver *RoleResolver, opts ...BuilderOption) *ContextBuilder {
	b := &ContextBuilder{verifier: verifier, resolver: resolver}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Build produces the AuthContext for r.
func (b *ContextBuilder) Build(ctx context.Context, r *http.Request) AuthContext {
	return b.BuildFromHeader(ctx, r.Header.Get("Authorization"))
}

// BuildFromHeader produces the AuthContext for a raw Authorization header value.
func (b *ContextBuilder) BuildFromHeader(ctx context.Context, header string) AuthContext {
	ac, outcome := b.build(ctx, header)
	if b.observe != nil {
		var role Role
		if ac.User != nil {
			role = ac.User.Role
		}
		b.observe(outcome, role)
	}
	return ac
}

func (b *ContextBuilder) build(ctx context.Context, header string) (ac AuthContext, outcome Outcome) {
	token, ok := BearerToken(header)
	if !ok {
		return Anonymous(), OutcomeAnonymous
	}

	defer func() {
		if rvr := recover(); rvr != nil {
			slog.Error("panic while building auth context", "error", rvr) //nolint:gosec // structured logger, not format string
			ac, outcome = Anonymous(), OutcomeResolutionError
		}
	}()

	v := b.verifier.Verify(ctx, token)
	if !v.Valid {
		return Anonymous(), OutcomeInvalidToken
	}

	res, err := b.resolver.Resolve(ctx, v.Identity.Email)
	if err != nil {
		slog.Error("role resolution failed, treating request as anonymous", "email", v.Identity.Email, "error", err)
		return Anonymous(), OutcomeResolutionError
	}

	id := v.Identity.ID
	if res.InternalID != nil {
		id = strconv.FormatInt(*res.InternalID, 10)
	}
	if id == "" {
		slog.Warn("verified identity has no usable id, treating request as anonymous", "email", v.Identity.Email)
		return Anonymous(), OutcomeInvalidToken
	}

	return AuthContext{User: &User{
		ID:    id,
		Email: v.Identity.Email,
		Role:  res.Role,
	}}, OutcomeAuthenticated
}

// Middleware attaches the built AuthContext to every request's context.
func (b *ContextBuilder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := b.Build(r.Context(), r)
		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
	})
}
