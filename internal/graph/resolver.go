package graph

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/starinfinity/star-infinity-api/internal/auth"
	"github.com/starinfinity/star-infinity-api/internal/storage"
)

// DefaultTokenTTL is the lifetime of tokens issued by providers that mint
// their own (the jwt auth mode).
const DefaultTokenTTL = 24 * time.Hour

var (
	adminOnly     = auth.Roles(auth.RoleAdmin)
	staff         = auth.Roles(auth.RoleAdmin, auth.RoleInstructor)
	authenticated = auth.Roles()
)

// tokenIssuer is implemented by providers that sign their own access tokens.
type tokenIssuer interface {
	Issue(id auth.Identity, ttl time.Duration) (string, error)
}

// Resolver is the root GraphQL resolver. It serves both Query and Mutation.
type Resolver struct {
	store           storage.Store
	verifier        *auth.TokenVerifier
	roles           *auth.RoleResolver
	storeTimeout    time.Duration
	identityTimeout time.Duration
	tokenTTL        time.Duration
	onGate          func(field string, err error)
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithGateObserver registers a callback invoked after every authorization
// decision with the field name and the gate's result (nil when allowed).
func WithGateObserver(fn func(field string, err error)) ResolverOption {
	return func(r *Resolver) { r.onGate = fn }
}

// WithStoreTimeout bounds each storage call made by a resolver.
func WithStoreTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.storeTimeout = d
		}
	}
}

// WithIdentityTimeout bounds each session call (sign-in, sign-up, refresh,
// sign-out) made to the identity provider.
func WithIdentityTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.identityTimeout = d
		}
	}
}

// WithTokenTTL sets the lifetime of self-issued tokens.
func WithTokenTTL(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.tokenTTL = d
		}
	}
}

// NewResolver creates the root resolver from its collaborators.
func NewResolver(store storage.Store, verifier *auth.TokenVerifier, roles *auth.RoleResolver, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:           store,
		verifier:        verifier,
		roles:           roles,
		storeTimeout:    auth.DefaultLookupTimeout,
		identityTimeout: auth.DefaultIdentityTimeout,
		tokenTTL:        DefaultTokenTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// gateObserver reports each gate decision for field.
func (r *Resolver) gateObserver(field string) auth.GuardOption {
	return auth.OnDecision(func(_ context.Context, err error) {
		if r.onGate != nil {
			r.onGate(field, err)
		}
		if err != nil {
			slog.Debug("graphql field rejected", "field", field, "reason", err)
		}
	})
}

// guard wraps fn in the auth gate for field.
func guard[A, R any](r *Resolver, field string, allowed []auth.Role, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return auth.Guard(allowed, fn, r.gateObserver(field))
}

func (r *Resolver) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.storeTimeout)
}

func (r *Resolver) identityCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.identityTimeout)
}

// recordActivity writes a system log row for an administrative action.
// Failures are logged and do not fail the mutation.
func (r *Resolver) recordActivity(ctx context.Context, logType, message, details string) {
	ctx, cancel := r.storeCtx(ctx)
	defer cancel()
	entry := &storage.SystemLog{AdminID: actorID(ctx), Type: logType, Message: message, Details: details}
	if err := r.store.CreateSystemLog(ctx, entry); err != nil {
		slog.Error("failed to write system log", "type", logType, "error", err)
	}
}

// actorID returns the internal ID of the authenticated administrator, or 0.
func actorID(ctx context.Context) int64 {
	u := auth.UserFromContext(ctx)
	if u == nil || u.Role != auth.RoleAdmin {
		return 0
	}
	id, err := strconv.ParseInt(u.ID, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func actorEmail(ctx context.Context) string {
	if u := auth.UserFromContext(ctx); u != nil {
		return u.Email
	}
	return "anonymous"
}

// userFor resolves the platform role of a provider identity.
func (r *Resolver) userFor(ctx context.Context, id auth.Identity) (*auth.User, error) {
	res, err := r.roles.Resolve(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	userID := id.ID
	if res.InternalID != nil {
		userID = strconv.FormatInt(*res.InternalID, 10)
	}
	if userID == "" {
		return nil, errors.New("identity has no usable id")
	}
	return &auth.User{ID: userID, Email: id.Email, Role: res.Role}, nil
}

// noArgs is the argument type of fields without arguments.
type noArgs struct{}
