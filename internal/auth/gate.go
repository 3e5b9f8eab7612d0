package auth

import (
	"context"
	"fmt"
	"slices"

	"github.com/starinfinity/star-infinity-api/internal/audit"
)

// GateError is an authorization decision surfaced to the client. It carries a
// stable message and a machine-readable code exposed as a GraphQL extension.
type GateError struct {
	Code    string
	Message string
}

func (e *GateError) Error() string {
	return e.Message
}

// Extensions implements the graphql-go extensions interface.
func (e *GateError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.Code}
}

var (
	// ErrAuthenticationRequired is returned when no user is present in the context.
	ErrAuthenticationRequired = &GateError{Code: "UNAUTHENTICATED", Message: "Authentication required"}
	// ErrNotAuthorized is returned when the user's role is not in the allow-list.
	ErrNotAuthorized = &GateError{Code: "FORBIDDEN", Message: "Not authorized"}
)

// Authorize checks the AuthContext in ctx against allowed. An empty allow-list
// admits any authenticated user.
func Authorize(ctx context.Context, allowed []Role) error {
	user := UserFromContext(ctx)
	if user == nil {
		return ErrAuthenticationRequired
	}
	if len(allowed) > 0 && !slices.Contains(allowed, user.Role) {
		audit.Event{
			Actor:  user.Email,
			Role:   user.Role.String(),
			Action: "authorize",
			Status: audit.StatusDenied,
			Reason: fmt.Sprintf("role not in %v", allowed),
		}.Warn("Audit Log: Access Denied")
		return ErrNotAuthorized
	}
	return nil
}

// GuardOption configures Guard.
type GuardOption func(*guardOptions)

type guardOptions struct {
	onDecision func(ctx context.Context, err error)
}

// OnDecision registers fn to receive every gate result, nil when the caller
// is admitted. It runs before the wrapped resolver.
func OnDecision(fn func(ctx context.Context, err error)) GuardOption {
	return func(o *guardOptions) { o.onDecision = fn }
}

// Guard wraps a resolver so that it only runs when Authorize admits the
// caller. The wrapped function receives its original arguments unchanged.
func Guard[A, R any](allowed []Role, next func(context.Context, A) (R, error), opts ...GuardOption) func(context.Context, A) (R, error) {
	var o guardOptions
	for _, opt := range opts {
		opt(&o)
	}
	return func(ctx context.Context, args A) (R, error) {
		err := Authorize(ctx, allowed)
		if o.onDecision != nil {
			o.onDecision(ctx, err)
		}
		if err != nil {
			var zero R
			return zero, err
		}
		return next(ctx, args)
	}
}
