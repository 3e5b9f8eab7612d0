package auth

import "context"

// Identity is the identity provider's view of an authenticated account.
// Only Email is used for role resolution.
type Identity struct {
	ID    string // provider-issued account ID (e.g. the "sub" claim)
	Email string
}

// User is the authenticated caller as seen by resolvers.
type User struct {
	ID    string // internal record ID for ADMIN/INSTRUCTOR, provider ID for STUDENT
	Email string
	Role  Role
}

// AuthContext is the per-request authorization bundle. User is nil for
// anonymous requests and fully populated otherwise.
type AuthContext struct {
	User *User
}

// Anonymous returns an AuthContext without a user.
func Anonymous() AuthContext {
	return AuthContext{}
}

// Authenticated reports whether the context carries a user.
func (a AuthContext) Authenticated() bool {
	return a.User != nil
}

type contextKey struct{}

// WithAuthContext stores an AuthContext in the context.
func WithAuthContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext retrieves the AuthContext from the context.
// Returns an anonymous AuthContext if none is set.
func FromContext(ctx context.Context) AuthContext {
	ac, _ := ctx.Value(contextKey{}).(AuthContext)
	return ac
}

// UserFromContext is a shorthand for FromContext(ctx).User.
func UserFromContext(ctx context.Context) *User {
	return FromContext(ctx).User
}
