package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultLookupTimeout bounds the role lookups of a single resolution.
const DefaultLookupTimeout = 5 * time.Second

// RoleStore is the persistence lookup the resolver depends on. Both methods
// return (0, false, nil) when no record matches.
type RoleStore interface {
	AdministratorIDByEmail(ctx context.Context, email string) (int64, bool, error)
	InstructorIDByEmail(ctx context.Context, email string) (int64, bool, error)
}

// Resolution is the role of a verified identity. InternalID is nil for students.
type Resolution struct {
	Role       Role
	InternalID *int64
}

// RoleResolver maps a verified email to a Role.
type RoleResolver struct {
	store   RoleStore
	timeout time.Duration
}

// NewRoleResolver creates a resolver. A zero timeout uses DefaultLookupTimeout.
func NewRoleResolver(store RoleStore, timeout time.Duration) *RoleResolver {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &RoleResolver{store: store, timeout: timeout}
}

// Resolve checks the administrator table, then the instructor table, and falls
// back to RoleStudent. Administrator takes precedence when an email is present
// in both tables. Lookup errors are returned wrapped in ErrResolution and are
// never downgraded to RoleStudent.
func (r *RoleResolver) Resolve(ctx context.Context, email string) (Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	id, ok, err := r.store.AdministratorIDByEmail(ctx, email)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: administrator lookup: %w", ErrResolution, err)
	}
	if ok {
		slog.Debug("role resolved", "email", email, "role", RoleAdmin)
		return Resolution{Role: RoleAdmin, InternalID: &id}, nil
	}

	id, ok, err = r.store.InstructorIDByEmail(ctx, email)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: instructor lookup: %w", ErrResolution, err)
	}
	if ok {
		slog.Debug("role resolved", "email", email, "role", RoleInstructor)
		return Resolution{Role: RoleInstructor, InternalID: &id}, nil
	}

	slog.Debug("role resolved", "email", email, "role", RoleStudent)
	return Resolution{Role: RoleStudent}, nil
}
