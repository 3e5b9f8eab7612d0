package graph

import (
	"context"
	"errors"
	"strings"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/starinfinity/star-infinity-api/internal/audit"
	"github.com/starinfinity/star-infinity-api/internal/auth"
	"github.com/starinfinity/star-infinity-api/internal/storage"
)

var (
	errAdminNotFound = &Error{Code: codeNotFound, Message: "Admin not found"}
	errAdminExists   = &Error{Code: codeBadUserInput, Message: "Admin with this email already exists"}
)

type createAdminInput struct {
	Username string
	Email    string
	Password string
}

type updateAdminInput struct {
	ID       graphql.ID
	Username *string
	Email    *string
	Password *string
}

type idArgs struct {
	ID graphql.ID
}

func (r *Resolver) Admin(ctx context.Context, args idArgs) (*adminResolver, error) {
	return guard(r, "admin", adminOnly, r.getAdmin)(ctx, args)
}

func (r *Resolver) getAdmin(ctx context.Context, args idArgs) (*adminResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := r.storeCtx(ctx)
	defer cancel()
	a, err := r.store.GetAdministrator(ctx, id)
	if err != nil {
		return nil, internal("Failed to fetch admin", err, "admin_id", id)
	}
	if a == nil {
		return nil, nil
	}
	return &adminResolver{a: *a}, nil
}

func (r *Resolver) Admins(ctx context.Context) ([]*adminResolver, error) {
	return guard(r, "admins", adminOnly, r.listAdmins)(ctx, noArgs{})
}

func (r *Resolver) listAdmins(ctx context.Context, _ noArgs) ([]*adminResolver, error) {
	ctx, cancel := r.storeCtx(ctx)
	defer cancel()
	admins, err := r.store.ListAdministrators(ctx)
	if err != nil {
		return nil, internal("Failed to fetch admins", err)
	}
	out := make([]*adminResolver, len(admins))
	for i := range admins {
		out[i] = &adminResolver{a: admins[i]}
	}
	return out, nil
}

func (r *Resolver) CreateAdmin(ctx context.Context, args struct{ Input createAdminInput }) (*adminResolver, error) {
	return guard(r, "createAdmin", adminOnly, r.createAdmin)(ctx, args.Input)
}

func (r *Resolver) createAdmin(ctx context.Context, in createAdminInput) (*adminResolver, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateAccount(in.Username, in.Email, in.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, internal("Failed to create admin", err)
	}

	a := &storage.Administrator{Username: in.Username, Email: in.Email, PasswordHash: hash}
	sctx, cancel := r.storeCtx(ctx)
	err = r.store.CreateAdministrator(sctx, a)
	cancel()
	if errors.Is(err, storage.ErrEmailTaken) {
		return nil, errAdminExists
	}
	if err != nil {
		return nil, internal("Failed to create admin", err, "email", in.Email)
	}

	r.recordActivity(ctx, "ADMIN_CREATE", "Created admin "+a.Username, a.Email)
	audit.Event{Actor: actorEmail(ctx), Action: "createAdmin", Status: audit.StatusGranted, Target: a.Email}.Info("Audit Log: Admin Created")
	return &adminResolver{a: *a}, nil
}

func (r *Resolver) UpdateAdmin(ctx context.Context, args struct{ Input updateAdminInput }) (*adminResolver, error) {
	return guard(r, "updateAdmin", adminOnly, r.updateAdmin)(ctx, args.Input)
}

func (r *Resolver) updateAdmin(ctx context.Context, in updateAdminInput) (*adminResolver, error) {
	id, err := parseID(in.ID)
	if err != nil {
		return nil, err
	}

	var u storage.AdministratorUpdate
	if in.Username != nil && strings.TrimSpace(*in.Username) != "" {
		name := strings.TrimSpace(*in.Username)
		u.Username = &name
	}
	if in.Email != nil && strings.TrimSpace(*in.Email) != "" {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if !strings.Contains(email, "@") {
			return nil, badInput("invalid email %q", email)
		}
		u.Email = &email
	}
	if in.Password != nil && *in.Password != "" {
		if len(*in.Password) < minPasswordLength {
			return nil, badInput("password must be at least %d characters", minPasswordLength)
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, internal("Failed to update admin", err)
		}
		u.PasswordHash = &hash
	}

	sctx, cancel := r.storeCtx(ctx)
	a, err := r.store.UpdateAdministrator(sctx, id, u)
	cancel()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, errAdminNotFound
	case errors.Is(err, storage.ErrEmailTaken):
		return nil, errAdminExists
	case err != nil:
		return nil, internal("Failed to update admin", err, "admin_id", id)
	}

	r.recordActivity(ctx, "ADMIN_UPDATE", "Updated admin "+a.Username, a.Email)
	audit.Event{Actor: actorEmail(ctx), Action: "updateAdmin", Status: audit.StatusGranted, Target: a.Email}.Info("Audit Log: Admin Updated")
	return &adminResolver{a: *a}, nil
}

func (r *Resolver) DeleteAdmin(ctx context.Context, args idArgs) (bool, error) {
	return guard(r, "deleteAdmin", adminOnly, r.deleteAdmin)(ctx, args)
}

func (r *Resolver) deleteAdmin(ctx context.Context, args idArgs) (bool, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return false, err
	}
	sctx, cancel := r.storeCtx(ctx)
	err = r.store.DeleteAdministrator(sctx, id)
	cancel()
	if errors.Is(err, storage.ErrNotFound) {
		return false, errAdminNotFound
	}
	if err != nil {
		return false, internal("Failed to delete admin", err, "admin_id", id)
	}

	r.recordActivity(ctx, "ADMIN_DELETE", "Deleted admin", string(args.ID))
	audit.Event{Actor: actorEmail(ctx), Action: "deleteAdmin", Status: audit.StatusGranted, Target: "admin/" + string(args.ID)}.Info("Audit Log: Admin Deleted")
	return true, nil
}
