package graph

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/starinfinity/star-infinity-api/internal/audit"
	"github.com/starinfinity/star-infinity-api/internal/auth"
	"github.com/starinfinity/star-infinity-api/internal/storage"
)

const minPasswordLength = 8

var (
	errInvalidCredentials = &Error{Code: codeUnauthorized, Message: "Invalid email or password"}
	errRefreshFailed      = &Error{Code: codeUnauthorized, Message: "Failed to refresh token"}
	errEmailRegistered    = &Error{Code: codeBadUserInput, Message: "User with this email already exists"}
)

type loginInput struct {
	Email    string
	Password string
}

type registerInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// Me returns the authenticated caller, or null for anonymous requests.
func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	u := auth.UserFromContext(ctx)
	if u == nil {
		return nil, nil
	}
	if u.Role == auth.RoleStudent {
		return &userResolver{user: *u}, nil
	}

	id, err := strconv.ParseInt(u.ID, 10, 64)
	if err != nil {
		return nil, internal("Failed to fetch current user", err, "user_id", u.ID)
	}
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	var email string
	switch u.Role {
	case auth.RoleAdmin:
		a, err := r.store.GetAdministrator(sctx, id)
		if err != nil {
			return nil, internal("Failed to fetch current user", err, "user_id", u.ID)
		}
		if a == nil {
			return nil, nil
		}
		email = a.Email
	case auth.RoleInstructor:
		i, err := r.store.GetInstructor(sctx, id)
		if err != nil {
			return nil, internal("Failed to fetch current user", err, "user_id", u.ID)
		}
		if i == nil {
			return nil, nil
		}
		email = i.Email
	}
	return &userResolver{user: auth.User{ID: u.ID, Email: email, Role: u.Role}}, nil
}

// VerifyToken reports whether the identity provider accepts token.
func (r *Resolver) VerifyToken(ctx context.Context, args struct{ Token string }) bool {
	return r.verifier.Verify(ctx, args.Token).Valid
}

// Login exchanges credentials for an access token.
func (r *Resolver) Login(ctx context.Context, args struct{ Input loginInput }) (*authPayloadResolver, error) {
	email := strings.TrimSpace(args.Input.Email)
	if email == "" || args.Input.Password == "" {
		return nil, badInput("email and password are required")
	}

	var (
		session *auth.Session
		err     error
	)
	switch p := r.verifier.Provider().(type) {
	case auth.PasswordAuthenticator:
		ictx, cancel := r.identityCtx(ctx)
		session, err = p.SignIn(ictx, email, args.Input.Password)
		cancel()
		if err != nil {
			slog.Info("sign-in rejected by identity provider", "email", email, "error", err)
			session = nil
		}
	case tokenIssuer:
		session, err = r.localSignIn(ctx, p, email, args.Input.Password)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &Error{Code: codeUnsupported, Message: "Login is not supported by the configured identity provider"}
	}
	if session == nil {
		audit.Event{Actor: email, Action: "login", Status: audit.StatusFailed, Reason: "invalid credentials"}.Warn("Audit Log: Login Failed")
		return nil, errInvalidCredentials
	}

	ident := session.Identity
	if ident.Email == "" {
		ident.Email = email
	}
	user, err := r.userFor(ctx, ident)
	if err != nil {
		return nil, internal("Failed to login", err, "email", email)
	}
	audit.Event{Actor: user.Email, Action: "login", Status: audit.StatusGranted, Role: user.Role.String(), Provider: r.verifier.Provider().Name()}.Info("Audit Log: Login")
	return newAuthPayload(session, user), nil
}

// localSignIn checks a password against the administrator and instructor
// records and issues a token. It returns a nil session for bad credentials.
func (r *Resolver) localSignIn(ctx context.Context, issuer tokenIssuer, email, password string) (*auth.Session, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	var (
		id   int64
		hash string
	)
	admin, err := r.store.GetAdministratorByEmail(sctx, email)
	if err != nil {
		return nil, internal("Failed to login", err, "email", email)
	}
	if admin != nil {
		id, hash = admin.ID, admin.PasswordHash
	} else {
		instID, ok, err := r.store.InstructorIDByEmail(sctx, email)
		if err != nil {
			return nil, internal("Failed to login", err, "email", email)
		}
		if !ok {
			return nil, nil
		}
		inst, err := r.store.GetInstructor(sctx, instID)
		if err != nil {
			return nil, internal("Failed to login", err, "email", email)
		}
		if inst == nil {
			return nil, nil
		}
		id, hash = inst.ID, inst.PasswordHash
	}

	if hash == "" {
		return nil, nil
	}
	ok, err := auth.ComparePassword(hash, password)
	if err != nil {
		return nil, internal("Failed to login", err, "email", email)
	}
	if !ok {
		return nil, nil
	}
	return r.issue(issuer, auth.Identity{ID: strconv.FormatInt(id, 10), Email: strings.ToLower(email)})
}

func (r *Resolver) issue(issuer tokenIssuer, ident auth.Identity) (*auth.Session, error) {
	token, err := issuer.Issue(ident, r.tokenTTL)
	if errors.Is(err, auth.ErrUnsupported) {
		return nil, &Error{Code: codeUnsupported, Message: "Token issuance is not supported by the configured signing key"}
	}
	if err != nil {
		return nil, internal("Failed to issue token", err)
	}
	return &auth.Session{AccessToken: token, Identity: ident}, nil
}

// Register creates an account. Privileged roles may only be granted by an
// authenticated administrator.
func (r *Resolver) Register(ctx context.Context, args struct{ Input registerInput }) (*authPayloadResolver, error) {
	in := args.Input
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := validateAccount(in.Username, in.Email, in.Password); err != nil {
		return nil, err
	}
	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return nil, badInput("invalid role %q", in.Role)
	}
	register := func(ctx context.Context, in registerInput) (*authPayloadResolver, error) {
		return r.register(ctx, in, role)
	}
	if role != auth.RoleStudent {
		register = guard(r, "register", adminOnly, register)
	}
	return register(ctx, in)
}

// register creates the local account row for privileged roles before the
// provider account, so a failed insert never leaves a provider account
// behind. A provider rejection removes the local row again.
func (r *Resolver) register(ctx context.Context, in registerInput, role auth.Role) (*authPayloadResolver, error) {
	if err := r.checkEmailAvailable(ctx, in.Email); err != nil {
		return nil, err
	}

	provider := r.verifier.Provider()
	signUp, selfService := provider.(auth.PasswordAuthenticator)
	issuer, issues := provider.(tokenIssuer)
	switch {
	case selfService:
	case issues && role == auth.RoleStudent:
		return nil, &Error{Code: codeUnsupported, Message: "Student registration is handled by the identity provider"}
	case !issues:
		return nil, &Error{Code: codeUnsupported, Message: "Registration is not supported by the configured identity provider"}
	}

	user := &auth.User{Email: in.Email, Role: role}
	var localID int64
	if role != auth.RoleStudent {
		id, err := r.createAccount(ctx, role, in)
		if err != nil {
			return nil, err
		}
		localID = id
		user.ID = strconv.FormatInt(id, 10)
	}

	var (
		session *auth.Session
		err     error
	)
	if selfService {
		ictx, cancel := r.identityCtx(ctx)
		session, err = signUp.SignUp(ictx, in.Email, in.Password)
		cancel()
		if err != nil {
			slog.Warn("sign-up rejected by identity provider", "email", in.Email, "error", err)
			if localID != 0 {
				r.discardAccount(ctx, role, localID, in.Email)
			}
			return nil, badInput("Failed to register user")
		}
		if localID == 0 {
			user.ID = session.Identity.ID
		}
	} else {
		session, err = r.issue(issuer, auth.Identity{ID: user.ID, Email: user.Email})
		if err != nil {
			r.discardAccount(ctx, role, localID, in.Email)
			return nil, err
		}
	}
	if user.ID == "" {
		return nil, internal("Failed to register user", errors.New("identity provider returned no user id"), "email", in.Email)
	}
	if localID != 0 {
		r.recordActivity(ctx, "ACCOUNT_CREATE", "Created "+strings.ToLower(role.String())+" account", in.Email)
	}

	audit.Event{Actor: actorEmail(ctx), Action: "register", Status: audit.StatusGranted, Target: in.Email, Role: role.String()}.Info("Audit Log: Account Registered")
	return newAuthPayload(session, user), nil
}

// discardAccount removes a local account row whose provider sign-up failed.
func (r *Resolver) discardAccount(ctx context.Context, role auth.Role, id int64, email string) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	var err error
	if role == auth.RoleAdmin {
		err = r.store.DeleteAdministrator(sctx, id)
	} else {
		err = r.store.DeleteInstructor(sctx, id)
	}
	if err != nil {
		slog.Error("failed to remove account after sign-up failure", "email", email, "role", role.String(), "id", id, "error", err)
	}
}

func (r *Resolver) checkEmailAvailable(ctx context.Context, email string) error {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	if _, ok, err := r.store.AdministratorIDByEmail(sctx, email); err != nil {
		return internal("Failed to register user", err, "email", email)
	} else if ok {
		return errEmailRegistered
	}
	if _, ok, err := r.store.InstructorIDByEmail(sctx, email); err != nil {
		return internal("Failed to register user", err, "email", email)
	} else if ok {
		return errEmailRegistered
	}
	return nil
}

func (r *Resolver) createAccount(ctx context.Context, role auth.Role, in registerInput) (int64, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return 0, internal("Failed to register user", err)
	}
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	var id int64
	if role == auth.RoleAdmin {
		a := &storage.Administrator{Username: in.Username, Email: in.Email, PasswordHash: hash}
		err = r.store.CreateAdministrator(sctx, a)
		id = a.ID
	} else {
		i := &storage.Instructor{Username: in.Username, Email: in.Email, PasswordHash: hash}
		err = r.store.CreateInstructor(sctx, i)
		id = i.ID
	}
	if errors.Is(err, storage.ErrEmailTaken) {
		return 0, errEmailRegistered
	}
	if err != nil {
		return 0, internal("Failed to register user", err, "email", in.Email)
	}
	return id, nil
}

// RefreshToken exchanges a refresh token for a new session.
func (r *Resolver) RefreshToken(ctx context.Context, args struct{ Token string }) (*authPayloadResolver, error) {
	refresher, ok := r.verifier.Provider().(auth.SessionRefresher)
	if !ok {
		return nil, &Error{Code: codeUnsupported, Message: "Token refresh is not supported by the configured identity provider"}
	}
	if strings.TrimSpace(args.Token) == "" {
		return nil, badInput("token is required")
	}

	ictx, cancel := r.identityCtx(ctx)
	session, err := refresher.RefreshSession(ictx, args.Token)
	cancel()
	if err != nil {
		slog.Info("token refresh rejected", "error", err)
		return nil, errRefreshFailed
	}

	v := r.verifier.Verify(ctx, session.AccessToken)
	if !v.Valid {
		return nil, &Error{Code: codeUnauthorized, Message: "Invalid token"}
	}
	user, err := r.userFor(ctx, *v.Identity)
	if err != nil {
		return nil, internal("Failed to refresh token", err, "email", v.Identity.Email)
	}
	return newAuthPayload(session, user), nil
}

// Logout revokes the caller's session where the provider supports it.
func (r *Resolver) Logout(ctx context.Context) (bool, error) {
	return guard(r, "logout", authenticated, r.logout)(ctx, noArgs{})
}

func (r *Resolver) logout(ctx context.Context, _ noArgs) (bool, error) {
	revoker, ok := r.verifier.Provider().(auth.SessionRevoker)
	if !ok {
		return true, nil
	}
	ictx, cancel := r.identityCtx(ctx)
	defer cancel()
	if err := revoker.SignOut(ictx, bearerFromContext(ctx)); err != nil {
		slog.Error("logout failed", "email", actorEmail(ctx), "error", err)
		return false, nil
	}
	audit.Event{Actor: actorEmail(ctx), Action: "logout", Status: audit.StatusGranted}.Info("Audit Log: Logout")
	return true, nil
}

func validateAccount(username, email, password string) error {
	switch {
	case username == "":
		return badInput("username is required")
	case !strings.Contains(email, "@"):
		return badInput("invalid email %q", email)
	case len(password) < minPasswordLength:
		return badInput("password must be at least %d characters", minPasswordLength)
	}
	return nil
}
