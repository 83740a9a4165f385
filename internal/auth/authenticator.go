package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"civicdesk/internal/config"
	"civicdesk/internal/database"
	"civicdesk/internal/invite"
	"civicdesk/internal/util"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("user already exists")
	ErrAdminRegistration  = errors.New("admin registration not allowed")
	ErrInviteRequired     = errors.New("officers require an invitation code")
)

// InviteError carries the redemption failure reason for an officer
// registration; the reason is surfaced verbatim to the caller.
type InviteError struct {
	Reason string
}

func (e InviteError) Error() string {
	return e.Reason
}

type UserStore interface {
	CreateUser(ctx context.Context, params database.CreateUserParams) (database.User, error)
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
	UpdateUserRole(ctx context.Context, id uuid.UUID, role database.Role) error
}

// InviteRedeemer is the two-phase redemption surface of the invite manager.
type InviteRedeemer interface {
	Redeem(ctx context.Context, code, email string) (invite.Result, error)
	Attach(ctx context.Context, code string, userID uuid.UUID) error
}

type Authenticator struct {
	logger  *slog.Logger
	users   UserStore
	invites InviteRedeemer
	issuer  TokenIssuer
	cfg     config.AuthConfig
}

func NewAuthenticator(logger *slog.Logger, users UserStore, invites InviteRedeemer, issuer TokenIssuer, cfg config.AuthConfig) Authenticator {
	return Authenticator{logger: logger, users: users, invites: invites, issuer: issuer, cfg: cfg}
}

// Session is the response to a successful registration or login: the public
// profile plus a signed bearer token.
type Session struct {
	ID    uuid.UUID     `json:"id"`
	Name  string        `json:"name"`
	Email string        `json:"email"`
	Role  database.Role `json:"role"`
	Token string        `json:"token"`
}

type RegisterParams struct {
	Name       string
	Email      string
	Password   string
	Role       database.Role
	InviteCode string
}

// Register creates a citizen or officer account. Officers must present a
// valid invite code; the code is consumed before the account exists (phase
// one) and the redeemer is attached after creation (phase two).
func (a *Authenticator) Register(ctx context.Context, params RegisterParams) (Session, error) {
	var session Session

	email := util.NormalizeEmail(params.Email)

	if _, err := a.users.GetUserByEmail(ctx, email); err == nil {
		return session, ErrEmailTaken
	} else if !errors.Is(err, database.ErrUserNotFound) {
		return session, fmt.Errorf("auth: failed to check existing user: %w", err)
	}

	if params.Role == database.RoleAdmin {
		return session, ErrAdminRegistration
	}

	role := database.RoleCitizen
	if params.Role == database.RoleOfficer {
		if params.InviteCode == "" {
			return session, ErrInviteRequired
		}
		result, err := a.invites.Redeem(ctx, params.InviteCode, email)
		if err != nil {
			return session, fmt.Errorf("auth: failed to redeem invite: %w", err)
		}
		if !result.Valid {
			return session, InviteError{Reason: result.Reason}
		}
		role = database.RoleOfficer
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), a.cfg.BcryptCost)
	if err != nil {
		return session, fmt.Errorf("auth: failed to hash password: %w", err)
	}

	user, err := a.users.CreateUser(ctx, database.CreateUserParams{
		Name:         params.Name,
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			return session, ErrEmailTaken
		}
		return session, fmt.Errorf("auth: failed to create user: %w", err)
	}

	if role == database.RoleOfficer {
		if err := a.invites.Attach(ctx, params.InviteCode, user.ID); err != nil {
			return session, fmt.Errorf("auth: failed to attach invite redeemer: %w", err)
		}
	}

	a.logger.InfoContext(ctx, "User registered", "user_id", user.ID, "email", user.Email, "role", user.Role)

	return a.newSession(user)
}

// Login verifies credentials. Unknown email and wrong password produce the
// identical error so that accounts cannot be enumerated.
func (a *Authenticator) Login(ctx context.Context, email, password string) (Session, error) {
	var session Session

	user, err := a.users.GetUserByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return session, ErrInvalidCredentials
		}
		return session, fmt.Errorf("auth: failed to get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return session, ErrInvalidCredentials
	}

	a.logger.InfoContext(ctx, "User logged in", "user_id", user.ID, "email", user.Email)

	return a.newSession(user)
}

// EnsureDefaultAdmin is an idempotent startup reconciliation: create the
// configured admin account if absent, or repair its role if the account
// exists without it. Safe to run concurrently from multiple instances.
func (a *Authenticator) EnsureDefaultAdmin(ctx context.Context) error {
	email := util.NormalizeEmail(a.cfg.AdminEmail)

	user, err := a.users.GetUserByEmail(ctx, email)
	if err == nil {
		if user.Role == database.RoleAdmin {
			return nil
		}
		if err := a.users.UpdateUserRole(ctx, user.ID, database.RoleAdmin); err != nil {
			return fmt.Errorf("auth: failed to repair admin role: %w", err)
		}
		a.logger.InfoContext(ctx, "Admin role repaired", "user_id", user.ID, "email", email)
		return nil
	}
	if !errors.Is(err, database.ErrUserNotFound) {
		return fmt.Errorf("auth: failed to look up admin user: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(a.cfg.AdminPassword), a.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("auth: failed to hash admin password: %w", err)
	}

	created, err := a.users.CreateUser(ctx, database.CreateUserParams{
		Name:         a.cfg.AdminName,
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         database.RoleAdmin,
	})
	if err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			// Another instance won the bootstrap race.
			return nil
		}
		return fmt.Errorf("auth: failed to create admin user: %w", err)
	}

	a.logger.InfoContext(ctx, "Default admin user created", "user_id", created.ID, "email", email)
	return nil
}

func (a *Authenticator) newSession(user database.User) (Session, error) {
	token, err := a.issuer.Sign(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
		Token: token,
	}, nil
}
