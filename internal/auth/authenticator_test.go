package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"civicdesk/internal/config"
	"civicdesk/internal/database"
	"civicdesk/internal/invite"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	byEmail map[string]database.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: make(map[string]database.User)}
}

func (s *fakeUserStore) CreateUser(_ context.Context, params database.CreateUserParams) (database.User, error) {
	if _, ok := s.byEmail[params.Email]; ok {
		return database.User{}, database.ErrEmailTaken
	}
	user := database.User{
		ID:           uuid.New(),
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
	}
	s.byEmail[params.Email] = user
	return user, nil
}

func (s *fakeUserStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return database.User{}, database.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUserStore) UpdateUserRole(_ context.Context, id uuid.UUID, role database.Role) error {
	for email, user := range s.byEmail {
		if user.ID == id {
			user.Role = role
			s.byEmail[email] = user
			return nil
		}
	}
	return database.ErrUserNotFound
}

// fakeRedeemer scripts phase one outcomes per code and records phase two.
type fakeRedeemer struct {
	results  map[string]invite.Result
	attached map[string]uuid.UUID
}

func newFakeRedeemer() *fakeRedeemer {
	return &fakeRedeemer{
		results:  make(map[string]invite.Result),
		attached: make(map[string]uuid.UUID),
	}
}

func (r *fakeRedeemer) Redeem(_ context.Context, code, _ string) (invite.Result, error) {
	result, ok := r.results[code]
	if !ok {
		return invite.Result{Reason: invite.ReasonInvalidOrUsed}, nil
	}
	return result, nil
}

func (r *fakeRedeemer) Attach(_ context.Context, code string, userID uuid.UUID) error {
	r.attached[code] = userID
	return nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
		BcryptCost:    bcrypt.MinCost,
		AdminName:     "admin",
		AdminEmail:    "admin@gmail.com",
		AdminPassword: "admin",
	}
}

func newTestAuthenticator(users UserStore, invites InviteRedeemer) Authenticator {
	cfg := testAuthConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthenticator(logger, users, invites, NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), cfg)
}

func TestRegisterCitizen(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore()
	authenticator := newTestAuthenticator(users, newFakeRedeemer())

	session, err := authenticator.Register(ctx, RegisterParams{
		Name:     "Jane",
		Email:    "  Jane@Example.COM",
		Password: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", session.Email)
	assert.Equal(t, database.RoleCitizen, session.Role)
	assert.NotEmpty(t, session.Token)

	stored := users.byEmail["jane@example.com"]
	assert.NotEqual(t, "secret", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret")))
}

func TestRegisterRejections(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore()
	redeemer := newFakeRedeemer()
	redeemer.results["good-code"] = invite.Result{Valid: true}
	redeemer.results["wrong-email"] = invite.Result{Reason: invite.ReasonWrongEmail}
	authenticator := newTestAuthenticator(users, redeemer)

	_, err := authenticator.Register(ctx, RegisterParams{Name: "First", Email: "taken@example.com", Password: "pw"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		params  RegisterParams
		wantErr error
	}{
		{
			name:    "duplicate email",
			params:  RegisterParams{Name: "Second", Email: "Taken@example.com", Password: "pw"},
			wantErr: ErrEmailTaken,
		},
		{
			name:    "admin role forbidden",
			params:  RegisterParams{Name: "Mallory", Email: "mallory@example.com", Password: "pw", Role: database.RoleAdmin},
			wantErr: ErrAdminRegistration,
		},
		{
			name:    "officer without a code",
			params:  RegisterParams{Name: "Officer", Email: "officer@example.com", Password: "pw", Role: database.RoleOfficer},
			wantErr: ErrInviteRequired,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := authenticator.Register(ctx, test.params)
			assert.ErrorIs(t, err, test.wantErr)
		})
	}

	t.Run("officer with an invalid code", func(t *testing.T) {
		_, err := authenticator.Register(ctx, RegisterParams{
			Name: "Officer", Email: "officer@example.com", Password: "pw",
			Role: database.RoleOfficer, InviteCode: "bogus",
		})
		var inviteErr InviteError
		require.ErrorAs(t, err, &inviteErr)
		assert.Equal(t, invite.ReasonInvalidOrUsed, inviteErr.Reason)
	})

	t.Run("officer with a code bound to someone else", func(t *testing.T) {
		_, err := authenticator.Register(ctx, RegisterParams{
			Name: "Officer", Email: "officer@example.com", Password: "pw",
			Role: database.RoleOfficer, InviteCode: "wrong-email",
		})
		var inviteErr InviteError
		require.ErrorAs(t, err, &inviteErr)
		assert.Equal(t, invite.ReasonWrongEmail, inviteErr.Reason)
	})

	t.Run("duplicate email does not burn the invite", func(t *testing.T) {
		_, err := authenticator.Register(ctx, RegisterParams{
			Name: "Second", Email: "taken@example.com", Password: "pw",
			Role: database.RoleOfficer, InviteCode: "good-code",
		})
		assert.ErrorIs(t, err, ErrEmailTaken)
		assert.Empty(t, redeemer.attached)
	})
}

func TestRegisterOfficer(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore()
	redeemer := newFakeRedeemer()
	redeemer.results["good-code"] = invite.Result{Valid: true}
	authenticator := newTestAuthenticator(users, redeemer)

	session, err := authenticator.Register(ctx, RegisterParams{
		Name: "Officer", Email: "officer@example.com", Password: "pw",
		Role: database.RoleOfficer, InviteCode: "good-code",
	})
	require.NoError(t, err)

	assert.Equal(t, database.RoleOfficer, session.Role)
	assert.Equal(t, session.ID, redeemer.attached["good-code"])
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore()
	authenticator := newTestAuthenticator(users, newFakeRedeemer())

	_, err := authenticator.Register(ctx, RegisterParams{Name: "Jane", Email: "jane@example.com", Password: "secret"})
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		session, err := authenticator.Login(ctx, "Jane@Example.com", "secret")
		require.NoError(t, err)
		assert.Equal(t, "jane@example.com", session.Email)
		assert.NotEmpty(t, session.Token)
	})

	t.Run("wrong password and unknown email are identical", func(t *testing.T) {
		_, wrongPassword := authenticator.Login(ctx, "jane@example.com", "nope")
		_, unknownEmail := authenticator.Login(ctx, "ghost@example.com", "secret")

		assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
		assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
		assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	})
}

func TestEnsureDefaultAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the account when absent", func(t *testing.T) {
		users := newFakeUserStore()
		authenticator := newTestAuthenticator(users, newFakeRedeemer())

		require.NoError(t, authenticator.EnsureDefaultAdmin(ctx))

		admin, ok := users.byEmail["admin@gmail.com"]
		require.True(t, ok)
		assert.Equal(t, database.RoleAdmin, admin.Role)

		session, err := authenticator.Login(ctx, "admin@gmail.com", "admin")
		require.NoError(t, err)
		assert.Equal(t, database.RoleAdmin, session.Role)
	})

	t.Run("repairs a demoted role", func(t *testing.T) {
		users := newFakeUserStore()
		authenticator := newTestAuthenticator(users, newFakeRedeemer())

		_, err := authenticator.Register(ctx, RegisterParams{Name: "admin", Email: "admin@gmail.com", Password: "whatever"})
		require.NoError(t, err)

		require.NoError(t, authenticator.EnsureDefaultAdmin(ctx))
		assert.Equal(t, database.RoleAdmin, users.byEmail["admin@gmail.com"].Role)
	})

	t.Run("is idempotent", func(t *testing.T) {
		users := newFakeUserStore()
		authenticator := newTestAuthenticator(users, newFakeRedeemer())

		require.NoError(t, authenticator.EnsureDefaultAdmin(ctx))
		require.NoError(t, authenticator.EnsureDefaultAdmin(ctx))
		assert.Len(t, users.byEmail, 1)
	})
}
