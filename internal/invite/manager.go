package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"civicdesk/internal/database"
	"civicdesk/internal/util"

	"github.com/google/uuid"
)

var (
	ErrNotAdmin      = errors.New("only admin can manage invites")
	ErrEmailRequired = errors.New("officer email is required")
	ErrNotFound      = errors.New("invite not found or already used")
)

// Redemption failure reasons, surfaced verbatim to registering officers.
const (
	ReasonInvalidOrUsed = "Invalid or used invite code"
	ReasonWrongEmail    = "Invite code is not for this email"
)

// codeBytes is the entropy of a generated invite code; hex-encoded the code
// is twice as long.
const codeBytes = 16

// Store is the persistence surface the manager needs. *database.Database
// satisfies it; tests supply an in-memory fake with the same conditional
// consume semantics.
type Store interface {
	CreateInvite(ctx context.Context, params database.CreateInviteParams) (database.Invite, error)
	ListInvites(ctx context.Context) ([]database.InviteWithUsers, error)
	GetInvite(ctx context.Context, params database.GetInviteParams) (database.Invite, error)
	ConsumeInvite(ctx context.Context, code string) error
	AttachInviteRedeemer(ctx context.Context, code string, userID uuid.UUID) error
	DeleteUnusedInvite(ctx context.Context, code string) error
}

type Manager struct {
	logger *slog.Logger
	store  Store
}

func NewManager(logger *slog.Logger, store Store) Manager {
	return Manager{logger: logger, store: store}
}

// UserRef is a display identity resolved at read time.
type UserRef struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Invite struct {
	Code      string     `json:"code"`
	Email     string     `json:"email,omitempty"`
	Used      bool       `json:"used"`
	CreatedAt time.Time  `json:"createdAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedBy *UserRef   `json:"createdBy,omitempty"`
	UsedBy    *UserRef   `json:"usedBy,omitempty"`
}

// Result is the outcome of a phase-one redemption attempt.
type Result struct {
	Valid  bool
	Reason string
}

// Create mints a single-use invite bound to email. Multiple outstanding
// invites per address are allowed.
func (m *Manager) Create(ctx context.Context, issuer database.User, email string) (Invite, error) {
	if issuer.Role != database.RoleAdmin {
		return Invite{}, ErrNotAdmin
	}
	email = util.NormalizeEmail(email)
	if email == "" {
		return Invite{}, ErrEmailRequired
	}

	code, err := util.RandomHex(codeBytes)
	if err != nil {
		return Invite{}, fmt.Errorf("invite: failed to generate code: %w", err)
	}

	record, err := m.store.CreateInvite(ctx, database.CreateInviteParams{
		Code:      code,
		Email:     email,
		CreatedBy: issuer.ID,
	})
	if err != nil {
		return Invite{}, fmt.Errorf("invite: failed to create invite: %w", err)
	}

	m.logger.InfoContext(ctx, "Invite created", "code", record.Code, "email", record.Email, "created_by", issuer.ID)

	return Invite{
		Code:      record.Code,
		Email:     record.Email,
		Used:      record.Used,
		CreatedAt: record.CreatedAt,
		CreatedBy: &UserRef{Name: issuer.Name, Email: issuer.Email},
	}, nil
}

func (m *Manager) List(ctx context.Context, issuer database.User) ([]Invite, error) {
	if issuer.Role != database.RoleAdmin {
		return nil, ErrNotAdmin
	}

	records, err := m.store.ListInvites(ctx)
	if err != nil {
		return nil, fmt.Errorf("invite: failed to list invites: %w", err)
	}

	invites := make([]Invite, 0, len(records))
	for _, record := range records {
		inv := Invite{
			Code:      record.Code,
			Email:     record.Email,
			Used:      record.Used,
			CreatedAt: record.CreatedAt,
		}
		if record.UsedAt.IsSet {
			usedAt := record.UsedAt.Val
			inv.UsedAt = &usedAt
		}
		if record.CreatedByName.IsSet || record.CreatedByEmail.IsSet {
			inv.CreatedBy = &UserRef{Name: record.CreatedByName.Val, Email: record.CreatedByEmail.Val}
		}
		if record.UsedByName.IsSet || record.UsedByEmail.IsSet {
			inv.UsedBy = &UserRef{Name: record.UsedByName.Val, Email: record.UsedByEmail.Val}
		}
		invites = append(invites, inv)
	}

	return invites, nil
}

// Revoke deletes an invite while it is still unused. A used invite and a
// nonexistent one both come back as ErrNotFound so that callers cannot
// probe redemption state.
func (m *Manager) Revoke(ctx context.Context, issuer database.User, code string) error {
	if issuer.Role != database.RoleAdmin {
		return ErrNotAdmin
	}

	if err := m.store.DeleteUnusedInvite(ctx, code); err != nil {
		if errors.Is(err, database.ErrInviteNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("invite: failed to revoke invite: %w", err)
	}

	m.logger.InfoContext(ctx, "Invite revoked", "code", code, "revoked_by", issuer.ID)
	return nil
}

// Redeem is phase one of the two-phase redemption: it validates the code
// against the supplied email and consumes it. The consume step is a
// conditional update keyed on the unused flag, so two concurrent calls with
// the same code produce exactly one success; the loser observes the invite
// as already used.
func (m *Manager) Redeem(ctx context.Context, code, email string) (Result, error) {
	invite, err := m.store.GetInvite(ctx, database.GetInviteParams{Code: code, UnusedOnly: true})
	if err != nil {
		if errors.Is(err, database.ErrInviteNotFound) {
			return Result{Reason: ReasonInvalidOrUsed}, nil
		}
		return Result{}, fmt.Errorf("invite: failed to look up invite: %w", err)
	}

	if invite.Email != "" && invite.Email != util.NormalizeEmail(email) {
		return Result{Reason: ReasonWrongEmail}, nil
	}

	if err := m.store.ConsumeInvite(ctx, code); err != nil {
		if errors.Is(err, database.ErrInviteNotFound) {
			// Lost the race against a concurrent redemption.
			return Result{Reason: ReasonInvalidOrUsed}, nil
		}
		return Result{}, fmt.Errorf("invite: failed to consume invite: %w", err)
	}

	m.logger.InfoContext(ctx, "Invite redeemed", "code", code, "email", email)
	return Result{Valid: true}, nil
}

// Attach is phase two: it records the redeemer once their account exists.
// No re-validation happens here; the invite was already consumed in phase
// one.
func (m *Manager) Attach(ctx context.Context, code string, userID uuid.UUID) error {
	if err := m.store.AttachInviteRedeemer(ctx, code, userID); err != nil {
		return fmt.Errorf("invite: failed to attach redeemer: %w", err)
	}
	return nil
}
