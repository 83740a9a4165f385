package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicdesk/internal/util"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Invite struct {
	ID        uuid.UUID
	Code      string
	Email     string
	Used      bool
	UsedBy    util.Optional[uuid.UUID]
	CreatedBy uuid.UUID
	CreatedAt time.Time
	UsedAt    util.Optional[time.Time]
}

// InviteWithUsers is the read-time join used for listing: creator and
// redeemer resolved to display identities. Both are weak references, so a
// deleted user leaves the fields unset.
type InviteWithUsers struct {
	Invite
	CreatedByName  util.Optional[string]
	CreatedByEmail util.Optional[string]
	UsedByName     util.Optional[string]
	UsedByEmail    util.Optional[string]
}

type CreateInviteParams struct {
	Code      string
	Email     string
	CreatedBy uuid.UUID
}

func (db *Database) CreateInvite(ctx context.Context, params CreateInviteParams) (Invite, error) {
	invite := Invite{
		ID:        uuid.New(),
		Code:      params.Code,
		Email:     params.Email,
		CreatedBy: params.CreatedBy,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_invite (id, code, email, used, used_by, created_by, created_at, used_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		invite.ID, invite.Code, invite.Email, invite.Used, invite.UsedBy, invite.CreatedBy, invite.CreatedAt, invite.UsedAt); err != nil {
		return invite, fmt.Errorf("database: failed to insert invite (code=%s): %w", invite.Code, err)
	}
	return invite, nil
}

func (db *Database) ListInvites(ctx context.Context) ([]InviteWithUsers, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT i.id, i.code, i.email, i.used, i.used_by, i.created_by, i.created_at, i.used_at,
		       c.name, c.email, u.name, u.email
		FROM tbl_invite i
		LEFT JOIN tbl_user c ON c.id = i.created_by
		LEFT JOIN tbl_user u ON u.id = i.used_by
		ORDER BY i.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []InviteWithUsers
	for rows.Next() {
		var invite InviteWithUsers
		if err := rows.Scan(
			&invite.ID, &invite.Code, &invite.Email, &invite.Used, &invite.UsedBy, &invite.CreatedBy, &invite.CreatedAt, &invite.UsedAt,
			&invite.CreatedByName, &invite.CreatedByEmail, &invite.UsedByName, &invite.UsedByEmail); err != nil {
			return nil, fmt.Errorf("database: failed to scan invite: %w", err)
		}
		invites = append(invites, invite)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate invites: %w", err)
	}

	return invites, nil
}

type GetInviteParams struct {
	Code       string
	UnusedOnly bool
}

func (db *Database) GetInvite(ctx context.Context, params GetInviteParams) (Invite, error) {
	var invite Invite

	query := `SELECT id, code, email, used, used_by, created_by, created_at, used_at FROM tbl_invite WHERE code = $1`
	if params.UnusedOnly {
		query += ` AND NOT used`
	}

	err := db.Pool.QueryRow(ctx, query, params.Code).Scan(
		&invite.ID, &invite.Code, &invite.Email, &invite.Used, &invite.UsedBy, &invite.CreatedBy, &invite.CreatedAt, &invite.UsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invite, ErrInviteNotFound
		}
		return invite, fmt.Errorf("database: failed to scan invite: %w", err)
	}
	return invite, nil
}

// ConsumeInvite flips an invite to used with a single conditional update.
// The `NOT used` predicate is what serializes concurrent redemptions of the
// same code across stateless server instances: exactly one caller sees a
// row affected, every other one gets ErrInviteNotFound.
func (db *Database) ConsumeInvite(ctx context.Context, code string) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_invite SET used = TRUE, used_at = $2 WHERE code = $1 AND NOT used`,
		code, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("database: failed to consume invite (code=%s): %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteNotFound
	}
	return nil
}

// AttachInviteRedeemer records who redeemed an already-consumed invite. It
// deliberately does not re-check the used flag: the caller did not exist yet
// when the invite was consumed.
func (db *Database) AttachInviteRedeemer(ctx context.Context, code string, userID uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_invite SET used_by = $2 WHERE code = $1 AND used`,
		code, userID)
	if err != nil {
		return fmt.Errorf("database: failed to attach invite redeemer (code=%s): %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteNotFound
	}
	return nil
}

// DeleteUnusedInvite removes an invite only while it is unused. A missing
// code and an already-consumed code are indistinguishable on purpose.
func (db *Database) DeleteUnusedInvite(ctx context.Context, code string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM tbl_invite WHERE code = $1 AND NOT used`, code)
	if err != nil {
		return fmt.Errorf("database: failed to delete invite (code=%s): %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteNotFound
	}
	return nil
}
