package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civicdesk/internal/util"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Role string

const (
	RoleCitizen Role = "citizen"
	RoleOfficer Role = "officer"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleOfficer, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Role         Role
}

func (db *Database) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	user := User{
		ID:           uuid.New(),
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_user (id, name, email, password_hash, role, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.CreatedAt, user.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return user, ErrEmailTaken
		}
		return user, fmt.Errorf("database: failed to insert user (email=%s): %w", user.Email, err)
	}
	return user, nil
}

func (db *Database) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return db.GetUser(ctx, GetUserParams{ID: util.Some(id)})
}

func (db *Database) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return db.GetUser(ctx, GetUserParams{Email: util.Some(email)})
}

type GetUserParams struct {
	ID    util.Optional[uuid.UUID]
	Email util.Optional[string]
}

func (db *Database) GetUser(ctx context.Context, params GetUserParams) (User, error) {
	var user User

	var query strings.Builder
	query.WriteString(`SELECT id, name, email, password_hash, role, created_at, updated_at FROM tbl_user WHERE 1=1`)
	var args []any
	argNum := 1

	if params.ID.IsSet {
		query.WriteString(fmt.Sprintf(" AND id = $%d", argNum))
		args = append(args, params.ID.Val)
		argNum++
	}
	if params.Email.IsSet {
		query.WriteString(fmt.Sprintf(" AND email = $%d", argNum))
		args = append(args, params.Email.Val)
		argNum++
	}

	err := db.Pool.QueryRow(ctx, query.String(), args...).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, ErrUserNotFound
		}
		return user, fmt.Errorf("database: failed to scan user: %w", err)
	}
	return user, nil
}

// UpdateUserRole exists for the startup admin reconciliation; roles are
// otherwise immutable after creation.
func (db *Database) UpdateUserRole(ctx context.Context, id uuid.UUID, role Role) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_user SET role = $2, updated_at = $3 WHERE id = $1`,
		id, role, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("database: failed to update user role (id=%s): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
