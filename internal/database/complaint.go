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

type ComplaintStatus string

const (
	ComplaintStatusPending    ComplaintStatus = "Pending"
	ComplaintStatusInProgress ComplaintStatus = "In Progress"
	ComplaintStatusResolved   ComplaintStatus = "Resolved"
	ComplaintStatusRejected   ComplaintStatus = "Rejected"
)

type Complaint struct {
	ID            uuid.UUID
	Title         string
	Description   string
	ImageURL      string
	Latitude      util.Optional[float64]
	Longitude     util.Optional[float64]
	Address       string
	Category      string
	Severity      string
	PreferredTime string
	Anonymous     bool
	Contact       string
	Ward          string
	Landmark      string
	DateReported  time.Time
	Status        ComplaintStatus
	Upvotes       int
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CreateComplaintParams struct {
	Title         string
	Description   string
	ImageURL      string
	Latitude      util.Optional[float64]
	Longitude     util.Optional[float64]
	Address       string
	Category      string
	Severity      string
	PreferredTime string
	Anonymous     bool
	Contact       string
	Ward          string
	Landmark      string
	DateReported  time.Time
	CreatedBy     uuid.UUID
}

func (db *Database) CreateComplaint(ctx context.Context, params CreateComplaintParams) (Complaint, error) {
	complaint := Complaint{
		ID:            uuid.New(),
		Title:         params.Title,
		Description:   params.Description,
		ImageURL:      params.ImageURL,
		Latitude:      params.Latitude,
		Longitude:     params.Longitude,
		Address:       params.Address,
		Category:      params.Category,
		Severity:      params.Severity,
		PreferredTime: params.PreferredTime,
		Anonymous:     params.Anonymous,
		Contact:       params.Contact,
		Ward:          params.Ward,
		Landmark:      params.Landmark,
		DateReported:  params.DateReported,
		Status:        ComplaintStatusPending,
		Upvotes:       0,
		CreatedBy:     params.CreatedBy,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_complaint
		(id, title, description, image_url, latitude, longitude, address, category, severity, preferred_time, anonymous, contact, ward, landmark, date_reported, status, upvotes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		complaint.ID, complaint.Title, complaint.Description, complaint.ImageURL, complaint.Latitude, complaint.Longitude,
		complaint.Address, complaint.Category, complaint.Severity, complaint.PreferredTime, complaint.Anonymous,
		complaint.Contact, complaint.Ward, complaint.Landmark, complaint.DateReported, complaint.Status,
		complaint.Upvotes, complaint.CreatedBy, complaint.CreatedAt, complaint.UpdatedAt); err != nil {
		return complaint, fmt.Errorf("database: failed to insert complaint (title=%s): %w", complaint.Title, err)
	}
	return complaint, nil
}

type ListComplaintsParams struct {
	CreatedBy util.Optional[uuid.UUID]
	Status    util.Optional[string]
	Category  util.Optional[string]
	Ward      util.Optional[string]
}

func (db *Database) ListComplaints(ctx context.Context, params ListComplaintsParams) ([]Complaint, error) {
	var query strings.Builder
	query.WriteString(`SELECT id, title, description, image_url, latitude, longitude, address, category, severity, preferred_time, anonymous, contact, ward, landmark, date_reported, status, upvotes, created_by, created_at, updated_at FROM tbl_complaint WHERE 1=1`)
	var args []any
	argNum := 1

	if params.CreatedBy.IsSet {
		query.WriteString(fmt.Sprintf(" AND created_by = $%d", argNum))
		args = append(args, params.CreatedBy.Val)
		argNum++
	}
	if params.Status.IsSet {
		query.WriteString(fmt.Sprintf(" AND status = $%d", argNum))
		args = append(args, params.Status.Val)
		argNum++
	}
	if params.Category.IsSet {
		query.WriteString(fmt.Sprintf(" AND category = $%d", argNum))
		args = append(args, params.Category.Val)
		argNum++
	}
	if params.Ward.IsSet {
		query.WriteString(fmt.Sprintf(" AND ward = $%d", argNum))
		args = append(args, params.Ward.Val)
		argNum++
	}

	query.WriteString(" ORDER BY created_at DESC")

	rows, err := db.Pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list complaints: %w", err)
	}
	defer rows.Close()

	var complaints []Complaint
	for rows.Next() {
		var c Complaint
		if err := rows.Scan(
			&c.ID, &c.Title, &c.Description, &c.ImageURL, &c.Latitude, &c.Longitude, &c.Address, &c.Category,
			&c.Severity, &c.PreferredTime, &c.Anonymous, &c.Contact, &c.Ward, &c.Landmark, &c.DateReported,
			&c.Status, &c.Upvotes, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan complaint: %w", err)
		}
		complaints = append(complaints, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate complaints: %w", err)
	}

	return complaints, nil
}

func (db *Database) GetComplaintByID(ctx context.Context, id uuid.UUID) (Complaint, error) {
	var c Complaint

	err := db.Pool.QueryRow(ctx, `SELECT id, title, description, image_url, latitude, longitude, address, category, severity, preferred_time, anonymous, contact, ward, landmark, date_reported, status, upvotes, created_by, created_at, updated_at FROM tbl_complaint WHERE id = $1`, id).Scan(
		&c.ID, &c.Title, &c.Description, &c.ImageURL, &c.Latitude, &c.Longitude, &c.Address, &c.Category,
		&c.Severity, &c.PreferredTime, &c.Anonymous, &c.Contact, &c.Ward, &c.Landmark, &c.DateReported,
		&c.Status, &c.Upvotes, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, ErrComplaintNotFound
		}
		return c, fmt.Errorf("database: failed to scan complaint: %w", err)
	}
	return c, nil
}

// IncrementComplaintUpvotes bumps the counter in place and returns the new
// total, so concurrent upvotes never lose updates.
func (db *Database) IncrementComplaintUpvotes(ctx context.Context, id uuid.UUID) (int, error) {
	var upvotes int
	err := db.Pool.QueryRow(ctx, `UPDATE tbl_complaint SET upvotes = upvotes + 1, updated_at = $2 WHERE id = $1 RETURNING upvotes`,
		id, time.Now().UTC()).Scan(&upvotes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrComplaintNotFound
		}
		return 0, fmt.Errorf("database: failed to upvote complaint (id=%s): %w", id, err)
	}
	return upvotes, nil
}
