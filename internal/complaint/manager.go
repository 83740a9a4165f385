package complaint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"civicdesk/internal/database"
	"civicdesk/internal/util"
	"civicdesk/internal/validator"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("complaint not found")
	ErrNotOwner     = errors.New("access denied")
	ErrUploadFailed = errors.New("failed to store complaint image")
)

// AnonymousContact replaces whatever contact value was supplied when a
// complaint is submitted anonymously.
const AnonymousContact = "Anonymous"

// ValidationError reports a missing or malformed submission field; the
// message is surfaced verbatim.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

type Store interface {
	CreateComplaint(ctx context.Context, params database.CreateComplaintParams) (database.Complaint, error)
	ListComplaints(ctx context.Context, params database.ListComplaintsParams) ([]database.Complaint, error)
	GetComplaintByID(ctx context.Context, id uuid.UUID) (database.Complaint, error)
	IncrementComplaintUpvotes(ctx context.Context, id uuid.UUID) (int, error)
}

// Uploader is the external object storage collaborator; it returns the URL
// under which the uploaded content is reachable.
type Uploader interface {
	Store(ctx context.Context, ownerID uuid.UUID, filename string, content io.Reader, contentType string) (string, error)
}

type Manager struct {
	logger   *slog.Logger
	store    Store
	uploader Uploader
	validate *validator.Validator
}

func NewManager(logger *slog.Logger, store Store, uploader Uploader) Manager {
	return Manager{
		logger:   logger,
		store:    store,
		uploader: uploader,
		validate: validator.New(),
	}
}

// Location is the parsed complaint geolocation; coordinates stay null when
// the submitted location string was absent or malformed.
type Location struct {
	Lat     util.Optional[float64] `json:"lat"`
	Lng     util.Optional[float64] `json:"lng"`
	Address string                 `json:"address"`
}

type Complaint struct {
	ID            uuid.UUID                `json:"id"`
	Title         string                   `json:"title"`
	Description   string                   `json:"description"`
	ImageURL      string                   `json:"imageUrl,omitempty"`
	Location      Location                 `json:"location"`
	Category      string                   `json:"category"`
	Severity      string                   `json:"severity"`
	PreferredTime string                   `json:"preferredTime,omitempty"`
	Anonymous     bool                     `json:"anonymous"`
	Contact       string                   `json:"contact,omitempty"`
	Ward          string                   `json:"ward,omitempty"`
	Landmark      string                   `json:"landmark,omitempty"`
	DateReported  time.Time                `json:"dateReported"`
	Status        database.ComplaintStatus `json:"status"`
	Upvotes       int                      `json:"upvotes"`
	CreatedBy     uuid.UUID                `json:"createdBy"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

type SubmitParams struct {
	Title         string `validate:"required"`
	Description   string `validate:"required"`
	Category      string `validate:"required"`
	Severity      string `validate:"required,oneof=Low Medium High Critical"`
	PreferredTime string
	Location      string
	Anonymous     bool
	Contact       string
	Ward          string
	Landmark      string
	DateReported  time.Time `validate:"required"`
	ImageURL      string
}

// Image is an optional evidence upload accompanying a submission.
type Image struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// Submit stores a new complaint owned by actor. Ownership is recorded even
// for anonymous submissions; anonymity only affects the displayed contact.
func (m *Manager) Submit(ctx context.Context, actor database.User, params SubmitParams, image *Image) (Complaint, error) {
	if err := m.validate.Validate(params); err != nil {
		return Complaint{}, ValidationError{Message: validator.Message(err)}
	}

	imageURL := params.ImageURL
	if image != nil {
		url, err := m.uploader.Store(ctx, actor.ID, image.Filename, image.Content, image.ContentType)
		if err != nil {
			return Complaint{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
		imageURL = url
	}

	lat, lng := parseLatLng(params.Location)

	contact := params.Contact
	if params.Anonymous {
		contact = AnonymousContact
	}

	record, err := m.store.CreateComplaint(ctx, database.CreateComplaintParams{
		Title:         params.Title,
		Description:   params.Description,
		ImageURL:      imageURL,
		Latitude:      lat,
		Longitude:     lng,
		Address:       params.Landmark,
		Category:      params.Category,
		Severity:      params.Severity,
		PreferredTime: params.PreferredTime,
		Anonymous:     params.Anonymous,
		Contact:       contact,
		Ward:          params.Ward,
		Landmark:      params.Landmark,
		DateReported:  params.DateReported,
		CreatedBy:     actor.ID,
	})
	if err != nil {
		return Complaint{}, fmt.Errorf("complaint: failed to create complaint: %w", err)
	}

	m.logger.InfoContext(ctx, "Complaint submitted", "complaint_id", record.ID, "severity", record.Severity, "created_by", actor.ID)

	return fromRecord(record), nil
}

type Filters struct {
	Status   string
	Category string
	Ward     string
}

// List applies role scoping: citizens see only their own complaints and any
// supplied filters are dropped, officers and admins may filter freely.
func (m *Manager) List(ctx context.Context, actor database.User, filters Filters) ([]Complaint, error) {
	var params database.ListComplaintsParams

	if actor.Role == database.RoleCitizen {
		params.CreatedBy = util.Some(actor.ID)
	} else {
		if filters.Status != "" {
			params.Status = util.Some(filters.Status)
		}
		if filters.Category != "" {
			params.Category = util.Some(filters.Category)
		}
		if filters.Ward != "" {
			params.Ward = util.Some(filters.Ward)
		}
	}

	records, err := m.store.ListComplaints(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("complaint: failed to list complaints: %w", err)
	}

	complaints := make([]Complaint, 0, len(records))
	for _, record := range records {
		complaints = append(complaints, fromRecord(record))
	}
	return complaints, nil
}

func (m *Manager) Get(ctx context.Context, actor database.User, id uuid.UUID) (Complaint, error) {
	record, err := m.store.GetComplaintByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrComplaintNotFound) {
			return Complaint{}, ErrNotFound
		}
		return Complaint{}, fmt.Errorf("complaint: failed to get complaint: %w", err)
	}

	if actor.Role == database.RoleCitizen && record.CreatedBy != actor.ID {
		return Complaint{}, ErrNotOwner
	}

	return fromRecord(record), nil
}

func (m *Manager) Upvote(ctx context.Context, id uuid.UUID) (int, error) {
	upvotes, err := m.store.IncrementComplaintUpvotes(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrComplaintNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("complaint: failed to upvote complaint: %w", err)
	}
	return upvotes, nil
}

// parseLatLng leniently parses a "lat,lng" string. Anything that is not
// exactly two numeric components yields null coordinates rather than a
// rejected submission.
func parseLatLng(location string) (util.Optional[float64], util.Optional[float64]) {
	parts := strings.Split(location, ",")
	if len(parts) != 2 {
		return util.None[float64](), util.None[float64]()
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return util.None[float64](), util.None[float64]()
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return util.None[float64](), util.None[float64]()
	}

	return util.Some(lat), util.Some(lng)
}

func fromRecord(record database.Complaint) Complaint {
	return Complaint{
		ID:          record.ID,
		Title:       record.Title,
		Description: record.Description,
		ImageURL:    record.ImageURL,
		Location: Location{
			Lat:     record.Latitude,
			Lng:     record.Longitude,
			Address: record.Address,
		},
		Category:      record.Category,
		Severity:      record.Severity,
		PreferredTime: record.PreferredTime,
		Anonymous:     record.Anonymous,
		Contact:       record.Contact,
		Ward:          record.Ward,
		Landmark:      record.Landmark,
		DateReported:  record.DateReported,
		Status:        record.Status,
		Upvotes:       record.Upvotes,
		CreatedBy:     record.CreatedBy,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}
