package complaint

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"civicdesk/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	complaints map[uuid.UUID]*database.Complaint
	lastList   database.ListComplaintsParams
}

func newFakeStore() *fakeStore {
	return &fakeStore{complaints: make(map[uuid.UUID]*database.Complaint)}
}

func (s *fakeStore) CreateComplaint(_ context.Context, params database.CreateComplaintParams) (database.Complaint, error) {
	complaint := database.Complaint{
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
		Status:        database.ComplaintStatusPending,
		CreatedBy:     params.CreatedBy,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	s.complaints[complaint.ID] = &complaint
	return complaint, nil
}

func (s *fakeStore) ListComplaints(_ context.Context, params database.ListComplaintsParams) ([]database.Complaint, error) {
	s.lastList = params

	var records []database.Complaint
	for _, complaint := range s.complaints {
		if params.CreatedBy.IsSet && complaint.CreatedBy != params.CreatedBy.Val {
			continue
		}
		if params.Status.IsSet && string(complaint.Status) != params.Status.Val {
			continue
		}
		if params.Category.IsSet && complaint.Category != params.Category.Val {
			continue
		}
		if params.Ward.IsSet && complaint.Ward != params.Ward.Val {
			continue
		}
		records = append(records, *complaint)
	}
	return records, nil
}

func (s *fakeStore) GetComplaintByID(_ context.Context, id uuid.UUID) (database.Complaint, error) {
	complaint, ok := s.complaints[id]
	if !ok {
		return database.Complaint{}, database.ErrComplaintNotFound
	}
	return *complaint, nil
}

func (s *fakeStore) IncrementComplaintUpvotes(_ context.Context, id uuid.UUID) (int, error) {
	complaint, ok := s.complaints[id]
	if !ok {
		return 0, database.ErrComplaintNotFound
	}
	complaint.Upvotes++
	return complaint.Upvotes, nil
}

type fakeUploader struct {
	err error
}

func (u *fakeUploader) Store(_ context.Context, ownerID uuid.UUID, filename string, _ io.Reader, _ string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	return "https://uploads.example.com/" + ownerID.String() + "/" + filename, nil
}

func newTestManager(store Store, uploader Uploader) Manager {
	return NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)), store, uploader)
}

func validParams() SubmitParams {
	return SubmitParams{
		Title:        "Pothole on Main Street",
		Description:  "Deep pothole near the crossing",
		Category:     "Roads",
		Severity:     "High",
		Location:     "12.9716, 77.5946",
		Contact:      "555-0101",
		Ward:         "Ward 12",
		Landmark:     "Near City Hall",
		DateReported: time.Now(),
	}
}

func testCitizen() database.User {
	return database.User{ID: uuid.New(), Name: "Jane", Role: database.RoleCitizen}
}

func TestSubmitComplaint(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	manager := newTestManager(store, &fakeUploader{})
	citizen := testCitizen()

	created, err := manager.Submit(ctx, citizen, validParams(), nil)
	require.NoError(t, err)

	assert.Equal(t, database.ComplaintStatusPending, created.Status)
	assert.Equal(t, 0, created.Upvotes)
	assert.Equal(t, citizen.ID, created.CreatedBy)
	assert.Equal(t, "Near City Hall", created.Location.Address)
	require.True(t, created.Location.Lat.IsSet)
	assert.InDelta(t, 12.9716, created.Location.Lat.Val, 1e-9)
	require.True(t, created.Location.Lng.IsSet)
	assert.InDelta(t, 77.5946, created.Location.Lng.Val, 1e-9)
}

func TestSubmitComplaintValidation(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(newFakeStore(), &fakeUploader{})
	citizen := testCitizen()

	tests := []struct {
		name   string
		mutate func(p *SubmitParams)
	}{
		{"missing title", func(p *SubmitParams) { p.Title = "" }},
		{"missing description", func(p *SubmitParams) { p.Description = "" }},
		{"missing category", func(p *SubmitParams) { p.Category = "" }},
		{"missing severity", func(p *SubmitParams) { p.Severity = "" }},
		{"unknown severity", func(p *SubmitParams) { p.Severity = "Catastrophic" }},
		{"missing date", func(p *SubmitParams) { p.DateReported = time.Time{} }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			params := validParams()
			test.mutate(&params)

			_, err := manager.Submit(ctx, citizen, params, nil)
			var validationErr ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.NotEmpty(t, validationErr.Message)
		})
	}
}

func TestSubmitComplaintAnonymous(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(newFakeStore(), &fakeUploader{})
	citizen := testCitizen()

	params := validParams()
	params.Anonymous = true
	params.Contact = "555-0101"

	created, err := manager.Submit(ctx, citizen, params, nil)
	require.NoError(t, err)

	assert.Equal(t, AnonymousContact, created.Contact)
	// Ownership survives anonymity; only the displayed contact changes.
	assert.Equal(t, citizen.ID, created.CreatedBy)
}

func TestSubmitComplaintImage(t *testing.T) {
	ctx := context.Background()
	citizen := testCitizen()

	t.Run("uploaded image wins over the submitted url", func(t *testing.T) {
		manager := newTestManager(newFakeStore(), &fakeUploader{})

		params := validParams()
		params.ImageURL = "https://elsewhere.example.com/old.jpg"

		created, err := manager.Submit(ctx, citizen, params, &Image{
			Filename:    "pothole.jpg",
			ContentType: "image/jpeg",
			Content:     strings.NewReader("jpeg-bytes"),
		})
		require.NoError(t, err)
		assert.Equal(t, "https://uploads.example.com/"+citizen.ID.String()+"/pothole.jpg", created.ImageURL)
	})

	t.Run("upload failure rejects the submission", func(t *testing.T) {
		store := newFakeStore()
		manager := newTestManager(store, &fakeUploader{err: errors.New("bucket unavailable")})

		_, err := manager.Submit(ctx, citizen, validParams(), &Image{
			Filename: "pothole.jpg",
			Content:  strings.NewReader("jpeg-bytes"),
		})
		assert.ErrorIs(t, err, ErrUploadFailed)
		assert.Empty(t, store.complaints)
	})
}

func TestParseLatLng(t *testing.T) {
	tests := []struct {
		name     string
		location string
		wantSet  bool
		wantLat  float64
		wantLng  float64
	}{
		{"plain pair", "12.5,77.25", true, 12.5, 77.25},
		{"spaced pair", " 12.5 , 77.25 ", true, 12.5, 77.25},
		{"negative coordinates", "-33.86,151.21", true, -33.86, 151.21},
		{"empty", "", false, 0, 0},
		{"free text", "near the old bridge", false, 0, 0},
		{"single component", "12.5", false, 0, 0},
		{"three components", "12.5,77.25,200", false, 0, 0},
		{"non-numeric component", "12.5,east", false, 0, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			lat, lng := parseLatLng(test.location)
			assert.Equal(t, test.wantSet, lat.IsSet)
			assert.Equal(t, test.wantSet, lng.IsSet)
			if test.wantSet {
				assert.InDelta(t, test.wantLat, lat.Val, 1e-9)
				assert.InDelta(t, test.wantLng, lng.Val, 1e-9)
			}
		})
	}
}

func TestListComplaintsScoping(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	manager := newTestManager(store, &fakeUploader{})

	citizen := testCitizen()
	other := testCitizen()
	officer := database.User{ID: uuid.New(), Role: database.RoleOfficer}

	mine, err := manager.Submit(ctx, citizen, validParams(), nil)
	require.NoError(t, err)
	_, err = manager.Submit(ctx, other, validParams(), nil)
	require.NoError(t, err)

	t.Run("citizens only see their own", func(t *testing.T) {
		complaints, err := manager.List(ctx, citizen, Filters{})
		require.NoError(t, err)
		require.Len(t, complaints, 1)
		assert.Equal(t, mine.ID, complaints[0].ID)
	})

	t.Run("citizen filters are dropped", func(t *testing.T) {
		_, err := manager.List(ctx, citizen, Filters{Status: "Resolved", Ward: "Ward 99"})
		require.NoError(t, err)
		assert.True(t, store.lastList.CreatedBy.IsSet)
		assert.False(t, store.lastList.Status.IsSet)
		assert.False(t, store.lastList.Ward.IsSet)
	})

	t.Run("officers see everything and may filter", func(t *testing.T) {
		complaints, err := manager.List(ctx, officer, Filters{})
		require.NoError(t, err)
		assert.Len(t, complaints, 2)

		complaints, err = manager.List(ctx, officer, Filters{Ward: "Ward 12"})
		require.NoError(t, err)
		assert.Len(t, complaints, 2)
		assert.False(t, store.lastList.CreatedBy.IsSet)
		assert.True(t, store.lastList.Ward.IsSet)
	})
}

func TestGetComplaint(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	manager := newTestManager(store, &fakeUploader{})

	citizen := testCitizen()
	created, err := manager.Submit(ctx, citizen, validParams(), nil)
	require.NoError(t, err)

	t.Run("owner reads their own", func(t *testing.T) {
		found, err := manager.Get(ctx, citizen, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("another citizen is denied", func(t *testing.T) {
		_, err := manager.Get(ctx, testCitizen(), created.ID)
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("officers read anything", func(t *testing.T) {
		officer := database.User{ID: uuid.New(), Role: database.RoleOfficer}
		found, err := manager.Get(ctx, officer, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := manager.Get(ctx, citizen, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpvoteComplaint(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	manager := newTestManager(store, &fakeUploader{})

	created, err := manager.Submit(ctx, testCitizen(), validParams(), nil)
	require.NoError(t, err)

	upvotes, err := manager.Upvote(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, upvotes)

	upvotes, err = manager.Upvote(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, upvotes)

	_, err = manager.Upvote(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
