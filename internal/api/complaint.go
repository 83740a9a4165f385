package api

import (
	"time"

	"civicdesk/internal/complaint"
	"civicdesk/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func (h *Handler) SubmitComplaint(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentUser(c)

	params := complaint.SubmitParams{
		Title:         c.FormValue("title"),
		Description:   c.FormValue("description"),
		Category:      c.FormValue("category"),
		Severity:      c.FormValue("severity"),
		PreferredTime: c.FormValue("preferredTime"),
		Location:      c.FormValue("location"),
		Anonymous:     c.FormValue("anonymous") == "true",
		Contact:       c.FormValue("contact"),
		Ward:          c.FormValue("ward"),
		Landmark:      c.FormValue("landmark"),
		DateReported:  parseDate(c.FormValue("dateReported")),
		ImageURL:      c.FormValue("imageUrl"),
	}

	var image *complaint.Image
	if fileHeader, err := c.FormFile("image"); err == nil && fileHeader != nil {
		file, err := fileHeader.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid image upload"})
		}
		defer file.Close()

		image = &complaint.Image{
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Content:     file,
		}
	}

	created, err := h.complaints.Submit(c.UserContext(), actor, params, image)
	if err != nil {
		return h.fail(c, err)
	}

	h.telemetry.RecordComplaintSubmission(c.UserContext(), created.Severity)

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) ListComplaints(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentUser(c)

	complaints, err := h.complaints.List(c.UserContext(), actor, complaint.Filters{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Ward:     c.Query("ward"),
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(complaints)
}

func (h *Handler) GetComplaint(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentUser(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return h.fail(c, complaint.ErrNotFound)
	}

	found, err := h.complaints.Get(c.UserContext(), actor, id)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(found)
}

func (h *Handler) UpvoteComplaint(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return h.fail(c, complaint.ErrNotFound)
	}

	upvotes, err := h.complaints.Upvote(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{"upvotes": upvotes})
}

// parseDate accepts RFC 3339 timestamps or plain dates; an unparseable value
// stays zero and trips the required-field validation downstream.
func parseDate(value string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
