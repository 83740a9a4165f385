package api

import (
	"context"
	"errors"
	"log/slog"

	"civicdesk/internal/auth"
	"civicdesk/internal/complaint"
	"civicdesk/internal/invite"
	"civicdesk/internal/monitoring"
	"civicdesk/internal/validator"

	"github.com/gofiber/fiber/v2"
)

// Pinger is the liveness surface of the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	logger        *slog.Logger
	authenticator *auth.Authenticator
	invites       *invite.Manager
	complaints    *complaint.Manager
	telemetry     monitoring.Telemetry
	db            Pinger
	validate      *validator.Validator
}

func NewHandler(logger *slog.Logger, authenticator *auth.Authenticator, invites *invite.Manager, complaints *complaint.Manager, telemetry monitoring.Telemetry, db Pinger) Handler {
	return Handler{
		logger:        logger,
		authenticator: authenticator,
		invites:       invites,
		complaints:    complaints,
		telemetry:     telemetry,
		db:            db,
		validate:      validator.New(),
	}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.db.Ping(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// fail maps a domain error to its status/message pair. This is the single
// boundary where errors leave the process; anything unexpected is logged
// here and replaced with a generic message.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var validationErr complaint.ValidationError
	var inviteErr auth.InviteError

	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": validationErr.Message})
	case errors.Is(err, invite.ErrEmailRequired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Officer email is required"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid email or password"})
	case errors.Is(err, auth.ErrAdminRegistration):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Admin registration not allowed"})
	case errors.Is(err, auth.ErrInviteRequired):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Officers require an invitation code"})
	case errors.As(err, &inviteErr):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": inviteErr.Reason})
	case errors.Is(err, invite.ErrNotAdmin), errors.Is(err, complaint.ErrNotOwner):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Access denied"})
	case errors.Is(err, auth.ErrEmailTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "User already exists"})
	case errors.Is(err, invite.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Invite not found or already used"})
	case errors.Is(err, complaint.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Complaint not found"})
	case errors.Is(err, complaint.ErrUploadFailed):
		h.logger.ErrorContext(c.UserContext(), "Image upload failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": "Failed to store complaint image"})
	default:
		h.logger.ErrorContext(c.UserContext(), "Unhandled error", "error", err, "url", c.OriginalURL())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}
}
