package api

import (
	"errors"

	"civicdesk/internal/auth"
	"civicdesk/internal/database"
	"civicdesk/internal/validator"

	"github.com/gofiber/fiber/v2"
)

type RegisterRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	Role       string `json:"role"`
	InviteCode string `json:"inviteCode"`
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}
	if err := h.validate.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": validator.Message(err)})
	}

	session, err := h.authenticator.Register(c.UserContext(), auth.RegisterParams{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       database.Role(req.Role),
		InviteCode: req.InviteCode,
	})

	if req.Role == string(database.RoleOfficer) && req.InviteCode != "" {
		var inviteErr auth.InviteError
		redeemed := err == nil
		if redeemed || errors.As(err, &inviteErr) {
			h.telemetry.RecordInviteRedemption(c.UserContext(), redeemed)
		}
	}
	h.telemetry.RecordUserRegistration(c.UserContext(), req.Role, err == nil)

	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}
	if err := h.validate.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": validator.Message(err)})
	}

	session, err := h.authenticator.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(session)
}
