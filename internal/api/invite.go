package api

import (
	"civicdesk/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type CreateInviteRequest struct {
	Email string `json:"email"`
}

func (h *Handler) CreateInvite(c *fiber.Ctx) error {
	issuer, _ := middleware.CurrentUser(c)

	var req CreateInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}

	created, err := h.invites.Create(c.UserContext(), issuer, req.Email)
	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) ListInvites(c *fiber.Ctx) error {
	issuer, _ := middleware.CurrentUser(c)

	invites, err := h.invites.List(c.UserContext(), issuer)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(invites)
}

func (h *Handler) RevokeInvite(c *fiber.Ctx) error {
	issuer, _ := middleware.CurrentUser(c)

	if err := h.invites.Revoke(c.UserContext(), issuer, c.Params("code")); err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{"message": "Invite revoked"})
}
