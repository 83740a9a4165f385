package middleware

import (
	"context"
	"strings"

	"civicdesk/internal/auth"
	"civicdesk/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const userLocalsKey = "current_user"

// UserResolver turns a verified token subject into a live user record.
type UserResolver interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// Authenticated verifies the bearer token and attaches the resolved user to
// the request. It only establishes who the caller is; what they may do is
// declared per route with RequireRole.
func Authenticated(issuer auth.TokenIssuer, users UserResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized, no token",
			})
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized, invalid token",
			})
		}

		userID, err := issuer.Verify(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized, invalid token",
			})
		}

		user, err := users.GetUserByID(c.UserContext(), userID)
		if err != nil {
			// A token for a deleted user is just as invalid as a forged one.
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized, invalid token",
			})
		}

		c.Locals(userLocalsKey, user)

		return c.Next()
	}
}

// RequireRole is the shared route-level guard: each protected route declares
// the role set allowed to call it.
func RequireRole(roles ...database.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized, no token",
			})
		}

		for _, role := range roles {
			if user.Role == role {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Access denied",
		})
	}
}

// CurrentUser returns the identity resolved by Authenticated.
func CurrentUser(c *fiber.Ctx) (database.User, bool) {
	user, ok := c.Locals(userLocalsKey).(database.User)
	return user, ok
}
