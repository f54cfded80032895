package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"go-stocksync/pkg/jwt"
)

// RequireAuth validates the bearer token and puts the caller's identity and
// organization into the request context. Tokens are self-contained; there is
// no per-request user lookup.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing authorization token"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid authorization format. Use: Bearer <token>"})
		}

		claims, err := jwt.ValidateToken(parts[1])
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired token"})
		}
		if claims.OrganizationID == uuid.Nil {
			return c.Status(401).JSON(fiber.Map{"error": "Token carries no organization"})
		}

		c.Locals("user_id", claims.UserID.String())
		c.Locals("user_email", claims.Email)
		c.Locals("user_name", claims.Name)
		c.Locals("organization_id", claims.OrganizationID)

		return c.Next()
	}
}

// OrgID returns the authenticated caller's organization. Only valid behind
// RequireAuth.
func OrgID(c *fiber.Ctx) uuid.UUID {
	if id, ok := c.Locals("organization_id").(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// Actor returns the identity string written into ledger rows.
func Actor(c *fiber.Ctx) string {
	if email, ok := c.Locals("user_email").(string); ok && email != "" {
		return email
	}
	if id, ok := c.Locals("user_id").(string); ok && id != "" {
		return id
	}
	return "system"
}
