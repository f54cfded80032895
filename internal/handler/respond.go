package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"go-stocksync/internal/apperr"
)

// respondError maps the error taxonomy onto HTTP statuses. Anything outside
// the taxonomy is a 500 with a generic message.
func respondError(c *fiber.Ctx, err error) error {
	var (
		ve *apperr.ValidationError
		se *apperr.InsufficientStockError
		nf *apperr.NotFoundError
		ce *apperr.ConflictError
		cc *apperr.ConcurrencyError
		pe *apperr.ExternalPlatformError
	)
	switch {
	case errors.As(err, &ve):
		return c.Status(400).JSON(fiber.Map{"error": ve.Error()})
	case errors.As(err, &se):
		return c.Status(409).JSON(fiber.Map{
			"error":     se.Error(),
			"requested": se.Requested,
			"available": se.Available,
		})
	case errors.As(err, &nf):
		return c.Status(404).JSON(fiber.Map{"error": nf.Error()})
	case errors.As(err, &ce):
		return c.Status(409).JSON(fiber.Map{"error": ce.Error()})
	case errors.As(err, &cc):
		return c.Status(503).JSON(fiber.Map{"error": cc.Error()})
	case errors.As(err, &pe):
		return c.Status(502).JSON(fiber.Map{"error": pe.Error()})
	default:
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
}

func parseUUID(id string) (uuid.UUID, error) {
	return uuid.Parse(id)
}
