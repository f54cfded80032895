package handler

import (
	"github.com/gofiber/fiber/v2"

	"go-stocksync/internal/middleware"
	"go-stocksync/internal/model"
	"go-stocksync/internal/repository"
	"go-stocksync/pkg/validator"
)

type LocationHandler struct {
	locations repository.LocationRepository
}

func NewLocationHandler(locations repository.LocationRepository) *LocationHandler {
	return &LocationHandler{locations: locations}
}

type createLocationRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *LocationHandler) CreateLocation(c *fiber.Ctx) error {
	var req createLocationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(req); errs != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Validation failed", "details": errs})
	}

	loc := &model.InventoryLocation{
		OrganizationID: middleware.OrgID(c),
		Name:           req.Name,
		IsActive:       true,
	}
	if err := h.locations.Create(c.Context(), loc); err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Location created", "data": loc})
}

func (h *LocationHandler) GetLocations(c *fiber.Ctx) error {
	locs, err := h.locations.FindByOrganization(c.Context(), middleware.OrgID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(locs)
}

func (h *LocationHandler) SetDefault(c *fiber.Ctx) error {
	locationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid location ID"})
	}

	if err := h.locations.SetDefault(c.Context(), middleware.OrgID(c), locationID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Default location updated"})
}
