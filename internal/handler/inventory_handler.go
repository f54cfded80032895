package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"go-stocksync/internal/middleware"
	"go-stocksync/internal/service"
	"go-stocksync/pkg/validator"
)

type InventoryHandler struct {
	ledger       service.LedgerService
	reservations service.ReservationService
}

func NewInventoryHandler(ledger service.LedgerService, reservations service.ReservationService) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, reservations: reservations}
}

type updateStockRequest struct {
	QuantityOnHand int `json:"quantity_on_hand"`
}

func (h *InventoryHandler) UpdateStock(c *fiber.Ctx) error {
	variantID, err := parseUUID(c.Params("variantId"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid variant ID"})
	}
	locationID, err := parseUUID(c.Params("locationId"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid location ID"})
	}

	var req updateStockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	item, err := h.ledger.UpdateStock(c.Context(), middleware.OrgID(c), variantID, locationID, req.QuantityOnHand, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Stock updated", "data": item})
}

type adjustRequest struct {
	Deltas []service.BatchDelta `json:"deltas" validate:"required,min=1,dive"`
}

func (h *InventoryHandler) AdjustInventory(c *fiber.Ctx) error {
	var req adjustRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(req); errs != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Validation failed", "details": errs})
	}

	result, err := h.ledger.AdjustInventory(c.Context(), middleware.OrgID(c), req.Deltas, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (h *InventoryHandler) GetAvailableStock(c *fiber.Ctx) error {
	variantID, err := parseUUID(c.Params("variantId"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid variant ID"})
	}

	var locationID *uuid.UUID
	if raw := c.Query("location_id"); raw != "" {
		id, err := parseUUID(raw)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid location ID"})
		}
		locationID = &id
	}

	available, err := h.ledger.GetAvailableStock(c.Context(), variantID, locationID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"variant_id": variantID, "available": available})
}

func (h *InventoryHandler) GetLowStockItems(c *fiber.Ctx) error {
	items, err := h.ledger.GetLowStockItems(c.Context(), middleware.OrgID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(items)
}

func (h *InventoryHandler) GetItemHistory(c *fiber.Ctx) error {
	variantID, err := parseUUID(c.Params("variantId"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid variant ID"})
	}
	locationID, err := parseUUID(c.Params("locationId"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid location ID"})
	}

	history, err := h.ledger.GetItemHistory(c.Context(), variantID, locationID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(history)
}

type reserveRequest struct {
	VariantID  uuid.UUID `json:"variant_id" validate:"uuid_required"`
	LocationID uuid.UUID `json:"location_id" validate:"uuid_required"`
	Quantity   int       `json:"quantity" validate:"gt=0"`
	OrderID    string    `json:"order_id" validate:"required"`
}

func (h *InventoryHandler) ReserveStock(c *fiber.Ctx) error {
	var req reserveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(req); errs != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Validation failed", "details": errs})
	}

	reservation, err := h.reservations.ReserveStock(c.Context(), middleware.OrgID(c), req.VariantID, req.LocationID, req.Quantity, req.OrderID, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Stock reserved", "data": reservation})
}

func (h *InventoryHandler) ReleaseReservation(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	if orderID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Missing order ID"})
	}

	if err := h.reservations.ReleaseReservation(c.Context(), orderID, middleware.Actor(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Reservation released"})
}
