package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"go-stocksync/internal/middleware"
	"go-stocksync/internal/model"
	"go-stocksync/internal/repository"
	"go-stocksync/internal/service"
	"go-stocksync/pkg/validator"
)

type SyncHandler struct {
	sync      service.SyncService
	conflicts service.ConflictService
	stores    repository.StoreRepository
	jobs      repository.SyncJobRepository
}

func NewSyncHandler(sync service.SyncService, conflicts service.ConflictService, stores repository.StoreRepository, jobs repository.SyncJobRepository) *SyncHandler {
	return &SyncHandler{sync: sync, conflicts: conflicts, stores: stores, jobs: jobs}
}

type createStoreRequest struct {
	Name        string     `json:"name" validate:"required"`
	Platform    string     `json:"platform" validate:"required"`
	Credentials model.JSON `json:"credentials"`
}

func (h *SyncHandler) CreateStore(c *fiber.Ctx) error {
	var req createStoreRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(req); errs != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Validation failed", "details": errs})
	}

	store := &model.Store{
		OrganizationID: middleware.OrgID(c),
		Name:           req.Name,
		Platform:       req.Platform,
		Credentials:    req.Credentials,
		IsActive:       true,
	}
	if err := h.stores.Create(c.Context(), store); err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Store connected", "data": store})
}

func (h *SyncHandler) GetStores(c *fiber.Ctx) error {
	stores, err := h.stores.FindByOrganization(c.Context(), middleware.OrgID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stores)
}

func (h *SyncHandler) PushInventory(c *fiber.Ctx) error {
	storeID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid store ID"})
	}

	var req struct {
		VariantIDs []uuid.UUID `json:"variant_ids"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
		}
	}

	job, err := h.sync.PushInventory(c.Context(), storeID, req.VariantIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(202).JSON(fiber.Map{"message": "Inventory push started", "data": job})
}

func (h *SyncHandler) FetchProducts(c *fiber.Ctx) error {
	storeID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid store ID"})
	}

	job, err := h.sync.FetchAndReconcileProducts(c.Context(), storeID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(202).JSON(fiber.Map{"message": "Product sync started", "data": job})
}

func (h *SyncHandler) FetchOrders(c *fiber.Ctx) error {
	storeID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid store ID"})
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid since timestamp, use RFC3339"})
		}
		since = parsed
	}

	job, err := h.sync.FetchOrders(c.Context(), storeID, since)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(202).JSON(fiber.Map{"message": "Order fetch started", "data": job})
}

func (h *SyncHandler) GetJob(c *fiber.Ctx) error {
	jobID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid job ID"})
	}

	job, err := h.sync.GetJob(c.Context(), jobID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(job)
}

func (h *SyncHandler) GetJobLogs(c *fiber.Ctx) error {
	jobID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid job ID"})
	}

	logs, err := h.sync.GetJobLogs(c.Context(), jobID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(logs)
}

func (h *SyncHandler) ListJobs(c *fiber.Ctx) error {
	storeID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid store ID"})
	}

	jobs, err := h.jobs.ListByStore(c.Context(), storeID, c.QueryInt("limit", 50))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(jobs)
}

func (h *SyncHandler) ListConflicts(c *fiber.Ctx) error {
	storeID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid store ID"})
	}

	conflicts, err := h.sync.ListConflicts(c.Context(), storeID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(conflicts)
}

type resolveConflictRequest struct {
	Policy       service.ResolutionPolicy `json:"policy" validate:"required"`
	ManualValues model.JSON               `json:"manual_values"`
}

func (h *SyncHandler) ResolveConflict(c *fiber.Ctx) error {
	mappingID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid mapping ID"})
	}

	var req resolveConflictRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(req); errs != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Validation failed", "details": errs})
	}

	outcome, err := h.conflicts.ResolveConflict(c.Context(), mappingID, req.Policy, req.ManualValues, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Conflict resolved", "data": outcome})
}
