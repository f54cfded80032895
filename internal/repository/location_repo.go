package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
)

type LocationRepository interface {
	// Create stores the location. An organization's first location becomes
	// its default automatically.
	Create(ctx context.Context, loc *model.InventoryLocation) error
	Get(ctx context.Context, id uuid.UUID) (*model.InventoryLocation, error)
	FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]model.InventoryLocation, error)
	Default(ctx context.Context, orgID uuid.UUID) (*model.InventoryLocation, error)
	// SetDefault flips the organization's default to the given location,
	// clearing the previous default in the same transaction so at most one
	// default exists.
	SetDefault(ctx context.Context, orgID, locationID uuid.UUID) error
}

type locationRepo struct {
	db *gorm.DB
}

func NewLocationRepo(db *gorm.DB) LocationRepository {
	return &locationRepo{db}
}

func (r *locationRepo) Create(ctx context.Context, loc *model.InventoryLocation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.InventoryLocation{}).
			Where("organization_id = ?", loc.OrganizationID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			loc.IsDefault = true
		}
		return tx.Create(loc).Error
	})
}

func (r *locationRepo) Get(ctx context.Context, id uuid.UUID) (*model.InventoryLocation, error) {
	var loc model.InventoryLocation
	err := r.db.WithContext(ctx).First(&loc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("location", id.String())
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *locationRepo) FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]model.InventoryLocation, error) {
	var locs []model.InventoryLocation
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at ASC").
		Find(&locs).Error
	return locs, err
}

func (r *locationRepo) Default(ctx context.Context, orgID uuid.UUID) (*model.InventoryLocation, error) {
	var loc model.InventoryLocation
	err := r.db.WithContext(ctx).
		First(&loc, "organization_id = ? AND is_default = true", orgID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("default location for organization", orgID.String())
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *locationRepo) SetDefault(ctx context.Context, orgID, locationID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.InventoryLocation{}).
			Where("id = ? AND organization_id = ?", locationID, orgID).
			Update("is_default", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("location", locationID.String())
		}
		return tx.Model(&model.InventoryLocation{}).
			Where("organization_id = ? AND id <> ?", orgID, locationID).
			Update("is_default", false).Error
	})
}
