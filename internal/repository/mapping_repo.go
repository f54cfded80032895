package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
)

type MappingRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.StoreProductMapping, error)
	// FindByPlatformID returns nil when the remote product is not mapped yet.
	FindByPlatformID(ctx context.Context, storeID uuid.UUID, platformProductID string, platformVariantID *string) (*model.StoreProductMapping, error)
	FindByStore(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error)
	// ListPushable returns the store's mappings eligible for automatic
	// pushes, i.e. everything not sitting on an unresolved conflict.
	ListPushable(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error)
	ListConflicted(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error)
	Create(ctx context.Context, m *model.StoreProductMapping) error
	Update(ctx context.Context, m *model.StoreProductMapping) error
}

type mappingRepo struct {
	db *gorm.DB
}

func NewMappingRepo(db *gorm.DB) MappingRepository {
	return &mappingRepo{db}
}

func (r *mappingRepo) Get(ctx context.Context, id uuid.UUID) (*model.StoreProductMapping, error) {
	var m model.StoreProductMapping
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("mapping", id.String())
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mappingRepo) FindByPlatformID(ctx context.Context, storeID uuid.UUID, platformProductID string, platformVariantID *string) (*model.StoreProductMapping, error) {
	q := r.db.WithContext(ctx).Where("store_id = ? AND platform_product_id = ?", storeID, platformProductID)
	if platformVariantID == nil {
		q = q.Where("platform_variant_id IS NULL")
	} else {
		q = q.Where("platform_variant_id = ?", *platformVariantID)
	}
	var m model.StoreProductMapping
	err := q.First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mappingRepo) FindByStore(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error) {
	var mappings []model.StoreProductMapping
	err := r.db.WithContext(ctx).Where("store_id = ?", storeID).Find(&mappings).Error
	return mappings, err
}

func (r *mappingRepo) ListPushable(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error) {
	var mappings []model.StoreProductMapping
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND sync_status <> ?", storeID, model.SyncStatusError).
		Find(&mappings).Error
	return mappings, err
}

func (r *mappingRepo) ListConflicted(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error) {
	var mappings []model.StoreProductMapping
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND sync_status = ? AND conflict_details IS NOT NULL", storeID, model.SyncStatusError).
		Find(&mappings).Error
	return mappings, err
}

func (r *mappingRepo) Create(ctx context.Context, m *model.StoreProductMapping) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *mappingRepo) Update(ctx context.Context, m *model.StoreProductMapping) error {
	return r.db.WithContext(ctx).Save(m).Error
}
