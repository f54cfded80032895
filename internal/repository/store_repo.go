package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
)

type StoreRepository interface {
	Create(ctx context.Context, store *model.Store) error
	Get(ctx context.Context, id uuid.UUID) (*model.Store, error)
	FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]model.Store, error)
}

type storeRepo struct {
	db *gorm.DB
}

func NewStoreRepo(db *gorm.DB) StoreRepository {
	return &storeRepo{db}
}

func (r *storeRepo) Create(ctx context.Context, store *model.Store) error {
	return r.db.WithContext(ctx).Create(store).Error
}

func (r *storeRepo) Get(ctx context.Context, id uuid.UUID) (*model.Store, error) {
	var store model.Store
	err := r.db.WithContext(ctx).First(&store, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("store", id.String())
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *storeRepo) FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]model.Store, error) {
	var stores []model.Store
	err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).Find(&stores).Error
	return stores, err
}
