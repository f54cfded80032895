package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-stocksync/internal/model"
)

// TransactionRepository is the read side of the ledger. Rows are written only
// through ItemTx.Log so every delta stays coupled to its item mutation.
type TransactionRepository interface {
	// FindByItem returns the item's ledger in application order.
	FindByItem(ctx context.Context, itemID uuid.UUID) ([]model.InventoryTransaction, error)
	FindByReference(ctx context.Context, refType, refID string) ([]model.InventoryTransaction, error)
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) FindByItem(ctx context.Context, itemID uuid.UUID) ([]model.InventoryTransaction, error) {
	var txns []model.InventoryTransaction
	err := r.db.WithContext(ctx).
		Where("inventory_item_id = ?", itemID).
		Order("created_at ASC").
		Find(&txns).Error
	return txns, err
}

func (r *transactionRepo) FindByReference(ctx context.Context, refType, refID string) ([]model.InventoryTransaction, error) {
	var txns []model.InventoryTransaction
	err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", refType, refID).
		Order("created_at ASC").
		Find(&txns).Error
	return txns, err
}
