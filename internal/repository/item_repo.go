package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
)

// ItemTx is the handle fn receives inside ItemStore.WithItem. Everything done
// through it commits atomically with the item row update.
type ItemTx interface {
	// Item is the locked row. Mutate its quantities, then SaveItem.
	Item() *model.InventoryItem
	SaveItem() error
	// Log appends one immutable ledger row for the mutation.
	Log(txn *model.InventoryTransaction) error
	AddReservation(r *model.StockReservation) error
	// DeleteReservation removes the reservation row if it still exists and
	// reports whether this call was the one that deleted it. A false return
	// means another releaser got there first.
	DeleteReservation(id uuid.UUID) (bool, error)
}

// ItemStore serializes all read-modify-write access to inventory items. The
// item row is the unit of serialization: WithItem locks it and runs fn inside
// the same database transaction. When no row exists it is created with zero
// quantities, unless orgID is uuid.Nil in which case a NotFoundError is
// returned (release paths must never conjure items). Operations on different
// items proceed in parallel.
type ItemStore interface {
	WithItem(ctx context.Context, orgID, variantID, locationID uuid.UUID, fn func(tx ItemTx) error) error
	// Get returns nil when no row exists for the pair.
	Get(ctx context.Context, variantID, locationID uuid.UUID) (*model.InventoryItem, error)
	// SumAvailable sums quantityAvailable across all locations of a variant.
	// Returns 0 when no rows exist.
	SumAvailable(ctx context.Context, variantID uuid.UUID) (int, error)
	ListLowStock(ctx context.Context, orgID uuid.UUID) ([]model.InventoryItem, error)
}

// createRetries bounds the create race on first use of a (variant, location)
// pair. Exhaustion surfaces a ConcurrencyError.
const createRetries = 3

type itemStore struct {
	db *gorm.DB
}

func NewItemStore(db *gorm.DB) ItemStore {
	return &itemStore{db}
}

type gormItemTx struct {
	tx   *gorm.DB
	item *model.InventoryItem
}

func (t *gormItemTx) Item() *model.InventoryItem { return t.item }

func (t *gormItemTx) SaveItem() error {
	return t.tx.Save(t.item).Error
}

func (t *gormItemTx) Log(txn *model.InventoryTransaction) error {
	txn.InventoryItemID = t.item.ID
	return t.tx.Create(txn).Error
}

func (t *gormItemTx) AddReservation(r *model.StockReservation) error {
	return t.tx.Create(r).Error
}

func (t *gormItemTx) DeleteReservation(id uuid.UUID) (bool, error) {
	res := t.tx.Delete(&model.StockReservation{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *itemStore) WithItem(ctx context.Context, orgID, variantID, locationID uuid.UUID, fn func(tx ItemTx) error) error {
	for attempt := 0; attempt < createRetries; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var item model.InventoryItem
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&item, "product_variant_id = ? AND location_id = ?", variantID, locationID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if orgID == uuid.Nil {
					return apperr.NotFound("inventory item", variantID.String())
				}
				// First use: create the row with zero quantities, then lock it.
				item = model.InventoryItem{
					OrganizationID:   orgID,
					ProductVariantID: variantID,
					LocationID:       locationID,
				}
				if err := tx.Create(&item).Error; err != nil {
					// Unique violation from a concurrent first use; retry
					// the whole transaction and lock the winner's row.
					return errRetryCreate
				}
			} else if err != nil {
				return err
			}
			return fn(&gormItemTx{tx: tx, item: &item})
		})
		if errors.Is(err, errRetryCreate) {
			continue
		}
		return err
	}
	return &apperr.ConcurrencyError{Resource: "inventory item " + variantID.String()}
}

var errRetryCreate = errors.New("item create race, retry")

func (s *itemStore) Get(ctx context.Context, variantID, locationID uuid.UUID) (*model.InventoryItem, error) {
	var item model.InventoryItem
	err := s.db.WithContext(ctx).
		First(&item, "product_variant_id = ? AND location_id = ?", variantID, locationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *itemStore) SumAvailable(ctx context.Context, variantID uuid.UUID) (int, error) {
	var sum int
	err := s.db.WithContext(ctx).Model(&model.InventoryItem{}).
		Where("product_variant_id = ?", variantID).
		Select("COALESCE(SUM(quantity_on_hand - quantity_reserved), 0)").
		Scan(&sum).Error
	return sum, err
}

func (s *itemStore) ListLowStock(ctx context.Context, orgID uuid.UUID) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND reorder_point > 0 AND (quantity_on_hand - quantity_reserved) <= reorder_point", orgID).
		Order("updated_at DESC").
		Find(&items).Error
	return items, err
}
