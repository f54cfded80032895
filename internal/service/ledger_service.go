package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
	"go-stocksync/internal/repository"
)

// Notifier is the outbound port to the notification collaborator.
// Implementations must be fire-and-forget: failures are logged, never
// returned, and never block the ledger.
type Notifier interface {
	SendLowStockAlert(organizationID uuid.UUID, items []model.InventoryItem)
}

// BatchDelta is one entry of an adjustInventory batch.
type BatchDelta struct {
	VariantID      uuid.UUID `json:"variant_id" validate:"uuid_required"`
	LocationID     uuid.UUID `json:"location_id" validate:"uuid_required"`
	QuantityChange int       `json:"quantity_change"`
	Reason         string    `json:"reason"`
}

// RejectedDelta reports one batch entry that was refused. The rest of the
// batch still applies (partial success).
type RejectedDelta struct {
	Delta  BatchDelta `json:"delta"`
	Reason string     `json:"reason"`
}

type BatchResult struct {
	Applied  []model.InventoryItem `json:"applied"`
	Rejected []RejectedDelta       `json:"rejected"`
}

type LedgerService interface {
	// UpdateStock sets an item's absolute on-hand quantity, writing one
	// adjustment ledger row carrying the computed delta. Creates the item on
	// first use (reserved starts at 0).
	UpdateStock(ctx context.Context, orgID, variantID, locationID uuid.UUID, newOnHand int, actor string) (*model.InventoryItem, error)
	// AdjustInventory applies the deltas sequentially. Entries that would
	// drive on-hand negative are rejected individually.
	AdjustInventory(ctx context.Context, orgID uuid.UUID, deltas []BatchDelta, actor string) (*BatchResult, error)
	// GetAvailableStock returns availability at one location, or summed
	// across all locations when locationID is nil. 0 when no rows exist.
	GetAvailableStock(ctx context.Context, variantID uuid.UUID, locationID *uuid.UUID) (int, error)
	// GetLowStockItems returns items at or below their reorder point and
	// fires one low-stock alert for the whole result set.
	GetLowStockItems(ctx context.Context, orgID uuid.UUID) ([]model.InventoryItem, error)
	// GetItemHistory returns the item's ledger trail in application order.
	GetItemHistory(ctx context.Context, variantID, locationID uuid.UUID) ([]model.InventoryTransaction, error)
}

type ledgerService struct {
	items    repository.ItemStore
	txns     repository.TransactionRepository
	notifier Notifier
	log      zerolog.Logger
}

func NewLedgerService(items repository.ItemStore, txns repository.TransactionRepository, notifier Notifier, log zerolog.Logger) LedgerService {
	return &ledgerService{items: items, txns: txns, notifier: notifier, log: log}
}

func (s *ledgerService) UpdateStock(ctx context.Context, orgID, variantID, locationID uuid.UUID, newOnHand int, actor string) (*model.InventoryItem, error) {
	if newOnHand < 0 {
		return nil, apperr.Validation("quantity_on_hand", "must not be negative")
	}

	var updated *model.InventoryItem
	err := s.items.WithItem(ctx, orgID, variantID, locationID, func(tx repository.ItemTx) error {
		item := tx.Item()
		delta := newOnHand - item.QuantityOnHand
		if delta == 0 {
			// No mutation, no ledger row.
			updated = item
			return nil
		}
		item.QuantityOnHand = newOnHand
		if err := tx.SaveItem(); err != nil {
			return err
		}
		if err := tx.Log(&model.InventoryTransaction{
			Type:           model.TxAdjustment,
			Side:           model.SideOnHand,
			QuantityChange: delta,
			Actor:          actor,
		}); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("variant_id", variantID.String()).
		Str("location_id", locationID.String()).
		Int("on_hand", updated.QuantityOnHand).
		Str("actor", actor).
		Msg("stock updated")
	return updated, nil
}

func (s *ledgerService) AdjustInventory(ctx context.Context, orgID uuid.UUID, deltas []BatchDelta, actor string) (*BatchResult, error) {
	result := &BatchResult{}

	// Deltas apply strictly in order so overlapping (variant, location) pairs
	// in one batch observe each other's effects.
	for _, d := range deltas {
		d := d
		err := s.items.WithItem(ctx, orgID, d.VariantID, d.LocationID, func(tx repository.ItemTx) error {
			item := tx.Item()
			next := item.QuantityOnHand + d.QuantityChange
			if next < 0 {
				return &apperr.ValidationError{Field: "quantity_change", Reason: "would drive on-hand stock negative"}
			}
			item.QuantityOnHand = next
			if err := tx.SaveItem(); err != nil {
				return err
			}
			if err := tx.Log(&model.InventoryTransaction{
				Type:           model.TxAdjustment,
				Side:           model.SideOnHand,
				QuantityChange: d.QuantityChange,
				Notes:          d.Reason,
				Actor:          actor,
			}); err != nil {
				return err
			}
			result.Applied = append(result.Applied, *item)
			return nil
		})
		if err != nil {
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) {
				return nil, err
			}
			result.Rejected = append(result.Rejected, RejectedDelta{Delta: d, Reason: ve.Reason})
		}
	}
	return result, nil
}

func (s *ledgerService) GetAvailableStock(ctx context.Context, variantID uuid.UUID, locationID *uuid.UUID) (int, error) {
	if locationID == nil {
		return s.items.SumAvailable(ctx, variantID)
	}
	item, err := s.items.Get(ctx, variantID, *locationID)
	if err != nil {
		return 0, err
	}
	if item == nil {
		return 0, nil
	}
	return item.QuantityAvailable(), nil
}

func (s *ledgerService) GetLowStockItems(ctx context.Context, orgID uuid.UUID) ([]model.InventoryItem, error) {
	items, err := s.items.ListLowStock(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 && s.notifier != nil {
		// One alert per call carrying the full result set.
		go s.notifier.SendLowStockAlert(orgID, items)
	}
	return items, nil
}

func (s *ledgerService) GetItemHistory(ctx context.Context, variantID, locationID uuid.UUID) ([]model.InventoryTransaction, error) {
	item, err := s.items.Get(ctx, variantID, locationID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("inventory item", variantID.String())
	}
	return s.txns.FindByItem(ctx, item.ID)
}
