package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// InventoryItem is the stock record for one product variant at one location.
// It is the unit of serialization: every read-modify-write of its quantities
// runs under a row lock (see repository.ItemStore).
type InventoryItem struct {
	BaseModel
	OrganizationID   uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	ProductVariantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_items_variant_location" json:"product_variant_id"`
	LocationID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_items_variant_location" json:"location_id"`
	Location         *InventoryLocation `gorm:"foreignKey:LocationID;constraint:OnDelete:CASCADE" json:"location,omitempty"`

	QuantityOnHand   int `gorm:"not null;default:0;check:quantity_on_hand >= 0" json:"quantity_on_hand"`
	QuantityReserved int `gorm:"not null;default:0;check:quantity_reserved >= 0" json:"quantity_reserved"`
	ReorderPoint     int `gorm:"not null;default:0" json:"reorder_point"`
	ReorderQuantity  int `gorm:"not null;default:0" json:"reorder_quantity"`

	Transactions []InventoryTransaction `gorm:"foreignKey:InventoryItemID" json:"transactions,omitempty"`
}

// QuantityAvailable is always derived, never stored. It can go negative only
// as a flagged transient (remote overwrite under live reservations).
func (i *InventoryItem) QuantityAvailable() int {
	return i.QuantityOnHand - i.QuantityReserved
}

// IsLowStock reports whether the item sits at or below its reorder point.
// Items without a reorder point never trigger alerts.
func (i *InventoryItem) IsLowStock() bool {
	return i.ReorderPoint > 0 && i.QuantityAvailable() <= i.ReorderPoint
}

// MarshalJSON inlines the derived availability so API consumers never compute
// it themselves.
func (i InventoryItem) MarshalJSON() ([]byte, error) {
	type alias InventoryItem
	return json.Marshal(struct {
		alias
		QuantityAvailable int `json:"quantity_available"`
	}{alias(i), i.QuantityAvailable()})
}
