package model

import "github.com/google/uuid"

type TransactionType string

const (
	TxAdjustment  TransactionType = "adjustment"
	TxSale        TransactionType = "sale"
	TxPurchase    TransactionType = "purchase"
	TxTransfer    TransactionType = "transfer"
	TxReservation TransactionType = "reservation"
	TxRelease     TransactionType = "release"
)

// Side says which quantity column a ledger row accounts for. Reservation and
// release rows move the reserved side; everything else moves on-hand.
type TransactionSide string

const (
	SideOnHand   TransactionSide = "on_hand"
	SideReserved TransactionSide = "reserved"
)

// InventoryTransaction is an immutable ledger row. Every mutation of an
// item's quantityOnHand or quantityReserved writes exactly one row whose
// signed delta matches the change — that is the audit contract.
type InventoryTransaction struct {
	BaseModel
	InventoryItemID uuid.UUID      `gorm:"type:uuid;not null;index" json:"inventory_item_id" validate:"uuid_required"`
	InventoryItem   *InventoryItem `gorm:"foreignKey:InventoryItemID;constraint:OnDelete:CASCADE" json:"-"`

	Type           TransactionType `gorm:"type:varchar(20);not null" json:"type" validate:"required,oneof=adjustment sale purchase transfer reservation release"`
	Side           TransactionSide `gorm:"type:varchar(10);not null;default:on_hand" json:"side"`
	QuantityChange int             `gorm:"not null" json:"quantity_change"`

	ReferenceType string `gorm:"type:varchar(50)" json:"reference_type,omitempty"`
	ReferenceID   string `gorm:"type:varchar(100);index" json:"reference_id,omitempty"`
	Notes         string `json:"notes,omitempty"`
	Actor         string `gorm:"type:varchar(255);not null" json:"actor"`
}
