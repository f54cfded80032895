package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusError   SyncStatus = "error"
)

// StoreProductMapping links a local product variant to its listing on one
// marketplace store. It is owned jointly by the store and the variant and
// never outlives either (cascade delete on both sides).
type StoreProductMapping struct {
	BaseModel
	StoreID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_mappings_store_platform" json:"store_id"`
	Store   *Store    `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" json:"-"`

	ProductVariantID  uuid.UUID `gorm:"type:uuid;not null;index" json:"product_variant_id"`
	PlatformProductID string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_mappings_store_platform" json:"platform_product_id"`
	PlatformVariantID *string   `gorm:"type:varchar(100);uniqueIndex:idx_mappings_store_platform" json:"platform_variant_id,omitempty"`
	PlatformSKU       string    `gorm:"type:varchar(100)" json:"platform_sku"`

	Title string `gorm:"type:varchar(255)" json:"title"`

	Price          decimal.Decimal  `gorm:"type:numeric(12,2)" json:"price"`
	CompareAtPrice *decimal.Decimal `gorm:"type:numeric(12,2)" json:"compare_at_price,omitempty"`

	SyncStatus SyncStatus `gorm:"type:varchar(20);not null;default:pending;index" json:"sync_status"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`

	// ConflictDetails freezes the local/remote divergence detected during
	// reconciliation so resolveConflict can act without refetching. Cleared
	// when the conflict is resolved.
	ConflictDetails JSON `gorm:"type:jsonb" json:"conflict_details,omitempty"`

	// LastResolution is the audit record of the most recent conflict
	// resolution: policy, actor, applied values and timestamp.
	LastResolution JSON `gorm:"type:jsonb" json:"last_resolution,omitempty"`
}

// HasConflict reports whether the mapping carries an unresolved divergence.
// Such mappings are excluded from automatic pushes until resolved.
func (m *StoreProductMapping) HasConflict() bool {
	return m.SyncStatus == SyncStatusError && len(m.ConflictDetails) > 0
}
