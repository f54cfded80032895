package model

import "github.com/google/uuid"

// InventoryLocation is a warehouse (or shop floor) stock is tracked against.
// One location per organization is the default target for operations that do
// not name one explicitly.
type InventoryLocation struct {
	BaseModel
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id" validate:"uuid_required"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	IsDefault      bool      `gorm:"default:false" json:"is_default"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
}
