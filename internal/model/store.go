package model

import "github.com/google/uuid"

// Store is one connected external marketplace shop. The platform key binds
// the store to a registered adapter once, at connection time; nothing
// re-dispatches on the platform name per call.
type Store struct {
	BaseModel
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id" validate:"uuid_required"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Platform       string    `gorm:"type:varchar(50);not null" json:"platform" validate:"required"`
	Credentials    JSON      `gorm:"type:jsonb" json:"-"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
}
