package model

import (
	"time"

	"github.com/google/uuid"
)

// StockReservation is a time-boxed hold on available stock tied to an
// in-flight order. The row's existence is the single source of truth for the
// hold: releasing deletes it, and the expiry sweep uses the delete as its
// serialization point so two sweepers can never double-release.
type StockReservation struct {
	BaseModel
	OrderID          string    `gorm:"type:varchar(100);not null;index" json:"order_id" validate:"required"`
	ProductVariantID uuid.UUID `gorm:"type:uuid;not null;index" json:"product_variant_id" validate:"uuid_required"`
	LocationID       uuid.UUID `gorm:"type:uuid;not null" json:"location_id" validate:"uuid_required"`
	Quantity         int       `gorm:"not null" json:"quantity" validate:"required,gt=0"`
	ExpiresAt        time.Time `gorm:"not null;index" json:"expires_at"`
}

// Expired reports whether the hold has passed its TTL at the given instant.
func (r *StockReservation) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}
