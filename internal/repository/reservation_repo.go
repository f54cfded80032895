package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-stocksync/internal/model"
)

// ReservationRepository is the read side of stock holds. Creation and
// deletion happen through ItemTx so they commit with the item's reserved
// quantity in one transaction.
type ReservationRepository interface {
	FindByOrder(ctx context.Context, orderID string) ([]model.StockReservation, error)
	// FindExpired returns up to limit reservations whose TTL passed before now.
	FindExpired(ctx context.Context, now time.Time, limit int) ([]model.StockReservation, error)
	// SumForItem sums live reservation quantities for one (variant, location)
	// pair; it must always equal the item's quantityReserved.
	SumForItem(ctx context.Context, variantID, locationID uuid.UUID) (int, error)
}

type reservationRepo struct {
	db *gorm.DB
}

func NewReservationRepo(db *gorm.DB) ReservationRepository {
	return &reservationRepo{db}
}

func (r *reservationRepo) FindByOrder(ctx context.Context, orderID string) ([]model.StockReservation, error) {
	var reservations []model.StockReservation
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&reservations).Error
	return reservations, err
}

func (r *reservationRepo) FindExpired(ctx context.Context, now time.Time, limit int) ([]model.StockReservation, error) {
	var reservations []model.StockReservation
	q := r.db.WithContext(ctx).Where("expires_at < ?", now).Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&reservations).Error
	return reservations, err
}

func (r *reservationRepo) SumForItem(ctx context.Context, variantID, locationID uuid.UUID) (int, error) {
	var sum int
	err := r.db.WithContext(ctx).Model(&model.StockReservation{}).
		Where("product_variant_id = ? AND location_id = ?", variantID, locationID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&sum).Error
	return sum, err
}
