package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
	"go-stocksync/internal/repository"
)

// DefaultReservationTTL bounds a hold's lifetime when no explicit policy is
// configured. Holds are reclaimed lazily by the sweep, not by timers.
const DefaultReservationTTL = 30 * time.Minute

type ReservationService interface {
	// ReserveStock places a hold against available stock. Not idempotent per
	// orderID: every call creates a distinct hold, so a caller that retries
	// must release first. Fails with InsufficientStockError (and performs no
	// mutation) when quantity exceeds current availability.
	ReserveStock(ctx context.Context, orgID, variantID, locationID uuid.UUID, quantity int, orderID, actor string) (*model.StockReservation, error)
	// ReleaseReservation releases every live hold of the order. Idempotent:
	// the second call finds no live rows and is a no-op.
	ReleaseReservation(ctx context.Context, orderID, actor string) error
	// CleanupExpiredReservations sweeps holds past their TTL and returns the
	// count released. Safe to run concurrently on multiple instances: the
	// reservation row's deletion is the serialization point.
	CleanupExpiredReservations(ctx context.Context) (int, error)
}

type reservationService struct {
	items        repository.ItemStore
	reservations repository.ReservationRepository
	ttl          time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

func NewReservationService(items repository.ItemStore, reservations repository.ReservationRepository, ttl time.Duration, log zerolog.Logger) ReservationService {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	return &reservationService{
		items:        items,
		reservations: reservations,
		ttl:          ttl,
		now:          time.Now,
		log:          log,
	}
}

func (s *reservationService) ReserveStock(ctx context.Context, orgID, variantID, locationID uuid.UUID, quantity int, orderID, actor string) (*model.StockReservation, error) {
	if quantity <= 0 {
		return nil, apperr.Validation("quantity", "must be greater than zero")
	}
	if orderID == "" {
		return nil, apperr.Validation("order_id", "must not be empty")
	}

	var reservation *model.StockReservation
	err := s.items.WithItem(ctx, orgID, variantID, locationID, func(tx repository.ItemTx) error {
		item := tx.Item()
		available := item.QuantityAvailable()
		if quantity > available {
			return &apperr.InsufficientStockError{Requested: quantity, Available: available}
		}

		item.QuantityReserved += quantity
		if err := tx.SaveItem(); err != nil {
			return err
		}

		r := &model.StockReservation{
			OrderID:          orderID,
			ProductVariantID: variantID,
			LocationID:       locationID,
			Quantity:         quantity,
			ExpiresAt:        s.now().Add(s.ttl),
		}
		if err := tx.AddReservation(r); err != nil {
			return err
		}

		if err := tx.Log(&model.InventoryTransaction{
			Type:           model.TxReservation,
			Side:           model.SideReserved,
			QuantityChange: quantity,
			ReferenceType:  "order",
			ReferenceID:    orderID,
			Actor:          actor,
		}); err != nil {
			return err
		}
		reservation = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("order_id", orderID).
		Str("variant_id", variantID.String()).
		Int("quantity", quantity).
		Time("expires_at", reservation.ExpiresAt).
		Msg("stock reserved")
	return reservation, nil
}

func (s *reservationService) ReleaseReservation(ctx context.Context, orderID, actor string) error {
	live, err := s.reservations.FindByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, r := range live {
		if _, err := s.releaseOne(ctx, r, model.TxRelease, actor); err != nil {
			return err
		}
	}
	return nil
}

func (s *reservationService) CleanupExpiredReservations(ctx context.Context) (int, error) {
	expired, err := s.reservations.FindExpired(ctx, s.now(), 0)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, r := range expired {
		ok, err := s.releaseOne(ctx, r, model.TxRelease, "expiry-sweep")
		if err != nil {
			return released, err
		}
		if ok {
			released++
		}
	}
	if released > 0 {
		s.log.Info().Int("released", released).Msg("expired reservations swept")
	}
	return released, nil
}

// releaseOne deletes the reservation row and gives its quantity back. The
// delete's rows-affected result decides who wins when releasers race; a loser
// leaves the item untouched.
func (s *reservationService) releaseOne(ctx context.Context, r model.StockReservation, txType model.TransactionType, actor string) (bool, error) {
	released := false
	err := s.items.WithItem(ctx, uuid.Nil, r.ProductVariantID, r.LocationID, func(tx repository.ItemTx) error {
		deleted, err := tx.DeleteReservation(r.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return nil
		}

		item := tx.Item()
		item.QuantityReserved -= r.Quantity
		if item.QuantityReserved < 0 {
			item.QuantityReserved = 0
		}
		if err := tx.SaveItem(); err != nil {
			return err
		}
		if err := tx.Log(&model.InventoryTransaction{
			Type:           txType,
			Side:           model.SideReserved,
			QuantityChange: -r.Quantity,
			ReferenceType:  "order",
			ReferenceID:    r.OrderID,
			Actor:          actor,
		}); err != nil {
			return err
		}
		released = true
		return nil
	})
	return released, err
}
