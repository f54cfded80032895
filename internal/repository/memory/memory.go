// Package memory implements the repository interfaces against in-process
// maps. It backs the test suite and single-node development; the semantics
// mirror the GORM implementations, including per-item serialization and the
// delete-as-serialization-point rule for reservations.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
	"go-stocksync/internal/repository"
)

// Store holds every aggregate behind one mutex, with a dedicated lock per
// inventory item so WithItem serializes exactly like a row lock.
type Store struct {
	mu        sync.RWMutex
	itemLocks map[string]*sync.Mutex

	items        map[string]*model.InventoryItem // variant|location
	transactions []model.InventoryTransaction
	reservations map[uuid.UUID]*model.StockReservation
	mappings     map[uuid.UUID]*model.StoreProductMapping
	jobs         map[uuid.UUID]*model.SyncJob
	logs         []model.SyncLog
	stores       map[uuid.UUID]*model.Store
	locations    map[uuid.UUID]*model.InventoryLocation
}

func NewStore() *Store {
	return &Store{
		itemLocks:    make(map[string]*sync.Mutex),
		items:        make(map[string]*model.InventoryItem),
		reservations: make(map[uuid.UUID]*model.StockReservation),
		mappings:     make(map[uuid.UUID]*model.StoreProductMapping),
		jobs:         make(map[uuid.UUID]*model.SyncJob),
		stores:       make(map[uuid.UUID]*model.Store),
		locations:    make(map[uuid.UUID]*model.InventoryLocation),
	}
}

func itemKey(variantID, locationID uuid.UUID) string {
	return variantID.String() + "|" + locationID.String()
}

func (s *Store) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.itemLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.itemLocks[key] = l
	}
	return l
}

type memItemTx struct {
	store *Store
	item  *model.InventoryItem

	savedItem  bool
	stagedTxns []model.InventoryTransaction
	stagedAdds []*model.StockReservation
	stagedDels []uuid.UUID
}

func (t *memItemTx) Item() *model.InventoryItem { return t.item }

func (t *memItemTx) SaveItem() error {
	t.savedItem = true
	return nil
}

func (t *memItemTx) Log(txn *model.InventoryTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	txn.CreatedAt = time.Now()
	txn.InventoryItemID = t.item.ID
	t.stagedTxns = append(t.stagedTxns, *txn)
	return nil
}

func (t *memItemTx) AddReservation(r *model.StockReservation) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now()
	t.stagedAdds = append(t.stagedAdds, r)
	return nil
}

func (t *memItemTx) DeleteReservation(id uuid.UUID) (bool, error) {
	t.store.mu.RLock()
	_, live := t.store.reservations[id]
	t.store.mu.RUnlock()
	if !live {
		return false, nil
	}
	for _, staged := range t.stagedDels {
		if staged == id {
			return false, nil
		}
	}
	t.stagedDels = append(t.stagedDels, id)
	return true, nil
}

// WithItem serializes on a per-key mutex and commits staged writes only when
// fn succeeds, matching the transactional GORM path. A first-use create is
// staged too: a failing fn rolls it back along with everything else.
func (s *Store) WithItem(ctx context.Context, orgID, variantID, locationID uuid.UUID, fn func(tx repository.ItemTx) error) error {
	key := itemKey(variantID, locationID)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	var created bool
	item, ok := s.items[key]
	if !ok {
		if orgID == uuid.Nil {
			s.mu.Unlock()
			return apperr.NotFound("inventory item", variantID.String())
		}
		item = &model.InventoryItem{
			BaseModel:        model.BaseModel{ID: uuid.New(), CreatedAt: time.Now()},
			OrganizationID:   orgID,
			ProductVariantID: variantID,
			LocationID:       locationID,
		}
		created = true
	}
	working := *item
	s.mu.Unlock()

	tx := &memItemTx{store: s, item: &working}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.savedItem {
		working.UpdatedAt = time.Now()
	}
	if created {
		cp := working
		s.items[key] = &cp
	} else if tx.savedItem {
		*s.items[key] = working
	}
	s.transactions = append(s.transactions, tx.stagedTxns...)
	for _, r := range tx.stagedAdds {
		cp := *r
		s.reservations[r.ID] = &cp
	}
	for _, id := range tx.stagedDels {
		delete(s.reservations, id)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, variantID, locationID uuid.UUID) (*model.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemKey(variantID, locationID)]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (s *Store) SumAvailable(ctx context.Context, variantID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := 0
	for _, item := range s.items {
		if item.ProductVariantID == variantID {
			sum += item.QuantityAvailable()
		}
	}
	return sum, nil
}

func (s *Store) ListLowStock(ctx context.Context, orgID uuid.UUID) ([]model.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.InventoryItem
	for _, item := range s.items {
		if item.OrganizationID == orgID && item.IsLowStock() {
			out = append(out, *item)
		}
	}
	return out, nil
}

// --- TransactionRepository ---

func (s *Store) FindByItem(ctx context.Context, itemID uuid.UUID) ([]model.InventoryTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.InventoryTransaction
	for _, txn := range s.transactions {
		if txn.InventoryItemID == itemID {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (s *Store) FindByReference(ctx context.Context, refType, refID string) ([]model.InventoryTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.InventoryTransaction
	for _, txn := range s.transactions {
		if txn.ReferenceType == refType && txn.ReferenceID == refID {
			out = append(out, txn)
		}
	}
	return out, nil
}

// --- ReservationRepository ---

func (s *Store) FindByOrder(ctx context.Context, orderID string) ([]model.StockReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.StockReservation
	for _, r := range s.reservations {
		if r.OrderID == orderID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *Store) FindExpired(ctx context.Context, now time.Time, limit int) ([]model.StockReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.StockReservation
	for _, r := range s.reservations {
		if r.Expired(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SumForItem(ctx context.Context, variantID, locationID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := 0
	for _, r := range s.reservations {
		if r.ProductVariantID == variantID && r.LocationID == locationID {
			sum += r.Quantity
		}
	}
	return sum, nil
}
