package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
	"go-stocksync/internal/platform"
	"go-stocksync/internal/repository"
	"go-stocksync/internal/repository/memory"
)

var testLog = zerolog.Nop()

// inlineRunner executes jobs synchronously so tests observe final job state
// right after the service call returns.
type inlineRunner struct{}

func (inlineRunner) Go(fn func()) { fn() }

// testLocker always grants the lease.
type testLocker struct{}

func (testLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// denyLocker refuses every lease, as a second worker instance holding it would.
type denyLocker struct{}

func (denyLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	return nil, false, nil
}

// failingOrderLookup delegates to the real repository but fails order lookups.
type failingOrderLookup struct {
	repository.ReservationRepository
}

func (failingOrderLookup) FindByOrder(ctx context.Context, orderID string) ([]model.StockReservation, error) {
	return nil, errors.New("connection reset by peer")
}

// captureNotifier records low-stock alerts; Alerts is buffered because the
// ledger fires them from a goroutine.
type captureNotifier struct {
	Alerts chan []model.InventoryItem
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{Alerts: make(chan []model.InventoryItem, 8)}
}

func (n *captureNotifier) SendLowStockAlert(orgID uuid.UUID, items []model.InventoryItem) {
	n.Alerts <- items
}

type fakeConn struct{ storeID string }

func (c fakeConn) StoreID() string { return c.storeID }

// fakeAdapter scripts marketplace behavior per test: paged product listings,
// orders, per-item rejections, and a number of leading transient failures.
type fakeAdapter struct {
	mu   sync.Mutex
	caps platform.Capabilities

	productPages [][]platform.RemoteProduct
	orders       []platform.RemoteOrder

	// failCalls makes the first n UpdateInventory/FetchProducts/FetchOrders
	// calls fail with a retryable platform error.
	failCalls int
	// reject lists platform product IDs the platform refuses in a push.
	reject map[string]string

	updateCalls  int
	updatedItems []platform.InventoryUpdate
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		caps: platform.Capabilities{
			MaxBatchSize:   10,
			PageSize:       50,
			RequestTimeout: time.Second,
		},
	}
}

func (a *fakeAdapter) Name() string                        { return "fake" }
func (a *fakeAdapter) Capabilities() platform.Capabilities { return a.caps }

func (a *fakeAdapter) Authenticate(ctx context.Context, storeID string, credentials model.JSON) (platform.Connection, error) {
	return fakeConn{storeID: storeID}, nil
}

func (a *fakeAdapter) transientFailure(op string) error {
	if a.failCalls > 0 {
		a.failCalls--
		return &apperr.ExternalPlatformError{
			Platform:  "fake",
			Op:        op,
			Retryable: true,
			Err:       context.DeadlineExceeded,
		}
	}
	return nil
}

func (a *fakeAdapter) FetchProducts(ctx context.Context, conn platform.Connection, page, limit int) ([]platform.RemoteProduct, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.transientFailure("fetch_products"); err != nil {
		return nil, false, err
	}
	if page > len(a.productPages) {
		return nil, false, nil
	}
	return a.productPages[page-1], page < len(a.productPages), nil
}

func (a *fakeAdapter) UpdateInventory(ctx context.Context, conn platform.Connection, updates []platform.InventoryUpdate) (*platform.UpdateResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updateCalls++
	if err := a.transientFailure("update_inventory"); err != nil {
		return nil, err
	}
	res := &platform.UpdateResult{Failed: map[string]string{}}
	for _, u := range updates {
		if reason, ok := a.reject[u.PlatformProductID]; ok {
			res.Failed[u.PlatformProductID] = reason
			continue
		}
		res.Succeeded = append(res.Succeeded, u.PlatformProductID)
		a.updatedItems = append(a.updatedItems, u)
	}
	return res, nil
}

func (a *fakeAdapter) FetchOrders(ctx context.Context, conn platform.Connection, since, until time.Time) ([]platform.RemoteOrder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.transientFailure("fetch_orders"); err != nil {
		return nil, err
	}
	return a.orders, nil
}

// syncFixture wires a full sync stack against the in-memory store.
type syncFixture struct {
	db      *memory.Store
	adapter *fakeAdapter
	orgID   uuid.UUID
	store   *model.Store
	loc     *model.InventoryLocation

	ledger       LedgerService
	reservations ReservationService
	sync         SyncService
	conflicts    ConflictService
}

func newSyncFixture(cfg SyncConfig) *syncFixture {
	db := memory.NewStore()
	adapter := newFakeAdapter()
	registry := platform.NewRegistry(adapter)
	orgID := uuid.New()

	ctx := context.Background()
	store := &model.Store{OrganizationID: orgID, Name: "Test Shop", Platform: "fake", IsActive: true}
	if err := db.CreateStore(ctx, store); err != nil {
		panic(err)
	}
	loc := &model.InventoryLocation{OrganizationID: orgID, Name: "Main Warehouse", IsActive: true}
	if err := db.CreateLocation(ctx, loc); err != nil {
		panic(err)
	}

	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = time.Millisecond
	}

	ledger := NewLedgerService(db.Items(), db.Transactions(), nil, testLog)
	reservations := NewReservationService(db.Items(), db.Reservations(), 0, testLog)
	sync := NewSyncService(db.Stores(), db.Mappings(), db.Jobs(), db.Items(), db.Locations(),
		db.Reservations(), reservations, registry, testLocker{}, inlineRunner{}, cfg, testLog)
	conflicts := NewConflictService(db.Mappings(), db.Stores(), db.Locations(), ledger, sync, testLog)

	return &syncFixture{
		db:           db,
		adapter:      adapter,
		orgID:        orgID,
		store:        store,
		loc:          loc,
		ledger:       ledger,
		reservations: reservations,
		sync:         sync,
		conflicts:    conflicts,
	}
}

// addMapping seeds a linked, pushable mapping.
func (f *syncFixture) addMapping(variantID uuid.UUID, platformProductID, title string, price decimal.Decimal) *model.StoreProductMapping {
	m := &model.StoreProductMapping{
		StoreID:           f.store.ID,
		ProductVariantID:  variantID,
		PlatformProductID: platformProductID,
		Title:             title,
		Price:             price,
		SyncStatus:        model.SyncStatusPending,
	}
	if err := f.db.CreateMapping(context.Background(), m); err != nil {
		panic(err)
	}
	return m
}

// setStock sets the on-hand quantity of a variant at the fixture's location.
func (f *syncFixture) setStock(variantID uuid.UUID, onHand int) {
	_, err := f.ledger.UpdateStock(context.Background(), f.orgID, variantID, f.loc.ID, onHand, "test")
	if err != nil {
		panic(err)
	}
}

var _ repository.ItemStore = (*memory.Store)(nil)
