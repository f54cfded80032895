package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"go-stocksync/internal/model"
	"go-stocksync/internal/repository"
)

// The Store itself implements ItemStore, TransactionRepository and
// ReservationRepository. The remaining interfaces share method names
// (Get/Create/Update), so each gets a thin view.

func (s *Store) Items() repository.ItemStore                    { return s }
func (s *Store) Transactions() repository.TransactionRepository { return s }
func (s *Store) Reservations() repository.ReservationRepository { return s }

func (s *Store) Mappings() repository.MappingRepository   { return mappingView{s} }
func (s *Store) Jobs() repository.SyncJobRepository       { return jobView{s} }
func (s *Store) Stores() repository.StoreRepository       { return storeView{s} }
func (s *Store) Locations() repository.LocationRepository { return locationView{s} }

type mappingView struct{ s *Store }

func (v mappingView) Get(ctx context.Context, id uuid.UUID) (*model.StoreProductMapping, error) {
	return v.s.GetMapping(ctx, id)
}

func (v mappingView) FindByPlatformID(ctx context.Context, storeID uuid.UUID, platformProductID string, platformVariantID *string) (*model.StoreProductMapping, error) {
	return v.s.FindByPlatformID(ctx, storeID, platformProductID, platformVariantID)
}

func (v mappingView) FindByStore(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error) {
	return v.s.FindByStore(ctx, storeID)
}

func (v mappingView) ListPushable(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error) {
	return v.s.ListPushable(ctx, storeID)
}

func (v mappingView) ListConflicted(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error) {
	return v.s.ListConflicted(ctx, storeID)
}

func (v mappingView) Create(ctx context.Context, m *model.StoreProductMapping) error {
	return v.s.CreateMapping(ctx, m)
}

func (v mappingView) Update(ctx context.Context, m *model.StoreProductMapping) error {
	return v.s.UpdateMapping(ctx, m)
}

type jobView struct{ s *Store }

func (v jobView) Create(ctx context.Context, job *model.SyncJob) error { return v.s.CreateJob(ctx, job) }
func (v jobView) Get(ctx context.Context, id uuid.UUID) (*model.SyncJob, error) {
	return v.s.GetJob(ctx, id)
}
func (v jobView) HasActive(ctx context.Context, storeID uuid.UUID, jobType model.SyncJobType) (bool, error) {
	return v.s.HasActive(ctx, storeID, jobType)
}
func (v jobView) Claim(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return v.s.Claim(ctx, id, at)
}
func (v jobView) Update(ctx context.Context, job *model.SyncJob) error { return v.s.UpdateJob(ctx, job) }
func (v jobView) AppendLog(ctx context.Context, entry *model.SyncLog) error {
	return v.s.AppendLog(ctx, entry)
}
func (v jobView) Logs(ctx context.Context, jobID uuid.UUID) ([]model.SyncLog, error) {
	return v.s.Logs(ctx, jobID)
}
func (v jobView) ListByStore(ctx context.Context, storeID uuid.UUID, limit int) ([]model.SyncJob, error) {
	return v.s.ListByStore(ctx, storeID, limit)
}

type storeView struct{ s *Store }

func (v storeView) Create(ctx context.Context, store *model.Store) error {
	return v.s.CreateStore(ctx, store)
}
func (v storeView) Get(ctx context.Context, id uuid.UUID) (*model.Store, error) {
	return v.s.GetStore(ctx, id)
}
func (v storeView) FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]model.Store, error) {
	return v.s.FindStoresByOrganization(ctx, orgID)
}

type locationView struct{ s *Store }

func (v locationView) Create(ctx context.Context, loc *model.InventoryLocation) error {
	return v.s.CreateLocation(ctx, loc)
}
func (v locationView) Get(ctx context.Context, id uuid.UUID) (*model.InventoryLocation, error) {
	return v.s.GetLocation(ctx, id)
}
func (v locationView) FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]model.InventoryLocation, error) {
	return v.s.FindLocationsByOrganization(ctx, orgID)
}
func (v locationView) Default(ctx context.Context, orgID uuid.UUID) (*model.InventoryLocation, error) {
	return v.s.Default(ctx, orgID)
}
func (v locationView) SetDefault(ctx context.Context, orgID, locationID uuid.UUID) error {
	return v.s.SetDefault(ctx, orgID, locationID)
}
