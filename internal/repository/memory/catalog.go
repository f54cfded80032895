package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
)

// --- MappingRepository ---

func (s *Store) GetMapping(ctx context.Context, id uuid.UUID) (*model.StoreProductMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[id]
	if !ok {
		return nil, apperr.NotFound("mapping", id.String())
	}
	cp := *m
	return &cp, nil
}

func (s *Store) FindByPlatformID(ctx context.Context, storeID uuid.UUID, platformProductID string, platformVariantID *string) (*model.StoreProductMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.mappings {
		if m.StoreID != storeID || m.PlatformProductID != platformProductID {
			continue
		}
		if (m.PlatformVariantID == nil) != (platformVariantID == nil) {
			continue
		}
		if platformVariantID != nil && *m.PlatformVariantID != *platformVariantID {
			continue
		}
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) FindByStore(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.StoreProductMapping
	for _, m := range s.mappings {
		if m.StoreID == storeID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *Store) ListPushable(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.StoreProductMapping
	for _, m := range s.mappings {
		if m.StoreID == storeID && m.SyncStatus != model.SyncStatusError {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *Store) ListConflicted(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.StoreProductMapping
	for _, m := range s.mappings {
		if m.StoreID == storeID && m.HasConflict() {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *Store) CreateMapping(ctx context.Context, m *model.StoreProductMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	cp := *m
	s.mappings[m.ID] = &cp
	return nil
}

func (s *Store) UpdateMapping(ctx context.Context, m *model.StoreProductMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mappings[m.ID]; !ok {
		return apperr.NotFound("mapping", m.ID.String())
	}
	m.UpdatedAt = time.Now()
	cp := *m
	s.mappings[m.ID] = &cp
	return nil
}

// --- SyncJobRepository ---

func (s *Store) CreateJob(ctx context.Context, job *model.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.CreatedAt = time.Now()
	if job.Status == "" {
		job.Status = model.JobPending
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*model.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, apperr.NotFound("sync job", id.String())
	}
	cp := *job
	return &cp, nil
}

func (s *Store) HasActive(ctx context.Context, storeID uuid.UUID, jobType model.SyncJobType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.StoreID == storeID && job.JobType == jobType &&
			(job.Status == model.JobPending || job.Status == model.JobRunning) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Claim(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != model.JobPending {
		return false, nil
	}
	job.Status = model.JobRunning
	job.StartedAt = &at
	return true, nil
}

func (s *Store) UpdateJob(ctx context.Context, job *model.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return apperr.NotFound("sync job", job.ID.String())
	}
	job.UpdatedAt = time.Now()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *Store) AppendLog(ctx context.Context, entry *model.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *Store) Logs(ctx context.Context, jobID uuid.UUID) ([]model.SyncLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.SyncLog
	for _, l := range s.logs {
		if l.SyncJobID == jobID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) ListByStore(ctx context.Context, storeID uuid.UUID, limit int) ([]model.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.SyncJob
	for _, job := range s.jobs {
		if job.StoreID == storeID {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- StoreRepository ---

func (s *Store) CreateStore(ctx context.Context, store *model.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if store.ID == uuid.Nil {
		store.ID = uuid.New()
	}
	store.CreatedAt = time.Now()
	cp := *store
	s.stores[store.ID] = &cp
	return nil
}

func (s *Store) GetStore(ctx context.Context, id uuid.UUID) (*model.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	store, ok := s.stores[id]
	if !ok {
		return nil, apperr.NotFound("store", id.String())
	}
	cp := *store
	return &cp, nil
}

func (s *Store) FindStoresByOrganization(ctx context.Context, orgID uuid.UUID) ([]model.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Store
	for _, store := range s.stores {
		if store.OrganizationID == orgID {
			out = append(out, *store)
		}
	}
	return out, nil
}

// --- LocationRepository ---

func (s *Store) CreateLocation(ctx context.Context, loc *model.InventoryLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loc.ID == uuid.Nil {
		loc.ID = uuid.New()
	}
	loc.CreatedAt = time.Now()
	first := true
	for _, existing := range s.locations {
		if existing.OrganizationID == loc.OrganizationID {
			first = false
			break
		}
	}
	if first {
		loc.IsDefault = true
	}
	cp := *loc
	s.locations[loc.ID] = &cp
	return nil
}

func (s *Store) GetLocation(ctx context.Context, id uuid.UUID) (*model.InventoryLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.locations[id]
	if !ok {
		return nil, apperr.NotFound("location", id.String())
	}
	cp := *loc
	return &cp, nil
}

func (s *Store) FindLocationsByOrganization(ctx context.Context, orgID uuid.UUID) ([]model.InventoryLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.InventoryLocation
	for _, loc := range s.locations {
		if loc.OrganizationID == orgID {
			out = append(out, *loc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Default(ctx context.Context, orgID uuid.UUID) (*model.InventoryLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, loc := range s.locations {
		if loc.OrganizationID == orgID && loc.IsDefault {
			cp := *loc
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("default location for organization", orgID.String())
}

func (s *Store) SetDefault(ctx context.Context, orgID, locationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.locations[locationID]
	if !ok || target.OrganizationID != orgID {
		return apperr.NotFound("location", locationID.String())
	}
	for _, loc := range s.locations {
		if loc.OrganizationID == orgID {
			loc.IsDefault = loc.ID == locationID
		}
	}
	return nil
}
