package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
	"go-stocksync/internal/platform"
	"go-stocksync/internal/repository"
)

// Runner executes job bodies asynchronously. The worker pool implements it;
// tests swap in an inline runner for determinism.
type Runner interface {
	Go(fn func())
}

// SyncConfig carries the orchestrator tunables. Platform limits (batch size,
// page size, pacing) are NOT here — adapters declare those themselves.
type SyncConfig struct {
	// MaxRetries bounds retries of one adapter call before the job fails.
	MaxRetries int
	// InitialBackoff seeds the exponential backoff between retries.
	InitialBackoff time.Duration
	// Concurrency bounds parallel batch calls within one job.
	Concurrency int
	// FailureThreshold is the failed/total ratio at or above which a finished
	// job is marked failed instead of completed.
	FailureThreshold float64
	// ClaimTTL is the lease duration protecting a running job across worker
	// instances.
	ClaimTTL time.Duration
}

func (c SyncConfig) withDefaults() SyncConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 0.1
	}
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = 10 * time.Minute
	}
	return c
}

type SyncService interface {
	// PushInventory pushes current availability for the given variants (all
	// pushable mappings when variantIDs is empty) to the store's platform.
	// Returns the created job immediately; the work runs in the background.
	PushInventory(ctx context.Context, storeID uuid.UUID, variantIDs []uuid.UUID) (*model.SyncJob, error)
	// FetchAndReconcileProducts pages the remote product listing, creating
	// mappings for unknown products and flagging conflicts where tracked
	// fields diverged. Never silently overwrites local state.
	FetchAndReconcileProducts(ctx context.Context, storeID uuid.UUID) (*model.SyncJob, error)
	// FetchOrders pulls remote orders placed since the given time and places
	// stock reservations for their mapped lines.
	FetchOrders(ctx context.Context, storeID uuid.UUID, since time.Time) (*model.SyncJob, error)

	GetJob(ctx context.Context, id uuid.UUID) (*model.SyncJob, error)
	GetJobLogs(ctx context.Context, id uuid.UUID) ([]model.SyncLog, error)
	ListConflicts(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error)
}

// Locker matches lock.Locker; redeclared here so the service depends on its
// own port, not the infrastructure package.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type syncService struct {
	stores       repository.StoreRepository
	mappings     repository.MappingRepository
	jobs         repository.SyncJobRepository
	items        repository.ItemStore
	locations    repository.LocationRepository
	resRepo      repository.ReservationRepository
	reservations ReservationService
	registry     *platform.Registry
	locker       Locker
	runner       Runner
	cfg          SyncConfig
	now          func() time.Time
	log          zerolog.Logger
}

func NewSyncService(
	stores repository.StoreRepository,
	mappings repository.MappingRepository,
	jobs repository.SyncJobRepository,
	items repository.ItemStore,
	locations repository.LocationRepository,
	resRepo repository.ReservationRepository,
	reservations ReservationService,
	registry *platform.Registry,
	locker Locker,
	runner Runner,
	cfg SyncConfig,
	log zerolog.Logger,
) SyncService {
	return &syncService{
		stores:       stores,
		mappings:     mappings,
		jobs:         jobs,
		items:        items,
		locations:    locations,
		resRepo:      resRepo,
		reservations: reservations,
		registry:     registry,
		locker:       locker,
		runner:       runner,
		cfg:          cfg.withDefaults(),
		now:          time.Now,
		log:          log,
	}
}

// prepare resolves the store and adapter and enforces the one-active-job
// rule. A duplicate start is rejected, never queued silently.
func (s *syncService) prepare(ctx context.Context, storeID uuid.UUID, jobType model.SyncJobType) (*model.Store, platform.Adapter, error) {
	store, err := s.stores.Get(ctx, storeID)
	if err != nil {
		return nil, nil, err
	}
	if !store.IsActive {
		return nil, nil, apperr.Validation("store", "store is not active")
	}
	adapter, err := s.registry.Resolve(store.Platform)
	if err != nil {
		return nil, nil, err
	}
	active, err := s.jobs.HasActive(ctx, storeID, jobType)
	if err != nil {
		return nil, nil, err
	}
	if active {
		return nil, nil, apperr.Conflict(fmt.Sprintf("a %s job is already active for this store", jobType))
	}
	return store, adapter, nil
}

// claim takes both the database claim (pending → running) and the
// cross-instance lease. Exactly one worker passes. A job that cannot be
// claimed is marked failed so its (store, type) lane frees up; a pending job
// left behind would block every future start.
func (s *syncService) claim(ctx context.Context, job *model.SyncJob) (func(), bool) {
	key := fmt.Sprintf("sync:%s:%s", job.StoreID, job.JobType)
	release, ok, err := s.locker.Acquire(ctx, key, s.cfg.ClaimTTL)
	if err != nil {
		s.fail(ctx, job, fmt.Errorf("job lease: %w", err))
		return nil, false
	}
	if !ok {
		s.fail(ctx, job, errors.New("job lease held by another worker"))
		return nil, false
	}
	claimed, err := s.jobs.Claim(ctx, job.ID, s.now())
	if err != nil {
		release()
		s.fail(ctx, job, fmt.Errorf("job claim: %w", err))
		return nil, false
	}
	if !claimed {
		// No longer pending: another worker already owns it.
		release()
		return nil, false
	}
	job.Status = model.JobRunning
	return release, true
}

func (s *syncService) finish(ctx context.Context, job *model.SyncJob) {
	now := s.now()
	job.CompletedAt = &now
	if job.ItemsTotal > 0 && float64(job.ItemsFailed)/float64(job.ItemsTotal) >= s.cfg.FailureThreshold {
		job.Status = model.JobFailed
		if job.ErrorMessage == "" {
			job.ErrorMessage = fmt.Sprintf("%d of %d items failed", job.ItemsFailed, job.ItemsTotal)
		}
	} else {
		job.Status = model.JobCompleted
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("job final update failed")
	}
}

func (s *syncService) fail(ctx context.Context, job *model.SyncJob, cause error) {
	now := s.now()
	job.CompletedAt = &now
	job.Status = model.JobFailed
	job.ErrorMessage = cause.Error()
	s.appendLog(ctx, job.ID, model.LogError, "job failed", model.JSON{"error": cause.Error()})
	if err := s.jobs.Update(ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("job failure update failed")
	}
}

func (s *syncService) appendLog(ctx context.Context, jobID uuid.UUID, level model.SyncLogLevel, msg string, details model.JSON) {
	entry := &model.SyncLog{SyncJobID: jobID, Level: level, Message: msg, Details: details}
	if err := s.jobs.AppendLog(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("job_id", jobID.String()).Msg("sync log append failed")
	}
}

// withRetry runs one adapter call under the exponential backoff policy.
// Only failures the adapter classified as retryable are retried; each retry
// bumps the job's retry counter. Exhaustion returns the last error.
func (s *syncService) withRetry(ctx context.Context, job *model.SyncJob, mu *sync.Mutex, op func(context.Context) error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(s.cfg.InitialBackoff)),
		uint64(s.cfg.MaxRetries),
	), ctx)
	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !apperr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		mu.Lock()
		job.RetryCount++
		mu.Unlock()
		return err
	}, bo)
}

func (s *syncService) callCtx(ctx context.Context, caps platform.Capabilities) (context.Context, context.CancelFunc) {
	timeout := caps.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// --- inventory push ---

type pushUnit struct {
	mapping model.StoreProductMapping
	update  platform.InventoryUpdate
}

func (s *syncService) PushInventory(ctx context.Context, storeID uuid.UUID, variantIDs []uuid.UUID) (*model.SyncJob, error) {
	store, adapter, err := s.prepare(ctx, storeID, model.JobInventoryPush)
	if err != nil {
		return nil, err
	}

	pushable, err := s.mappings.ListPushable(ctx, storeID)
	if err != nil {
		return nil, err
	}
	wanted := make(map[uuid.UUID]bool, len(variantIDs))
	for _, id := range variantIDs {
		wanted[id] = true
	}

	var units []pushUnit
	for _, m := range pushable {
		if m.ProductVariantID == uuid.Nil {
			continue // unlinked remote discovery, nothing local to push
		}
		if len(wanted) > 0 && !wanted[m.ProductVariantID] {
			continue
		}
		qty, err := s.items.SumAvailable(ctx, m.ProductVariantID)
		if err != nil {
			return nil, err
		}
		if qty < 0 {
			qty = 0 // marketplaces reject negative stock
		}
		units = append(units, pushUnit{
			mapping: m,
			update: platform.InventoryUpdate{
				PlatformProductID: m.PlatformProductID,
				PlatformVariantID: m.PlatformVariantID,
				Quantity:          qty,
			},
		})
	}

	job := &model.SyncJob{
		OrganizationID: store.OrganizationID,
		StoreID:        storeID,
		JobType:        model.JobInventoryPush,
		Status:         model.JobPending,
		ItemsTotal:     len(units),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	s.runner.Go(func() { s.runPush(job, store, adapter, units) })
	return job, nil
}

func (s *syncService) runPush(job *model.SyncJob, store *model.Store, adapter platform.Adapter, units []pushUnit) {
	ctx := context.Background()
	release, ok := s.claim(ctx, job)
	if !ok {
		return
	}
	defer release()

	caps := adapter.Capabilities()
	conn, err := s.authenticate(ctx, job, store, adapter)
	if err != nil {
		s.fail(ctx, job, err)
		return
	}

	batchSize := caps.MaxBatchSize
	if batchSize <= 0 {
		batchSize = len(units)
	}
	var batches [][]pushUnit
	for start := 0; start < len(units); start += batchSize {
		end := start + batchSize
		if end > len(units) {
			end = len(units)
		}
		batches = append(batches, units[start:end])
	}

	// A declared pacing interval forces sequential calls; otherwise batches
	// go out with bounded concurrency.
	limit := s.cfg.Concurrency
	if caps.MinRequestInterval > 0 {
		limit = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			updates := make([]platform.InventoryUpdate, len(batch))
			byPlatformID := make(map[string]model.StoreProductMapping, len(batch))
			for i, u := range batch {
				updates[i] = u.update
				byPlatformID[u.update.PlatformProductID] = u.mapping
			}

			var res *platform.UpdateResult
			err := s.withRetry(gctx, job, &mu, func(ctx context.Context) error {
				callCtx, cancel := s.callCtx(ctx, caps)
				defer cancel()
				var callErr error
				res, callErr = adapter.UpdateInventory(callCtx, conn, updates)
				return callErr
			})
			if err != nil {
				if apperr.IsRetryable(err) {
					// Retries exhausted: terminal for the whole job.
					return err
				}
				mu.Lock()
				job.ItemsFailed += len(batch)
				mu.Unlock()
				s.appendLog(ctx, job.ID, model.LogError, "inventory batch rejected", model.JSON{"error": err.Error(), "batch_size": len(batch)})
				return nil
			}

			mu.Lock()
			job.ItemsProcessed += len(res.Succeeded)
			job.ItemsFailed += len(res.Failed)
			mu.Unlock()

			now := s.now()
			for _, pid := range res.Succeeded {
				m := byPlatformID[pid]
				m.SyncStatus = model.SyncStatusSynced
				m.LastSyncAt = &now
				if err := s.mappings.Update(ctx, &m); err != nil {
					s.log.Error().Err(err).Str("mapping_id", m.ID.String()).Msg("mapping sync-status update failed")
				}
			}
			for pid, detail := range res.Failed {
				s.appendLog(ctx, job.ID, model.LogError, "inventory update rejected by platform", model.JSON{
					"platform_product_id": pid,
					"detail":              detail,
				})
			}
			if caps.MinRequestInterval > 0 {
				time.Sleep(caps.MinRequestInterval)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.fail(ctx, job, err)
		return
	}
	s.finish(ctx, job)
}

func (s *syncService) authenticate(ctx context.Context, job *model.SyncJob, store *model.Store, adapter platform.Adapter) (platform.Connection, error) {
	var conn platform.Connection
	var mu sync.Mutex
	err := s.withRetry(ctx, job, &mu, func(ctx context.Context) error {
		callCtx, cancel := s.callCtx(ctx, adapter.Capabilities())
		defer cancel()
		var err error
		conn, err = adapter.Authenticate(callCtx, store.ID.String(), store.Credentials)
		return err
	})
	return conn, err
}

// --- product reconcile ---

func (s *syncService) FetchAndReconcileProducts(ctx context.Context, storeID uuid.UUID) (*model.SyncJob, error) {
	store, adapter, err := s.prepare(ctx, storeID, model.JobProductSync)
	if err != nil {
		return nil, err
	}

	job := &model.SyncJob{
		OrganizationID: store.OrganizationID,
		StoreID:        storeID,
		JobType:        model.JobProductSync,
		Status:         model.JobPending,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	s.runner.Go(func() { s.runReconcile(job, store, adapter) })
	return job, nil
}

func (s *syncService) runReconcile(job *model.SyncJob, store *model.Store, adapter platform.Adapter) {
	ctx := context.Background()
	release, ok := s.claim(ctx, job)
	if !ok {
		return
	}
	defer release()

	caps := adapter.Capabilities()
	conn, err := s.authenticate(ctx, job, store, adapter)
	if err != nil {
		s.fail(ctx, job, err)
		return
	}

	pageSize := caps.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var mu sync.Mutex
	for page := 1; ; page++ {
		var products []platform.RemoteProduct
		var more bool
		err := s.withRetry(ctx, job, &mu, func(ctx context.Context) error {
			callCtx, cancel := s.callCtx(ctx, caps)
			defer cancel()
			var callErr error
			products, more, callErr = adapter.FetchProducts(callCtx, conn, page, pageSize)
			return callErr
		})
		if err != nil {
			s.fail(ctx, job, err)
			return
		}

		job.ItemsTotal += len(products)
		for _, p := range products {
			if err := s.reconcileOne(ctx, job, store, p); err != nil {
				job.ItemsFailed++
				s.appendLog(ctx, job.ID, model.LogError, "product reconcile failed", model.JSON{
					"platform_product_id": p.PlatformProductID,
					"error":               err.Error(),
				})
			} else {
				job.ItemsProcessed++
			}
		}
		if err := s.jobs.Update(ctx, job); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("job progress update failed")
		}
		if !more {
			break
		}
		if caps.MinRequestInterval > 0 {
			time.Sleep(caps.MinRequestInterval)
		}
	}
	s.finish(ctx, job)
}

// reconcileOne applies one remote product: unknown products become new
// (unlinked) mappings, known ones are compared on their tracked fields and
// flagged as conflicts on divergence. Local state is never overwritten here.
func (s *syncService) reconcileOne(ctx context.Context, job *model.SyncJob, store *model.Store, p platform.RemoteProduct) error {
	m, err := s.mappings.FindByPlatformID(ctx, store.ID, p.PlatformProductID, p.PlatformVariantID)
	if err != nil {
		return err
	}

	if m == nil {
		m = &model.StoreProductMapping{
			StoreID:           store.ID,
			PlatformProductID: p.PlatformProductID,
			PlatformVariantID: p.PlatformVariantID,
			PlatformSKU:       p.SKU,
			Title:             p.Name,
			Price:             p.Price,
			SyncStatus:        model.SyncStatusPending,
		}
		if err := s.mappings.Create(ctx, m); err != nil {
			return err
		}
		s.appendLog(ctx, job.ID, model.LogInfo, "remote product discovered", model.JSON{
			"platform_product_id": p.PlatformProductID,
			"sku":                 p.SKU,
		})
		return nil
	}

	localStock := 0
	if m.ProductVariantID != uuid.Nil {
		localStock, err = s.items.SumAvailable(ctx, m.ProductVariantID)
		if err != nil {
			return err
		}
	}

	priceDiffers := !m.Price.Equal(p.Price)
	nameDiffers := m.Title != p.Name
	stockDiffers := m.ProductVariantID != uuid.Nil && localStock != p.Stock

	if !priceDiffers && !nameDiffers && !stockDiffers {
		now := s.now()
		m.SyncStatus = model.SyncStatusSynced
		m.LastSyncAt = &now
		m.ConflictDetails = nil
		return s.mappings.Update(ctx, m)
	}

	m.SyncStatus = model.SyncStatusError
	m.ConflictDetails = model.JSON{
		"detected_at": s.now().Format(time.RFC3339),
		"local": model.JSON{
			"price": m.Price.String(),
			"name":  m.Title,
			"stock": localStock,
		},
		"remote": model.JSON{
			"price": p.Price.String(),
			"name":  p.Name,
			"stock": p.Stock,
		},
	}
	if err := s.mappings.Update(ctx, m); err != nil {
		return err
	}
	s.appendLog(ctx, job.ID, model.LogWarning, "conflict detected", model.JSON{
		"mapping_id":          m.ID.String(),
		"platform_product_id": p.PlatformProductID,
	})
	return nil
}

// --- order fetch ---

func (s *syncService) FetchOrders(ctx context.Context, storeID uuid.UUID, since time.Time) (*model.SyncJob, error) {
	store, adapter, err := s.prepare(ctx, storeID, model.JobOrderFetch)
	if err != nil {
		return nil, err
	}

	job := &model.SyncJob{
		OrganizationID: store.OrganizationID,
		StoreID:        storeID,
		JobType:        model.JobOrderFetch,
		Status:         model.JobPending,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	s.runner.Go(func() { s.runOrderFetch(job, store, adapter, since) })
	return job, nil
}

func (s *syncService) runOrderFetch(job *model.SyncJob, store *model.Store, adapter platform.Adapter, since time.Time) {
	ctx := context.Background()
	release, ok := s.claim(ctx, job)
	if !ok {
		return
	}
	defer release()

	caps := adapter.Capabilities()
	conn, err := s.authenticate(ctx, job, store, adapter)
	if err != nil {
		s.fail(ctx, job, err)
		return
	}

	var mu sync.Mutex
	var orders []platform.RemoteOrder
	err = s.withRetry(ctx, job, &mu, func(ctx context.Context) error {
		callCtx, cancel := s.callCtx(ctx, caps)
		defer cancel()
		var callErr error
		orders, callErr = adapter.FetchOrders(callCtx, conn, since, s.now())
		return callErr
	})
	if err != nil {
		s.fail(ctx, job, err)
		return
	}

	defaultLoc, err := s.locations.Default(ctx, store.OrganizationID)
	if err != nil {
		s.fail(ctx, job, err)
		return
	}

	for _, order := range orders {
		job.ItemsTotal += len(order.Lines)
		existing, err := s.resRepo.FindByOrder(ctx, order.PlatformOrderID)
		if err != nil {
			// Without the lookup we cannot tell whether the order already
			// holds stock; reserving anyway could double-book it.
			job.ItemsFailed += len(order.Lines)
			s.appendLog(ctx, job.ID, model.LogError, "order reservation lookup failed", model.JSON{
				"order_id": order.PlatformOrderID,
				"error":    err.Error(),
			})
			continue
		}
		if len(existing) > 0 {
			// Order already holds stock from an earlier fetch; skip it
			// rather than double-reserving.
			job.ItemsProcessed += len(order.Lines)
			continue
		}
		for _, line := range order.Lines {
			m, err := s.mappings.FindByPlatformID(ctx, store.ID, line.PlatformProductID, line.PlatformVariantID)
			if err != nil || m == nil || m.ProductVariantID == uuid.Nil {
				job.ItemsFailed++
				s.appendLog(ctx, job.ID, model.LogWarning, "order line has no linked variant", model.JSON{
					"order_id":            order.PlatformOrderID,
					"platform_product_id": line.PlatformProductID,
				})
				continue
			}
			_, err = s.reservations.ReserveStock(ctx, store.OrganizationID, m.ProductVariantID, defaultLoc.ID, line.Quantity, order.PlatformOrderID, "order-fetch")
			if err != nil {
				job.ItemsFailed++
				s.appendLog(ctx, job.ID, model.LogError, "order line reservation failed", model.JSON{
					"order_id": order.PlatformOrderID,
					"error":    err.Error(),
				})
				continue
			}
			job.ItemsProcessed++
		}
	}
	s.finish(ctx, job)
}

// --- inspection ---

func (s *syncService) GetJob(ctx context.Context, id uuid.UUID) (*model.SyncJob, error) {
	return s.jobs.Get(ctx, id)
}

func (s *syncService) GetJobLogs(ctx context.Context, id uuid.UUID) ([]model.SyncLog, error) {
	if _, err := s.jobs.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.jobs.Logs(ctx, id)
}

func (s *syncService) ListConflicts(ctx context.Context, storeID uuid.UUID) ([]model.StoreProductMapping, error) {
	return s.mappings.ListConflicted(ctx, storeID)
}
