package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
	"go-stocksync/internal/platform"
)

func TestPushInventorySendsAvailability(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()

	variantID := uuid.New()
	f.addMapping(variantID, "prod-1", "Blue Mug", decimal.NewFromInt(12))
	f.setStock(variantID, 10)
	_, err := f.reservations.ReserveStock(ctx, f.orgID, variantID, f.loc.ID, 3, "order-1", "test")
	require.NoError(t, err)

	job, err := f.sync.PushInventory(ctx, f.store.ID, nil)
	require.NoError(t, err)

	final, err := f.sync.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, final.Status)
	assert.Equal(t, 1, final.ItemsTotal)
	assert.Equal(t, 1, final.ItemsProcessed)
	assert.Equal(t, 0, final.ItemsFailed)
	require.NotNil(t, final.CompletedAt)

	// Availability, not on-hand, is what the platform sees.
	require.Len(t, f.adapter.updatedItems, 1)
	assert.Equal(t, "prod-1", f.adapter.updatedItems[0].PlatformProductID)
	assert.Equal(t, 7, f.adapter.updatedItems[0].Quantity)

	m, err := f.db.FindByPlatformID(ctx, f.store.ID, "prod-1", nil)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusSynced, m.SyncStatus)
	assert.NotNil(t, m.LastSyncAt)
}

func TestPushInventoryRespectsBatchSize(t *testing.T) {
	f := newSyncFixture(SyncConfig{Concurrency: 1})
	f.adapter.caps.MaxBatchSize = 2
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		variantID := uuid.New()
		f.addMapping(variantID, "prod-"+uuid.NewString()[:8], "Item", decimal.NewFromInt(5))
		f.setStock(variantID, i+1)
	}

	job, err := f.sync.PushInventory(ctx, f.store.ID, nil)
	require.NoError(t, err)

	final, err := f.sync.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, final.Status)
	assert.Equal(t, 5, final.ItemsProcessed)
	assert.Equal(t, 3, f.adapter.updateCalls) // 2+2+1
}

func TestPushInventoryFiltersByVariantAndConflict(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()

	wanted := uuid.New()
	f.addMapping(wanted, "prod-wanted", "Wanted", decimal.NewFromInt(5))
	f.setStock(wanted, 3)

	other := uuid.New()
	f.addMapping(other, "prod-other", "Other", decimal.NewFromInt(5))
	f.setStock(other, 8)

	conflicted := uuid.New()
	m := f.addMapping(conflicted, "prod-conflicted", "Conflicted", decimal.NewFromInt(5))
	m.SyncStatus = model.SyncStatusError
	m.ConflictDetails = model.JSON{"remote": model.JSON{"price": "9"}}
	require.NoError(t, f.db.UpdateMapping(ctx, m))
	f.setStock(conflicted, 8)

	job, err := f.sync.PushInventory(ctx, f.store.ID, []uuid.UUID{wanted, conflicted})
	require.NoError(t, err)

	final, err := f.sync.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, final.Status)
	// The conflicted mapping is not pushable, so only one update goes out.
	require.Len(t, f.adapter.updatedItems, 1)
	assert.Equal(t, "prod-wanted", f.adapter.updatedItems[0].PlatformProductID)
}

func TestPushInventoryRetriesTransientFailures(t *testing.T) {
	f := newSyncFixture(SyncConfig{MaxRetries: 3})
	f.adapter.failCalls = 2
	ctx := context.Background()

	variantID := uuid.New()
	f.addMapping(variantID, "prod-1", "Item", decimal.NewFromInt(5))
	f.setStock(variantID, 4)

	job, err := f.sync.PushInventory(ctx, f.store.ID, nil)
	require.NoError(t, err)

	final, err := f.sync.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, final.Status)
	assert.Equal(t, 2, final.RetryCount)
	assert.Equal(t, 1, final.ItemsProcessed)
}

func TestPushInventoryFailsAfterRetryBudget(t *testing.T) {
	f := newSyncFixture(SyncConfig{MaxRetries: 2})
	f.adapter.failCalls = 100
	ctx := context.Background()

	variantID := uuid.New()
	f.addMapping(variantID, "prod-1", "Item", decimal.NewFromInt(5))
	f.setStock(variantID, 4)

	job, err := f.sync.PushInventory(ctx, f.store.ID, nil)
	require.NoError(t, err)

	final, err := f.sync.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, final.Status)
	assert.NotEmpty(t, final.ErrorMessage)
	require.NotNil(t, final.CompletedAt)
}

func TestPushInventoryFailureThreshold(t *testing.T) {
	run := func(threshold float64) model.SyncJobStatus {
		f := newSyncFixture(SyncConfig{FailureThreshold: threshold})
		ctx := context.Background()
		for i := 0; i < 9; i++ {
			variantID := uuid.New()
			f.addMapping(variantID, "prod-ok-"+uuid.NewString()[:8], "Item", decimal.NewFromInt(5))
			f.setStock(variantID, 1)
		}
		bad := uuid.New()
		f.addMapping(bad, "prod-bad", "Item", decimal.NewFromInt(5))
		f.setStock(bad, 1)
		f.adapter.reject = map[string]string{"prod-bad": "listing archived"}

		job, err := f.sync.PushInventory(ctx, f.store.ID, nil)
		require.NoError(t, err)
		final, err := f.sync.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 9, final.ItemsProcessed)
		assert.Equal(t, 1, final.ItemsFailed)
		return final.Status
	}

	// 1 of 10 failed: at a 10% threshold the job fails, at 50% it completes.
	assert.Equal(t, model.JobFailed, run(0.1))
	assert.Equal(t, model.JobCompleted, run(0.5))
}

func TestOnlyOneActiveJobPerStoreAndType(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()

	running := &model.SyncJob{
		OrganizationID: f.orgID,
		StoreID:        f.store.ID,
		JobType:        model.JobInventoryPush,
		Status:         model.JobRunning,
	}
	require.NoError(t, f.db.CreateJob(ctx, running))

	_, err := f.sync.PushInventory(ctx, f.store.ID, nil)
	var ce *apperr.ConflictError
	require.ErrorAs(t, err, &ce)

	// A different job type is unaffected.
	_, err = f.sync.FetchAndReconcileProducts(ctx, f.store.ID)
	require.NoError(t, err)
}

func TestLeaseDeniedMarksJobFailedAndFreesLane(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()

	variantID := uuid.New()
	f.addMapping(variantID, "prod-1", "Item", decimal.NewFromInt(5))
	f.setStock(variantID, 4)

	// Another worker instance holds this store's push lease.
	contested := NewSyncService(f.db.Stores(), f.db.Mappings(), f.db.Jobs(), f.db.Items(),
		f.db.Locations(), f.db.Reservations(), f.reservations, platform.NewRegistry(f.adapter),
		denyLocker{}, inlineRunner{}, SyncConfig{InitialBackoff: time.Millisecond}, testLog)

	job, err := contested.PushInventory(ctx, f.store.ID, nil)
	require.NoError(t, err)

	// The unclaimable job must not linger as pending.
	final, err := contested.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, final.Status)
	assert.NotEmpty(t, final.ErrorMessage)
	require.NotNil(t, final.CompletedAt)

	// The lane is free again: a fresh start is not rejected as a duplicate.
	next, err := f.sync.PushInventory(ctx, f.store.ID, nil)
	require.NoError(t, err)
	final, err = f.sync.GetJob(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, final.Status)
}

func TestPushInventoryRejectsInactiveStore(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()

	f.store.IsActive = false
	require.NoError(t, f.db.CreateStore(ctx, f.store))

	_, err := f.sync.PushInventory(ctx, f.store.ID, nil)
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestReconcileDiscoversNewProducts(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()

	f.adapter.productPages = [][]platform.RemoteProduct{{
		{PlatformProductID: "prod-new", SKU: "SKU-1", Name: "Red Cap", Price: decimal.NewFromInt(19), Stock: 40},
	}}

	job, err := f.sync.FetchAndReconcileProducts(ctx, f.store.ID)
	require.NoError(t, err)

	final, err := f.sync.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, final.Status)
	assert.Equal(t, 1, final.ItemsProcessed)

	m, err := f.db.FindByPlatformID(ctx, f.store.ID, "prod-new", nil)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, uuid.Nil, m.ProductVariantID) // discovered, not yet linked
	assert.Equal(t, "Red Cap", m.Title)
	assert.Equal(t, model.SyncStatusPending, m.SyncStatus)
}

func TestReconcileFlagsDivergenceWithoutOverwriting(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()

	variantID := uuid.New()
	f.addMapping(variantID, "prod-1", "Blue Mug", decimal.NewFromInt(12))
	f.setStock(variantID, 10)

	f.adapter.productPages = [][]platform.RemoteProduct{{
		{PlatformProductID: "prod-1", Name: "Blue Mug (Sale)", Price: decimal.NewFromInt(9), Stock: 4},
	}}

	job, err := f.sync.FetchAndReconcileProducts(ctx, f.store.ID)
	require.NoError(t, err)

	final, err := f.sync.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, final.Status)

	m, err := f.db.FindByPlatformID(ctx, f.store.ID, "prod-1", nil)
	require.NoError(t, err)
	assert.True(t, m.HasConflict())
	// Local values stay put; the divergence is only recorded.
	assert.Equal(t, "Blue Mug", m.Title)
	assert.True(t, m.Price.Equal(decimal.NewFromInt(12)))

	remote := m.ConflictDetails["remote"].(model.JSON)
	assert.Equal(t, "Blue Mug (Sale)", remote["name"])
	local := m.ConflictDetails["local"].(model.JSON)
	assert.Equal(t, 10, local["stock"])

	available, err := f.ledger.GetAvailableStock(ctx, variantID, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, available)

	conflicts, err := f.sync.ListConflicts(ctx, f.store.ID)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
}

func TestReconcileMatchingProductMarksSynced(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()

	variantID := uuid.New()
	f.addMapping(variantID, "prod-1", "Blue Mug", decimal.NewFromInt(12))
	f.setStock(variantID, 10)

	f.adapter.productPages = [][]platform.RemoteProduct{{
		{PlatformProductID: "prod-1", Name: "Blue Mug", Price: decimal.NewFromInt(12), Stock: 10},
	}}

	_, err := f.sync.FetchAndReconcileProducts(ctx, f.store.ID)
	require.NoError(t, err)

	m, err := f.db.FindByPlatformID(ctx, f.store.ID, "prod-1", nil)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusSynced, m.SyncStatus)
	assert.False(t, m.HasConflict())
}

func TestReconcilePagesThroughListing(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()

	f.adapter.productPages = [][]platform.RemoteProduct{
		{{PlatformProductID: "p1", Name: "A", Price: decimal.NewFromInt(1)}},
		{{PlatformProductID: "p2", Name: "B", Price: decimal.NewFromInt(2)}},
		{{PlatformProductID: "p3", Name: "C", Price: decimal.NewFromInt(3)}},
	}

	job, err := f.sync.FetchAndReconcileProducts(ctx, f.store.ID)
	require.NoError(t, err)

	final, err := f.sync.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, final.ItemsTotal)
	assert.Equal(t, 3, final.ItemsProcessed)
}

func TestFetchOrdersReservesMappedLines(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()

	variantID := uuid.New()
	f.addMapping(variantID, "prod-1", "Blue Mug", decimal.NewFromInt(12))
	f.setStock(variantID, 10)

	f.adapter.orders = []platform.RemoteOrder{{
		PlatformOrderID: "ext-order-1",
		Lines: []platform.RemoteOrderLine{
			{PlatformProductID: "prod-1", Quantity: 2},
			{PlatformProductID: "prod-unknown", Quantity: 1},
		},
		PlacedAt: time.Now(),
	}}

	job, err := f.sync.FetchOrders(ctx, f.store.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	final, err := f.sync.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, final.ItemsTotal)
	assert.Equal(t, 1, final.ItemsProcessed)
	assert.Equal(t, 1, final.ItemsFailed) // the unmapped line

	available, err := f.ledger.GetAvailableStock(ctx, variantID, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, available)

	logs, err := f.sync.GetJobLogs(ctx, job.ID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
}

func TestFetchOrdersSkipsAlreadyReservedOrders(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()

	variantID := uuid.New()
	f.addMapping(variantID, "prod-1", "Blue Mug", decimal.NewFromInt(12))
	f.setStock(variantID, 10)

	f.adapter.orders = []platform.RemoteOrder{{
		PlatformOrderID: "ext-order-1",
		Lines:           []platform.RemoteOrderLine{{PlatformProductID: "prod-1", Quantity: 2}},
		PlacedAt:        time.Now(),
	}}

	_, err := f.sync.FetchOrders(ctx, f.store.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = f.sync.FetchOrders(ctx, f.store.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	// Second fetch must not double-reserve.
	available, err := f.ledger.GetAvailableStock(ctx, variantID, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, available)
}

func TestFetchOrdersFailsLinesWhenReservationLookupErrors(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()

	variantID := uuid.New()
	f.addMapping(variantID, "prod-1", "Blue Mug", decimal.NewFromInt(12))
	f.setStock(variantID, 10)

	f.adapter.orders = []platform.RemoteOrder{{
		PlatformOrderID: "ext-order-1",
		Lines:           []platform.RemoteOrderLine{{PlatformProductID: "prod-1", Quantity: 2}},
		PlacedAt:        time.Now(),
	}}

	broken := NewSyncService(f.db.Stores(), f.db.Mappings(), f.db.Jobs(), f.db.Items(),
		f.db.Locations(), failingOrderLookup{f.db.Reservations()}, f.reservations,
		platform.NewRegistry(f.adapter), testLocker{}, inlineRunner{},
		SyncConfig{InitialBackoff: time.Millisecond}, testLog)

	job, err := broken.FetchOrders(ctx, f.store.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	final, err := broken.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, final.Status)
	assert.Equal(t, 1, final.ItemsFailed)
	assert.Equal(t, 0, final.ItemsProcessed)

	// No reservation goes out for an order whose state could not be checked.
	available, err := f.ledger.GetAvailableStock(ctx, variantID, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, available)
}
