package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
	"go-stocksync/internal/platform"
)

// flagConflict runs a reconcile that diverges on every tracked field, leaving
// the mapping flagged with local 10 / remote 4 stock, 12 vs 9 price.
func flagConflict(t *testing.T, f *syncFixture, variantID uuid.UUID) *model.StoreProductMapping {
	t.Helper()
	ctx := context.Background()

	f.addMapping(variantID, "prod-1", "Blue Mug", decimal.NewFromInt(12))
	f.setStock(variantID, 10)

	f.adapter.productPages = [][]platform.RemoteProduct{{
		{PlatformProductID: "prod-1", Name: "Blue Mug (Sale)", Price: decimal.NewFromInt(9), Stock: 4},
	}}
	_, err := f.sync.FetchAndReconcileProducts(ctx, f.store.ID)
	require.NoError(t, err)

	m, err := f.db.FindByPlatformID(ctx, f.store.ID, "prod-1", nil)
	require.NoError(t, err)
	require.True(t, m.HasConflict())
	return m
}

func TestResolveConflictRequiresConflict(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()

	m := f.addMapping(uuid.New(), "prod-1", "Blue Mug", decimal.NewFromInt(12))

	_, err := f.conflicts.ResolveConflict(ctx, m.ID, MasterWins, nil, "test")
	var ce *apperr.ConflictError
	require.ErrorAs(t, err, &ce)
}

func TestResolveConflictMasterWins(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()
	variantID := uuid.New()
	m := flagConflict(t, f, variantID)

	outcome, err := f.conflicts.ResolveConflict(ctx, m.ID, MasterWins, nil, "test")
	require.NoError(t, err)

	// Local values survive and a push toward the platform is scheduled.
	resolved, err := f.db.GetMapping(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blue Mug", resolved.Title)
	assert.True(t, resolved.Price.Equal(decimal.NewFromInt(12)))
	assert.False(t, resolved.HasConflict())

	require.NotNil(t, outcome.PushJob)
	job, err := f.sync.GetJob(ctx, outcome.PushJob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.Status)
	require.Len(t, f.adapter.updatedItems, 1)
	assert.Equal(t, 10, f.adapter.updatedItems[0].Quantity)

	available, err := f.ledger.GetAvailableStock(ctx, variantID, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, available)
}

func TestResolveConflictPlatformWins(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()
	variantID := uuid.New()
	m := flagConflict(t, f, variantID)

	outcome, err := f.conflicts.ResolveConflict(ctx, m.ID, PlatformWins, nil, "ops@example.com")
	require.NoError(t, err)
	assert.Nil(t, outcome.PushJob)

	resolved, err := f.db.GetMapping(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blue Mug (Sale)", resolved.Title)
	assert.True(t, resolved.Price.Equal(decimal.NewFromInt(9)))
	assert.Equal(t, model.SyncStatusSynced, resolved.SyncStatus)
	assert.False(t, resolved.HasConflict())
	assert.Equal(t, string(PlatformWins), resolved.LastResolution["policy"])
	assert.Equal(t, "ops@example.com", resolved.LastResolution["actor"])

	// Local stock was overwritten with the remote snapshot, via the ledger.
	available, err := f.ledger.GetAvailableStock(ctx, variantID, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, available)

	history, err := f.ledger.GetItemHistory(ctx, variantID, f.loc.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, model.TxAdjustment, last.Type)
	assert.Equal(t, -6, last.QuantityChange)
	assert.Equal(t, "ops@example.com", last.Actor)
}

func TestResolveConflictManualRequiresValues(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()
	m := flagConflict(t, f, uuid.New())

	_, err := f.conflicts.ResolveConflict(ctx, m.ID, Manual, nil, "test")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)

	// Still flagged: a failed resolution changes nothing.
	unresolved, err := f.db.GetMapping(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, unresolved.HasConflict())
}

func TestResolveConflictManualAppliesValues(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	ctx := context.Background()
	variantID := uuid.New()
	m := flagConflict(t, f, variantID)

	outcome, err := f.conflicts.ResolveConflict(ctx, m.ID, Manual, model.JSON{
		"price": "10.50",
		"name":  "Blue Mug v2",
		"stock": 6,
	}, "test")
	require.NoError(t, err)

	// The values were applied to both sides, so the mapping is synced right
	// away and the resolution itself is on record.
	resolved, err := f.db.GetMapping(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blue Mug v2", resolved.Title)
	assert.True(t, resolved.Price.Equal(decimal.RequireFromString("10.50")))
	assert.Equal(t, model.SyncStatusSynced, resolved.SyncStatus)
	require.NotNil(t, resolved.LastSyncAt)
	assert.False(t, resolved.HasConflict())

	require.NotNil(t, resolved.LastResolution)
	assert.Equal(t, string(Manual), resolved.LastResolution["policy"])
	assert.Equal(t, "test", resolved.LastResolution["actor"])
	applied := resolved.LastResolution["applied"].(model.JSON)
	assert.Equal(t, "10.50", applied["price"])
	assert.Equal(t, "Blue Mug v2", applied["name"])

	available, err := f.ledger.GetAvailableStock(ctx, variantID, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, available)

	require.NotNil(t, outcome.PushJob)
	job, err := f.sync.GetJob(ctx, outcome.PushJob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.Status)
}

func TestResolveConflictUnknownPolicy(t *testing.T) {
	f := newSyncFixture(SyncConfig{})
	m := flagConflict(t, f, uuid.New())

	_, err := f.conflicts.ResolveConflict(context.Background(), m.ID, ResolutionPolicy("COIN_FLIP"), nil, "test")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
}
