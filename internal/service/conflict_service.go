package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
	"go-stocksync/internal/repository"
)

// ResolutionPolicy selects which side of a detected divergence wins.
type ResolutionPolicy string

const (
	// MasterWins keeps the local values and schedules a push to overwrite
	// the platform.
	MasterWins ResolutionPolicy = "MASTER_WINS"
	// PlatformWins overwrites local state with the remote values frozen at
	// detection time.
	PlatformWins ResolutionPolicy = "PLATFORM_WINS"
	// Manual applies operator-supplied values to both sides.
	Manual ResolutionPolicy = "MANUAL"
)

// ResolutionOutcome reports what resolving one conflict did. PushJob is set
// when the resolution scheduled an inventory push toward the platform.
type ResolutionOutcome struct {
	Mapping *model.StoreProductMapping `json:"mapping"`
	PushJob *model.SyncJob             `json:"push_job,omitempty"`
}

type ConflictService interface {
	// ResolveConflict applies the policy to a mapping flagged during
	// reconciliation. manualValues is required for the MANUAL policy and
	// ignored otherwise; it may carry "price", "name" and "stock" keys. A
	// mapping without an unresolved conflict is rejected.
	ResolveConflict(ctx context.Context, mappingID uuid.UUID, policy ResolutionPolicy, manualValues model.JSON, actor string) (*ResolutionOutcome, error)
}

type conflictService struct {
	mappings  repository.MappingRepository
	stores    repository.StoreRepository
	locations repository.LocationRepository
	ledger    LedgerService
	sync      SyncService
	now       func() time.Time
	log       zerolog.Logger
}

func NewConflictService(
	mappings repository.MappingRepository,
	stores repository.StoreRepository,
	locations repository.LocationRepository,
	ledger LedgerService,
	sync SyncService,
	log zerolog.Logger,
) ConflictService {
	return &conflictService{
		mappings:  mappings,
		stores:    stores,
		locations: locations,
		ledger:    ledger,
		sync:      sync,
		now:       time.Now,
		log:       log,
	}
}

func (s *conflictService) ResolveConflict(ctx context.Context, mappingID uuid.UUID, policy ResolutionPolicy, manualValues model.JSON, actor string) (*ResolutionOutcome, error) {
	m, err := s.mappings.Get(ctx, mappingID)
	if err != nil {
		return nil, err
	}
	if !m.HasConflict() {
		return nil, apperr.Conflict("mapping has no unresolved conflict")
	}

	store, err := s.stores.Get(ctx, m.StoreID)
	if err != nil {
		return nil, err
	}

	switch policy {
	case MasterWins:
		return s.resolveMasterWins(ctx, m, actor)
	case PlatformWins:
		return s.resolvePlatformWins(ctx, store, m, actor)
	case Manual:
		return s.resolveManual(ctx, store, m, manualValues, actor)
	default:
		return nil, apperr.Validation("policy", "unknown resolution policy")
	}
}

// resolveMasterWins keeps local state untouched and lines the mapping up for
// the next push. The push job is scheduled eagerly when none is active.
func (s *conflictService) resolveMasterWins(ctx context.Context, m *model.StoreProductMapping, actor string) (*ResolutionOutcome, error) {
	m.SyncStatus = model.SyncStatusPending
	m.LastResolution = s.resolutionRecord(MasterWins, actor, nil)
	m.ConflictDetails = nil
	if err := s.mappings.Update(ctx, m); err != nil {
		return nil, err
	}

	outcome := &ResolutionOutcome{Mapping: m}
	if m.ProductVariantID != uuid.Nil {
		job, err := s.sync.PushInventory(ctx, m.StoreID, []uuid.UUID{m.ProductVariantID})
		if err != nil {
			// An already-active push will carry the pending mapping anyway.
			s.log.Warn().Err(err).Str("mapping_id", m.ID.String()).Msg("conflict resolution could not schedule push")
		} else {
			outcome.PushJob = job
		}
	}
	s.log.Info().Str("mapping_id", m.ID.String()).Str("policy", string(MasterWins)).Msg("conflict resolved")
	return outcome, nil
}

// resolvePlatformWins applies the remote values frozen in ConflictDetails:
// listing fields onto the mapping, stock onto the store's default location.
func (s *conflictService) resolvePlatformWins(ctx context.Context, store *model.Store, m *model.StoreProductMapping, actor string) (*ResolutionOutcome, error) {
	remote, ok := m.ConflictDetails["remote"].(map[string]interface{})
	if !ok {
		if j, jok := m.ConflictDetails["remote"].(model.JSON); jok {
			remote = j
		} else {
			return nil, apperr.Conflict("conflict details are missing the remote snapshot")
		}
	}

	if price, ok := detailDecimal(remote["price"]); ok {
		m.Price = price
	}
	if name, ok := remote["name"].(string); ok && name != "" {
		m.Title = name
	}
	if stock, ok := detailInt(remote["stock"]); ok && m.ProductVariantID != uuid.Nil {
		loc, err := s.locations.Default(ctx, store.OrganizationID)
		if err != nil {
			return nil, err
		}
		if _, err := s.ledger.UpdateStock(ctx, store.OrganizationID, m.ProductVariantID, loc.ID, stock, actor); err != nil {
			return nil, err
		}
	}

	now := s.now()
	m.SyncStatus = model.SyncStatusSynced
	m.LastSyncAt = &now
	m.LastResolution = s.resolutionRecord(PlatformWins, actor, model.JSON(remote))
	m.ConflictDetails = nil
	if err := s.mappings.Update(ctx, m); err != nil {
		return nil, err
	}
	s.log.Info().Str("mapping_id", m.ID.String()).Str("policy", string(PlatformWins)).Msg("conflict resolved")
	return &ResolutionOutcome{Mapping: m}, nil
}

// resolveManual applies the operator's values to both sides: locally right
// away, and toward the platform via a follow-up push. The applied values are
// persisted in the resolution record. The mapping stays flagged when no
// values are supplied.
func (s *conflictService) resolveManual(ctx context.Context, store *model.Store, m *model.StoreProductMapping, values model.JSON, actor string) (*ResolutionOutcome, error) {
	if len(values) == 0 {
		return nil, apperr.Validation("manual_values", "required for the MANUAL policy")
	}

	if price, ok := detailDecimal(values["price"]); ok {
		m.Price = price
	}
	if name, ok := values["name"].(string); ok && name != "" {
		m.Title = name
	}
	if stock, ok := detailInt(values["stock"]); ok && m.ProductVariantID != uuid.Nil {
		loc, err := s.locations.Default(ctx, store.OrganizationID)
		if err != nil {
			return nil, err
		}
		if _, err := s.ledger.UpdateStock(ctx, store.OrganizationID, m.ProductVariantID, loc.ID, stock, actor); err != nil {
			return nil, err
		}
	}

	now := s.now()
	m.SyncStatus = model.SyncStatusSynced
	m.LastSyncAt = &now
	m.LastResolution = s.resolutionRecord(Manual, actor, values)
	m.ConflictDetails = nil
	if err := s.mappings.Update(ctx, m); err != nil {
		return nil, err
	}

	outcome := &ResolutionOutcome{Mapping: m}
	if m.ProductVariantID != uuid.Nil {
		job, err := s.sync.PushInventory(ctx, m.StoreID, []uuid.UUID{m.ProductVariantID})
		if err != nil {
			s.log.Warn().Err(err).Str("mapping_id", m.ID.String()).Msg("conflict resolution could not schedule push")
		} else {
			outcome.PushJob = job
		}
	}
	s.log.Info().Str("mapping_id", m.ID.String()).Str("policy", string(Manual)).Msg("conflict resolved")
	return outcome, nil
}

// resolutionRecord builds the audit record persisted on the mapping when a
// conflict is resolved.
func (s *conflictService) resolutionRecord(policy ResolutionPolicy, actor string, applied model.JSON) model.JSON {
	rec := model.JSON{
		"policy":      string(policy),
		"actor":       actor,
		"resolved_at": s.now().Format(time.RFC3339),
	}
	if len(applied) > 0 {
		rec["applied"] = applied
	}
	return rec
}

// detailDecimal reads a price out of a conflict snapshot or manual payload.
// Values arrive as strings from our own snapshots and as JSON numbers from
// API clients.
func detailDecimal(v interface{}) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	default:
		return decimal.Decimal{}, false
	}
}

// detailInt reads a stock count, tolerating the float64 that jsonb
// round-trips integers into.
func detailInt(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}
