// Package platform defines the contract every marketplace integration
// implements. The concrete HTTP clients (pagination plumbing, token refresh,
// field translation) live outside this repository; the sync engine only ever
// talks to this interface.
package platform

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"go-stocksync/internal/model"
)

// Capabilities is declared by each adapter so the orchestrator never
// hard-codes platform limits.
type Capabilities struct {
	// MaxBatchSize is the largest number of inventory updates one
	// UpdateInventory call may carry.
	MaxBatchSize int
	// PageSize is the product listing page size the platform serves.
	PageSize int
	// MinRequestInterval is the pause the platform's rate limit demands
	// between consecutive calls on one connection.
	MinRequestInterval time.Duration
	// RequestTimeout bounds a single call; a timeout counts as a retryable
	// transport error.
	RequestTimeout time.Duration
}

// Connection is an authenticated session with one store. Opaque to the
// engine; adapters put whatever they need behind it.
type Connection interface {
	StoreID() string
}

// RemoteProduct is the platform's view of a listed product, translated by
// the adapter into neutral fields. Attribute blobs stay opaque.
type RemoteProduct struct {
	PlatformProductID string
	PlatformVariantID *string
	SKU               string
	Name              string
	Price             decimal.Decimal
	Stock             int
	Attributes        model.JSON
}

// RemoteOrderLine is one line of a marketplace order, already resolved to
// platform identifiers.
type RemoteOrderLine struct {
	PlatformProductID string
	PlatformVariantID *string
	Quantity          int
}

// RemoteOrder is an order fetched from the platform.
type RemoteOrder struct {
	PlatformOrderID string
	Lines           []RemoteOrderLine
	PlacedAt        time.Time
}

// InventoryUpdate is one unit of an inventory push.
type InventoryUpdate struct {
	PlatformProductID string
	PlatformVariantID *string
	Quantity          int
}

// UpdateResult reports the per-update outcome of one batch call. Failed maps
// platform product IDs to the error detail the platform returned.
type UpdateResult struct {
	Succeeded []string
	Failed    map[string]string
}

// Adapter is the boundary to one marketplace. Implementations classify their
// own failures as retryable or terminal via *apperr.ExternalPlatformError.
type Adapter interface {
	// Name is the stable platform key stores reference ("shopify", "etsy"...).
	Name() string

	Capabilities() Capabilities

	// Authenticate opens a session for the store's stored credentials.
	Authenticate(ctx context.Context, storeID string, credentials model.JSON) (Connection, error)

	// FetchProducts returns one page of the product listing and whether more
	// pages remain. Pages are 1-based.
	FetchProducts(ctx context.Context, conn Connection, page, limit int) ([]RemoteProduct, bool, error)

	// UpdateInventory pushes one batch of stock levels.
	UpdateInventory(ctx context.Context, conn Connection, updates []InventoryUpdate) (*UpdateResult, error)

	// FetchOrders returns orders placed in the half-open range [since, until).
	FetchOrders(ctx context.Context, conn Connection, since, until time.Time) ([]RemoteOrder, error)
}
