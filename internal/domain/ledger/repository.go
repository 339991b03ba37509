package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReceiptLineRepository persists receipt lines
type ReceiptLineRepository interface {
	// FindByID finds a receipt line within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ReceiptLine, error)

	// FindActiveByProduct returns all active lines with stock left for a
	// product, ordered by (received_at, sequence)
	FindActiveByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]ReceiptLine, error)

	// FindActiveByProductForUpdate is FindActiveByProduct with row locks
	// acquired in FIFO order. Must be called inside a transaction.
	FindActiveByProductForUpdate(ctx context.Context, tenantID, productID uuid.UUID) ([]ReceiptLine, error)

	// FindByIDsForUpdate loads the given lines with row locks, ordered by
	// (received_at, sequence) for consistent lock ordering
	FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]ReceiptLine, error)

	// FindByProduct returns all lines for a product regardless of status
	FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]ReceiptLine, error)

	// Save creates or updates a receipt line
	Save(ctx context.Context, line *ReceiptLine) error

	// SaveAll persists multiple receipt lines
	SaveAll(ctx context.Context, lines []ReceiptLine) error

	// SumRemainderByProduct computes the ledger truth the aggregate caches
	SumRemainderByProduct(ctx context.Context, tenantID, productID uuid.UUID) (decimal.Decimal, error)

	// SumReceivedValue sums received * unit_cost over a tenant's lines
	SumReceivedValue(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error)

	// SumRemainderValue sums remainder * unit_cost over a tenant's lines
	SumRemainderValue(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error)

	// FindInvalid returns lines violating 0 <= remainder <= received
	FindInvalid(ctx context.Context, tenantID uuid.UUID) ([]ReceiptLine, error)

	// ListProductIDs returns the distinct product IDs in a tenant's ledger
	ListProductIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
}

// AllocationTrailRepository persists allocation trails with their entries
type AllocationTrailRepository interface {
	// FindByID finds a trail, entries included, within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*AllocationTrail, error)

	// FindByIDForUpdate is FindByID with a row lock on the trail.
	// Must be called inside a transaction.
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*AllocationTrail, error)

	// FindBySaleLine returns trails created for a sale line reference
	FindBySaleLine(ctx context.Context, tenantID uuid.UUID, saleLineID string) ([]AllocationTrail, error)

	// FindByTenant returns all trails for a tenant, entries included
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]AllocationTrail, error)

	// CountAppliedReferencingLine counts applied trails holding entries
	// against a receipt line, the guard for retiring the line
	CountAppliedReferencingLine(ctx context.Context, tenantID, lineID uuid.UUID) (int64, error)

	// Save creates or updates a trail together with its entries
	Save(ctx context.Context, trail *AllocationTrail) error

	// SumAppliedCost sums total_cost over a tenant's applied trails
	SumAppliedCost(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error)
}

// StockAggregateRepository persists the denormalized per-product totals
type StockAggregateRepository interface {
	// FindByProduct finds the aggregate row for a product
	FindByProduct(ctx context.Context, tenantID, productID uuid.UUID) (*StockAggregate, error)

	// FindByProductForUpdate is FindByProduct with a row lock.
	// Must be called inside a transaction.
	FindByProductForUpdate(ctx context.Context, tenantID, productID uuid.UUID) (*StockAggregate, error)

	// ListByTenant returns all aggregate rows for a tenant
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]StockAggregate, error)

	// ListTenantIDs returns the distinct tenant IDs holding aggregate rows
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)

	// Save creates or updates an aggregate row
	Save(ctx context.Context, aggregate *StockAggregate) error
}
