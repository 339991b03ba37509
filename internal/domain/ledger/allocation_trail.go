package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TrailStatus represents the lifecycle state of an allocation trail
type TrailStatus string

const (
	// TrailStatusApplied means the allocation is in effect
	TrailStatusApplied TrailStatus = "APPLIED"
	// TrailStatusReversed means the allocation has been undone
	TrailStatusReversed TrailStatus = "REVERSED"
)

// IsValid checks if the status is a known value
func (s TrailStatus) IsValid() bool {
	return s == TrailStatusApplied || s == TrailStatusReversed
}

// TrailEntry records how much was taken from one receipt line and at what
// unit cost. Entries are ordered by Position, matching allocation order.
type TrailEntry struct {
	ReceiptLineID uuid.UUID
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	Position      int
}

// Cost returns quantity * unit cost for this entry
func (e TrailEntry) Cost() decimal.Decimal {
	return e.Quantity.Mul(e.UnitCost)
}

// AllocationTrail is the immutable record of one allocation. Its only
// legal mutation after creation is the APPLIED -> REVERSED transition.
type AllocationTrail struct {
	shared.TenantAggregateRoot
	ProductID  uuid.UUID
	SaleLineID string
	Requested  decimal.Decimal
	TotalCost  decimal.Decimal
	Status     TrailStatus
	ReversedAt *time.Time
	Entries    []TrailEntry
}

// NewAllocationTrail creates an applied trail from an allocation plan
func NewAllocationTrail(tenantID, productID uuid.UUID, saleLineID string, plan *AllocationPlan) *AllocationTrail {
	entries := make([]TrailEntry, len(plan.Consumptions))
	for i, c := range plan.Consumptions {
		entries[i] = TrailEntry{
			ReceiptLineID: c.ReceiptLineID,
			Quantity:      c.Quantity,
			UnitCost:      c.UnitCost,
			Position:      i,
		}
	}
	trail := &AllocationTrail{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ProductID:           productID,
		SaleLineID:          saleLineID,
		Requested:           plan.TotalQuantity,
		TotalCost:           plan.TotalCost,
		Status:              TrailStatusApplied,
		Entries:             entries,
	}
	trail.AddDomainEvent(NewStockAllocatedEvent(trail))
	return trail
}

// IsApplied returns true if the allocation is still in effect
func (t *AllocationTrail) IsApplied() bool {
	return t.Status == TrailStatusApplied
}

// EntriesTotal returns the summed quantity of all entries
func (t *AllocationTrail) EntriesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range t.Entries {
		total = total.Add(e.Quantity)
	}
	return total
}

// EntriesCost returns the summed cost of all entries
func (t *AllocationTrail) EntriesCost() decimal.Decimal {
	total := decimal.Zero
	for _, e := range t.Entries {
		total = total.Add(e.Cost())
	}
	return total
}

// IsConsistent reports whether the entry quantities sum to the requested
// quantity, the invariant the reconciliation auditor checks
func (t *AllocationTrail) IsConsistent() bool {
	return t.EntriesTotal().Equal(t.Requested)
}

// MarkReversed performs the APPLIED -> REVERSED transition.
// Reversing an already reversed trail is a stale operation.
func (t *AllocationTrail) MarkReversed() error {
	if t.Status == TrailStatusReversed {
		return NewStaleTrailError(t.ID, "trail is already reversed")
	}
	now := time.Now()
	t.Status = TrailStatusReversed
	t.ReversedAt = &now
	t.UpdatedAt = now
	t.IncrementVersion()
	t.AddDomainEvent(NewAllocationReversedEvent(t))
	return nil
}
