package ledger

import (
	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypeStockReceived           = "ledger.stock_received"
	EventTypeStockAllocated          = "ledger.stock_allocated"
	EventTypeAllocationReversed      = "ledger.allocation_reversed"
	EventTypeAggregateRebuilt        = "ledger.aggregate_rebuilt"
	EventTypeReconciliationCompleted = "ledger.reconciliation_completed"
)

// StockReceivedEvent is raised when a receipt line is appended
type StockReceivedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// NewStockReceivedEvent creates a StockReceivedEvent for a receipt line
func NewStockReceivedEvent(line *ReceiptLine) *StockReceivedEvent {
	return &StockReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReceived, "ReceiptLine", line.ID, line.TenantID),
		ProductID:       line.ProductID,
		Quantity:        line.Received,
		UnitCost:        line.UnitCost,
	}
}

// StockAllocatedEvent is raised when an allocation trail is applied
type StockAllocatedEvent struct {
	shared.BaseDomainEvent
	ProductID  uuid.UUID       `json:"product_id"`
	SaleLineID string          `json:"sale_line_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	LineCount  int             `json:"line_count"`
}

// NewStockAllocatedEvent creates a StockAllocatedEvent for a trail
func NewStockAllocatedEvent(trail *AllocationTrail) *StockAllocatedEvent {
	return &StockAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockAllocated, "AllocationTrail", trail.ID, trail.TenantID),
		ProductID:       trail.ProductID,
		SaleLineID:      trail.SaleLineID,
		Quantity:        trail.Requested,
		TotalCost:       trail.TotalCost,
		LineCount:       len(trail.Entries),
	}
}

// AllocationReversedEvent is raised when a trail is reversed
type AllocationReversedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// NewAllocationReversedEvent creates an AllocationReversedEvent for a trail
func NewAllocationReversedEvent(trail *AllocationTrail) *AllocationReversedEvent {
	return &AllocationReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationReversed, "AllocationTrail", trail.ID, trail.TenantID),
		ProductID:       trail.ProductID,
		Quantity:        trail.Requested,
	}
}

// AggregateRebuiltEvent is raised when an aggregate is recomputed from
// the ledger and its cached quantity changed
type AggregateRebuiltEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID       `json:"product_id"`
	Before    decimal.Decimal `json:"before"`
	After     decimal.Decimal `json:"after"`
	Delta     decimal.Decimal `json:"delta"`
}

// NewAggregateRebuiltEvent creates an AggregateRebuiltEvent
func NewAggregateRebuiltEvent(agg *StockAggregate, before, delta decimal.Decimal) *AggregateRebuiltEvent {
	return &AggregateRebuiltEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAggregateRebuilt, "StockAggregate", agg.ID, agg.TenantID),
		ProductID:       agg.ProductID,
		Before:          before,
		After:           agg.Quantity,
		Delta:           delta,
	}
}

// ReconciliationCompletedEvent is raised after an audit run finishes
type ReconciliationCompletedEvent struct {
	shared.BaseDomainEvent
	InvalidLines         int `json:"invalid_lines"`
	TrailMismatches      int `json:"trail_mismatches"`
	AggregateCorrections int `json:"aggregate_corrections"`
}

// NewReconciliationCompletedEvent creates a ReconciliationCompletedEvent
func NewReconciliationCompletedEvent(tenantID uuid.UUID, invalidLines, trailMismatches, aggregateCorrections int) *ReconciliationCompletedEvent {
	return &ReconciliationCompletedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypeReconciliationCompleted, "Reconciliation", uuid.New(), tenantID),
		InvalidLines:         invalidLines,
		TrailMismatches:      trailMismatches,
		AggregateCorrections: aggregateCorrections,
	}
}
