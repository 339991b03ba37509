package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// ReceiveStockRequest represents a request to append a receipt line to the ledger
type ReceiveStockRequest struct {
	ProductID  uuid.UUID       `json:"product_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	UnitCost   decimal.Decimal `json:"unit_cost" binding:"required"`
	ReceivedAt *time.Time      `json:"received_at"`
	Reference  string          `json:"reference"`
}

// ReceiptLineResponse represents a receipt line in API responses
type ReceiptLineResponse struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	Received   decimal.Decimal `json:"received"`
	Remainder  decimal.Decimal `json:"remainder"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ReceivedAt time.Time       `json:"received_at"`
	Sequence   int64           `json:"sequence"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// AllocateRequest represents a request to consume stock against the ledger
type AllocateRequest struct {
	ProductID  uuid.UUID       `json:"product_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	SaleLineID string          `json:"sale_line_id" binding:"required"`
}

// SimulateRequest represents a dry-run allocation request
type SimulateRequest struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
}

// AllocationEntryResponse represents one receipt line's contribution to an allocation
type AllocationEntryResponse struct {
	ReceiptLineID  uuid.UUID       `json:"receipt_line_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	Cost           decimal.Decimal `json:"cost"`
	RemainderAfter decimal.Decimal `json:"remainder_after"`
	Position       int             `json:"position"`
}

// AllocationResponse represents a recorded allocation
type AllocationResponse struct {
	TrailID             uuid.UUID                 `json:"trail_id"`
	ProductID           uuid.UUID                 `json:"product_id"`
	SaleLineID          string                    `json:"sale_line_id"`
	Quantity            decimal.Decimal           `json:"quantity"`
	TotalCost           decimal.Decimal           `json:"total_cost"`
	WeightedAverageCost decimal.Decimal           `json:"weighted_average_cost"`
	Status              string                    `json:"status"`
	Entries             []AllocationEntryResponse `json:"entries"`
	CreatedAt           time.Time                 `json:"created_at"`
	ReversedAt          *time.Time                `json:"reversed_at,omitempty"`
}

// SimulationResponse represents the outcome of a dry-run allocation.
// Nothing is written regardless of feasibility.
type SimulationResponse struct {
	ProductID           uuid.UUID                 `json:"product_id"`
	Requested           decimal.Decimal           `json:"requested"`
	Feasible            bool                      `json:"feasible"`
	Shortage            decimal.Decimal           `json:"shortage"`
	TotalCost           decimal.Decimal           `json:"total_cost"`
	WeightedAverageCost decimal.Decimal           `json:"weighted_average_cost"`
	Entries             []AllocationEntryResponse `json:"entries"`
}

// AvailabilityResponse answers "can we serve this quantity"
type AvailabilityResponse struct {
	ProductID      uuid.UUID       `json:"product_id"`
	Requested      decimal.Decimal `json:"requested"`
	TotalAvailable decimal.Decimal `json:"total_available"`
	Available      bool            `json:"available"`
	Shortage       decimal.Decimal `json:"shortage"`
	SourceCount    int             `json:"source_count"`
	OldestReceipt  *time.Time      `json:"oldest_receipt,omitempty"`
	NewestReceipt  *time.Time      `json:"newest_receipt,omitempty"`
}

// CostInfoResponse summarizes the cost structure of the remaining stock
type CostInfoResponse struct {
	ProductID           uuid.UUID       `json:"product_id"`
	TotalQuantity       decimal.Decimal `json:"total_quantity"`
	TotalCost           decimal.Decimal `json:"total_cost"`
	WeightedAverageCost decimal.Decimal `json:"weighted_average_cost"`
	OldestUnitCost      decimal.Decimal `json:"oldest_unit_cost"`
	NewestUnitCost      decimal.Decimal `json:"newest_unit_cost"`
	LineCount           int             `json:"line_count"`
}

// RebuildResponse reports an aggregate rebuild
type RebuildResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Before    decimal.Decimal `json:"before"`
	After     decimal.Decimal `json:"after"`
	Delta     decimal.Decimal `json:"delta"`
}

// StockLevelResponse represents a cached per-product total
type StockLevelResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UpdatedAt time.Time       `json:"updated_at"`
	Version   int             `json:"version"`
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func toReceiptLineResponse(line *ledger.ReceiptLine) *ReceiptLineResponse {
	return &ReceiptLineResponse{
		ID:         line.ID,
		TenantID:   line.TenantID,
		ProductID:  line.ProductID,
		Received:   line.Received,
		Remainder:  line.Remainder,
		UnitCost:   line.UnitCost,
		ReceivedAt: line.ReceivedAt,
		Sequence:   line.Sequence,
		Status:     string(line.Status),
		CreatedAt:  line.CreatedAt,
		UpdatedAt:  line.UpdatedAt,
	}
}

func toAllocationResponse(trail *ledger.AllocationTrail) *AllocationResponse {
	entries := make([]AllocationEntryResponse, 0, len(trail.Entries))
	for _, entry := range trail.Entries {
		entries = append(entries, AllocationEntryResponse{
			ReceiptLineID: entry.ReceiptLineID,
			Quantity:      entry.Quantity,
			UnitCost:      entry.UnitCost,
			Cost:          entry.Cost(),
			Position:      entry.Position,
		})
	}
	weighted := decimal.Zero
	if trail.Requested.IsPositive() {
		weighted = trail.TotalCost.Div(trail.Requested).Round(4)
	}
	return &AllocationResponse{
		TrailID:             trail.ID,
		ProductID:           trail.ProductID,
		SaleLineID:          trail.SaleLineID,
		Quantity:            trail.Requested,
		TotalCost:           trail.TotalCost,
		WeightedAverageCost: weighted,
		Status:              string(trail.Status),
		Entries:             entries,
		CreatedAt:           trail.CreatedAt,
		ReversedAt:          trail.ReversedAt,
	}
}

func toSimulationResponse(productID uuid.UUID, requested decimal.Decimal, plan *ledger.AllocationPlan) *SimulationResponse {
	entries := make([]AllocationEntryResponse, 0, len(plan.Consumptions))
	for i, c := range plan.Consumptions {
		entries = append(entries, AllocationEntryResponse{
			ReceiptLineID:  c.ReceiptLineID,
			Quantity:       c.Quantity,
			UnitCost:       c.UnitCost,
			Cost:           c.TotalCost,
			RemainderAfter: c.RemainderAfter,
			Position:       i,
		})
	}
	return &SimulationResponse{
		ProductID:           productID,
		Requested:           requested,
		Feasible:            true,
		Shortage:            decimal.Zero,
		TotalCost:           plan.TotalCost,
		WeightedAverageCost: plan.WeightedAverageCost,
		Entries:             entries,
	}
}

func toAvailabilityResponse(report *ledger.AvailabilityReport) *AvailabilityResponse {
	return &AvailabilityResponse{
		ProductID:      report.ProductID,
		Requested:      report.Requested,
		TotalAvailable: report.TotalAvailable,
		Available:      report.Available,
		Shortage:       report.Shortage,
		SourceCount:    report.SourceCount,
		OldestReceipt:  report.OldestReceipt,
		NewestReceipt:  report.NewestReceipt,
	}
}

func toCostInfoResponse(summary *ledger.CostSummary) *CostInfoResponse {
	return &CostInfoResponse{
		ProductID:           summary.ProductID,
		TotalQuantity:       summary.TotalQuantity,
		TotalCost:           summary.TotalCost,
		WeightedAverageCost: summary.WeightedAverageCost,
		OldestUnitCost:      summary.OldestUnitCost,
		NewestUnitCost:      summary.NewestUnitCost,
		LineCount:           summary.LineCount,
	}
}
