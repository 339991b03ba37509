package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PlannedConsumption is the planned deduction from a single receipt line
type PlannedConsumption struct {
	ReceiptLineID  uuid.UUID
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	TotalCost      decimal.Decimal
	RemainderAfter decimal.Decimal
	FullyConsumed  bool
}

// AllocationPlan is the complete result of planning an allocation.
// Planning is pure: it never mutates the lines it was given.
type AllocationPlan struct {
	Consumptions        []PlannedConsumption
	TotalQuantity       decimal.Decimal
	TotalCost           decimal.Decimal
	WeightedAverageCost decimal.Decimal
	LinesConsumed       []uuid.UUID
	LinesPartial        []uuid.UUID
}

// FIFOAllocator plans allocations against receipt lines in strict FIFO
// order: oldest receipt timestamp first, storage sequence as tie-break.
type FIFOAllocator struct{}

// NewFIFOAllocator creates a new FIFO allocator
func NewFIFOAllocator() *FIFOAllocator {
	return &FIFOAllocator{}
}

// Plan computes which lines to consume and how much from each.
// Allocation is all-or-nothing: if the requested quantity exceeds the
// total remainder of the given lines, an InsufficientStockError is
// returned and no plan is produced.
func (a *FIFOAllocator) Plan(requested decimal.Decimal, lines []ReceiptLine) (*AllocationPlan, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Requested quantity must be positive")
	}

	candidates := filterAllocatable(lines)
	available := totalRemainder(candidates)
	if available.LessThan(requested) {
		return nil, NewInsufficientStockError(requested, available)
	}

	sorted := make([]ReceiptLine, len(candidates))
	copy(sorted, candidates)
	SortFIFO(sorted)

	consumptions := make([]PlannedConsumption, 0)
	linesConsumed := make([]uuid.UUID, 0)
	linesPartial := make([]uuid.UUID, 0)
	remaining := requested
	totalCost := decimal.Zero

	for _, line := range sorted {
		if remaining.IsZero() {
			break
		}

		take := decimal.Min(remaining, line.Remainder)
		remainderAfter := line.Remainder.Sub(take)
		fullyConsumed := remainderAfter.IsZero()
		lineCost := take.Mul(line.UnitCost)

		consumptions = append(consumptions, PlannedConsumption{
			ReceiptLineID:  line.ID,
			Quantity:       take,
			UnitCost:       line.UnitCost,
			TotalCost:      lineCost,
			RemainderAfter: remainderAfter,
			FullyConsumed:  fullyConsumed,
		})

		totalCost = totalCost.Add(lineCost)
		remaining = remaining.Sub(take)

		if fullyConsumed {
			linesConsumed = append(linesConsumed, line.ID)
		} else {
			linesPartial = append(linesPartial, line.ID)
		}
	}

	weightedAvgCost := totalCost.Div(requested).Round(4)

	return &AllocationPlan{
		Consumptions:        consumptions,
		TotalQuantity:       requested,
		TotalCost:           totalCost,
		WeightedAverageCost: weightedAvgCost,
		LinesConsumed:       linesConsumed,
		LinesPartial:        linesPartial,
	}, nil
}

// SortFIFO sorts lines in place by receipt timestamp, breaking ties with
// the storage sequence so concurrent receipts order deterministically
func SortFIFO(lines []ReceiptLine) {
	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].ReceivedAt.Equal(lines[j].ReceivedAt) {
			return lines[i].ReceivedAt.Before(lines[j].ReceivedAt)
		}
		return lines[i].Sequence < lines[j].Sequence
	})
}

// filterAllocatable returns active lines with stock left
func filterAllocatable(lines []ReceiptLine) []ReceiptLine {
	out := make([]ReceiptLine, 0, len(lines))
	for _, line := range lines {
		if line.IsActive() && line.HasRemainder() {
			out = append(out, line)
		}
	}
	return out
}

// totalRemainder sums the remainders of the given lines
func totalRemainder(lines []ReceiptLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Remainder)
	}
	return total
}

// AvailabilityReport summarizes whether a requested quantity can be
// served from the current ledger state without performing writes
type AvailabilityReport struct {
	ProductID      uuid.UUID       `json:"product_id"`
	Requested      decimal.Decimal `json:"requested"`
	TotalAvailable decimal.Decimal `json:"total_available"`
	Available      bool            `json:"available"`
	Shortage       decimal.Decimal `json:"shortage"`
	SourceCount    int             `json:"source_count"`
	OldestReceipt  *time.Time      `json:"oldest_receipt,omitempty"`
	NewestReceipt  *time.Time      `json:"newest_receipt,omitempty"`
}

// BuildAvailabilityReport computes an availability report for a product
func BuildAvailabilityReport(productID uuid.UUID, requested decimal.Decimal, lines []ReceiptLine) *AvailabilityReport {
	candidates := filterAllocatable(lines)
	total := totalRemainder(candidates)

	report := &AvailabilityReport{
		ProductID:      productID,
		Requested:      requested,
		TotalAvailable: total,
		Available:      total.GreaterThanOrEqual(requested),
		Shortage:       decimal.Zero,
		SourceCount:    len(candidates),
	}
	if !report.Available {
		report.Shortage = requested.Sub(total)
	}
	for i := range candidates {
		receivedAt := candidates[i].ReceivedAt
		if report.OldestReceipt == nil || receivedAt.Before(*report.OldestReceipt) {
			t := receivedAt
			report.OldestReceipt = &t
		}
		if report.NewestReceipt == nil || receivedAt.After(*report.NewestReceipt) {
			t := receivedAt
			report.NewestReceipt = &t
		}
	}
	return report
}

// CostSummary aggregates the cost structure of a product's remaining stock
type CostSummary struct {
	ProductID           uuid.UUID       `json:"product_id"`
	TotalQuantity       decimal.Decimal `json:"total_quantity"`
	TotalCost           decimal.Decimal `json:"total_cost"`
	WeightedAverageCost decimal.Decimal `json:"weighted_average_cost"`
	OldestUnitCost      decimal.Decimal `json:"oldest_unit_cost"`
	NewestUnitCost      decimal.Decimal `json:"newest_unit_cost"`
	LineCount           int             `json:"line_count"`
}

// BuildCostSummary computes the cost summary over a product's active lines
func BuildCostSummary(productID uuid.UUID, lines []ReceiptLine) *CostSummary {
	candidates := filterAllocatable(lines)
	summary := &CostSummary{
		ProductID:           productID,
		TotalQuantity:       decimal.Zero,
		TotalCost:           decimal.Zero,
		WeightedAverageCost: decimal.Zero,
		OldestUnitCost:      decimal.Zero,
		NewestUnitCost:      decimal.Zero,
		LineCount:           len(candidates),
	}
	if len(candidates) == 0 {
		return summary
	}

	sorted := make([]ReceiptLine, len(candidates))
	copy(sorted, candidates)
	SortFIFO(sorted)

	for _, line := range sorted {
		summary.TotalQuantity = summary.TotalQuantity.Add(line.Remainder)
		summary.TotalCost = summary.TotalCost.Add(line.RemainderValue())
	}
	if summary.TotalQuantity.GreaterThan(decimal.Zero) {
		summary.WeightedAverageCost = summary.TotalCost.Div(summary.TotalQuantity).Round(4)
	}
	summary.OldestUnitCost = sorted[0].UnitCost
	summary.NewestUnitCost = sorted[len(sorted)-1].UnitCost
	return summary
}
