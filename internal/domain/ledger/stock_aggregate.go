package ledger

import (
	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StockAggregate is the denormalized per-product total. It always equals
// the sum of remainders over the product's active receipt lines; the
// ledger is the source of truth and the aggregate is recomputable.
type StockAggregate struct {
	shared.TenantAggregateRoot
	ProductID uuid.UUID
	Quantity  decimal.Decimal
}

// NewStockAggregate creates an empty aggregate for a product
func NewStockAggregate(tenantID, productID uuid.UUID) *StockAggregate {
	return &StockAggregate{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ProductID:           productID,
		Quantity:            decimal.Zero,
	}
}

// ApplyDelta adjusts the cached quantity by a signed delta.
// The result can never be negative; a negative result means the caller
// is out of sync with the ledger.
func (a *StockAggregate) ApplyDelta(delta decimal.Decimal) error {
	next := a.Quantity.Add(delta)
	if next.IsNegative() {
		return shared.NewDomainError("INVALID_STATE", "Stock aggregate cannot go negative")
	}
	a.Quantity = next
	a.Touch()
	a.IncrementVersion()
	return nil
}

// Rebase overwrites the cached quantity with a value recomputed from the
// ledger and returns the correction delta that was applied
func (a *StockAggregate) Rebase(actual decimal.Decimal) decimal.Decimal {
	delta := actual.Sub(a.Quantity)
	a.Quantity = actual
	a.Touch()
	a.IncrementVersion()
	return delta
}
