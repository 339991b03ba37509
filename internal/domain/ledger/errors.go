package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InsufficientStockError is returned when an allocation cannot be fully
// satisfied. Partial allocation is never performed; the error carries the
// exact shortage so callers can surface it to the point of sale.
type InsufficientStockError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
	Shortage  decimal.Decimal
}

// Error implements the error interface
func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %s, available %s, short %s",
		e.Requested.String(), e.Available.String(), e.Shortage.String())
}

// NewInsufficientStockError creates an InsufficientStockError from the
// requested and available quantities
func NewInsufficientStockError(requested, available decimal.Decimal) *InsufficientStockError {
	return &InsufficientStockError{
		Requested: requested,
		Available: available,
		Shortage:  requested.Sub(available),
	}
}

// StaleTrailError is returned when a reversal references a trail that was
// already reversed, or when restoring its entries would push a receipt
// line past its received quantity. Both indicate a caller operating on
// stale data and are treated as data integrity violations.
type StaleTrailError struct {
	TrailID uuid.UUID
	Reason  string
}

// Error implements the error interface
func (e *StaleTrailError) Error() string {
	return fmt.Sprintf("stale allocation trail %s: %s", e.TrailID, e.Reason)
}

// NewStaleTrailError creates a StaleTrailError for the given trail
func NewStaleTrailError(trailID uuid.UUID, reason string) *StaleTrailError {
	return &StaleTrailError{TrailID: trailID, Reason: reason}
}
