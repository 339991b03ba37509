package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReceiptLineStatus represents the lifecycle state of a receipt line
type ReceiptLineStatus string

const (
	// ReceiptLineStatusActive means the line participates in allocation
	ReceiptLineStatusActive ReceiptLineStatus = "ACTIVE"
	// ReceiptLineStatusRetired means the line is archived and excluded from allocation
	ReceiptLineStatusRetired ReceiptLineStatus = "RETIRED"
)

// IsValid checks if the status is a known value
func (s ReceiptLineStatus) IsValid() bool {
	return s == ReceiptLineStatusActive || s == ReceiptLineStatusRetired
}

// ReceiptLine is one append-only ledger row recording a stock receipt.
// Received is immutable after creation; Remainder only decreases through
// allocation and increases through reversal, never beyond Received.
type ReceiptLine struct {
	shared.BaseEntity
	TenantID   uuid.UUID
	ProductID  uuid.UUID
	Received   decimal.Decimal
	Remainder  decimal.Decimal
	UnitCost   decimal.Decimal
	ReceivedAt time.Time
	// Sequence is assigned by storage in insertion order and breaks ties
	// between lines sharing the same ReceivedAt.
	Sequence int64
	Status   ReceiptLineStatus
}

// NewReceiptLine creates a new active receipt line with full remainder
func NewReceiptLine(tenantID, productID uuid.UUID, quantity, unitCost decimal.Decimal, receivedAt time.Time) (*ReceiptLine, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Received quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unit cost cannot be negative")
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return &ReceiptLine{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		ProductID:  productID,
		Received:   quantity,
		Remainder:  quantity,
		UnitCost:   unitCost,
		ReceivedAt: receivedAt,
		Status:     ReceiptLineStatusActive,
	}, nil
}

// IsActive returns true if the line participates in allocation
func (l *ReceiptLine) IsActive() bool {
	return l.Status == ReceiptLineStatusActive
}

// HasRemainder returns true if unconsumed stock is left on the line
func (l *ReceiptLine) HasRemainder() bool {
	return l.Remainder.GreaterThan(decimal.Zero)
}

// IsConsistent reports whether the line satisfies 0 <= remainder <= received
func (l *ReceiptLine) IsConsistent() bool {
	return !l.Remainder.IsNegative() && l.Remainder.LessThanOrEqual(l.Received)
}

// Consume deducts quantity from the remainder during allocation
func (l *ReceiptLine) Consume(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Consumed quantity must be positive")
	}
	if !l.IsActive() {
		return shared.NewDomainError("INVALID_STATE", "Cannot consume from a retired receipt line")
	}
	if quantity.GreaterThan(l.Remainder) {
		return shared.NewDomainError("INSUFFICIENT_REMAINDER", "Consumed quantity exceeds line remainder")
	}
	l.Remainder = l.Remainder.Sub(quantity)
	l.Touch()
	return nil
}

// Restore returns quantity to the remainder during reversal.
// The remainder is capped at the received quantity.
func (l *ReceiptLine) Restore(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Restored quantity must be positive")
	}
	if l.Remainder.Add(quantity).GreaterThan(l.Received) {
		return shared.NewDomainError("RESTORE_EXCEEDS_RECEIVED", "Restoring quantity would exceed received quantity")
	}
	l.Remainder = l.Remainder.Add(quantity)
	l.Touch()
	return nil
}

// Retire archives a fully consumed line. The transition is explicit and
// legal only when the remainder is zero; callers must also verify no
// applied allocation trail still references the line.
func (l *ReceiptLine) Retire() error {
	if l.Status == ReceiptLineStatusRetired {
		return shared.NewDomainError("INVALID_STATE", "Receipt line is already retired")
	}
	if !l.Remainder.IsZero() {
		return shared.NewDomainError("INVALID_STATE", "Cannot retire a receipt line with remaining stock")
	}
	l.Status = ReceiptLineStatusRetired
	l.Touch()
	return nil
}

// RemainderValue returns remainder * unit cost
func (l *ReceiptLine) RemainderValue() decimal.Decimal {
	return l.Remainder.Mul(l.UnitCost)
}
