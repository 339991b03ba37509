package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/ledger"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReceiptLineModel is the persistence model for receipt lines.
// Sequence is a bigserial assigned by the database on insert and is the
// FIFO tie-break for lines sharing a receipt timestamp.
type ReceiptLineModel struct {
	BaseModel
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_receipt_lines_fifo,priority:1"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_receipt_lines_fifo,priority:2"`
	Received   decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Remainder  decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	UnitCost   decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	ReceivedAt time.Time       `gorm:"not null;index:idx_receipt_lines_fifo,priority:3"`
	Sequence   int64           `gorm:"autoIncrement;uniqueIndex:idx_receipt_lines_sequence"`
	Status     string          `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
}

// TableName returns the table name for GORM
func (ReceiptLineModel) TableName() string {
	return "receipt_lines"
}

// ToDomain converts the persistence model to a domain receipt line
func (m *ReceiptLineModel) ToDomain() *ledger.ReceiptLine {
	return &ledger.ReceiptLine{
		BaseEntity: m.BaseModel.ToDomain(),
		TenantID:   m.TenantID,
		ProductID:  m.ProductID,
		Received:   m.Received,
		Remainder:  m.Remainder,
		UnitCost:   m.UnitCost,
		ReceivedAt: m.ReceivedAt,
		Sequence:   m.Sequence,
		Status:     ledger.ReceiptLineStatus(m.Status),
	}
}

// FromDomain populates the persistence model from a domain receipt line
func (m *ReceiptLineModel) FromDomain(line *ledger.ReceiptLine) {
	m.FromDomainBaseEntity(line.BaseEntity)
	m.TenantID = line.TenantID
	m.ProductID = line.ProductID
	m.Received = line.Received
	m.Remainder = line.Remainder
	m.UnitCost = line.UnitCost
	m.ReceivedAt = line.ReceivedAt
	m.Sequence = line.Sequence
	m.Status = string(line.Status)
}

// AllocationTrailModel is the persistence model for allocation trails
type AllocationTrailModel struct {
	TenantAggregateModel
	ProductID  uuid.UUID                   `gorm:"type:uuid;not null;index"`
	SaleLineID string                      `gorm:"type:varchar(64);not null;index"`
	Requested  decimal.Decimal             `gorm:"type:decimal(20,4);not null"`
	TotalCost  decimal.Decimal             `gorm:"type:decimal(20,4);not null"`
	Status     string                      `gorm:"type:varchar(20);not null;default:'APPLIED';index"`
	ReversedAt *time.Time                  `gorm:""`
	Entries    []AllocationTrailEntryModel `gorm:"foreignKey:TrailID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (AllocationTrailModel) TableName() string {
	return "allocation_trails"
}

// ToDomain converts the persistence model to a domain allocation trail
func (m *AllocationTrailModel) ToDomain() *ledger.AllocationTrail {
	trail := &ledger.AllocationTrail{
		ProductID:  m.ProductID,
		SaleLineID: m.SaleLineID,
		Requested:  m.Requested,
		TotalCost:  m.TotalCost,
		Status:     ledger.TrailStatus(m.Status),
		ReversedAt: m.ReversedAt,
		Entries:    make([]ledger.TrailEntry, len(m.Entries)),
	}
	m.PopulateTenantAggregateRoot(&trail.TenantAggregateRoot)
	for i, e := range m.Entries {
		trail.Entries[i] = ledger.TrailEntry{
			ReceiptLineID: e.ReceiptLineID,
			Quantity:      e.Quantity,
			UnitCost:      e.UnitCost,
			Position:      e.Position,
		}
	}
	return trail
}

// FromDomain populates the persistence model from a domain allocation trail
func (m *AllocationTrailModel) FromDomain(trail *ledger.AllocationTrail) {
	m.FromDomainTenantAggregateRoot(trail.TenantAggregateRoot)
	m.ProductID = trail.ProductID
	m.SaleLineID = trail.SaleLineID
	m.Requested = trail.Requested
	m.TotalCost = trail.TotalCost
	m.Status = string(trail.Status)
	m.ReversedAt = trail.ReversedAt
	m.Entries = make([]AllocationTrailEntryModel, len(trail.Entries))
	for i, e := range trail.Entries {
		m.Entries[i] = AllocationTrailEntryModel{
			ID:            uuid.New(),
			TrailID:       trail.ID,
			ReceiptLineID: e.ReceiptLineID,
			Quantity:      e.Quantity,
			UnitCost:      e.UnitCost,
			Position:      e.Position,
		}
	}
}

// AllocationTrailEntryModel is the persistence model for per-line deductions
// within a trail. Rows are immutable once written.
type AllocationTrailEntryModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	TrailID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ReceiptLineID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Position      int             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AllocationTrailEntryModel) TableName() string {
	return "allocation_trail_entries"
}

// StockAggregateModel is the persistence model for the cached per-product
// totals. One row per tenant and product.
type StockAggregateModel struct {
	AggregateModel
	TenantID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_aggregates_tenant_product,priority:1"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_aggregates_tenant_product,priority:2"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (StockAggregateModel) TableName() string {
	return "stock_aggregates"
}

// ToDomain converts the persistence model to a domain stock aggregate
func (m *StockAggregateModel) ToDomain() *ledger.StockAggregate {
	agg := &ledger.StockAggregate{
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
	}
	agg.TenantAggregateRoot = shared.TenantAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		TenantID: m.TenantID,
	}
	return agg
}

// FromDomain populates the persistence model from a domain stock aggregate
func (m *StockAggregateModel) FromDomain(agg *ledger.StockAggregate) {
	m.FromDomainAggregateRoot(agg.BaseAggregateRoot)
	m.TenantID = agg.TenantID
	m.ProductID = agg.ProductID
	m.Quantity = agg.Quantity
}
