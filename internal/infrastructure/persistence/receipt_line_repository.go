package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/ledger"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReceiptLineRepository implements ledger.ReceiptLineRepository using GORM
type GormReceiptLineRepository struct {
	db *gorm.DB
}

// NewGormReceiptLineRepository creates a new GormReceiptLineRepository
func NewGormReceiptLineRepository(db *gorm.DB) *GormReceiptLineRepository {
	return &GormReceiptLineRepository{db: db}
}

// FindByID finds a receipt line within a tenant
func (r *GormReceiptLineRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.ReceiptLine, error) {
	var model models.ReceiptLineModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find receipt line: %w", err)
	}
	return model.ToDomain(), nil
}

// FindActiveByProduct returns active lines with stock left, in FIFO order
func (r *GormReceiptLineRepository) FindActiveByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]ledger.ReceiptLine, error) {
	return r.findActiveByProduct(ctx, tenantID, productID, false)
}

// FindActiveByProductForUpdate is FindActiveByProduct with FOR UPDATE row
// locks. The FIFO ordering doubles as the lock acquisition order, so
// concurrent allocations for one product queue up instead of deadlocking.
func (r *GormReceiptLineRepository) FindActiveByProductForUpdate(ctx context.Context, tenantID, productID uuid.UUID) ([]ledger.ReceiptLine, error) {
	return r.findActiveByProduct(ctx, tenantID, productID, true)
}

func (r *GormReceiptLineRepository) findActiveByProduct(ctx context.Context, tenantID, productID uuid.UUID, forUpdate bool) ([]ledger.ReceiptLine, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND status = ? AND remainder > 0",
			tenantID, productID, string(ledger.ReceiptLineStatusActive)).
		Order("received_at ASC, sequence ASC")
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var lineModels []models.ReceiptLineModel
	if err := query.Find(&lineModels).Error; err != nil {
		return nil, fmt.Errorf("failed to find receipt lines: %w", err)
	}
	return toDomainLines(lineModels), nil
}

// FindByIDsForUpdate loads the given lines with FOR UPDATE row locks in
// FIFO order for consistent lock ordering across operations
func (r *GormReceiptLineRepository) FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]ledger.ReceiptLine, error) {
	if len(ids) == 0 {
		return []ledger.ReceiptLine{}, nil
	}
	var lineModels []models.ReceiptLineModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("received_at ASC, sequence ASC").
		Find(&lineModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find receipt lines: %w", err)
	}
	return toDomainLines(lineModels), nil
}

// FindByProduct returns all lines for a product regardless of status.
// Callers may override the default FIFO ordering through the filter; the
// sort field is validated against a whitelist before it reaches the query.
func (r *GormReceiptLineRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]ledger.ReceiptLine, error) {
	orderClause := "received_at ASC, sequence ASC"
	if filter.OrderBy != "" {
		field := ValidateSortField(filter.OrderBy, ReceiptLineSortFields, "received_at")
		dir := ValidateSortOrder(filter.OrderDir, "ASC")
		orderClause = field + " " + dir + ", sequence ASC"
	}

	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order(orderClause)

	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		if offset < 0 {
			offset = 0
		}
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var lineModels []models.ReceiptLineModel
	if err := query.Find(&lineModels).Error; err != nil {
		return nil, fmt.Errorf("failed to find receipt lines: %w", err)
	}
	return toDomainLines(lineModels), nil
}

// Save creates or updates a receipt line. On insert the database assigns
// the sequence and GORM writes it back into the domain object.
func (r *GormReceiptLineRepository) Save(ctx context.Context, line *ledger.ReceiptLine) error {
	var model models.ReceiptLineModel
	model.FromDomain(line)
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to save receipt line: %w", err)
	}
	line.Sequence = model.Sequence
	return nil
}

// SaveAll persists multiple receipt lines
func (r *GormReceiptLineRepository) SaveAll(ctx context.Context, lines []ledger.ReceiptLine) error {
	for i := range lines {
		if err := r.Save(ctx, &lines[i]); err != nil {
			return err
		}
	}
	return nil
}

// SumRemainderByProduct computes the ledger truth the aggregate caches
func (r *GormReceiptLineRepository) SumRemainderByProduct(ctx context.Context, tenantID, productID uuid.UUID) (decimal.Decimal, error) {
	return r.sumExpr(ctx, "COALESCE(SUM(remainder), 0)",
		"tenant_id = ? AND product_id = ?", tenantID, productID)
}

// SumReceivedValue sums received * unit_cost over a tenant's lines
func (r *GormReceiptLineRepository) SumReceivedValue(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	return r.sumExpr(ctx, "COALESCE(SUM(received * unit_cost), 0)", "tenant_id = ?", tenantID)
}

// SumRemainderValue sums remainder * unit_cost over a tenant's lines
func (r *GormReceiptLineRepository) SumRemainderValue(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	return r.sumExpr(ctx, "COALESCE(SUM(remainder * unit_cost), 0)", "tenant_id = ?", tenantID)
}

func (r *GormReceiptLineRepository) sumExpr(ctx context.Context, expr string, cond string, args ...interface{}) (decimal.Decimal, error) {
	var result decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.ReceiptLineModel{}).
		Select(expr).
		Where(cond, args...).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum receipt lines: %w", err)
	}
	return result, nil
}

// FindInvalid returns lines violating 0 <= remainder <= received
func (r *GormReceiptLineRepository) FindInvalid(ctx context.Context, tenantID uuid.UUID) ([]ledger.ReceiptLine, error) {
	var lineModels []models.ReceiptLineModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND (remainder < 0 OR remainder > received)", tenantID).
		Order("received_at ASC, sequence ASC").
		Find(&lineModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find invalid receipt lines: %w", err)
	}
	return toDomainLines(lineModels), nil
}

// ListProductIDs returns the distinct product IDs in a tenant's ledger
func (r *GormReceiptLineRepository) ListProductIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.ReceiptLineModel{}).
		Distinct("product_id").
		Where("tenant_id = ?", tenantID).
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger products: %w", err)
	}
	return ids, nil
}

func toDomainLines(lineModels []models.ReceiptLineModel) []ledger.ReceiptLine {
	lines := make([]ledger.ReceiptLine, len(lineModels))
	for i := range lineModels {
		lines[i] = *lineModels[i].ToDomain()
	}
	return lines
}

// Ensure GormReceiptLineRepository implements the interface
var _ ledger.ReceiptLineRepository = (*GormReceiptLineRepository)(nil)
