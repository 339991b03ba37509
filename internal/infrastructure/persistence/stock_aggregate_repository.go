package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/ledger"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockAggregateRepository implements ledger.StockAggregateRepository using GORM
type GormStockAggregateRepository struct {
	db *gorm.DB
}

// NewGormStockAggregateRepository creates a new GormStockAggregateRepository
func NewGormStockAggregateRepository(db *gorm.DB) *GormStockAggregateRepository {
	return &GormStockAggregateRepository{db: db}
}

// FindByProduct finds the aggregate row for a product
func (r *GormStockAggregateRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID) (*ledger.StockAggregate, error) {
	return r.findByProduct(ctx, tenantID, productID, false)
}

// FindByProductForUpdate is FindByProduct with a FOR UPDATE row lock.
// The aggregate row is always locked after the receipt line rows, keeping
// one global lock order across allocate, reverse and rebuild.
func (r *GormStockAggregateRepository) FindByProductForUpdate(ctx context.Context, tenantID, productID uuid.UUID) (*ledger.StockAggregate, error) {
	return r.findByProduct(ctx, tenantID, productID, true)
}

func (r *GormStockAggregateRepository) findByProduct(ctx context.Context, tenantID, productID uuid.UUID, forUpdate bool) (*ledger.StockAggregate, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var model models.StockAggregateModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find stock aggregate: %w", err)
	}
	return model.ToDomain(), nil
}

// ListByTenant returns all aggregate rows for a tenant
func (r *GormStockAggregateRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]ledger.StockAggregate, error) {
	var aggModels []models.StockAggregateModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("product_id ASC").
		Find(&aggModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stock aggregates: %w", err)
	}

	aggregates := make([]ledger.StockAggregate, len(aggModels))
	for i := range aggModels {
		aggregates[i] = *aggModels[i].ToDomain()
	}
	return aggregates, nil
}

// ListTenantIDs returns the distinct tenant IDs holding aggregate rows
func (r *GormStockAggregateRepository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.StockAggregateModel{}).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &tenantIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant ids: %w", err)
	}
	return tenantIDs, nil
}

// Save creates or updates an aggregate row
func (r *GormStockAggregateRepository) Save(ctx context.Context, aggregate *ledger.StockAggregate) error {
	var model models.StockAggregateModel
	model.FromDomain(aggregate)
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to save stock aggregate: %w", err)
	}
	return nil
}

// Ensure GormStockAggregateRepository implements the interface
var _ ledger.StockAggregateRepository = (*GormStockAggregateRepository)(nil)
