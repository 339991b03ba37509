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

// GormAllocationTrailRepository implements ledger.AllocationTrailRepository using GORM
type GormAllocationTrailRepository struct {
	db *gorm.DB
}

// NewGormAllocationTrailRepository creates a new GormAllocationTrailRepository
func NewGormAllocationTrailRepository(db *gorm.DB) *GormAllocationTrailRepository {
	return &GormAllocationTrailRepository{db: db}
}

// FindByID finds a trail with its entries within a tenant
func (r *GormAllocationTrailRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.AllocationTrail, error) {
	return r.findByID(ctx, tenantID, id, false)
}

// FindByIDForUpdate is FindByID with a FOR UPDATE row lock on the trail.
// Entries are immutable so only the trail row is locked.
func (r *GormAllocationTrailRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.AllocationTrail, error) {
	return r.findByID(ctx, tenantID, id, true)
}

func (r *GormAllocationTrailRepository) findByID(ctx context.Context, tenantID, id uuid.UUID, forUpdate bool) (*ledger.AllocationTrail, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var model models.AllocationTrailModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find allocation trail: %w", err)
	}
	if err := r.loadEntries(ctx, &model); err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// loadEntries fetches a trail's entries in allocation order. Preload is
// avoided here so the locking clause never spills onto the entry query.
func (r *GormAllocationTrailRepository) loadEntries(ctx context.Context, model *models.AllocationTrailModel) error {
	err := r.db.WithContext(ctx).
		Where("trail_id = ?", model.ID).
		Order("position ASC").
		Find(&model.Entries).Error
	if err != nil {
		return fmt.Errorf("failed to load trail entries: %w", err)
	}
	return nil
}

// FindBySaleLine returns trails created for a sale line reference
func (r *GormAllocationTrailRepository) FindBySaleLine(ctx context.Context, tenantID uuid.UUID, saleLineID string) ([]ledger.AllocationTrail, error) {
	var trailModels []models.AllocationTrailModel
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("tenant_id = ? AND sale_line_id = ?", tenantID, saleLineID).
		Order("created_at ASC").
		Find(&trailModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find allocation trails: %w", err)
	}
	return toDomainTrails(trailModels), nil
}

// FindByTenant returns all trails for a tenant with their entries
func (r *GormAllocationTrailRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]ledger.AllocationTrail, error) {
	var trailModels []models.AllocationTrailModel
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&trailModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find allocation trails: %w", err)
	}
	return toDomainTrails(trailModels), nil
}

// CountAppliedReferencingLine counts applied trails holding entries
// against a receipt line
func (r *GormAllocationTrailRepository) CountAppliedReferencingLine(ctx context.Context, tenantID, lineID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AllocationTrailModel{}).
		Joins("JOIN allocation_trail_entries ON allocation_trail_entries.trail_id = allocation_trails.id").
		Where("allocation_trails.tenant_id = ? AND allocation_trails.status = ? AND allocation_trail_entries.receipt_line_id = ?",
			tenantID, string(ledger.TrailStatusApplied), lineID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count referencing trails: %w", err)
	}
	return count, nil
}

// Save creates or updates a trail together with its entries. Entries are
// written once on creation and never touched again.
func (r *GormAllocationTrailRepository) Save(ctx context.Context, trail *ledger.AllocationTrail) error {
	var model models.AllocationTrailModel
	model.FromDomain(trail)

	var exists int64
	err := r.db.WithContext(ctx).
		Model(&models.AllocationTrailModel{}).
		Where("id = ?", trail.ID).
		Count(&exists).Error
	if err != nil {
		return fmt.Errorf("failed to check allocation trail existence: %w", err)
	}

	if exists == 0 {
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			return fmt.Errorf("failed to create allocation trail: %w", err)
		}
		return nil
	}

	err = r.db.WithContext(ctx).
		Model(&models.AllocationTrailModel{}).
		Where("id = ?", trail.ID).
		Updates(map[string]interface{}{
			"status":      model.Status,
			"reversed_at": model.ReversedAt,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update allocation trail: %w", err)
	}
	return nil
}

// SumAppliedCost sums total_cost over a tenant's applied trails
func (r *GormAllocationTrailRepository) SumAppliedCost(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	var result decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.AllocationTrailModel{}).
		Select("COALESCE(SUM(total_cost), 0)").
		Where("tenant_id = ? AND status = ?", tenantID, string(ledger.TrailStatusApplied)).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum applied cost: %w", err)
	}
	return result, nil
}

func toDomainTrails(trailModels []models.AllocationTrailModel) []ledger.AllocationTrail {
	trails := make([]ledger.AllocationTrail, len(trailModels))
	for i := range trailModels {
		trails[i] = *trailModels[i].ToDomain()
	}
	return trails
}

// Ensure GormAllocationTrailRepository implements the interface
var _ ledger.AllocationTrailRepository = (*GormAllocationTrailRepository)(nil)
