package persistence

import (
	"context"

	appstock "github.com/retailpos/backend/internal/application/stock"
	"github.com/retailpos/backend/internal/domain/ledger"
	"gorm.io/gorm"
)

// GormTransactionScope implements the application TransactionScope using
// GORM transactions. All repository operations inside Execute share one
// database transaction and commit or roll back together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appstock.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to the ledger repositories
// within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// LineRepo returns the receipt line repository scoped to the current transaction
func (r *gormTransactionalRepositories) LineRepo() ledger.ReceiptLineRepository {
	return NewGormReceiptLineRepository(r.tx)
}

// TrailRepo returns the allocation trail repository scoped to the current transaction
func (r *gormTransactionalRepositories) TrailRepo() ledger.AllocationTrailRepository {
	return NewGormAllocationTrailRepository(r.tx)
}

// AggregateRepo returns the stock aggregate repository scoped to the current transaction
func (r *gormTransactionalRepositories) AggregateRepo() ledger.StockAggregateRepository {
	return NewGormStockAggregateRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appstock.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appstock.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
