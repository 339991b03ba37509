package stock

import (
	"context"

	"github.com/retailpos/backend/internal/domain/ledger"
)

// TransactionScope provides transactional access to the ledger repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the ledger repositories
// within a transaction. All repositories returned share the same
// underlying database transaction.
type TransactionalRepositories interface {
	// LineRepo returns the receipt line repository scoped to the current transaction
	LineRepo() ledger.ReceiptLineRepository
	// TrailRepo returns the allocation trail repository scoped to the current transaction
	TrailRepo() ledger.AllocationTrailRepository
	// AggregateRepo returns the stock aggregate repository scoped to the current transaction
	AggregateRepo() ledger.StockAggregateRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. This is useful for testing or when transaction support is
// not required.
type NoOpTransactionScope struct {
	lineRepo      ledger.ReceiptLineRepository
	trailRepo     ledger.AllocationTrailRepository
	aggregateRepo ledger.StockAggregateRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	lineRepo ledger.ReceiptLineRepository,
	trailRepo ledger.AllocationTrailRepository,
	aggregateRepo ledger.StockAggregateRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		lineRepo:      lineRepo,
		trailRepo:     trailRepo,
		aggregateRepo: aggregateRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// LineRepo returns the receipt line repository.
func (s *NoOpTransactionScope) LineRepo() ledger.ReceiptLineRepository {
	return s.lineRepo
}

// TrailRepo returns the allocation trail repository.
func (s *NoOpTransactionScope) TrailRepo() ledger.AllocationTrailRepository {
	return s.trailRepo
}

// AggregateRepo returns the stock aggregate repository.
func (s *NoOpTransactionScope) AggregateRepo() ledger.StockAggregateRepository {
	return s.aggregateRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
