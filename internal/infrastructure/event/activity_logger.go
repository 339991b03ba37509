package event

import (
	"context"

	"github.com/retailpos/backend/internal/domain/ledger"
	"github.com/retailpos/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// StockActivityLogger writes an audit line for every ledger event. The
// ledger itself is the system of record; this is operator-facing
// visibility, not durable history.
type StockActivityLogger struct {
	logger *zap.Logger
}

// NewStockActivityLogger creates a new StockActivityLogger
func NewStockActivityLogger(logger *zap.Logger) *StockActivityLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockActivityLogger{logger: logger}
}

// EventTypes returns the ledger event types this handler listens for
func (l *StockActivityLogger) EventTypes() []string {
	return []string{
		ledger.EventTypeStockReceived,
		ledger.EventTypeStockAllocated,
		ledger.EventTypeAllocationReversed,
		ledger.EventTypeAggregateRebuilt,
		ledger.EventTypeReconciliationCompleted,
	}
}

// Handle logs the event with its aggregate and tenant context
func (l *StockActivityLogger) Handle(_ context.Context, e shared.DomainEvent) error {
	l.logger.Info("ledger activity",
		zap.String("event_type", e.EventType()),
		zap.String("event_id", e.EventID().String()),
		zap.String("aggregate_type", e.AggregateType()),
		zap.String("aggregate_id", e.AggregateID().String()),
		zap.String("tenant_id", e.TenantID().String()),
	)
	return nil
}

var _ shared.EventHandler = (*StockActivityLogger)(nil)
