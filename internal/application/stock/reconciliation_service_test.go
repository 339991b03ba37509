package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type reconciliationFixture struct {
	*serviceFixture
	reconciler *ReconciliationService
}

func newReconciliationFixture(t *testing.T) *reconciliationFixture {
	t.Helper()
	f := newServiceFixture(t)
	scope := NewNoOpTransactionScope(f.lineRepo, f.trailRepo, f.aggRepo)
	reconciler := NewReconciliationService(scope, f.lineRepo, f.trailRepo, f.aggRepo, zap.NewNop())
	reconciler.SetEventPublisher(f.publisher)
	return &reconciliationFixture{serviceFixture: f, reconciler: reconciler}
}

func TestReconciliationService_Run(t *testing.T) {
	t.Run("healthy ledger is clean", func(t *testing.T) {
		f := newReconciliationFixture(t)
		f.receive(t, 50, 10.00, day1)
		f.receive(t, 30, 12.00, day2)
		_, err := f.service.Allocate(context.Background(), f.tenantID, AllocateRequest{
			ProductID: f.productID, Quantity: decimal.NewFromInt(65), SaleLineID: "sale-001",
		})
		require.NoError(t, err)

		summary, err := f.reconciler.Run(context.Background(), f.tenantID)

		require.NoError(t, err)
		assert.True(t, summary.Clean())
		assert.Empty(t, summary.InvalidLines)
		assert.Empty(t, summary.TrailMismatches)
		assert.Empty(t, summary.AggregateCorrections)
		assert.True(t, summary.Cost.ReceivedValue.Equal(decimal.NewFromInt(860)))
		assert.True(t, summary.Cost.AppliedAllocationCost.Equal(decimal.NewFromInt(680)))
		assert.True(t, summary.Cost.ActualRemainderValue.Equal(decimal.NewFromInt(180)))
		assert.True(t, summary.Cost.Diff.IsZero())
	})

	t.Run("reversal keeps the value identity", func(t *testing.T) {
		f := newReconciliationFixture(t)
		f.receive(t, 50, 10.00, day1)
		allocated, err := f.service.Allocate(context.Background(), f.tenantID, AllocateRequest{
			ProductID: f.productID, Quantity: decimal.NewFromInt(20), SaleLineID: "sale-001",
		})
		require.NoError(t, err)
		_, err = f.service.Reverse(context.Background(), f.tenantID, allocated.TrailID)
		require.NoError(t, err)

		summary, err := f.reconciler.Run(context.Background(), f.tenantID)

		require.NoError(t, err)
		assert.True(t, summary.Clean())
		assert.True(t, summary.Cost.AppliedAllocationCost.IsZero(), "reversed trails do not count")
	})

	t.Run("reports invalid lines without repairing them", func(t *testing.T) {
		f := newReconciliationFixture(t)
		line, err := ledger.NewReceiptLine(f.tenantID, f.productID, decimal.NewFromInt(10), decimal.NewFromInt(5), day1)
		require.NoError(t, err)
		require.NoError(t, f.lineRepo.Save(context.Background(), line))

		// Corrupt the stored row directly.
		line.Remainder = decimal.NewFromInt(12)
		require.NoError(t, f.lineRepo.Save(context.Background(), line))

		summary, err := f.reconciler.Run(context.Background(), f.tenantID)

		require.NoError(t, err)
		require.Len(t, summary.InvalidLines, 1)
		assert.Equal(t, line.ID, summary.InvalidLines[0].LineID)
		assert.Equal(t, "remainder exceeds received quantity", summary.InvalidLines[0].Reason)

		stored, err := f.lineRepo.FindByID(context.Background(), f.tenantID, line.ID)
		require.NoError(t, err)
		assert.True(t, stored.Remainder.Equal(decimal.NewFromInt(12)), "ledger rows are never repaired")
	})

	t.Run("reports trail drift without repairing it", func(t *testing.T) {
		f := newReconciliationFixture(t)
		f.receive(t, 50, 10.00, day1)
		allocated, err := f.service.Allocate(context.Background(), f.tenantID, AllocateRequest{
			ProductID: f.productID, Quantity: decimal.NewFromInt(20), SaleLineID: "sale-001",
		})
		require.NoError(t, err)

		trail, err := f.trailRepo.FindByID(context.Background(), f.tenantID, allocated.TrailID)
		require.NoError(t, err)
		trail.Entries[0].Quantity = trail.Entries[0].Quantity.Add(decimal.NewFromInt(3))
		require.NoError(t, f.trailRepo.Save(context.Background(), trail))

		summary, err := f.reconciler.Run(context.Background(), f.tenantID)

		require.NoError(t, err)
		require.Len(t, summary.TrailMismatches, 1)
		assert.Equal(t, allocated.TrailID, summary.TrailMismatches[0].TrailID)
		assert.True(t, summary.TrailMismatches[0].Diff.Equal(decimal.NewFromInt(3)))

		stored, err := f.trailRepo.FindByID(context.Background(), f.tenantID, allocated.TrailID)
		require.NoError(t, err)
		assert.True(t, stored.Entries[0].Quantity.Equal(decimal.NewFromInt(23)), "trails are never repaired")
	})

	t.Run("rebuilds drifted aggregates", func(t *testing.T) {
		f := newReconciliationFixture(t)
		f.receive(t, 50, 10.00, day1)

		agg, err := f.aggRepo.FindByProduct(context.Background(), f.tenantID, f.productID)
		require.NoError(t, err)
		agg.Quantity = decimal.NewFromInt(70)
		require.NoError(t, f.aggRepo.Save(context.Background(), agg))

		summary, err := f.reconciler.Run(context.Background(), f.tenantID)

		require.NoError(t, err)
		require.Len(t, summary.AggregateCorrections, 1)
		correction := summary.AggregateCorrections[0]
		assert.Equal(t, f.productID, correction.ProductID)
		assert.True(t, correction.Before.Equal(decimal.NewFromInt(70)))
		assert.True(t, correction.After.Equal(decimal.NewFromInt(50)))
		assert.True(t, correction.Delta.Equal(decimal.NewFromInt(-20)))

		rebuilt, err := f.aggRepo.FindByProduct(context.Background(), f.tenantID, f.productID)
		require.NoError(t, err)
		assert.True(t, rebuilt.Quantity.Equal(decimal.NewFromInt(50)))
	})

	t.Run("rebases stale aggregate rows for drained products", func(t *testing.T) {
		f := newReconciliationFixture(t)
		orphanProduct := uuid.New()
		orphan := ledger.NewStockAggregate(f.tenantID, orphanProduct)
		require.NoError(t, orphan.ApplyDelta(decimal.NewFromInt(40)))
		require.NoError(t, f.aggRepo.Save(context.Background(), orphan))

		summary, err := f.reconciler.Run(context.Background(), f.tenantID)

		require.NoError(t, err)
		require.Len(t, summary.AggregateCorrections, 1)
		assert.Equal(t, orphanProduct, summary.AggregateCorrections[0].ProductID)
		assert.True(t, summary.AggregateCorrections[0].After.IsZero())
	})

	t.Run("publishes completion event", func(t *testing.T) {
		f := newReconciliationFixture(t)
		f.receive(t, 10, 1.00, day1)

		_, err := f.reconciler.Run(context.Background(), f.tenantID)

		require.NoError(t, err)
		assert.Contains(t, f.publisher.eventTypes(), ledger.EventTypeReconciliationCompleted)
	})

	t.Run("empty tenant is clean", func(t *testing.T) {
		f := newReconciliationFixture(t)

		summary, err := f.reconciler.Run(context.Background(), uuid.New())

		require.NoError(t, err)
		assert.True(t, summary.Clean())
	})
}
