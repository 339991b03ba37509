package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/ledger"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvalidLineReport describes a receipt line violating the remainder bounds
type InvalidLineReport struct {
	LineID    uuid.UUID       `json:"line_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Received  decimal.Decimal `json:"received"`
	Remainder decimal.Decimal `json:"remainder"`
	Reason    string          `json:"reason"`
}

// TrailMismatchReport describes a trail whose entries no longer sum to
// the requested quantity
type TrailMismatchReport struct {
	TrailID      uuid.UUID       `json:"trail_id"`
	SaleLineID   string          `json:"sale_line_id"`
	Requested    decimal.Decimal `json:"requested"`
	EntriesTotal decimal.Decimal `json:"entries_total"`
	Diff         decimal.Decimal `json:"diff"`
}

// AggregateCorrection describes a cached total that drifted from the
// ledger and was rebased
type AggregateCorrection struct {
	ProductID uuid.UUID       `json:"product_id"`
	Before    decimal.Decimal `json:"before"`
	After     decimal.Decimal `json:"after"`
	Delta     decimal.Decimal `json:"delta"`
}

// CostReconciliation checks that received value minus applied allocation
// cost matches the value still sitting in the ledger
type CostReconciliation struct {
	ReceivedValue          decimal.Decimal `json:"received_value"`
	AppliedAllocationCost  decimal.Decimal `json:"applied_allocation_cost"`
	ExpectedRemainderValue decimal.Decimal `json:"expected_remainder_value"`
	ActualRemainderValue   decimal.Decimal `json:"actual_remainder_value"`
	Diff                   decimal.Decimal `json:"diff"`
}

// AuditSummary is the result of one reconciliation run
type AuditSummary struct {
	TenantID             uuid.UUID             `json:"tenant_id"`
	InvalidLines         []InvalidLineReport   `json:"invalid_lines"`
	TrailMismatches      []TrailMismatchReport `json:"trail_mismatches"`
	AggregateCorrections []AggregateCorrection `json:"aggregate_corrections"`
	Cost                 CostReconciliation    `json:"cost"`
	StartedAt            time.Time             `json:"started_at"`
	FinishedAt           time.Time             `json:"finished_at"`
}

// Clean reports whether the run found nothing to flag or correct
func (s *AuditSummary) Clean() bool {
	return len(s.InvalidLines) == 0 &&
		len(s.TrailMismatches) == 0 &&
		len(s.AggregateCorrections) == 0 &&
		s.Cost.Diff.IsZero()
}

// ReconciliationService audits a tenant's ledger for invariant violations.
// Ledger and trail violations are reported, never repaired: the ledger is
// the system of record and silent edits would destroy the audit history.
// Only the derived stock aggregates are rebuilt when they drift.
type ReconciliationService struct {
	txScope        TransactionScope
	lineRepo       ledger.ReceiptLineRepository
	trailRepo      ledger.AllocationTrailRepository
	aggregateRepo  ledger.StockAggregateRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	txScope TransactionScope,
	lineRepo ledger.ReceiptLineRepository,
	trailRepo ledger.AllocationTrailRepository,
	aggregateRepo ledger.StockAggregateRepository,
	logger *zap.Logger,
) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		txScope:       txScope,
		lineRepo:      lineRepo,
		trailRepo:     trailRepo,
		aggregateRepo: aggregateRepo,
		logger:        logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ReconciliationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// log carries request and tenant correlation fields from the context
// into service log entries
func (s *ReconciliationService) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}

// Run audits one tenant and returns the findings
func (s *ReconciliationService) Run(ctx context.Context, tenantID uuid.UUID) (*AuditSummary, error) {
	summary := &AuditSummary{
		TenantID:             tenantID,
		InvalidLines:         []InvalidLineReport{},
		TrailMismatches:      []TrailMismatchReport{},
		AggregateCorrections: []AggregateCorrection{},
		StartedAt:            time.Now(),
	}

	if err := s.auditLines(ctx, tenantID, summary); err != nil {
		return nil, err
	}
	if err := s.auditTrails(ctx, tenantID, summary); err != nil {
		return nil, err
	}
	if err := s.rebuildAggregates(ctx, tenantID, summary); err != nil {
		return nil, err
	}
	if err := s.reconcileCost(ctx, tenantID, summary); err != nil {
		return nil, err
	}
	summary.FinishedAt = time.Now()

	if s.eventPublisher != nil {
		event := ledger.NewReconciliationCompletedEvent(tenantID,
			len(summary.InvalidLines), len(summary.TrailMismatches), len(summary.AggregateCorrections))
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.log(ctx).Warn("failed to publish reconciliation event", zap.Error(err))
		}
	}

	if summary.Clean() {
		s.log(ctx).Info("reconciliation completed, ledger clean",
			zap.String("tenant_id", tenantID.String()))
	} else {
		s.log(ctx).Warn("reconciliation completed with findings",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("invalid_lines", len(summary.InvalidLines)),
			zap.Int("trail_mismatches", len(summary.TrailMismatches)),
			zap.Int("aggregate_corrections", len(summary.AggregateCorrections)),
			zap.String("cost_diff", summary.Cost.Diff.String()))
	}
	return summary, nil
}

// auditLines flags lines violating 0 <= remainder <= received
func (s *ReconciliationService) auditLines(ctx context.Context, tenantID uuid.UUID, summary *AuditSummary) error {
	invalid, err := s.lineRepo.FindInvalid(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to scan receipt lines: %w", err)
	}
	for i := range invalid {
		line := &invalid[i]
		reason := "remainder exceeds received quantity"
		if line.Remainder.IsNegative() {
			reason = "remainder is negative"
		}
		summary.InvalidLines = append(summary.InvalidLines, InvalidLineReport{
			LineID:    line.ID,
			ProductID: line.ProductID,
			Received:  line.Received,
			Remainder: line.Remainder,
			Reason:    reason,
		})
	}
	return nil
}

// auditTrails flags trails whose entry quantities no longer sum to the
// requested quantity
func (s *ReconciliationService) auditTrails(ctx context.Context, tenantID uuid.UUID, summary *AuditSummary) error {
	trails, err := s.trailRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to scan allocation trails: %w", err)
	}
	for i := range trails {
		trail := &trails[i]
		if trail.IsConsistent() {
			continue
		}
		entriesTotal := trail.EntriesTotal()
		summary.TrailMismatches = append(summary.TrailMismatches, TrailMismatchReport{
			TrailID:      trail.ID,
			SaleLineID:   trail.SaleLineID,
			Requested:    trail.Requested,
			EntriesTotal: entriesTotal,
			Diff:         entriesTotal.Sub(trail.Requested),
		})
	}
	return nil
}

// rebuildAggregates rebases every cached total onto the ledger truth.
// Each product is rebuilt in its own short transaction to keep lock
// windows narrow.
func (s *ReconciliationService) rebuildAggregates(ctx context.Context, tenantID uuid.UUID, summary *AuditSummary) error {
	productIDs, err := s.collectProductIDs(ctx, tenantID)
	if err != nil {
		return err
	}

	for _, productID := range productIDs {
		correction, err := s.rebuildOne(ctx, tenantID, productID)
		if err != nil {
			return err
		}
		if correction != nil {
			summary.AggregateCorrections = append(summary.AggregateCorrections, *correction)
		}
	}
	return nil
}

// collectProductIDs unions products present in the ledger with products
// holding an aggregate row, so stale rows for drained products are
// rebased to zero as well
func (s *ReconciliationService) collectProductIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	fromLines, err := s.lineRepo.ListProductIDs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger products: %w", err)
	}
	aggregates, err := s.aggregateRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock aggregates: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(fromLines)+len(aggregates))
	out := make([]uuid.UUID, 0, len(fromLines)+len(aggregates))
	for _, id := range fromLines {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for i := range aggregates {
		id := aggregates[i].ProductID
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *ReconciliationService) rebuildOne(ctx context.Context, tenantID, productID uuid.UUID) (*AggregateCorrection, error) {
	var correction *AggregateCorrection
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		aggregate, err := repos.AggregateRepo().FindByProductForUpdate(ctx, tenantID, productID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				aggregate = ledger.NewStockAggregate(tenantID, productID)
			} else {
				return fmt.Errorf("failed to load stock aggregate: %w", err)
			}
		}
		actual, err := repos.LineRepo().SumRemainderByProduct(ctx, tenantID, productID)
		if err != nil {
			return fmt.Errorf("failed to sum ledger remainders: %w", err)
		}

		before := aggregate.Quantity
		delta := aggregate.Rebase(actual)
		if delta.IsZero() {
			return nil
		}
		if err := repos.AggregateRepo().Save(ctx, aggregate); err != nil {
			return fmt.Errorf("failed to save stock aggregate: %w", err)
		}
		correction = &AggregateCorrection{
			ProductID: productID,
			Before:    before,
			After:     aggregate.Quantity,
			Delta:     delta,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return correction, nil
}

// reconcileCost checks the tenant-wide value identity:
// received value - applied allocation cost = remaining ledger value
func (s *ReconciliationService) reconcileCost(ctx context.Context, tenantID uuid.UUID, summary *AuditSummary) error {
	receivedValue, err := s.lineRepo.SumReceivedValue(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to sum received value: %w", err)
	}
	appliedCost, err := s.trailRepo.SumAppliedCost(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to sum applied allocation cost: %w", err)
	}
	remainderValue, err := s.lineRepo.SumRemainderValue(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to sum remainder value: %w", err)
	}

	expected := receivedValue.Sub(appliedCost)
	summary.Cost = CostReconciliation{
		ReceivedValue:          receivedValue,
		AppliedAllocationCost:  appliedCost,
		ExpectedRemainderValue: expected,
		ActualRemainderValue:   remainderValue,
		Diff:                   remainderValue.Sub(expected),
	}
	return nil
}
