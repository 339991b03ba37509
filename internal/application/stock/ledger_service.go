package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/ledger"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService handles stock consumption against the receipt line ledger.
// Every mutation runs inside a transaction scope; read operations go
// through the plain repositories without locks.
type LedgerService struct {
	txScope        TransactionScope
	lineRepo       ledger.ReceiptLineRepository
	trailRepo      ledger.AllocationTrailRepository
	aggregateRepo  ledger.StockAggregateRepository
	allocator      *ledger.FIFOAllocator
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	txScope TransactionScope,
	lineRepo ledger.ReceiptLineRepository,
	trailRepo ledger.AllocationTrailRepository,
	aggregateRepo ledger.StockAggregateRepository,
	logger *zap.Logger,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		txScope:       txScope,
		lineRepo:      lineRepo,
		trailRepo:     trailRepo,
		aggregateRepo: aggregateRepo,
		allocator:     ledger.NewFIFOAllocator(),
		logger:        logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// log carries request and tenant correlation fields from the context
// into service log entries
func (s *LedgerService) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}

// ReceiveStock appends a receipt line to the ledger and bumps the cached
// per-product total by the received quantity.
func (s *LedgerService) ReceiveStock(ctx context.Context, tenantID uuid.UUID, req ReceiveStockRequest) (*ReceiptLineResponse, error) {
	receivedAt := timeOrZero(req.ReceivedAt)
	line, err := ledger.NewReceiptLine(tenantID, req.ProductID, req.Quantity, req.UnitCost, receivedAt)
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.LineRepo().Save(ctx, line); err != nil {
			return fmt.Errorf("failed to save receipt line: %w", err)
		}

		aggregate, err := s.lockOrCreateAggregate(ctx, repos, tenantID, req.ProductID)
		if err != nil {
			return err
		}
		if err := aggregate.ApplyDelta(req.Quantity); err != nil {
			return err
		}
		if err := repos.AggregateRepo().Save(ctx, aggregate); err != nil {
			return fmt.Errorf("failed to save stock aggregate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, ledger.NewStockReceivedEvent(line))
	s.log(ctx).Info("stock received",
		zap.String("tenant_id", tenantID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.String("line_id", line.ID.String()),
		zap.String("quantity", req.Quantity.String()))

	return toReceiptLineResponse(line), nil
}

// Allocate consumes the requested quantity from the oldest receipt lines
// first and records the deductions as an allocation trail. The operation
// is all-or-nothing: a shortage leaves the ledger untouched and surfaces
// as an InsufficientStockError.
func (s *LedgerService) Allocate(ctx context.Context, tenantID uuid.UUID, req AllocateRequest) (*AllocationResponse, error) {
	if req.SaleLineID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Sale line reference is required")
	}

	var trail *ledger.AllocationTrail
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		// Row locks are taken in FIFO order so concurrent allocations for
		// the same product serialize instead of deadlocking.
		lines, err := repos.LineRepo().FindActiveByProductForUpdate(ctx, tenantID, req.ProductID)
		if err != nil {
			return fmt.Errorf("failed to load receipt lines: %w", err)
		}

		plan, err := s.allocator.Plan(req.Quantity, lines)
		if err != nil {
			return err
		}

		byID := make(map[uuid.UUID]*ledger.ReceiptLine, len(lines))
		for i := range lines {
			byID[lines[i].ID] = &lines[i]
		}

		touched := make([]ledger.ReceiptLine, 0, len(plan.Consumptions))
		for _, consumption := range plan.Consumptions {
			line, ok := byID[consumption.ReceiptLineID]
			if !ok {
				return shared.NewDomainError("INVALID_STATE", "Planned receipt line disappeared during allocation")
			}
			if err := line.Consume(consumption.Quantity); err != nil {
				return err
			}
			touched = append(touched, *line)
		}
		if err := repos.LineRepo().SaveAll(ctx, touched); err != nil {
			return fmt.Errorf("failed to save receipt lines: %w", err)
		}

		trail = ledger.NewAllocationTrail(tenantID, req.ProductID, req.SaleLineID, plan)
		if err := repos.TrailRepo().Save(ctx, trail); err != nil {
			return fmt.Errorf("failed to save allocation trail: %w", err)
		}

		aggregate, err := s.lockOrCreateAggregate(ctx, repos, tenantID, req.ProductID)
		if err != nil {
			return err
		}
		if err := aggregate.ApplyDelta(req.Quantity.Neg()); err != nil {
			return err
		}
		if err := repos.AggregateRepo().Save(ctx, aggregate); err != nil {
			return fmt.Errorf("failed to save stock aggregate: %w", err)
		}
		return nil
	})
	if err != nil {
		var insufficientErr *ledger.InsufficientStockError
		if errors.As(err, &insufficientErr) {
			s.log(ctx).Warn("allocation rejected, insufficient stock",
				zap.String("tenant_id", tenantID.String()),
				zap.String("product_id", req.ProductID.String()),
				zap.String("requested", insufficientErr.Requested.String()),
				zap.String("shortage", insufficientErr.Shortage.String()))
		}
		return nil, err
	}

	s.publishDomainEvents(ctx, trail)
	s.log(ctx).Info("stock allocated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.String("trail_id", trail.ID.String()),
		zap.String("sale_line_id", req.SaleLineID),
		zap.String("quantity", req.Quantity.String()),
		zap.String("total_cost", trail.TotalCost.String()))

	return toAllocationResponse(trail), nil
}

// Simulate plans an allocation without performing any writes. An
// infeasible request is a normal response, not an error.
func (s *LedgerService) Simulate(ctx context.Context, tenantID uuid.UUID, req SimulateRequest) (*SimulationResponse, error) {
	lines, err := s.lineRepo.FindActiveByProduct(ctx, tenantID, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt lines: %w", err)
	}

	plan, err := s.allocator.Plan(req.Quantity, lines)
	if err != nil {
		var insufficientErr *ledger.InsufficientStockError
		if errors.As(err, &insufficientErr) {
			return &SimulationResponse{
				ProductID:           req.ProductID,
				Requested:           req.Quantity,
				Feasible:            false,
				Shortage:            insufficientErr.Shortage,
				TotalCost:           decimal.Zero,
				WeightedAverageCost: decimal.Zero,
				Entries:             []AllocationEntryResponse{},
			}, nil
		}
		return nil, err
	}

	return toSimulationResponse(req.ProductID, req.Quantity, plan), nil
}

// Reverse undoes an applied allocation by restoring each entry's quantity
// to its receipt line. Reversing an already reversed trail, or a trail
// whose restore would push a line past its received quantity, fails with
// a StaleTrailError and changes nothing.
func (s *LedgerService) Reverse(ctx context.Context, tenantID, trailID uuid.UUID) (*AllocationResponse, error) {
	var trail *ledger.AllocationTrail
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		trail, err = repos.TrailRepo().FindByIDForUpdate(ctx, tenantID, trailID)
		if err != nil {
			return err
		}
		if !trail.IsApplied() {
			return ledger.NewStaleTrailError(trail.ID, "trail is already reversed")
		}

		ids := make([]uuid.UUID, len(trail.Entries))
		for i, entry := range trail.Entries {
			ids[i] = entry.ReceiptLineID
		}
		lines, err := repos.LineRepo().FindByIDsForUpdate(ctx, tenantID, ids)
		if err != nil {
			return fmt.Errorf("failed to load receipt lines: %w", err)
		}
		byID := make(map[uuid.UUID]*ledger.ReceiptLine, len(lines))
		for i := range lines {
			byID[lines[i].ID] = &lines[i]
		}

		touched := make([]ledger.ReceiptLine, 0, len(trail.Entries))
		for _, entry := range trail.Entries {
			line, ok := byID[entry.ReceiptLineID]
			if !ok {
				return ledger.NewStaleTrailError(trail.ID, "receipt line referenced by trail no longer exists")
			}
			if err := line.Restore(entry.Quantity); err != nil {
				var domainErr *shared.DomainError
				if errors.As(err, &domainErr) && domainErr.Code == "RESTORE_EXCEEDS_RECEIVED" {
					return ledger.NewStaleTrailError(trail.ID, "restore would exceed a line's received quantity")
				}
				return err
			}
			touched = append(touched, *line)
		}
		if err := repos.LineRepo().SaveAll(ctx, touched); err != nil {
			return fmt.Errorf("failed to save receipt lines: %w", err)
		}

		if err := trail.MarkReversed(); err != nil {
			return err
		}
		if err := repos.TrailRepo().Save(ctx, trail); err != nil {
			return fmt.Errorf("failed to save allocation trail: %w", err)
		}

		aggregate, err := s.lockOrCreateAggregate(ctx, repos, tenantID, trail.ProductID)
		if err != nil {
			return err
		}
		if err := aggregate.ApplyDelta(trail.Requested); err != nil {
			return err
		}
		if err := repos.AggregateRepo().Save(ctx, aggregate); err != nil {
			return fmt.Errorf("failed to save stock aggregate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishDomainEvents(ctx, trail)
	s.log(ctx).Info("allocation reversed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("trail_id", trail.ID.String()),
		zap.String("quantity", trail.Requested.String()))

	return toAllocationResponse(trail), nil
}

// GetTrail returns an allocation trail with its entries
func (s *LedgerService) GetTrail(ctx context.Context, tenantID, trailID uuid.UUID) (*AllocationResponse, error) {
	trail, err := s.trailRepo.FindByID(ctx, tenantID, trailID)
	if err != nil {
		return nil, err
	}
	return toAllocationResponse(trail), nil
}

// ListTrailsBySaleLine returns the trails recorded for a sale line reference
func (s *LedgerService) ListTrailsBySaleLine(ctx context.Context, tenantID uuid.UUID, saleLineID string) ([]AllocationResponse, error) {
	trails, err := s.trailRepo.FindBySaleLine(ctx, tenantID, saleLineID)
	if err != nil {
		return nil, err
	}
	out := make([]AllocationResponse, 0, len(trails))
	for i := range trails {
		out = append(out, *toAllocationResponse(&trails[i]))
	}
	return out, nil
}

// CheckAvailability reports whether a quantity can currently be served
func (s *LedgerService) CheckAvailability(ctx context.Context, tenantID, productID uuid.UUID, requested decimal.Decimal) (*AvailabilityResponse, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Requested quantity must be positive")
	}
	lines, err := s.lineRepo.FindActiveByProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt lines: %w", err)
	}
	return toAvailabilityResponse(ledger.BuildAvailabilityReport(productID, requested, lines)), nil
}

// GetCostInfo summarizes the cost structure of a product's remaining stock
func (s *LedgerService) GetCostInfo(ctx context.Context, tenantID, productID uuid.UUID) (*CostInfoResponse, error) {
	lines, err := s.lineRepo.FindActiveByProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt lines: %w", err)
	}
	return toCostInfoResponse(ledger.BuildCostSummary(productID, lines)), nil
}

// ListReceiptLines returns a product's receipt lines regardless of status
func (s *LedgerService) ListReceiptLines(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]ReceiptLineResponse, error) {
	lines, err := s.lineRepo.FindByProduct(ctx, tenantID, productID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]ReceiptLineResponse, 0, len(lines))
	for i := range lines {
		out = append(out, *toReceiptLineResponse(&lines[i]))
	}
	return out, nil
}

// GetStockLevel returns the cached per-product total
func (s *LedgerService) GetStockLevel(ctx context.Context, tenantID, productID uuid.UUID) (*StockLevelResponse, error) {
	aggregate, err := s.aggregateRepo.FindByProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	return &StockLevelResponse{
		ProductID: aggregate.ProductID,
		Quantity:  aggregate.Quantity,
		UpdatedAt: aggregate.UpdatedAt,
		Version:   aggregate.Version,
	}, nil
}

// RetireLine marks a fully consumed receipt line as retired. A line still
// referenced by an applied trail cannot be retired because a later
// reversal would need to restore onto it.
func (s *LedgerService) RetireLine(ctx context.Context, tenantID, lineID uuid.UUID) (*ReceiptLineResponse, error) {
	var line *ledger.ReceiptLine
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		lines, err := repos.LineRepo().FindByIDsForUpdate(ctx, tenantID, []uuid.UUID{lineID})
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return shared.ErrNotFound
		}
		line = &lines[0]

		referencing, err := repos.TrailRepo().CountAppliedReferencingLine(ctx, tenantID, lineID)
		if err != nil {
			return fmt.Errorf("failed to count referencing trails: %w", err)
		}
		if referencing > 0 {
			return shared.NewDomainError("LINE_REFERENCED", "Cannot retire a line still referenced by applied allocations")
		}

		if err := line.Retire(); err != nil {
			return err
		}
		return repos.LineRepo().Save(ctx, line)
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).Info("receipt line retired",
		zap.String("tenant_id", tenantID.String()),
		zap.String("line_id", lineID.String()))
	return toReceiptLineResponse(line), nil
}

// RebuildAggregate recomputes a product's cached total from the ledger
// and overwrites the aggregate row. The returned delta is zero when the
// cache already matched the ledger.
func (s *LedgerService) RebuildAggregate(ctx context.Context, tenantID, productID uuid.UUID) (*RebuildResponse, error) {
	var result *RebuildResponse
	var rebuilt *ledger.StockAggregate
	var delta decimal.Decimal

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		aggregate, err := s.lockOrCreateAggregate(ctx, repos, tenantID, productID)
		if err != nil {
			return err
		}
		actual, err := repos.LineRepo().SumRemainderByProduct(ctx, tenantID, productID)
		if err != nil {
			return fmt.Errorf("failed to sum ledger remainders: %w", err)
		}

		before := aggregate.Quantity
		delta = aggregate.Rebase(actual)
		if err := repos.AggregateRepo().Save(ctx, aggregate); err != nil {
			return fmt.Errorf("failed to save stock aggregate: %w", err)
		}

		rebuilt = aggregate
		result = &RebuildResponse{
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

	if !delta.IsZero() {
		s.publishEvents(ctx, ledger.NewAggregateRebuiltEvent(rebuilt, result.Before, delta))
		s.log(ctx).Warn("stock aggregate drifted from ledger",
			zap.String("tenant_id", tenantID.String()),
			zap.String("product_id", productID.String()),
			zap.String("before", result.Before.String()),
			zap.String("after", result.After.String()),
			zap.String("delta", delta.String()))
	}
	return result, nil
}

// lockOrCreateAggregate loads the aggregate row under a row lock,
// creating it when the product has no cached total yet.
func (s *LedgerService) lockOrCreateAggregate(ctx context.Context, repos TransactionalRepositories, tenantID, productID uuid.UUID) (*ledger.StockAggregate, error) {
	aggregate, err := repos.AggregateRepo().FindByProductForUpdate(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ledger.NewStockAggregate(tenantID, productID), nil
		}
		return nil, fmt.Errorf("failed to load stock aggregate: %w", err)
	}
	return aggregate, nil
}

// publishDomainEvents publishes and clears an aggregate's pending events
func (s *LedgerService) publishDomainEvents(ctx context.Context, root shared.AggregateRoot) {
	if s.eventPublisher == nil || root == nil {
		return
	}
	events := root.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.log(ctx).Warn("failed to publish domain events", zap.Error(err))
		return
	}
	root.ClearDomainEvents()
}

// publishEvents publishes loose events not attached to an aggregate root
func (s *LedgerService) publishEvents(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.log(ctx).Warn("failed to publish domain events", zap.Error(err))
	}
}
