package stock

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/ledger"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// memLineRepo is an in-memory ReceiptLineRepository for service tests
type memLineRepo struct {
	mu      sync.Mutex
	lines   map[uuid.UUID]ledger.ReceiptLine
	nextSeq int64
}

func newMemLineRepo() *memLineRepo {
	return &memLineRepo{lines: make(map[uuid.UUID]ledger.ReceiptLine)}
}

func (r *memLineRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*ledger.ReceiptLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line, ok := r.lines[id]
	if !ok || line.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	out := line
	return &out, nil
}

func (r *memLineRepo) FindActiveByProduct(_ context.Context, tenantID, productID uuid.UUID) ([]ledger.ReceiptLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.ReceiptLine, 0)
	for _, line := range r.lines {
		if line.TenantID == tenantID && line.ProductID == productID && line.IsActive() && line.HasRemainder() {
			out = append(out, line)
		}
	}
	ledger.SortFIFO(out)
	return out, nil
}

func (r *memLineRepo) FindActiveByProductForUpdate(ctx context.Context, tenantID, productID uuid.UUID) ([]ledger.ReceiptLine, error) {
	return r.FindActiveByProduct(ctx, tenantID, productID)
}

func (r *memLineRepo) FindByIDsForUpdate(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]ledger.ReceiptLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.ReceiptLine, 0, len(ids))
	for _, id := range ids {
		if line, ok := r.lines[id]; ok && line.TenantID == tenantID {
			out = append(out, line)
		}
	}
	ledger.SortFIFO(out)
	return out, nil
}

func (r *memLineRepo) FindByProduct(_ context.Context, tenantID, productID uuid.UUID, _ shared.Filter) ([]ledger.ReceiptLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.ReceiptLine, 0)
	for _, line := range r.lines {
		if line.TenantID == tenantID && line.ProductID == productID {
			out = append(out, line)
		}
	}
	ledger.SortFIFO(out)
	return out, nil
}

func (r *memLineRepo) Save(_ context.Context, line *ledger.ReceiptLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if line.Sequence == 0 {
		r.nextSeq++
		line.Sequence = r.nextSeq
	}
	r.lines[line.ID] = *line
	return nil
}

func (r *memLineRepo) SaveAll(ctx context.Context, lines []ledger.ReceiptLine) error {
	for i := range lines {
		if err := r.Save(ctx, &lines[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *memLineRepo) SumRemainderByProduct(_ context.Context, tenantID, productID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, line := range r.lines {
		if line.TenantID == tenantID && line.ProductID == productID {
			total = total.Add(line.Remainder)
		}
	}
	return total, nil
}

func (r *memLineRepo) SumReceivedValue(_ context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, line := range r.lines {
		if line.TenantID == tenantID {
			total = total.Add(line.Received.Mul(line.UnitCost))
		}
	}
	return total, nil
}

func (r *memLineRepo) SumRemainderValue(_ context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, line := range r.lines {
		if line.TenantID == tenantID {
			total = total.Add(line.Remainder.Mul(line.UnitCost))
		}
	}
	return total, nil
}

func (r *memLineRepo) FindInvalid(_ context.Context, tenantID uuid.UUID) ([]ledger.ReceiptLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.ReceiptLine, 0)
	for _, line := range r.lines {
		if line.TenantID == tenantID && !line.IsConsistent() {
			out = append(out, line)
		}
	}
	return out, nil
}

func (r *memLineRepo) ListProductIDs(_ context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	out := make([]uuid.UUID, 0)
	for _, line := range r.lines {
		if line.TenantID == tenantID && !seen[line.ProductID] {
			seen[line.ProductID] = true
			out = append(out, line.ProductID)
		}
	}
	return out, nil
}

// memTrailRepo is an in-memory AllocationTrailRepository for service tests
type memTrailRepo struct {
	mu     sync.Mutex
	trails map[uuid.UUID]ledger.AllocationTrail
}

func newMemTrailRepo() *memTrailRepo {
	return &memTrailRepo{trails: make(map[uuid.UUID]ledger.AllocationTrail)}
}

func copyTrail(t ledger.AllocationTrail) ledger.AllocationTrail {
	entries := make([]ledger.TrailEntry, len(t.Entries))
	copy(entries, t.Entries)
	t.Entries = entries
	return t
}

func (r *memTrailRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*ledger.AllocationTrail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trail, ok := r.trails[id]
	if !ok || trail.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	out := copyTrail(trail)
	return &out, nil
}

func (r *memTrailRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.AllocationTrail, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r *memTrailRepo) FindBySaleLine(_ context.Context, tenantID uuid.UUID, saleLineID string) ([]ledger.AllocationTrail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.AllocationTrail, 0)
	for _, trail := range r.trails {
		if trail.TenantID == tenantID && trail.SaleLineID == saleLineID {
			out = append(out, copyTrail(trail))
		}
	}
	return out, nil
}

func (r *memTrailRepo) FindByTenant(_ context.Context, tenantID uuid.UUID) ([]ledger.AllocationTrail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.AllocationTrail, 0)
	for _, trail := range r.trails {
		if trail.TenantID == tenantID {
			out = append(out, copyTrail(trail))
		}
	}
	return out, nil
}

func (r *memTrailRepo) CountAppliedReferencingLine(_ context.Context, tenantID, lineID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, trail := range r.trails {
		if trail.TenantID != tenantID || !trail.IsApplied() {
			continue
		}
		for _, entry := range trail.Entries {
			if entry.ReceiptLineID == lineID {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *memTrailRepo) Save(_ context.Context, trail *ledger.AllocationTrail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trails[trail.ID] = copyTrail(*trail)
	return nil
}

func (r *memTrailRepo) SumAppliedCost(_ context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, trail := range r.trails {
		if trail.TenantID == tenantID && trail.IsApplied() {
			total = total.Add(trail.TotalCost)
		}
	}
	return total, nil
}

// memAggregateRepo is an in-memory StockAggregateRepository for service tests
type memAggregateRepo struct {
	mu         sync.Mutex
	aggregates map[string]ledger.StockAggregate
}

func newMemAggregateRepo() *memAggregateRepo {
	return &memAggregateRepo{aggregates: make(map[string]ledger.StockAggregate)}
}

func aggKey(tenantID, productID uuid.UUID) string {
	return tenantID.String() + "/" + productID.String()
}

func (r *memAggregateRepo) FindByProduct(_ context.Context, tenantID, productID uuid.UUID) (*ledger.StockAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg, ok := r.aggregates[aggKey(tenantID, productID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := agg
	return &out, nil
}

func (r *memAggregateRepo) FindByProductForUpdate(ctx context.Context, tenantID, productID uuid.UUID) (*ledger.StockAggregate, error) {
	return r.FindByProduct(ctx, tenantID, productID)
}

func (r *memAggregateRepo) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]ledger.StockAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.StockAggregate, 0)
	for _, agg := range r.aggregates {
		if agg.TenantID == tenantID {
			out = append(out, agg)
		}
	}
	return out, nil
}

func (r *memAggregateRepo) ListTenantIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	out := make([]uuid.UUID, 0)
	for _, agg := range r.aggregates {
		if !seen[agg.TenantID] {
			seen[agg.TenantID] = true
			out = append(out, agg.TenantID)
		}
	}
	return out, nil
}

func (r *memAggregateRepo) Save(_ context.Context, aggregate *ledger.StockAggregate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregates[aggKey(aggregate.TenantID, aggregate.ProductID)] = *aggregate
	return nil
}

// capturingPublisher records published events for assertions
type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *capturingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *capturingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

var _ ledger.ReceiptLineRepository = (*memLineRepo)(nil)
var _ ledger.AllocationTrailRepository = (*memTrailRepo)(nil)
var _ ledger.StockAggregateRepository = (*memAggregateRepo)(nil)
var _ shared.EventPublisher = (*capturingPublisher)(nil)
