package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appstock "github.com/retailpos/backend/internal/application/stock"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// IdempotencyKeyHeader carries the client-chosen key that suppresses
// duplicate delivery of ledger mutations.
const IdempotencyKeyHeader = "X-Idempotency-Key"

// StockHandler exposes the stock ledger over HTTP
type StockHandler struct {
	BaseHandler
	ledgerService    *appstock.LedgerService
	idempotencyStore shared.IdempotencyStore
	idempotencyCfg   shared.IdempotencyConfig
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(ledgerService *appstock.LedgerService) *StockHandler {
	return &StockHandler{
		ledgerService:  ledgerService,
		idempotencyCfg: shared.DefaultIdempotencyConfig(),
	}
}

// SetIdempotencyStore enables duplicate suppression for mutating endpoints
func (h *StockHandler) SetIdempotencyStore(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) {
	h.idempotencyStore = store
	h.idempotencyCfg = cfg
}

// checkIdempotency returns false when the request carries a key that was
// already processed. Requests without a key always pass.
func (h *StockHandler) checkIdempotency(c *gin.Context) bool {
	if h.idempotencyStore == nil {
		return true
	}
	key := c.GetHeader(IdempotencyKeyHeader)
	if key == "" {
		return true
	}
	isNew, err := h.idempotencyStore.MarkProcessed(c.Request.Context(), key, h.idempotencyCfg.TTL)
	if err != nil {
		// Store failures must not block trade. Proceed as if the key is new.
		return true
	}
	if !isNew {
		h.Conflict(c, "Request with this idempotency key was already processed")
		return false
	}
	return true
}

// ReceiveStock appends a receipt line to the ledger
// POST /api/v1/stock/receipts
func (h *StockHandler) ReceiveStock(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant context")
		return
	}

	var req appstock.ReceiveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		h.ValidationError(c, []dto.ValidationDetail{
			{Field: "quantity", Message: "Must be greater than zero"},
		})
		return
	}
	if req.UnitCost.IsNegative() {
		h.ValidationError(c, []dto.ValidationDetail{
			{Field: "unit_cost", Message: "Must not be negative"},
		})
		return
	}

	if !h.checkIdempotency(c) {
		return
	}

	line, err := h.ledgerService.ReceiveStock(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, line)
}

// Allocate consumes stock from the oldest receipt lines first
// POST /api/v1/stock/allocations
func (h *StockHandler) Allocate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant context")
		return
	}

	var req appstock.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		h.ValidationError(c, []dto.ValidationDetail{
			{Field: "quantity", Message: "Must be greater than zero"},
		})
		return
	}

	if !h.checkIdempotency(c) {
		return
	}

	trail, err := h.ledgerService.Allocate(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, trail)
}

// Simulate plans an allocation without writing anything
// POST /api/v1/stock/allocations/simulate
func (h *StockHandler) Simulate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant context")
		return
	}

	var req appstock.SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		h.ValidationError(c, []dto.ValidationDetail{
			{Field: "quantity", Message: "Must be greater than zero"},
		})
		return
	}

	result, err := h.ledgerService.Simulate(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// Reverse undoes an applied allocation
// POST /api/v1/stock/allocations/:id/reverse
func (h *StockHandler) Reverse(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant context")
		return
	}

	trailID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid trail ID format")
		return
	}

	if !h.checkIdempotency(c) {
		return
	}

	trail, err := h.ledgerService.Reverse(c.Request.Context(), tenantID, trailID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, trail)
}

// GetTrail returns an allocation trail with its entries
// GET /api/v1/stock/allocations/:id
func (h *StockHandler) GetTrail(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant context")
		return
	}

	trailID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid trail ID format")
		return
	}

	trail, err := h.ledgerService.GetTrail(c.Request.Context(), tenantID, trailID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, trail)
}

// ListTrailsBySaleLine returns trails recorded for a sale line reference
// GET /api/v1/stock/allocations?sale_line_id=...
func (h *StockHandler) ListTrailsBySaleLine(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant context")
		return
	}

	saleLineID := c.Query("sale_line_id")
	if saleLineID == "" {
		h.BadRequest(c, "sale_line_id query parameter is required")
		return
	}

	trails, err := h.ledgerService.ListTrailsBySaleLine(c.Request.Context(), tenantID, saleLineID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, trails)
}

// CheckAvailability reports whether a quantity can currently be served
// GET /api/v1/stock/products/:productId/availability?quantity=...
func (h *StockHandler) CheckAvailability(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant context")
		return
	}

	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	quantity, err := decimal.NewFromString(c.Query("quantity"))
	if err != nil {
		h.BadRequest(c, "Invalid quantity parameter")
		return
	}

	report, err := h.ledgerService.CheckAvailability(c.Request.Context(), tenantID, productID, quantity)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, report)
}

// GetCostInfo summarizes the cost structure of the remaining stock
// GET /api/v1/stock/products/:productId/cost
func (h *StockHandler) GetCostInfo(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant context")
		return
	}

	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	info, err := h.ledgerService.GetCostInfo(c.Request.Context(), tenantID, productID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, info)
}

// ListReceiptLines returns a product's receipt lines
// GET /api/v1/stock/products/:productId/receipts
func (h *StockHandler) ListReceiptLines(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant context")
		return
	}

	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	filter := shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
	}

	lines, err := h.ledgerService.ListReceiptLines(c.Request.Context(), tenantID, productID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, lines)
}

// GetStockLevel returns the cached per-product total
// GET /api/v1/stock/products/:productId/level
func (h *StockHandler) GetStockLevel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant context")
		return
	}

	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	level, err := h.ledgerService.GetStockLevel(c.Request.Context(), tenantID, productID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, level)
}

// RetireLine marks a fully consumed receipt line as retired
// POST /api/v1/stock/receipts/:id/retire
func (h *StockHandler) RetireLine(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant context")
		return
	}

	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid line ID format")
		return
	}

	line, err := h.ledgerService.RetireLine(c.Request.Context(), tenantID, lineID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, line)
}

// RebuildAggregate recomputes a product's cached total from the ledger
// POST /api/v1/stock/products/:productId/rebuild
func (h *StockHandler) RebuildAggregate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant context")
		return
	}

	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	result, err := h.ledgerService.RebuildAggregate(c.Request.Context(), tenantID, productID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}
