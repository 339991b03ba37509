package handler

import (
	"github.com/gin-gonic/gin"
	appstock "github.com/retailpos/backend/internal/application/stock"
)

// ReconciliationHandler exposes the ledger audit over HTTP
type ReconciliationHandler struct {
	BaseHandler
	reconciliationService *appstock.ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(service *appstock.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationService: service}
}

// Run audits the tenant's ledger and rebuilds drifted aggregates. Invalid
// lines and trail mismatches are reported, never repaired.
// POST /api/v1/stock/reconciliation
func (h *ReconciliationHandler) Run(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant context")
		return
	}

	summary, err := h.reconciliationService.Run(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, summary)
}
