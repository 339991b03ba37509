package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appstock "github.com/retailpos/backend/internal/application/stock"
	"github.com/retailpos/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupReconciliationTestHandler() (*ReconciliationHandler, *mockReceiptLineRepository, *mockAllocationTrailRepository, *mockStockAggregateRepository) {
	gin.SetMode(gin.TestMode)

	lineRepo := newMockReceiptLineRepository()
	trailRepo := newMockAllocationTrailRepository()
	aggRepo := newMockStockAggregateRepository()

	txScope := appstock.NewNoOpTransactionScope(lineRepo, trailRepo, aggRepo)
	service := appstock.NewReconciliationService(txScope, lineRepo, trailRepo, aggRepo, nil)
	return NewReconciliationHandler(service), lineRepo, trailRepo, aggRepo
}

func TestReconciliationHandler_Run_CleanLedger(t *testing.T) {
	handler, lineRepo, _, aggRepo := setupReconciliationTestHandler()
	productID := uuid.New()

	seedReceiptLine(t, lineRepo, aggRepo, productID, "50", "10.00", time.Now())

	w, c := newJSONRequest(t, http.MethodPost, "/stock/reconciliation", nil)

	handler.Run(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, testTenantID.String(), data["tenant_id"])
	assert.Empty(t, data["invalid_lines"])
	assert.Empty(t, data["trail_mismatches"])
	assert.Empty(t, data["aggregate_corrections"])
}

func TestReconciliationHandler_Run_CorrectsDriftedAggregate(t *testing.T) {
	handler, lineRepo, _, aggRepo := setupReconciliationTestHandler()
	productID := uuid.New()

	seedReceiptLine(t, lineRepo, aggRepo, productID, "50", "10.00", time.Now())

	// Drift the cached total away from the ledger
	key := aggregateKey(testTenantID, productID)
	agg := aggRepo.aggregates[key]
	agg.Quantity = decimal.NewFromInt(44)
	aggRepo.aggregates[key] = agg

	w, c := newJSONRequest(t, http.MethodPost, "/stock/reconciliation", nil)

	handler.Run(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	corrections := data["aggregate_corrections"].([]interface{})
	require.Len(t, corrections, 1)
	correction := corrections[0].(map[string]interface{})
	assert.Equal(t, "44", correction["before"])
	assert.Equal(t, "50", correction["after"])

	// Aggregate row is actually repaired
	fixed := aggRepo.aggregates[key]
	assert.True(t, fixed.Quantity.Equal(decimal.NewFromInt(50)))
}

func TestReconciliationHandler_Run_MissingTenant(t *testing.T) {
	handler, _, _, _ := setupReconciliationTestHandler()

	w, c := newJSONRequest(t, http.MethodPost, "/stock/reconciliation", nil)
	c.Request.Header.Del("X-Tenant-ID")

	handler.Run(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
