package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns the defaultDir if the input is invalid or empty.
func ValidateSortOrder(orderDir, defaultDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" || normalized == "DESC" {
		return normalized
	}
	return defaultDir
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
// Sort fields end up interpolated into ORDER BY clauses, so anything outside the
// whitelist is rejected rather than escaped.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ReceiptLineSortFields contains allowed sort fields for receipt lines
var ReceiptLineSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"received_at": true,
	"sequence":    true,
	"received":    true,
	"remainder":   true,
	"unit_cost":   true,
	"status":      true,
}

// AllocationTrailSortFields contains allowed sort fields for allocation trails
var AllocationTrailSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"sale_line_id": true,
	"product_id":   true,
	"quantity":     true,
	"total_cost":   true,
	"status":       true,
	"reversed_at":  true,
}
