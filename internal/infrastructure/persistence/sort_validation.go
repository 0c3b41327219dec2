package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
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

// CommonSortFields contains fields common to most entities
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// SessionSortFields contains allowed sort fields for reconciliation sessions
var SessionSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"property_id":  true,
	"period_id":    true,
	"status":       true,
	"generation":   true,
	"started_at":   true,
	"completed_at": true,
}

// MatchSortFields contains allowed sort fields for matches
var MatchSortFields = map[string]bool{
	"id":                true,
	"created_at":        true,
	"updated_at":        true,
	"match_type":        true,
	"confidence":        true,
	"amount_difference": true,
	"tier":              true,
	"status":            true,
}

// DiscrepancySortFields contains allowed sort fields for discrepancies
var DiscrepancySortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"type":       true,
	"severity":   true,
	"amount":     true,
	"status":     true,
}

// RuleSortFields contains allowed sort fields for calculated rules
var RuleSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"rule_id":    true,
	"version":    true,
	"name":       true,
	"severity":   true,
	"active":     true,
}

// RecordSortFields contains allowed sort fields for financial records
var RecordSortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"document_type": true,
	"account_code":  true,
	"account_name":  true,
	"amount":        true,
}
