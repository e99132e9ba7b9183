package constants

import "strings"

// BillStatus is the canonical status stored on a bill record.
type BillStatus string

// Stable values (persisted and sent over the wire as-is).
const (
	BillStatusAnalyzing      BillStatus = "Analyzing"
	BillStatusActionRequired BillStatus = "Action Required" // at least one issue was flagged
	BillStatusResolved       BillStatus = "Resolved"
	BillStatusUnderReview    BillStatus = "Under Review"
	BillStatusClean          BillStatus = "Clean" // no issues
)

// InsuranceStatus is how the bill reports the insurance claim.
type InsuranceStatus string

const (
	InsuranceNotFound   InsuranceStatus = "Not Found"
	InsurancePending    InsuranceStatus = "Pending"
	InsuranceApplied    InsuranceStatus = "Applied"
	InsuranceRejected   InsuranceStatus = "Rejected"
	InsuranceNotCovered InsuranceStatus = "Not Covered"
)

var allInsuranceStatuses = []InsuranceStatus{
	InsuranceNotFound,
	InsurancePending,
	InsuranceApplied,
	InsuranceRejected,
	InsuranceNotCovered,
}

// InsuranceStatusValues returns the enum as strings, in schema order.
func InsuranceStatusValues() []string {
	out := make([]string, len(allInsuranceStatuses))
	for i, s := range allInsuranceStatuses {
		out[i] = string(s)
	}
	return out
}

// CanonicalizeInsuranceStatus maps loose model output ("not_found", "APPLIED") onto the enum.
func CanonicalizeInsuranceStatus(input string) (InsuranceStatus, bool) {
	key := squash(input)
	if key == "" {
		return InsuranceNotFound, false
	}
	synonyms := map[string]InsuranceStatus{
		"none":        InsuranceNotFound,
		"notapplied":  InsuranceNotFound,
		"unknown":     InsuranceNotFound,
		"denied":      InsuranceRejected,
		"declined":    InsuranceRejected,
		"covered":     InsuranceApplied,
		"processing":  InsurancePending,
		"uncovered":   InsuranceNotCovered,
		"notincluded": InsuranceNotCovered,
	}
	if s, ok := synonyms[key]; ok {
		return s, true
	}
	for _, s := range allInsuranceStatuses {
		if key == squash(string(s)) {
			return s, true
		}
	}
	return InsuranceNotFound, false
}

// squash lowercases and strips spaces, underscores and dashes.
func squash(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}
