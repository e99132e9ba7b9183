package constants

// Category is the kind of billing anomaly an issue describes.
type Category string

const (
	Duplicate      Category = "Duplicate"
	Upcoding       Category = "Upcoding"
	Unbundling     Category = "Unbundling"
	Inflation      Category = "Inflation"
	InsuranceError Category = "Insurance Error"
	Other          Category = "Other"
)

var allCategories = []Category{
	Duplicate,
	Upcoding,
	Unbundling,
	Inflation,
	InsuranceError,
	Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a free-form category onto the enum. Unknown input yields Other.
func Canonicalize(input string) (Category, bool) {
	normalized := squash(input)
	if normalized == "" {
		return Other, false
	}

	synonyms := map[string]Category{
		"duplicatecharge":  Duplicate,
		"doublebilling":    Duplicate,
		"overcoding":       Upcoding,
		"unbundled":        Unbundling,
		"overpricing":      Inflation,
		"excessivepricing": Inflation,
		"pricegouging":     Inflation,
		"balancebilling":   InsuranceError,
		"insurance":        InsuranceError,
		"coverageerror":    InsuranceError,
	}
	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == squash(string(cat)) {
			return cat, true
		}
	}
	return Other, false
}

// Severity ranks how strongly an issue should be contested.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

var allSeverities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

func SeverityValues() []string {
	out := make([]string, len(allSeverities))
	for i, s := range allSeverities {
		out[i] = string(s)
	}
	return out
}

// CanonicalizeSeverity folds case and a few common aliases; unknown input yields Medium.
func CanonicalizeSeverity(input string) (Severity, bool) {
	switch squash(input) {
	case "high", "critical", "severe":
		return SeverityHigh, true
	case "medium", "moderate":
		return SeverityMedium, true
	case "low", "minor":
		return SeverityLow, true
	}
	return SeverityMedium, false
}
