package llm

import "github.com/joseph-ayodele/billguard/constants"

const (
	AnalysisSchemaName = "bill_analysis"
	DisputeSchemaName  = "dispute_guide"
)

// BuildAnalysisJSONSchema returns the JSON-Schema (draft 2020-12 subset) for a bill analysis.
// We pass it to the provider as a structured output constraint and also validate locally with it.
func BuildAnalysisJSONSchema() map[string]any {
	issue := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":               map[string]any{"type": "string", "minLength": 1, "description": "Short title of the billing issue, e.g. 'Duplicate Charge'."},
			"description":         map[string]any{"type": "string", "description": "Why this might be an error."},
			"estimatedOvercharge": map[string]any{"type": "number", "description": "Estimated overcharge in the bill's currency."},
			"category":            map[string]any{"type": "string", "enum": constants.AsStringSlice()},
			"severity":            map[string]any{"type": "string", "enum": constants.SeverityValues()},
		},
		"required":             []string{"title", "description", "estimatedOvercharge", "category", "severity"},
		"additionalProperties": false,
	}

	insurance := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"detectedProvider":      nullable("string", "Insurance company printed on the bill."),
			"policyNumber":          nullable("string", "Policy or member number."),
			"claimedAmount":         nullable("number", "Amount claimed from the insurer."),
			"coveredAmount":         nullable("number", "Amount the insurer covered."),
			"patientResponsibility": nullable("number", "Amount left for the patient to pay."),
			"status":                map[string]any{"type": "string", "enum": constants.InsuranceStatusValues()},
		},
		"required":             []string{"status"},
		"additionalProperties": false,
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"hospitalName":            map[string]any{"type": "string", "minLength": 1, "description": "Name of the hospital or medical facility."},
			"dateOfService":           map[string]any{"type": "string", "description": "Date of the medical service (YYYY-MM-DD)."},
			"currency":                map[string]any{"type": "string", "minLength": 1, "description": "Currency code, e.g. PKR."},
			"locale":                  map[string]any{"type": "string", "description": "Locale for number formatting, e.g. en-PK."},
			"totalAmount":             map[string]any{"type": "number", "description": "Total billed amount found on the document."},
			"insurance":               insurance,
			"confidenceScore":         map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"summary":                 map[string]any{"type": "string", "description": "A brief 2-sentence summary of the bill."},
			"verificationMethodology": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"issues":                  map[string]any{"type": "array", "items": issue},
		},
		"required":             []string{"hospitalName", "totalAmount", "issues", "summary", "currency", "insurance", "verificationMethodology"},
		"additionalProperties": false,
	}
}

// BuildDisputeJSONSchema returns the schema for a drafted dispute letter.
func BuildDisputeJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"letter": map[string]any{"type": "string", "minLength": 1},
			"steps":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required":             []string{"letter", "steps"},
		"additionalProperties": false,
	}
}

func nullable(typ, desc string) map[string]any {
	return map[string]any{
		"type":        []string{typ, "null"},
		"description": desc,
	}
}
