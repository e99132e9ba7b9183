package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/billguard/constants"
)

var (
	analysisKeys = map[string]struct{}{
		"hospitalName": {}, "dateOfService": {}, "currency": {}, "locale": {}, "totalAmount": {},
		"insurance": {}, "confidenceScore": {}, "issues": {}, "summary": {}, "verificationMethodology": {},
	}
	insuranceKeys = map[string]struct{}{
		"detectedProvider": {}, "policyNumber": {}, "claimedAmount": {}, "coveredAmount": {},
		"patientResponsibility": {}, "status": {},
	}
	issueKeys = map[string]struct{}{
		"title": {}, "description": {}, "estimatedOvercharge": {}, "category": {}, "severity": {},
	}
)

// NormalizeAnalysisJSON makes a model response friendlier to the strict schema without inventing data:
//   - trims strings, upper-cases currency
//   - coerces numeric strings ("PKR 12,500.00") to numbers
//   - rescales a 0..100 confidence to 0..1
//   - canonicalizes recognized spellings of category/severity/insurance status
//   - turns null lists into empty lists
//   - removes unknown keys
//
// Required fields that are missing stay missing, and unrecognized enum values stay as
// sent, so validation still rejects the response.
func NormalizeAnalysisJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	if m == nil {
		return nil, nil, fmt.Errorf("sanitize: response is not a JSON object")
	}

	var changed []string
	note := func(s string) { changed = append(changed, s) }

	dropUnknown(m, analysisKeys, "", note)

	for _, k := range []string{"hospitalName", "dateOfService", "locale", "summary"} {
		trimString(m, k)
	}
	if v, ok := m["currency"].(string); ok {
		m["currency"] = strings.ToUpper(strings.TrimSpace(v))
	}

	coerceNumber(m, "totalAmount", false, note)
	coerceNumber(m, "confidenceScore", false, note)
	if f, ok := m["confidenceScore"].(float64); ok && f > 1 && f <= 100 {
		m["confidenceScore"] = f / 100
		note("confidenceScore(percent)")
	}

	if ins, ok := m["insurance"].(map[string]any); ok {
		dropUnknown(ins, insuranceKeys, "insurance.", note)
		for _, k := range []string{"claimedAmount", "coveredAmount", "patientResponsibility"} {
			coerceNumber(ins, k, true, note)
		}
		for _, k := range []string{"detectedProvider", "policyNumber"} {
			if v, ok := ins[k].(string); ok {
				if s := strings.TrimSpace(v); s == "" || strings.EqualFold(s, "null") {
					ins[k] = nil
				} else {
					ins[k] = s
				}
			}
		}
		if v, ok := ins["status"].(string); ok {
			if st, ok := constants.CanonicalizeInsuranceStatus(v); ok && string(st) != v {
				ins["status"] = string(st)
				note("insurance.status")
			}
		}
	}

	if list, present := m["issues"]; present {
		switch t := list.(type) {
		case nil:
			m["issues"] = []any{}
			note("issues(null)")
		case []any:
			for i, it := range t {
				is, ok := it.(map[string]any)
				if !ok {
					continue
				}
				prefix := "issues[" + strconv.Itoa(i) + "]."
				dropUnknown(is, issueKeys, prefix, note)
				trimString(is, "title")
				trimString(is, "description")
				coerceNumber(is, "estimatedOvercharge", false, note)
				if is["estimatedOvercharge"] == nil {
					is["estimatedOvercharge"] = 0.0
				}
				if v, ok := is["category"].(string); ok {
					if cat, ok := constants.Canonicalize(v); ok && string(cat) != v {
						is["category"] = string(cat)
						note(prefix + "category")
					}
				}
				if v, ok := is["severity"].(string); ok {
					if sev, ok := constants.CanonicalizeSeverity(v); ok && string(sev) != v {
						is["severity"] = string(sev)
						note(prefix + "severity")
					}
				}
			}
		}
	}

	if v, present := m["verificationMethodology"]; present {
		switch t := v.(type) {
		case nil:
			m["verificationMethodology"] = []any{}
		case string:
			m["verificationMethodology"] = []any{strings.TrimSpace(t)}
			note("verificationMethodology(string)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Warn("llm.analyze.normalize_sanitize", "changed", changed)
	}
	return out, changed, nil
}

// NormalizeDisputeJSON trims the letter and accepts a single-string steps field.
func NormalizeDisputeJSON(raw []byte) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("sanitize: response is not a JSON object")
	}
	trimString(m, "letter")
	switch t := m["steps"].(type) {
	case nil:
		if _, present := m["steps"]; present {
			m["steps"] = []any{}
		}
	case string:
		m["steps"] = []any{strings.TrimSpace(t)}
	}
	for k := range maps.Clone(m) {
		if k != "letter" && k != "steps" {
			delete(m, k)
		}
	}
	return json.Marshal(m)
}

func dropUnknown(m map[string]any, allowed map[string]struct{}, prefix string, note func(string)) {
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			note(prefix + k + "(unknown)")
		}
	}
}

func trimString(m map[string]any, k string) {
	if v, ok := m[k].(string); ok {
		m[k] = strings.TrimSpace(v)
	}
}

// coerceNumber turns numeric strings into float64. When nullable, blanks become null; otherwise
// unparseable values are left alone for the validator to reject.
func coerceNumber(m map[string]any, k string, nullable bool, note func(string)) {
	v, ok := m[k]
	if !ok {
		return
	}
	s, isStr := v.(string)
	if !isStr {
		return
	}
	if f, ok := parseMoney(s); ok {
		m[k] = f
		note(k + "(string)")
		return
	}
	if nullable {
		m[k] = nil
		note(k + "(unparseable)")
	}
}

// parseMoney accepts "12,500.00", "PKR 1200", "Rs. 99.5" and "-30".
func parseMoney(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',' || r == ' ' || r == '\u00a0':
		default:
			if b.Len() > 0 {
				// letters after digits ("100 units") are not money
				return 0, false
			}
		}
	}
	clean := strings.TrimLeft(b.String(), ".")
	if clean == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
