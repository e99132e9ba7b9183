package gemini

import "strings"

// supportedKeys is the OpenAPI subset generateContent accepts in responseSchema.
var supportedKeys = map[string]struct{}{
	"description": {}, "enum": {}, "format": {}, "items": {}, "maximum": {}, "minimum": {},
	"maxItems": {}, "minItems": {}, "nullable": {}, "properties": {}, "required": {},
}

// ToResponseSchema converts a JSON-Schema map into Gemini's responseSchema dialect:
// upper-case types, ["T","null"] becomes {type:T, nullable:true}, unsupported keywords are dropped.
func ToResponseSchema(s map[string]any) map[string]any {
	if s == nil {
		return nil
	}
	out := make(map[string]any, len(s))
	for k, v := range s {
		switch k {
		case "type":
			typ, nullable := convertType(v)
			if typ != "" {
				out["type"] = typ
			}
			if nullable {
				out["nullable"] = true
			}
		case "properties":
			props, ok := v.(map[string]any)
			if !ok {
				continue
			}
			converted := make(map[string]any, len(props))
			for name, p := range props {
				if pm, ok := p.(map[string]any); ok {
					converted[name] = ToResponseSchema(pm)
				}
			}
			out["properties"] = converted
		case "items":
			if im, ok := v.(map[string]any); ok {
				out["items"] = ToResponseSchema(im)
			}
		default:
			if _, ok := supportedKeys[k]; ok {
				out[k] = v
			}
		}
	}
	return out
}

func convertType(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.ToUpper(t), false
	case []string:
		return pickType(t)
	case []any:
		names := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				names = append(names, s)
			}
		}
		return pickType(names)
	}
	return "", false
}

func pickType(names []string) (string, bool) {
	var typ string
	nullable := false
	for _, n := range names {
		if n == "null" {
			nullable = true
			continue
		}
		if typ == "" {
			typ = strings.ToUpper(n)
		}
	}
	return typ, nullable
}
