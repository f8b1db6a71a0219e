package textscan

import (
	"encoding/json"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// DecodeValue decodes a JSON-like literal. Strict JSON is tried first, then
// a repaired form (single quotes swapped for double quotes, trailing commas
// dropped), then a YAML flow literal, which accepts unquoted keys and
// single-quoted strings. Numbers always decode as float64 so callers see one
// numeric type whichever strategy succeeded.
func DecodeValue(raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v, true
	}

	repaired := trailingCommaRe.ReplaceAllString(raw, "$1")
	if !strings.Contains(repaired, `"`) {
		repaired = strings.ReplaceAll(repaired, "'", `"`)
	}
	if err := json.Unmarshal([]byte(repaired), &v); err == nil {
		return v, true
	}

	if raw[0] != '{' && raw[0] != '[' {
		return nil, false
	}
	var y any
	if err := yaml.Unmarshal([]byte(raw), &y); err != nil {
		return nil, false
	}
	return normalizeYAML(y), true
}

// DecodeObject decodes a JSON-like object literal with DecodeValue.
// Payloads that are not objects are rejected.
func DecodeObject(raw string) (map[string]any, bool) {
	v, ok := DecodeValue(raw)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeYAML(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			ks, ok := k.(string)
			if !ok {
				ks = strings.TrimSpace(toString(k))
			}
			m[ks] = normalizeYAML(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = normalizeYAML(e)
		}
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}

func toString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.Trim(string(b), `"`)
}
