package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Validate checks args against the descriptor and returns a copy with
// defaults filled in. The first violation is returned as a *ValidationError.
// Unknown arguments are passed through untouched.
func (d Descriptor) Validate(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args)+len(d.Params))
	for k, v := range args {
		out[k] = v
	}

	for _, p := range d.Params {
		v, present := out[p.Name]
		if !present || v == nil {
			if p.Required {
				return nil, NewValidationError(d.Name, p.Name, "required parameter is missing")
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}

		if err := checkType(p, v); err != nil {
			return nil, NewValidationError(d.Name, p.Name, err.Error())
		}
		if p.Required && p.Type == TypeString && strings.TrimSpace(v.(string)) == "" {
			return nil, NewValidationError(d.Name, p.Name, "required parameter is empty")
		}
		if len(p.Enum) > 0 {
			s := fmt.Sprint(v)
			if !slices.Contains(p.Enum, s) {
				return nil, NewValidationError(d.Name, p.Name,
					fmt.Sprintf("value %q is not one of [%s]", s, strings.Join(p.Enum, ", ")))
			}
		}
		if p.Minimum != nil || p.Maximum != nil {
			n, ok := toFloat(v)
			if ok && p.Minimum != nil && n < *p.Minimum {
				return nil, NewValidationError(d.Name, p.Name, fmt.Sprintf("value %v is below minimum %v", n, *p.Minimum))
			}
			if ok && p.Maximum != nil && n > *p.Maximum {
				return nil, NewValidationError(d.Name, p.Name, fmt.Sprintf("value %v is above maximum %v", n, *p.Maximum))
			}
		}
	}
	return out, nil
}

func checkType(p Param, v any) error {
	switch p.Type {
	case TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %s", describe(v))
		}
	case TypeInteger:
		n, ok := toFloat(v)
		if !ok || n != math.Trunc(n) {
			return fmt.Errorf("expected integer, got %s", describe(v))
		}
	case TypeNumber:
		if _, ok := toFloat(v); !ok {
			return fmt.Errorf("expected number, got %s", describe(v))
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected boolean, got %s", describe(v))
		}
	case TypeArray:
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("expected array, got %s", describe(v))
		}
	case TypeObject:
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %s", describe(v))
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func describe(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	if _, ok := toFloat(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// IntArg reads an integer argument, falling back to def.
func IntArg(args map[string]any, name string, def int) int {
	if n, ok := toFloat(args[name]); ok {
		return int(n)
	}
	return def
}

// StringArg reads a string argument.
func StringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

// BoolArg reads a boolean argument.
func BoolArg(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}
