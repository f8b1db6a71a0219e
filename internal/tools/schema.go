package tools

import (
	"reflect"
	"strconv"
	"strings"
)

// BuildParams derives parameter descriptors from an argument struct.
// Supported struct tags:
//   - json: parameter name
//   - jsonschema: description=<text>, required, enum=<a|b>, default=<v>,
//     minimum=<n>, maximum=<n>
//
// Example:
//
//	type Args struct {
//	    Path  string `json:"path" jsonschema:"description=File path,required"`
//	    Limit int    `json:"limit" jsonschema:"minimum=1,maximum=100,default=20"`
//	}
//	params := BuildParams(Args{})
func BuildParams(v any) []Param {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	params := make([]Param, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" {
			head, _, _ := strings.Cut(tag, ",")
			if head == "-" {
				continue
			}
			if head != "" {
				name = head
			}
		}

		p := Param{Name: name, Type: typeOf(field.Type)}
		if tag := field.Tag.Get("jsonschema"); tag != "" {
			applyTag(&p, tag)
		}
		params = append(params, p)
	}
	return params
}

func typeOf(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Bool:
		return TypeBoolean
	case reflect.Slice, reflect.Array:
		return TypeArray
	default:
		return TypeObject
	}
}

// applyTag parses a jsonschema tag into p. Descriptions may not contain commas.
func applyTag(p *Param, tag string) {
	for _, attr := range strings.Split(tag, ",") {
		attr = strings.TrimSpace(attr)
		if attr == "required" {
			p.Required = true
			continue
		}
		key, val, ok := strings.Cut(attr, "=")
		if !ok {
			continue
		}
		switch key {
		case "description":
			p.Description = val
		case "enum":
			p.Enum = strings.Split(val, "|")
		case "default":
			p.Default = typedDefault(p.Type, val)
		case "minimum":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				p.Minimum = &f
			}
		case "maximum":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				p.Maximum = &f
			}
		}
	}
}

func typedDefault(typ, val string) any {
	switch typ {
	case TypeInteger:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return float64(n)
		}
	case TypeNumber:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	case TypeBoolean:
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return val
}
