package tools

import "strings"

// Param types accepted in descriptors.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// FeatureSearch marks tools that are only listed when web search is enabled.
const FeatureSearch = "search"

// Param describes one tool parameter.
type Param struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
}

// Descriptor describes a tool. It is immutable once registered.
type Descriptor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Kind        Kind    `json:"kind"`
	Feature     string  `json:"feature,omitempty"`
	Params      []Param `json:"params"`
}

// Param looks up a parameter by name.
func (d Descriptor) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Positional returns parameter names in the order positional arguments bind
// to them: required parameters first, each group in declaration order.
func (d Descriptor) Positional() []string {
	names := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	for _, p := range d.Params {
		if !p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// JSONSchema renders the parameters as a JSON Schema object.
func (d Descriptor) JSONSchema() map[string]any {
	props := make(map[string]any, len(d.Params))
	var required []string
	for _, p := range d.Params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Usage renders a one-line signature such as `read_file(path, start_line?)`.
func (d Descriptor) Usage() string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteByte('(')
	for i, name := range d.Positional() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		if p, _ := d.Param(name); !p.Required {
			b.WriteByte('?')
		}
	}
	b.WriteByte(')')
	return b.String()
}
