package parser

import (
	"regexp"
	"strconv"
	"strings"

	"conductor/internal/textscan"
	"conductor/internal/tools"
)

var funcNameRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// scanFunctions finds name(args...) calls of known tools.
func (p *Parser) scanFunctions(text string) []match {
	var out []match
	last := 0
	for _, m := range funcNameRe.FindAllStringSubmatchIndex(text, -1) {
		start, open := m[0], m[1]-1
		if start < last || !standalone(text, start) {
			continue
		}
		canon, known := p.names.resolve(text[m[2]:m[3]])
		if !known {
			continue
		}
		end := closingParen(text, open)
		if end < 0 {
			continue
		}
		args, ok := p.functionArgs(p.descs[canon], text[open+1:end-1])
		if !ok {
			continue
		}
		out = append(out, match{
			span: textscan.Span{Start: start, End: end},
			call: tools.Call{Name: canon, Arguments: args},
		})
		last = end
	}
	return out
}

// standalone rejects method calls (x.read_file) and definitions (def read_file).
func standalone(text string, start int) bool {
	if start > 0 {
		c := text[start-1]
		if c == '.' || c == '$' || isAttrNameChar(c) {
			return false
		}
	}
	before := strings.TrimRight(text[:start], " \t")
	for _, kw := range []string{"def", "func", "function"} {
		if strings.HasSuffix(before, kw) && len(before) < len(text[:start]) {
			return false
		}
	}
	return true
}

// closingParen returns the index just past the ')' matching text[open].
func closingParen(text string, open int) int {
	depth := 0
	var quote byte
	escaped := false
	for i := open; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\' && quote != '`':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				if c != ')' {
					return -1
				}
				return i + 1
			}
			if depth < 0 {
				return -1
			}
		}
	}
	return -1
}

// splitTopLevel splits s on commas outside quotes and brackets.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	var quote byte
	escaped := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\' && quote != '`':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// functionArgs binds positional literals to parameters in Positional order,
// merges a trailing object and accepts key=value or key: value pairs.
func (p *Parser) functionArgs(d tools.Descriptor, inner string) (map[string]any, bool) {
	args := map[string]any{}
	if strings.TrimSpace(inner) == "" {
		return args, true
	}

	positional := d.Positional()
	next := 0
	for _, part := range splitTopLevel(inner) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part[0] == '{' {
			obj, ok := textscan.DecodeObject(part)
			if !ok {
				return nil, false
			}
			for k, v := range obj {
				args[k] = v
			}
			continue
		}
		if key, val, ok := keyword(part); ok {
			v, ok := literal(val)
			if !ok {
				return nil, false
			}
			args[key] = v
			continue
		}

		v, ok := literal(part)
		if !ok || next >= len(positional) {
			return nil, false
		}
		args[positional[next]] = v
		next++
	}
	return args, true
}

func keyword(part string) (string, string, bool) {
	i := strings.IndexAny(part, "=:")
	if i <= 0 {
		return "", "", false
	}
	key := strings.TrimSpace(part[:i])
	if !identRe.MatchString(key) {
		return "", "", false
	}
	return key, strings.TrimSpace(part[i+1:]), true
}

// literal decodes a string, number, boolean, array or object literal.
func literal(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	switch q := s[0]; q {
	case '"', '\'', '`':
		if len(s) < 2 || s[len(s)-1] != q {
			return nil, false
		}
		if q == '"' {
			if u, err := strconv.Unquote(s); err == nil {
				return u, true
			}
		}
		return unescape(s[1:len(s)-1], q), true
	case '[', '{':
		return textscan.DecodeValue(s)
	}
	switch s {
	case "true", "True":
		return true, true
	case "false", "False":
		return false, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	return nil, false
}

func unescape(s string, quote byte) string {
	if quote == '`' || !strings.Contains(s, `\`) {
		return s
	}
	r := strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\\`, `\`, `\'`, "'", `\"`, `"`)
	return r.Replace(s)
}
