package parser

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"conductor/internal/textscan"
	"conductor/internal/tools"
)

var (
	openTagRe  = regexp.MustCompile(`(?i)<tool[_-]?call\b`)
	closeTagRe = regexp.MustCompile(`(?i)</tool[_-]?call\s*>`)
)

// scanTagged finds <tool_call .../> and <tool_call ...>body</tool_call>.
func (p *Parser) scanTagged(text string) []match {
	var out []match
	pos := 0
	for pos < len(text) {
		loc := openTagRe.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		attrs, tagEnd, selfClosing, ok := readAttributes(text, pos+loc[1])
		if !ok {
			pos = pos + loc[1]
			continue
		}

		end := tagEnd
		body := ""
		if !selfClosing {
			if cl := closeTagRe.FindStringIndex(text[tagEnd:]); cl != nil {
				next := openTagRe.FindStringIndex(text[tagEnd:])
				if next == nil || next[0] > cl[0] {
					body = strings.TrimSpace(text[tagEnd : tagEnd+cl[0]])
					end = tagEnd + cl[1]
				}
			}
		}
		pos = end

		if call, ok := p.tagCall(attrs, body); ok {
			out = append(out, match{span: textscan.Span{Start: start, End: end}, call: call})
		}
	}
	return out
}

type attribute struct {
	key   string
	value string
}

// readAttributes parses tag attributes starting at i, up to and including
// the closing "/>" or ">". Values may use either quote style, and a quoted
// value that opens with a bracket extends to the matching bracket, so JSON
// holding the same quote character survives.
func readAttributes(text string, i int) (attrs []attribute, end int, selfClosing bool, ok bool) {
	for i < len(text) {
		for i < len(text) && isSpace(text[i]) {
			i++
		}
		if i >= len(text) {
			return nil, 0, false, false
		}
		switch {
		case strings.HasPrefix(text[i:], "/>"):
			return attrs, i + 2, true, true
		case text[i] == '>':
			return attrs, i + 1, false, true
		}

		keyStart := i
		for i < len(text) && isAttrNameChar(text[i]) {
			i++
		}
		if i == keyStart {
			return nil, 0, false, false
		}
		key := text[keyStart:i]

		for i < len(text) && isSpace(text[i]) {
			i++
		}
		if i >= len(text) || text[i] != '=' {
			attrs = append(attrs, attribute{key: key})
			continue
		}
		i++
		for i < len(text) && isSpace(text[i]) {
			i++
		}
		if i >= len(text) {
			return nil, 0, false, false
		}

		value, next, vok := readValue(text, i)
		if !vok {
			return nil, 0, false, false
		}
		attrs = append(attrs, attribute{key: key, value: value})
		i = next
	}
	return nil, 0, false, false
}

func readValue(text string, i int) (string, int, bool) {
	c := text[i]
	if c == '{' || c == '[' {
		end := textscan.MatchingClose(text, i)
		if end < 0 {
			return "", 0, false
		}
		return text[i:end], end, true
	}
	if c != '"' && c != '\'' {
		start := i
		for i < len(text) && !isSpace(text[i]) && text[i] != '>' && !strings.HasPrefix(text[i:], "/>") {
			i++
		}
		return text[start:i], i, true
	}

	quote := c
	i++
	if i < len(text) && (text[i] == '{' || text[i] == '[') {
		if end := textscan.MatchingClose(text, i); end > 0 {
			j := end
			for j < len(text) && isSpace(text[j]) {
				j++
			}
			if j < len(text) && (text[j] == '"' || text[j] == '\'') {
				return text[i:end], j + 1, true
			}
		}
	}
	// A value closes at a quote followed by the end of the tag or by the
	// next attribute. The other quote style also closes a value without
	// whitespace, so name="read_file' reads read_file while
	// path="O'Brien.txt" keeps its apostrophe.
	for j := i; j < len(text); j++ {
		c := text[j]
		if c != '"' && c != '\'' {
			continue
		}
		if c != quote && strings.ContainsAny(text[i:j], " \t\r\n") {
			continue
		}
		if closesValue(text, j+1) {
			return text[i:j], j + 1, true
		}
	}
	end := strings.IndexByte(text[i:], quote)
	if end < 0 {
		return "", 0, false
	}
	return text[i : i+end], i + end + 1, true
}

// closesValue reports whether text[i:] starts with the end of the tag or
// with whitespace and another key= attribute.
func closesValue(text string, i int) bool {
	j := i
	for j < len(text) && isSpace(text[j]) {
		j++
	}
	rest := text[j:]
	if strings.HasPrefix(rest, "/>") || strings.HasPrefix(rest, ">") {
		return true
	}
	if j == i {
		return false
	}
	k := 0
	for k < len(rest) && isAttrNameChar(rest[k]) {
		k++
	}
	if k == 0 {
		return false
	}
	rest = strings.TrimLeft(rest[k:], " \t\r\n")
	return strings.HasPrefix(rest, "=")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isAttrNameChar(c byte) bool {
	return c == '_' || c == '-' || c == ':' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// tagCall builds a call from tag attributes and an optional element body.
func (p *Parser) tagCall(attrs []attribute, body string) (tools.Call, bool) {
	var name string
	var payload *string
	extra := make(map[string]string)
	for _, a := range attrs {
		switch strings.ToLower(a.key) {
		case "name", "tool", "tool_name":
			name = a.value
		case "args", "arguments", "params", "parameters", "input":
			v := a.value
			payload = &v
		default:
			extra[a.key] = a.value
		}
	}

	args := map[string]any{}
	if payload != nil {
		decoded, ok := p.decodeArgs(*payload)
		if !ok {
			return tools.Call{}, false
		}
		args = decoded
	} else if body != "" {
		obj, ok := textscan.DecodeObject(body)
		if !ok {
			return tools.Call{}, false
		}
		if name == "" {
			c, ok := p.callFromObject(obj)
			if !ok {
				return tools.Call{}, false
			}
			name, args = c.Name, c.Arguments
		} else {
			args = obj
			for _, k := range argumentKeys {
				if inner, ok := obj[k].(map[string]any); ok && len(obj) <= 2 {
					args = inner
					break
				}
			}
		}
	}
	if strings.TrimSpace(name) == "" {
		return tools.Call{}, false
	}

	canon, _ := p.names.resolve(name)
	desc := p.descs[canon]
	for k, v := range extra {
		if _, set := args[k]; !set {
			args[k] = coerce(desc, k, v)
		}
	}
	return tools.Call{Name: canon, Arguments: args}, true
}

// coerce converts an attribute string to the declared parameter type.
func coerce(d tools.Descriptor, key, value string) any {
	param, ok := d.Param(key)
	if !ok {
		return value
	}
	switch param.Type {
	case tools.TypeInteger, tools.TypeNumber:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	case tools.TypeBoolean:
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	case tools.TypeArray, tools.TypeObject:
		var v any
		if err := json.Unmarshal([]byte(value), &v); err == nil {
			return v
		}
	}
	return value
}
