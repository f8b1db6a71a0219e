// Package parser extracts tool calls from free-form model replies.
//
// Three syntaxes are recognised, in priority order:
//
//	<tool_call name="read_file" args='{"path":"a.txt"}' />
//	```json {"tool": "read_file", "arguments": {"path": "a.txt"}} ```
//	read_file("a.txt")
//
// Parsing is best-effort and total: fragments that cannot be decoded are
// skipped, never reported as errors.
package parser

import (
	"sort"
	"strings"

	"conductor/internal/textscan"
	"conductor/internal/tools"
)

// Parser parses replies against the tools visible to one request.
type Parser struct {
	names *normalizer
	descs map[string]tools.Descriptor
}

// New creates a parser for the given tool set. Names outside the set are
// still parsed from tagged and fenced calls (and fail at execution), but the
// function form only matches known tools.
func New(descs []tools.Descriptor) *Parser {
	p := &Parser{
		names: newNormalizer(descs),
		descs: make(map[string]tools.Descriptor, len(descs)),
	}
	for _, d := range descs {
		p.descs[d.Name] = d
	}
	return p
}

// match is a call found at a position of the reply.
type match struct {
	span textscan.Span
	call tools.Call
}

// Parse returns the calls in text in source order with duplicates removed.
func (p *Parser) Parse(text string) []tools.Call {
	calls, _ := p.Split(text)
	return calls
}

// Split parses text and also returns it with every call fragment removed,
// duplicates included.
func (p *Parser) Split(text string) ([]tools.Call, string) {
	matches := p.scan(text)
	if len(matches) == 0 {
		return nil, text
	}

	spans := make([]textscan.Span, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	calls := make([]tools.Call, 0, len(matches))
	for _, m := range matches {
		spans = append(spans, m.span)
		key := m.call.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		calls = append(calls, m.call)
	}
	return calls, textscan.Tidy(textscan.Cut(text, spans))
}

// Strip removes the raw fragments of calls from text.
func (p *Parser) Strip(text string, calls []tools.Call) string {
	done := make(map[string]bool, len(calls))
	for _, c := range calls {
		if c.RawText == "" || done[c.RawText] {
			continue
		}
		done[c.RawText] = true
		text = strings.ReplaceAll(text, c.RawText, "")
	}
	return textscan.Tidy(text)
}

func (p *Parser) scan(text string) []match {
	var matches []match
	var consumed []textscan.Span

	free := func(s textscan.Span) bool {
		for _, c := range consumed {
			if c.Overlaps(s) {
				return false
			}
		}
		return true
	}
	add := func(span textscan.Span, found []tools.Call) {
		consumed = append(consumed, span)
		for _, c := range found {
			c.RawText = text[span.Start:span.End]
			matches = append(matches, match{span: span, call: c})
		}
	}

	for _, t := range p.scanTagged(text) {
		add(t.span, []tools.Call{t.call})
	}
	// Code samples and JSON payloads (metadata included) are opaque to the
	// function form: eval("1+1") inside them is data, not a call.
	var opaque []textscan.Span
	for _, f := range textscan.Fences(text) {
		if !free(f.Span) {
			continue
		}
		if found := p.fencedCalls(f.Body); len(found) > 0 {
			add(f.Span, found)
		} else if !callFenceLangs[strings.ToLower(f.Lang)] {
			opaque = append(opaque, f.Span)
		}
	}
	opaque = append(opaque, textscan.Objects(text)...)

	for _, fn := range p.scanFunctions(text) {
		if free(fn.span) && !insideOpaque(fn.span, opaque) {
			add(fn.span, []tools.Call{fn.call})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].span.Start < matches[j].span.Start
	})
	return matches
}

// callFenceLangs label fences that hold calls written in function form.
var callFenceLangs = map[string]bool{"tool_code": true, "tool_call": true, "tool": true}

// insideOpaque reports whether s overlaps an opaque region it does not
// enclose. A call may carry a trailing {...} argument of its own.
func insideOpaque(s textscan.Span, opaque []textscan.Span) bool {
	for _, o := range opaque {
		if s.Overlaps(o) && !s.Contains(o) {
			return true
		}
	}
	return false
}

// argumentKeys are the object keys that may carry a call's arguments.
var argumentKeys = []string{"arguments", "args", "parameters", "params", "input"}

// callFromObject interprets {"tool": ..., "arguments": {...}} shaped objects.
func (p *Parser) callFromObject(obj map[string]any) (tools.Call, bool) {
	var rawArgs any
	hasArgs := false
	for _, k := range argumentKeys {
		if v, ok := obj[k]; ok {
			rawArgs, hasArgs = v, true
			break
		}
	}

	var name string
	for _, k := range []string{"tool", "tool_name", "toolName"} {
		if s, ok := obj[k].(string); ok && s != "" {
			name = s
			break
		}
	}
	if name == "" && hasArgs {
		name, _ = obj["name"].(string)
	}
	if name == "" {
		if fn, ok := obj["function"].(map[string]any); ok {
			return p.callFromObject(fn)
		}
		return tools.Call{}, false
	}

	args, ok := p.decodeArgs(rawArgs)
	if !ok {
		return tools.Call{}, false
	}
	canon, _ := p.names.resolve(name)
	return tools.Call{Name: canon, Arguments: args}, true
}

// decodeArgs accepts an object, a string holding an object literal, or nothing.
func (p *Parser) decodeArgs(v any) (map[string]any, bool) {
	switch a := v.(type) {
	case nil:
		return map[string]any{}, true
	case map[string]any:
		return a, true
	case string:
		if strings.TrimSpace(a) == "" {
			return map[string]any{}, true
		}
		return textscan.DecodeObject(a)
	default:
		return nil, false
	}
}

func (p *Parser) fencedCalls(body string) []tools.Call {
	v, ok := textscan.DecodeValue(body)
	if !ok {
		return nil
	}
	var items []any
	switch t := v.(type) {
	case map[string]any:
		if list, ok := t["tool_calls"].([]any); ok {
			items = list
		} else {
			items = []any{t}
		}
	case []any:
		items = t
	}

	var calls []tools.Call
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if c, ok := p.callFromObject(obj); ok {
			calls = append(calls, c)
		}
	}
	return calls
}
