// Package textscan finds structured fragments (balanced JSON objects,
// markdown fences) inside free-form model text and decodes loosely
// written object literals.
package textscan

import (
	"regexp"
	"sort"
	"strings"
)

// Span is a half-open byte range [Start, End) of a text.
type Span struct {
	Start int
	End   int
}

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Contains reports whether o lies entirely inside s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// MatchingClose returns the index just past the bracket that closes the
// '{' or '[' at text[start], or -1. Brackets inside double-quoted strings
// are ignored and backslash escapes inside strings are honoured.
func MatchingClose(text string, start int) int {
	if start < 0 || start >= len(text) {
		return -1
	}
	if c := text[start]; c != '{' && c != '[' {
		return -1
	}

	var stack []byte
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// Objects returns the spans of every top-level balanced {...} in text,
// left to right. An unbalanced '{' is skipped and scanning resumes after it.
func Objects(text string) []Span {
	var spans []Span
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := MatchingClose(text, i)
		if end < 0 {
			continue
		}
		spans = append(spans, Span{Start: i, End: end})
		i = end - 1
	}
	return spans
}

// Fence is a markdown code fence.
type Fence struct {
	Span
	Lang string
	Body string
}

var fenceRe = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)(.*?)```")

// Fences returns the ``` fenced blocks of text in order.
func Fences(text string) []Fence {
	var out []Fence
	for _, m := range fenceRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, Fence{
			Span: Span{Start: m[0], End: m[1]},
			Lang: text[m[2]:m[3]],
			Body: text[m[4]:m[5]],
		})
	}
	return out
}

// Cut removes spans from text. Spans may overlap or be unordered.
func Cut(text string, spans []Span) string {
	if len(spans) == 0 {
		return text
	}
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var out []byte
	pos := 0
	for _, s := range sorted {
		if s.End <= pos {
			continue
		}
		if s.Start > pos {
			out = append(out, text[pos:s.Start]...)
		}
		pos = s.End
	}
	out = append(out, text[pos:]...)
	return string(out)
}

var blankLinesRe = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)

// Tidy collapses runs of blank lines left behind by Cut and trims the result.
func Tidy(text string) string {
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
