package textscan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchingClose(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		start int
		want  int
	}{
		{"simple", `{"a":1}`, 0, 7},
		{"nested", `{"a":{"b":[1,2]}} tail`, 0, 17},
		{"brace in string", `{"a":"}{"}`, 0, 10},
		{"escaped quote", `{"a":"x\"}"}`, 0, 12},
		{"array", `[{"a":1},{"b":2}]`, 0, 17},
		{"unbalanced", `{"a":1`, 0, -1},
		{"mismatched", `{"a":1]`, 0, -1},
		{"not a bracket", `abc`, 0, -1},
		{"offset", `xx{"a":1}`, 2, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchingClose(tt.text, tt.start); got != tt.want {
				t.Errorf("MatchingClose(%q, %d) = %d, want %d", tt.text, tt.start, got, tt.want)
			}
		})
	}
}

func TestObjects(t *testing.T) {
	text := `before {"a":{"b":"}"}} middle { broken and {"c":2} end`
	spans := Objects(text)
	require.Len(t, spans, 2)
	assert.Equal(t, `{"a":{"b":"}"}}`, text[spans[0].Start:spans[0].End])
	assert.Equal(t, `{"c":2}`, text[spans[1].Start:spans[1].End])
}

func TestFences(t *testing.T) {
	text := "intro\n```json\n{\"a\":1}\n```\nmid ```{\"b\":2}``` end"
	fences := Fences(text)
	require.Len(t, fences, 2)
	assert.Equal(t, "json", fences[0].Lang)
	assert.Equal(t, "{\"a\":1}", strings.TrimSpace(fences[0].Body))
	assert.Equal(t, "", fences[1].Lang)
	assert.Equal(t, "{\"b\":2}", fences[1].Body)
}

func TestCutAndTidy(t *testing.T) {
	text := "keep1 DROP keep2 DROP2 keep3"
	spans := []Span{{Start: 17, End: 22}, {Start: 6, End: 10}, {Start: 7, End: 9}}
	assert.Equal(t, "keep1  keep2  keep3", Cut(text, spans))

	assert.Equal(t, "a\n\nb", Tidy("a\n\n\n  \n\nb \n"))
	assert.Equal(t, "same", Cut("same", nil))
}

func TestSpan(t *testing.T) {
	a := Span{Start: 0, End: 10}
	assert.True(t, a.Overlaps(Span{Start: 9, End: 12}))
	assert.False(t, a.Overlaps(Span{Start: 10, End: 12}))
	assert.True(t, a.Contains(Span{Start: 2, End: 10}))
	assert.False(t, a.Contains(Span{Start: 2, End: 11}))
}

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{"strict", `{"path":"a.txt","n":2}`, map[string]any{"path": "a.txt", "n": 2.0}},
		{"single quotes", `{'path':'a.txt'}`, map[string]any{"path": "a.txt"}},
		{"trailing comma", `{"path":"a.txt",}`, map[string]any{"path": "a.txt"}},
		{"unquoted keys", `{path: a.txt, recursive: true, depth: 2}`, map[string]any{"path": "a.txt", "recursive": true, "depth": 2.0}},
		{"mixed quotes", `{'path': "it's.txt"}`, map[string]any{"path": "it's.txt"}},
		{"nested yaml ints", `{a: {b: 1}, c: [1, 2]}`, map[string]any{"a": map[string]any{"b": 1.0}, "c": []any{1.0, 2.0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeObject(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeObject_Rejects(t *testing.T) {
	for _, raw := range []string{"", "   ", `"just a string"`, `[1,2]`, `{"a":`, `hello world`} {
		t.Run(raw, func(t *testing.T) {
			_, ok := DecodeObject(raw)
			assert.False(t, ok)
		})
	}
}

