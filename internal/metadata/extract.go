// Package metadata pulls the control metadata a model embeds in its reply
// (a task plan and a list of file operations) out of the visible answer.
package metadata

import (
	"strings"

	"github.com/rs/zerolog"

	"conductor/internal/textscan"
	"conductor/internal/tools"
	"conductor/pkg/logger"
)

// Extraction is the result of scanning one reply.
type Extraction struct {
	// Visible is the reply with every recognised metadata fragment removed.
	Visible string
	Plan    *Plan
	FileOps []FileOperation
	// Found reports whether any metadata fragment was recognised, valid or not.
	Found bool
}

// Extractor scans replies for metadata.
type Extractor struct {
	log zerolog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{log: logger.Component("metadata")}
}

// Extract scans text with a default Extractor.
func Extract(text string, mode tools.Mode) Extraction {
	return NewExtractor().Extract(text, mode)
}

// fragment is a decoded JSON candidate and where it came from.
type fragment struct {
	span textscan.Span
	obj  any
}

// Extract finds metadata in fenced blocks, in bare JSON anywhere in the
// prose, or in a reply that is entirely JSON. The first valid plan wins;
// file operations from every fragment are kept in order. In a mode that
// forbids writes the file operations are dropped, the plan is kept.
func (x *Extractor) Extract(text string, mode tools.Mode) Extraction {
	out := Extraction{Visible: strings.TrimSpace(text), FileOps: []FileOperation{}}

	var spans []textscan.Span
	for _, f := range candidates(text) {
		plan, ops, ok := interpret(f.obj)
		if !ok {
			continue
		}
		out.Found = true
		spans = append(spans, f.span)

		if plan != nil && out.Plan == nil {
			if err := plan.Validate(); err != nil {
				x.log.Warn().Err(err).Msg("ignoring invalid plan")
			} else {
				out.Plan = plan
			}
		}
		out.FileOps = append(out.FileOps, ops...)
	}

	if !mode.AllowsWrite() && len(out.FileOps) > 0 {
		x.log.Debug().Int("dropped", len(out.FileOps)).Str("mode", string(mode)).
			Msg("file operations ignored in read-only mode")
		out.FileOps = []FileOperation{}
	}
	if len(spans) > 0 {
		out.Visible = textscan.Tidy(textscan.Cut(text, spans))
	}
	return out
}

// candidates returns decodable JSON fragments: fenced blocks first, then
// balanced objects outside any fence.
func candidates(text string) []fragment {
	var out []fragment
	fences := textscan.Fences(text)
	for _, f := range fences {
		if v, ok := textscan.DecodeValue(f.Body); ok {
			out = append(out, fragment{span: f.Span, obj: v})
		}
	}

	for _, s := range textscan.Objects(text) {
		inside := false
		for _, f := range fences {
			if f.Span.Overlaps(s) {
				inside = true
				break
			}
		}
		if inside {
			continue
		}
		if v, ok := textscan.DecodeObject(text[s.Start:s.End]); ok {
			out = append(out, fragment{span: s, obj: v})
		}
	}
	return out
}

// interpret recognises a wrapper with plan / file-operation keys, a bare
// plan, a bare file operation, or a list of file operations.
func interpret(v any) (*Plan, []FileOperation, bool) {
	switch t := v.(type) {
	case map[string]any:
		planVal, hasPlan := findAlias(t, planKeys, 2)
		opsVal, hasOps := findAlias(t, opsKeys, 2)

		var plan *Plan
		var ops []FileOperation
		recognised := false
		if hasPlan {
			if p, ok := parsePlan(planVal); ok {
				plan, recognised = p, true
			}
		}
		if hasOps {
			if o, ok := parseOps(opsVal); ok {
				ops, recognised = o, true
			}
		}
		if recognised {
			return plan, ops, true
		}

		if looksLikePlan(t) {
			p, _ := parsePlan(t)
			return p, nil, true
		}
		if op, ok := parseOp(t, true); ok {
			return nil, []FileOperation{op}, true
		}
	case []any:
		if len(t) == 0 {
			return nil, nil, false
		}
		var ops []FileOperation
		for _, it := range t {
			obj, ok := it.(map[string]any)
			if !ok {
				return nil, nil, false
			}
			op, ok := parseOp(obj, true)
			if !ok {
				return nil, nil, false
			}
			ops = append(ops, op)
		}
		return nil, ops, true
	}
	return nil, nil, false
}
