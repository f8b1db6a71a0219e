package metadata

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// normKey lowercases and drops separators so "AI-Plan", "ai_plan" and
// "aiPlan" compare equal.
func normKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r == '_' || r == '-' || r == ' ' || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// aliases are normalized key spellings in priority order.
type aliases []string

func aliasSet(names ...string) aliases {
	out := make(aliases, len(names))
	for i, n := range names {
		out[i] = normKey(n)
	}
	return out
}

var (
	planKeys = aliasSet("ai_plan", "plan", "task_plan", "agent_plan", "execution_plan", "todo_plan")
	opsKeys  = aliasSet("file_operations", "file_ops", "operations", "file_changes", "changes",
		"file_edits", "edits", "file_actions")

	taskListKeys = aliasSet("tasks", "steps", "todos", "items")
	summaryKeys  = aliasSet("summary", "goal", "objective", "overview")
	idKeys       = aliasSet("id", "task_id", "key", "step")
	titleKeys    = aliasSet("title", "name", "task", "description", "content", "text")
	statusKeys   = aliasSet("status", "state")
	dependsKeys  = aliasSet("depends_on", "dependencies", "deps", "requires", "blocked_by")

	opTypeKeys  = aliasSet("type", "op", "operation", "action", "kind")
	pathKeys    = aliasSet("path", "file", "file_path", "filename", "file_name", "target")
	contentKeys = aliasSet("content", "contents", "code", "text", "new_content", "body")
	beforeKeys  = aliasSet("before", "old", "old_text", "search", "original", "find")
	afterKeys   = aliasSet("after", "new", "new_text", "replace", "replacement", "updated")
	diffKeys    = aliasSet("diff", "patch", "unified_diff")
)

// field returns the value of the highest-priority alias present in obj.
func field(obj map[string]any, keys aliases) (any, bool) {
	for _, want := range keys {
		for k, v := range obj {
			if normKey(k) == want {
				return v, true
			}
		}
	}
	return nil, false
}

// findAlias searches obj and nested objects up to depth for a key in keys.
func findAlias(obj map[string]any, keys aliases, depth int) (any, bool) {
	if v, ok := field(obj, keys); ok {
		return v, true
	}
	if depth <= 0 {
		return nil, false
	}
	names := make([]string, 0, len(obj))
	for k := range obj {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if inner, ok := obj[k].(map[string]any); ok {
			if found, ok := findAlias(inner, keys, depth-1); ok {
				return found, true
			}
		}
	}
	return nil, false
}

func stringField(obj map[string]any, keys aliases) string {
	v, ok := field(obj, keys)
	if !ok {
		return ""
	}
	return scalarString(v)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// parsePlan reads a plan from a plan object or a bare task list.
func parsePlan(v any) (*Plan, bool) {
	var summary string
	var items []any
	switch t := v.(type) {
	case map[string]any:
		list, ok := field(t, taskListKeys)
		if !ok {
			return nil, false
		}
		if items, ok = list.([]any); !ok {
			return nil, false
		}
		summary = stringField(t, summaryKeys)
	case []any:
		items = t
	default:
		return nil, false
	}

	plan := &Plan{Summary: summary}
	for _, it := range items {
		switch task := it.(type) {
		case string:
			if strings.TrimSpace(task) != "" {
				plan.Tasks = append(plan.Tasks, Task{Title: strings.TrimSpace(task), Status: StatusPending})
			}
		case map[string]any:
			plan.Tasks = append(plan.Tasks, parseTask(task))
		}
	}
	assignIDs(plan)
	return plan, true
}

func parseTask(obj map[string]any) Task {
	t := Task{
		ID:     stringField(obj, idKeys),
		Title:  stringField(obj, titleKeys),
		Status: NormalizeStatus(stringField(obj, statusKeys)),
	}
	if deps, ok := field(obj, dependsKeys); ok {
		switch d := deps.(type) {
		case []any:
			for _, x := range d {
				if s := scalarString(x); s != "" {
					t.DependsOn = append(t.DependsOn, s)
				}
			}
		default:
			if s := scalarString(d); s != "" {
				t.DependsOn = append(t.DependsOn, s)
			}
		}
	}
	return t
}

// assignIDs gives tasks without an id the first free "tN".
func assignIDs(p *Plan) {
	used := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if t.ID != "" {
			used[t.ID] = true
		}
	}
	n := 1
	for i := range p.Tasks {
		if p.Tasks[i].ID != "" {
			continue
		}
		for used[fmt.Sprintf("t%d", n)] {
			n++
		}
		p.Tasks[i].ID = fmt.Sprintf("t%d", n)
		used[p.Tasks[i].ID] = true
	}
}

// looksLikePlan accepts a bare object only when it carries a task list of
// task-shaped entries, so unrelated JSON with a "tasks" key is left alone.
func looksLikePlan(obj map[string]any) bool {
	list, ok := field(obj, taskListKeys)
	if !ok {
		return false
	}
	items, ok := list.([]any)
	if !ok {
		return false
	}
	for _, it := range items {
		task, ok := it.(map[string]any)
		if !ok {
			return false
		}
		if _, ok := field(task, statusKeys); !ok {
			if _, ok := field(task, titleKeys); !ok {
				return false
			}
		}
	}
	return true
}

// parseOps reads a list (or single object) of file operations. Entries
// without a path or a recognisable type are skipped.
func parseOps(v any) ([]FileOperation, bool) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		items = []any{t}
	default:
		return nil, false
	}

	ops := make([]FileOperation, 0, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if op, ok := parseOp(obj, false); ok {
			ops = append(ops, op)
		}
	}
	return ops, true
}

// parseOp reads one operation. With strict set the type must be explicit;
// otherwise it is inferred from the fields present.
func parseOp(obj map[string]any, strict bool) (FileOperation, bool) {
	path := stringField(obj, pathKeys)
	if path == "" {
		return FileOperation{}, false
	}
	op := FileOperation{
		Path:    path,
		Content: rawString(obj, contentKeys),
		Before:  rawString(obj, beforeKeys),
		After:   rawString(obj, afterKeys),
		Diff:    rawString(obj, diffKeys),
	}

	typ, ok := NormalizeOpType(stringField(obj, opTypeKeys))
	switch {
	case ok:
		op.Type = typ
	case strict:
		return FileOperation{}, false
	case op.Before != "" || op.After != "" || op.Diff != "":
		op.Type = OpEdit
	case op.Content != "":
		op.Type = OpCreate
	default:
		return FileOperation{}, false
	}

	if op.Type == OpDelete {
		op.Content, op.Before, op.After, op.Diff = "", "", "", ""
	}
	if IsDocumentPath(op.Path) {
		op.IsDocument = true
		op.Content = ""
	}
	return op, true
}

// rawString is stringField without trimming, for file bodies.
func rawString(obj map[string]any, keys aliases) string {
	v, ok := field(obj, keys)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return scalarString(v)
}
