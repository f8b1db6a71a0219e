package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// Status is a task state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// NormalizeStatus maps the spellings models use to a Status. Unknown
// values are pending.
func NormalizeStatus(s string) Status {
	switch normKey(s) {
	case "inprogress", "doing", "active", "running", "started", "wip", "ongoing":
		return StatusInProgress
	case "completed", "complete", "done", "finished", "success", "succeeded", "resolved":
		return StatusCompleted
	case "blocked", "stuck", "failed", "waiting":
		return StatusBlocked
	default:
		return StatusPending
	}
}

// Task is one step of a plan.
type Task struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Status    Status   `json:"status"`
	DependsOn []string `json:"dependsOn,omitempty"`
}

// Done reports whether the task is in the terminal class.
func (t Task) Done() bool {
	return t.Status == StatusCompleted
}

// Plan is a summary plus ordered tasks.
type Plan struct {
	Summary string `json:"summary"`
	Tasks   []Task `json:"tasks"`
}

// Plan validation errors.
var (
	ErrDuplicateTask     = errors.New("duplicate task id")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrDependencyCycle   = errors.New("dependency cycle")
)

// PlanError names the task a validation failure is about.
type PlanError struct {
	TaskID string
	Err    error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("task %q: %v", e.TaskID, e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }

// Validate checks that ids are unique and the dependency graph is closed
// and acyclic. Nothing is repaired.
func (p *Plan) Validate() error {
	ids := make(map[string]int, len(p.Tasks))
	for i, t := range p.Tasks {
		if _, dup := ids[t.ID]; dup {
			return &PlanError{TaskID: t.ID, Err: ErrDuplicateTask}
		}
		ids[t.ID] = i
	}
	for _, t := range p.Tasks {
		for _, dep := range t.DependsOn {
			if _, ok := ids[dep]; !ok {
				return &PlanError{TaskID: t.ID, Err: fmt.Errorf("%w %q", ErrUnknownDependency, dep)}
			}
		}
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make([]int, len(p.Tasks))
	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case visiting:
			return &PlanError{TaskID: p.Tasks[i].ID, Err: ErrDependencyCycle}
		case visited:
			return nil
		}
		state[i] = visiting
		for _, dep := range p.Tasks[i].DependsOn {
			if err := visit(ids[dep]); err != nil {
				return err
			}
		}
		state[i] = visited
		return nil
	}
	for i := range p.Tasks {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the tasks not yet completed.
func (p *Plan) Pending() []Task {
	if p == nil {
		return nil
	}
	var out []Task
	for _, t := range p.Tasks {
		if !t.Done() {
			out = append(out, t)
		}
	}
	return out
}

// HasPending reports whether any task is not completed.
func (p *Plan) HasPending() bool {
	return len(p.Pending()) > 0
}

// Clone returns a deep copy.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := &Plan{Summary: p.Summary, Tasks: make([]Task, len(p.Tasks))}
	for i, t := range p.Tasks {
		t.DependsOn = append([]string(nil), t.DependsOn...)
		out.Tasks[i] = t
	}
	return out
}

// Merge folds next into a copy of p by task id: known tasks take next's
// status and non-empty fields, new tasks are appended. A nil side yields a
// copy of the other.
func (p *Plan) Merge(next *Plan) *Plan {
	if p == nil {
		return next.Clone()
	}
	out := p.Clone()
	if next == nil {
		return out
	}
	if strings.TrimSpace(next.Summary) != "" {
		out.Summary = next.Summary
	}

	index := make(map[string]int, len(out.Tasks))
	for i, t := range out.Tasks {
		index[t.ID] = i
	}
	for _, t := range next.Tasks {
		i, ok := index[t.ID]
		if !ok {
			t.DependsOn = append([]string(nil), t.DependsOn...)
			index[t.ID] = len(out.Tasks)
			out.Tasks = append(out.Tasks, t)
			continue
		}
		cur := &out.Tasks[i]
		cur.Status = t.Status
		if t.Title != "" {
			cur.Title = t.Title
		}
		if len(t.DependsOn) > 0 {
			cur.DependsOn = append([]string(nil), t.DependsOn...)
		}
	}
	return out
}

// String renders the plan as a checklist for prompts.
func (p *Plan) String() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	if p.Summary != "" {
		b.WriteString(p.Summary)
		b.WriteString("\n")
	}
	for _, t := range p.Tasks {
		mark := " "
		switch t.Status {
		case StatusCompleted:
			mark = "x"
		case StatusInProgress:
			mark = "~"
		case StatusBlocked:
			mark = "!"
		}
		fmt.Fprintf(&b, "[%s] %s: %s (%s)", mark, t.ID, t.Title, t.Status)
		if len(t.DependsOn) > 0 {
			fmt.Fprintf(&b, " after %s", strings.Join(t.DependsOn, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
