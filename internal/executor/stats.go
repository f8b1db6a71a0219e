package executor

import (
	"sort"
	"time"

	"conductor/pkg/metrics"
)

// UsageStat aggregates the executions of one tool.
type UsageStat struct {
	Tool         string    `json:"tool"`
	Count        int       `json:"count"`
	SuccessCount int       `json:"success_count"`
	ErrorCount   int       `json:"error_count"`
	TotalTimeMs  int64     `json:"total_time_ms"`
	LastUsedAt   time.Time `json:"last_used_at"`
}

// AverageMs is the mean duration per call.
func (s UsageStat) AverageMs() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.TotalTimeMs) / float64(s.Count)
}

func (e *Executor) bookkeep(r Result) {
	metrics.ObserveTool(r.Tool, outcomeLabel(r), time.Duration(r.DurationMs)*time.Millisecond)

	ev := e.log.Debug()
	if r.IsError {
		ev = e.log.Warn().Str("kind", string(r.ErrorKind))
	}
	ev.Str("tool", r.Tool).Int64("duration_ms", r.DurationMs).Int("result_length", r.ResultLength).
		Msg("tool executed")

	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = append(e.history, r)
	if over := len(e.history) - e.cfg.HistorySize; over > 0 {
		e.history = append(e.history[:0:0], e.history[over:]...)
	}

	s, ok := e.stats[r.Tool]
	if !ok {
		s = &UsageStat{Tool: r.Tool}
		e.stats[r.Tool] = s
	}
	s.Count++
	if r.IsError {
		s.ErrorCount++
	} else {
		s.SuccessCount++
	}
	s.TotalTimeMs += r.DurationMs
	s.LastUsedAt = r.StartedAt
}

// History returns the most recent results, oldest first.
func (e *Executor) History() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Result, len(e.history))
	copy(out, e.history)
	return out
}

// Stats returns per-tool statistics sorted by tool name.
func (e *Executor) Stats() []UsageStat {
	e.mu.Lock()
	out := make([]UsageStat, 0, len(e.stats))
	for _, s := range e.stats {
		out = append(out, *s)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Tool < out[j].Tool })
	return out
}

// ClearStats resets statistics and call history. The loop window is kept.
func (e *Executor) ClearStats() {
	e.mu.Lock()
	e.stats = make(map[string]*UsageStat)
	e.history = nil
	e.mu.Unlock()
}

// Loops exposes the repetition guard.
func (e *Executor) Loops() *LoopDetector {
	return e.loops
}
