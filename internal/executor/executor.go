// Package executor runs parsed tool calls: it validates arguments against
// the tool descriptors, enforces the read-only gate, guards against repeated
// shell commands and keeps per-tool usage statistics.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"conductor/internal/tools"
	"conductor/pkg/logger"
	"conductor/pkg/metrics"
)

// Config holds executor limits.
type Config struct {
	DefaultTimeout  time.Duration
	HistorySize     int
	LoopWindow      time.Duration
	LoopMaxRepeats  int
	LoopHistorySize int
	MaxResultBytes  int
}

// DefaultConfig returns the executor defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:  60 * time.Second,
		HistorySize:     200,
		LoopWindow:      30 * time.Second,
		LoopMaxRepeats:  3,
		LoopHistorySize: 100,
		MaxResultBytes:  64 * 1024,
	}
}

// Lookup resolves tool names. *tools.Catalog implements it.
type Lookup interface {
	Lookup(ctx context.Context, name string) (tools.Tool, bool)
}

// Recorder receives every result after bookkeeping, e.g. for persistence.
type Recorder interface {
	Record(ctx context.Context, r Result) error
}

// timeoutHinter is implemented by tools that choose their own budget.
type timeoutHinter interface {
	Timeout(args map[string]any) time.Duration
}

// Result is the outcome of one call.
type Result struct {
	ID           string          `json:"id"`
	Tool         string          `json:"tool"`
	Arguments    map[string]any  `json:"arguments"`
	Text         string          `json:"result"`
	IsError      bool            `json:"is_error"`
	ErrorKind    tools.ErrorKind `json:"error_kind,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	ResultLength int             `json:"result_length"`
	StartedAt    time.Time       `json:"started_at"`
}

// Option configures an Executor.
type Option func(*Executor)

// WithRecorder sets a result sink.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// WithClock replaces time.Now for the loop window.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// Executor runs calls sequentially. One instance may be shared by concurrent
// conversations: statistics, history and the loop window are guarded by a
// mutex and tool dispatch happens outside it.
type Executor struct {
	lookup   Lookup
	cfg      Config
	loops    *LoopDetector
	recorder Recorder
	now      func() time.Time
	log      zerolog.Logger

	mu      sync.Mutex
	history []Result
	stats   map[string]*UsageStat
}

// New creates an executor. Zero config fields take their defaults.
func New(lookup Lookup, cfg Config, opts ...Option) *Executor {
	def := DefaultConfig()
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = def.DefaultTimeout
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.MaxResultBytes <= 0 {
		cfg.MaxResultBytes = def.MaxResultBytes
	}

	e := &Executor{
		lookup: lookup,
		cfg:    cfg,
		loops:  NewLoopDetector(cfg.LoopWindow, cfg.LoopMaxRepeats, cfg.LoopHistorySize),
		now:    time.Now,
		log:    logger.Component("executor"),
		stats:  make(map[string]*UsageStat),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs calls in order and returns one result per call. A failing
// call never stops the ones after it. allowWrite=false denies every
// mutating tool without invoking it.
func (e *Executor) Execute(ctx context.Context, calls []tools.Call, allowWrite bool) []Result {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		r := e.executeOne(ctx, call, allowWrite)
		e.bookkeep(r)
		if e.recorder != nil {
			if err := e.recorder.Record(ctx, r); err != nil {
				e.log.Warn().Err(err).Str("tool", r.Tool).Msg("failed to record tool execution")
			}
		}
		results = append(results, r)
	}
	return results
}

func (e *Executor) executeOne(ctx context.Context, call tools.Call, allowWrite bool) Result {
	start := time.Now()
	r := Result{
		ID:        uuid.NewString(),
		Tool:      call.Name,
		Arguments: call.Arguments,
		StartedAt: start,
	}
	finish := func(text string, err error) Result {
		r.DurationMs = time.Since(start).Milliseconds()
		if err != nil {
			r.IsError = true
			r.ErrorKind = tools.KindOf(err)
			r.Text = err.Error()
		} else {
			r.Text = Truncate(text, e.cfg.MaxResultBytes)
		}
		r.ResultLength = len(r.Text)
		return r
	}

	tool, ok := e.lookup.Lookup(ctx, call.Name)
	if !ok {
		return finish("", &tools.ToolNotFoundError{Name: call.Name})
	}
	desc := tool.Descriptor()

	if desc.Kind.Mutating() && !allowWrite {
		return finish("", &tools.PermissionDeniedError{Tool: desc.Name, Kind: desc.Kind})
	}

	args, err := desc.Validate(call.Arguments)
	if err != nil {
		return finish("", err)
	}
	r.Arguments = args

	if desc.Kind == tools.KindExecute {
		if err := e.loops.Check(desc.Name, commandText(call, args), e.now()); err != nil {
			metrics.LoopPrevented.WithLabelValues(desc.Name).Inc()
			e.log.Warn().Str("tool", desc.Name).Err(err).Msg("repeated command refused")
			return finish("", err)
		}
	}

	timeout := e.cfg.DefaultTimeout
	if h, ok := tool.(timeoutHinter); ok {
		if d := h.Timeout(args); d > 0 {
			timeout = d
		}
	}

	out, err := e.dispatch(ctx, tool, args, timeout)
	if err != nil {
		return finish("", err)
	}
	if out.IsError {
		res := finish(out.Content, nil)
		res.IsError = true
		res.ErrorKind = tools.ErrorExecution
		return res
	}
	return finish(out.Content, nil)
}

// dispatch runs the tool under its own deadline. The result is reported
// when the deadline passes even if the tool has not returned yet.
func (e *Executor) dispatch(ctx context.Context, tool tools.Tool, args map[string]any, timeout time.Duration) (tools.ToolResult, error) {
	name := tool.Descriptor().Name
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res tools.ToolResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		res, err := tool.Execute(dctx, args)
		done <- outcome{res: res, err: err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-dctx.Done():
		o = outcome{err: dctx.Err()}
	}

	switch {
	case o.err == nil:
		return o.res, nil
	case errors.Is(o.err, tools.ErrToolTimeout):
		return tools.ToolResult{}, o.err
	case errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil:
		return tools.ToolResult{}, tools.NewToolTimeoutError(name, timeout)
	case kindIsTyped(o.err):
		return tools.ToolResult{}, o.err
	default:
		return tools.ToolResult{}, &tools.ExecutionError{Tool: name, Cause: o.err}
	}
}

// kindIsTyped reports errors that already carry a specific kind.
func kindIsTyped(err error) bool {
	switch tools.KindOf(err) {
	case tools.ErrorNotFound, tools.ErrorPermissionDenied, tools.ErrorValidation, tools.ErrorLoopPrevented:
		return true
	}
	return false
}

// commandText is the text loop detection keys on.
func commandText(call tools.Call, args map[string]any) string {
	if cmd := tools.StringArg(args, "command"); cmd != "" {
		return cmd
	}
	return call.CanonicalArgs()
}

func outcomeLabel(r Result) string {
	if !r.IsError {
		return "ok"
	}
	return string(r.ErrorKind)
}
