package tools

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors.
var (
	ErrToolNotFound      = errors.New("tool not found")
	ErrToolAlreadyExists = errors.New("tool already exists")
	ErrInvalidArgs       = errors.New("invalid tool arguments")
	ErrToolTimeout       = errors.New("tool execution timeout")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrLoopPrevented     = errors.New("loop prevented")
	ErrExecution         = errors.New("tool execution failed")
)

// ErrorKind is the failure category reported on an execution result.
type ErrorKind string

const (
	ErrorNone             ErrorKind = ""
	ErrorNotFound         ErrorKind = "NotFound"
	ErrorPermissionDenied ErrorKind = "PermissionDenied"
	ErrorValidation       ErrorKind = "ValidationError"
	ErrorExecution        ErrorKind = "ExecutionError"
	ErrorLoopPrevented    ErrorKind = "LoopPrevented"
	ErrorTimeout          ErrorKind = "Timeout"
)

// KindOf maps an error to its ErrorKind. Unknown errors are ExecutionError.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorNone
	case errors.Is(err, ErrToolNotFound):
		return ErrorNotFound
	case errors.Is(err, ErrPermissionDenied):
		return ErrorPermissionDenied
	case errors.Is(err, ErrInvalidArgs):
		return ErrorValidation
	case errors.Is(err, ErrLoopPrevented):
		return ErrorLoopPrevented
	case errors.Is(err, ErrToolTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorTimeout
	default:
		return ErrorExecution
	}
}

// ToolNotFoundError reports an unknown tool name.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

func (e *ToolNotFoundError) Is(target error) bool { return target == ErrToolNotFound }

func (e *ToolNotFoundError) Unwrap() error { return ErrToolNotFound }

// ToolAlreadyExistsError reports a duplicate registration.
type ToolAlreadyExistsError struct {
	Name string
}

func (e *ToolAlreadyExistsError) Error() string {
	return fmt.Sprintf("tool already exists: %s", e.Name)
}

func (e *ToolAlreadyExistsError) Is(target error) bool { return target == ErrToolAlreadyExists }

func (e *ToolAlreadyExistsError) Unwrap() error { return ErrToolAlreadyExists }

// ValidationError names the offending parameter.
type ValidationError struct {
	Tool    string
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, e.Message)
	}
	return fmt.Sprintf("invalid argument %q for tool %s: %s", e.Param, e.Tool, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidArgs }

func (e *ValidationError) Unwrap() error { return ErrInvalidArgs }

// ToolTimeoutError reports a dispatch that exceeded its budget.
type ToolTimeoutError struct {
	Tool     string
	Duration time.Duration
}

func (e *ToolTimeoutError) Error() string {
	return fmt.Sprintf("tool %s timed out after %s", e.Tool, e.Duration)
}

func (e *ToolTimeoutError) Is(target error) bool { return target == ErrToolTimeout }

func (e *ToolTimeoutError) Unwrap() error { return ErrToolTimeout }

// PermissionDeniedError reports a mutating call in a read-only conversation.
type PermissionDeniedError struct {
	Tool string
	Kind Kind
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("tool %s (%s) is not allowed in read-only mode", e.Tool, e.Kind)
}

func (e *PermissionDeniedError) Is(target error) bool { return target == ErrPermissionDenied }

func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

// LoopPreventedError reports a command refused by the repetition guard.
type LoopPreventedError struct {
	Tool     string
	Command  string
	Attempts int
	Limit    int
	Window   time.Duration
}

func (e *LoopPreventedError) Error() string {
	return fmt.Sprintf("command %q refused: attempted %d times within %s (limit %d); change approach instead of repeating it",
		e.Command, e.Attempts, e.Window, e.Limit)
}

func (e *LoopPreventedError) Is(target error) bool { return target == ErrLoopPrevented }

func (e *LoopPreventedError) Unwrap() error { return ErrLoopPrevented }

// ExecutionError wraps a capability failure.
type ExecutionError struct {
	Tool  string
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Cause)
}

func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

func (e *ExecutionError) Unwrap() error { return e.Cause }

// NewValidationError creates a ValidationError.
func NewValidationError(tool, param, message string) error {
	return &ValidationError{Tool: tool, Param: param, Message: message}
}

// NewToolTimeoutError creates a ToolTimeoutError.
func NewToolTimeoutError(tool string, d time.Duration) error {
	return &ToolTimeoutError{Tool: tool, Duration: d}
}
