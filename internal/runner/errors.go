package runner

import (
	"errors"
	"fmt"
)

// Runner errors.
var (
	// ErrEmptyMessage indicates the request carried no user message.
	ErrEmptyMessage = errors.New("empty message")

	// ErrNoBackend indicates no model backend is configured.
	ErrNoBackend = errors.New("no model backend configured")
)

// RoundError wraps a model backend failure with the round it happened in.
type RoundError struct {
	Round int
	State State
	Err   error
}

func (e *RoundError) Error() string {
	return fmt.Sprintf("round %d (%s): %v", e.Round, e.State, e.Err)
}

func (e *RoundError) Unwrap() error { return e.Err }
