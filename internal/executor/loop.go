package executor

import (
	"strings"
	"sync"
	"time"

	"conductor/internal/tools"
)

// CommandHistoryEntry is one attempted side-effecting command.
type CommandHistoryEntry struct {
	Tool    string    `json:"tool"`
	Command string    `json:"command"`
	At      time.Time `json:"at"`
}

// LoopDetector refuses a command repeated too often inside a sliding window.
// Every attempt is recorded, including refused ones, so a model that keeps
// retrying stays refused until the window moves past its attempts.
type LoopDetector struct {
	mu         sync.Mutex
	window     time.Duration
	maxRepeats int
	size       int
	entries    []CommandHistoryEntry
}

// NewLoopDetector creates a detector. size bounds the retained entries.
func NewLoopDetector(window time.Duration, maxRepeats, size int) *LoopDetector {
	if window <= 0 {
		window = 30 * time.Second
	}
	if maxRepeats <= 0 {
		maxRepeats = 3
	}
	if size <= 0 {
		size = 100
	}
	return &LoopDetector{window: window, maxRepeats: maxRepeats, size: size}
}

// NormalizeCommand trims and collapses internal whitespace.
func NormalizeCommand(cmd string) string {
	return strings.Join(strings.Fields(cmd), " ")
}

// Check records an attempt of command by tool at now and returns a
// *tools.LoopPreventedError when it reaches the repeat limit.
func (d *LoopDetector) Check(tool, command string, now time.Time) error {
	command = NormalizeCommand(command)

	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := now.Add(-d.window)
	attempts := 1
	for _, e := range d.entries {
		if e.Tool == tool && e.Command == command && e.At.After(cutoff) {
			attempts++
		}
	}

	d.entries = append(d.entries, CommandHistoryEntry{Tool: tool, Command: command, At: now})
	if over := len(d.entries) - d.size; over > 0 {
		d.entries = append(d.entries[:0:0], d.entries[over:]...)
	}

	if attempts >= d.maxRepeats {
		return &tools.LoopPreventedError{
			Tool:     tool,
			Command:  command,
			Attempts: attempts,
			Limit:    d.maxRepeats,
			Window:   d.window,
		}
	}
	return nil
}

// Entries returns a copy of the retained history, oldest first.
func (d *LoopDetector) Entries() []CommandHistoryEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]CommandHistoryEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Reset forgets all attempts.
func (d *LoopDetector) Reset() {
	d.mu.Lock()
	d.entries = nil
	d.mu.Unlock()
}
