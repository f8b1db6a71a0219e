package tools

import "strings"

// Mode is the conversation operating mode.
type Mode string

const (
	// ModeAgent permits mutating tools and file operations.
	ModeAgent Mode = "agent"
	// ModeAsk is read-only.
	ModeAsk Mode = "ask"
)

// ParseMode maps user input to a Mode. Anything unrecognised is read-only.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "agent", "edit", "write", "code":
		return ModeAgent
	default:
		return ModeAsk
	}
}

// AllowsWrite reports whether mutation is permitted.
func (m Mode) AllowsWrite() bool {
	return m == ModeAgent
}
