package runner

import (
	"conductor/internal/executor"
	"conductor/internal/tools"
)

// Event describes one state transition of a conversation.
type Event struct {
	ConversationID string `json:"conversation_id"`
	Round          int    `json:"round"`
	From           State  `json:"from"`
	To             State  `json:"to"`

	// Calls is set when entering StateExecutingTools.
	Calls []tools.Call `json:"calls,omitempty"`

	// Results is set when leaving StateExecutingTools.
	Results []executor.Result `json:"results,omitempty"`

	// Answer is set when entering StateDone.
	Answer string `json:"answer,omitempty"`
}

// Observer receives every transition. It runs on the conversation's
// goroutine and must not block for long.
type Observer func(Event)
