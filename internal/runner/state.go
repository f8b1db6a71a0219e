package runner

// State is a round controller state.
type State int

const (
	StateAwaitingModel State = iota
	StateParsingCalls
	StateExecutingTools
	StateAwaitingFollowup
	StateExtractingMetadata
	StateEvaluatingContinuation
	StateDone
	StateAbortedMaxRounds
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateParsingCalls:
		return "parsing_calls"
	case StateExecutingTools:
		return "executing_tools"
	case StateAwaitingFollowup:
		return "awaiting_followup"
	case StateExtractingMetadata:
		return "extracting_metadata"
	case StateEvaluatingContinuation:
		return "evaluating_continuation"
	case StateDone:
		return "done"
	case StateAbortedMaxRounds:
		return "aborted_max_rounds"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RoundKind says why a round was started.
type RoundKind string

const (
	RoundInitial        RoundKind = "initial"
	RoundContinuation   RoundKind = "continuation"
	RoundRegenerate     RoundKind = "regenerate"
	RoundSearchFallback RoundKind = "search_fallback"
)
