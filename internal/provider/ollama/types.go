// Package ollama implements the model backend for a local Ollama server.
package ollama

import "time"

const (
	DefaultEndpoint  = "http://localhost:11434"
	DefaultModel     = "qwen2.5-coder"
	DefaultTimeout   = 5 * time.Minute
	DefaultKeepAlive = "5m"
)

// Config selects the server, the model and how it is run.
type Config struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Model     string        `mapstructure:"model"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeepAlive string        `mapstructure:"keep_alive"`
	// Think asks reasoning models to return their thinking separately.
	Think bool `mapstructure:"think"`
	// NumCtx overrides the model's context window. Prompts that carry
	// several rounds of tool output often outgrow the 2048 token default.
	NumCtx int `mapstructure:"num_ctx"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint:  DefaultEndpoint,
		Model:     DefaultModel,
		Timeout:   DefaultTimeout,
		KeepAlive: DefaultKeepAlive,
	}
}

// chatRequest is the body of POST /api/chat. conductor never streams.
type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []chatMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	Think     bool           `json:"think,omitempty"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

// chatResponse is a non-streamed reply. Ollama also reports failures in
// the error field of a 200 body.
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`

	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
	TotalDuration   int64 `json:"total_duration,omitempty"` // nanoseconds
}

type errorBody struct {
	Error string `json:"error"`
}
