package runner

// Config holds configuration for the round controller.
type Config struct {
	// MaxRounds bounds the model rounds of one conversation, fallbacks
	// included. Default is 3.
	MaxRounds int `json:"max_rounds"`

	// SearchResults is the max_results used for controller-issued searches.
	// Default is 5.
	SearchResults int `json:"search_results"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRounds:     3,
		SearchResults: 5,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxRounds <= 0 {
		c.MaxRounds = def.MaxRounds
	}
	if c.SearchResults <= 0 {
		c.SearchResults = def.SearchResults
	}
	return c
}
