package ollama

import (
	"conductor/internal/config"
	"conductor/internal/provider"
	"conductor/pkg/logger"
)

// Register registers the Ollama backend factory.
// This should be called during application initialization.
func Register() {
	provider.Register(name, func(cfg *config.Config) (provider.Backend, error) {
		c := Config{
			Endpoint: cfg.Ollama.Endpoint,
			Model:    cfg.Ollama.Model,
			Timeout:  cfg.Ollama.Timeout,
			Think:    cfg.Ollama.Think,
			NumCtx:   cfg.Ollama.NumCtx,
		}
		b := New(c)
		logger.Debug().
			Str("endpoint", b.endpoint).
			Str("model", b.model).
			Msg("Ollama backend created")
		return b, nil
	})
}
