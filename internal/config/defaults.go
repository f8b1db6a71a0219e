package config

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults registers every default value with viper.
func SetDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.file", "")

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 18790)
	viper.SetDefault("server.rate_limit", 120)
	viper.SetDefault("server.burst", 20)

	viper.SetDefault("provider.default", "ollama")
	viper.SetDefault("provider.retries", 2)
	viper.SetDefault("provider.retry_delay", 500*time.Millisecond)

	viper.SetDefault("ollama.endpoint", "http://localhost:11434")
	viper.SetDefault("ollama.model", "qwen2.5-coder")
	viper.SetDefault("ollama.timeout", 5*time.Minute)
	viper.SetDefault("ollama.think", false)
	viper.SetDefault("ollama.num_ctx", 0)

	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.timeout", 2*time.Minute)

	viper.SetDefault("tools.workspace", ".")
	viper.SetDefault("tools.search_enabled", false)
	viper.SetDefault("tools.search_endpoint", "")
	viper.SetDefault("tools.shell_timeout", 30*time.Second)
	viper.SetDefault("tools.max_output_bytes", 1024*1024)
	viper.SetDefault("tools.allowed_hosts", []string{})

	viper.SetDefault("executor.default_timeout", 60*time.Second)
	viper.SetDefault("executor.history_size", 200)
	viper.SetDefault("executor.loop_window", 30*time.Second)
	viper.SetDefault("executor.loop_max_repeats", 3)
	viper.SetDefault("executor.loop_history_size", 100)
	viper.SetDefault("executor.max_result_bytes", 64*1024)

	viper.SetDefault("runner.max_rounds", 3)

	viper.SetDefault("storage.enabled", true)
	viper.SetDefault("storage.path", "")
	viper.SetDefault("storage.retention", "720h")
	viper.SetDefault("storage.prune_cron", "@hourly")
}
