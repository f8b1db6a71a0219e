// Package config loads conductor configuration from defaults, an optional
// YAML file and CONDUCTOR_* environment variables.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Ollama   OllamaConfig   `mapstructure:"ollama" yaml:"ollama"`
	OpenAI   OpenAIConfig   `mapstructure:"openai" yaml:"openai"`
	Tools    ToolsConfig    `mapstructure:"tools" yaml:"tools"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Runner   RunnerConfig   `mapstructure:"runner" yaml:"runner"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
}

// LogConfig mirrors logger.LogConfig.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// RateLimit is requests per minute per client; 0 disables limiting.
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int `mapstructure:"burst" yaml:"burst"`
}

// ProviderConfig selects the model backend.
type ProviderConfig struct {
	Default    string        `mapstructure:"default" yaml:"default"` // ollama, openai
	Retries    int           `mapstructure:"retries" yaml:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model    string        `mapstructure:"model" yaml:"model"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Think    bool          `mapstructure:"think" yaml:"think"`
	NumCtx   int           `mapstructure:"num_ctx" yaml:"num_ctx"`
}

// OpenAIConfig configures an OpenAI-compatible backend.
type OpenAIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Model   string        `mapstructure:"model" yaml:"model"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ToolsConfig configures the builtin tools.
type ToolsConfig struct {
	Workspace      string        `mapstructure:"workspace" yaml:"workspace"`
	SearchEnabled  bool          `mapstructure:"search_enabled" yaml:"search_enabled"`
	SearchEndpoint string        `mapstructure:"search_endpoint" yaml:"search_endpoint"`
	SearchAPIKey   string        `mapstructure:"search_api_key" yaml:"search_api_key"`
	ShellTimeout   time.Duration `mapstructure:"shell_timeout" yaml:"shell_timeout"`
	MaxOutputBytes int           `mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
	AllowedHosts   []string      `mapstructure:"allowed_hosts" yaml:"allowed_hosts"`
}

// ExecutorConfig configures the tool executor.
type ExecutorConfig struct {
	DefaultTimeout  time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	HistorySize     int           `mapstructure:"history_size" yaml:"history_size"`
	LoopWindow      time.Duration `mapstructure:"loop_window" yaml:"loop_window"`
	LoopMaxRepeats  int           `mapstructure:"loop_max_repeats" yaml:"loop_max_repeats"`
	LoopHistorySize int           `mapstructure:"loop_history_size" yaml:"loop_history_size"`
	MaxResultBytes  int           `mapstructure:"max_result_bytes" yaml:"max_result_bytes"`
}

// RunnerConfig configures the round controller.
type RunnerConfig struct {
	MaxRounds int `mapstructure:"max_rounds" yaml:"max_rounds"`
}

// StorageConfig configures the sqlite audit store.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Path      string `mapstructure:"path" yaml:"path"`
	Retention string `mapstructure:"retention" yaml:"retention"` // e.g. 720h, empty keeps everything
	PruneCron string `mapstructure:"prune_cron" yaml:"prune_cron"`
}

// RetentionDuration parses Retention; zero means keep forever.
func (c StorageConfig) RetentionDuration() time.Duration {
	if c.Retention == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Retention)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

var (
	globalConfig *Config
	configPath   string
	mu           sync.RWMutex
)

// Load reads configuration. Precedence: env > file > defaults.
// A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("CONDUCTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expanded

		viper.SetConfigFile(expanded)
		if err := viper.ReadInConfig(); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, err
			}
			if _, statErr := os.Stat(expanded); statErr == nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Path returns the file the configuration was loaded from.
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return configPath
}

// GetString returns a raw string value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetBool returns a raw bool value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// Set updates a key and persists the configuration when it was loaded from a file.
func Set(key string, value any) error {
	mu.Lock()
	defer mu.Unlock()

	viper.Set(key, value)
	if configPath != "" {
		return save()
	}
	return nil
}

// save writes every setting back to configPath. Callers hold mu.
func save() error {
	if configPath == "" {
		return errors.New("config path not set")
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return err
	}
	// 0600: may hold API keys
	return os.WriteFile(configPath, data, 0600)
}

// SaveTo writes cfg as YAML to path.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Reset clears loaded state. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	configPath = ""
	viper.Reset()
}
