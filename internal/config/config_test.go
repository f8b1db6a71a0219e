package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 18790, cfg.Server.Port)
	assert.Equal(t, "ollama", cfg.Provider.Default)
	assert.Equal(t, 3, cfg.Runner.MaxRounds)
	assert.Equal(t, 30*time.Second, cfg.Executor.LoopWindow)
	assert.Equal(t, 3, cfg.Executor.LoopMaxRepeats)
	assert.Equal(t, 64*1024, cfg.Executor.MaxResultBytes)
	assert.False(t, cfg.Tools.SearchEnabled)
	assert.Equal(t, 720*time.Hour, cfg.Storage.RetentionDuration())
	assert.True(t, cfg.Storage.Enabled)
	assert.Equal(t, 120, cfg.Server.RateLimit)
}

func TestLoad_FromFile(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
runner:
  max_rounds: 5
tools:
  search_enabled: true
  shell_timeout: 10s
executor:
  loop_window: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Runner.MaxRounds)
	assert.True(t, cfg.Tools.SearchEnabled)
	assert.Equal(t, 10*time.Second, cfg.Tools.ShellTimeout)
	assert.Equal(t, time.Minute, cfg.Executor.LoopWindow)
	assert.Equal(t, path, Path())
	assert.Same(t, cfg, GetConfig())
}

func TestLoad_MissingFile(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Runner.MaxRounds)
}

func TestLoad_InvalidYAML(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runner: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	Reset()
	defer Reset()

	t.Setenv("CONDUCTOR_RUNNER_MAX_ROUNDS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Runner.MaxRounds)
}

func TestSetPersists(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	_, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, Set("tools.search_enabled", true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "search_enabled: true")
}

func TestStorageRetention(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"24h", 24 * time.Hour},
		{"bogus", 0},
		{"-1h", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, StorageConfig{Retention: tt.in}.RetentionDuration())
		})
	}
}

func TestWatch(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools:\n  search_enabled: false\n"), 0644))
	_, err := Load(path)
	require.NoError(t, err)

	changed := make(chan *Config, 1)
	w, err := Watch(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("tools:\n  search_enabled: true\n"), 0644))

	select {
	case c := <-changed:
		assert.True(t, c.Tools.SearchEnabled)
	case <-time.After(3 * time.Second):
		t.Fatal("config change not observed")
	}
}
