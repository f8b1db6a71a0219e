package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture points the global logger at a buffer for the rest of the test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	level := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(level)
		mu.Lock()
		root = nil
		mu.Unlock()
	})
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" info ":  zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	} {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conductor.log")
	t.Cleanup(func() { _ = Close() })

	require.NoError(t, Init(LogConfig{Level: "warn", Format: "json", File: path}))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	Info().Msg("below the level")
	Warn().Str("tool", "execute_command").Msg("command refused")
	require.NoError(t, Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "command refused")
	assert.Contains(t, string(content), `"tool":"execute_command"`)
	assert.NotContains(t, string(content), "below the level")
}

func TestInit_ReplacesFile(t *testing.T) {
	dir := t.TempDir()
	first, second := filepath.Join(dir, "a.log"), filepath.Join(dir, "b.log")
	t.Cleanup(func() { _ = Close() })

	require.NoError(t, Init(LogConfig{Level: "info", File: first}))
	require.NoError(t, Init(LogConfig{Level: "info", File: second}))
	Info().Msg("to the second file")
	require.NoError(t, Close())

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.NotContains(t, string(a), "to the second file")
	assert.Contains(t, string(b), "to the second file")
}

func TestInit_UnwritableFile(t *testing.T) {
	err := Init(LogConfig{Level: "info", File: "/nonexistent/dir/conductor.log"})
	assert.ErrorContains(t, err, "open log file")
}

func TestComponent(t *testing.T) {
	buf := capture(t)

	l := Component("executor")
	l.Info().Str("tool", "read_file").Msg("dispatched")

	entry := lastEntry(t, buf)
	assert.Equal(t, "executor", entry["component"])
	assert.Equal(t, "read_file", entry["tool"])
}

func TestFromContext(t *testing.T) {
	buf := capture(t)

	t.Run("attached logger", func(t *testing.T) {
		l := Component("http").With().Str("request_id", "req-1").Logger()
		ctx := l.WithContext(context.Background())

		log := FromContext(ctx)
		log.Info().Msg("served")
		assert.Equal(t, "req-1", lastEntry(t, buf)["request_id"])
	})

	t.Run("falls back to the global logger", func(t *testing.T) {
		log := FromContext(context.Background())
		log.Info().Msg("no request")

		entry := lastEntry(t, buf)
		assert.Equal(t, "no request", entry["message"])
		assert.NotContains(t, entry, "request_id")
	})
}

func TestGet_BeforeInit(t *testing.T) {
	mu.Lock()
	root = nil
	mu.Unlock()

	require.NotNil(t, Get())
	assert.NoError(t, Close())
}
