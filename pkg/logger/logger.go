// Package logger holds conductor's process-wide zerolog logger. Components
// take a tagged child with Component; request-scoped code reads the logger
// attached to its context with FromContext.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogConfig selects the level, the stderr format and an optional log file.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // trace, debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // console, json
	File   string `json:"file" mapstructure:"file"`     // appended to when set
}

var (
	mu   sync.RWMutex
	root *zerolog.Logger // nil until Init or SetOutput
	file *os.File
)

// parseLevel maps a config level to zerolog's. Unknown or empty levels
// mean info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return zerolog.WarnLevel
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// Init replaces the global logger. A log file opened by an earlier Init is
// closed once the new writer is in place.
func Init(cfg LogConfig) error {
	var out io.Writer = os.Stderr
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}

	var f *os.File
	if cfg.File != "" {
		var err error
		if f, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err != nil {
			return fmt.Errorf("open log file %s: %w", cfg.File, err)
		}
		out = zerolog.MultiLevelWriter(out, f)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	l := zerolog.New(out).With().Timestamp().Caller().Logger()

	mu.Lock()
	prev := file
	root, file = &l, f
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// SetOutput sends the global logger to w without changing the level.
func SetOutput(w io.Writer) {
	l := zerolog.New(w).With().Timestamp().Logger()
	mu.Lock()
	root = &l
	mu.Unlock()
}

// Get returns a copy of the global logger. Before Init it writes JSON to
// stderr.
func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if root == nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		return &l
	}
	l := *root
	return &l
}

// Component returns a child logger tagged with component=name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// FromContext returns the logger attached to ctx with zerolog's
// Logger.WithContext, or the global logger when there is none.
func FromContext(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return *Get()
}

// Close closes the log file, if any, and returns logging to stderr.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file, root = nil, nil
	return err
}

func Debug() *zerolog.Event { return Get().Debug() }

func Info() *zerolog.Event { return Get().Info() }

func Warn() *zerolog.Event { return Get().Warn() }

func Error() *zerolog.Event { return Get().Error() }
