package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const appDir = ".conductor"

// DefaultConfigDir returns ~/.conductor.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, appDir), nil
}

// DefaultConfigPath returns ~/.conductor/config.yaml.
func DefaultConfigPath() (string, error) {
	return underConfigDir("config.yaml")
}

// DefaultDataPath returns ~/.conductor/data.db.
func DefaultDataPath() (string, error) {
	return underConfigDir("data.db")
}

func underConfigDir(name string) (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	switch {
	case path == "":
		return "", nil
	case path == "~":
		return os.UserHomeDir()
	case strings.HasPrefix(path, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// ResolveWorkspace expands and absolutizes the tool workspace root and
// checks that it is an existing directory.
func ResolveWorkspace(path string) (string, error) {
	if path == "" {
		path = "."
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("workspace %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace %s is not a directory", abs)
	}
	return abs, nil
}
