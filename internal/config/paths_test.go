package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPaths(t *testing.T) {
	home, _ := os.UserHomeDir()

	dir, err := DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir() error: %v", err)
	}
	if want := filepath.Join(home, ".conductor"); dir != want {
		t.Errorf("DefaultConfigDir() = %q, want %q", dir, want)
	}

	cfgPath, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath() error: %v", err)
	}
	if !strings.HasSuffix(cfgPath, filepath.Join(".conductor", "config.yaml")) {
		t.Errorf("DefaultConfigPath() = %q", cfgPath)
	}

	dataPath, err := DefaultDataPath()
	if err != nil {
		t.Fatalf("DefaultDataPath() error: %v", err)
	}
	if !strings.HasSuffix(dataPath, filepath.Join(".conductor", "data.db")) {
		t.Errorf("DefaultDataPath() = %q", dataPath)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"~", home},
		{"~/work", filepath.Join(home, "work")},
		{"/abs/path", "/abs/path"},
		{"rel/path", "rel/path"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ExpandPath(tt.input)
			if err != nil {
				t.Fatalf("ExpandPath(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveWorkspace(t *testing.T) {
	dir := t.TempDir()

	t.Run("existing directory", func(t *testing.T) {
		got, err := ResolveWorkspace(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !filepath.IsAbs(got) {
			t.Errorf("expected absolute path, got %q", got)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		if _, err := ResolveWorkspace(filepath.Join(dir, "nope")); err == nil {
			t.Error("expected error for missing workspace")
		}
	})

	t.Run("file instead of directory", func(t *testing.T) {
		f := filepath.Join(dir, "file.txt")
		if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := ResolveWorkspace(f); err == nil {
			t.Error("expected error for non-directory workspace")
		}
	})
}
