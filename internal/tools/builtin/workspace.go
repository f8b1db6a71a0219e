// Package builtin provides conductor's builtin tools and the local
// capabilities (workspace files, shell, search, download) they call.
package builtin

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideWorkspace is returned for paths that escape the workspace root.
var ErrOutsideWorkspace = errors.New("path is outside the workspace")

// Workspace confines file access to one root directory.
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at an absolute directory.
func NewWorkspace(root string) *Workspace {
	return &Workspace{root: filepath.Clean(root)}
}

// Root returns the workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve maps a model-supplied path to an absolute path inside the root.
// Relative paths are taken relative to the root.
func (w *Workspace) Resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.root, path)
	}
	clean := filepath.Clean(path)

	rel, err := filepath.Rel(w.root, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, path)
	}
	return clean, nil
}

// Rel returns path relative to the root, for display.
func (w *Workspace) Rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
