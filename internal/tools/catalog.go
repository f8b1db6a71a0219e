package tools

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

type contextKey string

const searchEnabledKey contextKey = "search_enabled"

// WithSearchEnabled overrides the catalog's search setting for one request.
func WithSearchEnabled(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, searchEnabledKey, enabled)
}

// Catalog is the set of tools available to conversations. Tools are
// registered at composition time; what a request sees depends on its context.
type Catalog struct {
	mu            sync.RWMutex
	tools         map[string]Tool
	searchEnabled atomic.Bool
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]Tool)}
}

// Register adds a tool.
func (c *Catalog) Register(tool Tool) error {
	if tool == nil {
		return NewValidationError("", "", "tool cannot be nil")
	}
	name := tool.Descriptor().Name
	if name == "" {
		return NewValidationError("", "name", "tool name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tools[name]; exists {
		return &ToolAlreadyExistsError{Name: name}
	}
	c.tools[name] = tool
	return nil
}

// MustRegister registers a tool and panics on error. Composition code only.
func (c *Catalog) MustRegister(tool Tool) {
	if err := c.Register(tool); err != nil {
		panic(err)
	}
}

// SetSearchEnabled changes the default search setting.
func (c *Catalog) SetSearchEnabled(enabled bool) {
	c.searchEnabled.Store(enabled)
}

// SearchEnabled reports whether search tools are visible for ctx.
func (c *Catalog) SearchEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(searchEnabledKey).(bool); ok {
		return v
	}
	return c.searchEnabled.Load()
}

func (c *Catalog) visible(ctx context.Context, d Descriptor) bool {
	if d.Feature == FeatureSearch {
		return c.SearchEnabled(ctx)
	}
	return true
}

// Lookup returns the tool registered under name if it is visible for ctx.
func (c *Catalog) Lookup(ctx context.Context, name string) (Tool, bool) {
	c.mu.RLock()
	t, ok := c.tools[name]
	c.mu.RUnlock()
	if !ok || !c.visible(ctx, t.Descriptor()) {
		return nil, false
	}
	return t, true
}

// Describe returns the descriptor of a visible tool.
func (c *Catalog) Describe(ctx context.Context, name string) (Descriptor, bool) {
	t, ok := c.Lookup(ctx, name)
	if !ok {
		return Descriptor{}, false
	}
	return t.Descriptor(), true
}

// ListTools returns the descriptors visible for ctx, sorted by name.
func (c *Catalog) ListTools(ctx context.Context) []Descriptor {
	c.mu.RLock()
	out := make([]Descriptor, 0, len(c.tools))
	for _, t := range c.tools {
		d := t.Descriptor()
		if c.visible(ctx, d) {
			out = append(out, d)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered tools, visible or not.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}
