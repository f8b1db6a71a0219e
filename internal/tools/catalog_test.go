package tools

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type stubTool struct {
	BaseTool
	execFn func(ctx context.Context, args map[string]any) (ToolResult, error)
}

func (s *stubTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	if s.execFn == nil {
		return NewSuccessResult("ok"), nil
	}
	return s.execFn(ctx, args)
}

func newStub(name string, kind Kind) *stubTool {
	return &stubTool{BaseTool: BaseTool{Desc: Descriptor{Name: name, Kind: kind}}}
}

func TestCatalog(t *testing.T) {
	t.Run("Register and Lookup", func(t *testing.T) {
		c := NewCatalog()
		if err := c.Register(newStub("read_file", KindRead)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, ok := c.Lookup(context.Background(), "read_file")
		if !ok {
			t.Fatal("expected tool to be found")
		}
		if got.Descriptor().Name != "read_file" {
			t.Errorf("name = %q", got.Descriptor().Name)
		}
		if _, ok := c.Lookup(context.Background(), "missing"); ok {
			t.Error("expected missing tool to be absent")
		}
	})

	t.Run("Register duplicate", func(t *testing.T) {
		c := NewCatalog()
		c.MustRegister(newStub("dup", KindRead))
		err := c.Register(newStub("dup", KindRead))
		if !errors.Is(err, ErrToolAlreadyExists) {
			t.Errorf("expected ErrToolAlreadyExists, got %v", err)
		}
	})

	t.Run("Register invalid", func(t *testing.T) {
		c := NewCatalog()
		if err := c.Register(nil); err == nil {
			t.Error("expected error for nil tool")
		}
		if err := c.Register(newStub("", KindRead)); err == nil {
			t.Error("expected error for empty name")
		}
	})

	t.Run("ListTools sorted", func(t *testing.T) {
		c := NewCatalog()
		c.MustRegister(newStub("write_file", KindWrite))
		c.MustRegister(newStub("calculate", KindRead))
		c.MustRegister(newStub("list_directory", KindRead))

		list := c.ListTools(context.Background())
		if len(list) != 3 {
			t.Fatalf("expected 3 tools, got %d", len(list))
		}
		want := []string{"calculate", "list_directory", "write_file"}
		for i, d := range list {
			if d.Name != want[i] {
				t.Errorf("list[%d] = %q, want %q", i, d.Name, want[i])
			}
		}
	})

	t.Run("Search tool depends on context", func(t *testing.T) {
		c := NewCatalog()
		search := newStub("web_search", KindNetwork)
		search.Desc.Feature = FeatureSearch
		c.MustRegister(search)
		c.MustRegister(newStub("read_file", KindRead))

		ctx := context.Background()
		if n := len(c.ListTools(ctx)); n != 1 {
			t.Errorf("search disabled: expected 1 tool, got %d", n)
		}
		if _, ok := c.Lookup(ctx, "web_search"); ok {
			t.Error("disabled search tool should not resolve")
		}
		if _, ok := c.Describe(ctx, "web_search"); ok {
			t.Error("disabled search tool should not be described")
		}
		if d, ok := c.Describe(WithSearchEnabled(ctx, true), "web_search"); !ok || d.Kind != KindNetwork {
			t.Errorf("Describe = %+v, %v", d, ok)
		}

		if n := len(c.ListTools(WithSearchEnabled(ctx, true))); n != 2 {
			t.Errorf("per-request override: expected 2 tools, got %d", n)
		}

		c.SetSearchEnabled(true)
		if n := len(c.ListTools(ctx)); n != 2 {
			t.Errorf("catalog default: expected 2 tools, got %d", n)
		}
		if n := len(c.ListTools(WithSearchEnabled(ctx, false))); n != 1 {
			t.Errorf("override off: expected 1 tool, got %d", n)
		}
	})

	t.Run("Concurrent access", func(t *testing.T) {
		c := NewCatalog()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				_ = c.Register(newStub("tool_"+string(rune('a'+i%26))+string(rune('a'+i/26)), KindRead))
			}(i)
			go func() {
				defer wg.Done()
				_ = c.ListTools(context.Background())
			}()
		}
		wg.Wait()
		if c.Len() != 50 {
			t.Errorf("expected 50 tools, got %d", c.Len())
		}
	})
}

func TestKindMutating(t *testing.T) {
	tests := map[Kind]bool{
		KindRead:     false,
		KindNetwork:  false,
		KindWrite:    true,
		KindExecute:  true,
		KindDownload: true,
	}
	for kind, want := range tests {
		if got := kind.Mutating(); got != want {
			t.Errorf("%s.Mutating() = %v, want %v", kind, got, want)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"agent", ModeAgent},
		{"Agent", ModeAgent},
		{"edit", ModeAgent},
		{"ask", ModeAsk},
		{"", ModeAsk},
		{"whatever", ModeAsk},
	}
	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if !ModeAgent.AllowsWrite() || ModeAsk.AllowsWrite() {
		t.Error("AllowsWrite mismatch")
	}
}

func TestCallKey(t *testing.T) {
	a := Call{Name: "read_file", Arguments: map[string]any{"path": "a.txt", "start_line": 1.0}}
	b := Call{Name: "read_file", Arguments: map[string]any{"start_line": 1.0, "path": "a.txt"}}
	if a.Key() != b.Key() {
		t.Errorf("expected equal keys, got %q and %q", a.Key(), b.Key())
	}

	c := Call{Name: "read_file"}
	if c.CanonicalArgs() != "{}" {
		t.Errorf("empty args canonical = %q", c.CanonicalArgs())
	}
}
