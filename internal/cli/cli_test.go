package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/config"
	"conductor/internal/tools"
)

// writeConfig writes a config file rooted in a temp dir and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	ws := filepath.Join(dir, "ws")
	require.NoError(t, os.MkdirAll(ws, 0755))

	content := fmt.Sprintf(`log:
  level: error
tools:
  workspace: %s
storage:
  path: %s
%s`, ws, filepath.Join(dir, "data.db"), extra)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Cleanup(config.Reset)
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func fakeOllama(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "test",
			"message": map[string]string{"role": "assistant", "content": reply},
			"done":    true,
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "", "version", "--json")
	require.NoError(t, err)

	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestVersionCmd_Text(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "conductor  "+Version)
	assert.Contains(t, out, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestRootCmd_VerboseAndQuietConflict(t *testing.T) {
	path := writeConfig(t, "")
	_, err := execute(t, "", "--config", path, "-v", "-q", "tools")
	assert.ErrorContains(t, err, "verbose")
}

func TestVersionCmd_SkipsConfig(t *testing.T) {
	_, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "missing", "nope.yaml"), "version")
	assert.NoError(t, err)
}

func TestApplyVCS(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	var fromVCS BuildInfo
	applyVCS(&fromVCS, settings)
	assert.Equal(t, "0123456789ab", fromVCS.GitCommit)
	assert.Equal(t, "2026-10-01T12:00:00Z", fromVCS.BuildTime)
	assert.True(t, fromVCS.Modified)

	stamped := BuildInfo{GitCommit: "release1", BuildTime: "2026-09-30"}
	applyVCS(&stamped, settings)
	assert.Equal(t, "release1", stamped.GitCommit, "ldflags win over the VCS stamp")
	assert.Equal(t, "2026-09-30", stamped.BuildTime)
}

func TestToolsCmd(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "", "--config", path, "tools", "--json")
	require.NoError(t, err)

	var descs []tools.Descriptor
	require.NoError(t, json.Unmarshal([]byte(out), &descs))
	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, tools.NameReadFile)
	assert.Contains(t, names, tools.NameWriteFile)
	assert.NotContains(t, names, tools.NameWebSearch)
}

func TestToolsCmd_Table(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "", "--config", path, "tools", "--mode", "ask")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, tools.NameWriteFile+" ") {
			assert.Contains(t, line, " no ")
		}
		if strings.HasPrefix(line, tools.NameReadFile+" ") {
			assert.Contains(t, line, " yes ")
		}
	}
}

func TestChatCmd_OneShot(t *testing.T) {
	ts := fakeOllama(t, "Hello there")
	path := writeConfig(t, fmt.Sprintf("ollama:\n  endpoint: %s\n", ts.URL))

	out, err := execute(t, "", "--config", path, "chat", "hi")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello there")

	out, err = execute(t, "", "--config", path, "conversations", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "hi")
}

func TestChatCmd_Stdin(t *testing.T) {
	ts := fakeOllama(t, "From the model")
	path := writeConfig(t, fmt.Sprintf("ollama:\n  endpoint: %s\n", ts.URL))

	out, err := execute(t, "piped question\n", "--config", path, "chat", "--json")
	require.NoError(t, err)

	var res struct {
		Answer         string `json:"answer"`
		ConversationID string `json:"conversation_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "From the model", res.Answer)
	assert.NotEmpty(t, res.ConversationID)

	out, err = execute(t, "", "--config", path, "conversations", "show", res.ConversationID)
	require.NoError(t, err)
	assert.Contains(t, out, "piped question")
}

func TestChatCmd_EmptyStdin(t *testing.T) {
	ts := fakeOllama(t, "unused")
	path := writeConfig(t, fmt.Sprintf("ollama:\n  endpoint: %s\n", ts.URL))

	_, err := execute(t, "  \n", "--config", path, "chat")
	assert.Error(t, err)
}

func TestChatCmd_UnknownProvider(t *testing.T) {
	path := writeConfig(t, "provider:\n  default: nope\n")

	_, err := execute(t, "", "--config", path, "chat", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestStatsCmd_Empty(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "", "--config", path, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "No tool executions recorded.")
}

func TestStatsDBCmd(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "", "--config", path, "stats", "db")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(filepath.Dir(path), "data.db"))
	assert.Contains(t, out, "Schema: v2")
}

func TestStatsCmd_StorageDisabled(t *testing.T) {
	path := writeConfig(t, "")
	// Appending a second storage block would be invalid YAML, so use env.
	t.Setenv("CONDUCTOR_STORAGE_ENABLED", "false")

	_, err := execute(t, "", "--config", path, "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage is disabled")
}

func TestStatsClearCmd_Cancelled(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "n\n", "--config", path, "stats", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled.")
}

func TestConfigCmd(t *testing.T) {
	path := writeConfig(t, "openai:\n  api_key: sk-secret\n")

	out, err := execute(t, "", "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "sk-secret")

	out, err = execute(t, "", "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path, strings.TrimSpace(out))

	_, err = execute(t, "", "--config", path, "config", "set", "tools.search_enabled", "true")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Tools.SearchEnabled)
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	path := writeConfig(t, "")

	_, err := execute(t, "", "--config", path, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err := execute(t, "", "--config", path, "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\n b\t c", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
