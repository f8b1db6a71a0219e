package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"

	"conductor/internal/tools"
)

const maxDownloadBytes = 50 * 1024 * 1024

// DownloadFileArgs are the download_file parameters.
type DownloadFileArgs struct {
	URL  string `json:"url" jsonschema:"description=http or https URL to fetch,required"`
	Path string `json:"path" jsonschema:"description=Destination path relative to the workspace,required"`
}

// DownloadFileTool fetches a URL into the workspace.
type DownloadFileTool struct {
	tools.BaseTool
	ws      *Workspace
	client  *resty.Client
	allowed []string
}

// NewDownloadFileTool creates download_file. allowedHosts bypass the
// private-address check.
func NewDownloadFileTool(ws *Workspace, allowedHosts []string, timeout time.Duration) *DownloadFileTool {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	t := &DownloadFileTool{
		BaseTool: tools.BaseTool{Desc: tools.Descriptor{
			Name:        tools.NameDownloadFile,
			Description: "Download a file from an http(s) URL into the workspace.",
			Kind:        tools.KindDownload,
			Params:      tools.BuildParams(DownloadFileArgs{}),
		}},
		ws:      ws,
		allowed: allowedHosts,
	}
	t.client = resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			_, err := checkURL(req.Context(), req.URL.String(), t.allowed)
			return err
		}))
	return t
}

// Execute implements tools.Tool.
func (t *DownloadFileTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	u, err := checkURL(ctx, tools.StringArg(args, "url"), t.allowed)
	if err != nil {
		return tools.ToolResult{}, tools.NewValidationError(t.Name(), "url", err.Error())
	}
	dest, err := t.ws.Resolve(tools.StringArg(args, "path"))
	if err != nil {
		return tools.ToolResult{}, err
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(u.String())
	if err != nil {
		return tools.ToolResult{}, err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return tools.NewErrorResult(fmt.Sprintf("download failed: %s returned %d", u.Host, resp.StatusCode())), nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return tools.NewErrorResult(fmt.Sprintf("create directory: %v", err)), nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return tools.NewErrorResult(err.Error()), nil
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(body, maxDownloadBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return tools.ToolResult{}, err
	}
	if n > maxDownloadBytes {
		return tools.NewErrorResult(fmt.Sprintf("download exceeds %d bytes", maxDownloadBytes)), nil
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return tools.NewErrorResult(err.Error()), nil
	}

	return tools.NewResultWithMetadata(
		fmt.Sprintf("Downloaded %d bytes from %s to %s", n, u.Host, t.ws.Rel(dest)),
		map[string]any{"bytes": n, "path": t.ws.Rel(dest), "content_type": resp.Header().Get("Content-Type")},
	), nil
}
