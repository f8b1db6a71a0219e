package builtin

import (
	"time"

	"conductor/internal/tools"
)

// Options configures the builtin tool set.
type Options struct {
	Workspace      string
	ShellTimeout   time.Duration
	MaxOutputBytes int
	AllowedHosts   []string
	SearchEndpoint string
	SearchAPIKey   string

	// Runner and Searcher replace the local shell and HTTP search capabilities.
	Runner   CommandRunner
	Searcher Searcher
}

// Register adds every builtin tool to c.
func Register(c *tools.Catalog, opts Options) error {
	ws := NewWorkspace(opts.Workspace)

	searcher := opts.Searcher
	if searcher == nil {
		searcher = NewHTTPSearcher(opts.SearchEndpoint, opts.SearchAPIKey, 0)
	}

	builtins := []tools.Tool{
		NewReadFileTool(ws),
		NewWriteFileTool(ws),
		NewEditFileTool(ws),
		NewDeleteFileTool(ws),
		NewListDirectoryTool(ws),
		NewSearchFilesTool(ws),
		NewExecuteCommandTool(ws, opts.Runner, opts.ShellTimeout, opts.MaxOutputBytes),
		NewWebSearchTool(searcher),
		NewDownloadFileTool(ws, opts.AllowedHosts, 0),
		NewCalculateTool(),
	}
	for _, t := range builtins {
		if err := c.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// NewCatalog returns a catalog holding the builtin tools.
func NewCatalog(opts Options) (*tools.Catalog, error) {
	c := tools.NewCatalog()
	if err := Register(c, opts); err != nil {
		return nil, err
	}
	return c, nil
}

// Names lists the builtin tool names.
func Names() []string {
	return []string{
		tools.NameReadFile,
		tools.NameWriteFile,
		tools.NameEditFile,
		tools.NameDeleteFile,
		tools.NameListDirectory,
		tools.NameSearchFiles,
		tools.NameExecuteCommand,
		tools.NameWebSearch,
		tools.NameDownloadFile,
		tools.NameCalculate,
	}
}
