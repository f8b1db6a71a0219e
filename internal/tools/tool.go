// Package tools defines the tool contract, descriptors, typed errors and the
// catalog the rest of conductor discovers tools through.
package tools

import (
	"context"
	"encoding/json"
)

// Kind classifies what a tool does to the outside world.
type Kind string

const (
	KindRead     Kind = "read"
	KindWrite    Kind = "write"
	KindExecute  Kind = "execute"
	KindNetwork  Kind = "network"
	KindDownload Kind = "download"
)

// Mutating reports whether tools of this kind need write permission.
func (k Kind) Mutating() bool {
	switch k {
	case KindWrite, KindExecute, KindDownload:
		return true
	}
	return false
}

// Builtin tool names.
const (
	NameReadFile       = "read_file"
	NameWriteFile      = "write_file"
	NameEditFile       = "edit_file"
	NameDeleteFile     = "delete_file"
	NameListDirectory  = "list_directory"
	NameSearchFiles    = "search_files"
	NameExecuteCommand = "execute_command"
	NameWebSearch      = "web_search"
	NameDownloadFile   = "download_file"
	NameCalculate      = "calculate"
)

// Tool is a capability the model may invoke. Implementations must be safe
// for concurrent use.
type Tool interface {
	// Descriptor returns the immutable description used for discovery and validation.
	Descriptor() Descriptor

	// Execute runs the capability with already validated arguments.
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
}

// ToolResult is what a capability reports back.
type ToolResult struct {
	Content  string         `json:"content"`
	IsError  bool           `json:"is_error"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewSuccessResult creates a successful result.
func NewSuccessResult(content string) ToolResult {
	return ToolResult{Content: content}
}

// NewErrorResult creates a failed result; the executor reports it as an ExecutionError.
func NewErrorResult(msg string) ToolResult {
	return ToolResult{Content: msg, IsError: true}
}

// NewResultWithMetadata creates a successful result carrying metadata.
func NewResultWithMetadata(content string, metadata map[string]any) ToolResult {
	return ToolResult{Content: content, Metadata: metadata}
}

// BaseTool carries a descriptor for embedding into concrete tools.
type BaseTool struct {
	Desc Descriptor
}

// Descriptor implements Tool.
func (t *BaseTool) Descriptor() Descriptor {
	return t.Desc
}

// Name is a shortcut for Descriptor().Name.
func (t *BaseTool) Name() string {
	return t.Desc.Name
}

// Call is one invocation request extracted from model text.
type Call struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	RawText   string         `json:"-"`
}

// CanonicalArgs renders the arguments deterministically (sorted keys).
func (c Call) CanonicalArgs() string {
	if len(c.Arguments) == 0 {
		return "{}"
	}
	data, err := json.Marshal(c.Arguments)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Key identifies a call by name and canonical arguments.
func (c Call) Key() string {
	return c.Name + "\x00" + c.CanonicalArgs()
}
