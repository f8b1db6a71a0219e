package metadata

import (
	"path/filepath"
	"strings"
)

// OpType is a file operation kind.
type OpType string

const (
	OpCreate OpType = "create_file"
	OpEdit   OpType = "edit_file"
	OpDelete OpType = "delete_file"
)

// FileOperation is a create, edit or delete instruction for a workspace file.
// Documents (office formats, PDF) carry no content: they are produced by a
// dedicated capability, not by writing text.
type FileOperation struct {
	Type       OpType `json:"type"`
	Path       string `json:"path"`
	Content    string `json:"content,omitempty"`
	Before     string `json:"before,omitempty"`
	After      string `json:"after,omitempty"`
	Diff       string `json:"diff,omitempty"`
	IsDocument bool   `json:"isDocument,omitempty"`
}

var opTypeAliases = map[string]OpType{
	"create": OpCreate, "createfile": OpCreate, "new": OpCreate, "newfile": OpCreate,
	"add": OpCreate, "addfile": OpCreate, "write": OpCreate, "writefile": OpCreate,
	"generate": OpCreate, "make": OpCreate, "makefile": OpCreate, "save": OpCreate,

	"edit": OpEdit, "editfile": OpEdit, "update": OpEdit, "updatefile": OpEdit,
	"modify": OpEdit, "modifyfile": OpEdit, "change": OpEdit, "replace": OpEdit,
	"patch": OpEdit, "overwrite": OpEdit, "rewrite": OpEdit,

	"delete": OpDelete, "deletefile": OpDelete, "remove": OpDelete, "removefile": OpDelete,
	"rm": OpDelete, "del": OpDelete, "unlink": OpDelete, "erase": OpDelete,
}

// NormalizeOpType maps an operation spelling to an OpType.
func NormalizeOpType(s string) (OpType, bool) {
	t, ok := opTypeAliases[normKey(s)]
	return t, ok
}

var documentExts = map[string]bool{
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true,
	".pptx": true, ".pdf": true, ".odt": true, ".ods": true, ".odp": true,
}

// IsDocumentPath reports whether path names a binary office document.
func IsDocumentPath(path string) bool {
	return documentExts[strings.ToLower(filepath.Ext(path))]
}
