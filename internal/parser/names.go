package parser

import (
	"strings"
	"unicode"

	"conductor/internal/tools"
)

// synonyms maps names models commonly invent to builtin tool names.
var synonyms = map[string]string{
	"bash":        tools.NameExecuteCommand,
	"shell":       tools.NameExecuteCommand,
	"run_command": tools.NameExecuteCommand,
	"run_shell":   tools.NameExecuteCommand,
	"exec":        tools.NameExecuteCommand,
	"execute":     tools.NameExecuteCommand,
	"terminal":    tools.NameExecuteCommand,

	"ls":          tools.NameListDirectory,
	"list_dir":    tools.NameListDirectory,
	"list_files":  tools.NameListDirectory,
	"list_folder": tools.NameListDirectory,

	"cat":       tools.NameReadFile,
	"open_file": tools.NameReadFile,
	"view_file": tools.NameReadFile,
	"get_file":  tools.NameReadFile,

	"search":          tools.NameWebSearch,
	"google":          tools.NameWebSearch,
	"search_web":      tools.NameWebSearch,
	"internet_search": tools.NameWebSearch,

	"grep":          tools.NameSearchFiles,
	"find_in_files": tools.NameSearchFiles,
	"search_code":   tools.NameSearchFiles,

	"create_file": tools.NameWriteFile,
	"save_file":   tools.NameWriteFile,
	"new_file":    tools.NameWriteFile,

	"update_file":     tools.NameEditFile,
	"modify_file":     tools.NameEditFile,
	"replace_in_file": tools.NameEditFile,

	"rm":          tools.NameDeleteFile,
	"remove_file": tools.NameDeleteFile,

	"download":  tools.NameDownloadFile,
	"fetch_url": tools.NameDownloadFile,
	"wget":      tools.NameDownloadFile,

	"calc":       tools.NameCalculate,
	"calculator": tools.NameCalculate,
	"eval":       tools.NameCalculate,
}

// snakeCase turns "readFile", "Read-File" and "read file" into "read_file".
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(name))
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '.' || r == '_':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}

func squash(name string) string {
	return strings.ReplaceAll(name, "_", "")
}

// normalizer resolves model-written names against a fixed set of tools.
type normalizer struct {
	known    map[string]bool
	squashed map[string]string
}

func newNormalizer(descs []tools.Descriptor) *normalizer {
	n := &normalizer{
		known:    make(map[string]bool, len(descs)),
		squashed: make(map[string]string, len(descs)),
	}
	for _, d := range descs {
		n.known[d.Name] = true
		n.squashed[squash(d.Name)] = d.Name
	}
	return n
}

// resolve returns the canonical tool name and whether it is known. Unknown
// names come back cleaned so the executor can report them.
func (n *normalizer) resolve(name string) (string, bool) {
	name = strings.Trim(strings.TrimSpace(name), "\"'`")
	if n.known[name] {
		return name, true
	}
	snake := snakeCase(name)
	if n.known[snake] {
		return snake, true
	}
	if canon, ok := n.squashed[squash(snake)]; ok {
		return canon, true
	}
	if canon, ok := synonyms[snake]; ok && n.known[canon] {
		return canon, true
	}
	for alias, canon := range synonyms {
		if squash(alias) == squash(snake) && n.known[canon] {
			return canon, true
		}
	}
	return snake, false
}
