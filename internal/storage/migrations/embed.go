package migrations

import "embed"

// FS holds the numbered SQL scripts.
//
//go:embed scripts/*.sql
var FS embed.FS
