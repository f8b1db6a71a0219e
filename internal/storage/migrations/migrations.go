// Package migrations holds conductor's SQLite schema as numbered SQL
// scripts and applies the ones a database has not seen yet.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Script is one numbered schema change, e.g. 002_conversations.sql.
type Script struct {
	Version int
	Name    string
	SQL     string
}

var scriptNameRe = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.sql$`)

// Load reads the scripts in dir of fsys, ordered by version. Files that do
// not look like NNN_name.sql are ignored; two scripts sharing a version are
// an error.
func Load(fsys fs.FS, dir string) ([]Script, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	byVersion := make(map[int]string)
	var scripts []Script
	for _, e := range entries {
		m := scriptNameRe.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		version, _ := strconv.Atoi(m[1])
		if prev, dup := byVersion[version]; dup {
			return nil, fmt.Errorf("version %d used by %s and %s", version, prev, e.Name())
		}
		byVersion[version] = e.Name()

		// embed.FS paths are always slash separated.
		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		scripts = append(scripts, Script{Version: version, Name: m[2], SQL: string(body)})
	}

	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Version < scripts[j].Version })
	return scripts, nil
}

// Migrator applies scripts and records them in schema_migrations.
type Migrator struct {
	scripts []Script
	log     zerolog.Logger
}

// New creates a Migrator over the embedded scripts.
func New(log zerolog.Logger) (*Migrator, error) {
	scripts, err := Load(FS, "scripts")
	if err != nil {
		return nil, err
	}
	return NewWithScripts(scripts, log), nil
}

// NewWithScripts creates a Migrator over scripts already loaded.
func NewWithScripts(scripts []Script, log zerolog.Logger) *Migrator {
	return &Migrator{scripts: scripts, log: log}
}

const createTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at INTEGER NOT NULL
)`

// Apply runs every pending script, each in its own transaction, and
// returns the scripts it applied. A failing script stops the run; the
// scripts before it stay applied.
func (m *Migrator) Apply(ctx context.Context, db *sql.DB) ([]Script, error) {
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	done, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	var applied []Script
	for _, s := range m.scripts {
		if done[s.Version] {
			continue
		}
		start := time.Now()
		if err := apply(ctx, db, s); err != nil {
			return applied, fmt.Errorf("migration %03d_%s: %w", s.Version, s.Name, err)
		}
		m.log.Info().
			Int("version", s.Version).
			Str("name", s.Name).
			Dur("duration", time.Since(start)).
			Msg("schema migration applied")
		applied = append(applied, s)
	}
	return applied, nil
}

// CurrentVersion returns the highest applied version, 0 for a fresh database.
func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	return v, err
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

func apply(ctx context.Context, db *sql.DB, s Script) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
		s.Version, s.Name, time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}
