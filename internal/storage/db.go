// Package storage persists tool executions and finished conversations in
// SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"conductor/internal/config"
	"conductor/internal/storage/migrations"
	"conductor/pkg/logger"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// DB is conductor's audit database. It keeps a single connection, so the
// connection pragmas hold for every statement and writers never contend.
type DB struct {
	*sql.DB
	path    string
	version int
}

// connPragmas are applied once, on the only connection.
var connPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// Open opens the database at path, creating it and its directory when
// missing, and brings the schema up to date. "~" is expanded.
func Open(path string) (*DB, error) {
	full, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", full)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db, err := prepare(context.Background(), sqlDB, full)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func prepare(ctx context.Context, sqlDB *sql.DB, path string) (*DB, error) {
	for _, p := range connPragmas {
		if _, err := sqlDB.ExecContext(ctx, p); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	log := logger.Component("storage")
	m, err := migrations.New(log)
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	applied, err := m.Apply(ctx, sqlDB)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	version, err := migrations.CurrentVersion(ctx, sqlDB)
	if err != nil {
		return nil, fmt.Errorf("schema version: %w", err)
	}

	log.Debug().Str("path", path).Int("schema", version).Int("applied", len(applied)).Msg("database ready")
	return &DB{DB: sqlDB, path: path, version: version}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// SchemaVersion returns the schema version reached when the database was
// opened.
func (db *DB) SchemaVersion() int {
	return db.version
}
