// Package db opens the local sqlite database and applies the schema.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "lexisync.db"

//go:embed schema.sql
var schemaSQL string

// Open opens (creating if needed) the database at path and migrates it.
// The pool is limited to one connection so statements are serialized.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("error: cannot create database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("error: cannot open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error: cannot reach database: %w", err)
	}
	if err := Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// OpenMemory returns a migrated in-memory database. Used by tests.
func OpenMemory(ctx context.Context) (*sql.DB, error) {
	return Open(ctx, ":memory:")
}

func dsn(path string) string {
	if path == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}

// Migrate runs every statement of the embedded schema. Statements are
// idempotent so Migrate is safe on an existing database.
func Migrate(ctx context.Context, conn *sql.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error: migration failed: %w", err)
		}
	}
	return nil
}
