// Package store is the only package that talks SQL. It owns the five
// tables backing Projects, Tasks, Drafts, and AuditLogs, and exposes row
// CRUD within transactions; schema invariants live here.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is the concrete SQLite-backed implementation of the core's
// persistent state.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) a SQLite database at path and applies the schema.
// If the database doesn't exist, it is created and initialized.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	s := &Store{db: db}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Tx is the transaction handle every write path receives. It wraps *sql.Tx
// so package-internal helpers don't need to import database/sql directly.
type Tx struct {
	tx *sql.Tx
}

// WithTransaction runs fn in a single DB transaction; any error returned by
// fn aborts the transaction and propagates unchanged.
func (s *Store) WithTransaction(fn func(tx *Tx) error) error {
	sqlTx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Health reports basic connectivity and row-count information, the way the
// teacher's MemoryDB.Health() does for its own five tables.
type Health struct {
	Connected     bool  `json:"connected"`
	ProjectCount  int   `json:"projectCount"`
	TaskCount     int   `json:"taskCount"`
	DraftCount    int   `json:"draftCount"`
	AuditCount    int   `json:"auditCount"`
	DBSizeBytes   int64 `json:"dbSizeBytes"`
}

func (s *Store) Health(dbPath string) (*Health, error) {
	h := &Health{}
	if err := s.db.Ping(); err != nil {
		return h, nil
	}
	h.Connected = true

	counts := []struct {
		table string
		dest  *int
	}{
		{"projects", &h.ProjectCount},
		{"tasks", &h.TaskCount},
		{"drafts", &h.DraftCount},
		{"audit_logs", &h.AuditCount},
	}
	for _, c := range counts {
		row := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table))
		if err := row.Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	if info, err := os.Stat(dbPath); err == nil {
		h.DBSizeBytes = info.Size()
	}

	return h, nil
}
