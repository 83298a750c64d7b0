// Package store tests for database setup and core configuration.
package store

import (
	"os"
	"path/filepath"
	"testing"
)

// newTestStore opens a store in a temp directory that is cleaned up with
// the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "fieldsync_store_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := Open(tmpDir)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestOpen verifies database opening with proper configuration.
func TestOpen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "fieldsync_open_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	s, err := Open(tmpDir)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify database file was created
	dbPath := filepath.Join(tmpDir, "fieldsync.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	// Verify WAL mode is enabled
	var walMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&walMode); err != nil {
		t.Errorf("Failed to check WAL mode: %v", err)
	}
	if walMode != "wal" {
		t.Errorf("WAL mode not enabled, got: %s", walMode)
	}

	// Verify foreign keys are enabled
	var fkEnabled int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Errorf("Failed to check foreign keys: %v", err)
	}
	if fkEnabled != 1 {
		t.Errorf("Foreign keys not enabled, got: %d", fkEnabled)
	}

	// Verify the schema landed
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sync_operations").Scan(&n); err != nil {
		t.Errorf("sync_operations table missing: %v", err)
	}
}

// TestOpen_reopen verifies the schema creation is idempotent.
func TestOpen_reopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "fieldsync_reopen_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	s, err := Open(tmpDir)
	if err != nil {
		t.Fatalf("First Open() failed: %v", err)
	}
	s.Close()

	s2, err := Open(tmpDir)
	if err != nil {
		t.Fatalf("Second Open() failed: %v", err)
	}
	s2.Close()
}

// TestPrepareStmt verifies statement caching returns the same handle.
func TestPrepareStmt(t *testing.T) {
	s := newTestStore(t)

	first, err := s.PrepareStmt("SELECT COUNT(*) FROM projects")
	if err != nil {
		t.Fatalf("PrepareStmt() failed: %v", err)
	}
	second, err := s.PrepareStmt("SELECT COUNT(*) FROM projects")
	if err != nil {
		t.Fatalf("PrepareStmt() second call failed: %v", err)
	}
	if first != second {
		t.Error("Expected cached statement to be reused")
	}
}
