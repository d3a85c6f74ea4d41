// Package sqlite implements the storage interface using SQLite.
//
// The package is split into focused files:
//   - store.go: Store struct, New() constructor, initialization
//   - schema.go: table definitions
//   - deals.go: deal CRUD and the two legacy stage writes
//   - checklist.go: checklist seeding and status updates
//   - records.go: loan requests, snapshots, decisions, attestations, packets
//   - ledger.go: append-only ledger events
//   - errors.go: error wrapping helpers
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store implements the storage.Storage interface using SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
	closed atomic.Bool
}

// New creates a new SQLite storage backend at the given path and applies
// the schema. Use ":memory:" for an ephemeral database (tests).
func New(ctx context.Context, path string) (*Store, error) {
	connStr := path
	if path == ":memory:" {
		// Shared cache so multiple connections see the same data.
		connStr = "file::memory:?cache=shared"
	}
	connStr = appendConnParams(connStr)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent use.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func appendConnParams(connStr string) string {
	sep := "?"
	for _, c := range connStr {
		if c == '?' {
			sep = "&"
			break
		}
	}
	return connStr + sep + "_foreign_keys=on&_busy_timeout=30000&_loc=UTC"
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Path returns the database path this store was opened with.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection. Safe to call more than once.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
