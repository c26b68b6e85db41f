// Package history keeps an optional SQLite ledger of harness runs.
//
// Recording is opt-in (--db). Each run stores one summary row plus one
// row per scenario outcome, which is enough to answer "when did this
// scenario start failing" without digging through old checkouts or CI
// logs.
package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - pre-migration databases
// 1 - schema.sql baseline plus the results(name) lookup index
const currentSchemaVersion = 1

// Store is the run ledger.
//
// SQLite runs in WAL mode so reporting queries can read while a
// harness run is still inserting. The pool is capped at a single
// connection; SQLite allows one writer at a time and the ledger's
// write volume never justifies contention handling.
type Store struct {
	db *sql.DB
}

// Run is one harness invocation.
type Run struct {
	// ID is the run's UUID. Version 7 UUIDs sort by creation time, so
	// ID order and started_at order agree.
	ID string

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is the wall time of the whole run.
	Duration time.Duration

	// Mode is "verify" or "fix".
	Mode string

	// Workers is the pool size the run used.
	Workers int

	// Filter is the --tests expression, empty when the full table ran.
	Filter string

	// Passed, Failed and Total are the run's outcome counts.
	Passed, Failed, Total int
}

// Result is one scenario outcome within a run.
type Result struct {
	// Position is the scenario's index in the run's table.
	Position int

	// Name is the scenario name.
	Name string

	// Status is the outcome class: pass, diff, exit or error.
	Status string

	// Duration is the scenario's wall time.
	Duration time.Duration

	// ToolExit is the tool's exit status, -1 if it never completed.
	ToolExit int

	// DiffBytes is the size of the rendered diff, 0 for other
	// outcomes. The diff text itself stays out of the ledger.
	DiffBytes int

	// Detail is a one-line failure description, empty on pass.
	Detail string
}

// Open creates or opens the ledger at path, applying pragmas and
// migrations. Safe to call on an existing ledger.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to ledger: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the ledger.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("executing %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates missing tables and runs migrations. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return runMigrations(db)
}

// runMigrations applies incremental migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the results(name) index to databases created before
// it joined schema.sql. New ledgers get it from the schema directly.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_results_name ON results(name)")
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
