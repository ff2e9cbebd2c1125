package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/stableids/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added partial index for referrer lookups on ref values
const currentSchemaVersion = 1

// Supported database/sql driver names.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

var (
	// ErrTransactionsNotSupported is returned by BeginTransaction on a store
	// opened WithTransactions(false).
	ErrTransactionsNotSupported = errors.New("transactions not supported")

	// ErrTransactionActive is returned when a transaction is already open.
	ErrTransactionActive = errors.New("transaction already active")

	// ErrNoTransaction is returned by Commit when no transaction is open.
	ErrNoTransaction = errors.New("no active transaction")

	// ErrReadOnly is returned by writes to a store opened WithReadOnly.
	ErrReadOnly = errors.New("store is read-only")

	// ErrInstanceNotFound is returned by writes that target a missing db_id.
	ErrInstanceNotFound = errors.New("instance not found")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is one copy of the pathway graph.
// It is not safe for concurrent use; the release run is single-threaded.
type Store struct {
	db     *sql.DB
	tx     *sql.Tx
	schema *schema.Schema
	name   string

	transactional bool
	readOnly      bool
}

// Option configures a Store at Open time.
type Option func(*options)

type options struct {
	driver        string
	name          string
	schema        *schema.Schema
	transactional bool
	readOnly      bool
	mustExist     bool
}

// WithDriver selects the database/sql driver ("sqlite3" or "sqlite").
func WithDriver(driver string) Option {
	return func(o *options) { o.driver = driver }
}

// WithName sets the name used in logs. Defaults to the file's base name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithSchema overrides the class schema used for validation.
func WithSchema(s *schema.Schema) Option {
	return func(o *options) { o.schema = s }
}

// WithTransactions controls whether the store supports run-scoped
// transactions. Defaults to true.
func WithTransactions(enabled bool) Option {
	return func(o *options) { o.transactional = enabled }
}

// WithReadOnly rejects every write. Used for the previous-release slice.
// The database must already exist and Open leaves its schema untouched.
func WithReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
		o.mustExist = true
	}
}

// WithMustExist makes Open fail instead of creating a missing database file.
func WithMustExist() Option {
	return func(o *options) { o.mustExist = true }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically, except on
// read-only stores, which are only checked for a current schema.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{
		driver:        DriverCGO,
		name:          filepath.Base(path),
		transactional: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.driver != DriverCGO && o.driver != DriverPureGo {
		return nil, fmt.Errorf("unsupported driver %q: must be %q or %q", o.driver, DriverCGO, DriverPureGo)
	}
	if o.schema == nil {
		o.schema = schema.Default()
	}

	if o.mustExist {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("database %s: %w", path, err)
		}
	}

	db, err := sql.Open(o.driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// A run-scoped transaction pins this connection; see conn().
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if o.readOnly {
		if err := checkSchema(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to check schema: %w", err)
		}
	} else {
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
		if err := applySchema(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &Store{
		db:            db,
		schema:        o.schema,
		name:          o.name,
		transactional: o.transactional,
		readOnly:      o.readOnly,
	}, nil
}

// Close rolls back any open transaction and closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	return s.db.Close()
}

// Name returns the store's name for logs.
func (s *Store) Name() string {
	return s.name
}

// Schema returns the class schema the store validates against.
func (s *Store) Schema() *schema.Schema {
	return s.schema
}

// SupportsTransactions reports whether BeginTransaction may be called.
func (s *Store) SupportsTransactions() bool {
	return s.transactional
}

// InTransaction reports whether a run-scoped transaction is open.
func (s *Store) InTransaction() bool {
	return s.tx != nil
}

// BeginTransaction opens the run-scoped transaction. All later reads and
// writes use it until Commit or Rollback.
func (s *Store) BeginTransaction(ctx context.Context) error {
	if !s.transactional {
		return fmt.Errorf("begin transaction on %s: %w", s.name, ErrTransactionsNotSupported)
	}
	if s.tx != nil {
		return fmt.Errorf("begin transaction on %s: %w", s.name, ErrTransactionActive)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction on %s: %w", s.name, err)
	}
	s.tx = tx
	return nil
}

// Commit commits the run-scoped transaction.
func (s *Store) Commit() error {
	if s.tx == nil {
		return fmt.Errorf("commit %s: %w", s.name, ErrNoTransaction)
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", s.name, err)
	}
	return nil
}

// Rollback discards the run-scoped transaction. No-op when none is open.
func (s *Store) Rollback() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback %s: %w", s.name, err)
	}
	return nil
}

// conn returns the open transaction if any, otherwise the database.
func (s *Store) conn() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// write runs fn atomically. Inside a run-scoped transaction fn joins it;
// otherwise fn gets its own short transaction that commits immediately.
func (s *Store) write(ctx context.Context, fn func(q querier) error) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if s.tx != nil {
		return fn(s.tx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// checkSchema verifies a database it may not write to is already at the
// current schema version.
func checkSchema(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		return fmt.Errorf("database schema version %d, need %d", version, currentSchemaVersion)
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
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

// migrateToV1 adds the index FetchReferrers relies on.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_attribute_values_ref
		ON attribute_values(attribute, int_value)
		WHERE value_type = 'ref'
	`)
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
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
