// Package sqlite implements the record store on SQLite. Replace runs in a
// single transaction that upserts changed rows, deletes missing ones and
// archives them.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/logging"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Status index on records
const currentSchemaVersion = 1

const highWaterKey = "high_water"

// Store is the SQLite record store.
type Store struct {
	db               *sql.DB
	path             string
	archiveLimit     int
	payloadsRetained int
}

var (
	_ store.Store           = (*Store)(nil)
	_ store.PayloadCache    = (*Store)(nil)
	_ store.WorkflowUpdater = (*Store)(nil)
	_ store.Archiver        = (*Store)(nil)
)

// Option is a function that configures a SQLite Store
type Option func(*Store) error

// WithArchiveLimit caps how many archived rows are kept. Zero disables
// archiving.
func WithArchiveLimit(n int) Option {
	return func(s *Store) error {
		if n < 0 {
			return errors.NewValidationError("archive_limit", n, "must not be negative")
		}
		s.archiveLimit = n
		return nil
	}
}

// WithPayloadsRetained sets how many raw payloads are kept.
func WithPayloadsRetained(n int) Option {
	return func(s *Store) error {
		if n < 1 {
			return errors.NewValidationError("payloads_retained", n, "must be at least 1")
		}
		s.payloadsRetained = n
		return nil
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - a busy timeout for lock contention with other processes
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.NewConfigError("sqlite store", "path is required", nil)
	}
	s := &Store{
		path:             path,
		archiveLimit:     constants.ArchiveRowsLimit,
		payloadsRetained: constants.PayloadSnapshotsRetained,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.WrapResource("create", "sqlite store", path, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WrapResource("open", "database", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.WrapResource("connect", "database", path, err)
	}

	// SQLite allows one writer; a single connection also keeps
	// transactions from tripping over SQLITE_BUSY inside this process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.db = db
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", constants.StoreBusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.WrapResource("apply", "pragma", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return errors.WrapResource("apply", "schema", "", err)
	}
	return runMigrations(db)
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.WrapResource("get", "user_version", "", err)
	}

	if version < 1 {
		// Databases created before the index existed.
		if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_records_status ON records(status)`); err != nil {
			return errors.WrapResource("migrate", "schema", "v1", err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return errors.WrapResource("set", "user_version", "", err)
	}
	return nil
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.WrapResource("begin", "transaction", "load", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := selectRecords(ctx, tx, "")
	if err != nil {
		return nil, err
	}
	high, err := highWater(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &store.Snapshot{Records: rows, HighWater: high}, nil
}

// Replace implements store.Store.
func (s *Store) Replace(ctx context.Context, rows []*orders.Record) (*store.WriteResult, error) {
	logger := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.WrapResource("begin", "transaction", "replace", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := selectRecords(ctx, tx, "")
	if err != nil {
		return nil, err
	}
	high, err := highWater(ctx, tx)
	if err != nil {
		return nil, err
	}

	plan, err := store.NewPlan(current, rows, high)
	if err != nil {
		return nil, err
	}
	if plan.Empty() && plan.HighWater == high {
		return plan.Result(0), nil
	}

	archived := 0
	now := nowString()
	for _, r := range plan.Delete {
		if s.archiveLimit > 0 {
			if err := archiveRecord(ctx, tx, r, now); err != nil {
				return nil, err
			}
			archived++
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, r.ID); err != nil {
			return nil, errors.WrapResource("delete", "record", strconv.FormatInt(r.ID, 10), err)
		}
	}
	for _, r := range plan.Update {
		if err := updateRecord(ctx, tx, r, r.Version-1); err != nil {
			return nil, err
		}
	}
	for _, r := range plan.Insert {
		if err := insertRecord(ctx, tx, r); err != nil {
			return nil, err
		}
	}
	if err := setHighWater(ctx, tx, plan.HighWater); err != nil {
		return nil, err
	}
	if archived > 0 {
		if err := trimArchive(ctx, tx, s.archiveLimit); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.WrapResource("commit", "transaction", "replace", err)
	}

	result := plan.Result(archived)
	logger.Debug().
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Int64("high_water", result.HighWater).
		Msg("Replaced records")
	return result, nil
}

// Get implements store.WorkflowUpdater.
func (s *Store) Get(ctx context.Context, id int64) (*orders.Record, error) {
	rows, err := selectRecords(ctx, s.db, "WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewNotFoundError("record", strconv.FormatInt(id, 10))
	}
	return rows[0], nil
}

// UpdateWorkflow implements store.WorkflowUpdater.
func (s *Store) UpdateWorkflow(ctx context.Context, id, expectedVersion int64, fn store.WorkflowFunc) (*orders.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.WrapResource("begin", "transaction", "update workflow", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := selectRecords(ctx, tx, "WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewNotFoundError("record", strconv.FormatInt(id, 10))
	}

	next, err := store.ApplyWorkflow(rows[0], expectedVersion, fn)
	if err != nil {
		return nil, err
	}
	if err := updateRecord(ctx, tx, next, expectedVersion); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.WrapResource("commit", "transaction", "update workflow", err)
	}
	return next, nil
}
