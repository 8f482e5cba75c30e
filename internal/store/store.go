package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/growlog/growlog/internal/errors"
	"github.com/growlog/growlog/internal/metrics"
	"github.com/growlog/growlog/pkg/types"
)

// Store is the durable, append-only event log backed by a single SQLite
// database file in WAL mode. It holds two connections: a single write
// connection serializing appends, and a read-only pool serving concurrent
// range queries without blocking on in-progress writes.
type Store struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)

	appendStmt *sql.Stmt
	metrics    *metrics.Metrics
}

// Options configures a Store.
type Options struct {
	// BusyTimeoutMS is the SQLite busy timeout in milliseconds. Lock
	// contention beyond this window surfaces as a retryable storage error.
	BusyTimeoutMS int

	// ReadPoolSize is the number of concurrent read connections.
	ReadPoolSize int

	// Metrics receives store instrumentation. May be nil.
	Metrics *metrics.Metrics
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		BusyTimeoutMS: 5000,
		ReadPoolSize:  4,
	}
}

// Open opens (creating if necessary) the events database at dbPath with
// default options. Initialization is idempotent: opening a database already
// populated by a prior run leaves its contents untouched.
func Open(dbPath string) (*Store, error) {
	return OpenWithOptions(dbPath, DefaultOptions())
}

// OpenWithOptions opens the events database at dbPath. Any failure to create
// the tables or indexes is fatal: the store must not operate against a
// missing index, so no Store is returned.
func OpenWithOptions(dbPath string, opts Options) (*Store, error) {
	if opts.BusyTimeoutMS <= 0 {
		opts.BusyTimeoutMS = 5000
	}
	if opts.ReadPoolSize <= 0 {
		opts.ReadPoolSize = 4
	}

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.NewStorageError(errors.CodeOpenFailed, "failed to create database directory", err)
		}
	}

	// The file: scheme is required for mode=ro below to take effect.
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d", dbPath, opts.BusyTimeoutMS)

	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeOpenFailed, "failed to open database", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	// Read connection pool: concurrent readers via read-only mode
	readDB, err := sql.Open("sqlite3", dsn+"&mode=ro")
	if err != nil {
		db.Close()
		return nil, errors.NewStorageError(errors.CodeOpenFailed, "failed to open read database", err)
	}
	readDB.SetMaxOpenConns(opts.ReadPoolSize)
	readDB.SetMaxIdleConns(opts.ReadPoolSize)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		db:      db,
		readDB:  readDB,
		dbPath:  dbPath,
		metrics: opts.Metrics,
	}

	if err := s.initSchema(); err != nil {
		readDB.Close()
		db.Close()
		return nil, err
	}

	appendStmt, err := db.Prepare(`
		INSERT INTO events (
			ts_utc, ts_local, event_type, reason_code, msg,
			profile_id, profile_version, stage, cycle_id, actor, cfg_sha, payload_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		readDB.Close()
		db.Close()
		return nil, classifyStorageErr(errors.CodeOpenFailed, "failed to prepare append statement", err)
	}
	s.appendStmt = appendStmt

	return s, nil
}

// initSchema creates both tables and the three event indexes. Safe to run on
// every process start.
func (s *Store) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := s.db.Exec(stmt); err != nil {
			return classifyStorageErr(errors.CodeSchemaInitFailed, "failed to execute schema statement", err)
		}
	}
	return nil
}

// DBPath returns the path of the underlying database file.
func (s *Store) DBPath() string {
	return s.dbPath
}

// Append inserts one event and returns the assigned surrogate id, which is
// also written back to e.ID. The row is atomically present after a nil
// return; duplicate events are permitted and never deduplicated.
func (s *Store) Append(ctx context.Context, e *types.Event) (int64, error) {
	if err := validateEvent(e); err != nil {
		s.metrics.IncAppendError(errors.GetCode(err))
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.appendStmt.ExecContext(ctx, appendArgs(e)...)
	if err != nil {
		werr := classifyStorageErr(errors.CodeWriteFailed, "failed to append event", err)
		s.metrics.IncAppendError(errors.GetCode(werr))
		return 0, werr
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.NewInternalError("failed to read assigned event id", err)
	}

	e.ID = id
	s.metrics.IncAppends(1)
	return id, nil
}

// AppendBatch inserts all events within a single transaction. Every event is
// validated before the transaction begins, so one malformed event rejects the
// whole batch and leaves the table unchanged. On success each event carries
// its assigned id.
func (s *Store) AppendBatch(ctx context.Context, events []*types.Event) error {
	for i, e := range events {
		if err := validateEvent(e); err != nil {
			s.metrics.IncAppendError(errors.GetCode(err))
			return err.WithDetails(map[string]interface{}{"batch_index": i})
		}
	}
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyStorageErr(errors.CodeWriteFailed, "failed to begin append transaction", err)
	}
	defer tx.Rollback()

	stmt := tx.StmtContext(ctx, s.appendStmt)
	for _, e := range events {
		res, err := stmt.ExecContext(ctx, appendArgs(e)...)
		if err != nil {
			werr := classifyStorageErr(errors.CodeWriteFailed, "failed to append event in batch", err)
			s.metrics.IncAppendError(errors.GetCode(werr))
			return werr
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.NewInternalError("failed to read assigned event id", err)
		}
		e.ID = id
	}

	if err := tx.Commit(); err != nil {
		werr := classifyStorageErr(errors.CodeWriteFailed, "failed to commit append batch", err)
		s.metrics.IncAppendError(errors.GetCode(werr))
		return werr
	}

	s.metrics.IncAppends(len(events))
	return nil
}

// eventColumns is the column list shared by all event queries, in scan order.
const eventColumns = `id, ts_utc, ts_local, event_type, reason_code, msg,
	profile_id, profile_version, stage, cycle_id, actor, cfg_sha, payload_json`

// QueryByTimeRange returns events with ts_utc in [startUTC, endUTC] ordered
// by ts_utc ascending, ties broken by id ascending (insertion order).
func (s *Store) QueryByTimeRange(ctx context.Context, startUTC, endUTC string) ([]*types.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE ts_utc >= ? AND ts_utc <= ?
		ORDER BY ts_utc ASC, id ASC`
	return s.queryEvents(ctx, "time_range", query, startUTC, endUTC)
}

// QueryByTypeAndTimeRange returns events of exactly eventType with ts_utc in
// [startUTC, endUTC], ordered as QueryByTimeRange.
func (s *Store) QueryByTypeAndTimeRange(ctx context.Context, eventType, startUTC, endUTC string) ([]*types.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE event_type = ? AND ts_utc >= ? AND ts_utc <= ?
		ORDER BY ts_utc ASC, id ASC`
	return s.queryEvents(ctx, "type_time_range", query, eventType, startUTC, endUTC)
}

// QueryByProfileAndTimeRange returns events correlated to exactly profileID
// with ts_utc in [startUTC, endUTC], ordered as QueryByTimeRange.
func (s *Store) QueryByProfileAndTimeRange(ctx context.Context, profileID, startUTC, endUTC string) ([]*types.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE profile_id = ? AND ts_utc >= ? AND ts_utc <= ?
		ORDER BY ts_utc ASC, id ASC`
	return s.queryEvents(ctx, "profile_time_range", query, profileID, startUTC, endUTC)
}

// QueryRecent returns the newest events first, optionally filtered to a set
// of event types. A non-positive limit defaults to 200.
func (s *Store) QueryRecent(ctx context.Context, eventTypes []string, limit int) ([]*types.Event, error) {
	if limit <= 0 {
		limit = 200
	}

	var args []interface{}
	query := `SELECT ` + eventColumns + ` FROM events`
	if len(eventTypes) > 0 {
		qmarks := strings.TrimSuffix(strings.Repeat("?,", len(eventTypes)), ",")
		query += ` WHERE event_type IN (` + qmarks + `)`
		for _, t := range eventTypes {
			args = append(args, t)
		}
	}
	query += ` ORDER BY ts_utc DESC, id DESC LIMIT ?`
	args = append(args, limit)

	return s.queryEvents(ctx, "recent", query, args...)
}

// LatestProfileID returns the profile_id of the most recent event carrying a
// non-empty one, or "" when no event does.
func (s *Store) LatestProfileID(ctx context.Context) (string, error) {
	start := time.Now()
	var profileID string
	err := s.readDB.QueryRowContext(ctx, `
		SELECT profile_id
		FROM events
		WHERE profile_id IS NOT NULL AND TRIM(profile_id) <> ''
		ORDER BY ts_utc DESC, id DESC
		LIMIT 1`).Scan(&profileID)
	s.metrics.ObserveQuery("latest_profile", time.Since(start))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", classifyStorageErr(errors.CodeQueryFailed, "failed to query latest profile", err)
	}
	return profileID, nil
}

// EventCount returns the total number of events in the log.
func (s *Store) EventCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count)
	if err != nil {
		return 0, classifyStorageErr(errors.CodeQueryFailed, "failed to count events", err)
	}
	return count, nil
}

// queryEvents runs an event query against the read pool and scans all rows.
func (s *Store) queryEvents(ctx context.Context, op, query string, args ...interface{}) ([]*types.Event, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveQuery(op, time.Since(start))
	}()

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyStorageErr(errors.CodeQueryFailed, "failed to query events", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, classifyStorageErr(errors.CodeQueryFailed, "error iterating events", err)
	}

	return events, nil
}

// scanEvent scans one row into an Event.
func scanEvent(rows *sql.Rows) (*types.Event, error) {
	var e types.Event
	var tsLocal *string

	err := rows.Scan(
		&e.ID, &e.TSUTC, &tsLocal, &e.EventType, &e.ReasonCode, &e.Msg,
		&e.ProfileID, &e.ProfileVersion, &e.Stage, &e.CycleID, &e.Actor, &e.CfgSHA, &e.PayloadJSON,
	)
	if err != nil {
		return nil, classifyStorageErr(errors.CodeQueryFailed, "failed to scan event", err)
	}

	if tsLocal != nil {
		e.TSLocal = *tsLocal
	}
	return &e, nil
}

// Close closes both database connections. The underlying WAL is checkpointed
// by SQLite on the last connection close.
func (s *Store) Close() error {
	if s.appendStmt != nil {
		s.appendStmt.Close()
	}

	// Close read connection first, then write connection
	if err := s.readDB.Close(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}

// validateEvent enforces the append contract: ts_utc and event_type must be
// non-empty, everything else may be absent.
func validateEvent(e *types.Event) *errors.GrowlogError {
	if e == nil {
		return errors.NewValidationError("event is nil")
	}
	if e.TSUTC == "" {
		return errors.NewValidationError("ts_utc is required")
	}
	if e.EventType == "" {
		return errors.NewValidationError("event_type is required")
	}
	return nil
}

// appendArgs maps an event to the insert parameter list. An empty ts_local is
// stored as NULL so a minimal event round-trips with every optional field
// absent.
func appendArgs(e *types.Event) []interface{} {
	var tsLocal *string
	if e.TSLocal != "" {
		tsLocal = &e.TSLocal
	}
	return []interface{}{
		e.TSUTC, tsLocal, e.EventType, e.ReasonCode, e.Msg,
		e.ProfileID, e.ProfileVersion, e.Stage, e.CycleID, e.Actor, e.CfgSHA, e.PayloadJSON,
	}
}

// classifyStorageErr maps driver errors onto storage error codes so callers
// can tell transient lock contention from fatal corruption.
func classifyStorageErr(defaultCode, message string, err error) *errors.GrowlogError {
	var serr sqlite3.Error
	if stderrors.As(err, &serr) {
		switch serr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return errors.NewStorageError(errors.CodeLockTimeout, message, err)
		case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
			return errors.NewStorageError(errors.CodeCorruption, message, err)
		}
	}
	return errors.NewStorageError(defaultCode, message, err)
}
