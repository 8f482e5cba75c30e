// Package store provides the durable SQLite-backed event log.
package store

// Schema contains the SQL schema definitions for the events database
// (events.db). The database holds exactly two tables: the append-only event
// log and a reserved minute-summary table for future pre-aggregated
// statistics.

// CreateEventsTableSQL creates the append-only events table. The integer
// primary key is assigned by SQLite and strictly increases with insertion
// order; AUTOINCREMENT guarantees ids are never reused even after a crash.
// Timestamps are stored as ISO-8601 text, so lexicographic comparison in the
// indexes matches chronological order. Only ts_utc and event_type are
// mandatory; every other field of an event may be absent.
const CreateEventsTableSQL = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts_utc TEXT NOT NULL,
    ts_local TEXT,
    event_type TEXT NOT NULL,
    reason_code TEXT,
    msg TEXT,
    profile_id TEXT,
    profile_version INTEGER,
    stage TEXT,
    cycle_id TEXT,
    actor TEXT,
    cfg_sha TEXT,
    payload_json TEXT
)`

// CreateEventsIndexesSQL creates the three indexes mirroring the anticipated
// access patterns: pure chronological scans, type-filtered scans, and
// profile-filtered scans. actor, cycle_id, and cfg_sha are deliberately left
// unindexed; they are expected to be filtered within an already time-bounded
// result set.
var CreateEventsIndexesSQL = []string{
	// Index for time-range queries
	`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts_utc)`,

	// Composite index for type-filtered time-range queries
	`CREATE INDEX IF NOT EXISTS idx_events_type_ts ON events(event_type, ts_utc)`,

	// Composite index for profile-filtered time-range queries
	`CREATE INDEX IF NOT EXISTS idx_events_profile_ts ON events(profile_id, ts_utc)`,
}

// CreateMinuteSummariesTableSQL creates the reserved minute_summaries table.
// It holds future per-minute aggregate statistics for individual sensors. The
// aggregation logic that will populate it does not exist yet, so every
// statistic column is nullable and no write path is exposed; only the
// structure is maintained for forward compatibility.
const CreateMinuteSummariesTableSQL = `
CREATE TABLE IF NOT EXISTS minute_summaries (
    ts_minute_utc TEXT NOT NULL,
    sensor_id TEXT NOT NULL,
    name TEXT,
    unit TEXT,
    min REAL,
    max REAL,
    mean REAL,
    stdev REAL,
    samples INTEGER
)`

// JournalModeWALSQL switches the database to write-ahead logging so that
// readers see a consistent snapshot without blocking on an in-progress
// append, and vice versa. The mode is persistent: it is also set on the
// connection string, but pinning it here keeps the database in WAL even when
// opened by other tooling.
const JournalModeWALSQL = `PRAGMA journal_mode=WAL`

// AllSchemaSQL returns all SQL statements needed to initialize the events
// database. Every statement is idempotent; running them against an already
// populated database is a no-op.
func AllSchemaSQL() []string {
	statements := []string{
		JournalModeWALSQL,
		CreateEventsTableSQL,
		CreateMinuteSummariesTableSQL,
	}
	statements = append(statements, CreateEventsIndexesSQL...)
	return statements
}
