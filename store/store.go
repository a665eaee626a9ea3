// Package store persists sessions, events and signals to SQLite.
//
// Only derived data is stored. Payloads are checked against the forbidden
// key list before insertion so audio and transcript content cannot leak
// into the database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"cadence/event"
)

const SchemaVersion = 1

// EngineVersion is recorded on each session row.
const EngineVersion = "cadence-1"

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	created_at      REAL NOT NULL,
	ended_at        REAL,
	engine_version  TEXT NOT NULL,
	status          TEXT NOT NULL,
	total_paused_ms INTEGER NOT NULL DEFAULT 0,
	schema_version  INTEGER NOT NULL,
	updated_at      REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	session_id     TEXT NOT NULL,
	t              REAL NOT NULL,
	type           TEXT NOT NULL,
	source         TEXT NOT NULL,
	confidence     REAL NOT NULL,
	payload        TEXT,
	schema_version INTEGER NOT NULL,
	created_at     REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS events_session_t ON events(session_id, t);

CREATE TABLE IF NOT EXISTS signals (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id     TEXT NOT NULL,
	t              REAL NOT NULL,
	type           TEXT NOT NULL,
	value          REAL NOT NULL,
	schema_version INTEGER NOT NULL,
	created_at     REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS signals_session_t ON signals(session_id, t);
`

type Session struct {
	ID            string        `json:"id"`
	CreatedAt     time.Time     `json:"createdAt"`
	EndedAt       *time.Time    `json:"endedAt,omitempty"`
	EngineVersion string        `json:"engineVersion"`
	Status        event.Status  `json:"status"`
	TotalPaused   time.Duration `json:"totalPausedNs"`
}

// Store is an event.Sink backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ event.Sink = (*Store)(nil)

// DefaultPath is cadence.sqlite in the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "cadence", "cadence.sqlite")
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection: SQLite has a single writer and an in-memory
	// database lives only as long as its connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	var version int
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, SchemaVersion)
		if err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version > SchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported %d", version, SchemaVersion)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertSession inserts or replaces the session row.
func (s *Store) UpsertSession(ctx context.Context, sess Session) error {
	var ended sql.NullFloat64
	if sess.EndedAt != nil {
		ended = sql.NullFloat64{Float64: unixSeconds(*sess.EndedAt), Valid: true}
	}
	if sess.EngineVersion == "" {
		sess.EngineVersion = EngineVersion
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, ended_at, engine_version, status, total_paused_ms, schema_version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ended_at = excluded.ended_at,
			status = excluded.status,
			total_paused_ms = excluded.total_paused_ms,
			updated_at = excluded.updated_at
	`, sess.ID, unixSeconds(sess.CreatedAt), ended, sess.EngineVersion, string(sess.Status),
		sess.TotalPaused.Milliseconds(), SchemaVersion, unixSeconds(s.now()))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Session returns the session with id, or nil if there is none.
func (s *Store) Session(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, ended_at, engine_version, status, total_paused_ms
		FROM sessions WHERE id = ?
	`, id)
	return scanSession(row)
}

// LatestSession returns the most recently created session, or nil.
func (s *Store) LatestSession(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, ended_at, engine_version, status, total_paused_ms
		FROM sessions ORDER BY created_at DESC LIMIT 1
	`)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*Session, error) {
	var sess Session
	var created float64
	var ended sql.NullFloat64
	var status string
	var pausedMs int64
	if err := row.Scan(&sess.ID, &created, &ended, &sess.EngineVersion, &status, &pausedMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.CreatedAt = timeFromUnix(created)
	if ended.Valid {
		t := timeFromUnix(ended.Float64)
		sess.EndedAt = &t
	}
	sess.Status = event.Status(status)
	sess.TotalPaused = time.Duration(pausedMs) * time.Millisecond
	return &sess, nil
}

// AppendEvent stores e. Events whose payload carries a forbidden key are
// rejected with an error wrapping event.ErrForbiddenKey.
func (s *Store) AppendEvent(e event.Event) error {
	if err := event.CheckPayload(e.Payload, "event"); err != nil {
		return err
	}
	var payload sql.NullString
	if len(e.Payload) > 0 {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO events (id, session_id, t, type, source, confidence, payload, schema_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.T, string(e.Type), string(e.Source), e.Confidence, payload,
		SchemaVersion, unixSeconds(s.now()))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) AppendSignal(sig event.Signal) error {
	_, err := s.db.Exec(`
		INSERT INTO signals (session_id, t, type, value, schema_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sig.SessionID, sig.T, string(sig.Type), sig.Value, SchemaVersion, unixSeconds(s.now()))
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// Events returns the session's events ordered by time, then insertion.
func (s *Store) Events(ctx context.Context, sessionID string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, session_id, t, type, source, confidence, payload
		FROM events WHERE session_id = ?
		ORDER BY t ASC, seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var e event.Event
		var typ, src string
		var payload sql.NullString
		if err := rows.Scan(&e.Seq, &e.ID, &e.SessionID, &e.T, &typ, &src, &e.Confidence, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = event.Type(typ)
		e.Source = event.Source(src)
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("decode payload of %s: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) Signals(ctx context.Context, sessionID string) ([]event.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, t, type, value
		FROM signals WHERE session_id = ?
		ORDER BY t ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var signals []event.Signal
	for rows.Next() {
		var sig event.Signal
		var typ string
		if err := rows.Scan(&sig.SessionID, &sig.T, &typ, &sig.Value); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Type = event.SignalType(typ)
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// DeleteSession removes the session and everything recorded for it.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM events WHERE session_id = ?`,
		`DELETE FROM signals WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, sessionID); err != nil {
			return fmt.Errorf("delete session %s: %w", sessionID, err)
		}
	}
	return tx.Commit()
}

// Export is the JSON document written by ExportJSON.
type Export struct {
	SchemaVersion int            `json:"schemaVersion"`
	Session       *Session       `json:"session"`
	Events        []event.Event  `json:"events"`
	Signals       []event.Signal `json:"signals"`
}

// ExportJSON writes the session with its events and signals to w.
func (s *Store) ExportJSON(ctx context.Context, sessionID string, w io.Writer) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("export: session %s not found", sessionID)
	}
	events, err := s.Events(ctx, sessionID)
	if err != nil {
		return err
	}
	signals, err := s.Signals(ctx, sessionID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Export{SchemaVersion: SchemaVersion, Session: sess, Events: events, Signals: signals})
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
