package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Event type constants — process events
const (
	EventProcessStarted = "process.started"
	EventProcessStopped = "process.stopped"
)

// Event type constants — request handling events
const (
	EventRequestReceived  = "request.received"
	EventContextAssembled = "context.assembled"
	EventTurnStarted      = "turn.started"
	EventTurnCompleted    = "turn.completed"
	EventTurnFailed       = "turn.failed"
	EventReplySent        = "reply.sent"
	EventRequestFailed    = "request.failed"
	EventRetryScheduled   = "retry.scheduled"
	EventRetryExhausted   = "retry.exhausted"
	EventCircuitOpened    = "circuit.opened"
	EventCircuitHalfOpen  = "circuit.half_open"
	EventCircuitClosed    = "circuit.closed"
)

// OpenDB opens (or creates) a SQLite database at the given path, ensuring
// that the parent directory exists.
func OpenDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}
	// Requests log concurrently; a single writer connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}

	return db, nil
}

// InitSchema creates the events table.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY,
			timestamp INTEGER NOT NULL DEFAULT (unixepoch()),
			parent_id INTEGER,
			event_type TEXT NOT NULL,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_parent_id ON events(parent_id);
		CREATE INDEX IF NOT EXISTS idx_events_type_id ON events(event_type, id);
	`)
	return err
}

// LogEvent inserts an event into the events table and returns its auto-generated id.
// parentID may be nil for root events. payload is serialized to JSON; nil payload stores NULL.
func LogEvent(db *sql.DB, parentID *int64, eventType string, payload map[string]any) (int64, error) {
	var payloadJSON any
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal event payload: %w", err)
		}
		payloadJSON = string(data)
	}

	res, err := db.Exec(
		`INSERT INTO events (parent_id, event_type, payload) VALUES (?, ?, ?)`,
		parentID, eventType, payloadJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event %s: %w", eventType, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get event id: %w", err)
	}
	return id, nil
}

// LatestProcessRoot returns the id of the most recent process.started event
// whose payload role matches role.
func LatestProcessRoot(db *sql.DB, role string) (int64, error) {
	var id int64
	err := db.QueryRow(
		`SELECT id FROM events WHERE event_type = ?
		 AND json_extract(payload, '$.role') = ?
		 ORDER BY id DESC LIMIT 1`,
		EventProcessStarted, role,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("no %s process.started event found", role)
	}
	return id, err
}

// FindRequest returns the id of the latest request.received event logged
// for requestID.
func FindRequest(db *sql.DB, requestID string) (int64, error) {
	var id int64
	err := db.QueryRow(
		`SELECT id FROM events WHERE event_type = ?
		 AND json_extract(payload, '$.request_id') = ?
		 ORDER BY id DESC LIMIT 1`,
		EventRequestReceived, requestID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("no request.received event for request %q", requestID)
	}
	return id, err
}

// Event is one row of the events table.
type Event struct {
	ID        int64
	Timestamp int64
	ParentID  *int64
	Type      string
	Payload   json.RawMessage
}

// Subtree returns rootID and all of its descendants in id order.
func Subtree(db *sql.DB, rootID int64) ([]Event, error) {
	rows, err := db.Query(`
		WITH RECURSIVE tree(id) AS (
			SELECT id FROM events WHERE id = ?
			UNION ALL
			SELECT e.id FROM events e JOIN tree t ON e.parent_id = t.id
		)
		SELECT id, timestamp, parent_id, event_type, payload
		FROM events WHERE id IN (SELECT id FROM tree)
		ORDER BY id
	`, rootID)
	if err != nil {
		return nil, fmt.Errorf("query subtree of %d: %w", rootID, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev      Event
			parent  sql.NullInt64
			payload sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &parent, &ev.Type, &payload); err != nil {
			return nil, err
		}
		if parent.Valid {
			ev.ParentID = &parent.Int64
		}
		if payload.Valid && payload.String != "" {
			ev.Payload = json.RawMessage(payload.String)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountEvents returns how many events of the given type exist.
func CountEvents(db *sql.DB, eventType string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM events WHERE event_type = ?`, eventType).Scan(&n)
	return n, err
}
