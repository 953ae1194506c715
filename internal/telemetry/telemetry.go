// Package telemetry keeps a local SQLite log of sync activity: refresh
// attempts, connectivity transitions, and queued actions. Data never leaves
// the machine; it exists so `homedash telemetry` can answer "when did the
// hub last drop" without scraping logs.
package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp INTEGER NOT NULL,
    kind TEXT NOT NULL,
    subject TEXT NOT NULL,
    ok INTEGER NOT NULL,
    detail TEXT,
    created_at INTEGER DEFAULT (strftime('%s', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_kind ON events(kind);
CREATE INDEX IF NOT EXISTS idx_subject ON events(subject);
`

// Event kinds recorded by the engine.
const (
	KindRefresh = "refresh"
	KindEdge    = "edge"
	KindAction  = "action"
)

// Event is one recorded telemetry row
type Event struct {
	ID        int64
	Timestamp int64
	Kind      string
	Subject   string
	OK        bool
	Detail    string
}

// IsEnabledFromEnv checks the HOMEDASH_TELEMETRY_ENABLED environment variable
// and returns the effective enabled state. Environment variable overrides the
// config value.
func IsEnabledFromEnv(configEnabled bool) bool {
	envVal := os.Getenv("HOMEDASH_TELEMETRY_ENABLED")
	if envVal == "" {
		return configEnabled
	}
	return envVal == "true" || envVal == "1"
}

// Tracker records engine events into the telemetry database
type Tracker struct {
	db      *sql.DB
	enabled bool
	mu      sync.Mutex
}

// NewTracker opens or creates the telemetry database at dbPath.
// When enabled is false, recording is a no-op but the database is still created.
func NewTracker(dbPath string, enabled bool) (*Tracker, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize telemetry schema: %w", err)
	}

	return &Tracker{db: db, enabled: enabled}, nil
}

// Close closes the database connection
func (t *Tracker) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

// RecordRefresh logs one refresh attempt for a domain.
func (t *Tracker) RecordRefresh(domain string, updated bool, err error) {
	detail := ""
	if err != nil {
		detail = categorizeError(err)
	} else if updated {
		detail = "updated"
	} else {
		detail = "unchanged"
	}
	t.record(Event{Kind: KindRefresh, Subject: domain, OK: err == nil, Detail: detail})
}

// RecordEdge logs a connectivity transition for a link ("hub" or "internet").
func (t *Tracker) RecordEdge(link string, up bool) {
	detail := "down"
	if up {
		detail = "up"
	}
	t.record(Event{Kind: KindEdge, Subject: link, OK: up, Detail: detail})
}

// RecordAction logs a user action, noting whether it had to be queued.
func (t *Tracker) RecordAction(kind string, queued bool) {
	detail := "applied"
	if queued {
		detail = "queued"
	}
	t.record(Event{Kind: KindAction, Subject: kind, OK: !queued, Detail: detail})
}

func (t *Tracker) record(event Event) {
	if !t.enabled {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = t.db.Exec(`
		INSERT INTO events (timestamp, kind, subject, ok, detail)
		VALUES (?, ?, ?, ?, ?)
	`, event.Timestamp, event.Kind, event.Subject, boolToInt(event.OK), nullString(event.Detail))
}

// Recent returns the newest events, most recent first.
func (t *Tracker) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := t.db.Query(`
		SELECT id, timestamp, kind, subject, ok, COALESCE(detail, '')
		FROM events ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e Event
		var ok int
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Kind, &e.Subject, &ok, &e.Detail); err != nil {
			return nil, err
		}
		e.OK = ok == 1
		events = append(events, e)
	}
	return events, rows.Err()
}

// Cleanup removes events older than the specified retention period.
// Returns the number of deleted events.
func (t *Tracker) Cleanup(retentionDays int) (int64, error) {
	cutoff := time.Now().Unix() - int64(retentionDays*86400)

	result, err := t.db.Exec("DELETE FROM events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	// Vacuum to reclaim space
	_, _ = t.db.Exec("VACUUM")

	return deleted, nil
}

// categorizeError buckets an error into a coarse type for aggregation
func categorizeError(err error) string {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return "timeout"
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection") || strings.Contains(errStr, "refused"):
		return "network"
	case strings.Contains(errStr, "auth") || strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "forbidden"):
		return "auth"
	case strings.Contains(errStr, "not found"):
		return "not_found"
	default:
		return "unknown"
	}
}

// nullString returns nil for empty strings, otherwise the string
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to 1 (true) or 0 (false)
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
