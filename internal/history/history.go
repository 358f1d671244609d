// Package history keeps a sqlite ledger of rendered status lines so the
// history subcommands can answer "what did this session cost me today".
// Writes on the render path are best-effort; a locked or unwritable ledger
// must never cost the prompt a frame.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

// Record is one rendered invocation.
type Record struct {
	ID           string
	Timestamp    time.Time
	SessionID    string
	Model        string
	CWD          string
	CostCents    int64
	DurationMS   int64
	LinesAdded   int64
	LinesRemoved int64
	ContextPct   float64
}

// DayStats aggregates renders per UTC day.
type DayStats struct {
	Day          string
	Renders      int
	CostCents    int64
	LinesAdded   int64
	LinesRemoved int64
}

// Store manages the sqlite connection and schema.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	store := &Store{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := os.Chmod(dbPath, 0o600); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set db perms: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS renders (
    id TEXT PRIMARY KEY,
    timestamp DATETIME NOT NULL DEFAULT (datetime('now')),
    session_id TEXT,
    model TEXT,
    cwd TEXT,
    cost_cents INTEGER,
    duration_ms INTEGER,
    lines_added INTEGER,
    lines_removed INTEGER,
    context_pct REAL
);
CREATE INDEX IF NOT EXISTS idx_renders_timestamp ON renders(timestamp);
CREATE INDEX IF NOT EXISTS idx_renders_session ON renders(session_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Append inserts one record, minting a ulid when the caller did not.
func (s *Store) Append(ctx context.Context, record Record) error {
	if record.ID == "" {
		record.ID = ulid.Make().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO renders (
    id, timestamp, session_id, model, cwd,
    cost_cents, duration_ms, lines_added, lines_removed, context_pct
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Timestamp.UTC().Format(time.RFC3339),
		record.SessionID,
		record.Model,
		record.CWD,
		record.CostCents,
		record.DurationMS,
		record.LinesAdded,
		record.LinesRemoved,
		record.ContextPct,
	)
	if err != nil {
		return fmt.Errorf("insert render record: %w", err)
	}
	return nil
}

// Recent returns the newest records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, timestamp, session_id, model, cwd,
       cost_cents, duration_ms, lines_added, lines_removed, context_pct
FROM renders
ORDER BY timestamp DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query renders: %w", err)
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		var record Record
		var ts string
		if err := rows.Scan(
			&record.ID, &ts, &record.SessionID, &record.Model, &record.CWD,
			&record.CostCents, &record.DurationMS, &record.LinesAdded,
			&record.LinesRemoved, &record.ContextPct,
		); err != nil {
			return nil, fmt.Errorf("scan render record: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			record.Timestamp = parsed
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Stats aggregates per UTC day, newest day first. days <= 0 means all.
func (s *Store) Stats(ctx context.Context, days int) ([]DayStats, error) {
	where := "1=1"
	args := []any{}
	if days > 0 {
		where = "timestamp >= ?"
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		args = append(args, cutoff.Format(time.RFC3339))
	}
	// Cost and line counters are cumulative within a session, so take the
	// session maximum before summing across sessions.
	rows, err := s.db.QueryContext(ctx, `
SELECT day,
       SUM(renders),
       SUM(cost_cents),
       SUM(lines_added),
       SUM(lines_removed)
FROM (
    SELECT strftime('%Y-%m-%d', timestamp) AS day,
           session_id,
           COUNT(*) AS renders,
           COALESCE(MAX(cost_cents), 0) AS cost_cents,
           COALESCE(MAX(lines_added), 0) AS lines_added,
           COALESCE(MAX(lines_removed), 0) AS lines_removed
    FROM renders
    WHERE `+where+`
    GROUP BY day, session_id
)
GROUP BY day
ORDER BY day DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query render stats: %w", err)
	}
	defer rows.Close()
	out := []DayStats{}
	for rows.Next() {
		var stats DayStats
		if err := rows.Scan(&stats.Day, &stats.Renders, &stats.CostCents, &stats.LinesAdded, &stats.LinesRemoved); err != nil {
			return nil, fmt.Errorf("scan render stats: %w", err)
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}
