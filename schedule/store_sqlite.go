package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteStoreSchema = `
CREATE TABLE IF NOT EXISTS schedules (
	name TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS schedule_runs (
	id TEXT PRIMARY KEY,
	schedule TEXT NOT NULL,
	payload BLOB NOT NULL,
	started_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_schedule_runs_schedule
	ON schedule_runs (schedule, started_at DESC);`

const defaultStoreDB = "schedules.db"

// SQLiteStore persists schedules and run history in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed schedule store at path.
// Parent directories are created as needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("schedule: sqlite store path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("schedule: create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("schedule: sqlite store open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schedule: sqlite store set WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteStoreSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schedule: sqlite store create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// DefaultStorePath returns the store location inside an app's data dir.
func DefaultStorePath(dataDir string) string {
	return filepath.Join(dataDir, defaultStoreDB)
}

func (s *SQLiteStore) SaveSchedule(ctx context.Context, sched Schedule) error {
	payload, err := json.Marshal(sched)
	if err != nil {
		return fmt.Errorf("schedule: encode %q: %w", sched.Name, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO schedules (name, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		sched.Name, payload, sched.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("schedule: save %q: %w", sched.Name, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSchedule(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE name = ?`, name); err != nil {
		return fmt.Errorf("schedule: delete %q: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM schedule_runs WHERE schedule = ?`, name); err != nil {
		return fmt.Errorf("schedule: delete runs of %q: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) ListSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM schedules ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("schedule: list: %w", err)
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("schedule: scan: %w", err)
		}
		var sched Schedule
		if err := json.Unmarshal(payload, &sched); err != nil {
			return nil, fmt.Errorf("schedule: decode: %w", err)
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendRun(ctx context.Context, rec RunRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("schedule: encode run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO schedule_runs (id, schedule, payload, started_at)
VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Schedule, payload, rec.StartedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("schedule: append run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, schedule string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT payload
FROM schedule_runs
WHERE schedule = ?
ORDER BY started_at DESC
LIMIT ?`, schedule, limit)
	if err != nil {
		return nil, fmt.Errorf("schedule: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("schedule: scan run: %w", err)
		}
		var rec RunRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("schedule: decode run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
