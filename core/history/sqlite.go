package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/weby-homelab/light-monitor-kyiv/core/model"
)

// SQLiteStore persists transition records in a SQLite database.
type SQLiteStore struct {
	db         *sql.DB
	maxEntries int
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string, maxEntries int) (*SQLiteStore, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS power_events (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER NOT NULL,
        grp TEXT NOT NULL,
        event TEXT NOT NULL,
        duration_sec INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_power_events_ts ON power_events(ts);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db, maxEntries: maxEntries}, nil
}

// Append inserts the record and evicts the oldest rows beyond the cap.
func (s *SQLiteStore) Append(ctx context.Context, rec EventRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO power_events (ts, grp, event, duration_sec) VALUES (?, ?, ?, ?)`,
		rec.Timestamp.Unix(), rec.Group, string(rec.Event), int64(rec.Duration/time.Second))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM power_events WHERE id NOT IN (
            SELECT id FROM power_events ORDER BY id DESC LIMIT ?)`, s.maxEntries)
	return err
}

// Query returns matching records ordered by timestamp.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]EventRecord, error) {
	query := `SELECT ts, grp, event, duration_sec FROM power_events WHERE 1=1`
	var args []any
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.Unix())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.Unix())
	}
	if q.Group != "" {
		query += ` AND grp = ?`
		args = append(args, q.Group)
	}
	query += ` ORDER BY ts`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []EventRecord
	for rows.Next() {
		var ts, durSec int64
		var rec EventRecord
		var event string
		if err := rows.Scan(&ts, &rec.Group, &event, &durSec); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(ts, 0).UTC()
		rec.Event = model.LinkState(event)
		rec.Duration = time.Duration(durSec) * time.Second
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
