// Package journal keeps an optional SQLite record of finished capture
// sessions. It is never on the capture hot path; a session is written once,
// at shutdown.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ChannelStats aggregates what one channel contributed to a session.
type ChannelStats struct {
	Channel   string
	Frames    int64
	Bytes     int64
	FirstSeen time.Time
	LastSeen  time.Time
}

// SessionSummary describes one finished capture session.
type SessionSummary struct {
	ID         string
	Interface  string
	StartedAt  time.Time
	StoppedAt  time.Time
	FrameCount int64
	Channels   []ChannelStats
}

// Journal is a SQLite-backed store of capture sessions.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	j := &Journal{db: db}
	if err := j.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			interface TEXT NOT NULL,
			started_at TEXT NOT NULL,
			stopped_at TEXT NOT NULL,
			frame_count INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS channel_stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			frames INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			first_seen TEXT,
			last_seen TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions (id)
		);`,
	}
	for _, q := range queries {
		if _, err := j.db.Exec(q); err != nil {
			return fmt.Errorf("create journal tables: %w", err)
		}
	}
	return nil
}

// Record inserts a finished session and its per-channel stats in one
// transaction.
func (j *Journal) Record(s SessionSummary) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (id, interface, started_at, stopped_at, frame_count) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Interface, s.StartedAt.Format(time.RFC3339Nano), s.StoppedAt.Format(time.RFC3339Nano), s.FrameCount,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", s.ID, err)
	}
	for _, cs := range s.Channels {
		_, err = tx.Exec(
			`INSERT INTO channel_stats (session_id, channel, frames, bytes, first_seen, last_seen) VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, cs.Channel, cs.Frames, cs.Bytes,
			cs.FirstSeen.Format(time.RFC3339Nano), cs.LastSeen.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert channel stats for %s/%s: %w", s.ID, cs.Channel, err)
		}
	}
	return tx.Commit()
}

// Sessions returns all recorded sessions, most recent first, without their
// channel stats.
func (j *Journal) Sessions() ([]SessionSummary, error) {
	rows, err := j.db.Query(
		`SELECT id, interface, started_at, stopped_at, frame_count FROM sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var started, stopped string
		if err := rows.Scan(&s.ID, &s.Interface, &started, &stopped, &s.FrameCount); err != nil {
			return nil, err
		}
		s.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		s.StoppedAt, _ = time.Parse(time.RFC3339Nano, stopped)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ChannelStats returns the per-channel stats for one session.
func (j *Journal) ChannelStats(sessionID string) ([]ChannelStats, error) {
	rows, err := j.db.Query(
		`SELECT channel, frames, bytes, first_seen, last_seen FROM channel_stats WHERE session_id = ? ORDER BY channel`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ChannelStats
	for rows.Next() {
		var cs ChannelStats
		var first, last string
		if err := rows.Scan(&cs.Channel, &cs.Frames, &cs.Bytes, &first, &last); err != nil {
			return nil, err
		}
		cs.FirstSeen, _ = time.Parse(time.RFC3339Nano, first)
		cs.LastSeen, _ = time.Parse(time.RFC3339Nano, last)
		stats = append(stats, cs)
	}
	return stats, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
