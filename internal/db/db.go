// Package db persists streaming sessions and periodic band-power rollups to
// sqlite. Writes happen off the broadcast path; a failed write is logged by
// the caller and never affects delivery.
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the sqlite database at path and applies all
// pending migrations.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite is not safe for concurrent writers on one connection
	// pool; a single connection sidesteps SQLITE_BUSY under test load.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sqlDB}
	if err := db.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// migrateUp runs all pending migrations from the embedded filesystem.
// Returns nil if the schema is already at the latest version.
func (db *DB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: We don't close m here because it would close the underlying DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Session is one recorded streaming run.
type Session struct {
	ID            int64
	SampleRate    int
	UpdateHz      float64
	WindowSeconds float64
	Channels      []string
	StartedAt     time.Time
	EndedAt       *time.Time
}

// StartSession inserts a session row and returns its ID.
func (db *DB) StartSession(sampleRate int, updateHz, windowSeconds float64, channels []string) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO sessions (sample_rate, update_hz, window_seconds, channels)
		 VALUES (?, ?, ?, ?)`,
		sampleRate, updateHz, windowSeconds, strings.Join(channels, ","),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read session id: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(sessionID int64) error {
	_, err := db.Exec(
		`UPDATE sessions SET ended_at = CURRENT_TIMESTAMP WHERE session_id = ?`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to end session %d: %w", sessionID, err)
	}
	return nil
}

// GetSession loads one session row.
func (db *DB) GetSession(sessionID int64) (*Session, error) {
	var s Session
	var channels string
	var endedAt sql.NullTime
	err := db.QueryRow(
		`SELECT session_id, sample_rate, update_hz, window_seconds, channels, started_at, ended_at
		 FROM sessions WHERE session_id = ?`,
		sessionID,
	).Scan(&s.ID, &s.SampleRate, &s.UpdateHz, &s.WindowSeconds, &channels, &s.StartedAt, &endedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %d: %w", sessionID, err)
	}
	if channels != "" {
		s.Channels = strings.Split(channels, ",")
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	return &s, nil
}

// BandRollup is one aggregated band-power observation for one channel over
// a rollup interval.
type BandRollup struct {
	SessionID  int64
	Channel    string
	Band       string
	AvgPower   float64
	AvgQuality float64
	Frames     int64
}

// RecordRollup stores one aggregated band-power row.
func (db *DB) RecordRollup(r BandRollup) error {
	_, err := db.Exec(
		`INSERT INTO band_rollups (session_id, channel, band, avg_power, avg_quality, frames)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Channel, r.Band, r.AvgPower, r.AvgQuality, r.Frames,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rollup: %w", err)
	}
	return nil
}

// RecentRollups returns the newest limit rollup rows for a session, newest
// first.
func (db *DB) RecentRollups(sessionID int64, limit int) ([]BandRollup, error) {
	rows, err := db.Query(
		`SELECT session_id, channel, band, avg_power, avg_quality, frames
		 FROM band_rollups WHERE session_id = ?
		 ORDER BY rollup_id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rollups: %w", err)
	}
	defer rows.Close()

	var out []BandRollup
	for rows.Next() {
		var r BandRollup
		if err := rows.Scan(&r.SessionID, &r.Channel, &r.Band, &r.AvgPower, &r.AvgQuality, &r.Frames); err != nil {
			return nil, fmt.Errorf("failed to scan rollup: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
