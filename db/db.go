// Package db archives decoded radar frames in a local sqlite database so
// offline tooling can inspect past acquisition sessions.
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/mmwave.report/internal/mmwave/parse"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the sqlite database at path and migrates it to the
// latest schema.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db := &DB{sqlDB}
	if err := db.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// migrateUp runs all pending migrations from the embedded migration files.
// Returns nil if no migrations were needed (already at latest version).
func (db *DB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: We don't close m here because it would close the underlying DB
	// connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// FrameRecord is one archived frame summary row.
type FrameRecord struct {
	FrameID        int64
	SessionID      string
	FrameNumber    uint32
	SubFrameNumber uint32
	NumPoints      int
	NumTLVs        int
	Timestamp      time.Time
}

// PointRecord is one archived detection.
type PointRecord struct {
	FrameID   int64
	X         float64
	Y         float64
	Z         float64
	Doppler   float64
	Range     float64
	Azimuth   float64
	Elevation float64
	SNR       int
	Noise     int
}

// RecordFrame archives one decoded frame and its detected points in a single
// transaction.
func (db *DB) RecordFrame(sessionID string, f *parse.Frame) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO frames (session_id, frame_number, subframe_number, num_points, num_tlvs) VALUES (?, ?, ?, ?, ?)",
		sessionID, f.Header.FrameNumber, f.Header.SubFrameNumber, len(f.Points), f.Header.NumTLVs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert frame: %w", err)
	}
	frameID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i, p := range f.Points {
		var snr, noise int
		if i < len(f.SideInfo) {
			snr = int(f.SideInfo[i].SNR)
			noise = int(f.SideInfo[i].Noise)
		}
		if _, err := tx.Exec(
			"INSERT INTO points (frame_id, x, y, z, doppler, range_m, azimuth_deg, elevation_deg, snr, noise) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			frameID, p.X, p.Y, p.Z, p.Doppler, p.Range, p.Azimuth, p.Elevation, snr, noise,
		); err != nil {
			return fmt.Errorf("failed to insert point: %w", err)
		}
	}

	return tx.Commit()
}

// RecentFrames returns the most recent limit frame summaries, newest first.
func (db *DB) RecentFrames(limit int) ([]FrameRecord, error) {
	rows, err := db.Query(
		"SELECT frame_id, session_id, frame_number, subframe_number, num_points, num_tlvs, timestamp FROM frames ORDER BY frame_id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []FrameRecord
	for rows.Next() {
		var f FrameRecord
		if err := rows.Scan(&f.FrameID, &f.SessionID, &f.FrameNumber, &f.SubFrameNumber, &f.NumPoints, &f.NumTLVs, &f.Timestamp); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// SessionPoints returns every archived detection for a session, in frame
// order.
func (db *DB) SessionPoints(sessionID string) ([]PointRecord, error) {
	rows, err := db.Query(`
		SELECT p.frame_id, p.x, p.y, p.z, p.doppler, p.range_m, p.azimuth_deg, p.elevation_deg, p.snr, p.noise
		FROM points p
		JOIN frames f ON f.frame_id = p.frame_id
		WHERE f.session_id = ?
		ORDER BY p.frame_id, p.point_id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []PointRecord
	for rows.Next() {
		var p PointRecord
		if err := rows.Scan(&p.FrameID, &p.X, &p.Y, &p.Z, &p.Doppler, &p.Range, &p.Azimuth, &p.Elevation, &p.SNR, &p.Noise); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Sessions returns the distinct session IDs present in the archive, most
// recent first.
func (db *DB) Sessions() ([]string, error) {
	rows, err := db.Query("SELECT session_id FROM frames GROUP BY session_id ORDER BY MAX(frame_id) DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
