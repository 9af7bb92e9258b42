package db

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/banshee-data/mmwave.report/internal/mmwave/parse"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "frames.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testFrame(frameNumber uint32, points ...parse.DetectedPoint) *parse.Frame {
	return &parse.Frame{
		Header: parse.FrameHeader{
			FrameNumber:    frameNumber,
			NumDetectedObj: uint32(len(points)),
			NumTLVs:        1,
		},
		Points: points,
	}
}

func TestRecordAndQueryFrames(t *testing.T) {
	db := newTestDB(t)
	session := uuid.NewString()

	for i := uint32(1); i <= 3; i++ {
		f := testFrame(i, parse.DetectedPoint{X: 1, Y: 2, Z: 0, Doppler: -0.5, Range: 2.24, Azimuth: 26.6})
		f.SideInfo = []parse.SideInfo{{SNR: 150, Noise: 80}}
		if err := db.RecordFrame(session, f); err != nil {
			t.Fatalf("RecordFrame failed: %v", err)
		}
	}

	frames, err := db.RecentFrames(10)
	if err != nil {
		t.Fatalf("RecentFrames failed: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("RecentFrames returned %d rows, want 3", len(frames))
	}
	// Newest first
	if frames[0].FrameNumber != 3 {
		t.Errorf("first record FrameNumber = %d, want 3", frames[0].FrameNumber)
	}
	if frames[0].SessionID != session {
		t.Errorf("SessionID = %q, want %q", frames[0].SessionID, session)
	}
	if frames[0].NumPoints != 1 {
		t.Errorf("NumPoints = %d, want 1", frames[0].NumPoints)
	}

	points, err := db.SessionPoints(session)
	if err != nil {
		t.Fatalf("SessionPoints failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("SessionPoints returned %d rows, want 3", len(points))
	}
	if points[0].SNR != 150 || points[0].Noise != 80 {
		t.Errorf("side info not archived: got snr=%d noise=%d", points[0].SNR, points[0].Noise)
	}
}

func TestRecentFramesLimit(t *testing.T) {
	db := newTestDB(t)
	session := uuid.NewString()

	for i := uint32(1); i <= 5; i++ {
		if err := db.RecordFrame(session, testFrame(i)); err != nil {
			t.Fatalf("RecordFrame failed: %v", err)
		}
	}

	frames, err := db.RecentFrames(2)
	if err != nil {
		t.Fatalf("RecentFrames failed: %v", err)
	}
	if len(frames) != 2 {
		t.Errorf("RecentFrames(2) returned %d rows", len(frames))
	}
}

func TestSessions(t *testing.T) {
	db := newTestDB(t)

	first := uuid.NewString()
	second := uuid.NewString()
	if err := db.RecordFrame(first, testFrame(1)); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordFrame(second, testFrame(1)); err != nil {
		t.Fatal(err)
	}

	sessions, err := db.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Sessions returned %d entries, want 2", len(sessions))
	}
	if sessions[0] != second {
		t.Errorf("sessions[0] = %q, want most recent session %q", sessions[0], second)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.db")

	db1, err := NewDB(path)
	if err != nil {
		t.Fatalf("first NewDB failed: %v", err)
	}
	db1.Close()

	// Re-opening runs migrations again; already-applied versions are a no-op.
	db2, err := NewDB(path)
	if err != nil {
		t.Fatalf("second NewDB failed: %v", err)
	}
	db2.Close()
}
