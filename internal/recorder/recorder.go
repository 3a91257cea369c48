// Package recorder keeps applied level frames in SQLite so a session can
// be listed, exported and replayed later.
package recorder

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"levelview/internal/state"
)

//go:embed schema.sql
var schemaSQL string

// ErrNoSession is returned by Record before Begin.
var ErrNoSession = errors.New("no recording session")

// Session describes one recording.
type Session struct {
	ID          uuid.UUID
	Source      string
	SensorCount int
	StartedAt   time.Time
	Frames      int
}

// Frame is one recorded frame.
type Frame struct {
	Seq            int
	Version        uint64
	Valid          bool
	Frame          string
	ActiveSegments int
	AppliedAt      time.Time
}

// Recorder writes frames of the current session.
type Recorder struct {
	db     *sql.DB
	logger *logrus.Logger

	mu      sync.Mutex
	session uuid.UUID
	seq     int
}

// Open opens (creating if needed) the database at path.
func Open(path string, logger *logrus.Logger) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recorder database: %w", err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create recorder schema: %w", err)
	}
	logger.WithField("path", path).Debug("Recorder database ready")
	return &Recorder{db: db, logger: logger}, nil
}

// Begin starts a new session; later frames are recorded under it.
func (r *Recorder) Begin(source string, sensorCount int) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, source, sensor_count, started_at) VALUES (?, ?, ?, ?)`,
		id.String(), source, sensorCount, time.Now().UnixNano(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to start session: %w", err)
	}

	r.mu.Lock()
	r.session = id
	r.seq = 0
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"session": id,
		"source":  source,
	}).Info("Recording session started")
	return id, nil
}

// Record stores the frame that produced snapshot.
func (r *Recorder) Record(snapshot *state.Snapshot, frame string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == uuid.Nil {
		return ErrNoSession
	}

	r.seq++
	_, err := r.db.Exec(
		`INSERT INTO frames (session_id, seq, version, valid, frame, active_segments, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.session.String(), r.seq, int64(snapshot.Version()), snapshot.Valid(), frame,
		snapshot.ActiveSegments(), snapshot.AppliedAt().UnixNano(),
	)
	if err != nil {
		r.seq--
		return fmt.Errorf("failed to record frame: %w", err)
	}
	return nil
}

// Hook returns a store hook that records every applied frame.
func (r *Recorder) Hook() state.ApplyHook {
	return func(snapshot *state.Snapshot, frame string) {
		if err := r.Record(snapshot, frame); err != nil {
			r.logger.WithError(err).WithField("version", snapshot.Version()).Warn("Frame not recorded")
		}
	}
}

// Sessions lists recordings, newest first.
func (r *Recorder) Sessions() ([]Session, error) {
	rows, err := r.db.Query(`
		SELECT s.id, s.source, s.sensor_count, s.started_at, COUNT(f.seq)
		FROM sessions s
		LEFT JOIN frames f ON f.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			session Session
			id      string
			started int64
		)
		if err := rows.Scan(&id, &session.Source, &session.SensorCount, &started, &session.Frames); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if session.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt session id %q: %w", id, err)
		}
		session.StartedAt = time.Unix(0, started)
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Frames returns a session's frames in recording order.
func (r *Recorder) Frames(session uuid.UUID) ([]Frame, error) {
	rows, err := r.db.Query(`
		SELECT seq, version, valid, frame, active_segments, applied_at
		FROM frames WHERE session_id = ? ORDER BY seq`, session.String())
	if err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var (
			frame   Frame
			version int64
			applied int64
		)
		if err := rows.Scan(&frame.Seq, &version, &frame.Valid, &frame.Frame, &frame.ActiveSegments, &applied); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		frame.Version = uint64(version)
		frame.AppliedAt = time.Unix(0, applied)
		frames = append(frames, frame)
	}
	return frames, rows.Err()
}

// Close closes the database.
func (r *Recorder) Close() error {
	return r.db.Close()
}
