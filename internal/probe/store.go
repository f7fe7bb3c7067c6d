package probe

import (
	"database/sql"
	"fmt"
	"time"

	aideerrors "github.com/XC0R/aide/internal/errors"
	"github.com/XC0R/aide/internal/logging"
	"github.com/XC0R/aide/internal/storage"
)

// DatabaseFile is the probe database filename inside the settings directory.
const DatabaseFile = "probe.db"

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		goal TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		completed_at TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);

	CREATE TABLE IF NOT EXISTS steps (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		input TEXT,
		output TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_steps_session ON steps(session_id, seq);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT OR REPLACE INTO schema_version (version) VALUES (1);
`

// Store persists probe sessions and their steps.
type Store struct {
	db *storage.DB
}

// OpenStore opens or creates the probe database in the settings directory.
func OpenStore(settingsDir string, logger *logging.Logger) (*Store, error) {
	db, err := storage.Open(settingsDir, DatabaseFile, schema, logger)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(session *Session) error {
	_, err := s.db.Conn().Exec(`
		INSERT INTO sessions (id, name, goal, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, session.ID, session.Name, session.Goal, string(session.Status),
		session.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// UpdateSession persists a session's terminal state.
func (s *Store) UpdateSession(session *Session) error {
	var completedAt interface{}
	if session.CompletedAt != nil {
		completedAt = session.CompletedAt.Format(time.RFC3339Nano)
	}
	_, err := s.db.Conn().Exec(`
		UPDATE sessions SET status = ?, completed_at = ?, error = ? WHERE id = ?
	`, string(session.Status), completedAt, session.Error, session.ID)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return nil
}

// GetSession loads one session by id.
func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.Conn().QueryRow(`
		SELECT id, name, goal, status, created_at, completed_at, error
		FROM sessions WHERE id = ?
	`, id)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, aideerrors.New(aideerrors.SessionNotFound,
			fmt.Sprintf("probe session %q not found", id), nil).
			WithRemediation("run aide probe list to see known sessions")
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return session, nil
}

// ListRecent returns the most recently created sessions, newest first.
func (s *Store) ListRecent(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Conn().Query(`
		SELECT id, name, goal, status, created_at, completed_at, error
		FROM sessions ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// AppendStep inserts a step with the next sequence number for its session.
func (s *Store) AppendStep(step *Step) error {
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRow(`
		SELECT COALESCE(MAX(seq), 0) + 1 FROM steps WHERE session_id = ?
	`, step.SessionID).Scan(&seq); err != nil {
		return fmt.Errorf("allocating step sequence: %w", err)
	}
	step.Seq = seq

	if _, err := tx.Exec(`
		INSERT INTO steps (id, session_id, seq, kind, input, output, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, step.ID, step.SessionID, step.Seq, step.Kind, step.Input, step.Output,
		step.Duration.Milliseconds()); err != nil {
		return fmt.Errorf("inserting step: %w", err)
	}
	return tx.Commit()
}

// Steps returns a session's steps in sequence order.
func (s *Store) Steps(sessionID string) ([]*Step, error) {
	rows, err := s.db.Conn().Query(`
		SELECT id, session_id, seq, kind, input, output, duration_ms
		FROM steps WHERE session_id = ? ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing steps: %w", err)
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		var step Step
		var durationMs int64
		if err := rows.Scan(&step.ID, &step.SessionID, &step.Seq, &step.Kind,
			&step.Input, &step.Output, &durationMs); err != nil {
			return nil, err
		}
		step.Duration = time.Duration(durationMs) * time.Millisecond
		steps = append(steps, &step)
	}
	return steps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	var session Session
	var status, createdAt string
	var completedAt, errText sql.NullString

	if err := row.Scan(&session.ID, &session.Name, &session.Goal, &status,
		&createdAt, &completedAt, &errText); err != nil {
		return nil, err
	}

	session.Status = Status(status)
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	session.CreatedAt = created

	if completedAt.Valid {
		completed, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid completed_at: %w", err)
		}
		session.CompletedAt = &completed
	}
	if errText.Valid {
		session.Error = errText.String
	}
	return &session, nil
}
