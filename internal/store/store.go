// Package store provides SQLite-backed storage for devctx projects,
// sessions, captures and notes.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

var (
	ErrDuplicateProject = errors.New("project path already tracked")
	ErrProjectNotFound  = errors.New("project not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionActive    = errors.New("project already has an active session")
)

// Timestamps are stored as RFC3339 strings in UTC.
const timeLayout = time.RFC3339Nano

// Store wraps a SQLite connection for devctx storage.
type Store struct {
	conn *sql.DB
	path string
}

// OpenDataDir opens or creates the database inside the given data
// directory, creating the directory if needed.
func OpenDataDir(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return Open(filepath.Join(dataDir, "devctx.db"))
}

// Open opens a database at the given path, applying pragmas and the
// schema. Schema initialization is idempotent.
func Open(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ----- Projects -----

// CreateProject registers a new tracked project. The path must be
// canonical; a second project on the same path fails with
// ErrDuplicateProject.
func (s *Store) CreateProject(name, path string, now time.Time) (*Project, error) {
	ts := now.UTC()
	res, err := s.conn.Exec(
		`INSERT INTO projects (name, path, created_at, last_active) VALUES (?, ?, ?, ?)`,
		name, path, ts.Format(timeLayout), ts.Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateProject
		}
		return nil, fmt.Errorf("inserting project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading project id: %w", err)
	}
	return &Project{ID: id, Name: name, Path: path, CreatedAt: ts, LastActive: ts}, nil
}

// GetProjectByPath returns the project tracking exactly this path, or
// nil if none does.
func (s *Store) GetProjectByPath(path string) (*Project, error) {
	return s.scanProject(s.conn.QueryRow(
		`SELECT id, name, path, created_at, last_active FROM projects WHERE path = ?`, path,
	))
}

// GetProject returns a project by id, or nil if absent.
func (s *Store) GetProject(id int64) (*Project, error) {
	return s.scanProject(s.conn.QueryRow(
		`SELECT id, name, path, created_at, last_active FROM projects WHERE id = ?`, id,
	))
}

// GetProjectByName returns the project with the given display name, or
// nil. Names are not unique; the most recently active match wins.
func (s *Store) GetProjectByName(name string) (*Project, error) {
	return s.scanProject(s.conn.QueryRow(
		`SELECT id, name, path, created_at, last_active FROM projects
		 WHERE name = ? ORDER BY last_active DESC LIMIT 1`, name,
	))
}

// ListProjects returns all tracked projects, most recently active first.
func (s *Store) ListProjects() ([]*Project, error) {
	rows, err := s.conn.Query(
		`SELECT id, name, path, created_at, last_active FROM projects ORDER BY last_active DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProjectRow(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ----- Sessions -----

// CreateSession opens a session on a project and bumps the project's
// last_active timestamp in the same transaction. The partial unique
// index on open sessions makes a second concurrent start fail with
// ErrSessionActive instead of producing two open sessions.
func (s *Store) CreateSession(projectID int64, now time.Time) (*Session, error) {
	ts := now.UTC()
	tx, err := s.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO sessions (project_id, started_at) VALUES (?, ?)`,
		projectID, ts.Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSessionActive
		}
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading session id: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE projects SET last_active = ? WHERE id = ?`,
		ts.Format(timeLayout), projectID,
	); err != nil {
		return nil, fmt.Errorf("updating project activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing session: %w", err)
	}
	return &Session{ID: id, ProjectID: projectID, StartedAt: ts}, nil
}

// GetActiveSession returns the open session for a project, or nil.
func (s *Store) GetActiveSession(projectID int64) (*Session, error) {
	return s.scanSession(s.conn.QueryRow(
		`SELECT id, project_id, started_at, ended_at, summary
		 FROM sessions WHERE project_id = ? AND ended_at IS NULL`, projectID,
	))
}

// EndSession closes a session, recording the end timestamp and summary.
// The session must exist and be open; ending an already-ended session
// fails with ErrSessionNotFound (callers check activity first).
func (s *Store) EndSession(sessionID int64, summary string, now time.Time) error {
	res, err := s.conn.Exec(
		`UPDATE sessions SET ended_at = ?, summary = ? WHERE id = ? AND ended_at IS NULL`,
		now.UTC().Format(timeLayout), summary, sessionID,
	)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking ended session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetRecentSessions returns the newest sessions for a project, open or
// closed, newest first.
func (s *Store) GetRecentSessions(projectID int64, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.conn.Query(
		`SELECT id, project_id, started_at, ended_at, summary
		 FROM sessions WHERE project_id = ? ORDER BY started_at DESC LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// GetLastSession returns the most recently ended session for a project,
// or nil if none has ended yet.
func (s *Store) GetLastSession(projectID int64) (*Session, error) {
	return s.scanSession(s.conn.QueryRow(
		`SELECT id, project_id, started_at, ended_at, summary
		 FROM sessions WHERE project_id = ? AND ended_at IS NOT NULL
		 ORDER BY ended_at DESC LIMIT 1`, projectID,
	))
}

// ----- Captures -----

// AddCapture appends a context snapshot to a session.
func (s *Store) AddCapture(sessionID int64, kind, content, structured string, now time.Time) (*Capture, error) {
	ts := now.UTC()
	if structured == "" {
		structured = "{}"
	}
	res, err := s.conn.Exec(
		`INSERT INTO captures (session_id, kind, content, structured_content, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, kind, content, structured, ts.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting capture: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading capture id: %w", err)
	}
	return &Capture{
		ID: id, SessionID: sessionID, Kind: kind,
		Content: content, Structured: structured, Timestamp: ts,
	}, nil
}

// GetSessionCaptures returns all captures for a session, oldest first.
func (s *Store) GetSessionCaptures(sessionID int64) ([]*Capture, error) {
	rows, err := s.conn.Query(
		`SELECT id, session_id, kind, content, structured_content, timestamp
		 FROM captures WHERE session_id = ? ORDER BY timestamp`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying captures: %w", err)
	}
	defer rows.Close()

	var captures []*Capture
	for rows.Next() {
		var c Capture
		var ts string
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Kind, &c.Content, &c.Structured, &ts); err != nil {
			return nil, fmt.Errorf("scanning capture: %w", err)
		}
		c.Timestamp, err = time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing capture timestamp: %w", err)
		}
		captures = append(captures, &c)
	}
	return captures, rows.Err()
}

// ----- Notes -----

// AddNote appends a free-text note to a session.
func (s *Store) AddNote(sessionID int64, content string, now time.Time) (*Note, error) {
	ts := now.UTC()
	res, err := s.conn.Exec(
		`INSERT INTO notes (session_id, content, timestamp) VALUES (?, ?, ?)`,
		sessionID, content, ts.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading note id: %w", err)
	}
	return &Note{ID: id, SessionID: sessionID, Content: content, Timestamp: ts}, nil
}

// GetSessionNotes returns all notes for a session, oldest first.
func (s *Store) GetSessionNotes(sessionID int64) ([]*Note, error) {
	rows, err := s.conn.Query(
		`SELECT id, session_id, content, timestamp
		 FROM notes WHERE session_id = ? ORDER BY timestamp`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// GetRecentNotes returns the newest notes across all of a project's
// sessions, newest first.
func (s *Store) GetRecentNotes(projectID int64, limit int) ([]*Note, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.conn.Query(
		`SELECT n.id, n.session_id, n.content, n.timestamp
		 FROM notes n
		 JOIN sessions s ON n.session_id = s.id
		 WHERE s.project_id = ?
		 ORDER BY n.timestamp DESC
		 LIMIT ?`, projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent notes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// ----- Scanning helpers -----

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanProject(row *sql.Row) (*Project, error) {
	p, err := scanProjectRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func scanProjectRow(row rowScanner) (*Project, error) {
	var p Project
	var created, lastActive string
	if err := row.Scan(&p.ID, &p.Name, &p.Path, &created, &lastActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}
	var err error
	if p.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parsing project created_at: %w", err)
	}
	if p.LastActive, err = time.Parse(timeLayout, lastActive); err != nil {
		return nil, fmt.Errorf("parsing project last_active: %w", err)
	}
	return &p, nil
}

func (s *Store) scanSession(row *sql.Row) (*Session, error) {
	sess, err := scanSessionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

func scanSessionRow(row rowScanner) (*Session, error) {
	var sess Session
	var started string
	var ended, summary sql.NullString
	if err := row.Scan(&sess.ID, &sess.ProjectID, &started, &ended, &summary); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	var err error
	if sess.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("parsing session started_at: %w", err)
	}
	if ended.Valid {
		t, err := time.Parse(timeLayout, ended.String)
		if err != nil {
			return nil, fmt.Errorf("parsing session ended_at: %w", err)
		}
		sess.EndedAt = &t
	}
	sess.Summary = summary.String
	return &sess, nil
}

func scanNotes(rows *sql.Rows) ([]*Note, error) {
	var notes []*Note
	for rows.Next() {
		var n Note
		var ts string
		if err := rows.Scan(&n.ID, &n.SessionID, &n.Content, &ts); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		t, err := time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing note timestamp: %w", err)
		}
		n.Timestamp = t
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
