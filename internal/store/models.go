package store

import "time"

// Project is a tracked working directory.
type Project struct {
	ID         int64
	Name       string
	Path       string
	CreatedAt  time.Time
	LastActive time.Time
}

// Session is one bounded period of work on a project. EndedAt is nil
// while the session is open.
type Session struct {
	ID        int64
	ProjectID int64
	StartedAt time.Time
	EndedAt   *time.Time
	Summary   string
}

// Active reports whether the session is still open.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// Capture is an immutable context snapshot attached to a session.
// Content is the human-readable form, Structured the serialized one.
type Capture struct {
	ID         int64
	SessionID  int64
	Kind       string
	Content    string
	Structured string
	Timestamp  time.Time
}

// Capture kinds recorded by the session lifecycle.
const (
	CaptureGitStart = "git_start"
	CaptureGitEnd   = "git_end"
)

// Note is an immutable free-text annotation attached to a session.
type Note struct {
	ID        int64
	SessionID int64
	Content   string
	Timestamp time.Time
}
