// Package session orchestrates the project/session lifecycle: project
// resolution, session start/end, capture and note recording, and
// summary generation. It returns values and never prints; rendering
// belongs to the front ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"devctx/internal/format"
	"devctx/internal/gitio"
	"devctx/internal/project"
	"devctx/internal/store"
	"devctx/internal/summary"
)

var (
	// ErrProjectNotFound means neither the path nor any ancestor is
	// tracked. Expected condition, not a defect.
	ErrProjectNotFound = errors.New("project not initialized")
	// ErrNoActiveSession means an operation needing an open session
	// found the project idle.
	ErrNoActiveSession = errors.New("no active session")
)

// Clock supplies the current time; injected so tests control it.
type Clock func() time.Time

// Store is the persistence surface the lifecycle layer depends on.
// *store.Store satisfies it.
type Store interface {
	CreateProject(name, path string, now time.Time) (*store.Project, error)
	GetProjectByPath(path string) (*store.Project, error)
	GetProjectByName(name string) (*store.Project, error)
	ListProjects() ([]*store.Project, error)
	CreateSession(projectID int64, now time.Time) (*store.Session, error)
	GetActiveSession(projectID int64) (*store.Session, error)
	EndSession(sessionID int64, summary string, now time.Time) error
	GetRecentSessions(projectID int64, limit int) ([]*store.Session, error)
	GetLastSession(projectID int64) (*store.Session, error)
	AddCapture(sessionID int64, kind, content, structured string, now time.Time) (*store.Capture, error)
	GetSessionCaptures(sessionID int64) ([]*store.Capture, error)
	AddNote(sessionID int64, content string, now time.Time) (*store.Note, error)
	GetSessionNotes(sessionID int64) ([]*store.Note, error)
	GetRecentNotes(projectID int64, limit int) ([]*store.Note, error)
}

var _ Store = (*store.Store)(nil)

// Manager drives the session lifecycle over a store, a summarization
// engine and git state.
type Manager struct {
	store     Store
	engine    *summary.Engine
	clock     Clock
	autoStart bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithAutoStart controls whether Note opens a session on an idle
// project instead of failing with ErrNoActiveSession.
func WithAutoStart(enabled bool) Option {
	return func(m *Manager) { m.autoStart = enabled }
}

// NewManager creates a Manager. Defaults: wall clock, auto-start on.
func NewManager(st Store, eng *summary.Engine, opts ...Option) *Manager {
	m := &Manager{
		store:     st,
		engine:    eng,
		clock:     time.Now,
		autoStart: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InitResult reports project initialization.
type InitResult struct {
	Project        *store.Project
	AlreadyTracked bool
	GitRepo        bool
}

// Init registers path as a tracked project. name defaults to the
// directory name. Initializing an already-tracked path returns the
// existing project with AlreadyTracked set.
func (m *Manager) Init(path, name string) (*InitResult, error) {
	canonical, err := project.Canonical(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = filepath.Base(canonical)
	}

	repo, err := gitio.Open(canonical)
	if err != nil {
		return nil, err
	}

	existing, err := m.store.GetProjectByPath(canonical)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &InitResult{Project: existing, AlreadyTracked: true, GitRepo: repo != nil}, nil
	}

	p, err := m.store.CreateProject(name, canonical, m.clock())
	if err != nil {
		if errors.Is(err, store.ErrDuplicateProject) {
			// Raced with another init; report the winner.
			existing, getErr := m.store.GetProjectByPath(canonical)
			if getErr == nil && existing != nil {
				return &InitResult{Project: existing, AlreadyTracked: true, GitRepo: repo != nil}, nil
			}
		}
		return nil, err
	}
	return &InitResult{Project: p, GitRepo: repo != nil}, nil
}

// StartResult reports a session start.
type StartResult struct {
	Project  *store.Project
	Session  *store.Session
	Ancestor bool
	// AlreadyActive distinguishes the idempotent no-op from a fresh
	// start; Elapsed is the running session's age in that case.
	AlreadyActive bool
	Elapsed       time.Duration
	// Branch is the current branch label, empty outside git.
	Branch string
}

// Start opens a session on the project tracking path, recording a
// best-effort git capture of the starting state. Starting an
// already-active project returns the running session unchanged.
func (m *Manager) Start(ctx context.Context, path string) (*StartResult, error) {
	match, err := project.Resolve(m.store, path)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrProjectNotFound
	}
	p := match.Project
	now := m.clock()

	sess, err := m.store.CreateSession(p.ID, now)
	if errors.Is(err, store.ErrSessionActive) {
		active, getErr := m.store.GetActiveSession(p.ID)
		if getErr != nil {
			return nil, getErr
		}
		if active == nil {
			// The racing session ended between insert and read.
			return nil, fmt.Errorf("session vanished during start: %w", err)
		}
		return &StartResult{
			Project:       p,
			Session:       active,
			Ancestor:      match.Ancestor,
			AlreadyActive: true,
			Elapsed:       now.Sub(active.StartedAt),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &StartResult{Project: p, Session: sess, Ancestor: match.Ancestor}
	if snap := m.captureSnapshot(p.Path, nil); snap != nil {
		result.Branch = snap.Branch
		m.recordCapture(sess.ID, store.CaptureGitStart, snap, now)
	}
	return result, nil
}

// EndResult reports a session end.
type EndResult struct {
	Project  *store.Project
	Session  *store.Session
	Summary  string
	Duration time.Duration
}

// End closes the active session: captures git state since the session
// started, summarizes notes and captures, and persists the summary.
// Summarization never blocks the end; backend failure degrades to the
// deterministic fallback inside the engine.
func (m *Manager) End(ctx context.Context, path string) (*EndResult, error) {
	p, err := m.resolveProject(path)
	if err != nil {
		return nil, err
	}

	active, err := m.store.GetActiveSession(p.ID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoActiveSession
	}
	now := m.clock()

	gitText := ""
	if snap := m.captureSnapshot(p.Path, &active.StartedAt); snap != nil {
		gitText = snap.Summary()
		m.recordCapture(active.ID, store.CaptureGitEnd, snap, now)
	}

	notes, captures, err := m.sessionContext(active.ID)
	if err != nil {
		return nil, err
	}

	text := m.engine.SummarizeSession(ctx, gitText, notes, captures, p.Name)
	if err := m.store.EndSession(active.ID, text, now); err != nil {
		return nil, err
	}

	return &EndResult{
		Project:  p,
		Session:  active,
		Summary:  text,
		Duration: now.Sub(active.StartedAt),
	}, nil
}

// NoteResult reports a recorded note.
type NoteResult struct {
	Project *store.Project
	Session *store.Session
	Note    *store.Note
	// Started is set when the note implicitly opened a session.
	Started bool
}

// Note appends a note to the active session, opening one first when
// the project is idle and auto-start is enabled.
func (m *Manager) Note(ctx context.Context, path, text string) (*NoteResult, error) {
	p, err := m.resolveProject(path)
	if err != nil {
		return nil, err
	}

	active, err := m.store.GetActiveSession(p.ID)
	if err != nil {
		return nil, err
	}

	started := false
	if active == nil {
		if !m.autoStart {
			return nil, ErrNoActiveSession
		}
		created, createErr := m.store.CreateSession(p.ID, m.clock())
		switch {
		case createErr == nil:
			active = created
			started = true
		case errors.Is(createErr, store.ErrSessionActive):
			// Raced with a concurrent start; attach to the winner.
			active, err = m.store.GetActiveSession(p.ID)
			if err != nil {
				return nil, err
			}
			if active == nil {
				// The racing session ended between insert and read.
				return nil, fmt.Errorf("session vanished during note: %w", createErr)
			}
		default:
			return nil, createErr
		}
	}

	note, err := m.store.AddNote(active.ID, text, m.clock())
	if err != nil {
		return nil, err
	}
	return &NoteResult{Project: p, Session: active, Note: note, Started: started}, nil
}

// StatusResult is a read-only projection of project and session state.
type StatusResult struct {
	Project  *store.Project
	Ancestor bool
	// Session is the active session, nil when idle.
	Session      *store.Session
	Duration     time.Duration
	NoteCount    int
	CaptureCount int
	// LastActive labels how long ago the project was touched.
	LastActive string
}

// Status reports the current state without mutating anything.
func (m *Manager) Status(path string) (*StatusResult, error) {
	match, err := project.Resolve(m.store, path)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrProjectNotFound
	}
	p := match.Project
	now := m.clock()

	result := &StatusResult{
		Project:    p,
		Ancestor:   match.Ancestor,
		LastActive: format.TimeAgo(p.LastActive, now),
	}

	active, err := m.store.GetActiveSession(p.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		notes, err := m.store.GetSessionNotes(active.ID)
		if err != nil {
			return nil, err
		}
		captures, err := m.store.GetSessionCaptures(active.ID)
		if err != nil {
			return nil, err
		}
		result.Session = active
		result.Duration = now.Sub(active.StartedAt)
		result.NoteCount = len(notes)
		result.CaptureCount = len(captures)
	}
	return result, nil
}

// ResumeResult is the catch-up context for returning to a project.
type ResumeResult struct {
	Project     *store.Project
	LastSession *store.Session
	RecentNotes []*store.Note
	// Snapshot is the live git state, nil outside version control.
	Snapshot *gitio.Snapshot
	TimeAway string
	// Prompt is the suggested next step, empty when no prior session
	// summary exists to build on.
	Prompt string
}

// Resume assembles the read-only catch-up view: last session summary,
// recent notes, live git state and a resume prompt.
func (m *Manager) Resume(ctx context.Context, path string) (*ResumeResult, error) {
	p, err := m.resolveProject(path)
	if err != nil {
		return nil, err
	}
	now := m.clock()

	last, err := m.store.GetLastSession(p.ID)
	if err != nil {
		return nil, err
	}
	recent, err := m.store.GetRecentNotes(p.ID, 5)
	if err != nil {
		return nil, err
	}

	result := &ResumeResult{
		Project:     p,
		LastSession: last,
		RecentNotes: recent,
		Snapshot:    m.captureSnapshot(p.Path, nil),
		TimeAway:    format.TimeAgo(p.LastActive, now),
	}

	if last != nil && last.Summary != "" {
		gitText := ""
		if result.Snapshot != nil {
			gitText = result.Snapshot.Summary()
		}
		var noteTexts []string
		for _, n := range recent {
			noteTexts = append(noteTexts, n.Content)
		}
		result.Prompt = m.engine.ResumePrompt(ctx, last.Summary, noteTexts, gitText, result.TimeAway)
	}
	return result, nil
}

// HistoryEntry pairs a session with its note count.
type HistoryEntry struct {
	Session   *store.Session
	NoteCount int
}

// HistoryResult lists a project's recent sessions, newest first.
type HistoryResult struct {
	Project *store.Project
	Entries []HistoryEntry
}

// History returns recent sessions. projectName, when non-empty, looks
// the project up by display name instead of resolving path.
func (m *Manager) History(path, projectName string, limit int) (*HistoryResult, error) {
	var p *store.Project
	var err error
	if projectName != "" {
		p, err = m.store.GetProjectByName(projectName)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, ErrProjectNotFound
		}
	} else {
		p, err = m.resolveProject(path)
		if err != nil {
			return nil, err
		}
	}

	sessions, err := m.store.GetRecentSessions(p.ID, limit)
	if err != nil {
		return nil, err
	}

	result := &HistoryResult{Project: p}
	for _, sess := range sessions {
		notes, err := m.store.GetSessionNotes(sess.ID)
		if err != nil {
			return nil, err
		}
		result.Entries = append(result.Entries, HistoryEntry{Session: sess, NoteCount: len(notes)})
	}
	return result, nil
}

// MidSummaryResult is a non-terminal session summary.
type MidSummaryResult struct {
	Project  *store.Project
	Session  *store.Session
	Duration time.Duration
	Notes    []string
	GitText  string
	Summary  string
}

// MidSummary summarizes the active session without ending it.
func (m *Manager) MidSummary(ctx context.Context, path string) (*MidSummaryResult, error) {
	p, err := m.resolveProject(path)
	if err != nil {
		return nil, err
	}

	active, err := m.store.GetActiveSession(p.ID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoActiveSession
	}
	now := m.clock()

	gitText := ""
	if snap := m.captureSnapshot(p.Path, &active.StartedAt); snap != nil {
		gitText = snap.Summary()
	}
	notes, captures, err := m.sessionContext(active.ID)
	if err != nil {
		return nil, err
	}

	return &MidSummaryResult{
		Project:  p,
		Session:  active,
		Duration: now.Sub(active.StartedAt),
		Notes:    notes,
		GitText:  gitText,
		Summary:  m.engine.SummarizeSession(ctx, gitText, notes, captures, p.Name),
	}, nil
}

// ListProjects returns all tracked projects with their activity state.
func (m *Manager) ListProjects() ([]*ProjectListing, error) {
	projects, err := m.store.ListProjects()
	if err != nil {
		return nil, err
	}
	now := m.clock()

	var listings []*ProjectListing
	for _, p := range projects {
		active, err := m.store.GetActiveSession(p.ID)
		if err != nil {
			return nil, err
		}
		listings = append(listings, &ProjectListing{
			Project:    p,
			Active:     active != nil,
			LastActive: format.TimeAgo(p.LastActive, now),
		})
	}
	return listings, nil
}

// ProjectListing is one row of the project list.
type ProjectListing struct {
	Project    *store.Project
	Active     bool
	LastActive string
}

// ----- helpers -----

func (m *Manager) resolveProject(path string) (*store.Project, error) {
	match, err := project.Resolve(m.store, path)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrProjectNotFound
	}
	return match.Project, nil
}

// captureSnapshot reads git state, treating absence of version control
// or read failure as "no snapshot".
func (m *Manager) captureSnapshot(path string, since *time.Time) *gitio.Snapshot {
	repo, err := gitio.Open(path)
	if err != nil || repo == nil {
		return nil
	}
	return repo.Capture(0, since)
}

// recordCapture persists a snapshot; captures are best-effort and
// never fail the surrounding operation.
func (m *Manager) recordCapture(sessionID int64, kind string, snap *gitio.Snapshot, now time.Time) {
	structured, err := snap.JSON()
	if err != nil {
		return
	}
	m.store.AddCapture(sessionID, kind, snap.Summary(), structured, now)
}

func (m *Manager) sessionContext(sessionID int64) (notes, captures []string, err error) {
	noteRows, err := m.store.GetSessionNotes(sessionID)
	if err != nil {
		return nil, nil, err
	}
	captureRows, err := m.store.GetSessionCaptures(sessionID)
	if err != nil {
		return nil, nil, err
	}
	for _, n := range noteRows {
		notes = append(notes, n.Content)
	}
	for _, c := range captureRows {
		captures = append(captures, c.Content)
	}
	return notes, captures, nil
}
