// Package gitio reads local git repository state using go-git and
// normalizes it into snapshots suitable for storage and display.
package gitio

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
)

// DefaultCommitLimit bounds how much history a snapshot walks.
const DefaultCommitLimit = 10

// Summary truncation bounds. Truncated lists always carry an explicit
// "and N more" marker so counts are never lost.
const (
	summaryMaxCommits = 5
	summaryMaxFiles   = 10
)

// Commit is one entry of a snapshot's recent history.
type Commit struct {
	SHA          string `json:"sha"`
	Message      string `json:"message"`
	Author       string `json:"author"`
	Date         string `json:"date"`
	FilesChanged int    `json:"files_changed"`
}

// Snapshot is the normalized state of a repository at a point in time.
type Snapshot struct {
	Branch                string   `json:"branch"`
	RecentCommits         []Commit `json:"recent_commits"`
	ModifiedFiles         []string `json:"modified_files"`
	StagedFiles           []string `json:"staged_files"`
	UntrackedFiles        []string `json:"untracked_files"`
	HasUncommittedChanges bool     `json:"has_uncommitted_changes"`
}

// Repo wraps a go-git repository.
type Repo struct {
	repo *git.Repository
	path string
}

// Open opens the repository containing path, walking up to find the
// .git directory. A path that is not under version control returns a
// nil Repo and no error: absence of git is a capability gap, not a
// failure.
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	return &Repo{repo: repo, path: path}, nil
}

// Branch returns the checked-out branch name, a synthesized
// "detached@<short-hash>" label for a detached HEAD, or "unknown" when
// HEAD cannot be resolved (e.g. no commits yet).
func (r *Repo) Branch() string {
	head, err := r.repo.Head()
	if err != nil {
		return "unknown"
	}
	if head.Name().IsBranch() {
		return head.Name().Short()
	}
	return "detached@" + head.Hash().String()[:7]
}

// Capture builds a snapshot of the repository. since, when non-nil,
// cuts commit emission at the first commit authored strictly earlier
// than it (history is assumed newest-first). limit <= 0 uses
// DefaultCommitLimit. History read errors degrade to an empty commit
// list rather than failing the snapshot.
func (r *Repo) Capture(limit int, since *time.Time) *Snapshot {
	if limit <= 0 {
		limit = DefaultCommitLimit
	}

	snap := &Snapshot{
		Branch:        r.Branch(),
		RecentCommits: r.recentCommits(limit, since),
	}
	r.fillStatus(snap)
	snap.HasUncommittedChanges = len(snap.ModifiedFiles) > 0 ||
		len(snap.StagedFiles) > 0 || len(snap.UntrackedFiles) > 0
	return snap
}

func (r *Repo) recentCommits(limit int, since *time.Time) []Commit {
	head, err := r.repo.Head()
	if err != nil {
		return nil
	}
	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil
	}
	defer iter.Close()

	var commits []Commit
	for len(commits) < limit {
		c, err := iter.Next()
		if err != nil {
			break
		}
		if since != nil && c.Author.When.Before(*since) {
			break
		}
		filesChanged := 0
		if stats, err := c.Stats(); err == nil {
			filesChanged = len(stats)
		}
		commits = append(commits, Commit{
			SHA:          c.Hash.String()[:7],
			Message:      firstLine(c.Message),
			Author:       c.Author.Name,
			Date:         c.Author.When.Format(time.RFC3339),
			FilesChanged: filesChanged,
		})
	}
	return commits
}

func (r *Repo) fillStatus(snap *Snapshot) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return
	}
	status, err := wt.Status()
	if err != nil {
		return
	}

	for path, fs := range status {
		if fs.Staging == git.Untracked && fs.Worktree == git.Untracked {
			snap.UntrackedFiles = append(snap.UntrackedFiles, path)
			continue
		}
		if fs.Staging != git.Unmodified {
			snap.StagedFiles = append(snap.StagedFiles, path)
		}
		if fs.Worktree != git.Unmodified {
			snap.ModifiedFiles = append(snap.ModifiedFiles, path)
		}
	}

	// Status is map-backed; sort for stable snapshots.
	sort.Strings(snap.ModifiedFiles)
	sort.Strings(snap.StagedFiles)
	sort.Strings(snap.UntrackedFiles)
}

// DiffStat returns a short porcelain-style listing of working tree
// changes, bounded to maxLines with an explicit overflow marker.
func (r *Repo) DiffStat(maxLines int) string {
	wt, err := r.repo.Worktree()
	if err != nil {
		return ""
	}
	status, err := wt.Status()
	if err != nil {
		return ""
	}

	var lines []string
	for path, fs := range status {
		lines = append(lines, fmt.Sprintf("%c%c %s", byte(fs.Staging), byte(fs.Worktree), path))
	}
	sort.Strings(lines)

	if maxLines > 0 && len(lines) > maxLines {
		extra := len(lines) - maxLines
		lines = append(lines[:maxLines], fmt.Sprintf("... (%d more lines)", extra))
	}
	return strings.Join(lines, "\n")
}

// JSON returns the lossless structured form of the snapshot.
func (s *Snapshot) JSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot: %w", err)
	}
	return string(data), nil
}

// ParseSnapshot parses the structured form produced by JSON.
func ParseSnapshot(data string) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &snap, nil
}

// Summary renders the bounded human-readable form: at most
// summaryMaxCommits commits and summaryMaxFiles entries per file list,
// each truncation marked with the count of omitted entries.
func (s *Snapshot) Summary() string {
	lines := []string{"Branch: " + s.Branch}

	if len(s.RecentCommits) > 0 {
		lines = append(lines, "", fmt.Sprintf("Recent commits (%d):", len(s.RecentCommits)))
		for i, c := range s.RecentCommits {
			if i == summaryMaxCommits {
				lines = append(lines, fmt.Sprintf("  ... and %d more", len(s.RecentCommits)-summaryMaxCommits))
				break
			}
			lines = append(lines, "  - "+truncate(c.Message, 60))
		}
	}

	lines = appendFileSection(lines, "Modified files", s.ModifiedFiles)
	lines = appendFileSection(lines, "Staged files", s.StagedFiles)
	lines = appendFileSection(lines, "Untracked files", s.UntrackedFiles)

	if s.HasUncommittedChanges {
		lines = append(lines, "", "Uncommitted changes present")
	}
	return strings.Join(lines, "\n")
}

func appendFileSection(lines []string, label string, files []string) []string {
	if len(files) == 0 {
		return lines
	}
	lines = append(lines, "", fmt.Sprintf("%s (%d):", label, len(files)))
	for i, f := range files {
		if i == summaryMaxFiles {
			lines = append(lines, fmt.Sprintf("  ... and %d more", len(files)-summaryMaxFiles))
			break
		}
		lines = append(lines, "  - "+f)
	}
	return lines
}

func firstLine(msg string) string {
	msg = strings.TrimSpace(msg)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}

// truncate bounds s to max runes, never splitting a multi-byte rune.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
