// Package project maps filesystem paths to tracked projects.
package project

import (
	"fmt"
	"path/filepath"

	"devctx/internal/store"
)

// Match is the result of resolving a path to a tracked project.
// Ancestor is true when the queried path is a strict subdirectory of
// the project root.
type Match struct {
	Project  *store.Project
	Ancestor bool
}

// Lookup is the query surface the resolver needs. *store.Store
// satisfies it.
type Lookup interface {
	GetProjectByPath(path string) (*store.Project, error)
}

// Resolve canonicalizes startPath and finds the project tracking it,
// checking the exact path first and then each parent directory,
// closest first, up to the filesystem root. A nil Match means no
// ancestor is tracked; callers treat that as "not initialized", never
// as an error.
func Resolve(st Lookup, startPath string) (*Match, error) {
	current, err := Canonical(startPath)
	if err != nil {
		return nil, err
	}

	p, err := st.GetProjectByPath(current)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return &Match{Project: p}, nil
	}

	for {
		parent := filepath.Dir(current)
		if parent == current {
			return nil, nil
		}
		current = parent

		p, err := st.GetProjectByPath(current)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return &Match{Project: p, Ancestor: true}, nil
		}
	}
}

// Canonical returns the absolute, symlink-resolved form of a path.
// Symlink resolution is best-effort: a path that does not exist keeps
// its absolute form.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return filepath.Clean(abs), nil
}
