// Package sandbox resolves file-path tool arguments to absolute paths
// confined to an agent's workspace root (§4.4), hardening the original
// MemGPT agent's `_safe_path` prefix check with symlink resolution and
// raw-byte validation.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrOutsideWorkspace is returned when a resolved path escapes the
// workspace root, whether directly or through a symlink.
var ErrOutsideWorkspace = errors.New("sandbox: path outside workspace")

// Sandbox confines path resolution to one agent's workspace root.
type Sandbox struct {
	root string
}

// New creates a Sandbox rooted at root, creating the directory on
// first use with a mode that isolates it from other agents (§4.4).
func New(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0700); err != nil {
		return nil, fmt.Errorf("sandbox: create workspace root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("sandbox: canonicalize workspace root: %w", err)
	}
	return &Sandbox{root: canonical}, nil
}

// Root returns the canonicalized workspace root.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve validates path and returns its canonical absolute form,
// guaranteed to be the workspace root or a descendant of it (§4.4).
//
// isRead controls whether a symlink at the final path component is
// followed and re-checked against the root, with the resolved target
// returned (step 4 of §4.4's algorithm); with false, the cleaned path
// itself is returned. In both modes a path that does not exist yet is
// accepted as long as its deepest existing ancestor lies inside the
// root.
func (s *Sandbox) Resolve(path string, isRead bool) (string, error) {
	if err := validateRawPath(path); err != nil {
		return "", err
	}

	joined := path
	if !filepath.IsAbs(path) {
		joined = filepath.Join(s.root, path)
	}
	joined = filepath.Clean(joined)

	if err := s.checkContainment(joined); err != nil {
		return "", err
	}

	if isRead {
		if target, err := filepath.EvalSymlinks(joined); err == nil {
			if err := s.checkContainment(target); err != nil {
				return "", err
			}
			return target, nil
		}
		// File doesn't exist yet or isn't a symlink chain we can
		// resolve; fall through with the cleaned, contained path.
	}

	return joined, nil
}

// checkContainment canonicalizes as much of path's existing ancestry as
// possible and confirms it is the root or a descendant of it.
func (s *Sandbox) checkContainment(path string) error {
	resolved := path
	if real, err := filepath.EvalSymlinks(path); err == nil {
		resolved = real
	} else {
		// Path (or a component of it) may not exist yet, e.g. a
		// write_file target whose parent hasn't been created. Resolve
		// the deepest existing ancestor instead.
		resolved = resolveExistingAncestor(path)
	}

	if resolved == s.root {
		return nil
	}
	if strings.HasPrefix(resolved, s.root+string(filepath.Separator)) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrOutsideWorkspace, path)
}

func resolveExistingAncestor(path string) string {
	dir := path
	for {
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return real
			}
			return filepath.Join(real, rel)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return path
		}
		dir = parent
	}
}

func validateRawPath(path string) error {
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("sandbox: path contains a null byte")
	}
	if !utf8.ValidString(path) {
		return fmt.Errorf("sandbox: path is not valid UTF-8")
	}
	return nil
}
