// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// =============================================================================
// Local Options
// =============================================================================

// LocalOptions configures LocalFS.
type LocalOptions struct {
	// FileMode is the mode for newly created files (default: 0644).
	// Overwritten files keep their own mode.
	FileMode os.FileMode

	// DirMode is the mode for newly created directories (default: 0755).
	DirMode os.FileMode

	// Logger receives debug output. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultLocalOptions returns sensible defaults.
func DefaultLocalOptions() LocalOptions {
	return LocalOptions{
		FileMode: 0644,
		DirMode:  0755,
	}
}

// =============================================================================
// LocalFS
// =============================================================================

// LocalFS is a Workspace rooted at a directory on disk.
//
// # Description
//
// Every path is validated before use: empty paths, absolute paths and ".."
// segments are rejected, and the joined path must stay inside the root.
// Writes go to a temporary file in the target directory and are renamed
// into place, so readers never observe a half-written file.
//
// # Thread Safety
//
// Safe for concurrent use. Operations on the same path are serialized.
type LocalFS struct {
	root    string
	options LocalOptions
	logger  *slog.Logger

	fileLocksMu sync.Mutex
	fileLocks   map[string]*sync.Mutex
}

// NewLocalFS creates a LocalFS rooted at root.
//
// # Inputs
//
//   - root: Workspace directory. Must be absolute and exist.
//   - options: File modes and logger.
//
// # Outputs
//
//   - *LocalFS: Ready-to-use workspace.
//   - error: Non-nil if root is not an absolute existing directory.
func NewLocalFS(root string, options LocalOptions) (*LocalFS, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("workspace root must be absolute: %s", root)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root is not a directory: %s", root)
	}

	if options.FileMode == 0 {
		options.FileMode = 0644
	}
	if options.DirMode == 0 {
		options.DirMode = 0755
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &LocalFS{
		root:      filepath.Clean(root),
		options:   options,
		logger:    logger.With("component", "workspace.LocalFS"),
		fileLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the absolute workspace root.
func (l *LocalFS) Root() string {
	return l.root
}

// Abs resolves a workspace-relative path to an absolute path.
func (l *LocalFS) Abs(rel string) (string, error) {
	return l.resolvePath(rel)
}

// ReadFile returns the content of rel.
func (l *LocalFS) ReadFile(ctx context.Context, rel string) (string, error) {
	full, err := l.resolvePath(rel)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("reading %s: %w", rel, ErrNotExist)
		}
		return "", fmt.Errorf("reading %s: %w", rel, err)
	}
	return string(data), nil
}

// WriteFile atomically replaces rel with content, creating parents. An
// existing regular file keeps its permission bits; new files get FileMode.
func (l *LocalFS) WriteFile(ctx context.Context, rel, content string) error {
	full, err := l.resolvePath(rel)
	if err != nil {
		return err
	}

	lock := l.getFileLock(full)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, l.options.DirMode); err != nil {
		return fmt.Errorf("creating directories for %s: %w", rel, err)
	}

	mode := l.options.FileMode
	if info, err := os.Stat(full); err == nil && info.Mode().IsRegular() {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(full)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", rel, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file for %s: %w", rel, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return fmt.Errorf("setting mode on %s: %w", rel, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		cleanup()
		return fmt.Errorf("replacing %s: %w", rel, err)
	}

	l.logger.DebugContext(ctx, "wrote file", "path", rel, "bytes", len(content))
	return nil
}

// DeleteFile removes rel. Directories are removed recursively. A missing
// path is not an error.
func (l *LocalFS) DeleteFile(ctx context.Context, rel string) error {
	full, err := l.resolvePath(rel)
	if err != nil {
		return err
	}
	if full == l.root {
		return ErrDeleteRoot
	}

	lock := l.getFileLock(full)
	lock.Lock()
	defer lock.Unlock()

	info, err := os.Lstat(full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.logger.DebugContext(ctx, "delete of missing file", "path", rel)
		return nil
	case err != nil:
		return fmt.Errorf("stat %s: %w", rel, err)
	case info.IsDir():
		if err := os.RemoveAll(full); err != nil {
			return fmt.Errorf("deleting directory %s: %w", rel, err)
		}
	default:
		if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("deleting %s: %w", rel, err)
		}
	}

	l.logger.DebugContext(ctx, "deleted", "path", rel)
	return nil
}

// RenamePath moves from to to, creating the destination's parents.
func (l *LocalFS) RenamePath(ctx context.Context, from, to string) error {
	fullFrom, err := l.resolvePath(from)
	if err != nil {
		return err
	}
	fullTo, err := l.resolvePath(to)
	if err != nil {
		return err
	}
	if fullFrom == l.root || fullTo == l.root {
		return fmt.Errorf("renaming workspace root: %w", ErrPathNotAllowed)
	}

	if err := os.MkdirAll(filepath.Dir(fullTo), l.options.DirMode); err != nil {
		return fmt.Errorf("creating directories for %s: %w", to, err)
	}
	if err := os.Rename(fullFrom, fullTo); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("renaming %s -> %s: %w", from, to, ErrNotExist)
		}
		return fmt.Errorf("renaming %s -> %s: %w", from, to, err)
	}

	l.logger.DebugContext(ctx, "renamed", "from", from, "to", to)
	return nil
}

// getFileLock returns a per-file mutex for thread-safe file operations.
func (l *LocalFS) getFileLock(full string) *sync.Mutex {
	l.fileLocksMu.Lock()
	defer l.fileLocksMu.Unlock()

	if lock, ok := l.fileLocks[full]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	l.fileLocks[full] = lock
	return lock
}

// resolvePath validates rel and joins it to the root.
func (l *LocalFS) resolvePath(rel string) (string, error) {
	clean, err := ValidateRelative(rel)
	if err != nil {
		return "", err
	}

	full := filepath.Join(l.root, filepath.FromSlash(clean))
	if !l.isPathSafe(full) {
		return "", fmt.Errorf("%w: %s escapes workspace", ErrPathNotAllowed, rel)
	}
	return full, nil
}

// isPathSafe checks if a path is within the root directory.
func (l *LocalFS) isPathSafe(full string) bool {
	rel, err := filepath.Rel(l.root, filepath.Clean(full))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ValidateRelative checks that p is a non-empty relative path without ".."
// segments and returns it cleaned and slash-separated.
func ValidateRelative(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	if p == "" {
		return "", ErrPathRequired
	}
	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) || (len(p) >= 2 && p[1] == ':') {
		return "", fmt.Errorf("%w: absolute path %s", ErrPathNotAllowed, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: parent segment in %s", ErrPathNotAllowed, p)
		}
	}
	return path.Clean(p), nil
}
