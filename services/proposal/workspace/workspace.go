// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workspace provides the file I/O capability used to apply and
// revert proposed changes.
//
// # Description
//
// Workspace is the only way proposal code touches files. LocalFS implements
// it against a directory on disk; Memory implements it in memory for tests
// and dry runs. Paths are always workspace-relative and slash-separated.
//
// # Thread Safety
//
// LocalFS and Memory are safe for concurrent use.
package workspace

import (
	"context"
	"errors"
)

// Sentinel errors for workspace operations.
var (
	// ErrNotExist indicates the file does not exist.
	ErrNotExist = errors.New("file does not exist")

	// ErrPathNotAllowed indicates an absolute path or a ".." segment.
	ErrPathNotAllowed = errors.New("path not allowed")

	// ErrPathRequired indicates an empty path.
	ErrPathRequired = errors.New("path is required")

	// ErrDeleteRoot indicates an attempt to delete the workspace root.
	ErrDeleteRoot = errors.New("refusing to delete workspace root")
)

// Workspace reads and mutates files by workspace-relative path.
//
// # Contract
//
//   - ReadFile returns an error wrapping ErrNotExist for missing files.
//   - WriteFile creates parent directories as needed.
//   - DeleteFile succeeds when the file is already gone.
//   - RenamePath creates the destination's parent directories.
type Workspace interface {
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
	DeleteFile(ctx context.Context, path string) error
	RenamePath(ctx context.Context, from, to string) error
}

// BufferProvider exposes unsaved editor buffers. When a buffer is open for
// a path its content is the authoritative "before" state.
type BufferProvider interface {
	OpenBuffer(path string) (string, bool)
}

// Buffers is a BufferProvider backed by a map of path to content.
type Buffers map[string]string

// OpenBuffer returns the buffer content for path.
func (b Buffers) OpenBuffer(path string) (string, bool) {
	content, ok := b[path]
	return content, ok
}
