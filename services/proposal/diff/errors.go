// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diff

import (
	"errors"
	"fmt"
)

// Sentinel errors for patch parsing and application.
var (
	// ErrNoHunks indicates non-empty diff text without any hunk header.
	ErrNoHunks = errors.New("no hunks found in diff")

	// ErrContextNotFound indicates a hunk's expected lines were not found.
	ErrContextNotFound = errors.New("context not found")

	// ErrHunkOverlap indicates a hunk only matches inside an earlier hunk.
	ErrHunkOverlap = errors.New("hunk overlaps previous hunk")

	// ErrContextMismatch indicates a base line differs from the hunk line.
	ErrContextMismatch = errors.New("context mismatch")
)

// PatchErrorKind classifies patch application failures.
type PatchErrorKind string

const (
	// PatchContextNotFound means no run of base lines matched the hunk.
	PatchContextNotFound PatchErrorKind = "context_not_found"

	// PatchOverlap means the only match starts before the previous hunk ended.
	PatchOverlap PatchErrorKind = "overlap"

	// PatchMismatch means a context or removed line differs from the base.
	PatchMismatch PatchErrorKind = "mismatch"
)

// PatchError describes why a hunk could not be applied.
//
// # Description
//
// Line is 1-based. For PatchContextNotFound it is the hunk's declared old
// start; for the other kinds it is the base line that was being examined.
// Expected and Actual are set whenever a concrete line comparison failed.
type PatchError struct {
	Kind     PatchErrorKind
	Hunk     int
	Line     int
	Expected string
	Actual   string
	HasLines bool
}

// Error implements error.
func (e *PatchError) Error() string {
	switch e.Kind {
	case PatchContextNotFound:
		if e.HasLines {
			return fmt.Sprintf("context not found near line %d (expected %q, found %q)", e.Line, e.Expected, e.Actual)
		}
		return fmt.Sprintf("context not found near line %d", e.Line)
	case PatchOverlap:
		return fmt.Sprintf("hunk overlaps previous hunk (hunk %d near line %d)", e.Hunk+1, e.Line)
	default:
		return fmt.Sprintf("context mismatch at line %d: expected %q, got %q", e.Line, e.Expected, e.Actual)
	}
}

// Unwrap returns the sentinel matching the error kind.
func (e *PatchError) Unwrap() error {
	switch e.Kind {
	case PatchContextNotFound:
		return ErrContextNotFound
	case PatchOverlap:
		return ErrHunkOverlap
	default:
		return ErrContextMismatch
	}
}
