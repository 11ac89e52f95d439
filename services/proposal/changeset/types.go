// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package changeset assembles reviewable change sets from edit operations
// and applies or reverts them against a workspace.
//
// # Description
//
// A Builder turns normalized edit operations into a ChangeSet: the before
// and after content of every affected file plus line statistics. A
// Controller owns the single live ChangeSet of a session and performs the
// accept, reject, apply and revert transitions, writing through the
// workspace.Workspace capability.
//
// # Lifecycle
//
//	Build -> Propose -> (AcceptFile | RejectFile)* -> AcceptAll -> RejectAll (revert)
//	                                                            -> AcceptAll (retire)
//
// A ChangeSet is retired when it becomes empty, is rejected, is accepted a
// second time, or is superseded by a new proposal.
package changeset

import (
	"slices"
	"time"

	"github.com/AleutianAI/AleutianProposals/services/proposal/diff"
	"github.com/AleutianAI/AleutianProposals/services/proposal/edit"
)

// =============================================================================
// File Kinds and Status
// =============================================================================

// FileKind is the mutation a ChangeFile performs.
type FileKind string

const (
	// FileWrite creates or replaces the file with After.
	FileWrite FileKind = "write"

	// FileDelete removes the file.
	FileDelete FileKind = "delete"

	// FileRename moves From to To. Content is unchanged.
	FileRename FileKind = "rename"
)

// Status is the application state of a ChangeSet.
type Status string

const (
	// StatusProposed means nothing has been written.
	StatusProposed Status = "proposed"

	// StatusApplied means every file has been written.
	StatusApplied Status = "applied"

	// StatusPartial means some but not all effects are on disk, either
	// after an I/O failure or after accepting individual files.
	StatusPartial Status = "partial"
)

// renameArrow separates the two paths in a rename's display path.
const renameArrow = " → "

// =============================================================================
// ChangeFile
// =============================================================================

// ChangeFile is one file-level change inside a ChangeSet.
//
// # Fields
//
//   - Kind: write, delete or rename.
//   - Path: File path. For renames, the display form "from → to".
//   - From, To: Rename endpoints. Empty for other kinds.
//   - Before: Content before the change. Nil means the file is new.
//   - After: Content after the change. Nil for deletes. For renames, both
//     Before and After hold the pre-rename content.
//   - Added, Removed: Line counts from the line differ.
//   - Applied: Whether this file's change is currently on disk.
//   - Warnings: Non-fatal diagnostics such as syntax errors in After.
type ChangeFile struct {
	Kind     FileKind `json:"kind"`
	Path     string   `json:"path"`
	From     string   `json:"from,omitempty"`
	To       string   `json:"to,omitempty"`
	Before   *string  `json:"before"`
	After    *string  `json:"after"`
	Added    int      `json:"added"`
	Removed  int      `json:"removed"`
	Applied  bool     `json:"applied"`
	Warnings []string `json:"warnings,omitempty"`
}

// IsNew reports whether the change creates a file.
func (f ChangeFile) IsNew() bool {
	return f.Kind == FileWrite && f.Before == nil
}

// Matches reports whether path identifies this file. Renames match their
// display path and both endpoints.
func (f ChangeFile) Matches(path string) bool {
	if f.Path == path {
		return true
	}
	return f.Kind == FileRename && (f.From == path || f.To == path)
}

// TouchedPaths returns the workspace paths this file writes.
func (f ChangeFile) TouchedPaths() []string {
	if f.Kind == FileRename {
		return []string{f.From, f.To}
	}
	return []string{f.Path}
}

// forward returns the operation that applies the file.
func (f ChangeFile) forward() edit.Operation {
	switch f.Kind {
	case FileDelete:
		return edit.Delete(f.Path)
	case FileRename:
		return edit.Rename(f.From, f.To)
	default:
		return edit.Write(f.Path, deref(f.After))
	}
}

// inverse returns the operation that undoes the file.
func (f ChangeFile) inverse() edit.Operation {
	switch {
	case f.Kind == FileRename:
		return edit.Rename(f.To, f.From)
	case f.Before == nil:
		return edit.Delete(f.Path)
	default:
		return edit.Write(f.Path, *f.Before)
	}
}

// ownsEdit reports whether op produced this file.
func (f ChangeFile) ownsEdit(op edit.Operation) bool {
	switch op.Kind {
	case edit.KindRename:
		return f.Kind == FileRename && op.From == f.From && op.To == f.To
	case edit.KindRun:
		return false
	default:
		return f.Kind != FileRename && op.Path == f.Path
	}
}

// =============================================================================
// ChangeSet
// =============================================================================

// Stats summarizes a ChangeSet. Always derived from Files.
type Stats struct {
	FilesChanged int `json:"files_changed"`
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
}

// ChangeSet is a reviewable proposal of file changes.
//
// # Invariants
//
//   - Stats is recomputed from Files whenever Files changes.
//   - Applied is false only if no workspace mutation has happened.
//   - Values held by a Session are never mutated in place; every
//     transition builds a new value.
type ChangeSet struct {
	ID          string           `json:"id"`
	Edits       []edit.Operation `json:"edits"`
	Files       []ChangeFile     `json:"files"`
	Stats       Stats            `json:"stats"`
	Applied     bool             `json:"applied"`
	Status      Status           `json:"status"`
	DidSanitize bool             `json:"did_sanitize"`
	Message     string           `json:"message,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Clone returns a deep copy.
func (cs *ChangeSet) Clone() *ChangeSet {
	if cs == nil {
		return nil
	}
	out := *cs
	out.Edits = slices.Clone(cs.Edits)
	out.Files = make([]ChangeFile, len(cs.Files))
	for i, f := range cs.Files {
		f.Before = clonePtr(f.Before)
		f.After = clonePtr(f.After)
		f.Warnings = slices.Clone(f.Warnings)
		out.Files[i] = f
	}
	return &out
}

// File returns the file matching path.
func (cs *ChangeSet) File(path string) (ChangeFile, bool) {
	if i := cs.indexOf(path); i >= 0 {
		return cs.Files[i], true
	}
	return ChangeFile{}, false
}

// AppliedFiles returns the files currently on disk.
func (cs *ChangeSet) AppliedFiles() []ChangeFile {
	var out []ChangeFile
	for _, f := range cs.Files {
		if f.Applied {
			out = append(out, f)
		}
	}
	return out
}

// Commands returns the commands of run operations, in order.
func (cs *ChangeSet) Commands() []string {
	var out []string
	for _, op := range cs.Edits {
		if op.Kind == edit.KindRun {
			out = append(out, op.Command)
		}
	}
	return out
}

// RenderDiff renders the ChangeSet as one git-style unified diff.
func (cs *ChangeSet) RenderDiff(contextLines int) (string, error) {
	inputs := make([]diff.FileDiffInput, 0, len(cs.Files))
	for _, f := range cs.Files {
		in := diff.FileDiffInput{Before: f.Before, After: f.After}
		switch f.Kind {
		case FileRename:
			in.OldPath, in.NewPath = f.From, f.To
		case FileDelete:
			in.OldPath = f.Path
			in.After = nil
		default:
			in.NewPath = f.Path
			if f.Before != nil {
				in.OldPath = f.Path
			}
		}
		inputs = append(inputs, in)
	}
	return diff.RenderMultiFileDiff(inputs, contextLines)
}

// indexOf finds the file for path. An exact Path match wins over a rename
// endpoint.
func (cs *ChangeSet) indexOf(path string) int {
	if i := slices.IndexFunc(cs.Files, func(f ChangeFile) bool { return f.Path == path }); i >= 0 {
		return i
	}
	return slices.IndexFunc(cs.Files, func(f ChangeFile) bool { return f.Matches(path) })
}

// recompute refreshes per-file counts, Stats and Status.
func (cs *ChangeSet) recompute() {
	cs.Stats = Stats{FilesChanged: len(cs.Files)}
	applied := 0
	for i := range cs.Files {
		f := &cs.Files[i]
		f.Added, f.Removed = diff.LineStats(deref(f.Before), deref(f.After))
		cs.Stats.LinesAdded += f.Added
		cs.Stats.LinesRemoved += f.Removed
		if f.Applied {
			applied++
		}
	}

	switch {
	case applied == len(cs.Files) && (applied > 0 || cs.Applied):
		cs.Status = StatusApplied
	case applied > 0 || cs.Applied:
		cs.Status = StatusPartial
	default:
		cs.Status = StatusProposed
	}
}

// removeFile drops the file at index i together with the edits that
// produced it.
func (cs *ChangeSet) removeFile(i int) {
	f := cs.Files[i]
	cs.Files = slices.Delete(cs.Files, i, i+1)
	cs.Edits = slices.DeleteFunc(cs.Edits, f.ownsEdit)
	cs.recompute()
}

// ComputeStats sums line statistics over files with the line differ.
func ComputeStats(files []ChangeFile) Stats {
	s := Stats{FilesChanged: len(files)}
	for _, f := range files {
		added, removed := diff.LineStats(deref(f.Before), deref(f.After))
		s.LinesAdded += added
		s.LinesRemoved += removed
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
