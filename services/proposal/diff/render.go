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
	"bytes"
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// DefaultContextLines is the number of context lines around each rendered hunk.
const DefaultContextLines = 3

// devNull is the git placeholder for a missing side of a file diff.
const devNull = "/dev/null"

// noEOLTag marks the last line of a file without a final newline while
// diffing, so "a" and "a\n" compare unequal.
const noEOLTag = "\x00"

// =============================================================================
// Rendering
// =============================================================================

// FileDiffInput describes one file to render.
type FileDiffInput struct {
	// OldPath is the path before the change. Empty means the file is new.
	OldPath string

	// NewPath is the path after the change. Empty means the file is deleted.
	NewPath string

	// Before is the old content (nil for a new file).
	Before *string

	// After is the new content (nil for a deleted file).
	After *string
}

// BuildFileDiff converts a before/after pair into a go-diff FileDiff.
//
// # Description
//
// Runs the Myers differ over the two texts and groups the script into hunks
// with contextLines lines of context on each side. Git extended headers are
// added for new files, deleted files and renames so the rendered output can
// be fed back through the multi-file splitter. Lines are compared without
// their final newline, as git does, and a missing final newline is written
// as the "\\ No newline at end of file" marker.
//
// # Inputs
//
//   - in: Paths and contents of the file.
//   - contextLines: Context lines per hunk. Negative uses DefaultContextLines.
//
// # Outputs
//
//   - *godiff.FileDiff: Diff ready for printing. Hunks is nil when the
//     content did not change.
func BuildFileDiff(in FileDiffInput, contextLines int) *godiff.FileDiff {
	if contextLines < 0 {
		contextLines = DefaultContextLines
	}

	oldPath, newPath := in.OldPath, in.NewPath
	fd := &godiff.FileDiff{}

	headerOld, headerNew := oldPath, newPath
	if headerOld == "" {
		headerOld = newPath
	}
	if headerNew == "" {
		headerNew = oldPath
	}
	fd.Extended = append(fd.Extended, fmt.Sprintf("diff --git a/%s b/%s", headerOld, headerNew))

	switch {
	case in.Before == nil || oldPath == "":
		fd.Extended = append(fd.Extended, "new file mode 100644")
		fd.OrigName = devNull
		fd.NewName = "b/" + newPath
	case in.After == nil || newPath == "":
		fd.Extended = append(fd.Extended, "deleted file mode 100644")
		fd.OrigName = "a/" + oldPath
		fd.NewName = devNull
	default:
		if oldPath != newPath {
			fd.Extended = append(fd.Extended, "rename from "+oldPath, "rename to "+newPath)
		}
		fd.OrigName = "a/" + oldPath
		fd.NewName = "b/" + newPath
	}

	before, after := "", ""
	if in.Before != nil {
		before = *in.Before
	}
	if in.After != nil {
		after = *in.After
	}

	fd.Hunks = buildHunks(Lines(taggedLines(before), taggedLines(after)), contextLines)
	return fd
}

// taggedLines is fileLines with noEOLTag appended to an unterminated last
// line.
func taggedLines(text string) []string {
	lines, eol := fileLines(text)
	if !eol {
		lines[len(lines)-1] += noEOLTag
	}
	return lines
}

// buildHunks groups an edit script into go-diff hunks.
func buildHunks(script []DiffLine, contextLines int) []*godiff.Hunk {
	var hunks []*godiff.Hunk

	// Indices of changed lines in the script.
	var changes []int
	for i, line := range script {
		if !line.IsContext() {
			changes = append(changes, i)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	// Old/new line numbers (0-based) at each script index.
	oldAt := make([]int, len(script)+1)
	newAt := make([]int, len(script)+1)
	for i, line := range script {
		oldAt[i+1], newAt[i+1] = oldAt[i], newAt[i]
		if line.Type != LineAdded {
			oldAt[i+1]++
		}
		if line.Type != LineRemoved {
			newAt[i+1]++
		}
	}

	start := max(changes[0]-contextLines, 0)
	end := min(changes[0]+contextLines+1, len(script))
	for _, c := range changes[1:] {
		if c-contextLines <= end {
			end = min(c+contextLines+1, len(script))
			continue
		}
		hunks = append(hunks, makeHunk(script, start, end, oldAt, newAt))
		start = max(c-contextLines, 0)
		end = min(c+contextLines+1, len(script))
	}
	hunks = append(hunks, makeHunk(script, start, end, oldAt, newAt))
	return hunks
}

func makeHunk(script []DiffLine, start, end int, oldAt, newAt []int) *godiff.Hunk {
	var body bytes.Buffer
	for _, line := range script[start:end] {
		content, noEOL := strings.CutSuffix(line.Content, noEOLTag)
		body.WriteString(line.Type.String())
		body.WriteString(content)
		body.WriteByte('\n')
		if noEOL {
			body.WriteString(noNewlineMarker)
			body.WriteByte('\n')
		}
	}

	oldLines := oldAt[end] - oldAt[start]
	newLines := newAt[end] - newAt[start]
	oldStart := oldAt[start] + 1
	newStart := newAt[start] + 1
	if oldLines == 0 {
		oldStart = oldAt[start]
	}
	if newLines == 0 {
		newStart = newAt[start]
	}

	return &godiff.Hunk{
		OrigStartLine: int32(oldStart),
		OrigLines:     int32(oldLines),
		NewStartLine:  int32(newStart),
		NewLines:      int32(newLines),
		Body:          body.Bytes(),
	}
}

// RenderFileDiff renders a single file as git-style unified diff text.
func RenderFileDiff(in FileDiffInput, contextLines int) (string, error) {
	out, err := printFileDiff(BuildFileDiff(in, contextLines))
	if err != nil {
		return "", fmt.Errorf("printing file diff: %w", err)
	}
	return string(out), nil
}

// RenderMultiFileDiff renders several files as one combined diff.
func RenderMultiFileDiff(inputs []FileDiffInput, contextLines int) (string, error) {
	var b strings.Builder
	for _, in := range inputs {
		out, err := printFileDiff(BuildFileDiff(in, contextLines))
		if err != nil {
			return "", fmt.Errorf("printing diff for %s: %w", firstNonEmpty(in.NewPath, in.OldPath), err)
		}
		b.Write(out)
	}
	return b.String(), nil
}

// printFileDiff prints headers even for hunk-less diffs (pure renames and
// empty new files), which go-diff would otherwise emit without the
// ---/+++ lines.
func printFileDiff(fd *godiff.FileDiff) ([]byte, error) {
	if len(fd.Hunks) == 0 {
		var buf bytes.Buffer
		for _, x := range fd.Extended {
			buf.WriteString(x)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	}
	return godiff.PrintFileDiff(fd)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// =============================================================================
// Validation
// =============================================================================

// UnifiedStats summarizes a diff that go-diff could parse.
type UnifiedStats struct {
	// Files is the number of file sections.
	Files int

	// Added is the total number of added lines.
	Added int

	// Removed is the total number of removed lines.
	Removed int
}

// ValidateUnified checks that text is a well-formed unified diff.
//
// # Description
//
// Uses go-diff's strict multi-file reader. The lenient ParseHunks accepts
// much more than this, so a failure here is a diagnostic for reviewers, not
// a reason to reject the patch.
//
// # Outputs
//
//   - UnifiedStats: Counts over all parsed files.
//   - error: Parse error from go-diff, or ErrNoHunks if nothing was found.
func ValidateUnified(text string) (UnifiedStats, error) {
	fileDiffs, err := godiff.NewMultiFileDiffReader(strings.NewReader(text)).ReadAllFiles()
	if err != nil {
		return UnifiedStats{}, fmt.Errorf("parsing unified diff: %w", err)
	}

	var stats UnifiedStats
	for _, fd := range fileDiffs {
		if len(fd.Hunks) == 0 {
			continue
		}
		stats.Files++
		s := fd.Stat()
		// go-diff reports a one-for-one replacement as Changed.
		stats.Added += int(s.Added + s.Changed)
		stats.Removed += int(s.Deleted + s.Changed)
	}
	if stats.Files == 0 {
		return stats, ErrNoHunks
	}
	return stats, nil
}
