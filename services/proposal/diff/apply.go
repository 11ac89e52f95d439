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

// =============================================================================
// Patch Application
// =============================================================================

// ApplyPatch applies unified diff text to base.
//
// # Description
//
// Parses diffText with ParseHunks and applies the hunks with ApplyHunks.
// Either the whole patch applies or an error is returned; no partial
// output is ever produced.
//
// # Inputs
//
//   - base: Current file content. Empty for a file that does not exist.
//   - diffText: Unified diff text for a single file.
//
// # Outputs
//
//   - string: Patched content.
//   - error: ErrNoHunks, or a *PatchError describing the failing hunk.
//
// # Example
//
//	out, err := diff.ApplyPatch("a\nb\nc", "@@ -2,1 +2,1 @@\n-b\n+B\n")
//	// out == "a\nB\nc"
func ApplyPatch(base, diffText string) (string, error) {
	hunks, err := ParseHunks(diffText)
	if err != nil {
		return "", err
	}
	return ApplyHunks(base, hunks)
}

// ApplyHunks applies parsed hunks to base in order.
//
// # Description
//
// Declared line numbers from model output are frequently off, so each hunk
// is located by content. For every hunk:
//
//  1. The expected old sequence is its context and removed lines.
//  2. Every start at or after the cursor where the sequence matches is a
//     candidate; the one closest to OldStart-1 wins, first found on ties.
//  3. With no candidate after the cursor, a match before the cursor is
//     reported as an overlap, otherwise the context was not found.
//  4. Unmatched base lines before the match are copied, then the hunk body
//     is replayed, checking every context and removed line.
//
// Remaining base lines are appended after the last hunk.
//
// Lines are matched as a unified diff sees them, without the final
// newline. The result keeps base's final newline unless a hunk that
// reaches the end of the file carries a no-newline marker: NewNoEOL drops
// it, OldNoEOL alone adds it. A new file created from "@@ -0,0 +1,2 @@"
// therefore ends with a newline, as git writes it.
func ApplyHunks(base string, hunks []*Hunk) (string, error) {
	lines, eol := fileLines(base)
	out := make([]string, 0, len(lines))
	cursor := 0

	for idx, h := range hunks {
		oldSeq := h.OldLines()
		preferred := h.OldStart - 1
		if preferred < 0 {
			preferred = 0
		}

		start, found := findAnchor(lines, oldSeq, cursor, preferred)
		if !found {
			if before, ok := findAnchor(lines[:min(cursor+len(oldSeq)-1, len(lines))], oldSeq, 0, preferred); ok && before < cursor {
				return "", &PatchError{Kind: PatchOverlap, Hunk: idx, Line: h.OldStart}
			}
			return "", notFoundError(idx, h, lines, oldSeq, preferred)
		}

		out = append(out, lines[cursor:start]...)
		pos := start

		for _, dl := range h.Lines {
			switch dl.Type {
			case LineAdded:
				out = append(out, dl.Content)
			case LineContext, LineRemoved:
				if pos >= len(lines) || lines[pos] != dl.Content {
					actual := ""
					if pos < len(lines) {
						actual = lines[pos]
					}
					return "", &PatchError{
						Kind:     PatchMismatch,
						Hunk:     idx,
						Line:     pos + 1,
						Expected: dl.Content,
						Actual:   actual,
						HasLines: true,
					}
				}
				if dl.Type == LineContext {
					out = append(out, dl.Content)
				}
				pos++
			}
		}

		cursor = pos
		if pos == len(lines) {
			switch {
			case h.NewNoEOL:
				eol = false
			case h.OldNoEOL:
				eol = true
			}
		}
	}

	out = append(out, lines[cursor:]...)
	return joinFileLines(out, eol), nil
}

// findAnchor returns the match start at or after cursor closest to preferred.
//
// An empty sequence (pure insertion) anchors at preferred, clamped to
// [cursor, len(lines)].
func findAnchor(lines, seq []string, cursor, preferred int) (int, bool) {
	if len(seq) == 0 {
		pos := preferred
		if pos > len(lines) {
			pos = len(lines)
		}
		if pos < cursor {
			pos = cursor
		}
		return pos, true
	}

	best := -1
	for i := cursor; i+len(seq) <= len(lines); i++ {
		if best >= 0 && i-preferred >= absInt(best-preferred) {
			break
		}
		if !matchAt(lines, seq, i) {
			continue
		}
		if best < 0 || absInt(i-preferred) < absInt(best-preferred) {
			best = i
		}
	}
	return best, best >= 0
}

func matchAt(lines, seq []string, start int) bool {
	for j, want := range seq {
		if lines[start+j] != want {
			return false
		}
	}
	return true
}

// notFoundError reports the first differing line at the preferred position
// so callers can see what the hunk expected.
func notFoundError(idx int, h *Hunk, lines, seq []string, preferred int) *PatchError {
	err := &PatchError{Kind: PatchContextNotFound, Hunk: idx, Line: h.OldStart}
	for j, want := range seq {
		pos := preferred + j
		actual := ""
		if pos < len(lines) {
			actual = lines[pos]
		}
		if pos >= len(lines) || actual != want {
			err.Expected = want
			err.Actual = actual
			err.HasLines = true
			break
		}
	}
	return err
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
