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
	"regexp"
	"strconv"
	"strings"
)

// hunkHeaderRE matches "@@ -oldStart[,oldCount] +newStart[,newCount] @@".
var hunkHeaderRE = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// noNewlineMarker is emitted by diff tools after a line without a newline.
const noNewlineMarker = `\ No newline at end of file`

// ParseHunks parses unified diff text into hunks.
//
// # Description
//
// Scans line by line. Anything before the first hunk header is header noise
// ("diff --git", "index", "---", "+++", prose) and is skipped. Inside a
// hunk, lines are classified by their first character. The parser is
// lenient with model output:
//
//   - A line with an unknown prefix is kept as context using its full text.
//   - An empty line is a context line with empty content.
//   - A "\ No newline at end of file" marker sets OldNoEOL or NewNoEOL
//     for the line before it and is not kept as a line.
//   - A "diff " line closes the current hunk. A "--- " line directly
//     followed by "+++ " closes it only once the header's old and new
//     counts are used up; before that the pair is a removed line and an
//     added line.
//
// Trailing newlines of the whole input are ignored.
//
// # Inputs
//
//   - text: Raw diff text, possibly with headers and several hunks.
//
// # Outputs
//
//   - []*Hunk: Hunks in input order. Nil for empty input.
//   - error: ErrNoHunks when the input is non-empty but has no hunk header.
func ParseHunks(text string) ([]*Hunk, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	lines := strings.Split(text, "\n")
	var hunks []*Hunk
	var current *Hunk

	// Declared lines still expected by the current hunk.
	oldLeft, newLeft := 0, 0

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := hunkHeaderRE.FindStringSubmatch(line); m != nil {
			current = newHunk(m)
			hunks = append(hunks, current)
			oldLeft, newLeft = current.OldCount, current.NewCount
			continue
		}

		if current == nil {
			continue
		}

		if strings.HasPrefix(line, "diff ") {
			current = nil
			continue
		}
		if oldLeft <= 0 && newLeft <= 0 &&
			strings.HasPrefix(line, "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ") {
			current = nil
			i++
			continue
		}

		if strings.HasPrefix(line, noNewlineMarker) {
			markNoEOL(current)
			continue
		}

		dl := DiffLine{Type: LineContext, Content: line}
		if line != "" {
			switch line[0] {
			case ' ':
				dl.Content = line[1:]
			case '+':
				dl = DiffLine{Type: LineAdded, Content: line[1:]}
			case '-':
				dl = DiffLine{Type: LineRemoved, Content: line[1:]}
			}
		}
		current.Lines = append(current.Lines, dl)

		if dl.Type != LineAdded {
			oldLeft--
		}
		if dl.Type != LineRemoved {
			newLeft--
		}
	}

	if len(hunks) == 0 {
		return nil, ErrNoHunks
	}
	return hunks, nil
}

// markNoEOL applies a no-newline marker to the side of the line it follows.
func markNoEOL(h *Hunk) {
	if len(h.Lines) == 0 {
		return
	}
	switch h.Lines[len(h.Lines)-1].Type {
	case LineRemoved:
		h.OldNoEOL = true
	case LineAdded:
		h.NewNoEOL = true
	default:
		h.OldNoEOL = true
		h.NewNoEOL = true
	}
}

// newHunk builds a Hunk from a header match.
func newHunk(m []string) *Hunk {
	h := &Hunk{
		OldStart: atoiDefault(m[1], 0),
		OldCount: atoiDefault(m[2], 1),
		NewStart: atoiDefault(m[3], 0),
		NewCount: atoiDefault(m[4], 1),
	}
	return h
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// HasHunks reports whether text contains at least one hunk header.
func HasHunks(text string) bool {
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if hunkHeaderRE.MatchString(line) {
			return true
		}
	}
	return false
}
