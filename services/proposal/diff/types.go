// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diff holds the line-level machinery behind proposed changes: a
// Myers differ for statistics and display, a forgiving unified diff
// parser, and an applier that places each hunk by matching its context
// instead of its header line numbers.
//
// The differ never feeds the applier. Only hunks parsed from assistant
// output are applied.
//
// Everything here is a pure function over strings.
package diff

import (
	"fmt"
	"strings"
)

// LineType is the one-character unified diff prefix of a line.
type LineType string

const (
	LineContext LineType = " "
	LineAdded   LineType = "+"
	LineRemoved LineType = "-"
)

func (lt LineType) String() string { return string(lt) }

// DiffLine is one prefixed line of a hunk or edit script. Content excludes
// the prefix.
type DiffLine struct {
	Type    LineType
	Content string
}

func (l DiffLine) String() string { return string(l.Type) + l.Content }

func (l DiffLine) IsAddition() bool { return l.Type == LineAdded }
func (l DiffLine) IsDeletion() bool { return l.Type == LineRemoved }
func (l DiffLine) IsContext() bool  { return l.Type == LineContext }

// Hunk is one "@@" section parsed by ParseHunks. Starts are 1-based and
// taken from the header as written; a header without a count means 1.
// ApplyHunks treats them as hints only.
//
// OldNoEOL and NewNoEOL record a "\ No newline at end of file" marker
// after the last old-side or new-side line of the hunk.
type Hunk struct {
	OldStart, OldCount int
	NewStart, NewCount int
	Lines              []DiffLine

	OldNoEOL, NewNoEOL bool
}

// Header formats the hunk's "@@ -a,b +c,d @@" line.
func (h *Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
}

func (h *Hunk) count(lt LineType) int {
	n := 0
	for _, l := range h.Lines {
		if l.Type == lt {
			n++
		}
	}
	return n
}

// AddedCount is the number of "+" lines in the body.
func (h *Hunk) AddedCount() int { return h.count(LineAdded) }

// RemovedCount is the number of "-" lines in the body.
func (h *Hunk) RemovedCount() int { return h.count(LineRemoved) }

// OldLines is what the hunk expects to find in the base text: its
// context and removed lines, in order.
func (h *Hunk) OldLines() []string {
	old := make([]string, 0, len(h.Lines))
	for _, l := range h.Lines {
		if l.Type != LineAdded {
			old = append(old, l.Content)
		}
	}
	return old
}

func (h *Hunk) String() string {
	var b strings.Builder
	b.WriteString(h.Header())
	for _, l := range h.Lines {
		b.WriteByte('\n')
		b.WriteString(l.String())
	}
	return b.String()
}

// SplitLines splits text into lines for diffing and patching.
//
// CRLF is normalized to LF. The empty string has no lines. A trailing
// newline yields a final empty line, so "a\n" and "a" differ by one line
// and joining the result with "\n" restores the input exactly.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

// fileLines splits text the way a unified diff sees it: the final newline
// terminates the last line instead of starting an empty one. eol reports
// whether text ended with a newline. The empty text has no lines and
// counts as terminated.
func fileLines(text string) (lines []string, eol bool) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return nil, true
	}
	lines = strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		return lines[:len(lines)-1], true
	}
	return lines, false
}

// joinFileLines is the inverse of fileLines.
func joinFileLines(lines []string, eol bool) string {
	if len(lines) == 0 {
		return ""
	}
	out := strings.Join(lines, "\n")
	if eol {
		out += "\n"
	}
	return out
}
