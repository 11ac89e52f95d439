// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package edit

import (
	"strings"
)

const (
	gitDiffMarker = "diff --git "
	devNull       = "/dev/null"
)

// gitBlock is one "diff --git" section of a combined diff.
type gitBlock struct {
	text       string
	oldPath    string
	newPath    string
	renameFrom string
	renameTo   string
	isNew      bool
	isDeleted  bool
	hasHunks   bool
}

// SplitGitDiff splits a combined git diff into per-file operations.
//
// # Description
//
// The text is cut at every line beginning with "diff --git ". Each block is
// classified from its headers:
//
//   - rename without hunks: Rename
//   - rename with hunks: Rename, then Patch on the new path
//   - "+++ /dev/null" or "deleted file mode": Delete
//   - hunks: Patch carrying the whole block
//   - "new file mode" without hunks: Write with empty content
//
// Blocks that yield no path are dropped. Text before the first marker is
// ignored.
//
// # Outputs
//
//   - []Operation: Operations in block order. Nil when no block was found.
func SplitGitDiff(text string) []Operation {
	var ops []Operation
	for _, block := range splitGitBlocks(text) {
		ops = append(ops, block.operations()...)
	}
	return ops
}

// CountGitBlocks returns the number of "diff --git" sections in text.
func CountGitBlocks(text string) int {
	n := 0
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.HasPrefix(line, gitDiffMarker) {
			n++
		}
	}
	return n
}

func splitGitBlocks(text string) []gitBlock {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var blocks []gitBlock
	var current []string
	started := false
	flush := func() {
		if started && len(current) > 0 {
			blocks = append(blocks, parseGitBlock(current))
		}
	}

	for _, line := range lines {
		if strings.HasPrefix(line, gitDiffMarker) {
			flush()
			started = true
			current = []string{line}
			continue
		}
		if started {
			current = append(current, line)
		}
	}
	flush()
	return blocks
}

func parseGitBlock(lines []string) gitBlock {
	b := gitBlock{text: strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"}
	b.oldPath, b.newPath = parseGitHeader(lines[0])

	for _, line := range lines[1:] {
		if b.hasHunks {
			// Hunk bodies may contain lines that look like headers.
			break
		}
		switch {
		case strings.HasPrefix(line, "@@"):
			b.hasHunks = true
		case strings.HasPrefix(line, "rename from "):
			b.renameFrom = strings.TrimSpace(strings.TrimPrefix(line, "rename from "))
		case strings.HasPrefix(line, "rename to "):
			b.renameTo = strings.TrimSpace(strings.TrimPrefix(line, "rename to "))
		case strings.HasPrefix(line, "new file mode"):
			b.isNew = true
		case strings.HasPrefix(line, "deleted file mode"):
			b.isDeleted = true
		case strings.HasPrefix(line, "--- "):
			if p := parseDiffPath(line[4:]); p == devNull {
				b.isNew = true
			} else if p != "" {
				b.oldPath = p
			}
		case strings.HasPrefix(line, "+++ "):
			if p := parseDiffPath(line[4:]); p == devNull {
				b.isDeleted = true
			} else if p != "" {
				b.newPath = p
			}
		}
	}
	return b
}

func (b gitBlock) operations() []Operation {
	switch {
	case b.renameFrom != "" && b.renameTo != "":
		ops := []Operation{Rename(b.renameFrom, b.renameTo)}
		if b.hasHunks {
			ops = append(ops, Patch(b.renameTo, b.text))
		}
		return ops

	case b.isDeleted:
		if path := firstNonEmpty(b.oldPath, b.newPath); path != "" {
			return []Operation{Delete(path)}
		}

	case b.hasHunks:
		if path := firstNonEmpty(b.newPath, b.oldPath); path != "" {
			return []Operation{Patch(path, b.text)}
		}

	case b.isNew:
		if path := firstNonEmpty(b.newPath, b.oldPath); path != "" {
			return []Operation{Write(path, "")}
		}
	}
	return nil
}

// parseGitHeader extracts both paths from "diff --git a/X b/Y". The last
// " b/" separator is used so paths containing spaces still split.
func parseGitHeader(line string) (oldPath, newPath string) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, gitDiffMarker))
	if idx := strings.LastIndex(rest, " b/"); idx >= 0 {
		return trimDiffPath(rest[:idx]), trimDiffPath(rest[idx+1:])
	}
	fields := strings.Fields(rest)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return trimDiffPath(fields[0]), trimDiffPath(fields[0])
	default:
		return trimDiffPath(fields[0]), trimDiffPath(fields[len(fields)-1])
	}
}

// parseDiffPath reads the path from a ---/+++ header, dropping any
// tab-separated timestamp.
func parseDiffPath(raw string) string {
	if idx := strings.IndexByte(raw, '\t'); idx >= 0 {
		raw = raw[:idx]
	}
	raw = strings.TrimSpace(raw)
	if raw == devNull {
		return devNull
	}
	return trimDiffPath(raw)
}

func trimDiffPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == devNull {
		return ""
	}
	if strings.HasPrefix(raw, "a/") || strings.HasPrefix(raw, "b/") {
		return raw[2:]
	}
	return raw
}
