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
	"path"
	"regexp"
	"strings"
)

// drivePrefixRE matches a Windows drive prefix after slash conversion.
var drivePrefixRE = regexp.MustCompile(`^[A-Za-z]:/`)

// =============================================================================
// Path Sanitization
// =============================================================================

// SanitizePath converts an untrusted path into a workspace-relative one.
//
// # Description
//
// Steps, in order:
//
//  1. Backslashes become slashes; leading "./" is stripped repeatedly.
//  2. A leading workspace root (and the slash after it) is stripped.
//  3. A path that is still absolute ("/x" or "C:/x") or contains a ".."
//     segment is reduced to its basename.
//  4. Leading slashes are stripped.
//
// # Inputs
//
//   - p: Path as proposed by the assistant.
//   - root: Absolute workspace root. May be empty.
//
// # Outputs
//
//   - string: Sanitized path. Empty when nothing usable remains.
//   - bool: True if the result differs from p.
//
// # Examples
//
//	SanitizePath("../../etc/passwd", "")             // "passwd", true
//	SanitizePath("/abs/root/src/a.ts", "/abs/root")  // "src/a.ts", true
//	SanitizePath("./a/b.ts", "")                     // "a/b.ts", true
func SanitizePath(p, root string) (string, bool) {
	original := p

	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}

	if r := strings.TrimRight(strings.ReplaceAll(root, `\`, "/"), "/"); r != "" {
		if p == r {
			p = ""
		} else if strings.HasPrefix(p, r+"/") {
			p = p[len(r)+1:]
		}
	}

	if isAbsolute(p) || hasParentSegment(p) {
		p = path.Base(p)
		if p == "." || p == ".." || p == "/" {
			p = ""
		}
	}

	p = strings.TrimLeft(p, "/")
	return p, p != original
}

func isAbsolute(p string) bool {
	return strings.HasPrefix(p, "/") || drivePrefixRE.MatchString(p)
}

func hasParentSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// =============================================================================
// Normalization
// =============================================================================

// Result is the output of Normalize.
type Result struct {
	// Edits are the cleaned operations in proposal order.
	Edits []Operation

	// DidSanitize is true when any path was rewritten or an operation was
	// dropped because its path sanitized to nothing.
	DidSanitize bool
}

// Normalize expands combined diffs and sanitizes every path.
//
// # Description
//
// A patch without a path whose diff contains a "diff --git" header, and any
// patch whose diff contains more than one such header, is replaced by the
// operations SplitGitDiff produces for it. Every path field is then passed
// through SanitizePath. Operations left with an empty path are dropped.
//
// # Inputs
//
//   - ops: Raw operations from the recoverer.
//   - root: Absolute workspace root used to relativize absolute paths.
//
// # Outputs
//
//   - Result: Clean operations plus the sanitization flag.
func Normalize(ops []Operation, root string) Result {
	var res Result

	for _, op := range ops {
		for _, expanded := range expand(op) {
			clean, changed, ok := sanitizeOperation(expanded, root)
			if changed || !ok {
				res.DidSanitize = true
			}
			if ok {
				res.Edits = append(res.Edits, clean)
			}
		}
	}
	return res
}

func expand(op Operation) []Operation {
	if op.Kind != KindPatch {
		return []Operation{op}
	}

	blocks := CountGitBlocks(op.Diff)
	if (op.Path == "" && blocks > 0) || blocks > 1 {
		if split := SplitGitDiff(op.Diff); len(split) > 0 {
			return split
		}
	}
	return []Operation{op}
}

// sanitizeOperation returns the cleaned operation, whether any path changed,
// and false if the operation must be dropped.
func sanitizeOperation(op Operation, root string) (Operation, bool, bool) {
	switch op.Kind {
	case KindRun:
		return op, false, true

	case KindRename:
		from, fromChanged := SanitizePath(op.From, root)
		to, toChanged := SanitizePath(op.To, root)
		op.From, op.To = from, to
		return op, fromChanged || toChanged, from != "" && to != ""

	default:
		p, changed := SanitizePath(op.Path, root)
		op.Path = p
		return op, changed, p != ""
	}
}
