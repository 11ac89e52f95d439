// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recovery

import (
	"strings"
)

// ExtractBalanced returns the first balanced run of s that starts with open
// and ends with the matching close.
//
// # Description
//
// Scans s once, tracking nesting depth. Characters inside JSON string
// literals (including escaped quotes) are ignored, so braces in string
// content never affect the depth.
//
// # Inputs
//
//   - s: Text to scan.
//   - open: Opening character, for example '{' or '['.
//   - close: Closing character, for example '}' or ']'.
//
// # Outputs
//
//   - string: The balanced substring including both delimiters.
//   - bool: False when no balanced run exists (for example truncated input).
//
// # Examples
//
//	ExtractBalanced(`noise {"a": "}"} tail`, '{', '}')  // `{"a": "}"}`, true
//	ExtractBalanced(`{"a": [1, 2`, '[', ']')            // "", false
func ExtractBalanced(s string, open, close byte) (string, bool) {
	start, end, ok := balancedSpan(s, open, close)
	if !ok {
		return "", false
	}
	return s[start:end], true
}

// balancedSpan returns the half-open byte range of the first balanced run.
func balancedSpan(s string, open, close byte) (int, int, bool) {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return start, i + 1, true
			}
		}
	}
	return 0, 0, false
}

// completeObjects returns every balanced {...} element that follows the
// opening bracket of a possibly truncated JSON array.
func completeObjects(array string) []string {
	rest := array
	if idx := strings.IndexByte(rest, '['); idx >= 0 {
		rest = rest[idx+1:]
	}

	var objects []string
	for {
		start, end, ok := balancedSpan(rest, '{', '}')
		if !ok {
			return objects
		}
		objects = append(objects, rest[start:end])
		rest = rest[end:]
	}
}

// stripCodeFences removes a surrounding markdown code fence. The opening
// fence may carry a language tag; the closing fence is the last one in the
// text. An unclosed fence is still stripped.
func stripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(t, "```")
	if !ok {
		return t
	}

	// Drop the language tag line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		rest = strings.TrimPrefix(rest, "json")
	}

	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
