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
// Myers Line Differ
// =============================================================================

// Lines computes a minimal edit script turning a into b.
//
// # Description
//
// Greedy Myers: for each edit distance d, the furthest reaching x on every
// diagonal k is kept in v. A copy of v is saved before each round so the
// script can be recovered by walking the snapshots backwards.
//
// When both neighbours are reachable, the step comes from diagonal k+1
// (an insertion) only if it reaches strictly further than diagonal k-1;
// otherwise, ties included, it comes from k-1 (a deletion). The same rule
// is used during backtracking so the recovered path is the one the forward
// pass found.
//
// # Outputs
//
//   - []DiffLine: Context, removed and added lines in file order. Removed
//     lines precede added lines within a change.
func Lines(a, b []string) []DiffLine {
	n, m := len(a), len(b)
	maxD := n + m
	if maxD == 0 {
		return nil
	}

	offset := maxD + 1
	v := make([]int, 2*maxD+3)
	trace := make([][]int, 0, 8)

	for d := 0; d <= maxD; d++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)

		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				return backtrack(trace, a, b, offset)
			}
		}
	}

	// Unreachable: d = n+m always reaches the end.
	return nil
}

// backtrack walks the saved snapshots from (n, m) back to (0, 0).
func backtrack(trace [][]int, a, b []string, offset int) []DiffLine {
	x, y := len(a), len(b)
	reversed := make([]DiffLine, 0, len(a)+len(b))

	for d := len(trace) - 1; d >= 0; d-- {
		v := trace[d]
		k := x - y

		var prevK int
		if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := v[offset+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			reversed = append(reversed, DiffLine{Type: LineContext, Content: a[x]})
		}

		if d > 0 {
			if x == prevX {
				reversed = append(reversed, DiffLine{Type: LineAdded, Content: b[prevY]})
			} else {
				reversed = append(reversed, DiffLine{Type: LineRemoved, Content: a[prevX]})
			}
		}

		x, y = prevX, prevY
	}

	script := make([]DiffLine, len(reversed))
	for i, line := range reversed {
		script[len(reversed)-1-i] = line
	}
	return script
}

// Text diffs two texts line by line. See SplitLines for line semantics.
func Text(before, after string) []DiffLine {
	return Lines(SplitLines(before), SplitLines(after))
}

// LineStats returns the number of lines added and removed between two texts.
func LineStats(before, after string) (added, removed int) {
	for _, line := range Text(before, after) {
		switch line.Type {
		case LineAdded:
			added++
		case LineRemoved:
			removed++
		}
	}
	return added, removed
}
