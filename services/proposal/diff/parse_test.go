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
	"reflect"
	"testing"
)

func TestParseHunks_SkipsHeaderNoise(t *testing.T) {
	text := `diff --git a/main.go b/main.go
index 83db48f..bf269f4 100644
--- a/main.go
+++ b/main.go
@@ -1,3 +1,3 @@ func main() {
 package main
-var x = 1
+var x = 2
 // end
`
	hunks, err := ParseHunks(text)
	if err != nil {
		t.Fatalf("ParseHunks() error = %v", err)
	}
	if len(hunks) != 1 {
		t.Fatalf("len(hunks) = %d, want 1", len(hunks))
	}

	h := hunks[0]
	if h.OldStart != 1 || h.OldCount != 3 || h.NewStart != 1 || h.NewCount != 3 {
		t.Errorf("header = %s", h.Header())
	}
	if len(h.Lines) != 4 {
		t.Fatalf("len(Lines) = %d, want 4", len(h.Lines))
	}
	if h.AddedCount() != 1 || h.RemovedCount() != 1 {
		t.Errorf("counts = +%d -%d, want +1 -1", h.AddedCount(), h.RemovedCount())
	}
	if h.Lines[1].Type != LineRemoved || h.Lines[1].Content != "var x = 1" {
		t.Errorf("Lines[1] = %+v", h.Lines[1])
	}
}

func TestParseHunks_DefaultCounts(t *testing.T) {
	hunks, err := ParseHunks("@@ -5 +5 @@\n-a\n+b")
	if err != nil {
		t.Fatalf("ParseHunks() error = %v", err)
	}
	if hunks[0].OldCount != 1 || hunks[0].NewCount != 1 {
		t.Errorf("counts = %d,%d, want 1,1", hunks[0].OldCount, hunks[0].NewCount)
	}
	if hunks[0].OldStart != 5 {
		t.Errorf("OldStart = %d, want 5", hunks[0].OldStart)
	}
}

func TestParseHunks_MultipleHunks(t *testing.T) {
	text := "@@ -1,1 +1,1 @@\n-a\n+A\n@@ -10,2 +10,3 @@\n x\n+y\n z\n"
	hunks, err := ParseHunks(text)
	if err != nil {
		t.Fatalf("ParseHunks() error = %v", err)
	}
	if len(hunks) != 2 {
		t.Fatalf("len(hunks) = %d, want 2", len(hunks))
	}
	if got := hunks[1].OldLines(); len(got) != 2 || got[0] != "x" || got[1] != "z" {
		t.Errorf("OldLines() = %q", got)
	}
}

func TestParseHunks_Lenient(t *testing.T) {
	t.Run("no_newline_marker_sets_flags", func(t *testing.T) {
		hunks, err := ParseHunks("@@ -1 +1 @@\n-a\n\\ No newline at end of file\n+b\n\\ No newline at end of file")
		if err != nil {
			t.Fatalf("ParseHunks() error = %v", err)
		}
		h := hunks[0]
		if len(h.Lines) != 2 {
			t.Errorf("len(Lines) = %d, want 2", len(h.Lines))
		}
		if !h.OldNoEOL || !h.NewNoEOL {
			t.Errorf("OldNoEOL/NewNoEOL = %v/%v, want true/true", h.OldNoEOL, h.NewNoEOL)
		}
	})

	t.Run("no_newline_marker_after_added_line", func(t *testing.T) {
		hunks, err := ParseHunks("@@ -1 +1 @@\n-a\n+a\n\\ No newline at end of file")
		if err != nil {
			t.Fatalf("ParseHunks() error = %v", err)
		}
		if hunks[0].OldNoEOL || !hunks[0].NewNoEOL {
			t.Errorf("OldNoEOL/NewNoEOL = %v/%v, want false/true", hunks[0].OldNoEOL, hunks[0].NewNoEOL)
		}
	})

	t.Run("no_newline_marker_after_context", func(t *testing.T) {
		hunks, err := ParseHunks("@@ -1,2 +1,2 @@\n-a\n+b\n c\n\\ No newline at end of file")
		if err != nil {
			t.Fatalf("ParseHunks() error = %v", err)
		}
		if !hunks[0].OldNoEOL || !hunks[0].NewNoEOL {
			t.Errorf("OldNoEOL/NewNoEOL = %v/%v, want true/true", hunks[0].OldNoEOL, hunks[0].NewNoEOL)
		}
	})

	t.Run("unknown_line_is_context", func(t *testing.T) {
		hunks, err := ParseHunks("@@ -1,2 +1,2 @@\nweird line\n-a\n+b")
		if err != nil {
			t.Fatalf("ParseHunks() error = %v", err)
		}
		first := hunks[0].Lines[0]
		if first.Type != LineContext || first.Content != "weird line" {
			t.Errorf("Lines[0] = %+v, want context %q", first, "weird line")
		}
	})

	t.Run("empty_line_is_blank_context", func(t *testing.T) {
		hunks, err := ParseHunks("@@ -1,3 +1,3 @@\n a\n\n-b\n+c")
		if err != nil {
			t.Fatalf("ParseHunks() error = %v", err)
		}
		blank := hunks[0].Lines[1]
		if blank.Type != LineContext || blank.Content != "" {
			t.Errorf("Lines[1] = %+v, want blank context", blank)
		}
	})

	t.Run("file_header_closes_hunk", func(t *testing.T) {
		text := "@@ -1 +1 @@\n-a\n+b\n--- a/other\n+++ b/other\n@@ -1 +1 @@\n-c\n+d"
		hunks, err := ParseHunks(text)
		if err != nil {
			t.Fatalf("ParseHunks() error = %v", err)
		}
		if len(hunks) != 2 {
			t.Fatalf("len(hunks) = %d, want 2", len(hunks))
		}
		if len(hunks[0].Lines) != 2 {
			t.Errorf("first hunk has %d lines, want 2", len(hunks[0].Lines))
		}
	})

	t.Run("header_lookalikes_inside_counted_hunk", func(t *testing.T) {
		hunks, err := ParseHunks("@@ -1,3 +1,3 @@\n a\n--- old comment\n+++ counter\n b\n")
		if err != nil {
			t.Fatalf("ParseHunks() error = %v", err)
		}
		if len(hunks) != 1 {
			t.Fatalf("len(hunks) = %d, want 1", len(hunks))
		}
		want := []DiffLine{
			{Type: LineContext, Content: "a"},
			{Type: LineRemoved, Content: "-- old comment"},
			{Type: LineAdded, Content: "++ counter"},
			{Type: LineContext, Content: "b"},
		}
		if !reflect.DeepEqual(hunks[0].Lines, want) {
			t.Errorf("Lines = %+v, want %+v", hunks[0].Lines, want)
		}
	})

	t.Run("removed_sql_comment_is_content", func(t *testing.T) {
		hunks, err := ParseHunks("@@ -1,2 +1,1 @@\n--- comment\n keep")
		if err != nil {
			t.Fatalf("ParseHunks() error = %v", err)
		}
		if hunks[0].Lines[0].Type != LineRemoved || hunks[0].Lines[0].Content != "-- comment" {
			t.Errorf("Lines[0] = %+v", hunks[0].Lines[0])
		}
	})
}

func TestParseHunks_Errors(t *testing.T) {
	t.Run("empty_input_is_not_an_error", func(t *testing.T) {
		hunks, err := ParseHunks("  \n")
		if err != nil || hunks != nil {
			t.Errorf("ParseHunks() = %v, %v; want nil, nil", hunks, err)
		}
	})

	t.Run("no_hunks", func(t *testing.T) {
		_, err := ParseHunks("--- a/x\n+++ b/x\nnot a hunk")
		if !errors.Is(err, ErrNoHunks) {
			t.Errorf("error = %v, want ErrNoHunks", err)
		}
	})
}

func TestHasHunks(t *testing.T) {
	if !HasHunks("diff --git a/x b/x\n@@ -1 +1 @@\n-a\n+b") {
		t.Error("HasHunks() = false, want true")
	}
	if HasHunks("diff --git a/x b/y\nrename from x\nrename to y") {
		t.Error("HasHunks() = true for rename-only block")
	}
}
