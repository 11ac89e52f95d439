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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		root        string
		want        string
		wantChanged bool
	}{
		{"traversal_reduced_to_basename", "../../etc/passwd", "", "passwd", true},
		{"absolute_under_root", "/abs/root/src/a.ts", "/abs/root", "src/a.ts", true},
		{"dot_slash_stripped", "./a/b.ts", "", "a/b.ts", true},
		{"repeated_dot_slash", "././a.go", "", "a.go", true},
		{"clean_path_unchanged", "src/main.go", "/abs/root", "src/main.go", false},
		{"backslashes", `src\pkg\a.go`, "", "src/pkg/a.go", true},
		{"windows_root", `C:\proj\src\a.go`, `C:\proj`, "src/a.go", true},
		{"windows_outside_root", `D:\other\a.go`, `C:\proj`, "a.go", true},
		{"absolute_outside_root", "/etc/hosts", "/abs/root", "hosts", true},
		{"inner_traversal", "src/../../x.go", "", "x.go", true},
		{"root_itself", "/abs/root", "/abs/root", "", true},
		{"bare_parent", "..", "", "", true},
		{"root_with_trailing_slash", "/abs/root/a.go", "/abs/root/", "a.go", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := SanitizePath(tt.path, tt.root)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("sanitizes_every_path_field", func(t *testing.T) {
		res := Normalize([]Operation{
			Write("/ws/a.go", "x"),
			Rename("./old.go", "../new.go"),
			Run("go test ./..."),
		}, "/ws")

		require.Len(t, res.Edits, 3)
		assert.True(t, res.DidSanitize)
		assert.Equal(t, "a.go", res.Edits[0].Path)
		assert.Equal(t, "old.go", res.Edits[1].From)
		assert.Equal(t, "new.go", res.Edits[1].To)
		assert.Equal(t, "go test ./...", res.Edits[2].Command)
	})

	t.Run("clean_input_not_flagged", func(t *testing.T) {
		res := Normalize([]Operation{Write("a.go", "x"), Delete("b.go")}, "/ws")
		assert.False(t, res.DidSanitize)
		assert.Len(t, res.Edits, 2)
	})

	t.Run("empty_path_dropped_and_flagged", func(t *testing.T) {
		res := Normalize([]Operation{Write("..", "x"), Write("ok.go", "y")}, "")
		require.Len(t, res.Edits, 1)
		assert.Equal(t, "ok.go", res.Edits[0].Path)
		assert.True(t, res.DidSanitize)
	})

	t.Run("pathless_git_patch_is_split", func(t *testing.T) {
		res := Normalize([]Operation{{Kind: KindPatch, Diff: twoFileDiff}}, "")
		require.Len(t, res.Edits, 2)
		assert.Equal(t, KindPatch, res.Edits[0].Kind)
		assert.Equal(t, "src/a.go", res.Edits[0].Path)
		assert.Equal(t, KindDelete, res.Edits[1].Kind)
		assert.Equal(t, "src/b.go", res.Edits[1].Path)
	})

	t.Run("multi_block_patch_with_path_is_split", func(t *testing.T) {
		res := Normalize([]Operation{Patch("whatever.go", twoFileDiff)}, "")
		require.Len(t, res.Edits, 2)
		assert.Equal(t, "src/a.go", res.Edits[0].Path)
	})

	t.Run("single_block_patch_with_path_kept", func(t *testing.T) {
		single := "diff --git a/x.go b/x.go\n@@ -1 +1 @@\n-a\n+b\n"
		res := Normalize([]Operation{Patch("x.go", single)}, "")
		require.Len(t, res.Edits, 1)
		assert.Equal(t, single, res.Edits[0].Diff)
	})
}
