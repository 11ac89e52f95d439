// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package changeset

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianProposals/services/proposal/diff"
	"github.com/AleutianAI/AleutianProposals/services/proposal/edit"
	"github.com/AleutianAI/AleutianProposals/services/proposal/workspace"
)

type fakeChecker struct{}

func (fakeChecker) Check(path, content string) []string {
	if strings.HasSuffix(path, ".go") && strings.Contains(content, "{{") {
		return []string{"1:1: syntax error"}
	}
	return nil
}

func TestBuilder_Build(t *testing.T) {
	ctx := context.Background()
	ws := workspace.NewMemory(map[string]string{
		"a.go":    "a\nb\nc",
		"old.txt": "old",
		"r.txt":   "r",
	})
	b := NewBuilder(ws, BuilderConfig{})

	cs, err := b.Build(ctx, []edit.Operation{
		edit.Patch("a.go", "@@ -2,1 +2,1 @@\n-b\n+B\n"),
		edit.Write("new.go", "x"),
		edit.Delete("old.txt"),
		edit.Rename("r.txt", "s.txt"),
		edit.Run("go test ./..."),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, cs.ID)
	assert.False(t, cs.CreatedAt.IsZero())
	assert.Equal(t, StatusProposed, cs.Status)
	assert.False(t, cs.Applied)
	assert.Len(t, cs.Edits, 5)
	assert.Equal(t, []string{"go test ./..."}, cs.Commands())
	require.Len(t, cs.Files, 4)

	t.Run("patch becomes write", func(t *testing.T) {
		f := cs.Files[0]
		assert.Equal(t, FileWrite, f.Kind)
		assert.Equal(t, "a.go", f.Path)
		assert.Equal(t, "a\nb\nc", *f.Before)
		assert.Equal(t, "a\nB\nc", *f.After)
		assert.Equal(t, 1, f.Added)
		assert.Equal(t, 1, f.Removed)
	})

	t.Run("new file has no before", func(t *testing.T) {
		f := cs.Files[1]
		assert.Nil(t, f.Before)
		assert.True(t, f.IsNew())
		assert.Equal(t, "x", *f.After)
	})

	t.Run("delete keeps before", func(t *testing.T) {
		f := cs.Files[2]
		assert.Equal(t, FileDelete, f.Kind)
		assert.Equal(t, "old", *f.Before)
		assert.Nil(t, f.After)
	})

	t.Run("rename carries content", func(t *testing.T) {
		f := cs.Files[3]
		assert.Equal(t, FileRename, f.Kind)
		assert.Equal(t, "r.txt → s.txt", f.Path)
		assert.Equal(t, "r", *f.Before)
		assert.Equal(t, "r", *f.After)
		assert.Equal(t, 0, f.Added)
		assert.Equal(t, 0, f.Removed)
	})

	t.Run("stats derived from files", func(t *testing.T) {
		assert.Equal(t, ComputeStats(cs.Files), cs.Stats)
		assert.Equal(t, 4, cs.Stats.FilesChanged)
	})
}

func TestBuilder_PatchChain(t *testing.T) {
	ws := workspace.NewMemory(map[string]string{"a.go": "a\nb\nc"})
	b := NewBuilder(ws, BuilderConfig{})

	cs, err := b.Build(context.Background(), []edit.Operation{
		edit.Patch("a.go", "@@ -2,1 +2,1 @@\n-b\n+B\n"),
		edit.Patch("a.go", "@@ -3,1 +3,1 @@\n-c\n+C\n"),
	})
	require.NoError(t, err)
	require.Len(t, cs.Files, 1)
	assert.Equal(t, "a\nb\nc", *cs.Files[0].Before)
	assert.Equal(t, "a\nB\nC", *cs.Files[0].After)
}

func TestBuilder_DedupeLastWinsAtLastPosition(t *testing.T) {
	ws := workspace.NewMemory(map[string]string{"a.go": "0"})
	b := NewBuilder(ws, BuilderConfig{})

	cs, err := b.Build(context.Background(), []edit.Operation{
		edit.Write("a.go", "1"),
		edit.Write("b.go", "2"),
		edit.Write("a.go", "3"),
	})
	require.NoError(t, err)
	require.Len(t, cs.Files, 2)
	assert.Equal(t, "b.go", cs.Files[0].Path)
	assert.Equal(t, "a.go", cs.Files[1].Path)
	assert.Equal(t, "0", *cs.Files[1].Before)
	assert.Equal(t, "3", *cs.Files[1].After)
}

func TestBuilder_InterleavedKindsOnOnePath(t *testing.T) {
	ws := workspace.NewMemory(map[string]string{"a.txt": "orig"})
	b := NewBuilder(ws, BuilderConfig{})

	cs, err := b.Build(context.Background(), []edit.Operation{
		edit.Write("a.txt", "one"),
		edit.Delete("a.txt"),
		edit.Write("a.txt", "two"),
	})
	require.NoError(t, err)
	require.Len(t, cs.Files, 2)

	del, write := cs.Files[0], cs.Files[1]
	assert.Equal(t, FileDelete, del.Kind)
	require.NotNil(t, del.Before)
	assert.Equal(t, "orig", *del.Before)

	assert.Equal(t, FileWrite, write.Kind)
	assert.Nil(t, write.Before, "the write follows the delete")
	assert.Equal(t, "two", *write.After)
}

func TestBuilder_PrefersOpenBuffer(t *testing.T) {
	ws := workspace.NewMemory(map[string]string{"a.go": "disk"})
	b := NewBuilder(ws, BuilderConfig{
		Buffers: workspace.Buffers{"a.go": "buffer"},
	})

	cs, err := b.Build(context.Background(), []edit.Operation{edit.Write("a.go", "new")})
	require.NoError(t, err)
	assert.Equal(t, "buffer", *cs.Files[0].Before)
}

func TestBuilder_SyntaxWarnings(t *testing.T) {
	b := NewBuilder(workspace.NewMemory(nil), BuilderConfig{Syntax: fakeChecker{}})

	cs, err := b.Build(context.Background(), []edit.Operation{
		edit.Write("bad.go", "package x {{"),
		edit.Write("ok.go", "package x"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1:1: syntax error"}, cs.Files[0].Warnings)
	assert.Empty(t, cs.Files[1].Warnings)
}

func TestBuilder_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("patch mismatch aborts build", func(t *testing.T) {
		ws := workspace.NewMemory(map[string]string{"a.go": "a\nb"})
		b := NewBuilder(ws, BuilderConfig{})

		cs, err := b.Build(ctx, []edit.Operation{
			edit.Write("other.go", "x"),
			edit.Patch("a.go", "@@ -1,1 +1,1 @@\n-zzz\n+y\n"),
		})
		require.Error(t, err)
		assert.Nil(t, cs)

		var perr *diff.PatchError
		assert.True(t, errors.As(err, &perr))
		assert.Contains(t, err.Error(), "a.go")
	})

	t.Run("no changes", func(t *testing.T) {
		b := NewBuilder(workspace.NewMemory(nil), BuilderConfig{})
		_, err := b.Build(ctx, nil)
		assert.ErrorIs(t, err, ErrNoChanges)
	})

	t.Run("run only is allowed", func(t *testing.T) {
		b := NewBuilder(workspace.NewMemory(nil), BuilderConfig{})
		cs, err := b.Build(ctx, []edit.Operation{edit.Run("make")})
		require.NoError(t, err)
		assert.Empty(t, cs.Files)
		assert.Equal(t, []string{"make"}, cs.Commands())
	})

	t.Run("read failure", func(t *testing.T) {
		boom := errors.New("disk on fire")
		ws := workspace.NewMemory(map[string]string{"a.go": "a"})
		ws.FailOn("read", "a.go", boom)
		b := NewBuilder(ws, BuilderConfig{ReadConcurrency: 1})

		_, err := b.Build(ctx, []edit.Operation{edit.Write("a.go", "b")})
		assert.ErrorIs(t, err, boom)
	})
}

func TestChangeSet_RenderDiff(t *testing.T) {
	ws := workspace.NewMemory(map[string]string{"a.go": "a\nb\n", "old.txt": "old\n"})
	b := NewBuilder(ws, BuilderConfig{})

	cs, err := b.Build(context.Background(), []edit.Operation{
		edit.Write("a.go", "a\nB\n"),
		edit.Delete("old.txt"),
		edit.Write("new.txt", "n\n"),
	})
	require.NoError(t, err)

	out, err := cs.RenderDiff(diff.DefaultContextLines)
	require.NoError(t, err)
	for _, want := range []string{
		"--- a/a.go", "+++ b/a.go", "-b", "+B",
		"deleted file mode", "--- a/old.txt",
		"new file mode", "+++ b/new.txt",
	} {
		assert.Contains(t, out, want)
	}

	stats, err := diff.ValidateUnified(out)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)
}

func TestChangeSet_CloneIsDeep(t *testing.T) {
	content := "x"
	cs := &ChangeSet{
		Edits: []edit.Operation{edit.Write("a", "x")},
		Files: []ChangeFile{{Kind: FileWrite, Path: "a", After: &content, Warnings: []string{"w"}}},
	}

	cp := cs.Clone()
	*cp.Files[0].After = "changed"
	cp.Files[0].Warnings[0] = "changed"
	cp.Edits[0].Content = "changed"

	assert.Equal(t, "x", *cs.Files[0].After)
	assert.Equal(t, "w", cs.Files[0].Warnings[0])
	assert.Equal(t, "x", cs.Edits[0].Content)
	assert.Nil(t, (*ChangeSet)(nil).Clone())
}
