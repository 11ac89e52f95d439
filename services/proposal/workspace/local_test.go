// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalFS(t *testing.T) (*LocalFS, string) {
	t.Helper()
	root := t.TempDir()
	fs, err := NewLocalFS(root, DefaultLocalOptions())
	require.NoError(t, err)
	return fs, root
}

func TestNewLocalFS_Validation(t *testing.T) {
	t.Run("relative_root", func(t *testing.T) {
		_, err := NewLocalFS("relative/dir", DefaultLocalOptions())
		assert.Error(t, err)
	})

	t.Run("missing_root", func(t *testing.T) {
		_, err := NewLocalFS(filepath.Join(t.TempDir(), "nope"), DefaultLocalOptions())
		assert.Error(t, err)
	})

	t.Run("file_root", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "f")
		require.NoError(t, os.WriteFile(file, nil, 0644))
		_, err := NewLocalFS(file, DefaultLocalOptions())
		assert.Error(t, err)
	})
}

func TestLocalFS_WriteRead(t *testing.T) {
	ctx := context.Background()
	fs, root := newTestLocalFS(t)

	require.NoError(t, fs.WriteFile(ctx, "deep/nested/a.go", "package a\n"))

	data, err := os.ReadFile(filepath.Join(root, "deep", "nested", "a.go"))
	require.NoError(t, err)
	assert.Equal(t, "package a\n", string(data))

	got, err := fs.ReadFile(ctx, "deep/nested/a.go")
	require.NoError(t, err)
	assert.Equal(t, "package a\n", got)

	entries, err := os.ReadDir(filepath.Join(root, "deep", "nested"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestLocalFS_WriteKeepsMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	ctx := context.Background()
	fs, root := newTestLocalFS(t)

	script := filepath.Join(root, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0600))
	require.NoError(t, os.Chmod(script, 0755))

	t.Run("existing file keeps its mode", func(t *testing.T) {
		require.NoError(t, fs.WriteFile(ctx, "run.sh", "#!/bin/sh\necho hi\n"))

		info, err := os.Stat(script)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	})

	t.Run("new file gets the default mode", func(t *testing.T) {
		require.NoError(t, fs.WriteFile(ctx, "new.txt", "x"))

		info, err := os.Stat(filepath.Join(root, "new.txt"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
	})
}

func TestLocalFS_ReadMissing(t *testing.T) {
	fs, _ := newTestLocalFS(t)
	_, err := fs.ReadFile(context.Background(), "missing.txt")
	assert.True(t, errors.Is(err, ErrNotExist))
}

func TestLocalFS_Delete(t *testing.T) {
	ctx := context.Background()
	fs, root := newTestLocalFS(t)

	require.NoError(t, fs.WriteFile(ctx, "a.txt", "x"))
	require.NoError(t, fs.DeleteFile(ctx, "a.txt"))
	_, err := os.Stat(filepath.Join(root, "a.txt"))
	assert.True(t, os.IsNotExist(err))

	t.Run("missing_is_ok", func(t *testing.T) {
		assert.NoError(t, fs.DeleteFile(ctx, "a.txt"))
	})

	t.Run("refuses_root", func(t *testing.T) {
		assert.ErrorIs(t, fs.DeleteFile(ctx, "."), ErrDeleteRoot)
		assert.ErrorIs(t, fs.DeleteFile(ctx, "./"), ErrDeleteRoot)
	})

	t.Run("directory", func(t *testing.T) {
		require.NoError(t, fs.WriteFile(ctx, "dir/x.txt", "x"))
		require.NoError(t, fs.DeleteFile(ctx, "dir"))
		_, err := os.Stat(filepath.Join(root, "dir"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestLocalFS_Rename(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestLocalFS(t)

	require.NoError(t, fs.WriteFile(ctx, "old.txt", "content"))
	require.NoError(t, fs.RenamePath(ctx, "old.txt", "moved/new.txt"))

	_, err := fs.ReadFile(ctx, "old.txt")
	assert.ErrorIs(t, err, ErrNotExist)
	got, err := fs.ReadFile(ctx, "moved/new.txt")
	require.NoError(t, err)
	assert.Equal(t, "content", got)

	err = fs.RenamePath(ctx, "ghost.txt", "x.txt")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLocalFS_RejectsUnsafePaths(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestLocalFS(t)

	bad := []string{"", "/etc/passwd", "../escape.txt", "a/../../b", `C:\win.txt`}
	for _, p := range bad {
		t.Run(p, func(t *testing.T) {
			err := fs.WriteFile(ctx, p, "x")
			assert.Error(t, err)
			assert.True(t, errors.Is(err, ErrPathNotAllowed) || errors.Is(err, ErrPathRequired), "err = %v", err)
		})
	}
}

func TestValidateRelative(t *testing.T) {
	got, err := ValidateRelative(`./src\a.go`)
	require.NoError(t, err)
	assert.Equal(t, "src/a.go", got)

	_, err = ValidateRelative("  ")
	assert.ErrorIs(t, err, ErrPathRequired)
}
