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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Contract(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(map[string]string{"a.txt": "a"})

	got, err := m.ReadFile(ctx, "./a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	_, err = m.ReadFile(ctx, "b.txt")
	assert.ErrorIs(t, err, ErrNotExist)

	require.NoError(t, m.WriteFile(ctx, "dir/b.txt", "b"))
	require.NoError(t, m.RenamePath(ctx, "a.txt", "c.txt"))
	require.NoError(t, m.DeleteFile(ctx, "dir/b.txt"))
	require.NoError(t, m.DeleteFile(ctx, "dir/b.txt"), "delete is idempotent")

	assert.Equal(t, map[string]string{"c.txt": "a"}, m.Files())
	assert.Equal(t, []string{"c.txt"}, m.Paths())

	assert.ErrorIs(t, m.DeleteFile(ctx, "."), ErrDeleteRoot)
	assert.ErrorIs(t, m.WriteFile(ctx, "../x", ""), ErrPathNotAllowed)
}

func TestMemory_FailOn(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	boom := errors.New("disk full")

	m.FailOn("write", "a.txt", boom)
	assert.ErrorIs(t, m.WriteFile(ctx, "a.txt", "x"), boom)
	assert.NoError(t, m.WriteFile(ctx, "b.txt", "x"))

	m.FailOn("write", "a.txt", nil)
	assert.NoError(t, m.WriteFile(ctx, "a.txt", "x"))
}

func TestBuffers(t *testing.T) {
	var p BufferProvider = Buffers{"a.go": "unsaved"}
	got, ok := p.OpenBuffer("a.go")
	assert.True(t, ok)
	assert.Equal(t, "unsaved", got)

	_, ok = p.OpenBuffer("b.go")
	assert.False(t, ok)
}
