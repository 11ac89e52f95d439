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
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Operation
	}{
		{"write", `{"op":"write","path":"a.go","content":"x"}`, Write("a.go", "x")},
		{"patch_alias", `{"op":"patch","path":"a.go","patch":"@@"}`, Patch("a.go", "@@")},
		{"diffText_alias", `{"op":"patch","path":"a.go","diffText":"@@"}`, Patch("a.go", "@@")},
		{"diff_wins_over_alias", `{"op":"patch","path":"a.go","diff":"d","patch":"p"}`, Patch("a.go", "d")},
		{"cmd_alias", `{"op":"run","cmd":"make"}`, Run("make")},
		{"kind_case_folded", `{"op":" Delete ","path":"a.go"}`, Delete("a.go")},
		{"rename", `{"op":"rename","from":"a","to":"b"}`, Rename("a", "b")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Operation
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOperation_MarshalUsesSchemaNames(t *testing.T) {
	data, err := json.Marshal(Rename("a", "b"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"rename","from":"a","to":"b"}`, string(data))
}

func TestValidate(t *testing.T) {
	valid := []Operation{
		Write("a.go", ""),
		Patch("a.go", "@@ -1 +1 @@"),
		Delete("a.go"),
		Rename("a", "b"),
		Run("make test"),
	}
	for _, op := range valid {
		assert.NoError(t, Validate(op), "op %+v", op)
	}

	invalid := []Operation{
		{Kind: KindWrite},
		{Kind: KindPatch, Path: "a.go"},
		{Kind: KindDelete},
		{Kind: KindRename, From: "a"},
		{Kind: KindRun},
		{Kind: "chmod", Path: "a.go"},
		{},
	}
	for _, op := range invalid {
		err := Validate(op)
		assert.Error(t, err, "op %+v", op)
		assert.True(t, errors.Is(err, ErrInvalidOperation))
	}
}

func TestFilter(t *testing.T) {
	valid, rejected := Filter([]Operation{Write("a.go", "x"), {Kind: KindRename, To: "b"}, Delete("c.go")})
	require.Len(t, valid, 2)
	assert.Equal(t, "a.go", valid[0].Path)
	assert.Equal(t, "c.go", valid[1].Path)
	require.Len(t, rejected, 1)
	assert.Equal(t, KindRename, rejected[0].Op.Kind)
}

func TestOperation_Target(t *testing.T) {
	assert.Equal(t, "b", Rename("a", "b").Target())
	assert.Equal(t, "a.go", Write("a.go", "").Target())
	assert.Empty(t, Run("ls").Target())
	assert.False(t, Run("ls").TouchesFiles())
}
