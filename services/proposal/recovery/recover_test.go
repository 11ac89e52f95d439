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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianProposals/services/proposal/edit"
)

func TestRecover_DirectObject(t *testing.T) {
	raw := `{"assistant_message":"done","edits":[{"op":"write","path":"a.go","content":"x"}],"think":"easy","plan":["- read","- write"],"verify":"go test","done":true}`

	res := Recover(raw)
	require.NotNil(t, res)
	assert.Equal(t, []edit.Operation{edit.Write("a.go", "x")}, res.Edits)
	assert.Equal(t, "done", res.Message)
	assert.Equal(t, "easy", res.Think)
	assert.Equal(t, []string{"read", "write"}, res.Plan)
	assert.Equal(t, []string{"go test"}, res.Verify)
	assert.True(t, res.Done)
	assert.False(t, res.Partial)
}

func TestRecover_CodeFence(t *testing.T) {
	raw := "```json\n{\"summary\":\"s\",\"edits\":[{\"op\":\"delete\",\"path\":\"x\"}]}\n```"

	res := Recover(raw)
	require.NotNil(t, res)
	assert.Equal(t, "s", res.Message, "summary is the fallback message")
	assert.Equal(t, []edit.Operation{edit.Delete("x")}, res.Edits)
}

func TestRecover_EmbeddedInProse(t *testing.T) {
	raw := `Sure! Here is the change: {"assistant_message":"ok {not a brace}","edits":[{"op":"rename","from":"a","to":"b"}]} Let me know.`

	res := Recover(raw)
	require.NotNil(t, res)
	assert.Equal(t, "ok {not a brace}", res.Message)
	assert.Equal(t, []edit.Operation{edit.Rename("a", "b")}, res.Edits)
}

func TestRecover_TruncatedOutput(t *testing.T) {
	raw := `{"edits": [{"op":"write","path":"x.ts","content":"hi"}`

	res := Recover(raw)
	require.NotNil(t, res)
	assert.Equal(t, []edit.Operation{edit.Write("x.ts", "hi")}, res.Edits)
	assert.Equal(t, PartialMessage, res.Message)
	assert.True(t, res.Partial)
}

func TestRecover_TruncatedMidSecondEdit(t *testing.T) {
	raw := `{"assistant_message":"working","edits":[{"op":"write","path":"a","content":"}{"},{"op":"write","path":"b","cont`

	res := Recover(raw)
	require.NotNil(t, res)
	require.Len(t, res.Edits, 1)
	assert.Equal(t, "}{", res.Edits[0].Content)
}

func TestRecover_ClosedArrayInBrokenObject(t *testing.T) {
	raw := `{"edits":[{"op":"run","cmd":"make"}], "assistant_message": "unterminated`

	res := Recover(raw)
	require.NotNil(t, res)
	assert.Equal(t, []edit.Operation{edit.Run("make")}, res.Edits)
	assert.True(t, res.Partial)
}

func TestRecover_Nothing(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"plain_text", "I could not find the file."},
		{"empty_edits", `{"assistant_message":"nothing to do","edits":[]}`},
		{"edits_not_objects", `{"edits":[1,2,3]}`},
		{"missing_op", `{"edits":[{"path":"a"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Recover(tt.raw))
		})
	}
}

func TestRecover_SkipsUndecodableEdits(t *testing.T) {
	raw := `{"edits":[{"op":"write","path":5},{"op":"delete","path":"ok"}]}`

	res := Recover(raw)
	require.NotNil(t, res)
	assert.Equal(t, []edit.Operation{edit.Delete("ok")}, res.Edits)
}

func TestParseSteps(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"string_list", `["a","b"]`, []string{"a", "b"}},
		{"newline_string", `"1. first\n2) second\n\n* third\n• fourth"`, []string{"first", "second", "third", "fourth"}},
		{"blank", `"  \n "`, nil},
		{"wrong_type", `42`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSteps([]byte(tt.raw)))
		})
	}
}
