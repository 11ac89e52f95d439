// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianProposals/services/proposal/changeset"
	"github.com/AleutianAI/AleutianProposals/services/proposal/diff"
	"github.com/AleutianAI/AleutianProposals/services/proposal/edit"
	"github.com/AleutianAI/AleutianProposals/services/proposal/workspace"
)

func newTestReview(t *testing.T, files map[string]string, edits ...edit.Operation) (ReviewModel, *workspace.Memory) {
	t.Helper()
	ctx := context.Background()

	ws := workspace.NewMemory(files)
	cs, err := changeset.NewBuilder(ws, changeset.BuilderConfig{}).Build(ctx, edits)
	require.NoError(t, err)

	ctrl := changeset.NewController(ws, changeset.DefaultControllerConfig())
	_, err = ctrl.Propose(ctx, cs)
	require.NoError(t, err)

	m := NewReviewModel(ctx, ctrl, DefaultReviewConfig())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(ReviewModel), ws
}

func press(t *testing.T, m ReviewModel, key string) (ReviewModel, tea.Cmd) {
	t.Helper()

	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "backspace":
		msg = tea.KeyMsg{Type: tea.KeyBackspace}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}

	next, cmd := m.Update(msg)
	return next.(ReviewModel), cmd
}

// perform presses key and feeds the resulting controller call back into the
// model.
func perform(t *testing.T, m ReviewModel, key string) (ReviewModel, tea.Cmd) {
	t.Helper()

	m, cmd := press(t, m, key)
	require.NotNil(t, cmd, "key %q should trigger a controller call", key)

	msg := cmd()
	_, ok := msg.(actionMsg)
	require.True(t, ok, "expected actionMsg, got %T", msg)

	next, cmd := m.Update(msg)
	return next.(ReviewModel), cmd
}

func twoFiles() (map[string]string, []edit.Operation) {
	files := map[string]string{"a.go": "a\n", "b.go": "b\n"}
	edits := []edit.Operation{
		edit.Write("a.go", "A\n"),
		edit.Write("b.go", "B\n"),
	}
	return files, edits
}

func TestNewReviewModel(t *testing.T) {
	files, edits := twoFiles()
	m, _ := newTestReview(t, files, edits...)

	require.NotNil(t, m.cs)
	assert.Len(t, m.cs.Files, 2)
	assert.Equal(t, 0, m.currentFile)
	assert.Equal(t, ViewFile, m.viewMode)
	assert.True(t, m.ready)

	view := m.View()
	assert.Contains(t, view, "Proposed Changes (2 files)")
	assert.Contains(t, view, "a.go")
	assert.Contains(t, view, "[1/2]")
}

func TestReviewModel_AcceptFile(t *testing.T) {
	files, edits := twoFiles()
	m, ws := newTestReview(t, files, edits...)

	m, cmd := perform(t, m, "y")
	assert.Nil(t, cmd)
	assert.NoError(t, m.Err())

	assert.Equal(t, "A\n", ws.Files()["a.go"])
	assert.Equal(t, "b\n", ws.Files()["b.go"])

	require.NotNil(t, m.cs)
	require.Len(t, m.cs.Files, 1)
	assert.Equal(t, "b.go", m.cs.Files[0].Path)
	assert.Equal(t, "accepted a.go", m.status)

	require.Len(t, m.Outcomes(), 1)
	assert.Equal(t, changeset.OutcomeFileAccepted, m.Outcomes()[0].Outcome)
}

func TestReviewModel_LastFileFinishes(t *testing.T) {
	files, edits := twoFiles()
	m, ws := newTestReview(t, files, edits...)

	m, _ = perform(t, m, "y")
	m, cmd := perform(t, m, "n")

	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Nil(t, m.cs)
	assert.Equal(t, "Review finished.\n", m.View())

	assert.Equal(t, "A\n", ws.Files()["a.go"])
	assert.Equal(t, "b\n", ws.Files()["b.go"])

	outcomes := m.Outcomes()
	require.Len(t, outcomes, 2)
	assert.Equal(t, changeset.OutcomeFileAccepted, outcomes[0].Outcome)
	assert.Equal(t, changeset.OutcomeFileRejected, outcomes[1].Outcome)
}

func TestReviewModel_AcceptAllConfirmation(t *testing.T) {
	t.Run("confirmed with yes", func(t *testing.T) {
		m, ws := newTestReview(t, nil, edit.Write("new.go", "package main\n"))

		m, cmd := perform(t, m, "a")
		assert.Nil(t, cmd)
		require.True(t, m.showConfirm)
		assert.Len(t, m.confirmReasons, 1)
		assert.Contains(t, m.View(), "Confirm Accept All")
		assert.NotContains(t, ws.Files(), "new.go")

		for _, k := range []string{"y", "e", "s"} {
			m, _ = press(t, m, k)
		}
		assert.Equal(t, "yes", m.confirm.Value())

		m, _ = perform(t, m, "enter")
		assert.False(t, m.showConfirm)
		assert.Equal(t, "package main\n", ws.Files()["new.go"])
		require.NotNil(t, m.cs)
		assert.Equal(t, changeset.StatusApplied, m.cs.Status)

		// Accepting an applied set retires it and ends the review.
		m, cmd = perform(t, m, "a")
		assert.True(t, m.quitting)
		assert.NotNil(t, cmd)
	})

	t.Run("wrong answer cancels", func(t *testing.T) {
		m, ws := newTestReview(t, nil, edit.Write("new.go", "x"))

		m, _ = perform(t, m, "a")
		m, _ = press(t, m, "n")
		m, cmd := press(t, m, "enter")
		assert.Nil(t, cmd)
		assert.False(t, m.showConfirm)
		assert.NotContains(t, ws.Files(), "new.go")
	})

	t.Run("esc cancels", func(t *testing.T) {
		m, _ := newTestReview(t, nil, edit.Write("new.go", "x"))

		m, _ = perform(t, m, "a")
		m, _ = press(t, m, "y")
		m, _ = press(t, m, "backspace")
		m, cmd := press(t, m, "esc")
		assert.Nil(t, cmd)
		assert.False(t, m.showConfirm)
		assert.Empty(t, m.confirm.Value())
	})
}

func TestReviewModel_RevertAll(t *testing.T) {
	files, edits := twoFiles()
	m, ws := newTestReview(t, files, edits...)

	m, _ = perform(t, m, "a")
	require.NotNil(t, m.cs)
	assert.Equal(t, changeset.StatusApplied, m.cs.Status)
	assert.Equal(t, "A\n", ws.Files()["a.go"])

	m, cmd := perform(t, m, "r")
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Equal(t, files, ws.Files())

	outcomes := m.Outcomes()
	require.Len(t, outcomes, 2)
	assert.Equal(t, changeset.OutcomeApplied, outcomes[0].Outcome)
	assert.Equal(t, changeset.OutcomeReverted, outcomes[1].Outcome)
}

func TestReviewModel_AcceptedFileIsFinal(t *testing.T) {
	files, edits := twoFiles()
	m, ws := newTestReview(t, files, edits...)

	m, _ = perform(t, m, "y")
	assert.Equal(t, changeset.StatusPartial, m.cs.Status)

	// Reverting discards the rest; the accepted file stays written.
	m, _ = perform(t, m, "r")
	assert.True(t, m.quitting)
	assert.Equal(t, "A\n", ws.Files()["a.go"])
	assert.Equal(t, "b\n", ws.Files()["b.go"])
	assert.Equal(t, changeset.OutcomeDiscarded, m.Outcomes()[1].Outcome)
}

func TestReviewModel_WriteFailure(t *testing.T) {
	files, edits := twoFiles()
	m, ws := newTestReview(t, files, edits...)
	ws.FailOn("write", "a.go", assert.AnError)

	m, cmd := perform(t, m, "y")
	assert.Nil(t, cmd)
	assert.False(t, m.quitting)
	require.Error(t, m.Err())
	assert.Contains(t, m.View(), "✗")

	require.NotNil(t, m.cs)
	assert.Len(t, m.cs.Files, 2)
	assert.Empty(t, m.Outcomes())
}

func TestReviewModel_Navigation(t *testing.T) {
	files, edits := twoFiles()
	m, _ := newTestReview(t, files, edits...)

	m, _ = press(t, m, "left")
	assert.Equal(t, 0, m.currentFile)

	m, _ = press(t, m, "right")
	assert.Equal(t, 1, m.currentFile)
	assert.Contains(t, m.View(), "[2/2]")

	m, _ = press(t, m, "right")
	assert.Equal(t, 1, m.currentFile)

	m, _ = press(t, m, "tab")
	assert.Equal(t, ViewSummary, m.viewMode)
	assert.Contains(t, m.View(), "Review Summary")
	assert.Contains(t, m.View(), "Pending (2 files)")

	m, _ = press(t, m, "tab")
	assert.Equal(t, ViewFile, m.viewMode)
}

func TestReviewModel_HelpAndQuit(t *testing.T) {
	files, edits := twoFiles()
	m, ws := newTestReview(t, files, edits...)

	m, _ = press(t, m, "?")
	assert.True(t, m.showHelp)
	view := m.View()
	assert.Contains(t, view, "Keyboard Shortcuts")
	assert.Contains(t, view, "half page down")

	// Action keys are ignored while help is open.
	m, cmd := press(t, m, "y")
	assert.Nil(t, cmd)
	assert.True(t, m.showHelp)

	m, _ = press(t, m, "?")
	assert.False(t, m.showHelp)
	assert.Contains(t, m.View(), "accept file")

	m, cmd = press(t, m, "q")
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Equal(t, files, ws.Files())
}

func TestReviewModel_RenderCollapsesUnchanged(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	before := strings.Join(lines, "\n") + "\n"
	lines[15] = "changed"
	after := strings.Join(lines, "\n") + "\n"

	m, _ := newTestReview(t, map[string]string{"big.go": before}, edit.Write("big.go", after))

	out := m.renderFileDiff()
	assert.Contains(t, out, "-line 15")
	assert.Contains(t, out, "+changed")
	assert.Contains(t, out, "12 unchanged lines")
	assert.Contains(t, out, "11 unchanged lines")
}

func TestReviewModel_RenderKinds(t *testing.T) {
	files := map[string]string{"old.go": "x\n", "gone.go": "y\n"}
	m, _ := newTestReview(t, files,
		edit.Rename("old.go", "new.go"),
		edit.Delete("gone.go"),
	)

	require.Len(t, m.cs.Files, 2)
	out := m.renderFileDiff()
	assert.Contains(t, out, "rename old.go → new.go")

	m, _ = press(t, m, "right")
	out = m.renderFileDiff()
	assert.Contains(t, out, "file deleted")
	assert.Contains(t, out, "-y")
}

func TestVisibleLines(t *testing.T) {
	script := diff.Text("a\nb\nc\nd\ne\n", "a\nb\nX\nd\ne\n")
	keep := visibleLines(script, 1)

	var shown []string
	for i, line := range script {
		if keep[i] {
			shown = append(shown, line.String())
		}
	}
	assert.Equal(t, []string{" b", "-c", "+X", " d"}, shown)
}
