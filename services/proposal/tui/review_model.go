// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tui is the interactive terminal review of a live ChangeSet.
//
// The review shows one file diff at a time. Each decision is sent to the
// session controller straight away, so the workspace always reflects what
// the user has chosen so far, and the model re-reads the live ChangeSet
// after every transition. Accept-all goes through the same confirmation
// gate as the CLI and HTTP paths.
//
// Models are values owned by the bubbletea event loop and are not safe to
// share between goroutines.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AleutianAI/AleutianProposals/services/proposal/changeset"
	"github.com/AleutianAI/AleutianProposals/services/proposal/diff"
)

// ViewMode selects what the viewport shows.
type ViewMode int

const (
	// ViewFile is the diff of the selected file.
	ViewFile ViewMode = iota

	// ViewSummary lists every remaining file and this session's outcomes.
	ViewSummary
)

// Header and footer rows reserved around the viewport.
const (
	headerRows = 3
	footerRows = 3
)

// confirmWord must be typed to approve a gated accept-all.
const confirmWord = "yes"

// DoneMsg is emitted once the live ChangeSet is gone.
type DoneMsg struct {
	Outcomes []changeset.Result
}

// actionMsg carries a controller call's result back into Update.
type actionMsg struct {
	result changeset.Result
	err    error
}

// Reviewer is the slice of the session controller the review drives.
// *changeset.Controller implements it.
type Reviewer interface {
	Current() *changeset.ChangeSet
	AcceptFile(ctx context.Context, path string) (changeset.Result, error)
	RejectFile(ctx context.Context, path string) (changeset.Result, error)
	AcceptAll(ctx context.Context, confirmed bool) (changeset.Result, error)
	RejectAll(ctx context.Context) (changeset.Result, error)
}

// ReviewConfig tunes diff rendering.
type ReviewConfig struct {
	// ShowLineNumbers prefixes diff lines with old and new numbers.
	ShowLineNumbers bool

	// ContextLines is how many unchanged lines surround each change.
	// Longer unchanged runs collapse to a marker.
	ContextLines int
}

// DefaultReviewConfig numbers lines and keeps the standard diff context.
func DefaultReviewConfig() ReviewConfig {
	return ReviewConfig{
		ShowLineNumbers: true,
		ContextLines:    diff.DefaultContextLines,
	}
}

// ReviewModel is the bubbletea model for reviewing the live ChangeSet.
type ReviewModel struct {
	config   ReviewConfig
	ctx      context.Context
	reviewer Reviewer
	keys     keyMap
	help     help.Model

	// cs is refreshed from the reviewer after every transition.
	cs          *changeset.ChangeSet
	currentFile int
	viewMode    ViewMode

	viewport viewport.Model
	width    int
	height   int
	ready    bool

	showHelp bool

	showConfirm    bool
	confirm        textinput.Model
	confirmReasons []string

	quitting bool
	status   string
	lastErr  error
	outcomes []changeset.Result
}

// NewReviewModel builds a review over reviewer's live ChangeSet. ctx is
// passed to every controller call the review makes.
func NewReviewModel(ctx context.Context, reviewer Reviewer, config ReviewConfig) ReviewModel {
	if config.ContextLines < 0 {
		config.ContextLines = diff.DefaultContextLines
	}

	ti := textinput.New()
	ti.Prompt = "Type '" + confirmWord + "' to confirm: "
	ti.CharLimit = 16

	return ReviewModel{
		config:   config,
		ctx:      ctx,
		reviewer: reviewer,
		keys:     defaultKeyMap(),
		help:     help.New(),
		cs:       reviewer.Current(),
		viewMode: ViewFile,
		confirm:  ti,
	}
}

// Init implements tea.Model.
func (m ReviewModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case actionMsg:
		return m.handleAction(msg)

	case tea.KeyMsg:
		switch {
		case m.showConfirm:
			return m.updateConfirm(msg)
		case m.showHelp:
			if key.Matches(msg, m.keys.Help, m.keys.Quit) {
				m.showHelp = false
			}
			return m, nil
		}
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *ReviewModel) resize(width, height int) {
	m.width, m.height = width, height
	m.help.Width = width
	m.confirm.Width = max(width-len(m.confirm.Prompt)-2, 8)

	rows := max(height-headerRows-footerRows, 1)
	if !m.ready {
		m.viewport = viewport.New(width, rows)
		m.viewport.YPosition = headerRows
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = rows
	}
	m.refresh()
}

// handleKey dispatches a key in normal mode. Unhandled keys fall through
// to the viewport.
func (m ReviewModel) handleKey(msg tea.KeyMsg) (ReviewModel, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Accept):
		return m, m.onSelected(m.reviewer.AcceptFile), true

	case key.Matches(msg, m.keys.Reject):
		return m, m.onSelected(m.reviewer.RejectFile), true

	case key.Matches(msg, m.keys.AcceptAll):
		return m, m.run(func(ctx context.Context) (changeset.Result, error) {
			return m.reviewer.AcceptAll(ctx, false)
		}), true

	case key.Matches(msg, m.keys.RevertAll):
		return m, m.run(m.reviewer.RejectAll), true

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Prev):
		m.moveFile(-1)

	case key.Matches(msg, m.keys.Next):
		m.moveFile(1)

	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)

	case key.Matches(msg, m.keys.HalfDown):
		m.viewport.HalfViewDown()

	case key.Matches(msg, m.keys.HalfUp):
		m.viewport.HalfViewUp()

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()

	case key.Matches(msg, m.keys.Toggle):
		if m.viewMode == ViewFile {
			m.viewMode = ViewSummary
		} else {
			m.viewMode = ViewFile
		}
		m.refresh()

	default:
		return m, nil, false
	}
	return m, nil, true
}

// View implements tea.Model.
func (m ReviewModel) View() string {
	if m.quitting {
		return "Review finished.\n"
	}
	if !m.ready {
		return "Loading...\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	switch {
	case m.showHelp:
		b.WriteString(m.renderHelp())
	case m.showConfirm:
		b.WriteString(m.renderConfirm())
	default:
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *ReviewModel) selected() (changeset.ChangeFile, bool) {
	if m.cs == nil || m.currentFile >= len(m.cs.Files) {
		return changeset.ChangeFile{}, false
	}
	return m.cs.Files[m.currentFile], true
}

func (m *ReviewModel) moveFile(delta int) {
	if m.cs == nil {
		return
	}
	next := m.currentFile + delta
	if next < 0 || next >= len(m.cs.Files) {
		return
	}
	m.currentFile = next
	m.viewMode = ViewFile
	m.refresh()
	m.viewport.GotoTop()
}

// refresh re-renders the viewport for the current mode and selection.
func (m *ReviewModel) refresh() {
	if !m.ready {
		return
	}
	if m.viewMode == ViewSummary {
		m.viewport.SetContent(m.renderSummary())
		return
	}
	m.viewport.SetContent(m.renderFileDiff())
}

// onSelected runs a per-file controller call on the selected file, or
// does nothing when no file is selected.
func (m ReviewModel) onSelected(fn func(ctx context.Context, path string) (changeset.Result, error)) tea.Cmd {
	f, ok := m.selected()
	if !ok {
		return nil
	}
	return m.run(func(ctx context.Context) (changeset.Result, error) {
		return fn(ctx, f.Path)
	})
}

func (m ReviewModel) run(fn func(ctx context.Context) (changeset.Result, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		res, err := fn(ctx)
		return actionMsg{result: res, err: err}
	}
}

func (m ReviewModel) handleAction(msg actionMsg) (ReviewModel, tea.Cmd) {
	var confirmErr *changeset.ConfirmationRequiredError
	if errors.As(msg.err, &confirmErr) {
		m.showConfirm = true
		m.confirmReasons = confirmErr.Reasons
		m.confirm.Reset()
		// Cursor blink is not needed for a one-word prompt.
		_ = m.confirm.Focus()
		return m, nil
	}

	m.lastErr = msg.err
	m.status = ""
	if msg.err == nil && msg.result.Outcome != "" {
		m.outcomes = append(m.outcomes, msg.result)
		m.status = describeResult(msg.result)
	}

	m.cs = m.reviewer.Current()
	if m.cs == nil {
		if msg.err != nil {
			m.refresh()
			return m, nil
		}
		return m.finish()
	}

	m.currentFile = min(m.currentFile, max(len(m.cs.Files)-1, 0))
	m.refresh()
	return m, nil
}

func (m ReviewModel) finish() (ReviewModel, tea.Cmd) {
	m.quitting = true
	outcomes := m.outcomes
	return m, tea.Sequence(
		func() tea.Msg { return DoneMsg{Outcomes: outcomes} },
		tea.Quit,
	)
}

// updateConfirm feeds keys to the confirmation input. Enter submits, esc
// cancels, anything else edits the text.
func (m ReviewModel) updateConfirm(msg tea.KeyMsg) (ReviewModel, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		ok := strings.EqualFold(strings.TrimSpace(m.confirm.Value()), confirmWord)
		m.closeConfirm()
		if !ok {
			return m, nil
		}
		return m, m.run(func(ctx context.Context) (changeset.Result, error) {
			return m.reviewer.AcceptAll(ctx, true)
		})

	case tea.KeyEsc:
		m.closeConfirm()
		return m, nil
	}

	var cmd tea.Cmd
	m.confirm, cmd = m.confirm.Update(msg)
	return m, cmd
}

func (m *ReviewModel) closeConfirm() {
	m.showConfirm = false
	m.confirm.Reset()
	m.confirm.Blur()
}

// Outcomes returns the transitions performed so far, in order.
func (m ReviewModel) Outcomes() []changeset.Result {
	return m.outcomes
}

// Err returns the error of the last transition, if any.
func (m ReviewModel) Err() error {
	return m.lastErr
}
