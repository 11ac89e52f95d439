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
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/AleutianProposals/services/proposal/changeset"
	"github.com/AleutianAI/AleutianProposals/services/proposal/diff"
)

// Palette, as ANSI 256 color codes.
const (
	colorAccent  = lipgloss.Color("39")
	colorPath    = lipgloss.Color("212")
	colorMuted   = lipgloss.Color("241")
	colorText    = lipgloss.Color("250")
	colorAdd     = lipgloss.Color("42")
	colorDel     = lipgloss.Color("196")
	colorWarn    = lipgloss.Color("214")
	colorGap     = lipgloss.Color("75")
	colorAddBg   = lipgloss.Color("22")
	colorWarnBg  = lipgloss.Color("58")
	colorBadgeBg = lipgloss.Color("238")
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	filePathStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPath)
	statsStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	addedStyle    = lipgloss.NewStyle().Foreground(colorAdd)
	removedStyle  = lipgloss.NewStyle().Foreground(colorDel)
	contextStyle  = lipgloss.NewStyle().Foreground(colorText)
	lineNumStyle  = lipgloss.NewStyle().Foreground(colorMuted).Width(4)
	gapStyle      = lipgloss.NewStyle().Foreground(colorGap)
	warningStyle  = lipgloss.NewStyle().Foreground(colorWarn)
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorDel)
	commandStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	noteStyle     = lipgloss.NewStyle().Foreground(colorText)

	appliedBadge = lipgloss.NewStyle().Foreground(colorAdd).Background(colorAddBg).Padding(0, 1)
	pendingBadge = lipgloss.NewStyle().Foreground(colorWarn).Background(colorWarnBg).Padding(0, 1)
	kindBadge    = lipgloss.NewStyle().Foreground(colorText).Background(colorBadgeBg).Padding(0, 1)
)

func (m ReviewModel) renderHeader() string {
	if m.cs == nil || len(m.cs.Files) == 0 {
		return titleStyle.Render("No changes to review")
	}

	var b strings.Builder

	title := fmt.Sprintf("Proposed Changes (%d files)", len(m.cs.Files))
	b.WriteString(titleStyle.Render(title))

	if m.viewMode != ViewSummary {
		progress := fmt.Sprintf("  [%d/%d]", m.currentFile+1, len(m.cs.Files))
		b.WriteString(statsStyle.Render(progress))
	}
	b.WriteString("  ")
	b.WriteString(statsStyle.Render(string(m.cs.Status)))

	if m.cs.Message != "" {
		b.WriteString("\n")
		b.WriteString(noteStyle.Render(m.cs.Message))
	}

	return b.String()
}

func (m ReviewModel) renderFooter() string {
	var b strings.Builder

	switch {
	case m.lastErr != nil:
		b.WriteString(errorStyle.Render("✗ " + m.lastErr.Error()))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(addedStyle.Render("✓ " + m.status))
		b.WriteString("\n")
	}

	bindings := m.keys.ShortHelp()
	if m.viewMode == ViewSummary {
		bindings = m.keys.summaryHelp()
	}
	b.WriteString(m.help.ShortHelpView(bindings))
	return b.String()
}

func (m ReviewModel) renderFileDiff() string {
	f, ok := m.selected()
	if !ok {
		return "No file selected"
	}

	var b strings.Builder

	b.WriteString(m.renderFileHeader(f))
	b.WriteString("\n\n")

	switch f.Kind {
	case changeset.FileRename:
		b.WriteString(contextStyle.Render(fmt.Sprintf("rename %s → %s (content unchanged)", f.From, f.To)))
	case changeset.FileDelete:
		b.WriteString(removedStyle.Render("file deleted"))
		b.WriteString("\n\n")
		b.WriteString(m.renderLines(derefString(f.Before), ""))
	default:
		b.WriteString(m.renderLines(derefString(f.Before), derefString(f.After)))
	}

	for _, w := range f.Warnings {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render("⚠ " + w))
	}

	return b.String()
}

func (m ReviewModel) renderFileHeader(f changeset.ChangeFile) string {
	var b strings.Builder

	b.WriteString(filePathStyle.Render(f.Path))
	b.WriteString("  ")
	b.WriteString(renderStats(f.Added, f.Removed))
	b.WriteString("  ")

	kind := string(f.Kind)
	if f.IsNew() {
		kind = "new"
	}
	b.WriteString(kindBadge.Render(strings.ToUpper(kind)))
	b.WriteString(" ")

	if f.Applied {
		b.WriteString(appliedBadge.Render("APPLIED"))
	} else {
		b.WriteString(pendingBadge.Render("PENDING"))
	}

	return b.String()
}

func renderStats(added, removed int) string {
	addedStr := addedStyle.Render(fmt.Sprintf("+%d", added))
	removedStr := removedStyle.Render(fmt.Sprintf("-%d", removed))
	return fmt.Sprintf("%s %s", addedStr, removedStr)
}

// renderLines shows the line diff of before and after. Unchanged runs
// further than ContextLines from any change collapse into a gap marker.
func (m ReviewModel) renderLines(before, after string) string {
	script := diff.Text(before, after)
	if len(script) == 0 {
		return contextStyle.Render("(empty)")
	}
	keep := visibleLines(script, m.config.ContextLines)

	var b strings.Builder
	hidden := 0
	flushGap := func() {
		if hidden > 0 {
			b.WriteString(gapStyle.Render(fmt.Sprintf("⋯ %d unchanged lines", hidden)))
			b.WriteString("\n")
			hidden = 0
		}
	}

	oldNum, newNum := 0, 0
	for i, line := range script {
		if line.Type != diff.LineAdded {
			oldNum++
		}
		if line.Type != diff.LineRemoved {
			newNum++
		}
		if !keep[i] {
			hidden++
			continue
		}
		flushGap()
		b.WriteString(m.renderLine(line, oldNum, newNum))
		b.WriteString("\n")
	}
	flushGap()
	return b.String()
}

// visibleLines marks the script entries within contextLines of a change.
func visibleLines(script []diff.DiffLine, contextLines int) []bool {
	keep := make([]bool, len(script))
	for i, line := range script {
		if line.IsContext() {
			continue
		}
		for j := max(i-contextLines, 0); j <= min(i+contextLines, len(script)-1); j++ {
			keep[j] = true
		}
	}
	return keep
}

var lineStyles = map[diff.LineType]lipgloss.Style{
	diff.LineAdded:   addedStyle,
	diff.LineRemoved: removedStyle,
	diff.LineContext: contextStyle,
}

func (m ReviewModel) renderLine(line diff.DiffLine, oldNum, newNum int) string {
	var gutter string
	if m.config.ShowLineNumbers {
		oldCol, newCol := "", ""
		if line.Type != diff.LineAdded {
			oldCol = fmt.Sprint(oldNum)
		}
		if line.Type != diff.LineRemoved {
			newCol = fmt.Sprint(newNum)
		}
		gutter = lineNumStyle.Render(fmt.Sprintf("%3s", oldCol)) + " " +
			lineNumStyle.Render(fmt.Sprintf("%3s", newCol)) + " "
	}
	return gutter + lineStyles[line.Type].Render(line.String())
}

func (m ReviewModel) renderSummary() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Review Summary"))
	b.WriteString("\n\n")

	if cs := m.cs; cs != nil {
		var applied, pending []changeset.ChangeFile
		for _, f := range cs.Files {
			if f.Applied {
				applied = append(applied, f)
			} else {
				pending = append(pending, f)
			}
		}
		writeFileGroup(&b, addedStyle.Render(fmt.Sprintf("✓ Applied (%d files):", len(applied))), applied)
		writeFileGroup(&b, pendingBadge.Render(fmt.Sprintf("? Pending (%d files):", len(pending))), pending)

		if cmds := cs.Commands(); len(cmds) > 0 {
			b.WriteString(commandStyle.Render(fmt.Sprintf("Commands (%d):", len(cmds))))
			b.WriteString("\n")
			for _, c := range cmds {
				fmt.Fprintf(&b, "  $ %s\n", c)
			}
			b.WriteString("\n")
		}

		fmt.Fprintf(&b, "Total: %s across %d files\n",
			renderStats(cs.Stats.LinesAdded, cs.Stats.LinesRemoved), cs.Stats.FilesChanged)
	}

	if len(m.outcomes) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("This session"))
		b.WriteString("\n")
		for _, r := range m.outcomes {
			fmt.Fprintf(&b, "  • %s\n", describeResult(r))
		}
	}
	return b.String()
}

func writeFileGroup(b *strings.Builder, heading string, files []changeset.ChangeFile) {
	if len(files) == 0 {
		return
	}
	b.WriteString(heading)
	b.WriteString("\n")
	for _, f := range files {
		fmt.Fprintf(b, "  • %s  %s\n", f.Path, renderStats(f.Added, f.Removed))
	}
	b.WriteString("\n")
}

// describeResult is the one-line footer text for a transition.
func describeResult(r changeset.Result) string {
	switch r.Outcome {
	case changeset.OutcomeFileAccepted:
		return "accepted " + strings.Join(r.Paths, ", ")
	case changeset.OutcomeFileRejected:
		return "rejected " + strings.Join(r.Paths, ", ")
	case changeset.OutcomeApplied:
		return fmt.Sprintf("applied %d paths", len(r.Paths))
	case changeset.OutcomeReverted:
		s := fmt.Sprintf("reverted %d paths", len(r.Paths))
		if len(r.Drifted) > 0 {
			s += fmt.Sprintf(" (%d edited since apply)", len(r.Drifted))
		}
		return s
	default:
		return string(r.Outcome)
	}
}

func (m ReviewModel) renderHelp() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")
	b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	b.WriteString("\n\n")
	b.WriteString(noteStyle.Render("Accepted files are final. Quitting leaves the rest of the change set live."))
	b.WriteString("\n")
	b.WriteString(statsStyle.Render("Press ? or q to close help"))
	return b.String()
}

func (m ReviewModel) renderConfirm() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Confirm Accept All"))
	b.WriteString("\n\n")
	for _, reason := range m.confirmReasons {
		b.WriteString(warningStyle.Render("⚠ " + reason))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.confirm.View())
	b.WriteString("\n\n")
	b.WriteString(statsStyle.Render("Enter to confirm, Esc to cancel"))
	return b.String()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
