// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianProposals/services/proposal"
	"github.com/AleutianAI/AleutianProposals/services/proposal/changeset"
	"github.com/AleutianAI/AleutianProposals/services/proposal/diff"
)

// =============================================================================
// Styles
// =============================================================================

var (
	diffHeaderStyle = lipgloss.NewStyle().Bold(true)
	diffHunkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00BCD4"))
	diffAddStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	diffDelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F44336"))
	warnStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
)

func runPreview(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, rootOverride, logger.Slog(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.service.Prepare(cmd.Context(), raw)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	color := !noColor && isTerminal(out)
	writeSummary(out, p, color)
	return writeDiff(out, p.ChangeSet, color)
}

// writeSummary prints the assistant message, the per-file stats, warnings
// and any edits dropped by validation.
func writeSummary(w io.Writer, p *proposal.Proposal, color bool) {
	cs := p.ChangeSet
	if cs.Message != "" {
		fmt.Fprintln(w, cs.Message)
		fmt.Fprintln(w)
	}
	if p.Partial {
		fmt.Fprintln(w, paint(warnStyle, "Output was truncated; only complete edits were recovered.", color))
	}

	fmt.Fprintf(w, "%d file(s) changed, %s, %s\n",
		cs.Stats.FilesChanged,
		paint(diffAddStyle, fmt.Sprintf("+%d", cs.Stats.LinesAdded), color),
		paint(diffDelStyle, fmt.Sprintf("-%d", cs.Stats.LinesRemoved), color),
	)
	for _, f := range cs.Files {
		fmt.Fprintf(w, "  %s %s (+%d -%d)\n", fileMarker(f), f.Path, f.Added, f.Removed)
		for _, warning := range f.Warnings {
			fmt.Fprintf(w, "      %s\n", paint(warnStyle, "warning: "+warning, color))
		}
	}
	if cmds := cs.Commands(); len(cmds) > 0 {
		fmt.Fprintln(w, "Commands after apply:")
		for _, c := range cmds {
			fmt.Fprintf(w, "  $ %s\n", c)
		}
	}
	for _, r := range p.Rejected {
		fmt.Fprintf(w, "%s\n", paint(warnStyle, fmt.Sprintf("skipped %s %s: %s", r.Edit.Kind, r.Edit.Target(), r.Reason), color))
	}
	if cs.DidSanitize {
		fmt.Fprintln(w, paint(warnStyle, "Some paths were made workspace-relative.", color))
	}
}

// writeDiff prints the combined unified diff.
func writeDiff(w io.Writer, cs *changeset.ChangeSet, color bool) error {
	text, err := cs.RenderDiff(diff.DefaultContextLines)
	if err != nil {
		return fmt.Errorf("rendering diff: %w", err)
	}
	fmt.Fprintln(w)
	_, err = io.WriteString(w, colorizeDiff(text, color))
	return err
}

// colorizeDiff styles unified diff lines by their prefix. Without color the
// text is returned unchanged.
func colorizeDiff(text string, color bool) string {
	if !color {
		return text
	}
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	for _, line := range lines {
		body := strings.TrimSuffix(line, "\n")
		nl := line[len(body):]
		switch {
		case strings.HasPrefix(body, "diff "), strings.HasPrefix(body, "--- "), strings.HasPrefix(body, "+++ "):
			body = diffHeaderStyle.Render(body)
		case strings.HasPrefix(body, "@@"):
			body = diffHunkStyle.Render(body)
		case strings.HasPrefix(body, "+"):
			body = diffAddStyle.Render(body)
		case strings.HasPrefix(body, "-"):
			body = diffDelStyle.Render(body)
		}
		b.WriteString(body)
		b.WriteString(nl)
	}
	return b.String()
}

func fileMarker(f changeset.ChangeFile) string {
	switch {
	case f.Kind == changeset.FileDelete:
		return "D"
	case f.Kind == changeset.FileRename:
		return "R"
	case f.IsNew():
		return "A"
	default:
		return "M"
	}
}

func paint(style lipgloss.Style, s string, color bool) string {
	if !color {
		return s
	}
	return style.Render(s)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
