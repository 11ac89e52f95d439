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
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianProposals/pkg/logging"
	"github.com/AleutianAI/AleutianProposals/services/proposal/changeset"
	"github.com/AleutianAI/AleutianProposals/services/proposal/tui"
)

func runReview(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	// stderr belongs to the viewer while it runs.
	reviewLogger, closeLog := quietLogger()
	defer closeLog()

	a, err := newApp(cmd.Context(), cfg, rootOverride, reviewLogger, appOptions{Journal: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.service.Propose(cmd.Context(), raw); err != nil {
		return err
	}

	model := tui.NewReviewModel(cmd.Context(), a.service.Controller(), tui.DefaultReviewConfig())
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	if err != nil {
		return fmt.Errorf("review: %w", err)
	}

	out := cmd.OutOrStdout()
	if rm, ok := final.(tui.ReviewModel); ok {
		writeOutcomes(out, rm.Outcomes())
		if cs := a.service.Controller().Current(); cs != nil {
			fmt.Fprintf(out, "Review ended with %d file(s) still %s.\n", len(cs.Files), cs.Status)
		}
		writeCommands(out, a.queue.Drain())
		return rm.Err()
	}
	return nil
}

// quietLogger logs to the configured file only, or nowhere.
func quietLogger() (*slog.Logger, func()) {
	if cfg.Logging.Dir == "" {
		return slog.New(slog.DiscardHandler), func() {}
	}
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	l, err := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "proposals",
		Quiet:   true,
	})
	if err != nil {
		return slog.New(slog.DiscardHandler), func() {}
	}
	return l.Slog(), func() { _ = l.Close() }
}

func writeOutcomes(w io.Writer, outcomes []changeset.Result) {
	for _, res := range outcomes {
		switch {
		case len(res.Paths) > 0:
			fmt.Fprintf(w, "%s: %s\n", res.Outcome, strings.Join(res.Paths, ", "))
		default:
			fmt.Fprintf(w, "%s\n", res.Outcome)
		}
	}
}
