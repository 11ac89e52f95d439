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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianProposals/services/proposal/changeset"
)

// errNotConfirmed is returned when the user declines a confirmation prompt.
var errNotConfirmed = errors.New("change set not applied: not confirmed")

// confirmFunc asks the user to approve a change set that needs
// confirmation. It returns false when the user declines.
type confirmFunc func(reasons []string) (bool, error)

func runApply(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, rootOverride, logger.Slog(), appOptions{Journal: true})
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.service.Propose(cmd.Context(), raw)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	writeSummary(out, p, isTerminal(out))

	confirm := promptConfirm
	if assumeYes {
		confirm = func([]string) (bool, error) { return true, nil }
	}
	res, err := acceptAll(cmd.Context(), a.service.Controller(), confirm)
	if err != nil {
		return err
	}
	writeApplied(out, res, a.queue.Drain())
	return nil
}

// acceptAll accepts the live change set, asking confirm when the controller
// requires confirmation. An applied change set is then retired so the
// session ends clean.
func acceptAll(ctx context.Context, c *changeset.Controller, confirm confirmFunc) (changeset.Result, error) {
	res, err := c.AcceptAll(ctx, false)

	var confirmErr *changeset.ConfirmationRequiredError
	if errors.As(err, &confirmErr) {
		ok, promptErr := confirm(confirmErr.Reasons)
		if promptErr != nil {
			return changeset.Result{}, promptErr
		}
		if !ok {
			if _, rejectErr := c.RejectAll(ctx); rejectErr != nil {
				return changeset.Result{}, errors.Join(errNotConfirmed, rejectErr)
			}
			return changeset.Result{}, errNotConfirmed
		}
		res, err = c.AcceptAll(ctx, true)
	}
	if err != nil {
		return res, err
	}

	if res.Outcome == changeset.OutcomeApplied {
		if _, err := c.AcceptAll(ctx, true); err != nil {
			return res, fmt.Errorf("retiring change set: %w", err)
		}
	}
	return res, nil
}

// promptConfirm shows the reasons in a huh confirm dialog. Without a
// terminal on stdin it refuses instead of blocking.
func promptConfirm(reasons []string) (bool, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return false, fmt.Errorf("%w (%s); rerun with --yes", changeset.ErrConfirmationRequired, strings.Join(reasons, "; "))
	}

	var ok bool
	err := huh.NewConfirm().
		Title("Apply this change set?").
		Description(strings.Join(reasons, "\n")).
		Affirmative("Apply").
		Negative("Cancel").
		Value(&ok).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func writeApplied(w io.Writer, res changeset.Result, commands []string) {
	fmt.Fprintf(w, "\nApplied %d path(s).\n", len(res.Paths))
	writeCommands(w, commands)
}

func writeCommands(w io.Writer, commands []string) {
	if len(commands) > 0 {
		fmt.Fprintln(w, "Run these commands to finish:")
		for _, c := range commands {
			fmt.Fprintf(w, "  $ %s\n", c)
		}
	}
}
