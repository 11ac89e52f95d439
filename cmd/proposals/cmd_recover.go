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
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianProposals/services/proposal"
)

func runRecover(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, rootOverride, logger.Slog(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	return writeRecovered(cmd.OutOrStdout(), a.service, raw)
}

// writeRecovered prints the recovered edits and assistant metadata as
// indented JSON.
func writeRecovered(w io.Writer, svc *proposal.Service, raw string) error {
	res, err := svc.Recover(raw)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
