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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianProposals/cmd/proposals/config"
	"github.com/AleutianAI/AleutianProposals/pkg/logging"
)

// --- Global Command Variables ---
var (
	configPath   string
	rootOverride string
	assumeYes    bool
	servePort    int
	noColor      bool

	cfg    config.ProposalsConfig
	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "proposals",
		Short: "Review and apply assistant-proposed edits to a workspace",
		Long: `proposals turns assistant output into a reviewable change set,
shows it as a unified diff, and applies or reverts it atomically.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	// --- Offline pipeline ---
	recoverCmd = &cobra.Command{
		Use:   "recover [file]",
		Short: "Print the edits recovered from assistant output as JSON",
		Long:  "Reads assistant output from file (or stdin when file is \"-\") and prints the recovered edits.",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecover, // Defined in cmd_recover.go
	}

	previewCmd = &cobra.Command{
		Use:   "preview [file]",
		Short: "Show the change set the output would produce without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE:  runPreview, // Defined in cmd_preview.go
	}

	applyCmd = &cobra.Command{
		Use:   "apply [file]",
		Short: "Build the change set and accept all of it",
		Args:  cobra.ExactArgs(1),
		RunE:  runApply, // Defined in cmd_apply.go
	}

	reviewCmd = &cobra.Command{
		Use:   "review [file]",
		Short: "Review the change set file by file in an interactive viewer",
		Args:  cobra.ExactArgs(1),
		RunE:  runReview, // Defined in cmd_review.go
	}

	// --- Service ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the proposal API over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in cmd_serve.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.aleutian/proposals.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootOverride, "root", "", "workspace root (default: config workspace.root, then the current directory)")

	applyCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "accept without asking for confirmation")
	previewCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored diff output")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default: config server.port)")

	rootCmd.AddCommand(recoverCmd, previewCmd, applyCmd, reviewCmd, serveCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	loaded, created, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg = loaded

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger, err = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "proposals",
		Format:  logging.Format(cfg.Logging.Format),
	})
	if err != nil {
		logger.Warn("file logging disabled", "error", err)
	}
	slog.SetDefault(logger.Slog())

	if created {
		logger.Info("created default config", "path", path)
	}
	return nil
}
