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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/AleutianProposals/cmd/proposals/config"
	"github.com/AleutianAI/AleutianProposals/pkg/logging"
	"github.com/AleutianAI/AleutianProposals/services/proposal"
	"github.com/AleutianAI/AleutianProposals/services/proposal/changeset"
	"github.com/AleutianAI/AleutianProposals/services/proposal/journal"
	"github.com/AleutianAI/AleutianProposals/services/proposal/syntax"
	"github.com/AleutianAI/AleutianProposals/services/proposal/workspace"
)

// app holds the collaborators one command needs.
type app struct {
	root    string
	service *proposal.Service
	queue   *changeset.CommandQueue
	journal *journal.Journal
	watcher *workspace.DriftWatcher
	logger  *slog.Logger
}

// appOptions selects the optional collaborators.
type appOptions struct {
	// Journal opens the configured journal. A journal that cannot be
	// opened is skipped with a warning unless Required is set.
	Journal  bool
	Required bool

	// Drift starts a filesystem watcher over the workspace.
	Drift bool
}

// newApp wires a Service over the local workspace from c.
//
// # Inputs
//
//   - ctx: Lifetime of the drift watcher.
//   - c: Loaded configuration.
//   - root: Workspace root override. Empty uses c.Workspace.Root, then the
//     current directory.
//   - logger: Base logger.
//   - opts: Optional collaborators.
//
// # Outputs
//
//   - *app: Wired collaborators. Must be closed.
//   - error: Workspace, journal or watcher setup failure.
func newApp(ctx context.Context, c config.ProposalsConfig, root string, logger *slog.Logger, opts appOptions) (*app, error) {
	root, err := resolveRoot(root, c.Workspace.Root)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.NewLocalFS(root, workspace.LocalOptions{
		FileMode: 0644,
		DirMode:  0755,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening workspace: %w", err)
	}

	a := &app{
		root:   root,
		queue:  changeset.NewCommandQueue(),
		logger: logger,
	}

	if opts.Journal {
		j, err := openJournal(c.Journal, logger)
		switch {
		case err == nil:
			a.journal = j
		case opts.Required:
			return nil, err
		default:
			logger.Warn("journal unavailable, history will not be recorded", "error", err)
		}
	}

	svcCfg := proposal.DefaultServiceConfig(root)
	svcCfg.Logger = logger
	svcCfg.Builder.ReadConcurrency = c.Builder.ReadConcurrency
	svcCfg.Builder.TracingEnabled = c.Controller.Tracing
	if c.Builder.SyntaxCheck {
		svcCfg.Builder.Syntax = syntax.NewChecker(c.Builder.MaxDiagnostics, logger)
	}
	svcCfg.Controller.ConfirmThreshold = c.Controller.ConfirmThreshold
	svcCfg.Controller.TracingEnabled = c.Controller.Tracing
	svcCfg.Controller.MetricsEnabled = c.Controller.Metrics
	svcCfg.Controller.Runner = a.queue

	if opts.Drift {
		settle, err := time.ParseDuration(c.Workspace.DriftSettle)
		if err != nil {
			settle = workspace.DefaultSettleWindow
		}
		watcher, err := workspace.NewDriftWatcher(ctx, root, settle, logger)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("starting drift watcher: %w", err)
		}
		a.watcher = watcher
		svcCfg.Controller.Drift = watcher
	}

	a.service = proposal.NewService(ws, a.journal, svcCfg)
	return a, nil
}

// Close stops the watcher and closes the journal.
func (a *app) Close() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}

func resolveRoot(override, configured string) (string, error) {
	root := override
	if root == "" {
		root = configured
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = wd
	}
	return filepath.Abs(logging.ExpandPath(root))
}

func openJournal(c config.JournalConfig, logger *slog.Logger) (*journal.Journal, error) {
	jcfg := journal.InMemoryConfig()
	if !c.InMemory {
		jcfg = journal.DefaultConfig(logging.ExpandPath(c.Path))
	}
	jcfg.Logger = logger
	j, err := journal.Open(jcfg)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return j, nil
}

// readInput reads assistant output from path, or from stdin when path is "-".
func readInput(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}
