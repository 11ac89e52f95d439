// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the proposals CLI configuration from
// ~/.aleutian/proposals.yaml.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianProposals/pkg/logging"
	"github.com/AleutianAI/AleutianProposals/services/proposal/changeset"
	"github.com/AleutianAI/AleutianProposals/services/proposal/telemetry"
	"github.com/AleutianAI/AleutianProposals/services/proposal/workspace"
)

// ProposalsConfig is the on-disk configuration.
type ProposalsConfig struct {
	// Workspace: the directory edits are applied to
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Builder: change set construction
	Builder BuilderConfig `yaml:"builder"`

	// Controller: apply/revert behavior
	Controller ControllerConfig `yaml:"controller"`

	// Server: HTTP surface for `proposals serve`
	Server ServerConfig `yaml:"server"`

	// Journal: lifecycle event store
	Journal JournalConfig `yaml:"journal"`

	// Telemetry: OpenTelemetry exporters
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Logging: stderr and file logging
	Logging LoggingConfig `yaml:"logging"`
}

type WorkspaceConfig struct {
	Root string `yaml:"root"` // "" means the current directory

	// DriftSettle is how long after an apply writes are attributed to the
	// controller rather than an external editor, e.g. "500ms".
	DriftSettle string `yaml:"drift_settle"`
}

type BuilderConfig struct {
	ReadConcurrency int  `yaml:"read_concurrency"`
	SyntaxCheck     bool `yaml:"syntax_check"`
	MaxDiagnostics  int  `yaml:"max_diagnostics"`
}

type ControllerConfig struct {
	// ConfirmThreshold is the file count above which accept-all needs
	// confirmation.
	ConfirmThreshold int  `yaml:"confirm_threshold"`
	Tracing          bool `yaml:"tracing"`
	Metrics          bool `yaml:"metrics"`
}

type ServerConfig struct {
	Port         int     `yaml:"port"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"` // 0 disables limiting
	RateBurst    int     `yaml:"rate_burst"`
}

type JournalConfig struct {
	Path     string `yaml:"path"` // supports ~
	InMemory bool   `yaml:"in_memory"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Dir    string `yaml:"dir"`    // "" disables file logging
	Format string `yaml:"format"` // auto, text, json
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() ProposalsConfig {
	return ProposalsConfig{
		Workspace: WorkspaceConfig{
			DriftSettle: workspace.DefaultSettleWindow.String(),
		},
		Builder: BuilderConfig{
			ReadConcurrency: changeset.DefaultReadConcurrency,
			SyntaxCheck:     true,
			MaxDiagnostics:  10,
		},
		Controller: ControllerConfig{
			ConfirmThreshold: changeset.DefaultConfirmThreshold,
			Tracing:          true,
			Metrics:          true,
		},
		Server: ServerConfig{
			Port:         8086,
			RateLimitRPS: 5,
			RateBurst:    10,
		},
		Journal: JournalConfig{
			Path: "~/.aleutian/proposals/journal",
		},
		Telemetry: telemetry.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Dir:    "~/.aleutian/logs",
			Format: string(logging.FormatAuto),
		},
	}
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks value ranges and enumerations.
func (c ProposalsConfig) Validate() error {
	var errs []error

	if c.Workspace.DriftSettle != "" {
		if d, err := time.ParseDuration(c.Workspace.DriftSettle); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("workspace.drift_settle must be a non-negative duration, got %q", c.Workspace.DriftSettle))
		}
	}
	if c.Builder.ReadConcurrency < 1 {
		errs = append(errs, fmt.Errorf("builder.read_concurrency must be at least 1, got %d", c.Builder.ReadConcurrency))
	}
	if c.Controller.ConfirmThreshold < 1 {
		errs = append(errs, fmt.Errorf("controller.confirm_threshold must be at least 1, got %d", c.Controller.ConfirmThreshold))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, errors.New("server.rate_limit_rps and server.rate_burst must not be negative"))
	}
	if !c.Journal.InMemory && c.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path is required unless journal.in_memory is set"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch logging.Format(c.Logging.Format) {
	case "", logging.FormatAuto, logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("logging.format must be auto, text or json, got %q", c.Logging.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
