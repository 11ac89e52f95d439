// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package proposal turns assistant output into reviewable change sets and
// exposes the review workflow over HTTP.
//
// # Description
//
// The Service runs the proposal pipeline:
//
//	raw output -> recovery.Recover -> edit.Normalize -> edit.Filter -> Builder.Build -> Controller.Propose
//
// and hands the accept and reject transitions to the changeset.Controller.
// Handlers map the Service onto the /v1/proposals routes.
package proposal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianProposals/services/proposal/changeset"
	"github.com/AleutianAI/AleutianProposals/services/proposal/edit"
	"github.com/AleutianAI/AleutianProposals/services/proposal/journal"
	"github.com/AleutianAI/AleutianProposals/services/proposal/recovery"
	"github.com/AleutianAI/AleutianProposals/services/proposal/workspace"
)

// ServiceVersion is the proposal service version.
const ServiceVersion = "0.1.0"

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Root is the absolute workspace root used to relativize absolute
	// paths in proposed edits.
	Root string

	// Builder configures change set construction.
	Builder changeset.BuilderConfig

	// Controller configures apply and revert.
	Controller changeset.ControllerConfig

	// Logger for pipeline diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultServiceConfig returns defaults for a workspace rooted at root.
func DefaultServiceConfig(root string) ServiceConfig {
	return ServiceConfig{
		Root:       root,
		Builder:    changeset.BuilderConfig{ReadConcurrency: changeset.DefaultReadConcurrency},
		Controller: changeset.DefaultControllerConfig(),
	}
}

// Service runs the proposal pipeline for one workspace session.
//
// # Thread Safety
//
// Safe for concurrent use. Mutations are serialized by the controller's
// busy gate.
type Service struct {
	root       string
	builder    *changeset.Builder
	controller *changeset.Controller
	journal    *journal.Journal
	logger     *slog.Logger
}

// NewService creates a Service writing through ws.
//
// # Inputs
//
//   - ws: Workspace capability for reads and writes.
//   - j: Lifecycle journal. May be nil, in which case History is empty.
//   - config: Service configuration.
//
// # Outputs
//
//   - *Service: Ready-to-use service.
func NewService(ws workspace.Workspace, j *journal.Journal, config ServiceConfig) *Service {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Builder.Logger == nil {
		config.Builder.Logger = logger
	}
	if config.Controller.Logger == nil {
		config.Controller.Logger = logger
	}
	if j != nil && config.Controller.Journal == nil {
		config.Controller.Journal = j
	}

	return &Service{
		root:       config.Root,
		builder:    changeset.NewBuilder(ws, config.Builder),
		controller: changeset.NewController(ws, config.Controller),
		journal:    j,
		logger:     logger.With("component", "proposal.Service"),
	}
}

// Controller returns the session controller.
func (s *Service) Controller() *changeset.Controller {
	return s.controller
}

// Recover extracts structured edits from raw assistant output.
//
// Returns ErrEmptyOutput for blank input and ErrNothingRecovered when no
// edits can be salvaged.
func (s *Service) Recover(raw string) (*recovery.Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyOutput
	}
	res := recovery.Recover(raw)
	if res == nil {
		return nil, ErrNothingRecovered
	}
	if res.Partial {
		s.logger.Warn("recovered edits from truncated output", slog.Int("edits", len(res.Edits)))
	}
	return res, nil
}

// Prepare recovers, normalizes, validates and builds a ChangeSet without
// making it live.
func (s *Service) Prepare(ctx context.Context, raw string) (*Proposal, error) {
	rec, err := s.Recover(raw)
	if err != nil {
		return nil, err
	}

	p, err := s.PrepareEdits(ctx, rec.Edits, rec.Message)
	if err != nil {
		return nil, err
	}
	p.Think = rec.Think
	p.Plan = rec.Plan
	p.Verify = rec.Verify
	p.Done = rec.Done
	p.Partial = rec.Partial
	return p, nil
}

// PrepareEdits normalizes, validates and builds a ChangeSet from edits that
// are already structured.
func (s *Service) PrepareEdits(ctx context.Context, edits []edit.Operation, message string) (*Proposal, error) {
	norm := edit.Normalize(edits, s.root)
	if norm.DidSanitize {
		s.logger.WarnContext(ctx, "edit paths were sanitized", slog.Int("edits", len(norm.Edits)))
	}

	valid, rejected := edit.Filter(norm.Edits)
	p := &Proposal{}
	for _, r := range rejected {
		s.logger.WarnContext(ctx, "dropping invalid edit",
			slog.String("op", string(r.Op.Kind)),
			slog.String("path", r.Op.Target()),
			slog.String("error", r.Err.Error()),
		)
		p.Rejected = append(p.Rejected, RejectedEdit{Edit: r.Op, Reason: r.Err.Error()})
	}

	cs, err := s.builder.Build(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("building change set: %w", err)
	}
	cs.DidSanitize = norm.DidSanitize
	cs.Message = message

	p.ChangeSet = cs
	return p, nil
}

// Propose runs Prepare and makes the result the live ChangeSet.
func (s *Service) Propose(ctx context.Context, raw string) (*Proposal, error) {
	p, err := s.Prepare(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.propose(ctx, p)
}

// ProposeEdits runs PrepareEdits and makes the result the live ChangeSet.
func (s *Service) ProposeEdits(ctx context.Context, edits []edit.Operation, message string) (*Proposal, error) {
	p, err := s.PrepareEdits(ctx, edits, message)
	if err != nil {
		return nil, err
	}
	return s.propose(ctx, p)
}

func (s *Service) propose(ctx context.Context, p *Proposal) (*Proposal, error) {
	if _, err := s.controller.Propose(ctx, p.ChangeSet); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "change set proposed",
		slog.String("change_set_id", p.ChangeSet.ID),
		slog.Int("files", p.ChangeSet.Stats.FilesChanged),
		slog.Int("rejected_edits", len(p.Rejected)),
		slog.Bool("did_sanitize", p.ChangeSet.DidSanitize),
	)
	return p, nil
}

// History returns up to limit recent lifecycle events, oldest first.
func (s *Service) History(ctx context.Context, limit int) ([]journal.Event, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.List(ctx, limit)
}
