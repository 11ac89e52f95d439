// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package proposal

import (
	"github.com/AleutianAI/AleutianProposals/services/proposal/changeset"
	"github.com/AleutianAI/AleutianProposals/services/proposal/edit"
	"github.com/AleutianAI/AleutianProposals/services/proposal/journal"
)

// Proposal is a built ChangeSet plus the diagnostics of the pipeline.
type Proposal struct {
	// ChangeSet is the reviewable change.
	ChangeSet *changeset.ChangeSet `json:"change_set"`

	// Rejected lists edits dropped by validation.
	Rejected []RejectedEdit `json:"rejected,omitempty"`

	// Think, Plan, Verify and Done are passed through from the assistant.
	Think  string   `json:"think,omitempty"`
	Plan   []string `json:"plan,omitempty"`
	Verify []string `json:"verify,omitempty"`
	Done   bool     `json:"done,omitempty"`

	// Partial is true when edits were salvaged from truncated output.
	Partial bool `json:"partial,omitempty"`
}

// RejectedEdit is an edit dropped by validation.
type RejectedEdit struct {
	Edit   edit.Operation `json:"edit"`
	Reason string         `json:"reason"`
}

// =============================================================================
// Requests
// =============================================================================

// ProposeRequest is the body of POST /v1/proposals.
//
// Exactly one of Output or Edits should be set. Output is raw assistant
// text and goes through recovery; Edits are used as given.
type ProposeRequest struct {
	Output  string           `json:"output"`
	Edits   []edit.Operation `json:"edits"`
	Message string           `json:"message"`
}

// AcceptRequest is the body of POST /v1/proposals/accept.
type AcceptRequest struct {
	Confirmed bool `json:"confirmed"`
}

// FileRequest is the body of the single-file routes.
type FileRequest struct {
	Path string `json:"path" binding:"required"`
}

// =============================================================================
// Responses
// =============================================================================

// TransitionResponse reports a controller transition and the ChangeSet
// left live afterwards (nil when retired).
type TransitionResponse struct {
	Result    changeset.Result     `json:"result"`
	ChangeSet *changeset.ChangeSet `json:"change_set,omitempty"`
}

// ConfirmationResponse is returned with 409 when accept-all needs
// confirmation.
type ConfirmationResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Reasons []string `json:"reasons"`
}

// HistoryResponse is the body of GET /v1/proposals/history.
type HistoryResponse struct {
	Events []journal.Event `json:"events"`
}

// HealthResponse is the body of GET /v1/proposals/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Busy    bool   `json:"busy"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// StreamMessage is one message on the /events websocket.
type StreamMessage struct {
	Type     string                   `json:"type"`
	Progress *changeset.ProgressEvent `json:"progress,omitempty"`
}
