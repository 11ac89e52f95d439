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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianProposals/services/proposal/changeset"
	"github.com/AleutianAI/AleutianProposals/services/proposal/diff"
)

const defaultHistoryLimit = 100

// Handlers contains the HTTP handlers for the proposal service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandlePropose handles POST /v1/proposals.
//
// # Description
//
// Builds a ChangeSet from raw assistant output or structured edits and
// makes it the live ChangeSet, superseding any previous one.
//
// # Response
//
//	200 OK: Proposal
//	400 Bad Request: Invalid body
//	422 Unprocessable Entity: Nothing recovered, no changes, or patch failure
//	423 Locked: Another operation is in progress
func (h *Handlers) HandlePropose(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePropose")

	var req ProposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	var (
		p   *Proposal
		err error
	)
	if len(req.Edits) > 0 {
		p, err = h.svc.ProposeEdits(c.Request.Context(), req.Edits, req.Message)
	} else {
		p, err = h.svc.Propose(c.Request.Context(), req.Output)
	}
	if err != nil {
		logger.Warn("Propose failed", "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// HandleCurrent handles GET /v1/proposals/current.
//
// # Response
//
//	200 OK: ChangeSet
//	404 Not Found: No live ChangeSet
func (h *Handlers) HandleCurrent(c *gin.Context) {
	cs := h.svc.Controller().Current()
	if cs == nil {
		writeError(c, changeset.ErrNoChangeSet)
		return
	}
	c.JSON(http.StatusOK, cs)
}

// HandleAccept handles POST /v1/proposals/accept.
//
// # Response
//
//	200 OK: TransitionResponse
//	404 Not Found: No live ChangeSet
//	409 Conflict: ConfirmationResponse; retry with confirmed=true
//	423 Locked: Another operation is in progress
//	500 Internal Server Error: Workspace failure, ChangeSet left partial
func (h *Handlers) HandleAccept(c *gin.Context) {
	var req AcceptRequest
	// An empty body means confirmed=false.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "Invalid request body",
				Code:  "INVALID_REQUEST",
			})
			return
		}
	}

	res, err := h.svc.Controller().AcceptAll(c.Request.Context(), req.Confirmed)
	h.respondTransition(c, "HandleAccept", res, err)
}

// HandleReject handles POST /v1/proposals/reject.
func (h *Handlers) HandleReject(c *gin.Context) {
	res, err := h.svc.Controller().RejectAll(c.Request.Context())
	h.respondTransition(c, "HandleReject", res, err)
}

// HandleAcceptFile handles POST /v1/proposals/files/accept.
func (h *Handlers) HandleAcceptFile(c *gin.Context) {
	var req FileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "path is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	res, err := h.svc.Controller().AcceptFile(c.Request.Context(), req.Path)
	h.respondTransition(c, "HandleAcceptFile", res, err)
}

// HandleRejectFile handles POST /v1/proposals/files/reject.
func (h *Handlers) HandleRejectFile(c *gin.Context) {
	var req FileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "path is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	res, err := h.svc.Controller().RejectFile(c.Request.Context(), req.Path)
	h.respondTransition(c, "HandleRejectFile", res, err)
}

// HandleDiff handles GET /v1/proposals/diff.
//
// Query Parameters:
//
//	context: Number of context lines (optional, default 3)
func (h *Handlers) HandleDiff(c *gin.Context) {
	cs := h.svc.Controller().Current()
	if cs == nil {
		writeError(c, changeset.ErrNoChangeSet)
		return
	}

	contextLines := diff.DefaultContextLines
	if v := c.Query("context"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "context must be a non-negative integer",
				Code:  "INVALID_REQUEST",
			})
			return
		}
		contextLines = n
	}

	out, err := cs.RenderDiff(contextLines)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/x-diff; charset=utf-8", []byte(out))
}

// HandleHistory handles GET /v1/proposals/history.
//
// Query Parameters:
//
//	limit: Maximum number of events (optional, default 100)
func (h *Handlers) HandleHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a positive integer",
				Code:  "INVALID_REQUEST",
			})
			return
		}
		limit = n
	}

	events, err := h.svc.History(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Events: events})
}

// HandleHealth handles GET /v1/proposals/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
		Busy:    h.svc.Controller().Busy(),
	})
}

func (h *Handlers) respondTransition(c *gin.Context, handler string, res changeset.Result, err error) {
	if err != nil {
		slog.Warn("Transition failed",
			"handler", handler,
			"request_id", getOrCreateRequestID(c),
			"error", err,
		)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, TransitionResponse{
		Result:    res,
		ChangeSet: h.svc.Controller().Current(),
	})
}

// writeError maps pipeline and controller errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	var (
		confirmErr *changeset.ConfirmationRequiredError
		ioErr      *changeset.IOError
		patchErr   *diff.PatchError
	)

	switch {
	case errors.As(err, &confirmErr):
		c.JSON(http.StatusConflict, ConfirmationResponse{
			Error:   err.Error(),
			Code:    "CONFIRMATION_REQUIRED",
			Reasons: confirmErr.Reasons,
		})
	case errors.Is(err, changeset.ErrBusy):
		c.JSON(http.StatusLocked, ErrorResponse{Error: err.Error(), Code: "BUSY"})
	case errors.Is(err, changeset.ErrNoChangeSet):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NO_CHANGE_SET"})
	case errors.Is(err, changeset.ErrFileNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "FILE_NOT_FOUND"})
	case errors.As(err, &ioErr):
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   err.Error(),
			Code:    "IO_ERROR",
			Details: "change set left partially applied",
		})
	case errors.As(err, &patchErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "PATCH_FAILED"})
	case errors.Is(err, ErrEmptyOutput), errors.Is(err, ErrNothingRecovered):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "NO_EDITS"})
	case errors.Is(err, changeset.ErrNoChanges):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "NO_CHANGES"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL"})
	}
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = c.Writer.Header().Get("X-Request-ID")
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
