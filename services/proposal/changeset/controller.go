// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package changeset

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/AleutianProposals/services/proposal/edit"
	"github.com/AleutianAI/AleutianProposals/services/proposal/journal"
	"github.com/AleutianAI/AleutianProposals/services/proposal/workspace"
)

// DefaultConfirmThreshold is the file count above which accept-all needs
// confirmation.
const DefaultConfirmThreshold = 8

// =============================================================================
// Collaborators
// =============================================================================

// CommandRunner receives the commands of run operations. The controller
// never executes commands itself.
type CommandRunner interface {
	Enqueue(ctx context.Context, command string) error
}

// DriftTracker watches applied paths for edits made outside the controller.
type DriftTracker interface {
	Watch(paths []string)
	Forget(paths []string)
	Drifted(paths []string) []string
}

// Recorder persists lifecycle events.
type Recorder interface {
	Record(ctx context.Context, ev journal.Event) error
}

// =============================================================================
// Results and Progress
// =============================================================================

// Outcome names what a controller call did.
type Outcome string

const (
	OutcomeProposed     Outcome = "proposed"
	OutcomeApplied      Outcome = "applied"
	OutcomePartial      Outcome = "partial"
	OutcomeRetired      Outcome = "retired"
	OutcomeReverted     Outcome = "reverted"
	OutcomeDiscarded    Outcome = "discarded"
	OutcomeFileAccepted Outcome = "file_accepted"
	OutcomeFileRejected Outcome = "file_rejected"
)

// Result describes a completed controller call.
type Result struct {
	Outcome     Outcome  `json:"outcome"`
	ChangeSetID string   `json:"change_set_id"`
	Paths       []string `json:"paths,omitempty"`
	Commands    []string `json:"commands,omitempty"`
	Drifted     []string `json:"drifted,omitempty"`
}

// ProgressEvent reports one executed workspace step.
type ProgressEvent struct {
	ChangeSetID string `json:"change_set_id"`
	Step        int    `json:"step"`
	Total       int    `json:"total"`
	Op          string `json:"op"`
	Path        string `json:"path"`
	Error       string `json:"error,omitempty"`
}

// =============================================================================
// Controller
// =============================================================================

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	// ConfirmThreshold is the file count above which AcceptAll requires
	// confirmation. Default: 8.
	ConfirmThreshold int

	// Runner receives run commands on accept-all. Optional.
	Runner CommandRunner

	// Drift tracks applied paths. Optional.
	Drift DriftTracker

	// Journal records lifecycle events. Optional.
	Journal Recorder

	// TracingEnabled enables OpenTelemetry spans.
	TracingEnabled bool

	// MetricsEnabled enables OpenTelemetry metrics.
	MetricsEnabled bool

	// Logger for controller diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultControllerConfig returns the default configuration.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		ConfirmThreshold: DefaultConfirmThreshold,
		MetricsEnabled:   true,
	}
}

// Controller owns the live ChangeSet of a session and applies, reverts,
// accepts and rejects it against a workspace.
//
// # Description
//
// Every mutating call holds a busy gate for its whole duration; a call made
// while another is running fails with ErrBusy instead of waiting. Workspace
// writes inside one call are sequential in file order (reverse order for
// reverts) and each step is reported to observers. A workspace failure
// stops the call, leaves the ChangeSet marked partial and returns *IOError.
//
// # Thread Safety
//
// Safe for concurrent use.
type Controller struct {
	ws      workspace.Workspace
	config  ControllerConfig
	session *Session
	logger  *slog.Logger
	tracer  *Tracer

	busy atomic.Bool

	obsMu     sync.Mutex
	observers map[int]func(ProgressEvent)
	nextObs   int
}

// NewController creates a Controller writing through ws.
func NewController(ws workspace.Workspace, config ControllerConfig) *Controller {
	if config.ConfirmThreshold <= 0 {
		config.ConfirmThreshold = DefaultConfirmThreshold
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "changeset.Controller")

	SetMetricsEnabled(config.MetricsEnabled)

	return &Controller{
		ws:        ws,
		config:    config,
		session:   NewSession(),
		logger:    logger,
		tracer:    NewTracer(logger, config.TracingEnabled),
		observers: make(map[int]func(ProgressEvent)),
	}
}

// Current returns a copy of the live ChangeSet, or nil.
func (c *Controller) Current() *ChangeSet {
	return c.session.Current()
}

// Busy reports whether a mutating call is in progress.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Subscribe registers fn for progress events and returns a function that
// removes it. fn is called synchronously from the mutating call.
func (c *Controller) Subscribe(fn func(ProgressEvent)) func() {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()

	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn

	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		delete(c.observers, id)
	}
}

// Propose makes cs the live ChangeSet, retiring any previous one.
//
// Files already applied by the previous ChangeSet stay on disk.
func (c *Controller) Propose(ctx context.Context, cs *ChangeSet) (res Result, err error) {
	if cs == nil {
		return Result{}, ErrNoChangeSet
	}
	if !c.acquire() {
		return Result{}, ErrBusy
	}
	defer c.release()

	ctx, span := c.tracer.StartTransition(ctx, "propose", cs.ID, "")
	defer func() {
		c.tracer.EndTransition(span, res, err)
		recordTransition(ctx, "propose", err == nil)
	}()

	next := cs.Clone()
	next.recompute()
	if prev := c.session.swap(next); prev != nil {
		c.forgetApplied(prev)
		c.record(ctx, journal.EventRetired, prev, nil, "superseded by "+next.ID)
	}

	paths := touched(next.Files)
	c.record(ctx, journal.EventProposed, next, paths, "")
	return Result{Outcome: OutcomeProposed, ChangeSetID: next.ID, Paths: paths}, nil
}

// Assess returns the reasons files need explicit confirmation before being
// applied together. Each condition contributes its own reason.
func Assess(files []ChangeFile, threshold int) []string {
	var newFiles, deletes, renames int
	for _, f := range files {
		switch {
		case f.Kind == FileDelete:
			deletes++
		case f.Kind == FileRename:
			renames++
		case f.IsNew():
			newFiles++
		}
	}

	var reasons []string
	if len(files) > threshold {
		reasons = append(reasons, fmt.Sprintf("%d files exceed the limit of %d", len(files), threshold))
	}
	if deletes > 0 {
		reasons = append(reasons, fmt.Sprintf("%d file(s) will be deleted", deletes))
	}
	if renames > 0 {
		reasons = append(reasons, fmt.Sprintf("%d file(s) will be renamed", renames))
	}
	if newFiles > 0 {
		reasons = append(reasons, fmt.Sprintf("%d new file(s) will be created", newFiles))
	}
	return reasons
}

// AcceptAll applies every file not yet on disk.
//
// # Description
//
// A ChangeSet that is already fully applied is retired and nothing is
// written. Otherwise the pending files are assessed; if any confirmation
// reason applies and confirmed is false, *ConfirmationRequiredError is
// returned with nothing written. Pending files are then written in order,
// run commands are handed to the CommandRunner and the ChangeSet becomes
// applied.
//
// # Outputs
//
//   - Result: Outcome applied, retired or partial.
//   - error: ErrBusy, ErrNoChangeSet, *ConfirmationRequiredError or *IOError.
func (c *Controller) AcceptAll(ctx context.Context, confirmed bool) (res Result, err error) {
	if !c.acquire() {
		return Result{}, ErrBusy
	}
	defer c.release()

	cur := c.session.load()
	ctx, span := c.tracer.StartTransition(ctx, "accept_all", idOf(cur), "")
	defer func() {
		c.tracer.EndTransition(span, res, err)
		recordTransition(ctx, "accept_all", err == nil)
	}()

	if cur == nil {
		return Result{}, ErrNoChangeSet
	}

	if cur.Status == StatusApplied {
		c.session.swap(nil)
		c.forgetApplied(cur)
		c.record(ctx, journal.EventRetired, cur, nil, "accepted")
		c.logger.InfoContext(ctx, "change set retired", slog.String("change_set_id", cur.ID))
		return Result{Outcome: OutcomeRetired, ChangeSetID: cur.ID}, nil
	}

	var pending []int
	var pendingFiles []ChangeFile
	for i, f := range cur.Files {
		if !f.Applied {
			pending = append(pending, i)
			pendingFiles = append(pendingFiles, f)
		}
	}

	if reasons := Assess(pendingFiles, c.config.ConfirmThreshold); len(reasons) > 0 && !confirmed {
		recordConfirmationRequired(ctx, len(reasons))
		c.logger.InfoContext(ctx, "accept all requires confirmation",
			slog.String("change_set_id", cur.ID),
			slog.Any("reasons", reasons),
		)
		return Result{}, &ConfirmationRequiredError{Reasons: reasons}
	}

	next := cur.Clone()
	var paths []string
	for step, i := range pending {
		f := next.Files[i]
		if ioErr := c.execute(ctx, next.ID, f.forward(), step+1, len(pending)); ioErr != nil {
			return c.fail(ctx, cur, next, paths, ioErr)
		}
		next.Files[i].Applied = true
		next.Applied = true
		paths = append(paths, f.TouchedPaths()...)
	}

	commands := next.Commands()
	c.enqueue(ctx, commands)

	from := cur.Status
	next.Applied = true
	next.recompute()
	c.session.swap(next)
	c.tracer.RecordStatusTransition(ctx, next.ID, from, next.Status)
	c.watch(paths)
	c.record(ctx, journal.EventApplied, next, paths, "")

	c.logger.InfoContext(ctx, "change set applied",
		slog.String("change_set_id", next.ID),
		slog.Int("files", len(pending)),
		slog.Int("commands", len(commands)),
	)
	return Result{Outcome: OutcomeApplied, ChangeSetID: next.ID, Paths: paths, Commands: commands}, nil
}

// RejectAll reverts every applied file, or discards the ChangeSet when
// nothing has been applied.
//
// # Description
//
// Applied files are undone in reverse order with their inverse operation.
// Paths edited outside the controller since apply are reported in
// Result.Drifted and still reverted.
//
// # Outputs
//
//   - Result: Outcome reverted, discarded or partial.
//   - error: ErrBusy, ErrNoChangeSet or *IOError.
func (c *Controller) RejectAll(ctx context.Context) (res Result, err error) {
	if !c.acquire() {
		return Result{}, ErrBusy
	}
	defer c.release()

	cur := c.session.load()
	ctx, span := c.tracer.StartTransition(ctx, "reject_all", idOf(cur), "")
	defer func() {
		c.tracer.EndTransition(span, res, err)
		recordTransition(ctx, "reject_all", err == nil)
	}()

	if cur == nil {
		return Result{}, ErrNoChangeSet
	}

	var applied []int
	for i, f := range cur.Files {
		if f.Applied {
			applied = append(applied, i)
		}
	}

	if len(applied) == 0 {
		c.session.swap(nil)
		c.record(ctx, journal.EventDiscarded, cur, nil, "")
		c.logger.InfoContext(ctx, "change set discarded", slog.String("change_set_id", cur.ID))
		return Result{Outcome: OutcomeDiscarded, ChangeSetID: cur.ID}, nil
	}

	appliedPaths := touched(cur.AppliedFiles())
	var drifted []string
	if c.config.Drift != nil {
		drifted = c.config.Drift.Drifted(appliedPaths)
		c.config.Drift.Forget(appliedPaths)
	}
	if len(drifted) > 0 {
		c.logger.WarnContext(ctx, "reverting files edited since apply",
			slog.String("change_set_id", cur.ID),
			slog.Any("paths", drifted),
		)
	}

	next := cur.Clone()
	var paths []string
	for step := range applied {
		i := applied[len(applied)-1-step]
		f := next.Files[i]
		if ioErr := c.execute(ctx, next.ID, f.inverse(), step+1, len(applied)); ioErr != nil {
			res, err = c.fail(ctx, cur, next, paths, ioErr)
			res.Drifted = drifted
			return res, err
		}
		next.Files[i].Applied = false
		paths = append(paths, f.TouchedPaths()...)
	}

	c.session.swap(nil)
	c.tracer.RecordStatusTransition(ctx, cur.ID, cur.Status, StatusProposed)
	c.record(ctx, journal.EventReverted, cur, paths, "")

	c.logger.InfoContext(ctx, "change set reverted",
		slog.String("change_set_id", cur.ID),
		slog.Int("files", len(applied)),
	)
	return Result{Outcome: OutcomeReverted, ChangeSetID: cur.ID, Paths: paths, Drifted: drifted}, nil
}

// AcceptFile applies the file matching path, if it is not applied yet, and
// removes it from the ChangeSet.
//
// The ChangeSet is flagged Applied afterwards. Remaining files keep their
// own Applied state and are written by a later AcceptAll.
func (c *Controller) AcceptFile(ctx context.Context, path string) (res Result, err error) {
	if !c.acquire() {
		return Result{}, ErrBusy
	}
	defer c.release()

	cur := c.session.load()
	ctx, span := c.tracer.StartTransition(ctx, "accept_file", idOf(cur), path)
	defer func() {
		c.tracer.EndTransition(span, res, err)
		recordTransition(ctx, "accept_file", err == nil)
	}()

	if cur == nil {
		return Result{}, ErrNoChangeSet
	}
	i := cur.indexOf(path)
	if i < 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	next := cur.Clone()
	f := next.Files[i]
	if !f.Applied {
		if ioErr := c.execute(ctx, next.ID, f.forward(), 1, 1); ioErr != nil {
			return Result{Outcome: OutcomePartial, ChangeSetID: next.ID}, ioErr
		}
	}
	// Accepted files leave the set and are no longer revertible.
	if c.config.Drift != nil {
		c.config.Drift.Forget(f.TouchedPaths())
	}

	next.Applied = true
	next.removeFile(i)
	c.record(ctx, journal.EventFileAccepted, next, f.TouchedPaths(), f.Path)
	c.settle(ctx, cur, next)

	return Result{Outcome: OutcomeFileAccepted, ChangeSetID: next.ID, Paths: f.TouchedPaths()}, nil
}

// RejectFile removes the file matching path from the ChangeSet, reverting
// it first when it is applied.
func (c *Controller) RejectFile(ctx context.Context, path string) (res Result, err error) {
	if !c.acquire() {
		return Result{}, ErrBusy
	}
	defer c.release()

	cur := c.session.load()
	ctx, span := c.tracer.StartTransition(ctx, "reject_file", idOf(cur), path)
	defer func() {
		c.tracer.EndTransition(span, res, err)
		recordTransition(ctx, "reject_file", err == nil)
	}()

	if cur == nil {
		return Result{}, ErrNoChangeSet
	}
	i := cur.indexOf(path)
	if i < 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	next := cur.Clone()
	f := next.Files[i]
	if f.Applied {
		if c.config.Drift != nil {
			c.config.Drift.Forget(f.TouchedPaths())
		}
		if ioErr := c.execute(ctx, next.ID, f.inverse(), 1, 1); ioErr != nil {
			c.watch(f.TouchedPaths())
			return Result{Outcome: OutcomePartial, ChangeSetID: next.ID}, ioErr
		}
	}

	next.removeFile(i)
	c.record(ctx, journal.EventFileRejected, next, f.TouchedPaths(), f.Path)
	c.settle(ctx, cur, next)

	return Result{Outcome: OutcomeFileRejected, ChangeSetID: next.ID, Paths: f.TouchedPaths()}, nil
}

// =============================================================================
// Internal
// =============================================================================

func (c *Controller) acquire() bool {
	return c.busy.CompareAndSwap(false, true)
}

func (c *Controller) release() {
	c.busy.Store(false)
}

// settle stores next after a single-file transition, retiring it when no
// files remain.
func (c *Controller) settle(ctx context.Context, cur, next *ChangeSet) {
	if len(next.Files) == 0 {
		c.session.swap(nil)
		if cmds := next.Commands(); len(cmds) > 0 {
			c.logger.WarnContext(ctx, "retiring change set with unqueued commands",
				slog.String("change_set_id", next.ID),
				slog.Any("commands", cmds),
			)
		}
		c.record(ctx, journal.EventRetired, next, nil, "no files remain")
		return
	}
	c.session.swap(next)
	c.tracer.RecordStatusTransition(ctx, next.ID, cur.Status, next.Status)
}

// fail records a partially completed apply or revert and returns ioErr.
func (c *Controller) fail(ctx context.Context, cur, next *ChangeSet, paths []string, ioErr *IOError) (Result, error) {
	next.recompute()
	c.session.swap(next)
	c.tracer.RecordStatusTransition(ctx, next.ID, cur.Status, next.Status)
	c.watch(touched(next.AppliedFiles()))
	c.record(ctx, journal.EventPartial, next, paths, ioErr.Error())

	c.logger.ErrorContext(ctx, "change set operation failed",
		slog.String("change_set_id", next.ID),
		slog.String("op", ioErr.Op),
		slog.String("path", ioErr.Path),
		slog.String("error", ioErr.Err.Error()),
	)
	return Result{Outcome: OutcomePartial, ChangeSetID: next.ID, Paths: paths}, ioErr
}

// execute performs one workspace mutation and reports it to observers.
func (c *Controller) execute(ctx context.Context, csID string, op edit.Operation, step, total int) *IOError {
	label := op.Path
	if op.Kind == edit.KindRename {
		label = op.From + renameArrow + op.To
	}
	name := string(op.Kind)

	ctx, span := c.tracer.StartFileOp(ctx, name, label)
	var err error
	switch op.Kind {
	case edit.KindWrite:
		err = c.ws.WriteFile(ctx, op.Path, op.Content)
	case edit.KindDelete:
		err = c.ws.DeleteFile(ctx, op.Path)
	case edit.KindRename:
		err = c.ws.RenamePath(ctx, op.From, op.To)
	default:
		err = fmt.Errorf("unsupported operation %q", op.Kind)
	}
	c.tracer.EndFileOp(span, err)
	recordFileOp(ctx, name, err == nil)

	ev := ProgressEvent{ChangeSetID: csID, Step: step, Total: total, Op: name, Path: label}
	if err != nil {
		ev.Error = err.Error()
	}
	c.emit(ev)

	if err != nil {
		return &IOError{Op: name, Path: label, Err: err}
	}
	LoggerWithTrace(ctx, c.logger).DebugContext(ctx, "workspace step",
		slog.String("op", name),
		slog.String("path", label),
		slog.Int("step", step),
		slog.Int("total", total),
	)
	return nil
}

func (c *Controller) emit(ev ProgressEvent) {
	c.obsMu.Lock()
	fns := make([]func(ProgressEvent), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.obsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Controller) enqueue(ctx context.Context, commands []string) {
	if len(commands) == 0 {
		return
	}
	if c.config.Runner == nil {
		c.logger.WarnContext(ctx, "no command runner configured, dropping commands",
			slog.Any("commands", commands),
		)
		return
	}
	for _, cmd := range commands {
		if err := c.config.Runner.Enqueue(ctx, cmd); err != nil {
			c.logger.WarnContext(ctx, "failed to enqueue command",
				slog.String("command", cmd),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Controller) watch(paths []string) {
	if c.config.Drift != nil && len(paths) > 0 {
		c.config.Drift.Watch(paths)
	}
}

func (c *Controller) forgetApplied(cs *ChangeSet) {
	if c.config.Drift != nil {
		c.config.Drift.Forget(touched(cs.AppliedFiles()))
	}
}

func (c *Controller) record(ctx context.Context, typ journal.EventType, cs *ChangeSet, paths []string, detail string) {
	if c.config.Journal == nil {
		return
	}
	ev := journal.Event{
		Type:        typ,
		ChangeSetID: cs.ID,
		Paths:       paths,
		Detail:      detail,
	}
	if err := c.config.Journal.Record(ctx, ev); err != nil {
		c.logger.WarnContext(ctx, "failed to record journal event",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
	}
}

func touched(files []ChangeFile) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.TouchedPaths()...)
	}
	return out
}

func idOf(cs *ChangeSet) string {
	if cs == nil {
		return ""
	}
	return cs.ID
}

// =============================================================================
// CommandQueue
// =============================================================================

// CommandQueue is an in-memory CommandRunner that collects commands for a
// caller to run later.
type CommandQueue struct {
	mu      sync.Mutex
	pending []string
}

// NewCommandQueue creates an empty queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// Enqueue appends command.
func (q *CommandQueue) Enqueue(_ context.Context, command string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, command)
	return nil
}

// Pending returns a copy of the queued commands.
func (q *CommandQueue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.pending...)
}

// Drain returns the queued commands and empties the queue.
func (q *CommandQueue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}
