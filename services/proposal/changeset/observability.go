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
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const changesetTracerName = "aleutian.changeset"

// maxTracePath bounds path attributes on spans.
const maxTracePath = 256

// Tracer emits spans for builds, controller transitions and the
// individual workspace steps of an apply. A disabled Tracer hands out
// noop spans and logs nothing.
type Tracer struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	enabled bool
}

// NewTracer returns a Tracer backed by the global TracerProvider.
// A nil logger means slog.Default().
func NewTracer(logger *slog.Logger, enabled bool) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{
		tracer:  otel.Tracer(changesetTracerName),
		logger:  logger,
		enabled: enabled,
	}
}

func (t *Tracer) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// finish ends span, marking it failed when err is set. attrs are only
// recorded on success.
func finish(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	defer span.End()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}

// StartBuild opens the span covering one Builder.Build call.
func (t *Tracer) StartBuild(ctx context.Context, edits int) (context.Context, trace.Span) {
	ctx, span := t.start(ctx, "changeset.build", attribute.Int("cs.edits", edits))
	if t.enabled {
		t.logger.DebugContext(ctx, "building change set", slog.Int("edits", edits))
	}
	return ctx, span
}

// EndBuild closes a build span. cs may be nil when err is set.
func (t *Tracer) EndBuild(span trace.Span, cs *ChangeSet, err error) {
	if cs == nil {
		finish(span, err)
		return
	}
	finish(span, err,
		attribute.String("cs.id", cs.ID),
		attribute.Int("cs.files", cs.Stats.FilesChanged),
		attribute.Int("cs.lines_added", cs.Stats.LinesAdded),
		attribute.Int("cs.lines_removed", cs.Stats.LinesRemoved),
	)
}

// StartTransition opens a span named "changeset.<op>", e.g.
// changeset.accept_all. path is empty for whole-set transitions.
func (t *Tracer) StartTransition(ctx context.Context, op, csID, path string) (context.Context, trace.Span) {
	ctx, span := t.start(ctx, "changeset."+op,
		attribute.String("cs.id", csID),
		attribute.String("cs.path", truncateForTrace(path, maxTracePath)),
	)
	if t.enabled {
		t.logger.DebugContext(ctx, "change set transition",
			slog.String("op", op),
			slog.String("change_set_id", csID),
			slog.String("path", path),
		)
	}
	return ctx, span
}

// EndTransition closes a transition span with its outcome.
func (t *Tracer) EndTransition(span trace.Span, result Result, err error) {
	finish(span, err,
		attribute.String("cs.outcome", string(result.Outcome)),
		attribute.Int("cs.files_touched", len(result.Paths)),
	)
}

// StartFileOp opens a span for one write, delete or rename.
func (t *Tracer) StartFileOp(ctx context.Context, op, path string) (context.Context, trace.Span) {
	return t.start(ctx, "changeset.file."+op,
		attribute.String("cs.path", truncateForTrace(path, maxTracePath)))
}

// EndFileOp closes a workspace step span.
func (t *Tracer) EndFileOp(span trace.Span, err error) {
	finish(span, err)
}

// RecordStatusTransition adds a status_transition event to the span in
// ctx. Same-status calls are ignored.
func (t *Tracer) RecordStatusTransition(ctx context.Context, csID string, from, to Status) {
	if from == to {
		return
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		span.AddEvent("status_transition", trace.WithAttributes(
			attribute.String("cs.id", csID),
			attribute.String("cs.from_status", string(from)),
			attribute.String("cs.to_status", string(to)),
		))
	}

	t.logger.DebugContext(ctx, "change set status transition",
		slog.String("change_set_id", csID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

// truncateForTrace cuts s to at most maxLen bytes, ending in "..." when
// there is room for it.
func truncateForTrace(s string, maxLen int) string {
	switch {
	case len(s) <= maxLen:
		return s
	case maxLen <= 0:
		return ""
	case maxLen < 4:
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// LoggerWithTrace adds trace_id and span_id to logger when ctx carries a
// recording span.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
