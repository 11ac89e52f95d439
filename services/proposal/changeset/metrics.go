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
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instruments are the change set meters, created on first use against
// whatever MeterProvider is installed by then.
type instruments struct {
	builds        metric.Int64Counter
	buildSeconds  metric.Float64Histogram
	buildFiles    metric.Int64Histogram
	transitions   metric.Int64Counter
	fileOps       metric.Int64Counter
	fileFailures  metric.Int64Counter
	confirmations metric.Int64Counter
}

var loadInstruments = sync.OnceValues(func() (*instruments, error) {
	m := otel.Meter("aleutian.changeset")
	var in instruments
	var errs [7]error

	in.builds, errs[0] = m.Int64Counter("changeset_build_total",
		metric.WithDescription("Change set builds"))
	in.buildSeconds, errs[1] = m.Float64Histogram("changeset_build_duration_seconds",
		metric.WithDescription("Time spent building a change set"),
		metric.WithUnit("s"))
	in.buildFiles, errs[2] = m.Int64Histogram("changeset_files",
		metric.WithDescription("Files per successfully built change set"))
	in.transitions, errs[3] = m.Int64Counter("changeset_transition_total",
		metric.WithDescription("Controller transitions by op and status"))
	in.fileOps, errs[4] = m.Int64Counter("changeset_files_written_total",
		metric.WithDescription("Workspace writes, deletes and renames performed"))
	in.fileFailures, errs[5] = m.Int64Counter("changeset_io_failures_total",
		metric.WithDescription("Workspace mutations that failed"))
	in.confirmations, errs[6] = m.Int64Counter("changeset_confirmation_required_total",
		metric.WithDescription("Accept-all calls held for confirmation"))

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &in, nil
})

// metricsOn gates every record call. On by default.
var metricsOn atomic.Bool

func init() {
	metricsOn.Store(true)
}

// SetMetricsEnabled turns change set metrics on or off process-wide.
func SetMetricsEnabled(enabled bool) {
	metricsOn.Store(enabled)
}

// meters returns the instruments, or nil when metrics are off or the
// instruments could not be created.
func meters() *instruments {
	if !metricsOn.Load() {
		return nil
	}
	in, err := loadInstruments()
	if err != nil {
		return nil
	}
	return in
}

func statusAttr(success bool) attribute.KeyValue {
	if success {
		return attribute.String("status", "success")
	}
	return attribute.String("status", "error")
}

// recordBuild records one Build call. files is ignored on failure.
func recordBuild(ctx context.Context, duration time.Duration, files int, success bool) {
	in := meters()
	if in == nil {
		return
	}
	attrs := metric.WithAttributes(statusAttr(success))
	in.builds.Add(ctx, 1, attrs)
	in.buildSeconds.Record(ctx, duration.Seconds(), attrs)
	if success {
		in.buildFiles.Record(ctx, int64(files))
	}
}

func recordTransition(ctx context.Context, op string, success bool) {
	if in := meters(); in != nil {
		in.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			statusAttr(success),
		))
	}
}

func recordFileOp(ctx context.Context, op string, success bool) {
	in := meters()
	if in == nil {
		return
	}
	counter := in.fileOps
	if !success {
		counter = in.fileFailures
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func recordConfirmationRequired(ctx context.Context, reasons int) {
	if in := meters(); in != nil {
		in.confirmations.Add(ctx, 1, metric.WithAttributes(attribute.Int("reasons", reasons)))
	}
}
