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
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianProposals/services/proposal/diff"
	"github.com/AleutianAI/AleutianProposals/services/proposal/edit"
	"github.com/AleutianAI/AleutianProposals/services/proposal/workspace"
)

// DefaultReadConcurrency bounds concurrent workspace reads during a build.
const DefaultReadConcurrency = 8

// SyntaxChecker reports syntax problems in proposed file content.
type SyntaxChecker interface {
	// Check returns human-readable diagnostics for content at path.
	// Unsupported file types return nil.
	Check(path, content string) []string
}

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	// ReadConcurrency bounds concurrent reads. Default: 8.
	ReadConcurrency int

	// Buffers supplies unsaved editor content, preferred over disk.
	// Optional.
	Buffers workspace.BufferProvider

	// Syntax attaches warnings to written files. Optional.
	Syntax SyntaxChecker

	// TracingEnabled enables OpenTelemetry spans.
	TracingEnabled bool

	// Logger for build diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// Builder assembles ChangeSets from edit operations.
//
// # Thread Safety
//
// Safe for concurrent use. Build only reads from the workspace.
type Builder struct {
	ws     workspace.Workspace
	config BuilderConfig
	logger *slog.Logger
	tracer *Tracer
}

// NewBuilder creates a Builder reading from ws.
func NewBuilder(ws workspace.Workspace, config BuilderConfig) *Builder {
	if config.ReadConcurrency <= 0 {
		config.ReadConcurrency = DefaultReadConcurrency
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "changeset.Builder")

	return &Builder{
		ws:     ws,
		config: config,
		logger: logger,
		tracer: NewTracer(logger, config.TracingEnabled),
	}
}

// fileKey identifies a ChangeFile for deduplication.
type fileKey struct {
	kind FileKind
	path string
}

// Build computes the ChangeSet for edits.
//
// # Description
//
// Reads the current content of every path the edits touch, then folds the
// edits in declared order. Operations on the same (kind, path) collapse to
// one ChangeFile at the position of the last occurrence, which decides the
// final content. Before values are then replayed over the collapsed order,
// so applying the files in order and undoing them in reverse both hold. Patches apply to the content left by earlier
// edits on the same path and are recorded as writes. Run operations produce
// no files but are kept in Edits.
//
// # Inputs
//
//   - ctx: Context for reads and tracing.
//   - edits: Normalized, validated operations.
//
// # Outputs
//
//   - *ChangeSet: The proposal, Status proposed.
//   - error: *diff.PatchError (wrapped with the path) when a patch does not
//     apply, a read error other than a missing file, or ErrNoChanges.
func (b *Builder) Build(ctx context.Context, edits []edit.Operation) (cs *ChangeSet, err error) {
	start := time.Now()
	ctx, span := b.tracer.StartBuild(ctx, len(edits))
	defer func() {
		b.tracer.EndBuild(span, cs, err)
		files := 0
		if cs != nil {
			files = len(cs.Files)
		}
		recordBuild(ctx, time.Since(start), files, err == nil)
	}()

	current, err := b.readAll(ctx, edits)
	if err != nil {
		return nil, err
	}

	disk := maps.Clone(current)

	var files []ChangeFile
	upsert := func(key fileKey, f ChangeFile) {
		i := slices.IndexFunc(files, func(g ChangeFile) bool {
			return g.Kind == key.kind && g.Path == key.path
		})
		if i >= 0 {
			files = slices.Delete(files, i, i+1)
		}
		files = append(files, f)
	}

	for _, op := range edits {
		switch op.Kind {
		case edit.KindWrite:
			after := op.Content
			upsert(fileKey{FileWrite, op.Path}, ChangeFile{
				Kind:   FileWrite,
				Path:   op.Path,
				Before: clonePtr(current[op.Path]),
				After:  &after,
			})
			current[op.Path] = &after

		case edit.KindPatch:
			after, perr := diff.ApplyPatch(deref(current[op.Path]), op.Diff)
			if perr != nil {
				return nil, fmt.Errorf("patching %s: %w", op.Path, perr)
			}
			upsert(fileKey{FileWrite, op.Path}, ChangeFile{
				Kind:   FileWrite,
				Path:   op.Path,
				Before: clonePtr(current[op.Path]),
				After:  &after,
			})
			current[op.Path] = &after

		case edit.KindDelete:
			upsert(fileKey{FileDelete, op.Path}, ChangeFile{
				Kind:   FileDelete,
				Path:   op.Path,
				Before: clonePtr(current[op.Path]),
			})
			current[op.Path] = nil

		case edit.KindRename:
			content := current[op.From]
			display := op.From + renameArrow + op.To
			upsert(fileKey{FileRename, display}, ChangeFile{
				Kind:   FileRename,
				Path:   display,
				From:   op.From,
				To:     op.To,
				Before: clonePtr(content),
				After:  clonePtr(content),
			})
			current[op.To] = content
			current[op.From] = nil
		}
	}

	rebase(files, disk)

	cs = &ChangeSet{
		ID:        uuid.NewString(),
		Edits:     slices.Clone(edits),
		Files:     files,
		CreatedAt: time.Now().UTC(),
	}
	if len(cs.Files) == 0 && len(cs.Commands()) == 0 {
		return nil, ErrNoChanges
	}

	if b.config.Syntax != nil {
		for i := range cs.Files {
			f := &cs.Files[i]
			if f.Kind == FileWrite && f.After != nil {
				f.Warnings = b.config.Syntax.Check(f.Path, *f.After)
			}
		}
	}
	cs.recompute()

	b.logger.InfoContext(ctx, "change set built",
		slog.String("change_set_id", cs.ID),
		slog.Int("files", cs.Stats.FilesChanged),
		slog.Int("lines_added", cs.Stats.LinesAdded),
		slog.Int("lines_removed", cs.Stats.LinesRemoved),
		slog.Int("commands", len(cs.Commands())),
	)
	return cs, nil
}

// rebase sets each file's Before to the content left by the files ahead of
// it, starting from disk. Rename content moves with the rename.
func rebase(files []ChangeFile, disk map[string]*string) {
	state := maps.Clone(disk)
	for i := range files {
		f := &files[i]
		switch f.Kind {
		case FileRename:
			content := state[f.From]
			f.Before = clonePtr(content)
			f.After = clonePtr(content)
			state[f.To] = content
			state[f.From] = nil
		case FileDelete:
			f.Before = clonePtr(state[f.Path])
			state[f.Path] = nil
		default:
			f.Before = clonePtr(state[f.Path])
			state[f.Path] = f.After
		}
	}
}

// readAll reads every distinct source path in edits.
//
// # Outputs
//
//   - map[string]*string: Content per path. A nil value means the file does
//     not exist.
//   - error: The first read failure other than a missing file.
func (b *Builder) readAll(ctx context.Context, edits []edit.Operation) (map[string]*string, error) {
	var paths []string
	seen := make(map[string]struct{})
	for _, op := range edits {
		var p string
		switch op.Kind {
		case edit.KindRename:
			p = op.From
		case edit.KindRun:
			continue
		default:
			p = op.Path
		}
		if _, ok := seen[p]; ok || p == "" {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}

	contents := make([]*string, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.ReadConcurrency)
	for i, p := range paths {
		g.Go(func() error {
			content, err := b.read(gctx, p)
			if err != nil {
				return fmt.Errorf("reading %s: %w", p, err)
			}
			contents[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	current := make(map[string]*string, len(paths))
	for i, p := range paths {
		current[p] = contents[i]
	}
	return current, nil
}

func (b *Builder) read(ctx context.Context, path string) (*string, error) {
	if b.config.Buffers != nil {
		if content, ok := b.config.Buffers.OpenBuffer(path); ok {
			return &content, nil
		}
	}
	content, err := b.ws.ReadFile(ctx, path)
	if errors.Is(err, workspace.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &content, nil
}
