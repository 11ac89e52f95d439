// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleWindow is how long events for a freshly watched path are
// attributed to our own write rather than to an external editor.
const DefaultSettleWindow = 100 * time.Millisecond

// DriftWatcher reports applied files that were modified outside the
// proposal engine.
//
// # Description
//
// After a change set is applied, the controller calls Watch with the
// applied paths. Their parent directories are added to an fsnotify watcher
// (directory watches survive atomic rename-into-place). Any later event on
// a watched path marks it drifted. Events that arrive within the settle
// window after Watch are ignored, since they are the tail of our own write.
//
// # Thread Safety
//
// Safe for concurrent use. Events are processed on a single goroutine.
type DriftWatcher struct {
	root    string
	settle  time.Duration
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu        sync.Mutex
	watchedAt map[string]time.Time // abs path -> Watch time
	dirs      map[string]int       // abs dir -> watched file count
	drifted   map[string]struct{}  // abs path

	done     chan struct{}
	stopOnce sync.Once
}

// NewDriftWatcher creates a watcher for files under root.
//
// # Inputs
//
//   - ctx: Stops event processing when canceled.
//   - root: Absolute workspace root.
//   - settle: Settle window. Zero uses DefaultSettleWindow; negative disables it.
//   - logger: Logger for watcher errors. Nil uses slog.Default().
//
// # Outputs
//
//   - *DriftWatcher: Running watcher. Call Stop to release it.
//   - error: Non-nil if fsnotify could not be initialized.
func NewDriftWatcher(ctx context.Context, root string, settle time.Duration, logger *slog.Logger) (*DriftWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if settle == 0 {
		settle = DefaultSettleWindow
	}
	if settle < 0 {
		settle = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &DriftWatcher{
		root:      filepath.Clean(root),
		settle:    settle,
		watcher:   watcher,
		logger:    logger.With("component", "workspace.DriftWatcher"),
		watchedAt: make(map[string]time.Time),
		dirs:      make(map[string]int),
		drifted:   make(map[string]struct{}),
		done:      make(chan struct{}),
	}
	go w.processEvents(ctx)
	return w, nil
}

// Watch starts tracking the given workspace-relative paths and clears any
// previous drift for them.
func (w *DriftWatcher) Watch(paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	for _, rel := range paths {
		abs, ok := w.abs(rel)
		if !ok {
			continue
		}
		delete(w.drifted, abs)
		if _, already := w.watchedAt[abs]; !already {
			w.addDir(filepath.Dir(abs))
		}
		w.watchedAt[abs] = now
	}
}

// Forget stops tracking the given paths.
func (w *DriftWatcher) Forget(paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, rel := range paths {
		abs, ok := w.abs(rel)
		if !ok {
			continue
		}
		delete(w.drifted, abs)
		if _, watched := w.watchedAt[abs]; !watched {
			continue
		}
		delete(w.watchedAt, abs)
		w.removeDir(filepath.Dir(abs))
	}
}

// Drifted returns the subset of paths modified externally since Watch.
func (w *DriftWatcher) Drifted(paths []string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	for _, rel := range paths {
		abs, ok := w.abs(rel)
		if !ok {
			continue
		}
		if _, d := w.drifted[abs]; d {
			out = append(out, rel)
		}
	}
	return out
}

// Stop releases the fsnotify watcher.
func (w *DriftWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
	})
}

func (w *DriftWatcher) abs(rel string) (string, bool) {
	clean, err := ValidateRelative(rel)
	if err != nil {
		return "", false
	}
	return filepath.Join(w.root, filepath.FromSlash(clean)), true
}

// addDir must be called with w.mu held.
func (w *DriftWatcher) addDir(dir string) {
	w.dirs[dir]++
	if w.dirs[dir] > 1 {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("failed to watch directory", "dir", dir, "error", err)
	}
}

// removeDir must be called with w.mu held.
func (w *DriftWatcher) removeDir(dir string) {
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return
	}
	delete(w.dirs, dir)
	_ = w.watcher.Remove(dir)
}

func (w *DriftWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			w.record(filepath.Clean(event.Name), time.Now())

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *DriftWatcher) record(abs string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	since, watched := w.watchedAt[abs]
	if !watched || at.Sub(since) < w.settle {
		return
	}
	if _, already := w.drifted[abs]; !already {
		w.logger.Debug("external change detected", "path", abs)
	}
	w.drifted[abs] = struct{}{}
}
