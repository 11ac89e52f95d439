// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config selects where and how the journal stores events.
type Config struct {
	// Path is the journal directory, created on open. Unused in memory.
	Path string

	// InMemory keeps events only for the life of the process.
	InMemory bool

	// SyncWrites fsyncs every recorded event.
	SyncWrites bool

	// Logger receives badger's own diagnostics. Nil silences them.
	Logger *slog.Logger

	// GCInterval between value log collections. Zero disables collection.
	GCInterval time.Duration

	// GCDiscardRatio is passed to RunValueLogGC.
	GCDiscardRatio float64
}

// DefaultConfig returns a durable journal stored under path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a journal that is lost on exit.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// slogAdapter forwards badger's printf-style logging to slog. Badger's
// info chatter is demoted to debug.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Errorf(format string, args ...interface{}) {
	a.logger.Error("badger: " + fmt.Sprintf(format, args...))
}

func (a slogAdapter) Warningf(format string, args ...interface{}) {
	a.logger.Warn("badger: " + fmt.Sprintf(format, args...))
}

func (a slogAdapter) Infof(format string, args ...interface{}) {
	a.logger.Debug("badger: " + fmt.Sprintf(format, args...))
}

func (a slogAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Debug("badger: " + fmt.Sprintf(format, args...))
}

func openDB(cfg Config) (*badger.DB, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	if !cfg.InMemory {
		if cfg.Path == "" {
			return nil, errors.New("journal path is required unless in memory")
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create journal directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	// Events are written once and never updated.
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1).WithLogger(nil)
	if cfg.Logger != nil {
		opts = opts.WithLogger(slogAdapter{logger: cfg.Logger})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal store: %w", err)
	}
	return db, nil
}

// gcRunner collects the value log on a ticker until stopped.
type gcRunner struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcRunner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &gcRunner{cancel: cancel}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := db.RunValueLogGC(ratio)
				if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
					logger.Warn("journal value log GC failed", slog.String("error", err.Error()))
				}
			}
		}
	}()
	return r
}

// stop cancels the runner and waits for an in-progress collection.
func (r *gcRunner) stop() {
	r.cancel()
	r.wg.Wait()
}
