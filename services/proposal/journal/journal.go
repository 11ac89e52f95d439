// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package journal records change set lifecycle events in BadgerDB.
//
// # Description
//
// Every transition a Controller performs (proposed, applied, reverted, and
// so on) is appended as an Event. Keys are ordered by a BadgerDB sequence,
// so listing returns events in the order they were recorded. The journal is
// an audit trail; it is never consulted to decide controller behavior.
//
// # Thread Safety
//
// Journal is safe for concurrent use.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// EventType is the kind of lifecycle transition.
type EventType string

const (
	EventProposed     EventType = "proposed"
	EventApplied      EventType = "applied"
	EventPartial      EventType = "partial"
	EventFileAccepted EventType = "file_accepted"
	EventFileRejected EventType = "file_rejected"
	EventReverted     EventType = "reverted"
	EventDiscarded    EventType = "discarded"
	EventRetired      EventType = "retired"
)

const (
	eventPrefix = "evt/"
	seqKey      = "seq/events"
	seqLease    = 64
)

// ErrClosed indicates the journal has been closed.
var ErrClosed = errors.New("journal closed")

// Event is one recorded transition.
type Event struct {
	Seq         uint64    `json:"seq"`
	Type        EventType `json:"type"`
	ChangeSetID string    `json:"change_set_id"`
	Paths       []string  `json:"paths,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Time        time.Time `json:"time"`
}

// Journal is an append-only event log backed by BadgerDB.
type Journal struct {
	db     *badger.DB
	seq    *badger.Sequence
	gc     *gcRunner
	logger *slog.Logger
}

// Open opens (or creates) a journal.
//
// # Inputs
//
//   - cfg: Storage configuration. Use DefaultConfig or InMemoryConfig.
//
// # Outputs
//
//   - *Journal: Ready-to-use journal. Call Close when done.
//   - error: Non-nil if BadgerDB cannot be opened.
func Open(cfg Config) (*Journal, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	seq, err := db.GetSequence([]byte(seqKey), seqLease)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("acquire journal sequence: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	j := &Journal{
		db:     db,
		seq:    seq,
		logger: logger.With("component", "journal.Journal"),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		j.gc = startGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, j.logger)
	}
	return j, nil
}

// OpenInMemory opens an in-memory journal.
func OpenInMemory() (*Journal, error) {
	return Open(InMemoryConfig())
}

// Record appends ev. Seq and Time are assigned when zero.
func (j *Journal) Record(ctx context.Context, ev Event) error {
	if j.db.IsClosed() {
		return ErrClosed
	}

	n, err := j.seq.Next()
	if err != nil {
		return fmt.Errorf("next journal sequence: %w", err)
	}
	// Sequence starts at 0; keep 0 meaning "unassigned".
	ev.Seq = n + 1
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode journal event: %w", err)
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(ev.Seq), data)
	})
	if err != nil {
		return fmt.Errorf("write journal event: %w", err)
	}

	j.logger.DebugContext(ctx, "journal event recorded",
		slog.String("type", string(ev.Type)),
		slog.String("change_set_id", ev.ChangeSetID),
		slog.Uint64("seq", ev.Seq),
	)
	return nil
}

// List returns the most recent events, oldest first. A limit of zero or
// less returns every event.
func (j *Journal) List(ctx context.Context, limit int) ([]Event, error) {
	return j.collect(ctx, limit, func(Event) bool { return true })
}

// ForChangeSet returns every event recorded for id, oldest first.
func (j *Journal) ForChangeSet(ctx context.Context, id string) ([]Event, error) {
	return j.collect(ctx, 0, func(ev Event) bool { return ev.ChangeSetID == id })
}

func (j *Journal) collect(ctx context.Context, limit int, keep func(Event) bool) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if j.db.IsClosed() {
		return nil, ErrClosed
	}

	var events []Event
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(eventPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must seek past the last key with the prefix.
		seekKey := append([]byte(eventPrefix), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(opts.Prefix); it.Next() {
			var ev Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			})
			if err != nil {
				return fmt.Errorf("decode journal event: %w", err)
			}
			if !keep(ev) {
				continue
			}
			events = append(events, ev)
			if limit > 0 && len(events) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Collected newest first.
	for i, k := 0, len(events)-1; i < k; i, k = i+1, k-1 {
		events[i], events[k] = events[k], events[i]
	}
	return events, nil
}

// Close releases the sequence lease and closes BadgerDB.
func (j *Journal) Close() error {
	if j.gc != nil {
		j.gc.stop()
	}
	if err := j.seq.Release(); err != nil {
		j.logger.Warn("failed to release journal sequence", slog.String("error", err.Error()))
	}
	return j.db.Close()
}

func eventKey(seq uint64) []byte {
	key := make([]byte, len(eventPrefix)+8)
	copy(key, eventPrefix)
	binary.BigEndian.PutUint64(key[len(eventPrefix):], seq)
	return key
}
