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

import "sync"

// Session holds the single live ChangeSet.
//
// Stored values are never mutated; writers swap in a new value.
type Session struct {
	mu      sync.RWMutex
	current *ChangeSet
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// Current returns a copy of the live ChangeSet, or nil.
func (s *Session) Current() *ChangeSet {
	return s.load().Clone()
}

// load returns the live value itself. Callers must not modify it.
func (s *Session) load() *ChangeSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// swap replaces the live value and returns the previous one.
func (s *Session) swap(next *ChangeSet) *ChangeSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current
	s.current = next
	return prev
}
