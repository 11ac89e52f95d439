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
	"fmt"
	"maps"
	"sort"
	"sync"
)

// Memory is an in-memory Workspace.
//
// # Description
//
// Memory follows the same contract as LocalFS, including path validation,
// so behavior observed against it carries over to disk. Failures can be
// injected per path and operation with FailOn.
//
// # Thread Safety
//
// Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	files  map[string]string
	failOn map[string]error
}

// NewMemory creates a Memory workspace seeded with files.
func NewMemory(files map[string]string) *Memory {
	m := &Memory{
		files:  make(map[string]string, len(files)),
		failOn: make(map[string]error),
	}
	maps.Copy(m.files, files)
	return m
}

// FailOn makes every op ("read", "write", "delete", "rename") on path
// return err until cleared with a nil err.
func (m *Memory) FailOn(op, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := op + ":" + path
	if err == nil {
		delete(m.failOn, key)
		return
	}
	m.failOn[key] = err
}

// Files returns a copy of the current content.
func (m *Memory) Files() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.files)
}

// Paths returns the sorted list of file paths.
func (m *Memory) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ReadFile returns the content of path.
func (m *Memory) ReadFile(_ context.Context, path string) (string, error) {
	p, err := ValidateRelative(path)
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("read", p); err != nil {
		return "", err
	}
	content, ok := m.files[p]
	if !ok {
		return "", fmt.Errorf("reading %s: %w", p, ErrNotExist)
	}
	return content, nil
}

// WriteFile stores content at path.
func (m *Memory) WriteFile(_ context.Context, path, content string) error {
	p, err := ValidateRelative(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("write", p); err != nil {
		return err
	}
	m.files[p] = content
	return nil
}

// DeleteFile removes path. A missing file is not an error.
func (m *Memory) DeleteFile(_ context.Context, path string) error {
	p, err := ValidateRelative(path)
	if err != nil {
		return err
	}
	if p == "." {
		return ErrDeleteRoot
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("delete", p); err != nil {
		return err
	}
	delete(m.files, p)
	return nil
}

// RenamePath moves from to to.
func (m *Memory) RenamePath(_ context.Context, from, to string) error {
	src, err := ValidateRelative(from)
	if err != nil {
		return err
	}
	dst, err := ValidateRelative(to)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("rename", src); err != nil {
		return err
	}
	content, ok := m.files[src]
	if !ok {
		return fmt.Errorf("renaming %s -> %s: %w", src, dst, ErrNotExist)
	}
	delete(m.files, src)
	m.files[dst] = content
	return nil
}

// failure must be called with m.mu held.
func (m *Memory) failure(op, path string) error {
	if err, ok := m.failOn[op+":"+path]; ok {
		return err
	}
	return nil
}
