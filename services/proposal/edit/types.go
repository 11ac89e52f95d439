// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package edit defines edit operations proposed by an assistant and the
// normalization that turns untrusted operations into workspace-safe ones.
//
// # Description
//
// An Operation is one of write, patch, delete, rename or run. Assistants
// frequently emit a single combined git diff for several files, use absolute
// paths, or try to escape the workspace with "..". Normalize splits combined
// diffs into per-file operations and sanitizes every path so downstream code
// only ever sees workspace-relative, slash-separated, traversal-free paths.
//
// # Thread Safety
//
// All functions are pure and safe for concurrent use.
package edit

import (
	"encoding/json"
	"strings"
)

// OpKind identifies the variant of an Operation.
type OpKind string

const (
	// KindWrite replaces (or creates) a file with Content.
	KindWrite OpKind = "write"

	// KindPatch applies the unified diff in Diff to Path.
	KindPatch OpKind = "patch"

	// KindDelete removes Path.
	KindDelete OpKind = "delete"

	// KindRename moves From to To.
	KindRename OpKind = "rename"

	// KindRun queues Command for the command runner. It never touches files.
	KindRun OpKind = "run"
)

// Operation is a single edit proposed by the assistant.
//
// # Description
//
// Operation is a tagged union keyed by Kind. Only the fields of the active
// variant are meaningful:
//
//   - write:  Path, Content
//   - patch:  Path, Diff
//   - delete: Path
//   - rename: From, To
//   - run:    Command
//
// # JSON
//
// Field names follow the assistant schema ("op", "path", "content", "diff",
// "from", "to", "command"). The aliases "patch" and "diffText" are accepted
// for diff, and "cmd" for command.
//
// # Validation
//
// Struct tags are checked by Validate with go-playground/validator.
type Operation struct {
	Kind    OpKind `json:"op" validate:"required,oneof=write patch delete rename run"`
	Path    string `json:"path,omitempty" validate:"required_if=Kind write,required_if=Kind patch,required_if=Kind delete"`
	Content string `json:"content,omitempty"`
	Diff    string `json:"diff,omitempty" validate:"required_if=Kind patch"`
	From    string `json:"from,omitempty" validate:"required_if=Kind rename"`
	To      string `json:"to,omitempty" validate:"required_if=Kind rename"`
	Command string `json:"command,omitempty" validate:"required_if=Kind run"`
}

// UnmarshalJSON decodes an Operation, accepting field aliases.
func (o *Operation) UnmarshalJSON(data []byte) error {
	type plain Operation
	var raw struct {
		plain
		Patch    string `json:"patch"`
		DiffText string `json:"diffText"`
		Cmd      string `json:"cmd"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*o = Operation(raw.plain)
	o.Kind = OpKind(strings.ToLower(strings.TrimSpace(string(o.Kind))))
	if o.Diff == "" {
		o.Diff = firstNonEmpty(raw.Patch, raw.DiffText)
	}
	if o.Command == "" {
		o.Command = raw.Cmd
	}
	return nil
}

// Write returns a write operation.
func Write(path, content string) Operation {
	return Operation{Kind: KindWrite, Path: path, Content: content}
}

// Patch returns a patch operation.
func Patch(path, diff string) Operation {
	return Operation{Kind: KindPatch, Path: path, Diff: diff}
}

// Delete returns a delete operation.
func Delete(path string) Operation {
	return Operation{Kind: KindDelete, Path: path}
}

// Rename returns a rename operation.
func Rename(from, to string) Operation {
	return Operation{Kind: KindRename, From: from, To: to}
}

// Run returns a run operation.
func Run(command string) Operation {
	return Operation{Kind: KindRun, Command: command}
}

// Target returns the path the operation is about. Renames report To; run
// operations report an empty string.
func (o Operation) Target() string {
	switch o.Kind {
	case KindRename:
		return o.To
	case KindRun:
		return ""
	default:
		return o.Path
	}
}

// TouchesFiles reports whether the operation mutates the workspace.
func (o Operation) TouchesFiles() bool {
	return o.Kind != KindRun
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
