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
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for change set operations.
var (
	// ErrBusy indicates another controller operation is in progress.
	ErrBusy = errors.New("another change set operation is in progress")

	// ErrNoChangeSet indicates there is no live change set.
	ErrNoChangeSet = errors.New("no change set")

	// ErrFileNotFound indicates the path is not part of the change set.
	ErrFileNotFound = errors.New("file not in change set")

	// ErrNoChanges indicates the edits produced nothing to review.
	ErrNoChanges = errors.New("edits produce no changes")

	// ErrConfirmationRequired indicates accept-all needs explicit confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")
)

// ConfirmationRequiredError is returned by AcceptAll when the change set is
// large or destructive and the caller did not confirm.
//
// # Description
//
// Nothing has been written when this error is returned. The caller should
// show Reasons to the user and retry with confirmed set to true.
type ConfirmationRequiredError struct {
	Reasons []string
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("confirmation required: %s", strings.Join(e.Reasons, "; "))
}

// Is matches ErrConfirmationRequired.
func (e *ConfirmationRequiredError) Is(target error) bool {
	return target == ErrConfirmationRequired
}

// IOError reports a workspace failure during apply or revert.
//
// # Description
//
// The change set is left marked partial with the files that were written
// still flagged as applied. The operation is never retried.
type IOError struct {
	// Op is the workspace operation: "write", "delete" or "rename".
	Op string

	// Path is the file being written. For renames, "from → to".
	Path string

	// Err is the workspace error.
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("workspace %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
