// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package edit

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidOperation indicates an operation missing fields its kind needs.
var ErrInvalidOperation = errors.New("invalid edit operation")

// =============================================================================
// Shared Validator Instance
// =============================================================================

// opValidate is the validator instance for edit operations.
var opValidate = validator.New()

// Validate checks that op carries every field its kind requires.
//
// # Outputs
//
//   - error: nil when valid, otherwise wraps ErrInvalidOperation and
//     names the failing fields.
func Validate(op Operation) error {
	err := opValidate.Struct(op)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return fmt.Errorf("%w: op %q missing or bad %v", ErrInvalidOperation, op.Kind, fields)
	}
	return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
}

// Rejected pairs an operation with the reason it was dropped.
type Rejected struct {
	Op  Operation
	Err error
}

// Filter splits ops into valid operations and rejected ones. Order of the
// valid operations is preserved.
func Filter(ops []Operation) (valid []Operation, rejected []Rejected) {
	for _, op := range ops {
		if err := Validate(op); err != nil {
			rejected = append(rejected, Rejected{Op: op, Err: err})
			continue
		}
		valid = append(valid, op)
	}
	return valid, rejected
}
