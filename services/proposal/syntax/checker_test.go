// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguage(t *testing.T) {
	tests := map[string]string{
		"main.go":       "go",
		"pkg/x.PY":      "python",
		"web/app.jsx":   "javascript",
		"src/index.ts":  "typescript",
		"src/view.tsx":  "tsx",
		"run.sh":        "bash",
		"README.md":     "",
		"Makefile":      "",
		"dir.go/file.c": "",
	}
	for path, want := range tests {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, want, Language(path))
		})
	}
}

func TestChecker_Check(t *testing.T) {
	c := NewChecker(0, nil)

	t.Run("valid sources", func(t *testing.T) {
		assert.Empty(t, c.Check("a.go", "package main\n\nfunc main() {}\n"))
		assert.Empty(t, c.Check("a.py", "def f():\n    return 1\n"))
		assert.Empty(t, c.Check("a.js", "function f() { return 1; }\n"))
		assert.Empty(t, c.Check("a.ts", "const x: number = 1;\n"))
	})

	t.Run("broken go", func(t *testing.T) {
		diags := c.Check("a.go", "package main\n\nfunc main() {\n")
		assert.NotEmpty(t, diags)
		assert.Contains(t, diags[0], "line ")
	})

	t.Run("broken python", func(t *testing.T) {
		assert.NotEmpty(t, c.Check("a.py", "def f(:\n    return\n"))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		assert.Nil(t, c.Check("notes.txt", "{{{{"))
	})
}

func TestChecker_MaxDiagnostics(t *testing.T) {
	c := NewChecker(1, nil)
	diags := c.Check("a.js", "function ( { \nlet = = ;\n)))\n")
	assert.LessOrEqual(t, len(diags), 1)
}
