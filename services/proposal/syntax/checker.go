// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syntax flags syntax errors in proposed file content using
// tree-sitter.
//
// Diagnostics are warnings attached to a change for the reviewer. They
// never block a proposal.
package syntax

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const (
	// DefaultMaxDiagnostics caps the diagnostics reported per file.
	DefaultMaxDiagnostics = 10

	maxDepth = 1000
)

// Checker parses content with the tree-sitter grammar for the file's
// extension and reports ERROR and MISSING nodes.
//
// # Thread Safety
//
// Safe for concurrent use. A parser is created per call.
type Checker struct {
	maxDiagnostics int
	logger         *slog.Logger
}

// NewChecker creates a Checker. maxDiagnostics <= 0 uses the default.
func NewChecker(maxDiagnostics int, logger *slog.Logger) *Checker {
	if maxDiagnostics <= 0 {
		maxDiagnostics = DefaultMaxDiagnostics
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		maxDiagnostics: maxDiagnostics,
		logger:         logger.With("component", "syntax.Checker"),
	}
}

// Language returns the language name for path, or "" when unsupported.
func Language(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py", ".pyi":
		return "python"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".sh", ".bash":
		return "bash"
	default:
		return ""
	}
}

func grammar(lang string) *sitter.Language {
	switch lang {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	case "tsx":
		return tsx.GetLanguage()
	case "bash":
		return bash.GetLanguage()
	default:
		return nil
	}
}

// Check returns diagnostics of the form "line L, col C: message" for
// content at path. Unsupported extensions return nil.
func (c *Checker) Check(path, content string) []string {
	lang := Language(path)
	if lang == "" {
		return nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar(lang))

	src := []byte(content)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		c.logger.Warn("syntax parse failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}

	var out []string
	c.collect(root, src, &out, 0)
	return out
}

func (c *Checker) collect(node *sitter.Node, src []byte, out *[]string, depth int) {
	if node == nil || depth > maxDepth || len(*out) >= c.maxDiagnostics {
		return
	}

	if node.IsMissing() || node.IsError() {
		*out = append(*out, describe(node, src))
		// Children of an ERROR node repeat the same problem.
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		c.collect(node.Child(i), src, out, depth+1)
	}
}

func describe(node *sitter.Node, src []byte) string {
	p := node.StartPoint()
	pos := fmt.Sprintf("line %d, col %d", p.Row+1, p.Column+1)

	if node.IsMissing() {
		return fmt.Sprintf("%s: missing %q", pos, node.Type())
	}

	start, end := node.StartByte(), node.EndByte()
	if end > uint32(len(src)) {
		end = uint32(len(src))
	}
	text := strings.TrimSpace(string(src[start:end]))
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > 40 {
		text = text[:40] + "..."
	}
	if text == "" {
		return pos + ": syntax error"
	}
	return fmt.Sprintf("%s: unexpected %q", pos, text)
}
