// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_ZeroIsInfo(t *testing.T) {
	var cfg Config
	if cfg.Level != LevelInfo {
		t.Errorf("zero Config.Level = %v, want %v", cfg.Level, LevelInfo)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warning ", LevelWarn, false},
		{"warn", LevelWarn, false},
		{"Error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownLevel) {
					t.Fatalf("ParseLevel(%q) error = %v, want ErrUnknownLevel", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNew_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Output: &buf, Service: "test"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer logger.Close()

	logger.Info("change set proposed", "files", 3)

	out := buf.String()
	if !strings.Contains(out, "msg=\"change set proposed\"") {
		t.Errorf("text output missing message: %q", out)
	}
	if !strings.Contains(out, "service=test") {
		t.Errorf("text output missing service attribute: %q", out)
	}
	if !strings.Contains(out, "files=3") {
		t.Errorf("text output missing attribute: %q", out)
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Output: &buf, Format: FormatJSON})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	logger.Warn("drift detected", "path", "a.go")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "drift detected" || rec["path"] != "a.go" || rec["level"] != "WARN" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestNew_AutoFormatNonFile(t *testing.T) {
	// A non-file writer is never a terminal and gets text.
	if useJSON(FormatAuto, &bytes.Buffer{}) {
		t.Error("useJSON(auto, buffer) = true, want false")
	}
	if !useJSON(FormatJSON, &bytes.Buffer{}) {
		t.Error("useJSON(json, buffer) = false, want true")
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Output: &buf, Level: LevelWarn})

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	out := buf.String()
	if strings.Contains(out, "msg=debug") || strings.Contains(out, "msg=info") {
		t.Errorf("messages below Warn were not filtered: %q", out)
	}
	if !strings.Contains(out, "msg=warn") || !strings.Contains(out, "msg=error") {
		t.Errorf("Warn and Error missing: %q", out)
	}
}

func TestNew_QuietWithoutFile(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Output: &buf, Quiet: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// With no destination at all the logger falls back to Output.
	logger.Info("fallback")
	if !strings.Contains(buf.String(), "fallback") {
		t.Errorf("fallback output missing: %q", buf.String())
	}
}

// =============================================================================
// File Logging Tests
// =============================================================================

func TestNew_WithLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, err := New(Config{LogDir: dir, Service: "test", Quiet: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	path := logger.FilePath()
	if !strings.HasPrefix(filepath.Base(path), "test_") || filepath.Ext(path) != ".log" {
		t.Errorf("unexpected log file name %q", path)
	}

	logger.With("change_set_id", "cs-1").Info("applied", "paths", 2)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("log file is empty")
	}
	var rec map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
		t.Fatalf("file record is not JSON: %v", err)
	}
	if rec["change_set_id"] != "cs-1" || rec["service"] != "test" || rec["msg"] != "applied" {
		t.Errorf("unexpected file record: %v", rec)
	}
}

func TestNew_WithLogDir_NoService(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{LogDir: dir, Quiet: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer logger.Close()

	if !strings.HasPrefix(filepath.Base(logger.FilePath()), "proposals_") {
		t.Errorf("expected proposals_ prefix, got %q", logger.FilePath())
	}
}

func TestNew_WithLogDir_Invalid(t *testing.T) {
	// A regular file where the directory should be.
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger, err := New(Config{LogDir: filepath.Join(blocker, "logs"), Output: &buf})
	if err == nil {
		t.Fatal("New() with unusable LogDir returned nil error")
	}
	if logger == nil {
		t.Fatal("New() returned nil logger")
	}
	if logger.FilePath() != "" {
		t.Errorf("FilePath() = %q, want empty", logger.FilePath())
	}

	logger.Info("still works")
	if !strings.Contains(buf.String(), "still works") {
		t.Error("logger did not fall back to stderr output")
	}
}

func TestNew_MultiHandler(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{LogDir: t.TempDir(), Output: &buf, Format: FormatText})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer logger.Close()

	if _, ok := logger.Slog().Handler().(teeHandler); !ok {
		t.Fatalf("handler is %T, want teeHandler", logger.Slog().Handler())
	}

	logger.Slog().WithGroup("req").Info("grouped", "id", 1)
	if !strings.Contains(buf.String(), "req.id=1") {
		t.Errorf("group missing from stderr output: %q", buf.String())
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Fatal("Default() returned nil")
	}
	if logger.config.Level != LevelInfo {
		t.Errorf("Default level = %v, want LevelInfo", logger.config.Level)
	}
	if logger.config.Service != "proposals" {
		t.Errorf("Default service = %q, want proposals", logger.config.Service)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/.aleutian/logs"); got != filepath.Join(home, ".aleutian/logs") {
		t.Errorf("ExpandPath(~/...) = %q", got)
	}
	if got := ExpandPath("/var/log"); got != "/var/log" {
		t.Errorf("ExpandPath(/var/log) = %q", got)
	}
	if got := ExpandPath("~user/x"); got != "~user/x" {
		t.Errorf("ExpandPath(~user/x) = %q", got)
	}
}
