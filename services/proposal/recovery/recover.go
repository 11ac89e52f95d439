// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recovery extracts structured edit proposals from raw assistant
// output that may be fenced, surrounded by prose, or truncated.
//
// # Thread Safety
//
// All functions are pure and safe for concurrent use.
package recovery

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianProposals/services/proposal/edit"
)

// PartialMessage is the message attached to edits salvaged from output
// whose enclosing object could not be parsed.
const PartialMessage = "Recovered edits from partial output."

// bulletRE matches a leading list marker: "-", "*", "•", "1." or "1)".
var bulletRE = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// Result is the structured content recovered from assistant output.
type Result struct {
	// Edits are the proposed operations. Never empty in a non-nil Result.
	Edits []edit.Operation `json:"edits"`

	// Message is assistant_message, falling back to summary.
	Message string `json:"assistant_message,omitempty"`

	// Think is free-form reasoning the assistant chose to expose.
	Think string `json:"think,omitempty"`

	// Plan is the list of planned steps, bullets stripped.
	Plan []string `json:"plan,omitempty"`

	// Verify lists the checks the assistant suggests after applying.
	Verify []string `json:"verify,omitempty"`

	// Done reports whether the assistant considers the task finished.
	Done bool `json:"done,omitempty"`

	// Partial is true when the edits were salvaged from a truncated array.
	Partial bool `json:"partial,omitempty"`
}

// envelope is the assistant output schema with loosely typed fields.
type envelope struct {
	AssistantMessage string            `json:"assistant_message"`
	Summary          string            `json:"summary"`
	Edits            []json.RawMessage `json:"edits"`
	Think            string            `json:"think"`
	Plan             json.RawMessage   `json:"plan"`
	Verify           json.RawMessage   `json:"verify"`
	Done             json.RawMessage   `json:"done"`
}

// Recover extracts edits from raw assistant output.
//
// # Description
//
// Tries, in order:
//
//  1. Strip a surrounding code fence.
//  2. Parse the whole text as the output object.
//  3. Parse the first balanced {...} in the text.
//  4. Locate "edits" and parse the array that follows it. When the array
//     is truncated, every complete element object is kept.
//
// Steps 2 and 3 only succeed when the object has a non-empty edits array.
// Individual edit objects that fail to decode are skipped.
//
// # Inputs
//
//   - raw: Assistant output text.
//
// # Outputs
//
//   - *Result: Recovered edits and metadata, or nil when nothing usable
//     was found. A nil result is not an error.
func Recover(raw string) *Result {
	text := stripCodeFences(raw)
	if text == "" {
		return nil
	}

	if res := parseEnvelope(text); res != nil {
		return res
	}
	if obj, ok := ExtractBalanced(text, '{', '}'); ok {
		if res := parseEnvelope(obj); res != nil {
			return res
		}
	}
	return recoverEditsArray(text)
}

func parseEnvelope(text string) *Result {
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil
	}

	edits := decodeEdits(env.Edits)
	if len(edits) == 0 {
		return nil
	}

	message := env.AssistantMessage
	if strings.TrimSpace(message) == "" {
		message = env.Summary
	}
	return &Result{
		Edits:   edits,
		Message: message,
		Think:   env.Think,
		Plan:    parseSteps(env.Plan),
		Verify:  parseSteps(env.Verify),
		Done:    parseBool(env.Done),
	}
}

func recoverEditsArray(text string) *Result {
	idx := strings.Index(text, `"edits"`)
	if idx < 0 {
		return nil
	}
	rest := text[idx+len(`"edits"`):]

	var elements []json.RawMessage
	if array, ok := ExtractBalanced(rest, '[', ']'); ok {
		if err := json.Unmarshal([]byte(array), &elements); err != nil {
			elements = nil
		}
	}
	if elements == nil {
		for _, obj := range completeObjects(rest) {
			elements = append(elements, json.RawMessage(obj))
		}
	}

	edits := decodeEdits(elements)
	if len(edits) == 0 {
		return nil
	}
	return &Result{Edits: edits, Message: PartialMessage, Partial: true}
}

func decodeEdits(raw []json.RawMessage) []edit.Operation {
	var edits []edit.Operation
	for _, r := range raw {
		var op edit.Operation
		if err := json.Unmarshal(r, &op); err != nil {
			continue
		}
		if op.Kind == "" {
			continue
		}
		edits = append(edits, op)
	}
	return edits
}

// parseSteps accepts either a JSON string array or a newline separated
// string and returns non-blank lines with list markers removed.
func parseSteps(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var lines []string
	var list []string
	var single string
	switch {
	case json.Unmarshal(raw, &list) == nil:
		for _, item := range list {
			lines = append(lines, strings.Split(item, "\n")...)
		}
	case json.Unmarshal(raw, &single) == nil:
		lines = strings.Split(single, "\n")
	default:
		return nil
	}

	var steps []string
	for _, line := range lines {
		line = strings.TrimSpace(bulletRE.ReplaceAllString(line, ""))
		if line != "" {
			steps = append(steps, line)
		}
	}
	return steps
}

func parseBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return b
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.EqualFold(strings.TrimSpace(s), "true")
	}
	return false
}
