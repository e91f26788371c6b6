// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package wire parses the marker-delimited tool-call syntax that
// LFM2-style models embed in free-text responses.
//
// A response signals tool calls by embedding
//
//	<|tool_call_start|> [ call1(), call2(key="value") ] <|tool_call_end|>
//
// literally inside the content; absence of the marker means "final
// answer". Parsing is total: malformed or partial syntax degrades to
// "no tool calls found" and never returns an error, so the executor's
// state machine only ever sees zero or more well-formed calls.
//
// Thread Safety:
//
//	All functions are safe for concurrent use.
package wire

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/toolchain/services/chain/datatypes"
)

// Wire markers. These are literal model-emitted token strings, not
// configuration.
const (
	ToolCallStart = "<|tool_call_start|>"
	ToolCallEnd   = "<|tool_call_end|>"
)

// Package-level compiled patterns.
var (
	// callPattern matches one name(args)-shaped token.
	callPattern = regexp.MustCompile(`\w+\([^)]*\)`)

	// argPattern matches key="value", key='value', or key=123 pairs.
	// Unquoted non-numeric values intentionally do not match; they
	// degrade to an absent argument rather than an error.
	argPattern = regexp.MustCompile(`(\w+)=(?:"([^"]*)"|'([^']*)'|(\d+))`)
)

// ContainsToolCalls reports whether the content carries the start
// marker. A response without it is a final answer.
func ContainsToolCalls(content string) bool {
	return strings.Contains(content, ToolCallStart)
}

// ExtractRawCalls returns the raw call substrings from a response.
//
// Description:
//
//	Locates the start and end markers, strips an optional enclosing
//	bracket pair, and splits the remainder into individual
//	name(args)-shaped tokens. A missing end marker, an empty call
//	list, or content with no marker at all each yield an empty
//	sequence.
//
// Inputs:
//
//	content - The raw model response text.
//
// Outputs:
//
//	[]string - Zero or more raw call strings, in wire order.
func ExtractRawCalls(content string) []string {
	start := strings.Index(content, ToolCallStart)
	if start < 0 {
		return nil
	}
	rest := content[start+len(ToolCallStart):]

	end := strings.Index(rest, ToolCallEnd)
	if end < 0 {
		return nil
	}

	body := strings.TrimSpace(rest[:end])
	body = strings.Trim(body, "[]")
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}

	return callPattern.FindAllString(body, -1)
}

// ParseCalls extracts structured tool calls from a response.
//
// Description:
//
//	Runs ExtractRawCalls and then the secondary argument pass over
//	each token. Calls are returned in the order parsed; the executor
//	runs them strictly in that order because later calls' arguments
//	may depend on human-readable context from earlier results.
//
// Inputs:
//
//	content - The raw model response text.
//
// Outputs:
//
//	[]datatypes.ToolCall - Zero or more well-formed calls. Never an
//	error: correctness responsibility sits with the executor, which
//	treats "no calls" as "final answer".
func ParseCalls(content string) []datatypes.ToolCall {
	raws := ExtractRawCalls(content)
	if len(raws) == 0 {
		return nil
	}

	calls := make([]datatypes.ToolCall, 0, len(raws))
	for _, raw := range raws {
		calls = append(calls, parseCall(raw))
	}
	return calls
}

// parseCall splits one raw token into name and arguments.
func parseCall(raw string) datatypes.ToolCall {
	name := raw
	if idx := strings.Index(raw, "("); idx >= 0 {
		name = raw[:idx]
	}

	args := make(map[string]datatypes.Arg)
	for _, m := range argPattern.FindAllStringSubmatch(raw, -1) {
		key := m[1]
		switch {
		case m[4] != "":
			n, err := strconv.Atoi(m[4])
			if err != nil {
				args[key] = datatypes.StringArg(m[4])
				continue
			}
			args[key] = datatypes.IntArg(n)
		case m[2] != "":
			args[key] = datatypes.StringArg(m[2])
		case m[3] != "":
			args[key] = datatypes.StringArg(m[3])
		default:
			// Quoted empty string.
			args[key] = datatypes.StringArg("")
		}
	}

	return datatypes.ToolCall{Name: name, Args: args, Raw: raw}
}

// WrapCalls renders raw call strings back into the wire syntax.
//
// Description:
//
//	Used by the probes and tests to build synthetic assistant
//	messages that look exactly like model output.
//
// Inputs:
//
//	raws - Raw call strings, e.g. `lookup_user(email="a@b.c")`.
//
// Outputs:
//
//	string - The full marker-delimited block.
func WrapCalls(raws ...string) string {
	return ToolCallStart + "[" + strings.Join(raws, ", ") + "]" + ToolCallEnd
}
