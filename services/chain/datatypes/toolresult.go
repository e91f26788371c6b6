// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"fmt"
)

// ToolError is a recoverable tool-level failure carried in a result.
type ToolError struct {
	// Kind is the failure classification.
	Kind ErrorKind `json:"kind"`

	// Message is the model-visible failure description.
	Message string `json:"message"`
}

// ToolResult is the outcome of dispatching one tool call.
//
// Description:
//
//	Exactly one of Payload or Err is meaningful. Either way the
//	result is serialized into a tool-role message, so tool-level
//	failures stay visible to the model instead of raising.
type ToolResult struct {
	// Payload is the JSON-serializable success value.
	Payload any

	// Err is the tool-level failure, nil on success.
	Err *ToolError
}

// SuccessResult wraps a payload in a successful ToolResult.
func SuccessResult(payload any) ToolResult {
	return ToolResult{Payload: payload}
}

// ErrorResult builds a failed ToolResult.
func ErrorResult(kind ErrorKind, format string, args ...any) ToolResult {
	return ToolResult{Err: &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// IsError returns true if the result carries a tool-level failure.
func (r ToolResult) IsError() bool {
	return r.Err != nil
}

// Content serializes the result for a tool-role message.
//
// Description:
//
//	Success payloads marshal directly. Failures marshal as
//	{"error": message} so the shape matches what the original mock
//	tools emitted and the model already understands. Marshal failures
//	degrade to an error object rather than propagating.
//
// Outputs:
//
//	string - JSON content for the tool message. Never empty.
func (r ToolResult) Content() string {
	if r.Err != nil {
		data, err := json.Marshal(map[string]string{"error": r.Err.Message})
		if err != nil {
			return `{"error":"unserializable tool error"}`
		}
		return string(data)
	}

	data, err := json.Marshal(r.Payload)
	if err != nil {
		data, _ = json.Marshal(map[string]string{
			"error": fmt.Sprintf("unserializable tool result: %v", err),
		})
		return string(data)
	}
	return string(data)
}
