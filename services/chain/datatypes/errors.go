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
	"errors"
	"fmt"
)

// ErrorKind classifies a failure within the orchestration core.
//
// Description:
//
//	Backend-level kinds propagate out of the engine and abort the
//	turn. Tool-level kinds are absorbed into the conversation as
//	visible tool-result content so the model can react to them.
type ErrorKind string

const (
	// ErrorKindBackendUnavailable is a connection or timeout failure
	// calling the inference endpoint. Propagates; turn aborted.
	ErrorKindBackendUnavailable ErrorKind = "backend_unavailable"

	// ErrorKindBackendProtocol is a malformed or error-flagged backend
	// response. Propagates; turn aborted.
	ErrorKindBackendProtocol ErrorKind = "backend_protocol_error"

	// ErrorKindUnknownTool is a dispatch miss. Recovered locally as a
	// tool-message payload; the conversation continues.
	ErrorKindUnknownTool ErrorKind = "unknown_tool"

	// ErrorKindToolExecutionFailed is a handler-internal failure.
	// Recovered locally, same as UnknownTool.
	ErrorKindToolExecutionFailed ErrorKind = "tool_execution_failed"

	// ErrorKindMalformedToolCall means the parser could not extract
	// calls. Recovered locally by treating the response as a final
	// answer; recorded here only for observability.
	ErrorKindMalformedToolCall ErrorKind = "malformed_tool_call_syntax"
)

// Sentinel errors for the backend boundary. Callers use errors.Is.
var (
	// ErrBackendUnavailable wraps connection/timeout failures.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBackendProtocol wraps malformed or error-flagged responses.
	ErrBackendProtocol = errors.New("backend protocol error")
)

// BackendError attaches detail to one of the backend sentinels.
//
// Inputs:
//
//	kind - ErrBackendUnavailable or ErrBackendProtocol.
//	detail - Human-readable context.
//	cause - Underlying error (nil is allowed).
//
// Outputs:
//
//	error - Matches the sentinel via errors.Is.
func BackendError(kind error, detail string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", kind, detail)
	}
	return fmt.Errorf("%w: %s: %v", kind, detail, cause)
}

// KindOf maps an error from the backend boundary to its ErrorKind.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrBackendProtocol):
		return ErrorKindBackendProtocol
	default:
		return ErrorKindBackendUnavailable
	}
}
