// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"context"
	"sync"

	"github.com/AleutianAI/toolchain/services/chain/datatypes"
)

// ScriptedClient is a ChatClient for tests that replays a fixed
// transcript of responses.
//
// Description:
//
//	Each Chat call pops the next scripted response. When the script
//	is exhausted the client returns Fallback, or FinalErr if set.
//	Every request's message snapshot is recorded for assertions.
//
// Thread Safety: ScriptedClient is safe for concurrent use.
type ScriptedClient struct {
	mu sync.Mutex

	// Responses are returned in order, one per Chat call.
	Responses []string

	// Fallback is returned once Responses is exhausted.
	Fallback string

	// FinalErr, if non-nil, is returned once Responses is exhausted
	// instead of Fallback.
	FinalErr error

	// Requests records the message history of every call.
	Requests [][]datatypes.Message

	// ToolCounts records len(opts.Tools) of every call.
	ToolCounts []int

	next int
}

// Chat implements ChatClient by replaying the script.
func (s *ScriptedClient) Chat(_ context.Context, messages []datatypes.Message, opts ChatOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]datatypes.Message, len(messages))
	copy(snapshot, messages)
	s.Requests = append(s.Requests, snapshot)
	s.ToolCounts = append(s.ToolCounts, len(opts.Tools))

	if s.next >= len(s.Responses) {
		if s.FinalErr != nil {
			return "", s.FinalErr
		}
		return s.Fallback, nil
	}

	resp := s.Responses[s.next]
	s.next++
	return resp, nil
}

// CallCount returns how many Chat calls were made.
func (s *ScriptedClient) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
