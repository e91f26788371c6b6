// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/toolchain/services/chain/datatypes"
)

var duplicateSuppressions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "toolchain_duplicate_calls_suppressed_total",
	Help: "Tool calls suppressed by the per-turn anti-loop filter",
}, []string{"tool"})

// DuplicateFilter blocks identical tool calls within one user turn.
//
// Description:
//
//	A model stuck in a loop re-emits the same call with the same
//	arguments. The filter keys calls by their deterministic signature
//	(name plus sorted arguments) and scopes the set to the current
//	turn: BeginTurn clears it, so a later turn may legitimately repeat
//	a call. A suppressed call slot still gets a synthetic tool message
//	from the executor — dropping it silently would leave the
//	backend-visible history malformed.
//
// Thread Safety: DuplicateFilter is safe for concurrent use.
type DuplicateFilter struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDuplicateFilter creates a filter with an empty turn scope.
func NewDuplicateFilter() *DuplicateFilter {
	return &DuplicateFilter{seen: make(map[string]struct{})}
}

// BeginTurn clears the signature set for a new user turn.
func (f *DuplicateFilter) BeginTurn() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = make(map[string]struct{})
}

// ShouldExecute reports whether the call has not yet run this turn.
func (f *DuplicateFilter) ShouldExecute(call datatypes.ToolCall) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, dup := f.seen[call.Signature()]
	if dup {
		duplicateSuppressions.WithLabelValues(call.Name).Inc()
	}
	return !dup
}

// RecordExecuted marks the call as executed for the rest of the turn.
func (f *DuplicateFilter) RecordExecuted(call datatypes.ToolCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[call.Signature()] = struct{}{}
}
