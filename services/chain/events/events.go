// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events carries the progress events the engine emits while a
// turn or a research pipeline runs.
//
// Emission is fire-and-forget: observers that fall behind drop events
// rather than slowing the turn loop down.
//
// Thread Safety:
//
//	Emitter is safe for concurrent use.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened.
type EventType string

const (
	// TurnStarted fires when a user turn begins processing.
	TurnStarted EventType = "turn_started"

	// TurnCompleted fires when a turn produces its final answer,
	// degraded or not.
	TurnCompleted EventType = "turn_completed"

	// ToolExecuted fires after each dispatched tool call.
	ToolExecuted EventType = "tool_executed"

	// DuplicateSuppressed fires when the anti-loop filter blocks a
	// repeated call within one turn.
	DuplicateSuppressed EventType = "duplicate_suppressed"

	// ChainReset fires when the depth counter resets mid-conversation.
	ChainReset EventType = "chain_reset"

	// PhaseStarted fires when a research phase begins.
	PhaseStarted EventType = "phase_started"

	// PhaseCompleted fires when a research phase finishes.
	PhaseCompleted EventType = "phase_completed"

	// PhaseSkipped fires when a phase's prerequisite state is empty.
	PhaseSkipped EventType = "phase_skipped"
)

// Event is one engine progress notification.
type Event struct {
	// ID is a unique event identifier.
	ID string `json:"id"`

	// Type identifies what happened.
	Type EventType `json:"type"`

	// TurnID ties the event to a turn, when applicable.
	TurnID string `json:"turn_id,omitempty"`

	// Tool is the tool name for tool-scoped events.
	Tool string `json:"tool,omitempty"`

	// Phase is the phase name for pipeline-scoped events.
	Phase string `json:"phase,omitempty"`

	// Detail is a short human-readable description.
	Detail string `json:"detail,omitempty"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
}

// Observer receives events. Callbacks must not block.
type Observer func(Event)

// Emitter fans events out to registered observers.
//
// Thread Safety: Emitter is safe for concurrent use. A nil *Emitter is
// valid and drops all events, so callers need no nil checks.
type Emitter struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEmitter creates an emitter with no observers.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe registers an observer for all subsequent events.
func (e *Emitter) Subscribe(obs Observer) {
	if e == nil || obs == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, obs)
}

// Emit delivers an event to every observer, synchronously and in
// registration order. The ID and timestamp are filled in here.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}

	ev.ID = uuid.NewString()
	ev.Timestamp = time.Now().UTC()

	e.mu.RLock()
	observers := e.observers
	e.mu.RUnlock()

	for _, obs := range observers {
		obs(ev)
	}
}
