// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation owns the ordered message history and the running
// tool-chain depth counter for one conversation.
//
// The depth counter and the history are deliberately decoupled: a chain
// reset zeroes the counter without discarding history, because "looks
// deep" (counter) and "has useful context" (history) are different
// questions. History size is bounded separately by compression.
//
// Thread Safety:
//
//	ChainState is safe for concurrent use, though the executor drives
//	it from a single goroutine per conversation.
package conversation

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/toolchain/services/chain/datatypes"
	"github.com/AleutianAI/toolchain/services/chain/wire"
)

// Prometheus metrics for conversation state management.
var (
	historyCompressions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "toolchain_history_compressions_total",
		Help: "History compressions triggered by the size bound",
	})

	chainResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toolchain_chain_resets_total",
		Help: "Chain depth resets by reset mode",
	}, []string{"mode"})
)

// Default limits. Override via Options.
const (
	// DefaultMaxChainDepth is the consecutive tool-call depth at
	// which the chain counter resets. LFM2-class models start losing
	// the thread around five consecutive tool turns.
	DefaultMaxChainDepth = 5

	// DefaultMaxHistoryMessages is the history length that triggers
	// compression.
	DefaultMaxHistoryMessages = 20

	// DefaultKeepRecent is the verbatim tail size kept by compression.
	DefaultKeepRecent = 10

	// summaryNamedCalls is how many dropped tool calls the synthesized
	// summary names before truncating with a count.
	summaryNamedCalls = 5
)

// ResetMode selects what a chain reset discards.
type ResetMode string

const (
	// ResetCounterOnly zeroes the depth counter and keeps the full
	// history, so cached tool results stay visible to the model.
	// This is the default.
	ResetCounterOnly ResetMode = "counter_only"

	// ResetClearHistory zeroes the counter and drops everything
	// except the leading system message. Use when stale tool results
	// would mislead more than help.
	ResetClearHistory ResetMode = "clear_history"
)

// Options configures a ChainState. The zero value selects all defaults.
type Options struct {
	// MaxChainDepth is the reset threshold. 0 means
	// DefaultMaxChainDepth.
	MaxChainDepth int

	// MaxHistoryMessages is the compression threshold. 0 means
	// DefaultMaxHistoryMessages.
	MaxHistoryMessages int

	// KeepRecent is the verbatim tail kept by compression. 0 means
	// DefaultKeepRecent.
	KeepRecent int

	// ResetMode selects reset semantics. Empty means ResetCounterOnly.
	ResetMode ResetMode
}

func (o Options) withDefaults() Options {
	if o.MaxChainDepth <= 0 {
		o.MaxChainDepth = DefaultMaxChainDepth
	}
	if o.MaxHistoryMessages <= 0 {
		o.MaxHistoryMessages = DefaultMaxHistoryMessages
	}
	if o.KeepRecent <= 0 {
		o.KeepRecent = DefaultKeepRecent
	}
	if o.ResetMode == "" {
		o.ResetMode = ResetCounterOnly
	}
	return o
}

// ChainState is the per-conversation message history plus the running
// tool-chain depth counter.
//
// Description:
//
//	chainDepth increments exactly once per assistant message that
//	contains at least one tool call and never decrements except via
//	ResetChain. The history is append-only except during compression.
//
// Thread Safety: ChainState is safe for concurrent use.
type ChainState struct {
	mu         sync.Mutex
	messages   []datatypes.Message
	chainDepth int
	opts       Options
}

// NewChainState creates a state with the given limits.
func NewChainState(opts Options) *ChainState {
	return &ChainState{opts: opts.withDefaults()}
}

// Append adds a message to the history.
//
// Description:
//
//	An assistant message carrying at least one tool call bumps the
//	chain depth. When the history grows past MaxHistoryMessages the
//	middle segment is compressed in place.
//
// Inputs:
//
//	msg - The message to append.
func (s *ChainState) Append(msg datatypes.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)

	if msg.Role == datatypes.RoleAssistant && wire.ContainsToolCalls(msg.Content) {
		s.chainDepth++
	}

	if len(s.messages) > s.opts.MaxHistoryMessages {
		s.compressLocked()
	}
}

// Compress shrinks the history to first message + summary + recent tail.
//
// Description:
//
//	The history becomes exactly: the original first message (the
//	system/instructions message), one synthesized system message
//	summarizing the dropped middle segment, then the last KeepRecent
//	messages verbatim. The summary counts dropped tool calls and
//	names up to five of them. When the droppable middle is empty the
//	call is a no-op, so Compress is safe to call defensively.
func (s *ChainState) Compress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compressLocked()
}

func (s *ChainState) compressLocked() {
	keep := s.opts.KeepRecent
	if len(s.messages) <= keep+1 {
		return
	}

	first := s.messages[0]
	middle := s.messages[1 : len(s.messages)-keep]
	if len(middle) == 0 {
		return
	}

	summary := summarizeDropped(middle)
	tail := s.messages[len(s.messages)-keep:]

	compressed := make([]datatypes.Message, 0, keep+2)
	compressed = append(compressed, first, datatypes.SystemMessage(summary))
	compressed = append(compressed, tail...)
	s.messages = compressed

	historyCompressions.Inc()
	slog.Info("Compressed conversation history",
		slog.Int("dropped", len(middle)),
		slog.Int("kept", len(compressed)),
	)
}

// summarizeDropped builds the synthesized summary system message for a
// dropped middle segment.
func summarizeDropped(dropped []datatypes.Message) string {
	var calls []string
	for _, msg := range dropped {
		if msg.Role != datatypes.RoleAssistant {
			continue
		}
		for _, call := range wire.ParseCalls(msg.Content) {
			calls = append(calls, call.Raw)
		}
	}

	if len(calls) == 0 {
		return fmt.Sprintf("[Earlier conversation compressed: %d messages removed]", len(dropped))
	}

	named := calls
	if len(named) > summaryNamedCalls {
		named = named[:summaryNamedCalls]
	}
	summary := fmt.Sprintf(
		"[Earlier conversation compressed: %d messages removed, containing %d tool call(s) including: %s]",
		len(dropped), len(calls), strings.Join(named, ", "),
	)
	return summary
}

// ShouldResetChain reports whether the depth counter reached the
// configured maximum.
func (s *ChainState) ShouldResetChain() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainDepth >= s.opts.MaxChainDepth
}

// ResetChain zeroes the depth counter.
//
// Description:
//
//	Under ResetCounterOnly (the default) the history is untouched —
//	cached tool results remain visible. Under ResetClearHistory the
//	history collapses to the leading system message, if any.
func (s *ChainState) ResetChain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chainDepth = 0

	if s.opts.ResetMode == ResetClearHistory {
		if len(s.messages) > 0 && s.messages[0].Role == datatypes.RoleSystem {
			s.messages = s.messages[:1]
		} else {
			s.messages = nil
		}
	}

	chainResets.WithLabelValues(string(s.opts.ResetMode)).Inc()
	slog.Debug("Chain depth reset", slog.String("mode", string(s.opts.ResetMode)))
}

// Messages returns a copy of the current history.
func (s *ChainState) Messages() []datatypes.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]datatypes.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the current history length.
func (s *ChainState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// ChainDepth returns the current depth counter.
func (s *ChainState) ChainDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainDepth
}
