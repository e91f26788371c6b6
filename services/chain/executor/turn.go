// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executor runs the bounded call/execute/respond loop for a
// single user turn, plus the anti-loop duplicate filter and the recall
// cache that support it.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/toolchain/services/chain/backend"
	"github.com/AleutianAI/toolchain/services/chain/conversation"
	"github.com/AleutianAI/toolchain/services/chain/datatypes"
	"github.com/AleutianAI/toolchain/services/chain/events"
	"github.com/AleutianAI/toolchain/services/chain/tools"
	"github.com/AleutianAI/toolchain/services/chain/wire"
)

var executorTracer = otel.Tracer("toolchain.chain.executor")

// Prometheus metrics for turn execution.
var (
	turnsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toolchain_turns_completed_total",
		Help: "Completed user turns by outcome",
	}, []string{"outcome"})

	turnIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "toolchain_turn_iterations",
		Help:    "Backend round-trips used per turn",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15},
	})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "toolchain_turn_duration_seconds",
		Help:    "Wall-clock time per turn",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// DefaultMaxIterationsPerTurn bounds backend round-trips within one
// user turn.
const DefaultMaxIterationsPerTurn = 10

// degradedResponse is the model-independent answer when a turn
// exhausts its iteration budget without a final response. Fatal for
// the turn, not for the process.
const degradedResponse = "I apologize, but I wasn't able to finish this request within the " +
	"allowed number of tool steps. Please try narrowing the question or asking again."

// chainResetNotice is appended as a system message when the depth
// counter resets at turn entry. The earlier tool results stay in the
// history on purpose.
const chainResetNotice = "[Tool-chain depth limit reached; the depth counter has been reset. " +
	"Tool results earlier in this conversation remain available.]"

// duplicateNotice is the synthetic tool message for a suppressed call.
// The slot must still be filled so the backend-visible history stays
// well-formed.
const duplicateNotice = `{"note":"this exact tool call was already made this turn; see the earlier result above"}`

// Options configures an Executor. The zero value selects all defaults.
type Options struct {
	// MaxIterationsPerTurn bounds backend round-trips per turn.
	// 0 means DefaultMaxIterationsPerTurn.
	MaxIterationsPerTurn int

	// Temperature is passed through to the backend.
	Temperature float32

	// MaxTokens is passed through to the backend. 0 lets the backend
	// default apply.
	MaxTokens int

	// NoTools disables tool advertisement and execution: the turn is a
	// single backend call whose response is the final answer. The
	// synthesis phase runs in this mode.
	NoTools bool

	// ResultCacheSize bounds the recall cache. 0 means
	// DefaultResultCacheSize.
	ResultCacheSize int

	// Emitter receives progress events. Nil drops them.
	Emitter *events.Emitter
}

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	// TurnID uniquely identifies the turn in logs and events.
	TurnID string

	// Answer is the final natural-language response. On a degraded
	// turn this is the apology message.
	Answer string

	// Iterations is the number of backend round-trips used.
	Iterations int

	// ToolCallsExecuted counts dispatched (non-suppressed) calls.
	ToolCallsExecuted int

	// Suppressed counts duplicate calls blocked by the filter.
	Suppressed int

	// Degraded is true when the iteration budget ran out before a
	// tool-call-free response.
	Degraded bool
}

// Executor drives the per-turn state machine against one backend and
// one tool registry.
//
// Description:
//
//	Each turn: append the user message, reset the chain if due, then
//	loop — query the backend with the full history and tool schemas,
//	parse tool calls, execute them in wire order, feed results back —
//	until a tool-call-free response or the iteration ceiling. Tool
//	calls within one response run strictly in order: later calls'
//	arguments may depend on context from earlier results.
//
// Thread Safety:
//
//	One Executor may serve many sequential turns; concurrent turns
//	must each use their own ChainState.
type Executor struct {
	client   backend.ChatClient
	registry *tools.Registry
	opts     Options
	cache    *ResultCache
	filter   *DuplicateFilter
}

// NewExecutor creates a turn executor.
//
// Inputs:
//
//	client - The chat backend. Must not be nil.
//	registry - The tool registry; may be empty for no-tools use.
//	opts - Limits and collaborators; zero value is usable.
func NewExecutor(client backend.ChatClient, registry *tools.Registry, opts Options) *Executor {
	if opts.MaxIterationsPerTurn <= 0 {
		opts.MaxIterationsPerTurn = DefaultMaxIterationsPerTurn
	}
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return &Executor{
		client:   client,
		registry: registry,
		opts:     opts,
		cache:    NewResultCache(opts.ResultCacheSize),
		filter:   NewDuplicateFilter(),
	}
}

// Cache exposes the recall buffer of recent tool results.
func (e *Executor) Cache() *ResultCache {
	return e.cache
}

// RunTurn processes one user message to a final answer.
//
// Description:
//
//	Only backend-level failures propagate; tool-level failures are
//	absorbed into the conversation as visible tool-result content.
//	An exhausted iteration budget returns a degraded answer, not an
//	error.
//
// Inputs:
//
//	ctx - Context for the backend calls.
//	state - The conversation this turn extends. Mutated in place.
//	userInput - The user's message text.
//
// Outputs:
//
//	TurnResult - The answer plus turn accounting.
//	error - Non-nil only for backend unavailability or protocol
//	failures (matches datatypes.ErrBackendUnavailable or
//	datatypes.ErrBackendProtocol via errors.Is).
func (e *Executor) RunTurn(ctx context.Context, state *conversation.ChainState, userInput string) (TurnResult, error) {
	ctx, span := executorTracer.Start(ctx, "executor.RunTurn")
	defer span.End()

	result := TurnResult{TurnID: uuid.NewString()}
	span.SetAttributes(attribute.String("turn_id", result.TurnID))
	start := time.Now()
	defer func() { turnDuration.Observe(time.Since(start).Seconds()) }()

	e.opts.Emitter.Emit(events.Event{Type: events.TurnStarted, TurnID: result.TurnID})
	e.filter.BeginTurn()

	state.Append(datatypes.UserMessage(userInput))

	if state.ShouldResetChain() {
		state.ResetChain()
		state.Append(datatypes.SystemMessage(chainResetNotice))
		e.opts.Emitter.Emit(events.Event{Type: events.ChainReset, TurnID: result.TurnID})
		slog.Info("Chain depth reset at turn entry", slog.String("turn_id", result.TurnID))
	}

	chatOpts := backend.ChatOptions{
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	}
	if !e.opts.NoTools {
		chatOpts.Tools = e.registry.Schemas()
	}

	for i := 0; i < e.opts.MaxIterationsPerTurn; i++ {
		result.Iterations = i + 1

		content, err := e.client.Chat(ctx, state.Messages(), chatOpts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "backend call failed")
			turnsCompleted.WithLabelValues("backend_error").Inc()
			return result, fmt.Errorf("RunTurn: iteration %d: %w", result.Iterations, err)
		}

		calls := wire.ParseCalls(content)
		if len(calls) == 0 || e.opts.NoTools {
			state.Append(datatypes.AssistantMessage(content))
			result.Answer = content
			e.finish(span, &result, "final_answer")
			return result, nil
		}

		// Preserve the literal tool-call syntax in history; this is
		// also what bumps the chain depth.
		state.Append(datatypes.AssistantMessage(content))

		for _, call := range calls {
			e.executeCall(ctx, state, call, &result)
		}
	}

	state.Append(datatypes.AssistantMessage(degradedResponse))
	result.Answer = degradedResponse
	result.Degraded = true
	e.finish(span, &result, "degraded")
	slog.Warn("Turn exhausted its iteration budget",
		slog.String("turn_id", result.TurnID),
		slog.Int("iterations", result.Iterations),
	)
	return result, nil
}

// executeCall runs one parsed call through the filter and registry and
// appends the resulting tool message.
func (e *Executor) executeCall(ctx context.Context, state *conversation.ChainState, call datatypes.ToolCall, result *TurnResult) {
	if !e.filter.ShouldExecute(call) {
		result.Suppressed++
		state.Append(datatypes.ToolMessage(duplicateNotice))
		e.opts.Emitter.Emit(events.Event{
			Type:   events.DuplicateSuppressed,
			TurnID: result.TurnID,
			Tool:   call.Name,
		})
		slog.Debug("Suppressed duplicate tool call",
			slog.String("turn_id", result.TurnID),
			slog.String("signature", call.Signature()),
		)
		return
	}

	toolResult := e.registry.Execute(ctx, call)
	content := toolResult.Content()

	e.filter.RecordExecuted(call)
	e.cache.Record(call, content)
	state.Append(datatypes.ToolMessage(content))
	result.ToolCallsExecuted++

	e.opts.Emitter.Emit(events.Event{
		Type:   events.ToolExecuted,
		TurnID: result.TurnID,
		Tool:   call.Name,
	})
}

// finish records the turn outcome in metrics, the span, and events.
func (e *Executor) finish(span trace.Span, result *TurnResult, outcome string) {
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("iterations", result.Iterations),
		attribute.Int("tool_calls", result.ToolCallsExecuted),
	)
	turnsCompleted.WithLabelValues(outcome).Inc()
	turnIterations.Observe(float64(result.Iterations))
	e.opts.Emitter.Emit(events.Event{
		Type:   events.TurnCompleted,
		TurnID: result.TurnID,
		Detail: outcome,
	})
}
