// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools implements the tool dispatch registry and the built-in
// tool sets.
//
// Tools are registered explicitly as typed Handler values rather than
// looked up through a name→lambda mapping with a silent fallback:
// adding a tool is a checked registration, and an unregistered name
// dispatches to a typed UnknownTool result.
//
// Thread Safety:
//
//	Registry is safe for concurrent use.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/toolchain/services/chain/datatypes"
)

var toolsTracer = otel.Tracer("toolchain.chain.tools")

// Prometheus metrics for tool dispatch.
var (
	toolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toolchain_tool_executions_total",
		Help: "Tool executions by tool name and outcome",
	}, []string{"tool", "outcome"})

	toolExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "toolchain_tool_execution_duration_seconds",
		Help:    "Tool handler execution latency",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})
)

// Handler executes one tool.
//
// Description:
//
//	Execute receives the parsed call and returns a JSON-serializable
//	payload. Handlers may mutate injected collaborator state (e.g. a
//	research-state accumulator); such side effects must happen
//	exactly once per invocation, before returning. Returned errors
//	and panics are converted by the registry into ToolExecutionFailed
//	results — they never propagate.
type Handler interface {
	// Name is the tool name as the model emits it.
	Name() string

	// Schema is the function schema advertised to the backend.
	Schema() datatypes.ToolSchema

	// Execute runs the tool.
	Execute(ctx context.Context, call datatypes.ToolCall) (any, error)
}

// HandlerFunc adapts a function plus schema into a Handler.
type HandlerFunc struct {
	schema datatypes.ToolSchema
	fn     func(ctx context.Context, call datatypes.ToolCall) (any, error)
}

// NewHandler creates a HandlerFunc. The tool name comes from the
// schema so the two can never disagree.
func NewHandler(schema datatypes.ToolSchema, fn func(ctx context.Context, call datatypes.ToolCall) (any, error)) *HandlerFunc {
	return &HandlerFunc{schema: schema, fn: fn}
}

// Name implements Handler.
func (h *HandlerFunc) Name() string { return h.schema.Function.Name }

// Schema implements Handler.
func (h *HandlerFunc) Schema() datatypes.ToolSchema { return h.schema }

// Execute implements Handler.
func (h *HandlerFunc) Execute(ctx context.Context, call datatypes.ToolCall) (any, error) {
	return h.fn(ctx, call)
}

// Registry maps tool names to handlers.
//
// Thread Safety: Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry. Use Register to add tools.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler.
//
// Description:
//
//	Registration is explicit and duplicate names are rejected so a
//	misconfigured tool set fails at wiring time, not at dispatch
//	time.
//
// Inputs:
//
//	h - The handler. Must not be nil and must have a non-empty name.
//
// Outputs:
//
//	error - Non-nil on nil handler, empty name, or duplicate name.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("Register: handler must not be nil")
	}
	name := h.Name()
	if name == "" {
		return fmt.Errorf("Register: handler has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("Register: tool %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// MustRegister registers a handler or panics. Use at wiring time only.
func (r *Registry) MustRegister(h Handler) {
	if err := r.Register(h); err != nil {
		panic(err)
	}
}

// Execute dispatches one tool call.
//
// Description:
//
//	Looks the tool up by exact name. A miss produces an UnknownTool
//	result; a handler error or panic produces a ToolExecutionFailed
//	result. Execute itself never returns an error — tool-level
//	failures are absorbed into the result so the conversation can
//	continue.
//
// Inputs:
//
//	ctx - Context for cancellation; passed through to the handler.
//	call - The parsed tool call.
//
// Outputs:
//
//	datatypes.ToolResult - The payload or a typed error result.
//
// Thread Safety: This method is safe for concurrent use.
func (r *Registry) Execute(ctx context.Context, call datatypes.ToolCall) datatypes.ToolResult {
	ctx, span := toolsTracer.Start(ctx, "tools.Registry.Execute")
	span.SetAttributes(attribute.String("tool", call.Name))
	defer span.End()

	r.mu.RLock()
	handler, ok := r.handlers[call.Name]
	r.mu.RUnlock()

	if !ok {
		slog.Warn("Dispatch miss for unknown tool", slog.String("tool", call.Name))
		toolExecutions.WithLabelValues(call.Name, "unknown").Inc()
		return datatypes.ErrorResult(datatypes.ErrorKindUnknownTool, "Unknown tool: %s", call.Name)
	}

	start := time.Now()
	payload, err := safeExecute(ctx, handler, call)
	toolExecutionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		slog.Warn("Tool execution failed",
			slog.String("tool", call.Name),
			slog.String("error", err.Error()),
		)
		toolExecutions.WithLabelValues(call.Name, "error").Inc()
		return datatypes.ErrorResult(datatypes.ErrorKindToolExecutionFailed, "%s failed: %v", call.Name, err)
	}

	toolExecutions.WithLabelValues(call.Name, "ok").Inc()
	return datatypes.SuccessResult(payload)
}

// safeExecute runs a handler with panic recovery.
func safeExecute(ctx context.Context, h Handler, call datatypes.ToolCall) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Execute(ctx, call)
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Schemas returns all tool schemas sorted by name.
//
// Description:
//
//	The sorted order keeps backend requests deterministic, which the
//	probes rely on when comparing runs.
func (r *Registry) Schemas() []datatypes.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]datatypes.ToolSchema, 0, len(r.handlers))
	for _, h := range r.handlers {
		schemas = append(schemas, h.Schema())
	}
	sort.Slice(schemas, func(i, j int) bool {
		return schemas[i].Function.Name < schemas[j].Function.Name
	})
	return schemas
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
