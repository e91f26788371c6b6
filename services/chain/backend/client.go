// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend provides the chat-completion client the engine uses
// to talk to a locally hosted OpenAI-style inference endpoint.
//
// The engine is fully synchronous: one backend call is outstanding at a
// time, bounded by a fixed per-call timeout with no automatic retry.
// Only the two backend-level failure kinds (unavailable, protocol)
// propagate out of this package; see datatypes for the taxonomy.
package backend

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/toolchain/services/chain/datatypes"
)

// ChatOptions carries per-call generation parameters.
type ChatOptions struct {
	// Temperature for sampling. Zero is a valid, deliberate setting
	// for the chain probes.
	Temperature float32

	// MaxTokens caps the completion length. Zero means backend
	// default.
	MaxTokens int

	// Tools is the schema list advertised to the model. Nil means
	// "no tools" mode (used by the synthesis phase).
	Tools []datatypes.ToolSchema
}

// ChatClient issues one chat-completion request.
//
// Description:
//
//	Implementations must block until the backend responds or the
//	per-call timeout elapses, and must map failures onto the
//	datatypes backend sentinels so callers can classify with
//	errors.Is.
//
// Thread Safety: Implementations must be safe for concurrent use,
// though the engine only ever has one call in flight per conversation.
type ChatClient interface {
	Chat(ctx context.Context, messages []datatypes.Message, opts ChatOptions) (string, error)
}

// Prometheus metrics for backend calls.
var (
	chatRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "toolchain_backend_request_duration_seconds",
		Help:    "Chat-completion request latency by outcome",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"outcome"})

	chatRequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toolchain_backend_request_errors_total",
		Help: "Chat-completion request errors by kind",
	}, []string{"kind"})
)
