// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package probe measures how deep a model can follow tool-call chains
// and how far back it can recall tool results.
//
// The probes run real turn loops against a synthetic record store, so
// the numbers reflect the same engine path production traffic takes.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/toolchain/services/chain/backend"
	"github.com/AleutianAI/toolchain/services/chain/conversation"
	"github.com/AleutianAI/toolchain/services/chain/datatypes"
	"github.com/AleutianAI/toolchain/services/chain/executor"
	"github.com/AleutianAI/toolchain/services/chain/tools"
)

// Probe limits.
const (
	// DefaultMaxProbedDepth is the deepest chain the depth probe
	// attempts.
	DefaultMaxProbedDepth = 15

	// retentionRecords is how many records the retention probe seeds.
	retentionRecords = 8

	// extraIterations is the slack over the expected depth before a
	// run counts as stuck.
	extraIterations = 5
)

// retentionProbeIndexes are the record positions the retention probe
// asks about: a spread from oldest to newest.
var retentionProbeIndexes = []int{0, 2, 4, 6, 7}

// Options configures a Prober.
type Options struct {
	// MaxProbedDepth is the deepest chain attempted. 0 means
	// DefaultMaxProbedDepth.
	MaxProbedDepth int

	// MaxTokens per completion. 0 lets the backend default apply.
	MaxTokens int
}

// DepthResult is one depth attempt.
type DepthResult struct {
	// Depth is the chain length attempted.
	Depth int `json:"depth"`

	// Success means a final answer arrived within the slack budget.
	Success bool `json:"success"`

	// ToolsCalled counts executed tool calls during the attempt.
	ToolsCalled int `json:"tools_called"`

	// Expected is the tool-call count a perfect run would make.
	Expected int `json:"expected"`
}

// DepthReport is the depth probe outcome.
type DepthReport struct {
	// Results holds one entry per attempted depth, in order.
	Results []DepthResult `json:"results"`

	// MaxReliableDepth is the deepest successful chain.
	MaxReliableDepth int `json:"max_reliable_depth"`
}

// RecallResult is one retention query.
type RecallResult struct {
	// Index is the probed record position.
	Index int `json:"index"`

	// Recalled means the answer contained the record's unique payload.
	Recalled bool `json:"recalled"`
}

// RetentionReport is the retention probe outcome.
type RetentionReport struct {
	Results []RecallResult `json:"results"`

	// RecallRate is recalled / probed.
	RecallRate float64 `json:"recall_rate"`
}

// Prober runs chain-limit experiments against one backend.
type Prober struct {
	client backend.ChatClient
	opts   Options
}

// NewProber creates a prober.
func NewProber(client backend.ChatClient, opts Options) *Prober {
	if opts.MaxProbedDepth <= 0 {
		opts.MaxProbedDepth = DefaultMaxProbedDepth
	}
	return &Prober{client: client, opts: opts}
}

// recordStore registers a read_record tool over an in-memory map.
func recordStore(records map[string]string) (*tools.Registry, error) {
	reg := tools.NewRegistry()
	err := reg.Register(tools.NewHandler(
		datatypes.NewFunctionSchema("read_record",
			"Read a named record and return its content",
			map[string]datatypes.PropertySchema{
				"name": {Type: "string", Description: "Record name"},
			}, "name"),
		func(_ context.Context, call datatypes.ToolCall) (any, error) {
			name := call.StringArg("name")
			content, ok := records[name]
			if !ok {
				return map[string]string{"error": "Record not found"}, nil
			}
			return map[string]string{"name": name, "content": content}, nil
		}))
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// ProbeChainDepth attempts progressively deeper chains until one fails.
//
// Description:
//
//	For each depth d, seeds d records, asks the model to read them all
//	in order, and counts a run successful when a final answer arrives
//	within d plus slack iterations. Probing stops at the first failed
//	depth; the report carries every attempt.
//
// Outputs:
//
//	DepthReport - Per-depth outcomes and the maximum reliable depth.
//	error - Non-nil only on backend-level failure.
func (p *Prober) ProbeChainDepth(ctx context.Context) (DepthReport, error) {
	var report DepthReport

	for depth := 1; depth <= p.opts.MaxProbedDepth; depth++ {
		records := make(map[string]string, depth)
		names := make([]string, 0, depth)
		for i := 0; i < depth; i++ {
			name := fmt.Sprintf("record_%d", i)
			records[name] = fmt.Sprintf("Record %d data", i)
			names = append(names, name)
		}

		reg, err := recordStore(records)
		if err != nil {
			return DepthReport{}, fmt.Errorf("ProbeChainDepth: %w", err)
		}

		exec := executor.NewExecutor(p.client, reg, executor.Options{
			MaxIterationsPerTurn: depth + extraIterations,
			MaxTokens:            p.opts.MaxTokens,
		})
		state := conversation.NewChainState(conversation.Options{
			MaxChainDepth:      depth + extraIterations,
			MaxHistoryMessages: 4 * (depth + extraIterations),
		})

		prompt := fmt.Sprintf(
			"Read these %d records in order using read_record and tell me their contents: %s",
			depth, strings.Join(names, ", "))

		result, err := exec.RunTurn(ctx, state, prompt)
		if err != nil {
			return DepthReport{}, fmt.Errorf("ProbeChainDepth: depth %d: %w", depth, err)
		}

		attempt := DepthResult{
			Depth:       depth,
			Success:     !result.Degraded,
			ToolsCalled: result.ToolCallsExecuted,
			Expected:    depth,
		}
		report.Results = append(report.Results, attempt)

		slog.Info("Depth probe attempt finished",
			slog.Int("depth", depth),
			slog.Bool("success", attempt.Success),
			slog.Int("tools_called", attempt.ToolsCalled),
		)

		if !attempt.Success {
			break
		}
		report.MaxReliableDepth = depth
	}

	return report, nil
}

// ProbeHistoryRetention measures recall of earlier tool results.
//
// Description:
//
//	Seeds records with unique payloads, runs one turn that reads them
//	all, then asks recall questions about a spread of positions in the
//	same conversation. A position counts as recalled when the answer
//	quotes the record's unique payload verbatim.
func (p *Prober) ProbeHistoryRetention(ctx context.Context) (RetentionReport, error) {
	records := make(map[string]string, retentionRecords)
	payloads := make([]string, retentionRecords)
	for i := 0; i < retentionRecords; i++ {
		payload := fmt.Sprintf("UNIQUE_DATA_%d_%s", i, strings.Repeat("X", i*3))
		records[fmt.Sprintf("history_%d", i)] = payload
		payloads[i] = payload
	}

	reg, err := recordStore(records)
	if err != nil {
		return RetentionReport{}, fmt.Errorf("ProbeHistoryRetention: %w", err)
	}

	exec := executor.NewExecutor(p.client, reg, executor.Options{
		MaxIterationsPerTurn: 20,
		MaxTokens:            p.opts.MaxTokens,
	})
	// Retention is a model property; keep the engine's own history
	// management out of the measurement.
	state := conversation.NewChainState(conversation.Options{
		MaxChainDepth:      100,
		MaxHistoryMessages: 200,
		KeepRecent:         100,
	})

	prompt := fmt.Sprintf(
		"Read records history_0 through history_%d using read_record, one at a time.",
		retentionRecords-1)
	if _, err := exec.RunTurn(ctx, state, prompt); err != nil {
		return RetentionReport{}, fmt.Errorf("ProbeHistoryRetention: reading records: %w", err)
	}

	var report RetentionReport
	recalled := 0
	for _, idx := range retentionProbeIndexes {
		question := fmt.Sprintf(
			"What was the content of history_%d that you read earlier?", idx)

		result, err := exec.RunTurn(ctx, state, question)
		if err != nil {
			return RetentionReport{}, fmt.Errorf("ProbeHistoryRetention: recall %d: %w", idx, err)
		}

		ok := strings.Contains(result.Answer, payloads[idx])
		if ok {
			recalled++
		}
		report.Results = append(report.Results, RecallResult{Index: idx, Recalled: ok})

		slog.Info("Retention probe recall",
			slog.Int("index", idx),
			slog.Bool("recalled", ok),
		)
	}

	report.RecallRate = float64(recalled) / float64(len(retentionProbeIndexes))
	return report, nil
}
