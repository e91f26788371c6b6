// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/toolchain/services/chain/backend"
	"github.com/AleutianAI/toolchain/services/chain/conversation"
	"github.com/AleutianAI/toolchain/services/chain/datatypes"
	"github.com/AleutianAI/toolchain/services/chain/events"
	"github.com/AleutianAI/toolchain/services/chain/executor"
	"github.com/AleutianAI/toolchain/services/chain/tools"
)

var researchTracer = otel.Tracer("toolchain.chain.research")

var phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "toolchain_research_phase_duration_seconds",
	Help:    "Wall-clock time per research phase",
	Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
}, []string{"phase"})

// Phase names, in declared execution order.
const (
	PhaseExploration   = "exploration"
	PhaseInvestigation = "investigation"
	PhaseValidation    = "validation"
	PhaseSynthesis     = "synthesis"
)

// Depth presets. Higher depth unlocks later phases.
const (
	// DepthQuick runs exploration and synthesis only.
	DepthQuick = 1

	// DepthModerate adds the investigation phase.
	DepthModerate = 2

	// DepthDeep adds cross-validation.
	DepthDeep = 3
)

// Pipeline tuning.
const (
	// DefaultMaxStepsPerPhase bounds backend round-trips within one
	// phase's turn loop.
	DefaultMaxStepsPerPhase = 5

	// maxAnglesInvestigated limits the deep-dive loop; each angle
	// costs a full turn loop.
	maxAnglesInvestigated = 2

	// maxFactsValidated limits the validation prompt.
	maxFactsValidated = 3

	// synthesisTemperature is warmer than tool phases; the report is
	// prose, not calls.
	synthesisTemperature = 0.3

	// toolPhaseTemperature keeps tool emission deterministic.
	toolPhaseTemperature = 0.1
)

// Options configures a Pipeline. The zero value selects all defaults.
type Options struct {
	// MaxDepth is 1 (quick), 2 (moderate), or 3 (deep). Values
	// outside that range clamp. 0 means DepthDeep.
	MaxDepth int

	// MaxStepsPerPhase bounds each phase's turn loop. 0 means
	// DefaultMaxStepsPerPhase.
	MaxStepsPerPhase int

	// MaxTokens is passed through to the backend. 0 lets the backend
	// default apply.
	MaxTokens int

	// Emitter receives phase events. Nil drops them.
	Emitter *events.Emitter
}

func (o Options) withDefaults() Options {
	if o.MaxDepth == 0 {
		o.MaxDepth = DepthDeep
	}
	if o.MaxDepth < DepthQuick {
		o.MaxDepth = DepthQuick
	}
	if o.MaxDepth > DepthDeep {
		o.MaxDepth = DepthDeep
	}
	if o.MaxStepsPerPhase <= 0 {
		o.MaxStepsPerPhase = DefaultMaxStepsPerPhase
	}
	return o
}

// Report is the outcome of one research run.
type Report struct {
	// Topic is the researched topic.
	Topic string `json:"topic"`

	// Text is the synthesized closing report.
	Text string `json:"report"`

	// Sources are all deduplicated web sources consulted.
	Sources []Source `json:"sources"`

	// Findings is the full tool-result log.
	Findings []Finding `json:"findings"`

	// SearchesExecuted counts web searches across all phases.
	SearchesExecuted int `json:"searches_executed"`

	// PhasesCompleted counts completed (not skipped) phases.
	PhasesCompleted int `json:"phases_completed"`
}

// Pipeline sequences the research phases over one backend and one
// searcher.
//
// Description:
//
//	Each phase gets a fresh conversation (fresh message list, zero
//	depth) — phases share only the ResearchState. Investigation and
//	validation are skippable: when their prerequisite state is empty
//	they log a skip and do not bump phasesCompleted. Synthesis always
//	runs, as a single no-tools backend call over the serialized state.
//
// Thread Safety: one Research call owns its state graph; run separate
// Pipelines for concurrent research.
type Pipeline struct {
	client   backend.ChatClient
	searcher Searcher
	opts     Options
}

// NewPipeline creates a research pipeline.
func NewPipeline(client backend.ChatClient, searcher Searcher, opts Options) *Pipeline {
	return &Pipeline{client: client, searcher: searcher, opts: opts.withDefaults()}
}

// Research runs the full phase sequence for a topic.
//
// Outputs:
//
//	Report - The synthesized report plus accumulated state.
//	error - Non-nil only on backend-level failure; the run aborts at
//	the failing phase.
func (p *Pipeline) Research(ctx context.Context, topic string) (Report, error) {
	ctx, span := researchTracer.Start(ctx, "research.Pipeline.Research")
	span.SetAttributes(
		attribute.String("topic", topic),
		attribute.Int("max_depth", p.opts.MaxDepth),
	)
	defer span.End()

	state := NewState(topic)

	reg := tools.NewRegistry()
	if err := RegisterResearchTools(reg, p.searcher, state); err != nil {
		return Report{}, fmt.Errorf("Research: registering tools: %w", err)
	}

	if err := p.runExploration(ctx, reg, state); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exploration failed")
		return Report{}, err
	}

	if p.opts.MaxDepth >= DepthModerate {
		if err := p.runInvestigation(ctx, reg, state); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "investigation failed")
			return Report{}, err
		}
	}

	if p.opts.MaxDepth >= DepthDeep {
		if err := p.runValidation(ctx, reg, state); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "validation failed")
			return Report{}, err
		}
	}

	text, err := p.runSynthesis(ctx, state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return Report{}, err
	}

	return Report{
		Topic:            topic,
		Text:             text,
		Sources:          state.Sources(),
		Findings:         state.Findings(),
		SearchesExecuted: state.SearchCount(),
		PhasesCompleted:  state.PhasesCompleted(),
	}, nil
}

// runToolPhase executes one bounded turn loop in a fresh conversation.
func (p *Pipeline) runToolPhase(ctx context.Context, reg *tools.Registry, prompt string) error {
	exec := executor.NewExecutor(p.client, reg, executor.Options{
		MaxIterationsPerTurn: p.opts.MaxStepsPerPhase,
		Temperature:          toolPhaseTemperature,
		MaxTokens:            p.opts.MaxTokens,
		Emitter:              p.opts.Emitter,
	})
	state := conversation.NewChainState(conversation.Options{})

	_, err := exec.RunTurn(ctx, state, prompt)
	return err
}

// phaseStart emits the start event and returns the completion hook.
func (p *Pipeline) phaseStart(phase string) func() {
	p.opts.Emitter.Emit(events.Event{Type: events.PhaseStarted, Phase: phase})
	start := time.Now()
	slog.Info("Research phase started", slog.String("phase", phase))

	return func() {
		phaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
		p.opts.Emitter.Emit(events.Event{Type: events.PhaseCompleted, Phase: phase})
	}
}

// skipPhase logs a skipped phase; phasesCompleted stays untouched.
func (p *Pipeline) skipPhase(phase, reason string) {
	slog.Info("Research phase skipped",
		slog.String("phase", phase),
		slog.String("reason", reason),
	)
	p.opts.Emitter.Emit(events.Event{Type: events.PhaseSkipped, Phase: phase, Detail: reason})
}

func (p *Pipeline) runExploration(ctx context.Context, reg *tools.Registry, state *State) error {
	done := p.phaseStart(PhaseExploration)

	prompt := fmt.Sprintf(`You are a research assistant. Your task is to explore the topic: %q

Step 1: Perform a broad web search to get an overview
Step 2: Extract key facts from the top results
Step 3: Identify 2-3 main angles to investigate further

Use the available tools to accomplish this.`, state.Topic())

	if err := p.runToolPhase(ctx, reg, prompt); err != nil {
		return fmt.Errorf("exploration: %w", err)
	}

	state.CompletePhase()
	done()
	return nil
}

func (p *Pipeline) runInvestigation(ctx context.Context, reg *tools.Registry, state *State) error {
	angles := state.KeyAngles()
	if len(angles) == 0 {
		p.skipPhase(PhaseInvestigation, "no angles identified")
		return nil
	}

	done := p.phaseStart(PhaseInvestigation)

	if len(angles) > maxAnglesInvestigated {
		angles = angles[:maxAnglesInvestigated]
	}
	for _, angle := range angles {
		prompt := fmt.Sprintf(`Continue researching %q.

Previous context: We've identified %q as a key angle to investigate.

Task: Perform targeted searches on this angle and extract detailed findings.
Use cross_reference to verify important facts.`, state.Topic(), angle)

		if err := p.runToolPhase(ctx, reg, prompt); err != nil {
			return fmt.Errorf("investigation of %q: %w", angle, err)
		}
	}

	state.CompletePhase()
	done()
	return nil
}

func (p *Pipeline) runValidation(ctx context.Context, reg *tools.Registry, state *State) error {
	facts := state.TopFacts(maxFactsValidated)
	if len(facts) == 0 {
		p.skipPhase(PhaseValidation, "no facts to validate")
		return nil
	}

	done := p.phaseStart(PhaseValidation)

	factsJSON, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return fmt.Errorf("validation: serializing facts: %w", err)
	}

	prompt := fmt.Sprintf(`Validate key findings for research on %q.

Previous research has identified these facts:
%s

Task: Use cross_reference to verify these facts appear in multiple sources.
If verification fails, perform additional searches to find better sources.`,
		state.Topic(), factsJSON)

	if err := p.runToolPhase(ctx, reg, prompt); err != nil {
		return fmt.Errorf("validation: %w", err)
	}

	state.CompletePhase()
	done()
	return nil
}

func (p *Pipeline) runSynthesis(ctx context.Context, state *State) (string, error) {
	done := p.phaseStart(PhaseSynthesis)

	prompt := fmt.Sprintf(`Synthesize a final research report on %q.

Research Summary:
%s

Available sources: %d web sources

Task: Create a comprehensive summary that:
1. Provides an overview of the topic
2. Discusses key findings
3. Mentions important angles/subtopics
4. Cites specific sources where relevant

Format as a clear, informative report.`,
		state.Topic(), state.Summary(), len(state.Sources()))

	exec := executor.NewExecutor(p.client, nil, executor.Options{
		MaxIterationsPerTurn: 1,
		Temperature:          synthesisTemperature,
		MaxTokens:            p.opts.MaxTokens,
		NoTools:              true,
		Emitter:              p.opts.Emitter,
	})
	conv := conversation.NewChainState(conversation.Options{})
	conv.Append(datatypes.SystemMessage("You are a research assistant writing final reports."))

	result, err := exec.RunTurn(ctx, conv, prompt)
	if err != nil {
		return "", fmt.Errorf("synthesis: %w", err)
	}

	state.CompletePhase()
	done()
	return result.Answer, nil
}
