// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/toolchain/services/chain/events"
	"github.com/AleutianAI/toolchain/services/chain/research"
)

var (
	researchDepth  int
	researchOutput string
)

var researchCmd = &cobra.Command{
	Use:   "research <topic>",
	Short: "Run the multi-phase deep researcher on a topic",
	Long: `Runs the phase pipeline (exploration, investigation, validation,
synthesis) against the configured backend with Brave web search.
Requires a Brave API key (config or ` + "TOOLCHAIN_BRAVE_API_KEY" + `).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().IntVar(&researchDepth, "depth", 0,
		"Research depth: 1 quick, 2 moderate, 3 deep (default from config)")
	researchCmd.Flags().StringVarP(&researchOutput, "output", "o", "",
		"Write the full report JSON to this file")
}

func runResearch(cmd *cobra.Command, args []string) error {
	topic := strings.Join(args, " ")

	if cfg.Research.BraveAPIKey == "" {
		return fmt.Errorf("no Brave API key configured; set research.brave_api_key or %s",
			"TOOLCHAIN_BRAVE_API_KEY")
	}

	depth := cfg.Research.MaxDepth
	if researchDepth > 0 {
		depth = researchDepth
	}

	em := events.NewEmitter()
	em.Subscribe(func(ev events.Event) {
		switch ev.Type {
		case events.PhaseStarted:
			fmt.Printf("\n== Phase: %s ==\n", ev.Phase)
		case events.PhaseSkipped:
			fmt.Printf("== Phase %s skipped: %s ==\n", ev.Phase, ev.Detail)
		case events.ToolExecuted:
			fmt.Printf("  [tool] %s\n", ev.Tool)
		}
	})

	pipeline := research.NewPipeline(
		newChatClient(),
		research.NewBraveClient(cfg.Research.BraveAPIKey),
		research.Options{
			MaxDepth:         depth,
			MaxStepsPerPhase: cfg.Research.MaxStepsPerPhase,
			MaxTokens:        cfg.Backend.MaxTokens,
			Emitter:          em,
		})

	start := time.Now()
	report, err := pipeline.Research(cmd.Context(), topic)
	if err != nil {
		return err
	}

	fmt.Printf("\nTopic: %s\n", report.Topic)
	fmt.Printf("Phases completed: %d\n", report.PhasesCompleted)
	fmt.Printf("Searches executed: %d\n", report.SearchesExecuted)
	fmt.Printf("Sources found: %d\n", len(report.Sources))
	fmt.Printf("Time elapsed: %.1fs\n", time.Since(start).Seconds())
	fmt.Printf("\n%s\n", report.Text)

	if n := len(report.Sources); n > 0 {
		if n > 5 {
			n = 5
		}
		fmt.Printf("\nTop %d sources:\n", n)
		for i, src := range report.Sources[:n] {
			fmt.Printf("%d. %s\n   %s\n", i+1, src.Title, src.URL)
		}
	}

	if researchOutput != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("serializing report: %w", err)
		}
		if err := os.WriteFile(researchOutput, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", researchOutput, err)
		}
		fmt.Printf("\nFull report saved to %s\n", researchOutput)
	}

	return nil
}
