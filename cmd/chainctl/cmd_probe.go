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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/toolchain/services/chain/probe"
)

var probeMaxDepth int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Measure the model's chain-depth and history-retention limits",
}

var probeDepthCmd = &cobra.Command{
	Use:   "depth",
	Short: "Find the deepest tool chain the model completes reliably",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p := probe.NewProber(newChatClient(), probe.Options{
			MaxProbedDepth: probeMaxDepth,
			MaxTokens:      cfg.Backend.MaxTokens,
		})

		report, err := p.ProbeChainDepth(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("Chain depth probe:")
		for _, r := range report.Results {
			status := "FAIL"
			if r.Success {
				status = "ok"
			}
			fmt.Printf("  depth %2d: %-4s (%d/%d tools called)\n",
				r.Depth, status, r.ToolsCalled, r.Expected)
		}
		fmt.Printf("Max reliable depth: %d\n", report.MaxReliableDepth)
		return nil
	},
}

var probeRetentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Measure how far back the model recalls tool results",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p := probe.NewProber(newChatClient(), probe.Options{
			MaxTokens: cfg.Backend.MaxTokens,
		})

		report, err := p.ProbeHistoryRetention(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("History retention probe:")
		for _, r := range report.Results {
			status := "missed"
			if r.Recalled {
				status = "recalled"
			}
			fmt.Printf("  record %d: %s\n", r.Index, status)
		}
		fmt.Printf("Recall rate: %.0f%%\n", report.RecallRate*100)
		return nil
	},
}

func init() {
	probeDepthCmd.Flags().IntVar(&probeMaxDepth, "max-depth", 0,
		"Deepest chain to attempt (default 15)")

	probeCmd.AddCommand(probeDepthCmd)
	probeCmd.AddCommand(probeRetentionCmd)
}
