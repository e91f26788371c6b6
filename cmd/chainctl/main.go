// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// chainctl drives the tool-call chain engine from the command line:
// an interactive chat loop, the multi-phase deep researcher, and the
// chain-limit probes.
package main

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/toolchain/services/chain/backend"
	"github.com/AleutianAI/toolchain/services/chain/config"
)

var (
	cfgPath string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chainctl",
	Short: "Tool-call chain orchestration for LFM2-style local models",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		"Path to a YAML config file (defaults plus environment otherwise)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(probeCmd)
}

// newChatClient builds the backend client from the loaded config.
func newChatClient() backend.ChatClient {
	opts := []backend.OpenAIOption{
		backend.WithTimeout(time.Duration(cfg.Backend.TimeoutSeconds) * time.Second),
	}
	if cfg.Backend.APIKey != "" {
		opts = append(opts, backend.WithAPIKey(cfg.Backend.APIKey))
	}
	if cfg.Backend.RequestIntervalMS > 0 {
		opts = append(opts, backend.WithRequestInterval(
			time.Duration(cfg.Backend.RequestIntervalMS)*time.Millisecond))
	}
	return backend.NewOpenAIChatClient(cfg.Backend.BaseURL, cfg.Backend.Model, opts...)
}
