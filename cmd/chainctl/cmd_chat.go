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
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/toolchain/services/chain/conversation"
	"github.com/AleutianAI/toolchain/services/chain/datatypes"
	"github.com/AleutianAI/toolchain/services/chain/events"
	"github.com/AleutianAI/toolchain/services/chain/executor"
	"github.com/AleutianAI/toolchain/services/chain/tools"
)

var chatVerbose bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat with the business tool chain",
	Long: `Starts an interactive loop against the configured backend with the
built-in business lookup tools registered.

Commands inside the loop:
  /clear   reset the conversation
  /tools   list registered tools
  /quit    exit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVarP(&chatVerbose, "verbose", "v", false,
		"Print tool executions and chain events as they happen")
}

// chatSystemPrompt assembles the system message from the registered
// tool inventory.
func chatSystemPrompt(reg *tools.Registry) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant with access to business data tools.\n")
	b.WriteString("Available tools:\n")
	for _, schema := range reg.Schemas() {
		fmt.Fprintf(&b, "- %s: %s\n", schema.Function.Name, schema.Function.Description)
	}
	b.WriteString("Use tools when they help answer the question; answer directly otherwise.")
	return b.String()
}

func newChatState() *conversation.ChainState {
	return conversation.NewChainState(conversation.Options{
		MaxChainDepth:      cfg.Chain.MaxChainDepth,
		MaxHistoryMessages: cfg.Chain.MaxHistoryMessages,
		KeepRecent:         cfg.Chain.KeepRecent,
		ResetMode:          conversation.ResetMode(cfg.Chain.ResetMode),
	})
}

func runChat(cmd *cobra.Command, _ []string) error {
	data, err := tools.LoadBusinessData()
	if err != nil {
		return fmt.Errorf("loading business data: %w", err)
	}
	reg := tools.NewRegistry()
	if err := tools.RegisterBusinessTools(reg, data); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	em := events.NewEmitter()
	if chatVerbose {
		em.Subscribe(func(ev events.Event) {
			switch ev.Type {
			case events.ToolExecuted:
				fmt.Printf("  [tool] %s\n", ev.Tool)
			case events.DuplicateSuppressed:
				fmt.Printf("  [dup]  %s suppressed\n", ev.Tool)
			case events.ChainReset:
				fmt.Println("  [chain reset]")
			}
		})
	}

	exec := executor.NewExecutor(newChatClient(), reg, executor.Options{
		MaxIterationsPerTurn: cfg.Chain.MaxIterationsPerTurn,
		Temperature:          cfg.Backend.Temperature,
		MaxTokens:            cfg.Backend.MaxTokens,
		ResultCacheSize:      cfg.Chain.ResultCacheSize,
		Emitter:              em,
	})

	systemPrompt := chatSystemPrompt(reg)
	state := newChatState()
	state.Append(datatypes.SystemMessage(systemPrompt))

	fmt.Printf("Chat ready (%s @ %s). /clear resets, /quit exits.\n",
		cfg.Backend.Model, cfg.Backend.BaseURL)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "/quit", "/exit":
			fmt.Println("Goodbye!")
			return nil
		case "/clear":
			state = newChatState()
			state.Append(datatypes.SystemMessage(systemPrompt))
			fmt.Println("Conversation cleared.")
			continue
		case "/tools":
			for _, name := range reg.Names() {
				fmt.Printf("  %s\n", name)
			}
			continue
		}

		result, err := exec.RunTurn(cmd.Context(), state, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		fmt.Printf("\n%s\n", result.Answer)
		if chatVerbose {
			fmt.Printf("  [%d iterations, %d tool calls, depth %d]\n",
				result.Iterations, result.ToolCallsExecuted, state.ChainDepth())
		}
	}

	return scanner.Err()
}
