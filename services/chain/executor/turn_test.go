// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/toolchain/services/chain/backend"
	"github.com/AleutianAI/toolchain/services/chain/conversation"
	"github.com/AleutianAI/toolchain/services/chain/datatypes"
	"github.com/AleutianAI/toolchain/services/chain/events"
	"github.com/AleutianAI/toolchain/services/chain/tools"
	"github.com/AleutianAI/toolchain/services/chain/wire"
)

func businessRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	data, err := tools.LoadBusinessData()
	require.NoError(t, err)
	reg := tools.NewRegistry()
	require.NoError(t, tools.RegisterBusinessTools(reg, data))
	return reg
}

func TestRunTurn_ScriptedChainStopsAtFinalAnswer(t *testing.T) {
	// The model follows the lookup chain for four steps, answers at
	// step five; the remaining scripted responses must never be
	// requested.
	client := &backend.ScriptedClient{
		Responses: []string{
			"Checking the account. " + wire.WrapCalls(`lookup_user(email="sarah.chen@techcorp.com")`),
			wire.WrapCalls(`get_user_orders(user_id="usr_8k2m9p4")`),
			wire.WrapCalls(`get_order_details(order_id="ord_x9j2k1")`),
			wire.WrapCalls(`check_inventory(product_id="prod_wireless_kb")`),
			"Sarah Chen's keyboard order shipped from a warehouse with 847 units in stock.",
			wire.WrapCalls(`get_supplier_info(supplier_id="sup_logitech")`),
			wire.WrapCalls(`get_contact_details(contact_id="cnt_jl892m")`),
			wire.WrapCalls(`get_territory_info(territory_id="ter_west_coast")`),
		},
	}

	exec := NewExecutor(client, businessRegistry(t), Options{})
	state := conversation.NewChainState(conversation.Options{})
	state.Append(datatypes.SystemMessage("You are a business data assistant."))

	result, err := exec.RunTurn(context.Background(), state, "tell me about sarah chen's last order")
	require.NoError(t, err)

	require.Equal(t, 5, result.Iterations)
	require.Equal(t, 5, client.CallCount(), "no backend calls after the final answer")
	require.Equal(t, 4, result.ToolCallsExecuted)
	require.False(t, result.Degraded)
	require.Contains(t, result.Answer, "Sarah Chen")

	// Every tool result entered the history as a tool-role message.
	var toolMsgs int
	for _, msg := range state.Messages() {
		if msg.Role == datatypes.RoleTool {
			toolMsgs++
		}
	}
	require.Equal(t, 4, toolMsgs)
}

func TestRunTurn_TerminatesAtIterationCeiling(t *testing.T) {
	client := &backend.ScriptedClient{
		Fallback: wire.WrapCalls(`lookup_user(email="mike.rodriguez@startup.io")`),
	}

	exec := NewExecutor(client, businessRegistry(t), Options{MaxIterationsPerTurn: 5})
	state := conversation.NewChainState(conversation.Options{MaxChainDepth: 100})

	result, err := exec.RunTurn(context.Background(), state, "who is mike?")
	require.NoError(t, err)

	require.True(t, result.Degraded)
	require.Equal(t, 5, result.Iterations)
	require.Equal(t, 5, client.CallCount())
	require.Contains(t, result.Answer, "apologize")
}

func TestRunTurn_DuplicateCallSuppressed(t *testing.T) {
	// One response carries the same call twice plus a distinct one;
	// the duplicate slot still gets a synthetic tool message.
	client := &backend.ScriptedClient{
		Responses: []string{
			wire.WrapCalls(
				`lookup_user(email="sarah.chen@techcorp.com")`,
				`lookup_user(email="sarah.chen@techcorp.com")`,
				`lookup_user(email="mike.rodriguez@startup.io")`,
			),
			"Both accounts found.",
		},
	}

	var suppressed int
	em := events.NewEmitter()
	em.Subscribe(func(ev events.Event) {
		if ev.Type == events.DuplicateSuppressed {
			suppressed++
		}
	})

	exec := NewExecutor(client, businessRegistry(t), Options{Emitter: em})
	state := conversation.NewChainState(conversation.Options{})

	result, err := exec.RunTurn(context.Background(), state, "look up both users")
	require.NoError(t, err)

	require.Equal(t, 2, result.ToolCallsExecuted)
	require.Equal(t, 1, result.Suppressed)
	require.Equal(t, 1, suppressed)

	var sawNotice bool
	for _, msg := range state.Messages() {
		if msg.Role == datatypes.RoleTool && strings.Contains(msg.Content, "already made") {
			sawNotice = true
		}
	}
	require.True(t, sawNotice, "suppressed slot must produce a synthetic tool message")
}

func TestRunTurn_BackendErrorPropagates(t *testing.T) {
	client := &backend.ScriptedClient{
		FinalErr: datatypes.BackendError(datatypes.ErrBackendUnavailable, "dial tcp: connection refused", nil),
	}

	exec := NewExecutor(client, nil, Options{})
	state := conversation.NewChainState(conversation.Options{})

	_, err := exec.RunTurn(context.Background(), state, "hello")
	require.Error(t, err)
	require.True(t, errors.Is(err, datatypes.ErrBackendUnavailable))
}

func TestRunTurn_ChainResetAtEntryAppendsNotice(t *testing.T) {
	client := &backend.ScriptedClient{Responses: []string{"Done."}}

	exec := NewExecutor(client, businessRegistry(t), Options{})
	state := conversation.NewChainState(conversation.Options{MaxChainDepth: 1})
	state.Append(datatypes.SystemMessage("instructions"))
	state.Append(datatypes.AssistantMessage(wire.WrapCalls(`lookup_user(email="x@y.z")`)))
	require.True(t, state.ShouldResetChain())

	_, err := exec.RunTurn(context.Background(), state, "next question")
	require.NoError(t, err)

	require.Equal(t, 0, state.ChainDepth())
	var sawNotice bool
	for _, msg := range state.Messages() {
		if msg.Role == datatypes.RoleSystem && strings.Contains(msg.Content, "depth counter has been reset") {
			sawNotice = true
		}
	}
	require.True(t, sawNotice, "reset must leave a system notice in the history")
}

func TestRunTurn_NoToolsModeIsSingleCall(t *testing.T) {
	// In no-tools mode the response is final even if it happens to
	// contain call-shaped text, and no schemas are advertised.
	client := &backend.ScriptedClient{
		Responses: []string{"Report: " + wire.WrapCalls(`lookup_user(email="a@b.c")`)},
	}

	exec := NewExecutor(client, businessRegistry(t), Options{NoTools: true})
	state := conversation.NewChainState(conversation.Options{})

	result, err := exec.RunTurn(context.Background(), state, "synthesize the findings")
	require.NoError(t, err)

	require.Equal(t, 1, result.Iterations)
	require.Equal(t, 0, result.ToolCallsExecuted)
	require.Equal(t, []int{0}, client.ToolCounts, "no schemas advertised in no-tools mode")
}

func TestRunTurn_RecordsResultsInCache(t *testing.T) {
	client := &backend.ScriptedClient{
		Responses: []string{
			wire.WrapCalls(`lookup_user(email="sarah.chen@techcorp.com")`),
			"Found her.",
		},
	}

	exec := NewExecutor(client, businessRegistry(t), Options{})
	state := conversation.NewChainState(conversation.Options{})

	_, err := exec.RunTurn(context.Background(), state, "find sarah")
	require.NoError(t, err)

	require.Equal(t, 1, exec.Cache().Len())
	cached := exec.Cache().Recent()[0]
	require.Equal(t, "lookup_user", cached.Tool)
	require.Contains(t, cached.Content, "usr_8k2m9p4")
}
