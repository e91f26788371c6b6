// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/toolchain/services/chain/datatypes"
)

func TestOpenAIChatClient_PassesMessagesAndTools(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "Hello there"}}]
		}`))
	}))
	defer srv.Close()

	client := NewOpenAIChatClient(srv.URL, "LFM2-1.2B-Tool")
	content, err := client.Chat(context.Background(),
		[]datatypes.Message{
			datatypes.SystemMessage("instructions"),
			datatypes.UserMessage("hi"),
		},
		ChatOptions{
			Temperature: 0.1,
			MaxTokens:   256,
			Tools: []datatypes.ToolSchema{
				datatypes.NewFunctionSchema("lookup_user", "Find a user",
					map[string]datatypes.PropertySchema{
						"email": {Type: "string", Description: "Email"},
					}, "email"),
			},
		})
	require.NoError(t, err)
	require.Equal(t, "Hello there", content)

	require.Equal(t, "LFM2-1.2B-Tool", gotBody["model"])
	msgs := gotBody["messages"].([]any)
	require.Len(t, msgs, 2)
	require.Equal(t, "system", msgs[0].(map[string]any)["role"])
	tools := gotBody["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	require.Equal(t, "lookup_user", fn["name"])
}

func TestOpenAIChatClient_APIErrorIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "model not loaded", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIChatClient(srv.URL, "m")
	_, err := client.Chat(context.Background(),
		[]datatypes.Message{datatypes.UserMessage("hi")}, ChatOptions{})

	require.Error(t, err)
	require.True(t, errors.Is(err, datatypes.ErrBackendProtocol))
	require.Contains(t, err.Error(), "model not loaded")
}

func TestOpenAIChatClient_ConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	client := NewOpenAIChatClient(srv.URL, "m")
	_, err := client.Chat(context.Background(),
		[]datatypes.Message{datatypes.UserMessage("hi")}, ChatOptions{})

	require.Error(t, err)
	require.True(t, errors.Is(err, datatypes.ErrBackendUnavailable))
}

func TestOpenAIChatClient_EmptyChoicesIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	client := NewOpenAIChatClient(srv.URL, "m")
	_, err := client.Chat(context.Background(),
		[]datatypes.Message{datatypes.UserMessage("hi")}, ChatOptions{})

	require.Error(t, err)
	require.True(t, errors.Is(err, datatypes.ErrBackendProtocol))
}
