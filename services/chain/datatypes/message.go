// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the shared wire and domain types for the
// tool-call chain orchestration engine.
//
// The types here mirror the OpenAI-style chat-completion contract the
// engine consumes: a flat message list with string roles and content,
// plus the parsed tool-call shapes produced by the wire package.
package datatypes

// Message roles. The backend contract only understands these four.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a conversation history.
//
// Description:
//
//	Histories are ordered and append-only except during compression.
//	Role sequencing generally alternates user/assistant, with tool
//	messages interleaved after an assistant message that requested
//	tool calls.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolMessage creates a tool-role message carrying a serialized result.
func ToolMessage(content string) Message {
	return Message{Role: RoleTool, Content: content}
}
